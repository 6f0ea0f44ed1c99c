package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChatModel struct {
	GenerateFunc func(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
	LastInput    []*schema.Message
	LastOptions  *model.Options
}

func (m *mockChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.LastInput = input
	m.LastOptions = model.GetCommonOptions(&model.Options{}, opts...)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, input, opts...)
	}
	return schema.AssistantMessage("ok", nil), nil
}

func (m *mockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func TestClient_Chat(t *testing.T) {
	mock := &mockChatModel{
		GenerateFunc: func(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
			out := schema.AssistantMessage("hello", nil)
			out.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{
				PromptTokens:     10,
				CompletionTokens: 5,
				TotalTokens:      15,
			}}
			return out, nil
		},
	}
	client := NewClient(mock, "gpt-test")

	resp, err := client.Chat(context.Background(), "SYSTEM", []Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hey"},
		{Role: "user", Content: "again"},
	}, 256)
	require.NoError(t, err)

	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, "gpt-test", resp.Model)
	assert.Equal(t, Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, resp.Usage)

	require.Len(t, mock.LastInput, 4)
	assert.Equal(t, schema.System, mock.LastInput[0].Role)
	assert.Equal(t, "SYSTEM", mock.LastInput[0].Content)
	assert.Equal(t, schema.User, mock.LastInput[1].Role)
	assert.Equal(t, schema.Assistant, mock.LastInput[2].Role)
	require.NotNil(t, mock.LastOptions.MaxTokens)
	assert.Equal(t, 256, *mock.LastOptions.MaxTokens)
}

func TestClient_Chat_NoMaxTokens(t *testing.T) {
	mock := &mockChatModel{}
	_, err := NewClient(mock, "m").Chat(context.Background(), "", []Message{{Role: "user", Content: "x"}}, 0)
	require.NoError(t, err)
	assert.Len(t, mock.LastInput, 1, "空 system prompt 不发送")
	assert.Nil(t, mock.LastOptions.MaxTokens)
}

func TestClient_Chat_Errors(t *testing.T) {
	boom := errors.New("boom")
	mock := &mockChatModel{
		GenerateFunc: func(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
			return nil, boom
		},
	}
	_, err := NewClient(mock, "m").Chat(context.Background(), "s", nil, 0)
	assert.ErrorIs(t, err, boom)

	mock.GenerateFunc = func(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
		return nil, nil
	}
	_, err = NewClient(mock, "m").Chat(context.Background(), "s", nil, 0)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNewOpenAIClient(t *testing.T) {
	client, err := NewOpenAIClient(context.Background(), Config{
		BaseURL:   "http://127.0.0.1:1/v1",
		APIKey:    "sk-test",
		Model:     "gpt-test",
		MaxTokens: 128,
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", client.modelName)
}
