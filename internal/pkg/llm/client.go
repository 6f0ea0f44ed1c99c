package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"k8s.io/klog/v2"
)

// ErrEmptyResponse 模型未返回内容
var ErrEmptyResponse = errors.New("no response from LLM")

// Message 对话消息，Role 为 user 或 assistant
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage token 用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response 模型回复
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// ChatClient 对话客户端
type ChatClient interface {
	Chat(ctx context.Context, systemPrompt string, messages []Message, maxTokens int) (*Response, error)
}

// Config OpenAI 兼容接口配置
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
}

// Client 基于 eino ChatModel 的 ChatClient
type Client struct {
	model     model.BaseChatModel
	modelName string
}

// NewClient 使用已有的 ChatModel 创建 Client
func NewClient(chatModel model.BaseChatModel, modelName string) *Client {
	return &Client{model: chatModel, modelName: modelName}
}

// NewOpenAIClient 创建 OpenAI 兼容的 Client
func NewOpenAIClient(ctx context.Context, cfg Config) (*Client, error) {
	config := &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	}
	if cfg.MaxTokens > 0 {
		config.MaxTokens = &cfg.MaxTokens
	}

	chatModel, err := openai.NewChatModel(ctx, config)
	if err != nil {
		klog.Errorf("[LLMChatModel] 创建 ChatModel 失败: %v", err)
		return nil, err
	}
	klog.V(6).Infof("[LLMChatModel] ChatModel 创建成功: model=%s", cfg.Model)
	return NewClient(chatModel, cfg.Model), nil
}

// Chat 发送对话请求，maxTokens 为 0 时使用模型默认值
func (c *Client) Chat(ctx context.Context, systemPrompt string, messages []Message, maxTokens int) (*Response, error) {
	input := make([]*schema.Message, 0, len(messages)+1)
	if systemPrompt != "" {
		input = append(input, schema.SystemMessage(systemPrompt))
	}
	for _, m := range messages {
		input = append(input, toSchemaMessage(m))
	}

	var opts []model.Option
	if maxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(maxTokens))
	}

	klog.V(6).Infof("Chat 请求: model=%s, messages=%d", c.modelName, len(input))
	out, err := c.model.Generate(ctx, input, opts...)
	if err != nil {
		return nil, fmt.Errorf("LLM request failed: %w", err)
	}
	if out == nil {
		return nil, ErrEmptyResponse
	}

	resp := &Response{Content: out.Content, Model: c.modelName}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		u := out.ResponseMeta.Usage
		resp.Usage = Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return resp, nil
}

func toSchemaMessage(m Message) *schema.Message {
	switch m.Role {
	case "assistant":
		return schema.AssistantMessage(m.Content, nil)
	case "system":
		return schema.SystemMessage(m.Content)
	default:
		return schema.UserMessage(m.Content)
	}
}
