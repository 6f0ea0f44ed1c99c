package service

import (
	"context"
	"errors"
	"strings"

	"k8s.io/klog/v2"

	"github.com/askfin/backend/internal/pkg/llm"
	"github.com/askfin/backend/internal/pkg/skills"
)

// DefaultSystemPrompt 未指定时的基础 system prompt
const DefaultSystemPrompt = "You are a helpful AI assistant."

// ErrChatNotConfigured 未配置 LLM
var ErrChatNotConfigured = errors.New("AI client is not configured")

// ChatRequest 对话请求
type ChatRequest struct {
	Message        string        `json:"message" binding:"required"`
	History        []llm.Message `json:"history"`
	Industry       string        `json:"industry"`
	BasePrompt     string        `json:"base_prompt"`
	MaxTokens      int           `json:"max_tokens"`
	ConversationID string        `json:"conversation_id"`
	UserID         string        `json:"-"`
	TeamID         string        `json:"-"`
}

// UsedSkill 本次回复注入的 Skill
type UsedSkill struct {
	Name       string        `json:"name"`
	Source     skills.Source `json:"source"`
	Trigger    string        `json:"trigger"`
	Confidence float64       `json:"confidence"`
}

// ChatResponse 对话回复
type ChatResponse struct {
	Content    string      `json:"content"`
	SkillsUsed []UsedSkill `json:"skills_used"`
	Model      string      `json:"model"`
	Usage      llm.Usage   `json:"usage"`
}

// ChatService 注入 Skill 的对话服务接口
type ChatService interface {
	// SendMessage 检测 Skill、注入 system prompt 并调用模型
	SendMessage(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// PreviewSkills 预览消息会触发的 Skill
	PreviewSkills(ctx context.Context, message, userID, teamID string) []skills.SkillPreview
}

type chatService struct {
	client    llm.ChatClient
	injector  *skills.Injector
	analytics SkillAnalyticsService
	maxSkills int
}

// NewChatService 创建对话服务
// client 为 nil 时 SendMessage 返回 ErrChatNotConfigured，analytics 为 nil 时不记录使用
func NewChatService(client llm.ChatClient, injector *skills.Injector, analytics SkillAnalyticsService, maxSkills int) ChatService {
	if maxSkills <= 0 {
		maxSkills = skills.DefaultMaxSkills
	}
	return &chatService{client: client, injector: injector, analytics: analytics, maxSkills: maxSkills}
}

func (s *chatService) SendMessage(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if s.client == nil {
		return nil, ErrChatNotConfigured
	}

	matches := s.injector.DetectSkillTriggers(ctx, req.Message, req.UserID, req.TeamID)
	if len(matches) > s.maxSkills {
		matches = matches[:s.maxSkills]
	}
	selected := make([]*skills.Skill, 0, len(matches))
	for _, m := range matches {
		selected = append(selected, m.Skill)
	}

	basePrompt := req.BasePrompt
	if strings.TrimSpace(basePrompt) == "" {
		basePrompt = DefaultSystemPrompt
	}
	prompt := s.injector.InjectSkills(ctx, basePrompt, skills.InjectContext{
		UserMessage: req.Message,
		UserID:      req.UserID,
		TeamID:      req.TeamID,
		Industry:    req.Industry,
	}, skills.WithSkills(selected...))

	messages := make([]llm.Message, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, llm.Message{Role: "user", Content: req.Message})

	resp, err := s.client.Chat(ctx, prompt, messages, req.MaxTokens)
	if err != nil {
		klog.Errorf("对话请求失败: user=%s, error=%v", req.UserID, err)
		return nil, err
	}

	used := make([]UsedSkill, 0, len(matches))
	for _, m := range matches {
		used = append(used, UsedSkill{
			Name:       m.Skill.Name(),
			Source:     m.Skill.Source(),
			Trigger:    m.Trigger,
			Confidence: m.Confidence,
		})
		s.logUsage(ctx, req, m)
	}
	if len(used) > 0 {
		klog.V(6).Infof("本次回复使用的 Skills: %v", usedNames(used))
	}

	return &ChatResponse{
		Content:    resp.Content,
		SkillsUsed: used,
		Model:      resp.Model,
		Usage:      resp.Usage,
	}, nil
}

func (s *chatService) PreviewSkills(ctx context.Context, message, userID, teamID string) []skills.SkillPreview {
	return s.injector.PreviewSkills(ctx, message, userID, teamID)
}

// logUsage 记录失败只打日志
func (s *chatService) logUsage(ctx context.Context, req *ChatRequest, m skills.SkillMatch) {
	if s.analytics == nil {
		return
	}
	confidence := m.Confidence
	_, err := s.analytics.LogUsage(ctx, UsageEvent{
		SkillName:      m.Skill.Name(),
		SkillSource:    m.Skill.Source().String(),
		UserID:         req.UserID,
		TeamID:         req.TeamID,
		Trigger:        m.Trigger,
		Confidence:     &confidence,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		klog.Warningf("记录 Skill 使用失败: skill=%s, error=%v", m.Skill.Name(), err)
	}
}

func usedNames(used []UsedSkill) []string {
	names := make([]string, 0, len(used))
	for _, u := range used {
		names = append(names, u.Name)
	}
	return names
}
