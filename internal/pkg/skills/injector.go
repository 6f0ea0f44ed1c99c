package skills

import (
	"context"
	"sort"
	"strings"

	"k8s.io/klog/v2"
)

// DefaultMaxSkills 单次请求最多注入的 Skill 数
const DefaultMaxSkills = 3

const (
	activeSkillsHeader = "# Active Skills\n\nThe following specialized skills have been activated for this request:\n\n"
	activeSkillsFooter = "\n\n---\n\nUse the skill instructions above to guide your response."
	skillSeparator     = "\n---\n"
)

// actionSkills 动作类型到 Skill 名称的映射
var actionSkills = map[string]string{
	"RUN_BAS_REVIEW":      "bas_review",
	"REVIEW_TRANSACTIONS": "transaction_review",
	"CLASSIFY_GST":        "gst_classification",
	"GENERATE_JOURNALS":   "journal_generation",
}

// ActionSkillName 返回动作对应的 Skill 名称
func ActionSkillName(action string) (string, bool) {
	name, ok := actionSkills[action]
	return name, ok
}

// SkillLookup Injector 依赖的 Skill 查询能力
type SkillLookup interface {
	DiscoverAll(ctx context.Context, userID, teamID string) DiscoveredSkills
	GetPublic(ctx context.Context, name string) (*Skill, error)
}

// InjectContext 注入时的请求上下文
type InjectContext struct {
	UserMessage string
	UserID      string
	TeamID      string
	// Industry 存在对应行业指南时追加到 Skill 内容后
	Industry string
}

type injectOptions struct {
	skills    []*Skill
	explicit  bool
	maxSkills int
}

// InjectOption 注入选项
type InjectOption func(*injectOptions)

// WithSkills 指定要注入的 Skills，不再根据消息检测（可以为空）
func WithSkills(skills ...*Skill) InjectOption {
	return func(o *injectOptions) {
		o.skills = skills
		o.explicit = true
	}
}

// WithMaxSkills 检测时最多选取的 Skill 数
func WithMaxSkills(n int) InjectOption {
	return func(o *injectOptions) {
		if n < 0 {
			n = 0
		}
		o.maxSkills = n
	}
}

// Injector 检测消息触发的 Skills 并注入到 System Prompt
type Injector struct {
	lookup  SkillLookup
	matcher TriggerMatcher
}

// NewInjector 创建注入器，matcher 为空时使用 LexicalMatcher
func NewInjector(lookup SkillLookup, matcher TriggerMatcher) *Injector {
	if matcher == nil {
		matcher = NewLexicalMatcher()
	}
	return &Injector{lookup: lookup, matcher: matcher}
}

// DetectSkillTriggers 检测消息触发的 Skills
// 按 private、shared、public 顺序遍历，同名 Skill 只看优先级最高的那个（即使它未命中）
// 每个 Skill 取第一个命中的 trigger，结果按置信度降序，相同置信度保持来源顺序
func (i *Injector) DetectSkillTriggers(ctx context.Context, message, userID, teamID string) []SkillMatch {
	matches := make([]SkillMatch, 0)
	if strings.TrimSpace(message) == "" {
		return matches
	}

	seen := make(map[string]bool)
	for _, group := range i.lookup.DiscoverAll(ctx, userID, teamID).InPriorityOrder() {
		for _, skill := range group {
			name := skill.Name()
			if seen[name] {
				continue
			}
			seen[name] = true

			for _, trigger := range skill.triggers() {
				if i.matcher.Match(message, trigger) {
					matches = append(matches, SkillMatch{
						Skill:      skill,
						Trigger:    trigger,
						Confidence: i.matcher.Confidence(message, trigger),
					})
					break
				}
			}
		}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Confidence > matches[b].Confidence
	})
	klog.V(6).Infof("Skill 触发检测完成: matches=%d", len(matches))
	return matches
}

// InjectSkills 将 Skills 注入到 basePrompt 之后
// 未通过 WithSkills 指定时，取 DetectSkillTriggers 的前 maxSkills 个；没有 Skill 时原样返回 basePrompt
func (i *Injector) InjectSkills(ctx context.Context, basePrompt string, ic InjectContext, opts ...InjectOption) string {
	o := injectOptions{maxSkills: DefaultMaxSkills}
	for _, opt := range opts {
		opt(&o)
	}

	selected := o.skills
	if !o.explicit && ic.UserMessage != "" {
		matches := i.DetectSkillTriggers(ctx, ic.UserMessage, ic.UserID, ic.TeamID)
		if len(matches) > o.maxSkills {
			matches = matches[:o.maxSkills]
		}
		selected = make([]*Skill, 0, len(matches))
		for _, m := range matches {
			selected = append(selected, m.Skill)
		}
	}

	prompt := RenderSkills(basePrompt, selected, ic.Industry)
	if len(selected) > 0 {
		klog.V(6).Infof("已注入 %d 个 Skills", len(selected))
	}
	return prompt
}

// RenderSkills 按固定格式渲染注入后的 Prompt
func RenderSkills(basePrompt string, skills []*Skill, industry string) string {
	sections := make([]string, 0, len(skills))
	for _, s := range skills {
		if s == nil {
			continue
		}
		sections = append(sections, "\n## Skill: "+s.Name()+"\n"+s.Description()+"\n\n"+s.RenderPrompt(industry)+"\n")
	}
	if len(sections) == 0 {
		return basePrompt
	}

	var sb strings.Builder
	sb.WriteString(basePrompt)
	sb.WriteString("\n\n")
	sb.WriteString(activeSkillsHeader)
	sb.WriteString(strings.Join(sections, skillSeparator))
	sb.WriteString(activeSkillsFooter)
	return sb.String()
}

// PreviewSkills 预览消息会触发哪些 Skills，无副作用
func (i *Injector) PreviewSkills(ctx context.Context, message, userID, teamID string) []SkillPreview {
	matches := i.DetectSkillTriggers(ctx, message, userID, teamID)
	previews := make([]SkillPreview, 0, len(matches))
	for _, m := range matches {
		previews = append(previews, SkillPreview{
			Name:        m.Skill.Name(),
			Description: m.Skill.Description(),
			Trigger:     m.Trigger,
			Confidence:  m.Confidence,
			Source:      m.Skill.Source(),
		})
	}
	return previews
}

// SkillForAction 获取动作对应的公共 Skill
func (i *Injector) SkillForAction(ctx context.Context, action string) (*Skill, bool) {
	name, ok := ActionSkillName(action)
	if !ok {
		return nil, false
	}
	skill, err := i.lookup.GetPublic(ctx, name)
	if err != nil {
		klog.V(6).Infof("动作对应的 Skill 不存在: action=%s, skill=%s", action, name)
		return nil, false
	}
	return skill, true
}

// BuildPromptForAction 注入动作对应的 Skill，不存在时返回 basePrompt
func (i *Injector) BuildPromptForAction(ctx context.Context, action, basePrompt string, ic InjectContext) string {
	skill, ok := i.SkillForAction(ctx, action)
	if !ok {
		return basePrompt
	}
	return i.InjectSkills(ctx, basePrompt, ic, WithSkills(skill))
}
