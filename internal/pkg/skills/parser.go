package skills

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxContentBytes SKILL.md 最大字节数（UTF-8）
const MaxContentBytes = 100 * 1024

var (
	frontmatterPattern = regexp.MustCompile(`(?s)\A---\s*\n(.*?)\n---\s*(?:\n|\z)`)
	skillNamePattern   = regexp.MustCompile(`^[a-z][a-z0-9_]{0,99}$`)
)

// Parser SKILL.md 解析器，无 I/O，可并发使用
type Parser struct {
	maxContentBytes int
}

// NewParser 创建解析器
func NewParser() *Parser {
	return &Parser{
		maxContentBytes: MaxContentBytes,
	}
}

// frontmatter 字符串字段按原文解码，未知字段忽略
type frontmatter struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Version      string `yaml:"version"`
	Author       string `yaml:"author"`
	LastVerified string `yaml:"last_verified"`
}

// parsedDocument 校验通过的中间结果
type parsedDocument struct {
	raw  map[string]any
	fm   frontmatter
	body string
}

// Parse 解析 SKILL.md 内容
// 返回的 Skill 来源为 public、路径为 memory，调用方按需调用 WithOrigin
func (p *Parser) Parse(document string) (*Skill, error) {
	return p.parse(document, "memory")
}

// ParseFile 读取并解析文件系统中的 SKILL.md
func (p *Parser) ParseFile(path string) (*Skill, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > int64(p.maxContentBytes) {
		return nil, invalid(ErrContentTooLarge, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read SKILL.md: %w", err)
	}
	return p.parse(string(data), path)
}

func (p *Parser) parse(document, path string) (*Skill, error) {
	doc, err := p.check(document)
	if err != nil {
		return nil, err
	}
	fm := doc.fm

	meta := SkillMetadata{
		Name:             fm.Name,
		Description:      fm.Description,
		Version:          fm.Version,
		Author:           fm.Author,
		LastVerified:     parseDate(fm.LastVerified),
		TaxAgentApproved: boolField(doc.raw, "tax_agent_approved"),
		Triggers:         listField(doc.raw, "triggers"),
		Industries:       listField(doc.raw, "industries"),
		Tags:             listField(doc.raw, "tags"),
	}
	if meta.Version == "" {
		meta.Version = DefaultVersion
	}

	return NewSkill(meta, doc.body, path), nil
}

// Validate 校验内容但不构造 Skill
// 按固定顺序返回第一个不满足的规则，错误均包装 ErrValidation
func (p *Parser) Validate(document string) error {
	_, err := p.check(document)
	return err
}

// ValidateContent 返回 (是否有效, 原因)
func (p *Parser) ValidateContent(document string) (bool, string) {
	if err := p.Validate(document); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// check 校验顺序：空 → 超限 → 缺少 frontmatter → YAML 语法 → 缺少 name → name 格式 → 列表字段 → 标量字段
func (p *Parser) check(document string) (*parsedDocument, error) {
	if strings.TrimSpace(document) == "" {
		return nil, invalid(ErrEmptyContent, "")
	}
	if len(document) > p.maxContentBytes {
		return nil, invalid(ErrContentTooLarge, fmt.Sprintf("%d bytes", len(document)))
	}

	// 标准化换行符
	document = strings.ReplaceAll(document, "\r\n", "\n")

	m := frontmatterPattern.FindStringSubmatchIndex(document)
	if m == nil {
		return nil, invalid(ErrMissingFrontmatter, "")
	}
	yamlContent := document[m[2]:m[3]]
	body := strings.TrimSpace(document[m[1]:])

	var decoded any
	if err := yaml.Unmarshal([]byte(yamlContent), &decoded); err != nil {
		return nil, invalid(ErrInvalidFrontmatter, err.Error())
	}
	raw, ok := asMapping(decoded)
	if !ok {
		return nil, invalid(ErrInvalidFrontmatter, "frontmatter must be a YAML dictionary")
	}

	nameValue, present := raw["name"]
	if !present || nameValue == nil || nameValue == "" {
		return nil, invalid(ErrMissingName, "")
	}
	name, ok := nameValue.(string)
	if !ok || !skillNamePattern.MatchString(name) {
		return nil, invalid(ErrInvalidName,
			"must start with lowercase letter, contain only lowercase letters, numbers, and underscores, max 100 characters")
	}

	for _, field := range []string{"triggers", "industries", "tags"} {
		v, present := raw[field]
		if !present {
			continue
		}
		if _, ok := v.([]any); !ok {
			return nil, invalid(ErrInvalidList, field)
		}
	}

	// 标量字段类型不符时 Parse 会失败，这里一并拒绝
	var fm frontmatter
	if err := yaml.Unmarshal([]byte(yamlContent), &fm); err != nil {
		return nil, invalid(ErrInvalidFrontmatter, err.Error())
	}

	return &parsedDocument{raw: raw, fm: fm, body: body}, nil
}

// IsValidSkillName 校验 name 格式
func IsValidSkillName(name string) bool {
	return skillNamePattern.MatchString(name)
}

// asMapping 存在非字符串 key 时 yaml.v3 解码为 map[any]any
func asMapping(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func listField(raw map[string]any, key string) []string {
	items, _ := raw[key].([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case nil:
			continue
		case string:
			out = append(out, v)
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}

func boolField(raw map[string]any, key string) bool {
	v, _ := raw[key].(bool)
	return v
}

// parseDate 解析 last_verified，无法解析时视为未设置
func parseDate(v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}
