package skills

import (
	"fmt"
	"time"
)

// Source Skill 来源
type Source int

const (
	// SourcePublic 随构建产物分发的文件系统 Skill
	SourcePublic Source = iota
	// SourcePrivate 用户私有 Skill，OwnerID 为 user id
	SourcePrivate
	// SourceShared 团队共享 Skill，OwnerID 为 team id
	SourceShared
)

// String 返回来源名称
func (s Source) String() string {
	switch s {
	case SourcePublic:
		return "public"
	case SourcePrivate:
		return "private"
	case SourceShared:
		return "shared"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// Cacheable 是否允许进入 SkillCache
// 只有从 BlobStore 加载的私有/共享 Skill 需要缓存，公共 Skill 由 Registry 常驻
func (s Source) Cacheable() bool {
	switch s {
	case SourcePrivate, SourceShared:
		return true
	case SourcePublic:
		return false
	default:
		return false
	}
}

// ParseSource 解析来源（同时兼容记录中的 scope 字段）
func ParseSource(v string) (Source, error) {
	switch v {
	case "public":
		return SourcePublic, nil
	case "private":
		return SourcePrivate, nil
	case "shared":
		return SourceShared, nil
	default:
		return SourcePublic, fmt.Errorf("unknown skill source %q", v)
	}
}

// MarshalText 序列化为文本（JSON 输出使用名称）
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SkillMetadata SKILL.md frontmatter 中的元数据
type SkillMetadata struct {
	Name             string     `yaml:"name" json:"name"`
	Description      string     `yaml:"description" json:"description"`
	Version          string     `yaml:"version" json:"version"`
	Author           string     `yaml:"author" json:"author"`
	LastVerified     *time.Time `yaml:"-" json:"last_verified,omitempty"`
	TaxAgentApproved bool       `yaml:"tax_agent_approved" json:"tax_agent_approved"`
	Triggers         []string   `yaml:"triggers" json:"triggers"`
	Industries       []string   `yaml:"industries" json:"industries"`
	Tags             []string   `yaml:"tags" json:"tags"`
}

// DefaultVersion 未声明 version 时的默认值
const DefaultVersion = "1.0.0"

// SkillMatch 一次请求中 Skill 的匹配结果
type SkillMatch struct {
	Skill      *Skill
	Trigger    string  // 命中的 trigger 原文
	Confidence float64 // 0-1
}

// SkillPreview 用于 UI 预览"哪些 Skill 会被触发"
type SkillPreview struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Trigger     string  `json:"trigger"`
	Confidence  float64 `json:"confidence"`
	Source      Source  `json:"source"`
}

// DiscoveredSkills 按来源分组的可见 Skill
type DiscoveredSkills struct {
	Private []*Skill
	Shared  []*Skill
	Public  []*Skill
}

// InPriorityOrder 按 private、shared、public 顺序返回各组
func (d DiscoveredSkills) InPriorityOrder() [][]*Skill {
	return [][]*Skill{d.Private, d.Shared, d.Public}
}

// Count 返回 Skill 总数
func (d DiscoveredSkills) Count() int {
	return len(d.Private) + len(d.Shared) + len(d.Public)
}
