package skills

import (
	"encoding/json"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"k8s.io/klog/v2"
)

// Skill 完整的 Skill（元数据 + 内容）
// 构造后不可变，任何修改都会生成新的实例
type Skill struct {
	metadata   SkillMetadata
	content    string
	path       string
	storageKey string
	source     Source
	ownerID    string

	// 仅文件系统中的公共 Skill 才有行业指南，首次访问时加载
	guidelines *guidelineSet
}

// NewSkill 创建公共来源的 Skill
func NewSkill(metadata SkillMetadata, content, path string) *Skill {
	return &Skill{
		metadata: cloneMetadata(metadata),
		content:  content,
		path:     path,
		source:   SourcePublic,
	}
}

// NewMetadataOnlySkill 在正文不可用时，根据记录元数据生成降级 Skill
func NewMetadataOnlySkill(metadata SkillMetadata, recordID string, source Source, ownerID, storageKey string) *Skill {
	desc := metadata.Description
	if desc == "" {
		desc = "No content available"
	}
	if metadata.Version == "" {
		metadata.Version = DefaultVersion
	}
	return &Skill{
		metadata:   cloneMetadata(metadata),
		content:    "# " + metadata.Name + "\n\n" + desc,
		path:       "db://" + recordID,
		storageKey: storageKey,
		source:     source,
		ownerID:    ownerID,
	}
}

// WithOrigin 返回带来源信息的副本
func (s *Skill) WithOrigin(source Source, ownerID, storageKey string) *Skill {
	cp := *s
	cp.metadata = cloneMetadata(s.metadata)
	cp.source = source
	cp.ownerID = ownerID
	cp.storageKey = storageKey
	if source != SourcePublic {
		cp.guidelines = nil
	}
	return &cp
}

// withGuidelinesDir 绑定行业指南目录（仅 loader 使用）
func (s *Skill) withGuidelinesDir(dir string) *Skill {
	cp := *s
	cp.guidelines = &guidelineSet{dir: dir}
	return &cp
}

func (s *Skill) Metadata() SkillMetadata { return cloneMetadata(s.metadata) }
func (s *Skill) Name() string            { return s.metadata.Name }
func (s *Skill) Description() string     { return s.metadata.Description }
func (s *Skill) Version() string         { return s.metadata.Version }
func (s *Skill) Triggers() []string      { return slices.Clone(s.metadata.Triggers) }
func (s *Skill) Industries() []string    { return slices.Clone(s.metadata.Industries) }
func (s *Skill) Tags() []string          { return slices.Clone(s.metadata.Tags) }
func (s *Skill) Content() string         { return s.content }
func (s *Skill) Path() string            { return s.path }
func (s *Skill) StorageKey() string      { return s.storageKey }
func (s *Skill) Source() Source          { return s.source }
func (s *Skill) OwnerID() string         { return s.ownerID }

// triggers 内部只读访问，避免匹配时重复拷贝
func (s *Skill) triggers() []string { return s.metadata.Triggers }

// Guideline 获取行业指南
func (s *Skill) Guideline(industry string) (string, bool) {
	if industry == "" {
		return "", false
	}
	switch s.source {
	case SourcePublic:
		if s.guidelines == nil {
			return "", false
		}
		return s.guidelines.get(industry)
	case SourcePrivate, SourceShared:
		return "", false
	default:
		return "", false
	}
}

// HasGuideline 是否存在指定行业的指南
func (s *Skill) HasGuideline(industry string) bool {
	_, ok := s.Guideline(industry)
	return ok
}

// RenderPrompt 渲染 Skill 内容，industry 有对应指南时追加到末尾
func (s *Skill) RenderPrompt(industry string) string {
	parts := []string{s.content}
	if guideline, ok := s.Guideline(industry); ok {
		// cases.Caser 非并发安全，每次新建
		title := cases.Title(language.English).String(industry)
		parts = append(parts, "\n\n## Industry Guidelines ("+title+")\n", guideline)
	}
	return strings.Join(parts, "\n")
}

// MarshalJSON API 输出格式
func (s *Skill) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"name":        s.metadata.Name,
		"description": s.metadata.Description,
		"version":     s.metadata.Version,
		"author":      s.metadata.Author,
		"triggers":    nonNil(s.metadata.Triggers),
		"industries":  nonNil(s.metadata.Industries),
		"tags":        nonNil(s.metadata.Tags),
		"source":      s.source.String(),
		"owner_id":    s.ownerID,
		"path":        s.path,
	})
}

// guidelineSet 行业指南：<skill>/guidelines/<industry>.md
type guidelineSet struct {
	dir   string
	once  sync.Once
	items map[string]string
}

func (g *guidelineSet) get(industry string) (string, bool) {
	g.once.Do(g.load)
	v, ok := g.items[industry]
	return v, ok
}

func (g *guidelineSet) load() {
	g.items = make(map[string]string)
	fsys := os.DirFS(g.dir)
	files, err := doublestar.Glob(fsys, "*.md")
	if err != nil {
		klog.Warningf("加载行业指南失败: dir=%s, error=%v", g.dir, err)
		return
	}
	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			klog.Warningf("读取行业指南失败: file=%s, error=%v", name, err)
			continue
		}
		industry := strings.TrimSuffix(path.Base(name), ".md")
		g.items[industry] = string(data)
	}
}

func cloneMetadata(m SkillMetadata) SkillMetadata {
	m.Triggers = slices.Clone(m.Triggers)
	m.Industries = slices.Clone(m.Industries)
	m.Tags = slices.Clone(m.Tags)
	if m.LastVerified != nil {
		t := *m.LastVerified
		m.LastVerified = &t
	}
	return m
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
