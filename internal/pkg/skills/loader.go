package skills

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"k8s.io/klog/v2"
)

const (
	// SkillFileName Skill 定义文件名
	SkillFileName = "SKILL.md"
	// GuidelinesDirName 行业指南目录名
	GuidelinesDirName = "guidelines"
)

// LoadResult 单个 Skill 的加载结果
type LoadResult struct {
	Skill *Skill
	Path  string
	Error error
}

// Loader 公共 Skill 加载器，按 <dir>/<skill>/SKILL.md 结构扫描
type Loader struct {
	parser *Parser
}

// NewLoader 创建加载器
func NewLoader(parser *Parser) *Loader {
	if parser == nil {
		parser = NewParser()
	}
	return &Loader{parser: parser}
}

// LoadFromDir 从目录加载所有 Skills
// 目录不存在时返回空结果；单个 Skill 失败记录在 LoadResult.Error 中，不影响其他 Skill
func (l *Loader) LoadFromDir(dir string) ([]*LoadResult, error) {
	dir = filepath.Clean(dir)

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		klog.Warningf("Skills 目录不存在: %s", dir)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat skills directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), "*/"+SkillFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to scan skills directory: %w", err)
	}
	sort.Strings(matches)

	results := make([]*LoadResult, 0, len(matches))
	for _, rel := range matches {
		// 跳过以 . 开头的隐藏目录
		if strings.HasPrefix(path.Dir(rel), ".") {
			continue
		}
		results = append(results, l.LoadFromPath(filepath.Join(dir, filepath.FromSlash(path.Dir(rel)))))
	}
	return results, nil
}

// LoadFromPath 加载单个 Skill 目录
func (l *Loader) LoadFromPath(skillDir string) *LoadResult {
	file := filepath.Join(skillDir, SkillFileName)
	skill, err := l.parser.ParseFile(file)
	if err != nil {
		return &LoadResult{Path: file, Error: err}
	}

	guidelines := filepath.Join(skillDir, GuidelinesDirName)
	if info, err := os.Stat(guidelines); err == nil && info.IsDir() {
		skill = skill.withGuidelinesDir(guidelines)
	}
	return &LoadResult{Skill: skill, Path: file}
}

// loadPublic 加载公共 Skills，按名称排序；解析失败的 Skill 记录日志后跳过，同名时保留路径靠前者
func (l *Loader) loadPublic(dir string) []*Skill {
	results, err := l.LoadFromDir(dir)
	if err != nil {
		klog.Errorf("加载公共 Skills 失败: dir=%s, error=%v", dir, err)
		return nil
	}

	seen := make(map[string]bool, len(results))
	out := make([]*Skill, 0, len(results))
	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
			klog.Warningf("跳过无效 Skill: path=%s, error=%v", r.Path, r.Error)
			continue
		}
		name := r.Skill.Name()
		if seen[name] {
			klog.Warningf("公共 Skill 重名，忽略: name=%s, path=%s", name, r.Path)
			continue
		}
		seen[name] = true
		out = append(out, r.Skill)
		klog.V(6).Infof("发现公共 Skill: %s", name)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	klog.Infof("公共 Skills 加载完成: loaded=%d, failed=%d", len(out), failed)
	return out
}
