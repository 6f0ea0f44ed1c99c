package skills

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/askfin/backend/internal/pkg/blobstore"
)

// Record 私有/共享 Skill 的持久化记录视图
type Record struct {
	ID          string
	Name        string
	StorageKey  string
	Source      Source
	UserID      string
	TeamID      string
	Version     string
	ContentHash string
	Description string
	Author      string
	Triggers    []string
	Industries  []string
	Tags        []string
}

// OwnerID private 为 user id，shared 为 team id
func (r Record) OwnerID() string {
	if r.Source == SourceShared {
		return r.TeamID
	}
	return r.UserID
}

// Metadata 由记录构造元数据
func (r Record) Metadata() SkillMetadata {
	version := r.Version
	if version == "" {
		version = DefaultVersion
	}
	return SkillMetadata{
		Name:        r.Name,
		Description: r.Description,
		Version:     version,
		Author:      r.Author,
		Triggers:    nonNil(r.Triggers),
		Industries:  nonNil(r.Industries),
		Tags:        nonNil(r.Tags),
	}
}

// RecordStore Skill 记录查询接口，只返回 active 记录，按 name、id 排序
type RecordStore interface {
	ListActiveByUser(ctx context.Context, userID string) ([]Record, error)
	ListActiveByTeam(ctx context.Context, teamID string) ([]Record, error)
	// FindActive 不存在时返回 (nil, nil)
	FindActive(ctx context.Context, name string, source Source, ownerID string) (*Record, error)
}

// BlobReader 读取 Skill 正文
// Enabled 在构造时确定，禁用状态与下载失败是两种不同的状态
type BlobReader interface {
	Enabled() bool
	Download(ctx context.Context, key string) ([]byte, error)
}

// RegistryOptions Registry 依赖
type RegistryOptions struct {
	// PublicDir 公共 Skills 目录
	PublicDir string
	// Records 为空时不加载私有/共享 Skills
	Records RecordStore
	// Blobs 为空视为禁用
	Blobs  BlobReader
	Cache  *Cache
	Parser *Parser
	// RemoteTimeout 单次 RecordStore/BlobStore 调用超时，0 表示不限制
	RemoteTimeout time.Duration
}

// Registry 汇总 public/private/shared 三个来源的 Skills
// 优先级：private > shared > public
type Registry struct {
	publicDir     string
	loader        *Loader
	parser        *Parser
	records       RecordStore
	blobs         BlobReader
	cache         *Cache
	remoteTimeout time.Duration

	mu     sync.RWMutex
	loaded bool
	public []*Skill
	byName map[string]*Skill
}

// NewRegistry 创建 Registry，公共 Skills 在首次访问时加载
func NewRegistry(opts RegistryOptions) *Registry {
	parser := opts.Parser
	if parser == nil {
		parser = NewParser()
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewCache()
	}
	return &Registry{
		publicDir:     opts.PublicDir,
		loader:        NewLoader(parser),
		parser:        parser,
		records:       opts.Records,
		blobs:         opts.Blobs,
		cache:         cache,
		remoteTimeout: opts.RemoteTimeout,
	}
}

// PublicDir 公共 Skills 目录
func (r *Registry) PublicDir() string {
	return r.publicDir
}

// Cache 返回底层缓存
func (r *Registry) Cache() *Cache {
	return r.cache
}

// DiscoverPublic 返回公共 Skills 的元数据
// 目录扫描每个进程只执行一次，并发的首次调用也只扫描一次
func (r *Registry) DiscoverPublic(ctx context.Context) []SkillMetadata {
	skills := r.PublicSkills(ctx)
	out := make([]SkillMetadata, 0, len(skills))
	for _, s := range skills {
		out = append(out, s.Metadata())
	}
	return out
}

// PublicSkills 返回公共 Skills，按名称排序
func (r *Registry) PublicSkills(ctx context.Context) []*Skill {
	r.ensurePublic()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Skill, len(r.public))
	copy(out, r.public)
	return out
}

// GetPublic 按名称获取公共 Skill
func (r *Registry) GetPublic(ctx context.Context, name string) (*Skill, error) {
	r.ensurePublic()
	r.mu.RLock()
	s, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSkillNotFound, name)
	}
	return s, nil
}

func (r *Registry) ensurePublic() {
	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()
	if loaded {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return
	}
	r.setPublicLocked(r.loader.loadPublic(r.publicDir))
}

func (r *Registry) setPublicLocked(skills []*Skill) {
	r.public = skills
	r.byName = make(map[string]*Skill, len(skills))
	for _, s := range skills {
		r.byName[s.Name()] = s
	}
	r.loaded = true
}

// Reload 重新扫描公共目录并清空缓存
func (r *Registry) Reload(ctx context.Context) []SkillMetadata {
	skills := r.loader.loadPublic(r.publicDir)

	r.mu.Lock()
	r.setPublicLocked(skills)
	r.mu.Unlock()

	r.cache.InvalidateAll()
	klog.V(6).Infof("Skills 已重新加载: public=%d", len(skills))
	return r.DiscoverPublic(ctx)
}

// DiscoverAll 返回调用方可见的全部 Skills，按来源分组
// RecordStore 不可用时对应来源为空，不影响其他来源
func (r *Registry) DiscoverAll(ctx context.Context, userID, teamID string) DiscoveredSkills {
	result := DiscoveredSkills{
		Private: []*Skill{},
		Shared:  []*Skill{},
		Public:  r.PublicSkills(ctx),
	}
	if r.records == nil {
		return result
	}

	if userID != "" {
		records, err := r.listRecords(ctx, SourcePrivate, userID)
		if err != nil {
			klog.Warningf("加载私有 Skills 失败: user_id=%s, error=%v", userID, err)
		}
		for _, rec := range records {
			result.Private = append(result.Private, r.resolveRecord(ctx, rec))
		}
	}

	if teamID != "" {
		records, err := r.listRecords(ctx, SourceShared, teamID)
		if err != nil {
			klog.Warningf("加载共享 Skills 失败: team_id=%s, error=%v", teamID, err)
		}
		for _, rec := range records {
			result.Shared = append(result.Shared, r.resolveRecord(ctx, rec))
		}
	}

	return result
}

// GetWithPriority 按 private → shared → public 顺序查找
func (r *Registry) GetWithPriority(ctx context.Context, name, userID, teamID string) (*Skill, error) {
	if r.records != nil {
		if userID != "" {
			if s := r.findRecordSkill(ctx, name, SourcePrivate, userID); s != nil {
				return s, nil
			}
		}
		if teamID != "" {
			if s := r.findRecordSkill(ctx, name, SourceShared, teamID); s != nil {
				return s, nil
			}
		}
	}
	return r.GetPublic(ctx, name)
}

// SkillsByIndustry 返回支持指定行业的 Skills，同名时高优先级来源生效
func (r *Registry) SkillsByIndustry(ctx context.Context, industry, userID, teamID string) []*Skill {
	industry = strings.ToLower(strings.TrimSpace(industry))
	if industry == "" {
		return nil
	}

	seen := make(map[string]bool)
	out := make([]*Skill, 0)
	for _, group := range r.DiscoverAll(ctx, userID, teamID).InPriorityOrder() {
		for _, s := range group {
			if seen[s.Name()] {
				continue
			}
			seen[s.Name()] = true
			for _, ind := range s.metadata.Industries {
				if strings.ToLower(ind) == industry {
					out = append(out, s)
					break
				}
			}
		}
	}
	return out
}

// Invalidate 清除指定 storage key 的缓存，Skill 变更后必须调用
func (r *Registry) Invalidate(storageKey string) {
	r.cache.Invalidate(storageKey)
}

// InvalidateAll 清空缓存
func (r *Registry) InvalidateAll() {
	r.cache.InvalidateAll()
}

func (r *Registry) listRecords(ctx context.Context, source Source, ownerID string) ([]Record, error) {
	ctx, cancel := r.remoteContext(ctx)
	defer cancel()

	switch source {
	case SourcePrivate:
		return r.records.ListActiveByUser(ctx, ownerID)
	case SourceShared:
		return r.records.ListActiveByTeam(ctx, ownerID)
	case SourcePublic:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown skill source %d", source)
	}
}

func (r *Registry) findRecordSkill(ctx context.Context, name string, source Source, ownerID string) *Skill {
	lookupCtx, cancel := r.remoteContext(ctx)
	rec, err := r.records.FindActive(lookupCtx, name, source, ownerID)
	cancel()
	if err != nil {
		klog.Warningf("查询 Skill 记录失败: name=%s, source=%s, owner=%s, error=%v", name, source, ownerID, err)
		return nil
	}
	if rec == nil {
		return nil
	}
	return r.resolveRecord(ctx, *rec)
}

// resolveRecord 将记录解析为 Skill
// 缓存命中直接返回；BlobStore 禁用、正文缺失、下载失败或解析失败时返回仅含元数据的 Skill，且不缓存
func (r *Registry) resolveRecord(ctx context.Context, rec Record) *Skill {
	if s, ok := r.cache.Get(rec.StorageKey, rec.Metadata().Version); ok {
		return s
	}

	if r.blobs == nil || !r.blobs.Enabled() {
		klog.V(6).Infof("BlobStore 未启用，使用元数据: name=%s, key=%s", rec.Name, rec.StorageKey)
		return r.metadataOnly(rec)
	}

	dlCtx, cancel := r.remoteContext(ctx)
	data, err := r.blobs.Download(dlCtx, rec.StorageKey)
	cancel()
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			klog.Warningf("Skill 正文不存在，使用元数据: key=%s", rec.StorageKey)
		} else {
			klog.Errorf("下载 Skill 正文失败，使用元数据: key=%s, error=%v", rec.StorageKey, err)
		}
		return r.metadataOnly(rec)
	}

	skill, err := r.parser.parse(string(data), blobstore.URI(rec.StorageKey))
	if err != nil {
		klog.Warningf("解析 Skill 正文失败，使用元数据: key=%s, error=%v", rec.StorageKey, err)
		return r.metadataOnly(rec)
	}

	skill = skill.WithOrigin(rec.Source, rec.OwnerID(), rec.StorageKey)
	r.cache.Put(rec.StorageKey, skill)
	return skill
}

func (r *Registry) metadataOnly(rec Record) *Skill {
	return NewMetadataOnlySkill(rec.Metadata(), rec.ID, rec.Source, rec.OwnerID(), rec.StorageKey)
}

func (r *Registry) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.remoteTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.remoteTimeout)
}
