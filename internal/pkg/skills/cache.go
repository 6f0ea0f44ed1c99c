package skills

import (
	"sync"
	"time"

	"k8s.io/klog/v2"
)

// DefaultCacheTTL 缓存默认有效期
const DefaultCacheTTL = 300 * time.Second

// cacheEntry 缓存条目
type cacheEntry struct {
	skill    *Skill
	cachedAt time.Time
}

// Cache 按 storage key 缓存从 BlobStore 加载的 Skill
// 条目在 TTL 内且版本与记录一致时才视为命中，否则在读取时淘汰
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// CacheOption 缓存选项
type CacheOption func(*Cache)

// WithTTL 设置有效期，非正值使用默认值
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock 替换时钟（测试使用）
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCache 创建缓存
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     DefaultCacheTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL 返回有效期
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get 获取缓存
// 过期或版本不一致都视为未命中，并淘汰该条目
func (c *Cache) Get(storageKey, expectedVersion string) (*Skill, bool) {
	c.mu.RLock()
	entry, ok := c.entries[storageKey]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.now().Sub(entry.cachedAt) < c.ttl && entry.skill.Version() == expectedVersion {
		return entry.skill, true
	}

	c.mu.Lock()
	// 仅淘汰本次观察到的条目，避免误删并发 Put 写入的新条目
	if cur, ok := c.entries[storageKey]; ok && cur == entry {
		delete(c.entries, storageKey)
	}
	c.mu.Unlock()

	klog.V(6).Infof("Skill 缓存失效: key=%s, expected_version=%s", storageKey, expectedVersion)
	return nil, false
}

// Put 写入缓存，同一 key 后写覆盖
func (c *Cache) Put(storageKey string, skill *Skill) {
	if skill == nil {
		return
	}
	c.mu.Lock()
	c.entries[storageKey] = cacheEntry{skill: skill, cachedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate 删除指定 key，不存在时无操作
func (c *Cache) Invalidate(storageKey string) {
	c.mu.Lock()
	delete(c.entries, storageKey)
	c.mu.Unlock()
	klog.V(6).Infof("Skill 缓存已清除: key=%s", storageKey)
}

// InvalidateAll 清空缓存
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
	klog.V(6).Infof("Skill 缓存已全部清除")
}

// Len 当前条目数（含尚未淘汰的过期条目）
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
