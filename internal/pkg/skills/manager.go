package skills

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"k8s.io/klog/v2"
)

// Config Skills 引擎配置
type Config struct {
	PublicDir      string
	CacheTTL       time.Duration
	AutoReload     bool
	ReloadDebounce time.Duration
	RemoteTimeout  time.Duration
	MaxInjected    int
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		PublicDir:      "./skills/public",
		CacheTTL:       DefaultCacheTTL,
		AutoReload:     false,
		ReloadDebounce: DefaultReloadDebounce,
		RemoteTimeout:  5 * time.Second,
		MaxInjected:    DefaultMaxSkills,
	}
}

// Manager 组装 Parser、Cache、Registry、Matcher、Injector
type Manager struct {
	Config   *Config
	Parser   *Parser
	Cache    *Cache
	Registry *Registry
	Matcher  TriggerMatcher
	Injector *Injector
	watcher  *FileWatcher
}

// NewManager 创建 Manager
// records 为空时只提供公共 Skills；blobs 为空或未启用时私有/共享 Skills 退化为元数据
func NewManager(config *Config, records RecordStore, blobs BlobReader) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}

	dir, err := filepath.Abs(config.PublicDir)
	if err != nil {
		return nil, err
	}
	config.PublicDir = dir
	klog.V(6).Infof("Skills 目录: %s", dir)

	parser := NewParser()
	cache := NewCache(WithTTL(config.CacheTTL))
	registry := NewRegistry(RegistryOptions{
		PublicDir:     dir,
		Records:       records,
		Blobs:         blobs,
		Cache:         cache,
		Parser:        parser,
		RemoteTimeout: config.RemoteTimeout,
	})
	matcher := NewLexicalMatcher()

	m := &Manager{
		Config:   config,
		Parser:   parser,
		Cache:    cache,
		Registry: registry,
		Matcher:  matcher,
		Injector: NewInjector(registry, matcher),
	}

	if config.AutoReload {
		m.startWatcher()
	}
	return m, nil
}

// startWatcher 启动热加载，失败时只记录日志
func (m *Manager) startWatcher() {
	if _, err := os.Stat(m.Config.PublicDir); err != nil {
		klog.Warningf("Skills 目录不可用，未启用热加载: %v", err)
		return
	}
	w, err := NewFileWatcher(m.Config.PublicDir, m.Config.ReloadDebounce, func() {
		metas := m.Registry.Reload(context.Background())
		klog.Infof("Skills 目录变更，已重新加载 %d 个公共 Skills", len(metas))
	})
	if err != nil {
		klog.Warningf("创建文件监听器失败: %v", err)
		return
	}
	if err := w.Start(); err != nil {
		klog.Warningf("启动文件监听器失败: %v", err)
		return
	}
	m.watcher = w
}

// Stop 停止 Manager
func (m *Manager) Stop() {
	if m.watcher != nil {
		m.watcher.Stop()
	}
}

// MaxInjected 单次请求最多注入的 Skill 数
func (m *Manager) MaxInjected() int {
	if m.Config.MaxInjected <= 0 {
		return DefaultMaxSkills
	}
	return m.Config.MaxInjected
}
