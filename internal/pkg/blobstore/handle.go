package blobstore

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"
)

// Options 存储配置
type Options struct {
	Enabled bool
	// Type local, r2, memory
	Type string
	// Dir local 类型的根目录
	Dir string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2Bucket          string
	// R2Endpoint 为空时使用 https://<account>.r2.cloudflarestorage.com
	R2Endpoint string
}

// Handle 存储能力，是否启用在构造时确定
// 禁用时所有方法返回 ErrDisabled
type Handle struct {
	store Store
}

// NewHandle 根据配置创建 Handle
// 配置不完整时返回禁用的 Handle 并记录日志，不返回错误
func NewHandle(opts Options) *Handle {
	if !opts.Enabled {
		klog.V(6).Infof("Blob 存储未启用")
		return Disabled()
	}

	store, err := newStore(opts)
	if err != nil {
		klog.Warningf("Blob 存储初始化失败，已禁用: type=%s, error=%v", opts.Type, err)
		return Disabled()
	}
	klog.V(6).Infof("Blob 存储已启用: type=%s", opts.Type)
	return &Handle{store: store}
}

// NewHandleWithStore 使用已有的 Store 创建启用的 Handle
func NewHandleWithStore(store Store) *Handle {
	return &Handle{store: store}
}

// Disabled 返回禁用的 Handle
func Disabled() *Handle {
	return &Handle{}
}

func newStore(opts Options) (Store, error) {
	switch opts.Type {
	case "", "local":
		return NewLocalStore(opts.Dir)
	case "memory":
		return NewMemoryStore(), nil
	case "r2":
		return NewR2Store(R2Options{
			AccountID:       opts.R2AccountID,
			AccessKeyID:     opts.R2AccessKeyID,
			SecretAccessKey: opts.R2SecretAccessKey,
			Bucket:          opts.R2Bucket,
			Endpoint:        opts.R2Endpoint,
		})
	default:
		return nil, fmt.Errorf("unsupported blob store type: %s", opts.Type)
	}
}

// Enabled 是否启用
func (h *Handle) Enabled() bool {
	return h != nil && h.store != nil
}

func (h *Handle) Upload(ctx context.Context, key string, data []byte) error {
	if !h.Enabled() {
		return ErrDisabled
	}
	if err := checkSize(data); err != nil {
		return err
	}
	return h.store.Upload(ctx, key, data)
}

func (h *Handle) Download(ctx context.Context, key string) ([]byte, error) {
	if !h.Enabled() {
		return nil, ErrDisabled
	}
	return h.store.Download(ctx, key)
}

func (h *Handle) Delete(ctx context.Context, key string) error {
	if !h.Enabled() {
		return ErrDisabled
	}
	return h.store.Delete(ctx, key)
}

func (h *Handle) Exists(ctx context.Context, key string) (bool, error) {
	if !h.Enabled() {
		return false, ErrDisabled
	}
	return h.store.Exists(ctx, key)
}

func (h *Handle) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	if !h.Enabled() {
		return nil, ErrDisabled
	}
	return h.store.ListByPrefix(ctx, prefix)
}
