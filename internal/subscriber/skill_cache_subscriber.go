package subscriber

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/askfin/backend/internal/eventbus"
)

// SkillCacheSubscriber 自定义 Skill 变更后清除本进程缓存
type SkillCacheSubscriber struct {
	cache skillCacheInvalidator
}

type skillCacheInvalidator interface {
	Invalidate(storageKey string)
}

func NewSkillCacheSubscriber(cache skillCacheInvalidator) *SkillCacheSubscriber {
	return &SkillCacheSubscriber{cache: cache}
}

func (s *SkillCacheSubscriber) Register(bus *eventbus.SkillEventBus) {
	if bus == nil {
		return
	}
	for _, t := range eventbus.AllSkillEventTypes {
		bus.Subscribe(t, s.handle)
	}
}

func (s *SkillCacheSubscriber) handle(ctx context.Context, event eventbus.SkillEvent) error {
	if event.StorageKey == "" {
		return fmt.Errorf("storage key 为空")
	}
	s.cache.Invalidate(event.StorageKey)
	klog.V(6).Infof("Skill 缓存已失效: type=%s, name=%s, key=%s", event.Type, event.Name, event.StorageKey)
	return nil
}
