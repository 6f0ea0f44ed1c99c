package main

import (
	"context"
	"flag"
	"log"

	"k8s.io/klog/v2"

	"github.com/askfin/backend/config"
	"github.com/askfin/backend/internal/eventbus"
	"github.com/askfin/backend/internal/handler"
	"github.com/askfin/backend/internal/pkg/blobstore"
	"github.com/askfin/backend/internal/pkg/database"
	"github.com/askfin/backend/internal/pkg/llm"
	"github.com/askfin/backend/internal/pkg/skills"
	"github.com/askfin/backend/internal/repository"
	"github.com/askfin/backend/internal/router"
	"github.com/askfin/backend/internal/service"
	"github.com/askfin/backend/internal/subscriber"
)

func main() {
	// 初始化 klog
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	klog.V(6).Info("服务启动中...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// 初始化数据库
	db, err := database.InitDB(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// 初始化 Repository
	customSkillRepo := repository.NewCustomSkillRepository(db)
	usageRepo := repository.NewSkillUsageRepository(db)

	blobs := blobstore.NewHandle(blobstore.Options{
		Enabled:           cfg.Blob.Enabled,
		Type:              cfg.Blob.Type,
		Dir:               cfg.Blob.Dir,
		R2AccountID:       cfg.Blob.R2AccountID,
		R2AccessKeyID:     cfg.Blob.R2AccessKeyID,
		R2SecretAccessKey: cfg.Blob.R2SecretAccessKey,
		R2Bucket:          cfg.Blob.R2Bucket,
		R2Endpoint:        cfg.Blob.R2Endpoint,
	})

	// 初始化 Skills 引擎
	mgr, err := skills.NewManager(&skills.Config{
		PublicDir:      cfg.Skill.PublicDir,
		CacheTTL:       cfg.Skill.CacheTTL,
		AutoReload:     cfg.Skill.AutoReload,
		ReloadDebounce: cfg.Skill.ReloadDebounce,
		RemoteTimeout:  cfg.Skill.RemoteTimeout,
		MaxInjected:    cfg.Skill.MaxInjected,
	}, repository.NewSkillRecordStore(customSkillRepo), blobs)
	if err != nil {
		log.Fatalf("Failed to initialize skills: %v", err)
	}
	defer mgr.Stop()

	// Skill 变更后同步清除缓存
	bus := eventbus.NewSkillEventBus()
	subscriber.NewSkillCacheSubscriber(mgr.Registry).Register(bus)

	// 初始化 Service
	customSkillService := service.NewCustomSkillService(customSkillRepo, blobs, mgr.Parser, bus)
	analyticsService := service.NewSkillAnalyticsService(usageRepo)
	chatService := service.NewChatService(newChatClient(cfg), mgr.Injector, analyticsService, mgr.MaxInjected())

	// 设置路由
	r := router.Setup(cfg, router.Handlers{
		Skill:       handler.NewSkillHandler(mgr),
		CustomSkill: handler.NewCustomSkillHandler(customSkillService),
		Chat:        handler.NewChatHandler(chatService),
		Analytics:   handler.NewSkillAnalyticsHandler(analyticsService),
	})

	log.Printf("Server starting on port %s...", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// newChatClient 未配置 API Key 时返回 nil，对话接口返回 503
func newChatClient(cfg *config.Config) llm.ChatClient {
	if !cfg.LLM.Enabled() {
		klog.Warningf("未配置 LLM API Key，对话功能不可用")
		return nil
	}
	client, err := llm.NewOpenAIClient(context.Background(), llm.Config{
		BaseURL:   cfg.LLM.APIURL,
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
	})
	if err != nil {
		klog.Errorf("创建 LLM 客户端失败: %v", err)
		return nil
	}
	return client
}
