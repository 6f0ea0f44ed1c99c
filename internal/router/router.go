package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/askfin/backend/config"
	"github.com/askfin/backend/internal/handler"
)

// Handlers 需要注册的处理器
type Handlers struct {
	Skill       *handler.SkillHandler
	CustomSkill *handler.CustomSkillHandler
	Chat        *handler.ChatHandler
	Analytics   *handler.SkillAnalyticsHandler
}

func Setup(cfg *config.Config, h Handlers) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", handler.HeaderUserID, handler.HeaderTeamID},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	} else {
		// 带凭证时不能使用 "*"
		corsConfig.AllowOriginFunc = func(origin string) bool { return true }
	}
	r.Use(cors.New(corsConfig))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(handler.CallerMiddleware())
	{
		if h.Skill != nil {
			h.Skill.RegisterRoutes(api)
		}
		if h.CustomSkill != nil {
			h.CustomSkill.RegisterRoutes(api)
		}
		if h.Chat != nil {
			h.Chat.RegisterRoutes(api)
		}
		if h.Analytics != nil {
			h.Analytics.RegisterRoutes(api)
		}
	}

	return r
}
