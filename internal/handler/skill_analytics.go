package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/askfin/backend/internal/service"
)

// SkillAnalyticsHandler Skill 使用统计处理器
type SkillAnalyticsHandler struct {
	service service.SkillAnalyticsService
}

// NewSkillAnalyticsHandler 创建统计处理器
func NewSkillAnalyticsHandler(service service.SkillAnalyticsService) *SkillAnalyticsHandler {
	return &SkillAnalyticsHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *SkillAnalyticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/skill-analytics/top", h.Top)
	router.GET("/skill-analytics/summary", h.Summary)
	router.GET("/skill-analytics/me", h.MyStats)
	router.GET("/skill-analytics/skills/:name", h.SkillStats)
}

// Top 区间内使用最多的 Skills，可按 user_id/team_id 过滤
func (h *SkillAnalyticsHandler) Top(c *gin.Context) {
	days, ok := intQuery(c, "days")
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}
	rows, err := h.service.TopSkills(c.Request.Context(), days, limit, c.Query("user_id"), c.Query("team_id"))
	if err != nil {
		respondError(c, "TopSkills", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "total": len(rows)})
}

// Summary 全局统计
func (h *SkillAnalyticsHandler) Summary(c *gin.Context) {
	days, ok := intQuery(c, "days")
	if !ok {
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), days)
	if err != nil {
		respondError(c, "SkillUsageSummary", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// MyStats 调用方的使用统计
func (h *SkillAnalyticsHandler) MyStats(c *gin.Context) {
	caller, ok := requireUser(c)
	if !ok {
		return
	}
	stats, err := h.service.UserStats(c.Request.Context(), caller.UserID)
	if err != nil {
		respondError(c, "UserSkillStats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// SkillStats 单个 Skill 的使用统计
func (h *SkillAnalyticsHandler) SkillStats(c *gin.Context) {
	stats, err := h.service.SkillStats(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, "SkillStats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// intQuery 解析可选的整数参数，缺省为 0
func intQuery(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return 0, false
	}
	return v, true
}
