package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/askfin/backend/internal/pkg/skills"
)

// SkillHandler Skill 查询与预览处理器
type SkillHandler struct {
	registry *skills.Registry
	injector *skills.Injector
	parser   *skills.Parser
}

// NewSkillHandler 创建 Skill 处理器
func NewSkillHandler(mgr *skills.Manager) *SkillHandler {
	return &SkillHandler{registry: mgr.Registry, injector: mgr.Injector, parser: mgr.Parser}
}

// RegisterRoutes 注册路由
func (h *SkillHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/skills", h.List)
	router.GET("/skills/:name", h.Get)
	router.GET("/skills/industry/:industry", h.ByIndustry)
	router.POST("/skills/preview", h.Preview)
	router.POST("/skills/validate", h.Validate)
	router.POST("/skills/reload", h.Reload)
}

// PreviewRequest 预览请求
type PreviewRequest struct {
	Message string `json:"message" binding:"required"`
}

// ValidateRequest 校验请求
type ValidateRequest struct {
	Content string `json:"content"`
}

// List 列出调用方可见的全部 Skills
func (h *SkillHandler) List(c *gin.Context) {
	caller := callerFrom(c)
	found := h.registry.DiscoverAll(c.Request.Context(), caller.UserID, caller.TeamID)
	c.JSON(http.StatusOK, gin.H{
		"private": found.Private,
		"shared":  found.Shared,
		"public":  found.Public,
		"total":   found.Count(),
	})
}

// Get 按优先级获取 Skill
func (h *SkillHandler) Get(c *gin.Context) {
	caller := callerFrom(c)
	skill, err := h.registry.GetWithPriority(c.Request.Context(), c.Param("name"), caller.UserID, caller.TeamID)
	if err != nil {
		respondError(c, "GetSkill", err)
		return
	}
	c.JSON(http.StatusOK, skill)
}

// ByIndustry 列出支持某行业的 Skills
func (h *SkillHandler) ByIndustry(c *gin.Context) {
	caller := callerFrom(c)
	list := h.registry.SkillsByIndustry(c.Request.Context(), c.Param("industry"), caller.UserID, caller.TeamID)
	if list == nil {
		list = []*skills.Skill{}
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": len(list)})
}

// Preview 预览消息会触发的 Skills
func (h *SkillHandler) Preview(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	caller := callerFrom(c)
	previews := h.injector.PreviewSkills(c.Request.Context(), req.Message, caller.UserID, caller.TeamID)
	c.JSON(http.StatusOK, gin.H{"skills": previews, "total": len(previews)})
}

// Validate 校验 SKILL.md 内容，校验失败也返回 200
func (h *SkillHandler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	skill, err := h.parser.Parse(req.Content)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "metadata": skill.Metadata()})
}

// Reload 重新加载公共 Skills
func (h *SkillHandler) Reload(c *gin.Context) {
	metas := h.registry.Reload(c.Request.Context())
	klog.V(6).Infof("Reload: 公共 Skills 已重新加载: count=%d", len(metas))
	c.JSON(http.StatusOK, gin.H{"skills": metas, "total": len(metas)})
}
