package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/askfin/backend/internal/model"
	"github.com/askfin/backend/internal/service"
)

// CustomSkillHandler 自定义 Skill 处理器
type CustomSkillHandler struct {
	service service.CustomSkillService
}

// NewCustomSkillHandler 创建自定义 Skill 处理器
func NewCustomSkillHandler(service service.CustomSkillService) *CustomSkillHandler {
	return &CustomSkillHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *CustomSkillHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/custom-skills", h.List)
	router.POST("/custom-skills", h.Create)
	router.GET("/custom-skills/:id", h.Get)
	router.PUT("/custom-skills/:id", h.Update)
	router.DELETE("/custom-skills/:id", h.Delete)
	router.GET("/custom-skills/:id/content", h.GetContent)
	router.POST("/custom-skills/:id/promote", h.Promote)
}

// CreateCustomSkillRequest 创建请求
type CreateCustomSkillRequest struct {
	Content string `json:"content" binding:"required"`
	Scope   string `json:"scope"` // private/shared，默认 private
}

// UpdateCustomSkillRequest 更新请求
type UpdateCustomSkillRequest struct {
	Content string `json:"content" binding:"required"`
}

// PromoteRequest 共享到团队请求，team_id 为空时使用调用方团队
type PromoteRequest struct {
	TeamID string `json:"team_id"`
}

// List 列出调用方的私有 Skills 和所在团队的共享 Skills
// scope 参数可只返回其中一类
func (h *CustomSkillHandler) List(c *gin.Context) {
	caller := callerFrom(c)
	scope := c.Query("scope")
	ctx := c.Request.Context()

	private := []*model.CustomSkill{}
	shared := []*model.CustomSkill{}
	if caller.UserID != "" && scope != model.SkillScopeShared {
		list, err := h.service.ListUserSkills(ctx, caller.UserID)
		if err != nil {
			respondError(c, "ListCustomSkills", err)
			return
		}
		private = append(private, list...)
	}
	if caller.TeamID != "" && scope != model.SkillScopePrivate {
		list, err := h.service.ListTeamSkills(ctx, caller.TeamID)
		if err != nil {
			respondError(c, "ListCustomSkills", err)
			return
		}
		shared = append(shared, list...)
	}

	c.JSON(http.StatusOK, gin.H{
		"private": private,
		"shared":  shared,
		"total":   len(private) + len(shared),
	})
}

// Create 创建自定义 Skill
func (h *CustomSkillHandler) Create(c *gin.Context) {
	caller, ok := requireUser(c)
	if !ok {
		return
	}
	var req CreateCustomSkillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Scope == "" {
		req.Scope = model.SkillScopePrivate
	}

	rec, err := h.service.Create(c.Request.Context(), &service.CreateSkillRequest{
		Content:   req.Content,
		Scope:     req.Scope,
		UserID:    caller.UserID,
		TeamID:    caller.TeamID,
		CreatedBy: caller.UserID,
	})
	if err != nil {
		respondError(c, "CreateCustomSkill", err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// Get 获取自定义 Skill
func (h *CustomSkillHandler) Get(c *gin.Context) {
	rec, err := h.service.Get(c.Request.Context(), c.Param("id"), callerFrom(c))
	if err != nil {
		respondError(c, "GetCustomSkill", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Update 更新自定义 Skill 内容
func (h *CustomSkillHandler) Update(c *gin.Context) {
	var req UpdateCustomSkillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.service.Update(c.Request.Context(), c.Param("id"), req.Content, callerFrom(c))
	if err != nil {
		respondError(c, "UpdateCustomSkill", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Delete 删除自定义 Skill
func (h *CustomSkillHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), callerFrom(c)); err != nil {
		respondError(c, "DeleteCustomSkill", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted successfully"})
}

// GetContent 获取 SKILL.md 正文
func (h *CustomSkillHandler) GetContent(c *gin.Context) {
	content, err := h.service.GetContent(c.Request.Context(), c.Param("id"), callerFrom(c))
	if err != nil {
		respondError(c, "GetCustomSkillContent", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": content})
}

// Promote 将私有 Skill 共享到团队
func (h *CustomSkillHandler) Promote(c *gin.Context) {
	caller, ok := requireUser(c)
	if !ok {
		return
	}
	var req PromoteRequest
	// 请求体可以为空，格式错误时不回退到调用方团队
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	teamID := req.TeamID
	if teamID == "" {
		teamID = caller.TeamID
	}

	rec, err := h.service.Promote(c.Request.Context(), c.Param("id"), teamID, caller.UserID)
	if err != nil {
		respondError(c, "PromoteCustomSkill", err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}
