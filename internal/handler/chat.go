package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/askfin/backend/internal/service"
)

// ChatHandler 对话处理器
type ChatHandler struct {
	service service.ChatService
}

// NewChatHandler 创建对话处理器
func NewChatHandler(service service.ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *ChatHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/chat", h.Send)
	router.POST("/chat/preview", h.Preview)
}

// Send 发送消息
func (h *ChatHandler) Send(c *gin.Context) {
	var req service.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	caller := callerFrom(c)
	req.UserID = caller.UserID
	req.TeamID = caller.TeamID

	resp, err := h.service.SendMessage(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "SendMessage", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Preview 预览消息会触发的 Skills
func (h *ChatHandler) Preview(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	caller := callerFrom(c)
	previews := h.service.PreviewSkills(c.Request.Context(), req.Message, caller.UserID, caller.TeamID)
	c.JSON(http.StatusOK, gin.H{"skills": previews, "total": len(previews)})
}
