package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/askfin/backend/internal/service"
)

// 调用方身份请求头，由上游网关写入
const (
	HeaderUserID = "X-User-ID"
	HeaderTeamID = "X-Team-ID"
)

const callerKey = "skills.caller"

// CallerMiddleware 从请求头读取调用方身份
func CallerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(callerKey, service.Caller{
			UserID: strings.TrimSpace(c.GetHeader(HeaderUserID)),
			TeamID: strings.TrimSpace(c.GetHeader(HeaderTeamID)),
		})
		c.Next()
	}
}

// callerFrom 未经过中间件时直接读请求头
func callerFrom(c *gin.Context) service.Caller {
	if v, ok := c.Get(callerKey); ok {
		if caller, ok := v.(service.Caller); ok {
			return caller
		}
	}
	return service.Caller{
		UserID: strings.TrimSpace(c.GetHeader(HeaderUserID)),
		TeamID: strings.TrimSpace(c.GetHeader(HeaderTeamID)),
	}
}

// requireUser 缺少用户身份时返回 401
func requireUser(c *gin.Context) (service.Caller, bool) {
	caller := callerFrom(c)
	if caller.UserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing " + HeaderUserID + " header"})
		return caller, false
	}
	return caller, true
}
