package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/askfin/backend/internal/pkg/blobstore"
	"github.com/askfin/backend/internal/pkg/skills"
	"github.com/askfin/backend/internal/repository"
	"github.com/askfin/backend/internal/service"
)

// statusFor 错误到 HTTP 状态码的映射
func statusFor(err error) int {
	switch {
	case errors.Is(err, skills.ErrValidation),
		errors.Is(err, service.ErrInvalidScope),
		errors.Is(err, service.ErrSkillNameChanged),
		errors.Is(err, blobstore.ErrInvalidScope),
		errors.Is(err, blobstore.ErrInvalidOwner),
		errors.Is(err, blobstore.ErrTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrDuplicateSkill):
		return http.StatusConflict
	case errors.Is(err, service.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, skills.ErrSkillNotFound),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrContentUnavailable),
		errors.Is(err, blobstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrChatNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError 按错误类型返回 {"error": ...}
func respondError(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		klog.Errorf("%s: failed: %v", op, err)
	} else {
		klog.V(6).Infof("%s: %v", op, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
