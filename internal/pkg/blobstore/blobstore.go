package blobstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// MaxObjectBytes 单个 SKILL.md 最大字节数
const MaxObjectBytes = 100 * 1024

// 预定义错误
var (
	// ErrNotFound 对象不存在
	ErrNotFound = errors.New("blob not found")
	// ErrDisabled 存储未启用
	ErrDisabled = errors.New("blob storage is disabled")
	// ErrTooLarge 对象超过大小限制
	ErrTooLarge = errors.New("skill file exceeds maximum size of 100KB")
	// ErrInvalidScope 无法生成 storage key 的 scope
	ErrInvalidScope = errors.New("invalid scope")
	// ErrInvalidOwner owner id 不能作为单个路径段
	ErrInvalidOwner = errors.New("invalid owner id")
)

// Store 对象存储
type Store interface {
	Upload(ctx context.Context, key string, data []byte) error
	// Download 不存在时返回 ErrNotFound
	Download(ctx context.Context, key string) ([]byte, error)
	// Delete 不存在时不报错
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// ListByPrefix 返回前缀下所有以 /SKILL.md 结尾的 key
	ListByPrefix(ctx context.Context, prefix string) ([]string, error)
}

// StorageKey 生成 Skill 的 storage key
// private: skills/users/<owner>/<name>/SKILL.md
// shared:  skills/teams/<owner>/<name>/SKILL.md
func StorageKey(scope, ownerID, name string) (string, error) {
	if !validOwnerID(ownerID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidOwner, ownerID)
	}
	safe := sanitizeName(name)
	switch scope {
	case "private":
		return fmt.Sprintf("skills/users/%s/%s/SKILL.md", ownerID, safe), nil
	case "shared":
		return fmt.Sprintf("skills/teams/%s/%s/SKILL.md", ownerID, safe), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidScope, scope)
	}
}

// URI Skill 正文的来源标识
func URI(key string) string {
	return "blob://" + key
}

// validOwnerID owner id 来自请求头，不能包含路径分隔符或 ..
func validOwnerID(id string) bool {
	if strings.TrimSpace(id) == "" {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, name)
}

func checkSize(data []byte) error {
	if len(data) > MaxObjectBytes {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	return nil
}

func isSkillKey(key string) bool {
	return strings.HasSuffix(key, "/SKILL.md")
}
