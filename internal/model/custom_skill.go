package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Skill 作用域
const (
	SkillScopePrivate = "private"
	SkillScopeShared  = "shared"
)

// ErrInvalidSkillOwner 所有者与作用域不匹配
var ErrInvalidSkillOwner = errors.New("custom skill must have exactly one of user_id or team_id matching its scope")

// CustomSkill 用户或团队自定义的 Skill 元数据，正文存放在对象存储中
type CustomSkill struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	UserID      *string   `json:"user_id,omitempty" gorm:"size:64;index:idx_custom_skills_user"`
	TeamID      *string   `json:"team_id,omitempty" gorm:"size:64;index:idx_custom_skills_team"`
	CreatedBy   string    `json:"created_by" gorm:"size:64"`
	Name        string    `json:"name" gorm:"size:64;not null;index:idx_custom_skills_name"`
	Description string    `json:"description" gorm:"type:text"`
	Version     string    `json:"version" gorm:"size:32;default:'1.0.0'"`
	Author      string    `json:"author" gorm:"size:255"`
	Triggers    []string  `json:"triggers" gorm:"type:text;serializer:json"`
	Industries  []string  `json:"industries" gorm:"type:text;serializer:json"`
	Tags        []string  `json:"tags" gorm:"type:text;serializer:json"`
	StorageKey  string    `json:"storage_key" gorm:"size:512;uniqueIndex;not null"`
	Scope       string    `json:"scope" gorm:"size:16;not null"` // private, shared
	IsActive    bool      `json:"is_active" gorm:"default:true;index:idx_custom_skills_active"`
	ContentHash string    `json:"content_hash" gorm:"size:64"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 指定表名
func (CustomSkill) TableName() string {
	return "custom_skills"
}

// OwnerID 私有 Skill 返回 user_id，共享 Skill 返回 team_id
func (s *CustomSkill) OwnerID() string {
	switch s.Scope {
	case SkillScopePrivate:
		return deref(s.UserID)
	case SkillScopeShared:
		return deref(s.TeamID)
	}
	return ""
}

// CheckOwner 校验恰好设置了 user_id 或 team_id 之一，且与 scope 一致
func (s *CustomSkill) CheckOwner() error {
	hasUser := deref(s.UserID) != ""
	hasTeam := deref(s.TeamID) != ""
	switch {
	case s.Scope == SkillScopePrivate && hasUser && !hasTeam:
		return nil
	case s.Scope == SkillScopeShared && hasTeam && !hasUser:
		return nil
	}
	return ErrInvalidSkillOwner
}

// BeforeCreate GORM 钩子：生成 ID 并校验所有者
func (s *CustomSkill) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return s.CheckOwner()
}

// BeforeSave GORM 钩子：保存前校验所有者
func (s *CustomSkill) BeforeSave(tx *gorm.DB) error {
	return s.CheckOwner()
}

// StringPtr 空字符串返回 nil
func StringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
