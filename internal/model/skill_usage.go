package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SkillUsage 一次 Skill 注入记录
type SkillUsage struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	SkillName      string    `json:"skill_name" gorm:"size:64;not null;index:idx_skill_usages_name"`
	SkillSource    string    `json:"skill_source" gorm:"size:16;not null"` // public, private, shared
	UserID         *string   `json:"user_id,omitempty" gorm:"size:64;index:idx_skill_usages_user"`
	TeamID         *string   `json:"team_id,omitempty" gorm:"size:64;index:idx_skill_usages_team"`
	Trigger        *string   `json:"trigger,omitempty" gorm:"size:255"`
	Confidence     *float64  `json:"confidence,omitempty"`
	ConversationID *string   `json:"conversation_id,omitempty" gorm:"size:64"`
	CreatedAt      time.Time `json:"created_at" gorm:"index:idx_skill_usages_created_at"`
}

// TableName 指定表名
func (SkillUsage) TableName() string {
	return "skill_usages"
}

// BeforeCreate GORM 钩子：生成 ID
func (u *SkillUsage) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
