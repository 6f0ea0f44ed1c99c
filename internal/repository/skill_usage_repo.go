package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/askfin/backend/internal/model"
)

// UsageFilter 用量查询条件，零值字段不参与过滤
type UsageFilter struct {
	Since     time.Time
	UserID    string
	TeamID    string
	SkillName string
}

// SkillUsageCount 按 Skill 聚合的用量
type SkillUsageCount struct {
	SkillName     string  `json:"skill_name"`
	SkillSource   string  `json:"skill_source"`
	UsageCount    int64   `json:"usage_count"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// TriggerCount 按 trigger 聚合的用量
type TriggerCount struct {
	Trigger string `json:"trigger"`
	Count   int64  `json:"count"`
}

// SkillUsageRepository Skill 用量仓储接口
type SkillUsageRepository interface {
	Create(ctx context.Context, usage *model.SkillUsage) error

	// Count 统计记录数
	Count(ctx context.Context, f UsageFilter) (int64, error)

	// CountDistinctSkills 统计不同 Skill 数
	CountDistinctSkills(ctx context.Context, f UsageFilter) (int64, error)

	// CountDistinctUsers 统计不同用户数
	CountDistinctUsers(ctx context.Context, f UsageFilter) (int64, error)

	// CountBySource 按来源统计
	CountBySource(ctx context.Context, f UsageFilter) (map[string]int64, error)

	// TopSkills 按使用次数降序
	TopSkills(ctx context.Context, f UsageFilter, limit int) ([]SkillUsageCount, error)

	// TopTriggers 按次数降序，忽略空 trigger
	TopTriggers(ctx context.Context, f UsageFilter, limit int) ([]TriggerCount, error)

	// AvgConfidence 平均置信度，没有记录时为 0
	AvgConfidence(ctx context.Context, f UsageFilter) (float64, error)

	// CreatedTimes 返回匹配记录的创建时间
	CreatedTimes(ctx context.Context, f UsageFilter) ([]time.Time, error)
}

type skillUsageRepository struct {
	db *gorm.DB
}

// NewSkillUsageRepository 创建 Skill 用量仓储
func NewSkillUsageRepository(db *gorm.DB) SkillUsageRepository {
	return &skillUsageRepository{db: db}
}

func (r *skillUsageRepository) scoped(ctx context.Context, f UsageFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.SkillUsage{})
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.TeamID != "" {
		q = q.Where("team_id = ?", f.TeamID)
	}
	if f.SkillName != "" {
		q = q.Where("skill_name = ?", f.SkillName)
	}
	return q
}

func (r *skillUsageRepository) Create(ctx context.Context, usage *model.SkillUsage) error {
	return r.db.WithContext(ctx).Create(usage).Error
}

func (r *skillUsageRepository) Count(ctx context.Context, f UsageFilter) (int64, error) {
	var n int64
	err := r.scoped(ctx, f).Count(&n).Error
	return n, err
}

func (r *skillUsageRepository) CountDistinctSkills(ctx context.Context, f UsageFilter) (int64, error) {
	var n int64
	err := r.scoped(ctx, f).Distinct("skill_name").Count(&n).Error
	return n, err
}

func (r *skillUsageRepository) CountDistinctUsers(ctx context.Context, f UsageFilter) (int64, error) {
	var n int64
	err := r.scoped(ctx, f).Where("user_id IS NOT NULL").Distinct("user_id").Count(&n).Error
	return n, err
}

func (r *skillUsageRepository) CountBySource(ctx context.Context, f UsageFilter) (map[string]int64, error) {
	type row struct {
		SkillSource string
		Count       int64
	}
	var rows []row
	err := r.scoped(ctx, f).
		Select("skill_source, COUNT(*) AS count").
		Group("skill_source").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, rw := range rows {
		out[rw.SkillSource] = rw.Count
	}
	return out, nil
}

func (r *skillUsageRepository) TopSkills(ctx context.Context, f UsageFilter, limit int) ([]SkillUsageCount, error) {
	var rows []SkillUsageCount
	err := r.scoped(ctx, f).
		Select("skill_name, skill_source, COUNT(*) AS usage_count, COALESCE(AVG(confidence), 0) AS avg_confidence").
		Group("skill_name, skill_source").
		Order("usage_count DESC, skill_name ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *skillUsageRepository) TopTriggers(ctx context.Context, f UsageFilter, limit int) ([]TriggerCount, error) {
	var rows []TriggerCount
	err := r.scoped(ctx, f).
		Select("`trigger`, COUNT(*) AS count").
		Where("`trigger` IS NOT NULL AND `trigger` <> ''").
		Group("`trigger`").
		Order("count DESC, `trigger` ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *skillUsageRepository) AvgConfidence(ctx context.Context, f UsageFilter) (float64, error) {
	var avg float64
	err := r.scoped(ctx, f).
		Select("COALESCE(AVG(confidence), 0)").
		Scan(&avg).Error
	return avg, err
}

func (r *skillUsageRepository) CreatedTimes(ctx context.Context, f UsageFilter) ([]time.Time, error) {
	var times []time.Time
	err := r.scoped(ctx, f).Order("created_at ASC").Pluck("created_at", &times).Error
	return times, err
}
