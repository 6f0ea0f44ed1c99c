package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"k8s.io/klog/v2"

	"github.com/askfin/backend/internal/model"
	"github.com/askfin/backend/internal/repository"
)

// 默认统计区间
const (
	DefaultUsagePeriodDays = 30
	DefaultTopSkillsLimit  = 10
)

// UsageEvent 一次 Skill 使用
type UsageEvent struct {
	SkillName      string
	SkillSource    string
	UserID         string
	TeamID         string
	Trigger        string
	Confidence     *float64
	ConversationID string
}

// UserUsageStats 用户维度统计
type UserUsageStats struct {
	UserID         string                       `json:"user_id"`
	TotalUsages    int64                        `json:"total_usages"`
	SkillsUsed     int64                        `json:"skills_used"`
	TopSkills      []repository.SkillUsageCount `json:"top_skills"`
	RecentActivity map[string]int64             `json:"recent_activity"`
	BySource       map[string]int64             `json:"by_source"`
}

// DailyCount 单日使用次数
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// SkillUsageStats Skill 维度统计
type SkillUsageStats struct {
	SkillName     string                    `json:"skill_name"`
	TotalUsages   int64                     `json:"total_usages"`
	UniqueUsers   int64                     `json:"unique_users"`
	AvgConfidence float64                   `json:"avg_confidence"`
	UsageTrend    []DailyCount              `json:"usage_trend"`
	TopTriggers   []repository.TriggerCount `json:"top_triggers"`
}

// UsageSummary 全局统计
type UsageSummary struct {
	PeriodDays   int              `json:"period_days"`
	TotalUsages  int64            `json:"total_usages"`
	ActiveSkills int64            `json:"active_skills"`
	ActiveUsers  int64            `json:"active_users"`
	BySource     map[string]int64 `json:"by_source"`
}

// SkillAnalyticsService Skill 使用统计服务接口
type SkillAnalyticsService interface {
	// LogUsage 记录一次使用
	LogUsage(ctx context.Context, event UsageEvent) (*model.SkillUsage, error)

	// TopSkills 区间内使用最多的 Skill
	TopSkills(ctx context.Context, periodDays, limit int, userID, teamID string) ([]repository.SkillUsageCount, error)

	// UserStats 用户使用统计
	UserStats(ctx context.Context, userID string) (*UserUsageStats, error)

	// SkillStats 单个 Skill 的使用统计
	SkillStats(ctx context.Context, skillName string) (*SkillUsageStats, error)

	// Summary 区间内全局统计
	Summary(ctx context.Context, periodDays int) (*UsageSummary, error)
}

type skillAnalyticsService struct {
	repo repository.SkillUsageRepository
	now  func() time.Time
}

// NewSkillAnalyticsService 创建 Skill 使用统计服务
func NewSkillAnalyticsService(repo repository.SkillUsageRepository) SkillAnalyticsService {
	return &skillAnalyticsService{repo: repo, now: time.Now}
}

func (s *skillAnalyticsService) LogUsage(ctx context.Context, event UsageEvent) (*model.SkillUsage, error) {
	if event.SkillName == "" || event.SkillSource == "" {
		return nil, fmt.Errorf("skill_name 和 skill_source 不能为空")
	}
	usage := &model.SkillUsage{
		SkillName:      event.SkillName,
		SkillSource:    event.SkillSource,
		UserID:         model.StringPtr(event.UserID),
		TeamID:         model.StringPtr(event.TeamID),
		Trigger:        model.StringPtr(event.Trigger),
		Confidence:     event.Confidence,
		ConversationID: model.StringPtr(event.ConversationID),
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.Create(ctx, usage); err != nil {
		klog.V(6).Infof("Skill 使用记录失败: skill=%s, err=%v", event.SkillName, err)
		return nil, err
	}
	klog.V(6).Infof("Skill 使用记录成功: skill=%s, source=%s, user=%s", event.SkillName, event.SkillSource, event.UserID)
	return usage, nil
}

func (s *skillAnalyticsService) TopSkills(ctx context.Context, periodDays, limit int, userID, teamID string) ([]repository.SkillUsageCount, error) {
	if periodDays <= 0 {
		periodDays = DefaultUsagePeriodDays
	}
	if limit <= 0 {
		limit = DefaultTopSkillsLimit
	}
	rows, err := s.repo.TopSkills(ctx, repository.UsageFilter{
		Since:  s.since(periodDays),
		UserID: userID,
		TeamID: teamID,
	}, limit)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].AvgConfidence = round3(rows[i].AvgConfidence)
	}
	return rows, nil
}

func (s *skillAnalyticsService) UserStats(ctx context.Context, userID string) (*UserUsageStats, error) {
	all := repository.UsageFilter{UserID: userID}

	total, err := s.repo.Count(ctx, all)
	if err != nil {
		return nil, err
	}
	skillsUsed, err := s.repo.CountDistinctSkills(ctx, all)
	if err != nil {
		return nil, err
	}
	top, err := s.TopSkills(ctx, 90, 5, userID, "")
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.Count(ctx, repository.UsageFilter{UserID: userID, Since: s.since(7)})
	if err != nil {
		return nil, err
	}
	bySource, err := s.repo.CountBySource(ctx, all)
	if err != nil {
		return nil, err
	}

	return &UserUsageStats{
		UserID:         userID,
		TotalUsages:    total,
		SkillsUsed:     skillsUsed,
		TopSkills:      top,
		RecentActivity: map[string]int64{"last_7_days": recent},
		BySource:       bySource,
	}, nil
}

func (s *skillAnalyticsService) SkillStats(ctx context.Context, skillName string) (*SkillUsageStats, error) {
	all := repository.UsageFilter{SkillName: skillName}

	total, err := s.repo.Count(ctx, all)
	if err != nil {
		return nil, err
	}
	users, err := s.repo.CountDistinctUsers(ctx, all)
	if err != nil {
		return nil, err
	}
	avg, err := s.repo.AvgConfidence(ctx, all)
	if err != nil {
		return nil, err
	}
	times, err := s.repo.CreatedTimes(ctx, repository.UsageFilter{SkillName: skillName, Since: s.since(30)})
	if err != nil {
		return nil, err
	}
	triggers, err := s.repo.TopTriggers(ctx, all, 5)
	if err != nil {
		return nil, err
	}

	return &SkillUsageStats{
		SkillName:     skillName,
		TotalUsages:   total,
		UniqueUsers:   users,
		AvgConfidence: round3(avg),
		UsageTrend:    dailyTrend(times),
		TopTriggers:   triggers,
	}, nil
}

func (s *skillAnalyticsService) Summary(ctx context.Context, periodDays int) (*UsageSummary, error) {
	if periodDays <= 0 {
		periodDays = DefaultUsagePeriodDays
	}
	f := repository.UsageFilter{Since: s.since(periodDays)}

	total, err := s.repo.Count(ctx, f)
	if err != nil {
		return nil, err
	}
	activeSkills, err := s.repo.CountDistinctSkills(ctx, f)
	if err != nil {
		return nil, err
	}
	activeUsers, err := s.repo.CountDistinctUsers(ctx, f)
	if err != nil {
		return nil, err
	}
	bySource, err := s.repo.CountBySource(ctx, f)
	if err != nil {
		return nil, err
	}

	return &UsageSummary{
		PeriodDays:   periodDays,
		TotalUsages:  total,
		ActiveSkills: activeSkills,
		ActiveUsers:  activeUsers,
		BySource:     bySource,
	}, nil
}

func (s *skillAnalyticsService) since(days int) time.Time {
	return s.now().UTC().AddDate(0, 0, -days)
}

// dailyTrend 按 UTC 日期聚合，times 已按时间升序
func dailyTrend(times []time.Time) []DailyCount {
	trend := make([]DailyCount, 0)
	for _, t := range times {
		day := t.UTC().Format("2006-01-02")
		if n := len(trend); n > 0 && trend[n-1].Date == day {
			trend[n-1].Count++
			continue
		}
		trend = append(trend, DailyCount{Date: day, Count: 1})
	}
	return trend
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
