package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askfin/backend/internal/repository"
	"github.com/askfin/backend/internal/service"
)

type mockAnalyticsService struct {
	service.SkillAnalyticsService
	TopSkillsFunc  func(ctx context.Context, periodDays, limit int, userID, teamID string) ([]repository.SkillUsageCount, error)
	SummaryFunc    func(ctx context.Context, periodDays int) (*service.UsageSummary, error)
	UserStatsFunc  func(ctx context.Context, userID string) (*service.UserUsageStats, error)
	SkillStatsFunc func(ctx context.Context, skillName string) (*service.SkillUsageStats, error)
}

func (m *mockAnalyticsService) TopSkills(ctx context.Context, periodDays, limit int, userID, teamID string) ([]repository.SkillUsageCount, error) {
	return m.TopSkillsFunc(ctx, periodDays, limit, userID, teamID)
}

func (m *mockAnalyticsService) Summary(ctx context.Context, periodDays int) (*service.UsageSummary, error) {
	return m.SummaryFunc(ctx, periodDays)
}

func (m *mockAnalyticsService) UserStats(ctx context.Context, userID string) (*service.UserUsageStats, error) {
	return m.UserStatsFunc(ctx, userID)
}

func (m *mockAnalyticsService) SkillStats(ctx context.Context, skillName string) (*service.SkillUsageStats, error) {
	return m.SkillStatsFunc(ctx, skillName)
}

func TestSkillAnalyticsHandler_Top(t *testing.T) {
	var gotDays, gotLimit int
	var gotUser string
	svc := &mockAnalyticsService{
		TopSkillsFunc: func(ctx context.Context, periodDays, limit int, userID, teamID string) ([]repository.SkillUsageCount, error) {
			gotDays, gotLimit, gotUser = periodDays, limit, userID
			return []repository.SkillUsageCount{{SkillName: "gst", SkillSource: "public", UsageCount: 4, AvgConfidence: 0.8}}, nil
		},
	}
	r := newTestRouter(NewSkillAnalyticsHandler(svc).RegisterRoutes)

	w := doRequest(r, http.MethodGet, "/api/skill-analytics/top?days=7&limit=5&user_id=u1", nil, service.Caller{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7, gotDays)
	assert.Equal(t, 5, gotLimit)
	assert.Equal(t, "u1", gotUser)
	assert.Equal(t, float64(1), decode(t, w)["total"])

	w = doRequest(r, http.MethodGet, "/api/skill-analytics/top", nil, service.Caller{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, gotDays)

	w = doRequest(r, http.MethodGet, "/api/skill-analytics/top?days=abc", nil, service.Caller{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doRequest(r, http.MethodGet, "/api/skill-analytics/top?limit=-1", nil, service.Caller{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSkillAnalyticsHandler_Summary(t *testing.T) {
	svc := &mockAnalyticsService{
		SummaryFunc: func(ctx context.Context, periodDays int) (*service.UsageSummary, error) {
			if periodDays == 99 {
				return nil, errors.New("db down")
			}
			return &service.UsageSummary{PeriodDays: 30, TotalUsages: 3, BySource: map[string]int64{"public": 3}}, nil
		},
	}
	r := newTestRouter(NewSkillAnalyticsHandler(svc).RegisterRoutes)

	w := doRequest(r, http.MethodGet, "/api/skill-analytics/summary", nil, service.Caller{})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(3), body["total_usages"])

	w = doRequest(r, http.MethodGet, "/api/skill-analytics/summary?days=99", nil, service.Caller{})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSkillAnalyticsHandler_MyStatsAndSkillStats(t *testing.T) {
	svc := &mockAnalyticsService{
		UserStatsFunc: func(ctx context.Context, userID string) (*service.UserUsageStats, error) {
			return &service.UserUsageStats{UserID: userID, TotalUsages: 2}, nil
		},
		SkillStatsFunc: func(ctx context.Context, skillName string) (*service.SkillUsageStats, error) {
			return &service.SkillUsageStats{SkillName: skillName, TotalUsages: 5}, nil
		},
	}
	r := newTestRouter(NewSkillAnalyticsHandler(svc).RegisterRoutes)

	w := doRequest(r, http.MethodGet, "/api/skill-analytics/me", nil, service.Caller{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(r, http.MethodGet, "/api/skill-analytics/me", nil, service.Caller{UserID: "u1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", decode(t, w)["user_id"])

	w = doRequest(r, http.MethodGet, "/api/skill-analytics/skills/gst", nil, service.Caller{})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "gst", body["skill_name"])
	assert.Equal(t, float64(5), body["total_usages"])
}
