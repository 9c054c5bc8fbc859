package service

import (
	"context"

	apperrors "focusbeat/backend/internal/errors"
	"focusbeat/backend/internal/model"
	"focusbeat/backend/internal/stats"
	"focusbeat/backend/internal/workspace"
)

const defaultStatsDays = 7

type StatsService struct {
	manager *workspace.Manager
}

func NewStatsService(manager *workspace.Manager) *StatsService {
	return &StatsService{manager: manager}
}

type StatsRange struct {
	Days         []model.DailyStats `json:"days"`
	TotalFocusMs int64              `json:"totalFocusMs"`
	SessionCount int                `json:"sessionCount"`
	Streak       int                `json:"streak"`
}

func (s *StatsService) Today(ctx context.Context, profileID string) (*model.DailyStats, *apperrors.APIError) {
	w, apiErr := openWorkspace(ctx, s.manager, profileID)
	if apiErr != nil {
		return nil, apiErr
	}
	day := w.Stats.Today(ctx, w.Now())
	return &day, nil
}

// Range returns the last days days, today included. days outside
// [1, stats.MaxRangeDays] is rejected; zero means the default week.
func (s *StatsService) Range(ctx context.Context, profileID string, days int) (*StatsRange, *apperrors.APIError) {
	if days == 0 {
		days = defaultStatsDays
	}
	if days < 0 || days > stats.MaxRangeDays {
		return nil, apperrors.BadRequest("invalid_days", "days must be between 1 and 90")
	}
	w, apiErr := openWorkspace(ctx, s.manager, profileID)
	if apiErr != nil {
		return nil, apiErr
	}

	now := w.Now()
	result := StatsRange{
		Days:   w.Stats.Range(ctx, now, days),
		Streak: w.Stats.Streak(ctx, now),
	}
	for _, day := range result.Days {
		result.TotalFocusMs += day.TotalFocusMs
		result.SessionCount += day.SessionCount
	}
	return &result, nil
}

func (s *StatsService) LastSession(ctx context.Context, profileID string) (*model.SessionData, *apperrors.APIError) {
	w, apiErr := openWorkspace(ctx, s.manager, profileID)
	if apiErr != nil {
		return nil, apiErr
	}
	session, ok := w.Stats.LastSession(ctx)
	if !ok {
		return nil, apperrors.NotFound("no_sessions", "no session recorded yet")
	}
	return &session, nil
}
