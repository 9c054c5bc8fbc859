package service

import (
	"context"
	"errors"
	"time"

	apperrors "focusbeat/backend/internal/errors"
	"focusbeat/backend/internal/model"
	"focusbeat/backend/internal/timer"
	"focusbeat/backend/internal/workspace"
)

type TimerService struct {
	manager *workspace.Manager
}

func NewTimerService(manager *workspace.Manager) *TimerService {
	return &TimerService{manager: manager}
}

type DurationsInput struct {
	WorkMs  int64
	BreakMs int64
}

func (s *TimerService) State(ctx context.Context, profileID string) (*timer.View, *apperrors.APIError) {
	return s.apply(ctx, profileID, (*timer.Engine).View)
}

func (s *TimerService) Start(ctx context.Context, profileID string) (*timer.View, *apperrors.APIError) {
	return s.apply(ctx, profileID, (*timer.Engine).Start)
}

func (s *TimerService) Pause(ctx context.Context, profileID string) (*timer.View, *apperrors.APIError) {
	return s.apply(ctx, profileID, (*timer.Engine).Pause)
}

func (s *TimerService) Resume(ctx context.Context, profileID string) (*timer.View, *apperrors.APIError) {
	return s.apply(ctx, profileID, (*timer.Engine).Resume)
}

func (s *TimerService) Stop(ctx context.Context, profileID string) (*timer.View, *apperrors.APIError) {
	return s.apply(ctx, profileID, (*timer.Engine).Stop)
}

func (s *TimerService) Reset(ctx context.Context, profileID string) (*timer.View, *apperrors.APIError) {
	return s.apply(ctx, profileID, (*timer.Engine).Reset)
}

func (s *TimerService) SetMode(ctx context.Context, profileID, mode string) (*timer.View, *apperrors.APIError) {
	w, apiErr := openWorkspace(ctx, s.manager, profileID)
	if apiErr != nil {
		return nil, apiErr
	}
	view, err := w.SetTimerMode(ctx, model.TimerMode(mode))
	if err != nil {
		return nil, timerError(err, view)
	}
	return &view, nil
}

func (s *TimerService) SetDurations(ctx context.Context, profileID string, input DurationsInput) (*timer.View, *apperrors.APIError) {
	w, apiErr := openWorkspace(ctx, s.manager, profileID)
	if apiErr != nil {
		return nil, apiErr
	}
	view, err := w.Timer.SetDurations(ctx, timer.Durations{
		Work:  time.Duration(input.WorkMs) * time.Millisecond,
		Break: time.Duration(input.BreakMs) * time.Millisecond,
	})
	if err != nil {
		return nil, timerError(err, view)
	}
	return &view, nil
}

func (s *TimerService) apply(
	ctx context.Context,
	profileID string,
	op func(*timer.Engine, context.Context) timer.View,
) (*timer.View, *apperrors.APIError) {
	w, apiErr := openWorkspace(ctx, s.manager, profileID)
	if apiErr != nil {
		return nil, apiErr
	}
	view := op(w.Timer, ctx)
	return &view, nil
}

func timerError(err error, view timer.View) *apperrors.APIError {
	switch {
	case errors.Is(err, timer.ErrInvalidMode):
		return apperrors.BadRequest("invalid_mode", "mode must be one of stopwatch, pomodoro")
	case errors.Is(err, timer.ErrInvalidDurations):
		return apperrors.BadRequest("invalid_durations", "work and break durations must be positive")
	case errors.Is(err, timer.ErrModeLocked):
		return apperrors.Conflict("timer_busy", "timer must be idle", map[string]interface{}{
			"timer": view,
		})
	default:
		return apperrors.Internal("timer update failed")
	}
}
