package service

import (
	"context"

	apperrors "focusbeat/backend/internal/errors"
	"focusbeat/backend/internal/events"
	"focusbeat/backend/internal/workspace"
)

// EventService exposes a profile's event stream and the notification
// permission that gates what reaches it.
type EventService struct {
	manager *workspace.Manager
}

func NewEventService(manager *workspace.Manager) *EventService {
	return &EventService{manager: manager}
}

type Permission struct {
	Granted bool `json:"granted"`
}

func (s *EventService) Subscribe(ctx context.Context, profileID string) (<-chan events.Event, func(), *apperrors.APIError) {
	w, apiErr := openWorkspace(ctx, s.manager, profileID)
	if apiErr != nil {
		return nil, nil, apiErr
	}
	ch, cancel := w.Events.Subscribe()
	return ch, cancel, nil
}

func (s *EventService) SetNotificationPermission(ctx context.Context, profileID string, granted bool) (*Permission, *apperrors.APIError) {
	w, apiErr := openWorkspace(ctx, s.manager, profileID)
	if apiErr != nil {
		return nil, apiErr
	}
	w.Notifications.SetPermission(granted)
	return &Permission{Granted: w.Notifications.Granted()}, nil
}

func (s *EventService) NotificationPermission(ctx context.Context, profileID string) (*Permission, *apperrors.APIError) {
	w, apiErr := openWorkspace(ctx, s.manager, profileID)
	if apiErr != nil {
		return nil, apiErr
	}
	return &Permission{Granted: w.Notifications.Granted()}, nil
}
