package service

import (
	"context"

	"focusbeat/backend/internal/ads"
	apperrors "focusbeat/backend/internal/errors"
	"focusbeat/backend/internal/model"
	"focusbeat/backend/internal/workspace"
)

type AdService struct {
	manager *workspace.Manager
}

func NewAdService(manager *workspace.Manager) *AdService {
	return &AdService{manager: manager}
}

type AdOverview struct {
	DeviceClass     model.DeviceClass            `json:"deviceClass"`
	AdSenseActive   bool                         `json:"adSenseActive"`
	MobileSlotCount int                          `json:"mobileSlotCount"`
	Slots           []model.AdSlotConfig         `json:"slots"`
	States          map[string]model.AdSlotState `json:"states"`
}

type RegisterResult struct {
	Registered bool              `json:"registered"`
	State      model.AdSlotState `json:"state"`
}

func (s *AdService) Overview(ctx context.Context, profileID string) (*AdOverview, *apperrors.APIError) {
	w, apiErr := openWorkspace(ctx, s.manager, profileID)
	if apiErr != nil {
		return nil, apiErr
	}
	return overview(w.Ads), nil
}

func (s *AdService) SetViewport(ctx context.Context, profileID string, width int) (*AdOverview, *apperrors.APIError) {
	if width <= 0 {
		return nil, apperrors.BadRequest("invalid_width", "width must be positive")
	}
	w, apiErr := openWorkspace(ctx, s.manager, profileID)
	if apiErr != nil {
		return nil, apiErr
	}
	w.Ads.SetViewport(width)
	return overview(w.Ads), nil
}

// RegisterSlot attaches the slot; eager slots start loading in the
// background and report progress on the event stream.
func (s *AdService) RegisterSlot(ctx context.Context, profileID, slotID, elementID string) (*RegisterResult, *apperrors.APIError) {
	w, apiErr := openWorkspace(ctx, s.manager, profileID)
	if apiErr != nil {
		return nil, apiErr
	}
	registered := w.Ads.RegisterSlot(slotID, elementID)
	state, _ := w.Ads.GetSlotState(slotID)
	return &RegisterResult{Registered: registered, State: state}, nil
}

func (s *AdService) UnregisterSlot(ctx context.Context, profileID, slotID string) *apperrors.APIError {
	w, apiErr := openWorkspace(ctx, s.manager, profileID)
	if apiErr != nil {
		return apiErr
	}
	w.Ads.UnregisterSlot(slotID)
	return nil
}

// LoadSlot runs the waterfall and waits for its outcome.
func (s *AdService) LoadSlot(ctx context.Context, profileID, slotID string) (*model.AdSlotState, *apperrors.APIError) {
	w, apiErr := openWorkspace(ctx, s.manager, profileID)
	if apiErr != nil {
		return nil, apiErr
	}
	if _, known := w.Ads.GetSlotState(slotID); !known {
		return nil, apperrors.NotFound("slot_not_found", "ad slot not found")
	}
	state := w.Ads.TriggerLoad(ctx, slotID)
	return &state, nil
}

func (s *AdService) ReportVisibility(ctx context.Context, profileID, elementID string, rect ads.Rect) (bool, *apperrors.APIError) {
	if elementID == "" {
		return false, apperrors.BadRequest("invalid_element", "elementId is required")
	}
	w, apiErr := openWorkspace(ctx, s.manager, profileID)
	if apiErr != nil {
		return false, apiErr
	}
	return w.Ads.ReportVisibility(elementID, rect), nil
}

func (s *AdService) Slot(ctx context.Context, profileID, slotID string) (*model.AdSlotState, *apperrors.APIError) {
	w, apiErr := openWorkspace(ctx, s.manager, profileID)
	if apiErr != nil {
		return nil, apiErr
	}
	state, ok := w.Ads.GetSlotState(slotID)
	if !ok {
		return nil, apperrors.NotFound("slot_not_found", "ad slot not found")
	}
	return &state, nil
}

func overview(o *ads.Orchestrator) *AdOverview {
	return &AdOverview{
		DeviceClass:     o.DeviceClass(),
		AdSenseActive:   o.IsAdSenseActive(),
		MobileSlotCount: o.GetMobileSlotCount(),
		Slots:           o.Slots(),
		States:          o.SlotStates(),
	}
}
