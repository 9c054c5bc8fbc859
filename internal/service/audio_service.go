package service

import (
	"context"
	"errors"

	"focusbeat/backend/internal/audio"
	apperrors "focusbeat/backend/internal/errors"
	"focusbeat/backend/internal/model"
	"focusbeat/backend/internal/workspace"
)

type AudioService struct {
	manager *workspace.Manager
}

func NewAudioService(manager *workspace.Manager) *AudioService {
	return &AudioService{manager: manager}
}

// GraphView describes the routing graph. Created is false until the first
// play creates the audio context.
type GraphView struct {
	Created      bool            `json:"created"`
	PanAnimating bool            `json:"panAnimating"`
	Topology     *audio.Topology `json:"topology,omitempty"`
}

func (s *AudioService) State(ctx context.Context, profileID string) (*model.AudioEngineState, *apperrors.APIError) {
	return s.apply(ctx, profileID, func(w *workspace.Workspace) model.AudioEngineState {
		return w.Audio.State()
	})
}

func (s *AudioService) Play(ctx context.Context, profileID string) (*model.AudioEngineState, *apperrors.APIError) {
	return s.apply(ctx, profileID, func(w *workspace.Workspace) model.AudioEngineState {
		return w.Audio.Play(ctx)
	})
}

func (s *AudioService) Pause(ctx context.Context, profileID string) (*model.AudioEngineState, *apperrors.APIError) {
	return s.apply(ctx, profileID, func(w *workspace.Workspace) model.AudioEngineState {
		return w.Audio.Pause(ctx)
	})
}

func (s *AudioService) Stop(ctx context.Context, profileID string) (*model.AudioEngineState, *apperrors.APIError) {
	return s.apply(ctx, profileID, func(w *workspace.Workspace) model.AudioEngineState {
		return w.Audio.Stop(ctx)
	})
}

func (s *AudioService) Next(ctx context.Context, profileID string) (*model.AudioEngineState, *apperrors.APIError) {
	return s.apply(ctx, profileID, func(w *workspace.Workspace) model.AudioEngineState {
		return w.Audio.Next(ctx)
	})
}

func (s *AudioService) Previous(ctx context.Context, profileID string) (*model.AudioEngineState, *apperrors.APIError) {
	return s.apply(ctx, profileID, func(w *workspace.Workspace) model.AudioEngineState {
		return w.Audio.Previous(ctx)
	})
}

func (s *AudioService) SetVolume(ctx context.Context, profileID string, level int) (*model.AudioEngineState, *apperrors.APIError) {
	return s.apply(ctx, profileID, func(w *workspace.Workspace) model.AudioEngineState {
		return w.SetVolume(ctx, level)
	})
}

func (s *AudioService) Set8D(ctx context.Context, profileID string, enabled bool) (*model.AudioEngineState, *apperrors.APIError) {
	return s.apply(ctx, profileID, func(w *workspace.Workspace) model.AudioEngineState {
		return w.Set8DEnabled(ctx, enabled)
	})
}

func (s *AudioService) SetMood(ctx context.Context, profileID, mood string) (*model.AudioEngineState, *apperrors.APIError) {
	w, apiErr := openWorkspace(ctx, s.manager, profileID)
	if apiErr != nil {
		return nil, apiErr
	}
	state, err := w.SetMood(ctx, model.Mood(mood))
	if errors.Is(err, audio.ErrUnknownMood) {
		return nil, apperrors.BadRequest("invalid_mood", "mood must be one of happy, neutral, sad")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to change mood")
	}
	return &state, nil
}

func (s *AudioService) Playlist(ctx context.Context, profileID string) (*model.Playlist, *apperrors.APIError) {
	w, apiErr := openWorkspace(ctx, s.manager, profileID)
	if apiErr != nil {
		return nil, apiErr
	}
	playlist := w.Audio.Playlist()
	return &playlist, nil
}

func (s *AudioService) Graph(ctx context.Context, profileID string) (*GraphView, *apperrors.APIError) {
	w, apiErr := openWorkspace(ctx, s.manager, profileID)
	if apiErr != nil {
		return nil, apiErr
	}
	view := GraphView{PanAnimating: w.Audio.PanAnimating()}
	if topology, ok := w.Audio.Graph(); ok {
		view.Created = true
		view.Topology = &topology
	}
	return &view, nil
}

func (s *AudioService) apply(
	ctx context.Context,
	profileID string,
	op func(*workspace.Workspace) model.AudioEngineState,
) (*model.AudioEngineState, *apperrors.APIError) {
	w, apiErr := openWorkspace(ctx, s.manager, profileID)
	if apiErr != nil {
		return nil, apiErr
	}
	state := op(w)
	return &state, nil
}
