package service

import (
	"context"
	"errors"

	apperrors "focusbeat/backend/internal/errors"
	"focusbeat/backend/internal/workspace"
)

func openWorkspace(ctx context.Context, manager *workspace.Manager, profileID string) (*workspace.Workspace, *apperrors.APIError) {
	if profileID == "" {
		return nil, apperrors.Unauthorized("")
	}
	w, err := manager.Get(ctx, profileID)
	if errors.Is(err, workspace.ErrManagerClosed) {
		return nil, apperrors.Unavailable("shutting down")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to open workspace")
	}
	return w, nil
}
