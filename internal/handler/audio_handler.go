package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "focusbeat/backend/internal/errors"
	"focusbeat/backend/internal/model"
	"focusbeat/backend/internal/service"
)

type AudioHandler struct {
	audioService *service.AudioService
}

type volumeRequest struct {
	Level *int `json:"level"`
}

type spatialRequest struct {
	Enabled *bool `json:"enabled"`
}

type moodRequest struct {
	Mood string `json:"mood"`
}

func NewAudioHandler(audioService *service.AudioService) *AudioHandler {
	return &AudioHandler{audioService: audioService}
}

type audioOp func(ctx context.Context, profileID string) (*model.AudioEngineState, *apperrors.APIError)

func (h *AudioHandler) respond(c *gin.Context, op audioOp) {
	id, ok := profileID(c)
	if !ok {
		return
	}
	state, apiErr := op(c.Request.Context(), id)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audio": state})
}

func (h *AudioHandler) GetState(c *gin.Context) {
	h.respond(c, h.audioService.State)
}

func (h *AudioHandler) Play(c *gin.Context) {
	h.respond(c, h.audioService.Play)
}

func (h *AudioHandler) Pause(c *gin.Context) {
	h.respond(c, h.audioService.Pause)
}

func (h *AudioHandler) Stop(c *gin.Context) {
	h.respond(c, h.audioService.Stop)
}

func (h *AudioHandler) Next(c *gin.Context) {
	h.respond(c, h.audioService.Next)
}

func (h *AudioHandler) Previous(c *gin.Context) {
	h.respond(c, h.audioService.Previous)
}

func (h *AudioHandler) SetVolume(c *gin.Context) {
	var req volumeRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Level == nil {
		writeError(c, apperrors.BadRequest("invalid_volume", "level is required"))
		return
	}
	h.respond(c, func(ctx context.Context, id string) (*model.AudioEngineState, *apperrors.APIError) {
		return h.audioService.SetVolume(ctx, id, *req.Level)
	})
}

func (h *AudioHandler) Set8D(c *gin.Context) {
	var req spatialRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Enabled == nil {
		writeError(c, apperrors.BadRequest("invalid_8d", "enabled is required"))
		return
	}
	h.respond(c, func(ctx context.Context, id string) (*model.AudioEngineState, *apperrors.APIError) {
		return h.audioService.Set8D(ctx, id, *req.Enabled)
	})
}

func (h *AudioHandler) SetMood(c *gin.Context) {
	var req moodRequest
	if !bindJSON(c, &req) {
		return
	}
	h.respond(c, func(ctx context.Context, id string) (*model.AudioEngineState, *apperrors.APIError) {
		return h.audioService.SetMood(ctx, id, req.Mood)
	})
}

func (h *AudioHandler) GetPlaylist(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}
	playlist, apiErr := h.audioService.Playlist(c.Request.Context(), id)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"playlist": playlist})
}

func (h *AudioHandler) GetGraph(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}
	graph, apiErr := h.audioService.Graph(c.Request.Context(), id)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"graph": graph})
}
