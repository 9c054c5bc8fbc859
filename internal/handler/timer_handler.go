package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "focusbeat/backend/internal/errors"
	"focusbeat/backend/internal/service"
	"focusbeat/backend/internal/timer"
)

type TimerHandler struct {
	timerService *service.TimerService
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type durationsRequest struct {
	WorkMs  int64 `json:"workMs"`
	BreakMs int64 `json:"breakMs"`
}

func NewTimerHandler(timerService *service.TimerService) *TimerHandler {
	return &TimerHandler{timerService: timerService}
}

type timerOp func(ctx context.Context, profileID string) (*timer.View, *apperrors.APIError)

func (h *TimerHandler) respond(c *gin.Context, op timerOp) {
	id, ok := profileID(c)
	if !ok {
		return
	}
	view, apiErr := op(c.Request.Context(), id)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timer": view})
}

func (h *TimerHandler) GetState(c *gin.Context) {
	h.respond(c, h.timerService.State)
}

func (h *TimerHandler) Start(c *gin.Context) {
	h.respond(c, h.timerService.Start)
}

func (h *TimerHandler) Pause(c *gin.Context) {
	h.respond(c, h.timerService.Pause)
}

func (h *TimerHandler) Resume(c *gin.Context) {
	h.respond(c, h.timerService.Resume)
}

func (h *TimerHandler) Stop(c *gin.Context) {
	h.respond(c, h.timerService.Stop)
}

func (h *TimerHandler) Reset(c *gin.Context) {
	h.respond(c, h.timerService.Reset)
}

func (h *TimerHandler) SetMode(c *gin.Context) {
	var req modeRequest
	if !bindJSON(c, &req) {
		return
	}
	h.respond(c, func(ctx context.Context, id string) (*timer.View, *apperrors.APIError) {
		return h.timerService.SetMode(ctx, id, req.Mode)
	})
}

func (h *TimerHandler) SetDurations(c *gin.Context) {
	var req durationsRequest
	if !bindJSON(c, &req) {
		return
	}
	h.respond(c, func(ctx context.Context, id string) (*timer.View, *apperrors.APIError) {
		return h.timerService.SetDurations(ctx, id, service.DurationsInput{
			WorkMs:  req.WorkMs,
			BreakMs: req.BreakMs,
		})
	})
}
