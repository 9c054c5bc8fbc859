package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"focusbeat/backend/internal/ads"
	"focusbeat/backend/internal/service"
)

type AdHandler struct {
	adService *service.AdService
}

type viewportRequest struct {
	Width int `json:"width"`
}

type registerSlotRequest struct {
	ElementID string `json:"elementId"`
}

type visibilityRequest struct {
	ElementID      string `json:"elementId"`
	Top            int    `json:"top"`
	Bottom         int    `json:"bottom"`
	ViewportHeight int    `json:"viewportHeight"`
}

func NewAdHandler(adService *service.AdService) *AdHandler {
	return &AdHandler{adService: adService}
}

func (h *AdHandler) Overview(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}
	overview, apiErr := h.adService.Overview(c.Request.Context(), id)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ads": overview})
}

func (h *AdHandler) SetViewport(c *gin.Context) {
	var req viewportRequest
	if !bindJSON(c, &req) {
		return
	}
	id, ok := profileID(c)
	if !ok {
		return
	}
	overview, apiErr := h.adService.SetViewport(c.Request.Context(), id, req.Width)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ads": overview})
}

func (h *AdHandler) RegisterSlot(c *gin.Context) {
	var req registerSlotRequest
	if !bindJSON(c, &req) {
		return
	}
	id, ok := profileID(c)
	if !ok {
		return
	}
	result, apiErr := h.adService.RegisterSlot(c.Request.Context(), id, c.Param("id"), req.ElementID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *AdHandler) UnregisterSlot(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}
	if apiErr := h.adService.UnregisterSlot(c.Request.Context(), id, c.Param("id")); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdHandler) LoadSlot(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}
	state, apiErr := h.adService.LoadSlot(c.Request.Context(), id, c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slot": state})
}

func (h *AdHandler) GetSlot(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}
	state, apiErr := h.adService.Slot(c.Request.Context(), id, c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slot": state})
}

func (h *AdHandler) ReportVisibility(c *gin.Context) {
	var req visibilityRequest
	if !bindJSON(c, &req) {
		return
	}
	id, ok := profileID(c)
	if !ok {
		return
	}
	triggered, apiErr := h.adService.ReportVisibility(c.Request.Context(), id, req.ElementID, ads.Rect{
		Top:            req.Top,
		Bottom:         req.Bottom,
		ViewportHeight: req.ViewportHeight,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"triggered": triggered})
}
