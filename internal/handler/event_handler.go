package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"focusbeat/backend/internal/service"
)

const defaultKeepAlive = 15 * time.Second

type EventHandler struct {
	eventService *service.EventService
	keepAlive    time.Duration
}

type permissionRequest struct {
	Granted bool `json:"granted"`
}

func NewEventHandler(eventService *service.EventService, keepAlive time.Duration) *EventHandler {
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	return &EventHandler{eventService: eventService, keepAlive: keepAlive}
}

// Stream sends the profile's events as server-sent events until the client
// disconnects or the workspace closes.
func (h *EventHandler) Stream(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}
	ch, cancel, apiErr := h.eventService.Subscribe(c.Request.Context(), id)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent(string(event.Kind), event)
			c.Writer.Flush()
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			c.Writer.Flush()
		}
	}
}

func (h *EventHandler) GetPermission(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}
	permission, apiErr := h.eventService.NotificationPermission(c.Request.Context(), id)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, permission)
}

func (h *EventHandler) SetPermission(c *gin.Context) {
	var req permissionRequest
	if !bindJSON(c, &req) {
		return
	}
	id, ok := profileID(c)
	if !ok {
		return
	}
	permission, apiErr := h.eventService.SetNotificationPermission(c.Request.Context(), id, req.Granted)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, permission)
}
