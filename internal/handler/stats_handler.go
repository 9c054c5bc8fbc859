package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "focusbeat/backend/internal/errors"
	"focusbeat/backend/internal/service"
)

type StatsHandler struct {
	statsService *service.StatsService
}

func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

func (h *StatsHandler) Today(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}
	day, apiErr := h.statsService.Today(c.Request.Context(), id)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"today": day})
}

func (h *StatsHandler) Range(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}

	days := 0
	if rawDays := c.Query("days"); rawDays != "" {
		parsed, err := strconv.Atoi(rawDays)
		if err != nil {
			writeError(c, apperrors.BadRequest("invalid_days", "days must be a number"))
			return
		}
		days = parsed
	}

	result, apiErr := h.statsService.Range(c.Request.Context(), id, days)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": result})
}

func (h *StatsHandler) LastSession(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}
	session, apiErr := h.statsService.LastSession(c.Request.Context(), id)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}
