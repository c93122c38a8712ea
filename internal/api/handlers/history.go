package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fieldops/fieldtrace/internal/models"
	"github.com/fieldops/fieldtrace/internal/service"
)

// GetHistory returns the engineer's activity events for a date range,
// reduced to the itinerary view when minStayMinutes is given.
func (h *Handler) GetHistory(c *gin.Context) {
	h.serveHistory(c, true)
}

// GetEvents returns the raw event range without any reduction.
func (h *Handler) GetEvents(c *gin.Context) {
	h.serveHistory(c, false)
}

func (h *Handler) serveHistory(c *gin.Context, filtered bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid engineer ID"})
		return
	}

	minStay := 0
	if filtered {
		if raw := c.Query("minStayMinutes"); raw != "" {
			minStay, err = strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid minStayMinutes"})
				return
			}
		}
	}

	events, err := h.history.GetFilteredHistory(
		c.Request.Context(),
		id,
		c.Query("startDate"),
		c.Query("endDate"),
		minStay,
	)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEngineerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Engineer not found"})
		case errors.Is(err, service.ErrInvalidDate):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD"})
		default:
			h.logger.Error("Failed to get history", zap.Error(err), zap.Int64("engineer_id", id))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get history"})
		}
		return
	}

	if events == nil {
		events = []models.ActivityEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"data": events})
}
