package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fieldops/fieldtrace/internal/models"
)

type ingestSample struct {
	Latitude  float64    `json:"latitude" binding:"required"`
	Longitude float64    `json:"longitude" binding:"required"`
	Speed     *float64   `json:"speed"`     // m/s, optional
	Timestamp *time.Time `json:"timestamp"` // optional, defaults to now
}

type ingestRequest struct {
	Samples []ingestSample `json:"samples" binding:"required"`
}

// IngestLocations accepts a batch of GPS pings for one engineer and queues a
// segmentation run.
func (h *Handler) IngestLocations(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid engineer ID"})
		return
	}

	var req ingestRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if len(req.Samples) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty sample batch"})
		return
	}

	eng, err := h.engineers.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get engineer", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get engineer"})
		return
	}
	if eng == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Engineer not found"})
		return
	}

	now := time.Now().UTC()
	samples := make([]*models.LocationSample, len(req.Samples))
	for i, in := range req.Samples {
		recordedAt := now
		if in.Timestamp != nil {
			recordedAt = in.Timestamp.UTC()
		}
		samples[i] = &models.LocationSample{
			EngineerID: id,
			Latitude:   in.Latitude,
			Longitude:  in.Longitude,
			Speed:      in.Speed,
			RecordedAt: recordedAt,
		}
	}

	if err := h.samples.InsertBatch(c.Request.Context(), samples); err != nil {
		h.logger.Error("Failed to insert samples", zap.Error(err), zap.Int64("engineer_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store samples"})
		return
	}

	// Fresh samples are worth segmenting right away.
	h.scheduler.TriggerNow()

	c.JSON(http.StatusAccepted, gin.H{
		"status":   "accepted",
		"received": len(samples),
	})
}
