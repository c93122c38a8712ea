package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fieldops/fieldtrace/internal/models"
)

type createEngineerRequest struct {
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone"`
	Timezone string `json:"timezone"`
}

// CreateEngineer registers a new engineer.
func (h *Handler) CreateEngineer(c *gin.Context) {
	var req createEngineerRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown timezone"})
		return
	}

	eng := &models.Engineer{
		Name:     req.Name,
		Phone:    req.Phone,
		Timezone: req.Timezone,
	}
	if err := h.engineers.Create(c.Request.Context(), eng); err != nil {
		h.logger.Error("Failed to create engineer", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create engineer"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": eng})
}

// ListEngineers returns all engineers.
func (h *Handler) ListEngineers(c *gin.Context) {
	engineers, err := h.engineers.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list engineers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list engineers"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": engineers})
}

// GetEngineer returns one engineer.
func (h *Handler) GetEngineer(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid engineer ID"})
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

	c.JSON(http.StatusOK, gin.H{"data": eng})
}
