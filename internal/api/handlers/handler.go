package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fieldops/fieldtrace/internal/service"
	"github.com/fieldops/fieldtrace/pkg/ws"
)

// Handler holds the HTTP surface's dependencies.
type Handler struct {
	logger    *zap.Logger
	engineers service.EngineerStore
	samples   service.SampleStore
	history   *service.HistoryService
	scheduler *service.Scheduler
	wsHub     *ws.Hub
	upgrader  websocket.Upgrader
}

// NewHandler creates the handler.
func NewHandler(
	logger *zap.Logger,
	engineers service.EngineerStore,
	samples service.SampleStore,
	history *service.HistoryService,
	scheduler *service.Scheduler,
	wsHub *ws.Hub,
) *Handler {
	return &Handler{
		logger:    logger,
		engineers: engineers,
		samples:   samples,
		history:   history,
		scheduler: scheduler,
		wsHub:     wsHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // viewers connect from the dashboard origin
			},
		},
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		// engineers
		api.POST("/engineers", h.CreateEngineer)
		api.GET("/engineers", h.ListEngineers)
		api.GET("/engineers/:id", h.GetEngineer)

		// location ingest
		api.POST("/engineers/:id/locations", h.IngestLocations)

		// activity history
		api.GET("/engineers/:id/history", h.GetHistory)
		api.GET("/engineers/:id/events", h.GetEvents)

		// segmentation trigger
		api.POST("/process", h.TriggerProcessing)
	}

	// WebSocket
	r.GET("/ws", h.HandleWebSocket)

	// Health check
	r.GET("/health", h.HealthCheck)
}

// TriggerProcessing kicks off a segmentation run and acknowledges
// immediately; the actual processing happens asynchronously.
func (h *Handler) TriggerProcessing(c *gin.Context) {
	h.scheduler.TriggerNow()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// HandleWebSocket upgrades the connection and attaches it to the hub.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	client.Register()

	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck reports liveness.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"ws_clients": h.wsHub.ClientCount(),
	})
}
