package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	natsc "github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/nats"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db         *gorm.DB
	natsClient *natsc.Client
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *gorm.DB, natsClient *natsc.Client) *HealthHandler {
	return &HealthHandler{
		db:         db,
		natsClient: natsClient,
	}
}

// SetNATSClient updates the NATS client (used for deferred connection)
func (h *HealthHandler) SetNATSClient(client *natsc.Client) {
	h.natsClient = client
}

// Health returns basic health status
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "reminder-service",
	})
}

// Livez returns liveness status
func (h *HealthHandler) Livez(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

// Readyz returns readiness status
func (h *HealthHandler) Readyz(c *gin.Context) {
	status := "ready"
	httpStatus := http.StatusOK

	checks := make(map[string]string)

	// Check database
	sqlDB, err := h.db.DB()
	if err != nil {
		checks["database"] = "error: " + err.Error()
		status = "not ready"
		httpStatus = http.StatusServiceUnavailable
	} else if err := sqlDB.Ping(); err != nil {
		checks["database"] = "error: " + err.Error()
		status = "not ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "connected"
	}

	// NATS is optional; the scheduler and REST API work without lead events.
	if h.natsClient != nil && h.natsClient.IsConnected() {
		checks["nats"] = "connected"
	} else {
		checks["nats"] = "disconnected (optional)"
	}

	c.JSON(httpStatus, gin.H{
		"status": status,
		"checks": checks,
	})
}
