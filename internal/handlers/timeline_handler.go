package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/dispatch"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/models"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/repository"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/timeline"
)

// TimelineHandler handles reminder timeline configuration requests
type TimelineHandler struct {
	timelineRepo repository.TimelineRepository
	dispatcher   *dispatch.Dispatcher
}

// NewTimelineHandler creates a new timeline handler
func NewTimelineHandler(timelineRepo repository.TimelineRepository, dispatcher *dispatch.Dispatcher) *TimelineHandler {
	return &TimelineHandler{
		timelineRepo: timelineRepo,
		dispatcher:   dispatcher,
	}
}

// UpdateTimelineRequest represents the request body for replacing the timeline
type UpdateTimelineRequest struct {
	Enabled           *bool                     `json:"enabled"`
	Intervals         []models.ReminderInterval `json:"intervals"`
	NotificationEmail *string                   `json:"notificationEmail"`
}

// TestNotificationRequest represents the request body for a test send
type TestNotificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// Get returns the tenant's timeline, creating the default on first access
func (h *TimelineHandler) Get(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	cfg, err := h.timelineRepo.Get(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get timeline"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    cfg,
	})
}

// Update replaces the tenant's timeline wholesale
func (h *TimelineHandler) Update(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	var req UpdateTimelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	cfg, err := h.timelineRepo.Get(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get timeline"})
		return
	}

	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if req.NotificationEmail != nil {
		cfg.NotificationEmail = *req.NotificationEmail
	}

	// Validate the effective config, not just the incoming intervals. A
	// request that only flips enabled=true must not resurrect a stored
	// empty list.
	effective := req.Intervals
	if effective == nil {
		stored, err := cfg.DecodeIntervals()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode stored intervals"})
			return
		}
		effective = stored
	}
	normalized, err := timeline.Validate(effective, cfg.Enabled)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	encoded, err := models.EncodeIntervals(normalized)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode intervals"})
		return
	}
	cfg.Intervals = encoded

	if err := h.timelineRepo.Put(c.Request.Context(), cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update timeline"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Timeline updated",
		"data":    cfg,
	})
}

// Reset discards any custom configuration and restores the default timeline
func (h *TimelineHandler) Reset(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	cfg, err := h.timelineRepo.ResetToDefault(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset timeline"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Timeline reset to defaults",
		"data":    cfg,
	})
}

// SendTest sends a test reminder email to verify provider configuration
func (h *TimelineHandler) SendTest(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	var req TestNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valid email is required"})
		return
	}

	if err := h.dispatcher.SendTest(c.Request.Context(), tenantID, req.Email); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send test notification: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Test notification sent to " + req.Email,
	})
}
