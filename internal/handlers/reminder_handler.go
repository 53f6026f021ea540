package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/repository"
)

// ReminderHandler handles lead reminder HTTP requests
type ReminderHandler struct {
	reminderRepo repository.ReminderRepository
	deliveryRepo repository.DeliveryLogRepository
}

// NewReminderHandler creates a new reminder handler
func NewReminderHandler(reminderRepo repository.ReminderRepository, deliveryRepo repository.DeliveryLogRepository) *ReminderHandler {
	return &ReminderHandler{
		reminderRepo: reminderRepo,
		deliveryRepo: deliveryRepo,
	}
}

// List returns upcoming pending reminders for the tenant
func (h *ReminderHandler) List(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	withinHours := 24
	if v := c.Query("within_hours"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			withinHours = parsed
		}
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	reminders, err := h.reminderRepo.ListUpcoming(c.Request.Context(), tenantID, time.Duration(withinHours)*time.Hour, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list reminders"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    reminders,
		"count":   len(reminders),
	})
}

// Get returns a single reminder by ID
func (h *ReminderHandler) Get(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reminder ID"})
		return
	}

	reminder, err := h.reminderRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get reminder"})
		return
	}
	if reminder == nil || reminder.TenantID != tenantID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Reminder not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    reminder,
	})
}

// Cancel resolves a pending reminder early
func (h *ReminderHandler) Cancel(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reminder ID"})
		return
	}

	if err := h.reminderRepo.Cancel(c.Request.Context(), tenantID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Reminder not found or already resolved"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel reminder"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Reminder cancelled",
	})
}

// Deliveries returns the delivery log for a reminder
func (h *ReminderHandler) Deliveries(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reminder ID"})
		return
	}

	logs, err := h.deliveryRepo.ListByReminder(c.Request.Context(), tenantID, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list deliveries"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    logs,
		"count":   len(logs),
	})
}
