package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/repository"
)

// PreferenceHandler handles agent notification preference requests
type PreferenceHandler struct {
	prefRepo repository.PreferenceRepository
}

// NewPreferenceHandler creates a new preference handler
func NewPreferenceHandler(prefRepo repository.PreferenceRepository) *PreferenceHandler {
	return &PreferenceHandler{
		prefRepo: prefRepo,
	}
}

// UpdatePreferenceRequest represents the request body for updating preferences
type UpdatePreferenceRequest struct {
	EmailEnabled *bool   `json:"emailEnabled"`
	SMSEnabled   *bool   `json:"smsEnabled"`
	PushEnabled  *bool   `json:"pushEnabled"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
}

// UpdatePushTokensRequest represents the request body for replacing push tokens
type UpdatePushTokensRequest struct {
	Tokens []string `json:"tokens"`
}

// Get returns the caller's notification preferences
func (h *PreferenceHandler) Get(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	userIDStr := c.GetString("user_id")
	if tenantID == "" || userIDStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing tenant_id or user_id"})
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}

	preference, err := h.prefRepo.GetByUserID(c.Request.Context(), tenantID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get preferences"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    preference,
	})
}

// Update updates the caller's notification preferences
func (h *PreferenceHandler) Update(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	userIDStr := c.GetString("user_id")
	if tenantID == "" || userIDStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing tenant_id or user_id"})
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}

	var req UpdatePreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	preference, err := h.prefRepo.GetByUserID(c.Request.Context(), tenantID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get preferences"})
		return
	}

	if req.EmailEnabled != nil {
		preference.EmailEnabled = *req.EmailEnabled
	}
	if req.SMSEnabled != nil {
		preference.SMSEnabled = *req.SMSEnabled
	}
	if req.PushEnabled != nil {
		preference.PushEnabled = *req.PushEnabled
	}
	if req.Email != nil {
		preference.Email = *req.Email
	}
	if req.Phone != nil {
		preference.Phone = *req.Phone
	}

	if err := h.prefRepo.Upsert(c.Request.Context(), preference); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update preferences"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Preferences updated",
		"data":    preference,
	})
}

// UpdatePushTokens replaces the caller's FCM push tokens
func (h *PreferenceHandler) UpdatePushTokens(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	userIDStr := c.GetString("user_id")
	if tenantID == "" || userIDStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing tenant_id or user_id"})
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}

	var req UpdatePushTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.prefRepo.UpdatePushTokens(c.Request.Context(), tenantID, userID, req.Tokens); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update push tokens"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Push tokens updated",
	})
}
