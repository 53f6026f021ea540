package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/config"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/presence"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, validate origin
		return true
	},
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub      *ws.Hub
	registry *presence.Registry
	config   *config.WebSocketConfig
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *ws.Hub, registry *presence.Registry, cfg *config.WebSocketConfig) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		registry: registry,
		config:   cfg,
	}
}

// Handle upgrades HTTP connection to WebSocket
func (h *WebSocketHandler) Handle(c *gin.Context) {
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

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn, tenantID, userID, h.config, h.registry)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// GetStatus returns the caller's connection and presence state
func (h *WebSocketHandler) GetStatus(c *gin.Context) {
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

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"connected": h.hub.IsUserConnected(tenantID, userIDStr),
		"onPage":    h.registry.IsOnPage(userID),
	})
}
