package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeReminder  MessageType = "reminder"
	MessageTypePong      MessageType = "pong"
	MessageTypeError     MessageType = "error"
	MessageTypeConnected MessageType = "connected"
)

// OutgoingMessage represents a message sent to clients
type OutgoingMessage struct {
	Type MessageType `json:"type"`
	Data interface{} `json:"data"`
}

// IncomingMessage represents a message received from clients
type IncomingMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ConnectedData represents the data sent on connection
type ConnectedData struct {
	ClientID string `json:"client_id"`
	Message  string `json:"message"`
}

// ErrorData represents error message data
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Hub manages all WebSocket client connections
type Hub struct {
	// clients maps tenantID -> userID -> clientID -> Client
	clients map[string]map[string]map[string]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	shutdown chan struct{}

	// OnUserDisconnected fires when a user's last connection closes. The
	// presence registry hangs off this.
	OnUserDisconnected func(tenantID, userID string)
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		shutdown:   make(chan struct{}),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case <-h.shutdown:
			h.closeAllClients()
			return
		}
	}
}

// Shutdown gracefully shuts down the hub
func (h *Hub) Shutdown() {
	close(h.shutdown)
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tenantID := client.TenantID
	userID := client.UserID.String()
	clientID := client.ID

	if h.clients[tenantID] == nil {
		h.clients[tenantID] = make(map[string]map[string]*Client)
	}
	if h.clients[tenantID][userID] == nil {
		h.clients[tenantID][userID] = make(map[string]*Client)
	}

	h.clients[tenantID][userID][clientID] = client
	log.Printf("Client registered: tenant=%s, user=%s, client=%s", tenantID, userID, clientID)

	client.SendMessage(&OutgoingMessage{
		Type: MessageTypeConnected,
		Data: ConnectedData{
			ClientID: clientID,
			Message:  "Connected to reminder stream",
		},
	})
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()

	tenantID := client.TenantID
	userID := client.UserID.String()
	clientID := client.ID
	lastForUser := false

	if h.clients[tenantID] != nil && h.clients[tenantID][userID] != nil {
		if _, ok := h.clients[tenantID][userID][clientID]; ok {
			delete(h.clients[tenantID][userID], clientID)
			close(client.send)
			log.Printf("Client unregistered: tenant=%s, user=%s, client=%s", tenantID, userID, clientID)

			if len(h.clients[tenantID][userID]) == 0 {
				delete(h.clients[tenantID], userID)
				lastForUser = true
			}
			if len(h.clients[tenantID]) == 0 {
				delete(h.clients, tenantID)
			}
		}
	}
	h.mu.Unlock()

	if lastForUser && h.OnUserDisconnected != nil {
		h.OnUserDisconnected(tenantID, userID)
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, users := range h.clients {
		for _, clients := range users {
			for _, client := range clients {
				close(client.send)
			}
		}
	}
	h.clients = make(map[string]map[string]map[string]*Client)
}

// BroadcastToUser sends a reminder payload to all connected clients of a
// user. Returns false when the user has no open connection.
func (h *Hub) BroadcastToUser(tenantID, userID string, payload interface{}) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.clients[tenantID] == nil || len(h.clients[tenantID][userID]) == 0 {
		return false
	}

	message := &OutgoingMessage{
		Type: MessageTypeReminder,
		Data: payload,
	}
	for _, client := range h.clients[tenantID][userID] {
		client.SendMessage(message)
	}
	return true
}

// IsUserConnected checks if a user has any connected clients
func (h *Hub) IsUserConnected(tenantID, userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.clients[tenantID] == nil || h.clients[tenantID][userID] == nil {
		return false
	}
	return len(h.clients[tenantID][userID]) > 0
}

// GetConnectedUserCount returns the number of connected users for a tenant
func (h *Hub) GetConnectedUserCount(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.clients[tenantID] == nil {
		return 0
	}
	return len(h.clients[tenantID])
}

// PingAllClients sends an application-level ping to all connected clients
func (h *Hub) PingAllClients() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	message := &OutgoingMessage{
		Type: MessageTypePong,
		Data: map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}

	for _, users := range h.clients {
		for _, clients := range users {
			for _, client := range clients {
				client.SendMessage(message)
			}
		}
	}
}
