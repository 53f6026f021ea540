package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/config"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/presence"
)

// Client represents a single WebSocket connection
type Client struct {
	ID       string
	TenantID string
	UserID   uuid.UUID
	Hub      *Hub
	Conn     *websocket.Conn
	send     chan []byte
	config   *config.WebSocketConfig
	presence *presence.Registry
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, tenantID string, userID uuid.UUID, cfg *config.WebSocketConfig, registry *presence.Registry) *Client {
	return &Client{
		ID:       uuid.New().String(),
		TenantID: tenantID,
		UserID:   userID,
		Hub:      hub,
		Conn:     conn,
		send:     make(chan []byte, 256),
		config:   cfg,
		presence: registry,
	}
}

// SendMessage sends a message to the client
func (c *Client) SendMessage(msg *OutgoingMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	select {
	case c.send <- data:
	default:
		// Buffer full, skip message
		log.Printf("Client send buffer full, skipping message: client=%s", c.ID)
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		if c.presence != nil {
			c.presence.Touch(c.UserID)
		}
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				// Hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(message []byte) {
	var msg IncomingMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendError("INVALID_JSON", "Failed to parse message")
		return
	}

	switch msg.Type {
	case "ping":
		if c.presence != nil {
			c.presence.Touch(c.UserID)
		}
		c.SendMessage(&OutgoingMessage{
			Type: MessageTypePong,
			Data: map[string]interface{}{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			},
		})

	case "page_enter":
		if c.presence != nil {
			c.presence.MarkOnPage(c.UserID, c.ID)
		}

	case "page_leave":
		if c.presence != nil {
			c.presence.MarkOffPage(c.UserID)
		}

	case "heartbeat":
		if c.presence != nil {
			c.presence.Touch(c.UserID)
		}

	default:
		c.sendError("UNKNOWN_TYPE", "Unknown message type: "+msg.Type)
	}
}

func (c *Client) sendError(code, message string) {
	c.SendMessage(&OutgoingMessage{
		Type: MessageTypeError,
		Data: ErrorData{
			Code:    code,
			Message: message,
		},
	})
}
