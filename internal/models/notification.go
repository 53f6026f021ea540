package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// NotificationChannel represents the delivery channel
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "EMAIL"
	ChannelSMS   NotificationChannel = "SMS"
	ChannelPush  NotificationChannel = "PUSH"
	ChannelInApp NotificationChannel = "IN_APP"
)

// DeliveryStatus represents the outcome of a dispatch attempt
type DeliveryStatus string

const (
	DeliverySent       DeliveryStatus = "SENT"
	DeliveryFailed     DeliveryStatus = "FAILED"
	DeliverySuppressed DeliveryStatus = "SUPPRESSED" // owner on page, in-app only
	DeliverySkipped    DeliveryStatus = "SKIPPED"    // rate limited or no recipient
)

// DeliveryLog is the audit trail for reminder dispatch attempts. Failures
// land here too; a committed interval is never retried.
type DeliveryLog struct {
	ID           uuid.UUID           `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID     string              `json:"tenantId" gorm:"type:varchar(255);not null;index"`
	ReminderID   uuid.UUID           `json:"reminderId" gorm:"type:uuid;not null;index"`
	LeadID       uuid.UUID           `json:"leadId" gorm:"type:uuid;not null;index"`
	OwnerUserID  uuid.UUID           `json:"ownerUserId" gorm:"type:uuid;not null"`
	IntervalKey  string              `json:"intervalKey" gorm:"type:varchar(20);not null"`
	Channel      NotificationChannel `json:"channel" gorm:"type:varchar(20);not null"`
	Status       DeliveryStatus      `json:"status" gorm:"type:varchar(20);not null"`
	Provider     string              `json:"provider" gorm:"type:varchar(100)"`
	ProviderID   string              `json:"providerId" gorm:"type:varchar(255)"`
	ErrorMessage string              `json:"errorMessage" gorm:"type:text"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// AgentPreference holds an agent's notification contact details and channel
// opt-ins. Reminder emails fall back to the tenant's notification email when
// the agent has no address on file.
type AgentPreference struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID string    `json:"tenantId" gorm:"type:varchar(255);not null;index"`
	UserID   uuid.UUID `json:"userId" gorm:"type:uuid;not null;uniqueIndex:idx_agent_pref_user_tenant"`

	// Channel preferences
	EmailEnabled bool `json:"emailEnabled" gorm:"default:true"`
	SMSEnabled   bool `json:"smsEnabled" gorm:"default:false"`
	PushEnabled  bool `json:"pushEnabled" gorm:"default:true"`

	// Contact information
	Email string `json:"email" gorm:"type:varchar(255)"`
	Phone string `json:"phone" gorm:"type:varchar(50)"`

	// Push tokens
	PushTokens datatypes.JSON `json:"pushTokens" gorm:"type:jsonb"` // Array of FCM tokens

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies table names
func (DeliveryLog) TableName() string {
	return "reminder_delivery_logs"
}

func (AgentPreference) TableName() string {
	return "agent_notification_preferences"
}

// Tokens decodes the stored FCM token list.
func (p *AgentPreference) Tokens() []string {
	if len(p.PushTokens) == 0 {
		return nil
	}
	var tokens []string
	if err := json.Unmarshal(p.PushTokens, &tokens); err != nil {
		return nil
	}
	return tokens
}
