package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ReminderStatus represents the lifecycle state of a lead reminder
type ReminderStatus string

const (
	ReminderPending  ReminderStatus = "PENDING"
	ReminderResolved ReminderStatus = "RESOLVED"
)

// LeadReminder represents a reminder attached to a lead. One row per
// (lead, due time); rescheduling the due time clears FiredIntervals.
type LeadReminder struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID    string         `json:"tenantId" gorm:"type:varchar(255);not null;uniqueIndex:idx_reminder_lead_tenant"`
	LeadID      uuid.UUID      `json:"leadId" gorm:"type:uuid;not null;uniqueIndex:idx_reminder_lead_tenant"`
	LeadName    string         `json:"leadName" gorm:"type:varchar(500)"`
	OwnerUserID uuid.UUID      `json:"ownerUserId" gorm:"type:uuid;not null;index"`
	DueAt       time.Time      `json:"dueAt" gorm:"not null;index"`
	Note        string         `json:"note" gorm:"type:text"`

	// FiredIntervals is the set of interval keys already notified for the
	// current due time. It only grows; a key is committed exactly once per
	// (lead, dueAt, interval).
	FiredIntervals datatypes.JSON `json:"firedIntervals" gorm:"type:jsonb"`

	Status  ReminderStatus `json:"status" gorm:"type:varchar(20);not null;default:'PENDING';index"`
	// Version guards concurrent commits with compare-and-swap updates.
	Version int `json:"version" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ReminderInterval is a single lead-time entry in a tenant's timeline.
type ReminderInterval struct {
	Hours float64 `json:"hours"`
	Label string  `json:"label"`
}

// Key returns the canonical interval key, hours rounded to 2 decimals.
// "24.00", "2.00", "0.50". Used both for dedup and for FiredIntervals.
func (i ReminderInterval) Key() string {
	return IntervalKey(i.Hours)
}

// IntervalKey formats an hours value as a canonical interval key.
func IntervalKey(hours float64) string {
	return fmt.Sprintf("%.2f", hours)
}

// TimelineConfig holds a tenant's reminder timeline configuration.
// Replaced wholesale on update; reset-to-default is a first-class operation.
type TimelineConfig struct {
	TenantID          string         `json:"tenantId" gorm:"type:varchar(255);primary_key"`
	Enabled           bool           `json:"enabled" gorm:"not null;default:true"`
	Intervals         datatypes.JSON `json:"intervals" gorm:"type:jsonb"`
	NotificationEmail string         `json:"notificationEmail" gorm:"type:varchar(255)"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies table names
func (LeadReminder) TableName() string {
	return "lead_reminders"
}

func (TimelineConfig) TableName() string {
	return "reminder_timeline_configs"
}

// FiredSet decodes FiredIntervals into a lookup set. A nil or malformed
// column decodes as empty, which only risks a duplicate commit attempt that
// the store-level CAS still serializes.
func (r *LeadReminder) FiredSet() map[string]bool {
	set := make(map[string]bool)
	if len(r.FiredIntervals) == 0 {
		return set
	}
	var keys []string
	if err := json.Unmarshal(r.FiredIntervals, &keys); err != nil {
		return set
	}
	for _, k := range keys {
		set[k] = true
	}
	return set
}

// HasFired reports whether the interval key has already been committed.
func (r *LeadReminder) HasFired(key string) bool {
	return r.FiredSet()[key]
}

// WithFired returns the FiredIntervals JSON with key added. Appending an
// already-present key is a no-op.
func (r *LeadReminder) WithFired(key string) datatypes.JSON {
	set := r.FiredSet()
	if set[key] {
		return r.FiredIntervals
	}
	var keys []string
	if len(r.FiredIntervals) > 0 {
		_ = json.Unmarshal(r.FiredIntervals, &keys)
	}
	keys = append(keys, key)
	data, _ := json.Marshal(keys)
	return datatypes.JSON(data)
}

// IsOverdue reports whether the due time has passed.
func (r *LeadReminder) IsOverdue(now time.Time) bool {
	return now.After(r.DueAt)
}

// Intervals decodes the configured timeline entries.
func (c *TimelineConfig) DecodeIntervals() ([]ReminderInterval, error) {
	if len(c.Intervals) == 0 {
		return nil, nil
	}
	var intervals []ReminderInterval
	if err := json.Unmarshal(c.Intervals, &intervals); err != nil {
		return nil, fmt.Errorf("failed to decode timeline intervals: %w", err)
	}
	return intervals, nil
}

// EncodeIntervals marshals timeline entries for storage.
func EncodeIntervals(intervals []ReminderInterval) (datatypes.JSON, error) {
	data, err := json.Marshal(intervals)
	if err != nil {
		return nil, fmt.Errorf("failed to encode timeline intervals: %w", err)
	}
	return datatypes.JSON(data), nil
}
