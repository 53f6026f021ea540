// Package timeline validates and normalizes tenant reminder-interval
// configuration.
package timeline

import (
	"fmt"
	"math"
	"sort"

	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/models"
)

const (
	// MinHours is the smallest accepted lead time (6 minutes).
	MinHours = 0.1
	// MaxHours is the largest accepted lead time (one week).
	MaxHours = 168.0
	// MaxIntervals caps the number of entries in one timeline.
	MaxIntervals = 10
)

// Validate checks a proposed interval list and returns the normalized form:
// hours rounded to 2 decimals, sorted descending. Later entries that round
// to the same value as an earlier one are dropped silently; the timeline is
// advisory UI state, not a hard contract. An empty list is only an error
// while the timeline is enabled.
func Validate(intervals []models.ReminderInterval, enabled bool) ([]models.ReminderInterval, error) {
	if len(intervals) == 0 {
		if enabled {
			return nil, fmt.Errorf("timeline must have at least one interval while enabled")
		}
		return nil, nil
	}
	if len(intervals) > MaxIntervals {
		return nil, fmt.Errorf("timeline cannot have more than %d intervals, got %d", MaxIntervals, len(intervals))
	}

	seen := make(map[string]bool, len(intervals))
	normalized := make([]models.ReminderInterval, 0, len(intervals))
	for _, in := range intervals {
		hours := math.Round(in.Hours*100) / 100
		if hours <= MinHours {
			return nil, fmt.Errorf("interval %g hours is below the minimum of %g", in.Hours, MinHours)
		}
		if hours > MaxHours {
			return nil, fmt.Errorf("interval %g hours exceeds the maximum of %g (one week)", in.Hours, MaxHours)
		}
		key := models.IntervalKey(hours)
		if seen[key] {
			continue
		}
		seen[key] = true
		normalized = append(normalized, models.ReminderInterval{Hours: hours, Label: in.Label})
	}

	sort.Slice(normalized, func(i, j int) bool {
		return normalized[i].Hours > normalized[j].Hours
	})
	return normalized, nil
}

// DefaultIntervals returns the fixed baseline timeline: 24h, 2h, 1h, 30m.
func DefaultIntervals() []models.ReminderInterval {
	return []models.ReminderInterval{
		{Hours: 24, Label: "1 day before"},
		{Hours: 2, Label: "2 hours before"},
		{Hours: 1, Label: "1 hour before"},
		{Hours: 0.5, Label: "30 minutes before"},
	}
}

// Default returns the baseline configuration for a tenant.
func Default(tenantID string) (*models.TimelineConfig, error) {
	encoded, err := models.EncodeIntervals(DefaultIntervals())
	if err != nil {
		return nil, err
	}
	return &models.TimelineConfig{
		TenantID:  tenantID,
		Enabled:   true,
		Intervals: encoded,
	}, nil
}

// MaxLeadTime returns the longest configured lead time in hours, or zero for
// an empty timeline.
func MaxLeadTime(intervals []models.ReminderInterval) float64 {
	var max float64
	for _, in := range intervals {
		if in.Hours > max {
			max = in.Hours
		}
	}
	return max
}
