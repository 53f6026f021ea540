package timeline

import (
	"testing"

	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/models"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		intervals []models.ReminderInterval
		enabled   bool
		wantKeys  []string
		wantErr   bool
	}{
		{
			name:      "default timeline passes",
			intervals: DefaultIntervals(),
			enabled:   true,
			wantKeys:  []string{"24.00", "2.00", "1.00", "0.50"},
		},
		{
			name:      "sorted descending regardless of input order",
			intervals: []models.ReminderInterval{{Hours: 0.5}, {Hours: 24}, {Hours: 2}},
			enabled:   true,
			wantKeys:  []string{"24.00", "2.00", "0.50"},
		},
		{
			name:      "near duplicates dropped after rounding",
			intervals: []models.ReminderInterval{{Hours: 1}, {Hours: 1.000001}, {Hours: 2}},
			enabled:   true,
			wantKeys:  []string{"2.00", "1.00"},
		},
		{
			name:      "below minimum rejected",
			intervals: []models.ReminderInterval{{Hours: 0.05}},
			enabled:   true,
			wantErr:   true,
		},
		{
			name:      "exactly minimum rejected",
			intervals: []models.ReminderInterval{{Hours: 0.1}},
			enabled:   true,
			wantErr:   true,
		},
		{
			name:      "above one week rejected",
			intervals: []models.ReminderInterval{{Hours: 168.01}},
			enabled:   true,
			wantErr:   true,
		},
		{
			name:      "exactly one week accepted",
			intervals: []models.ReminderInterval{{Hours: 168}},
			enabled:   true,
			wantKeys:  []string{"168.00"},
		},
		{
			name: "too many intervals rejected",
			intervals: []models.ReminderInterval{
				{Hours: 1}, {Hours: 2}, {Hours: 3}, {Hours: 4}, {Hours: 5},
				{Hours: 6}, {Hours: 7}, {Hours: 8}, {Hours: 9}, {Hours: 10}, {Hours: 11},
			},
			enabled: true,
			wantErr: true,
		},
		{
			name:      "empty while enabled rejected",
			intervals: nil,
			enabled:   true,
			wantErr:   true,
		},
		{
			name:      "empty while disabled accepted",
			intervals: nil,
			enabled:   false,
			wantKeys:  nil,
		},
		{
			name:      "one bad entry rejects the whole list",
			intervals: []models.ReminderInterval{{Hours: 24}, {Hours: 200}},
			enabled:   true,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.intervals, tt.enabled)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Validate() expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error: %v", err)
			}
			if len(got) != len(tt.wantKeys) {
				t.Fatalf("Validate() returned %d intervals, want %d", len(got), len(tt.wantKeys))
			}
			for i, in := range got {
				if in.Key() != tt.wantKeys[i] {
					t.Errorf("interval %d key = %s, want %s", i, in.Key(), tt.wantKeys[i])
				}
			}
		})
	}
}

func TestMaxLeadTime(t *testing.T) {
	if got := MaxLeadTime(DefaultIntervals()); got != 24 {
		t.Errorf("MaxLeadTime(default) = %g, want 24", got)
	}
	if got := MaxLeadTime(nil); got != 0 {
		t.Errorf("MaxLeadTime(nil) = %g, want 0", got)
	}
}

func TestDefault(t *testing.T) {
	cfg, err := Default("tenant-1")
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}
	if !cfg.Enabled {
		t.Error("default config should be enabled")
	}
	intervals, err := cfg.DecodeIntervals()
	if err != nil {
		t.Fatalf("DecodeIntervals() error: %v", err)
	}
	if len(intervals) != 4 {
		t.Errorf("default timeline has %d intervals, want 4", len(intervals))
	}
}
