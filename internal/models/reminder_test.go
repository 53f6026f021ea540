package models

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestIntervalKey(t *testing.T) {
	tests := []struct {
		hours float64
		want  string
	}{
		{24, "24.00"},
		{2, "2.00"},
		{0.5, "0.50"},
		{1.25, "1.25"},
		{168, "168.00"},
	}
	for _, tt := range tests {
		if got := IntervalKey(tt.hours); got != tt.want {
			t.Errorf("IntervalKey(%g) = %s, want %s", tt.hours, got, tt.want)
		}
	}
}

func TestLeadTenantIndexSpansBothColumns(t *testing.T) {
	// One reminder row per (tenant, lead), so both columns must share the
	// unique index; on LeadID alone it would be unique across tenants.
	rt := reflect.TypeOf(LeadReminder{})
	for _, name := range []string{"TenantID", "LeadID"} {
		field, ok := rt.FieldByName(name)
		if !ok {
			t.Fatalf("field %s missing", name)
		}
		if !strings.Contains(field.Tag.Get("gorm"), "uniqueIndex:idx_reminder_lead_tenant") {
			t.Errorf("%s is not part of idx_reminder_lead_tenant", name)
		}
	}
}

func TestFiredSet(t *testing.T) {
	r := &LeadReminder{}
	if len(r.FiredSet()) != 0 {
		t.Error("empty FiredIntervals should decode as empty set")
	}

	r.FiredIntervals = r.WithFired("24.00")
	r.FiredIntervals = r.WithFired("2.00")

	set := r.FiredSet()
	if !set["24.00"] || !set["2.00"] {
		t.Errorf("FiredSet() = %v, want both keys present", set)
	}
	if !r.HasFired("24.00") {
		t.Error("HasFired(24.00) = false, want true")
	}
	if r.HasFired("1.00") {
		t.Error("HasFired(1.00) = true, want false")
	}
}

func TestWithFiredIsIdempotent(t *testing.T) {
	r := &LeadReminder{}
	r.FiredIntervals = r.WithFired("24.00")
	before := string(r.FiredIntervals)

	r.FiredIntervals = r.WithFired("24.00")
	if string(r.FiredIntervals) != before {
		t.Errorf("WithFired on present key changed the set: %s -> %s", before, r.FiredIntervals)
	}
}

func TestFiredSetMalformedColumn(t *testing.T) {
	r := &LeadReminder{FiredIntervals: []byte("not json")}
	if len(r.FiredSet()) != 0 {
		t.Error("malformed FiredIntervals should decode as empty set")
	}
}

func TestIsOverdue(t *testing.T) {
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &LeadReminder{DueAt: due}

	if r.IsOverdue(due.Add(-time.Minute)) {
		t.Error("not overdue before the due time")
	}
	if r.IsOverdue(due) {
		t.Error("not overdue at exactly the due time")
	}
	if !r.IsOverdue(due.Add(time.Minute)) {
		t.Error("overdue after the due time")
	}
}

func TestEncodeDecodeIntervals(t *testing.T) {
	in := []ReminderInterval{
		{Hours: 24, Label: "1 day before"},
		{Hours: 0.5, Label: "30 minutes before"},
	}
	encoded, err := EncodeIntervals(in)
	if err != nil {
		t.Fatalf("EncodeIntervals() error: %v", err)
	}

	cfg := &TimelineConfig{Intervals: encoded}
	out, err := cfg.DecodeIntervals()
	if err != nil {
		t.Fatalf("DecodeIntervals() error: %v", err)
	}
	if len(out) != 2 || out[0].Hours != 24 || out[1].Key() != "0.50" {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestDecodeIntervalsEmpty(t *testing.T) {
	cfg := &TimelineConfig{}
	out, err := cfg.DecodeIntervals()
	if err != nil {
		t.Fatalf("DecodeIntervals() error: %v", err)
	}
	if out != nil {
		t.Errorf("empty column should decode to nil, got %+v", out)
	}
}
