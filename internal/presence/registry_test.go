package presence

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestIsOnPage(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	userID := uuid.New()

	tests := []struct {
		name  string
		setup func(r *Registry)
		check time.Time
		want  bool
	}{
		{
			name:  "unknown user is offline",
			setup: func(r *Registry) {},
			check: base,
			want:  false,
		},
		{
			name:  "on page with fresh heartbeat",
			setup: func(r *Registry) { r.MarkOnPage(userID, "conn-1") },
			check: base.Add(time.Minute),
			want:  true,
		},
		{
			name: "off page after leave",
			setup: func(r *Registry) {
				r.MarkOnPage(userID, "conn-1")
				r.MarkOffPage(userID)
			},
			check: base.Add(time.Minute),
			want:  false,
		},
		{
			name:  "stale heartbeat counts as offline",
			setup: func(r *Registry) { r.MarkOnPage(userID, "conn-1") },
			check: base.Add(time.Hour),
			want:  false,
		},
		{
			name:  "just under the staleness threshold",
			setup: func(r *Registry) { r.MarkOnPage(userID, "conn-1") },
			check: base.Add(time.Hour - time.Second),
			want:  true,
		},
		{
			name: "removed user is offline",
			setup: func(r *Registry) {
				r.MarkOnPage(userID, "conn-1")
				r.Remove(userID)
			},
			check: base,
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(time.Hour)
			r.now = fixedClock(base)
			tt.setup(r)
			r.now = fixedClock(tt.check)
			if got := r.IsOnPage(userID); got != tt.want {
				t.Errorf("IsOnPage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTouchRefreshesHeartbeat(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	userID := uuid.New()

	r := NewRegistry(time.Hour)
	r.now = fixedClock(base)
	r.MarkOnPage(userID, "conn-1")

	// 50 minutes later the client heartbeats.
	r.now = fixedClock(base.Add(50 * time.Minute))
	r.Touch(userID)

	// 40 minutes after that the record would be stale without the touch.
	r.now = fixedClock(base.Add(90 * time.Minute))
	if !r.IsOnPage(userID) {
		t.Error("heartbeat should have kept the record fresh")
	}
}

func TestTouchUnknownUserIsNoop(t *testing.T) {
	r := NewRegistry(time.Hour)
	r.Touch(uuid.New())
	r.MarkOffPage(uuid.New())
	if r.Size() != 0 {
		t.Errorf("Size() = %d, want 0", r.Size())
	}
}

func TestFilterNotOnPage(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	onPage := uuid.New()
	offPage := uuid.New()
	stale := uuid.New()
	unknown := uuid.New()

	r := NewRegistry(time.Hour)
	r.now = fixedClock(base.Add(-2 * time.Hour))
	r.MarkOnPage(stale, "conn-old")

	r.now = fixedClock(base)
	r.MarkOnPage(onPage, "conn-1")
	r.MarkOnPage(offPage, "conn-2")
	r.MarkOffPage(offPage)

	got := r.FilterNotOnPage([]uuid.UUID{onPage, offPage, stale, unknown})
	if len(got) != 3 {
		t.Fatalf("FilterNotOnPage() returned %d users, want 3: %v", len(got), got)
	}
	for _, id := range got {
		if id == onPage {
			t.Error("on-page user should have been filtered out")
		}
	}
}

func TestSweep(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	fresh := uuid.New()
	old := uuid.New()

	r := NewRegistry(time.Hour)
	r.now = fixedClock(base.Add(-2 * time.Hour))
	r.MarkOnPage(old, "conn-old")
	r.now = fixedClock(base)
	r.MarkOnPage(fresh, "conn-new")

	removed := r.Sweep(time.Hour)
	if removed != 1 {
		t.Errorf("Sweep() removed %d records, want 1", removed)
	}
	if r.Size() != 1 {
		t.Errorf("Size() = %d after sweep, want 1", r.Size())
	}
	if !r.IsOnPage(fresh) {
		t.Error("fresh record should survive the sweep")
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry(time.Hour)
	users := make([]uuid.UUID, 16)
	for i := range users {
		users[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				u := users[(n+j)%len(users)]
				switch j % 4 {
				case 0:
					r.MarkOnPage(u, "conn")
				case 1:
					r.Touch(u)
				case 2:
					r.IsOnPage(u)
				case 3:
					r.MarkOffPage(u)
				}
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			r.Sweep(time.Hour)
			r.FilterNotOnPage(users)
		}
	}()
	wg.Wait()
}
