// Package presence tracks which agents currently have the leads page open,
// so the scheduler can suppress redundant external notifications.
package presence

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultStaleAfter is how long a record may go without a heartbeat before
// it is treated as offline.
const DefaultStaleAfter = time.Hour

// Record is the presence state for one user. At most one record exists per
// user at any time; last write wins. Absence means unknown/offline.
type Record struct {
	UserID       uuid.UUID
	ConnectionID string
	LastSeenAt   time.Time
	OnTargetPage bool
}

// Registry is a concurrency-safe map of user presence. Many connection
// handlers write; the scheduler reads. All operations are total: "not
// found" is simply treated as offline.
type Registry struct {
	mu         sync.RWMutex
	records    map[uuid.UUID]Record
	staleAfter time.Duration
	now        func() time.Time
}

// NewRegistry creates a registry with the given staleness threshold.
// Zero or negative falls back to DefaultStaleAfter.
func NewRegistry(staleAfter time.Duration) *Registry {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Registry{
		records:    make(map[uuid.UUID]Record),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// MarkOnPage records that the user is on the target page.
func (r *Registry) MarkOnPage(userID uuid.UUID, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[userID] = Record{
		UserID:       userID,
		ConnectionID: connectionID,
		LastSeenAt:   r.now(),
		OnTargetPage: true,
	}
}

// MarkOffPage records that the user left the target page. No-op when no
// record exists.
func (r *Registry) MarkOffPage(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[userID]
	if !ok {
		return
	}
	rec.OnTargetPage = false
	rec.LastSeenAt = r.now()
	r.records[userID] = rec
}

// Touch refreshes the heartbeat timestamp without changing page state.
// No-op when no record exists.
func (r *Registry) Touch(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[userID]
	if !ok {
		return
	}
	rec.LastSeenAt = r.now()
	r.records[userID] = rec
}

// Remove deletes the user's record (disconnect). Idempotent.
func (r *Registry) Remove(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, userID)
}

// IsOnPage reports whether the user is on the target page with a fresh
// heartbeat. Missing or stale records count as offline.
func (r *Registry) IsOnPage(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[userID]
	if !ok || !rec.OnTargetPage {
		return false
	}
	return r.now().Sub(rec.LastSeenAt) < r.staleAfter
}

// FilterNotOnPage returns the subset of userIDs for which IsOnPage is
// false, i.e. the users who need an out-of-band notification.
func (r *Registry) FilterNotOnPage(userIDs []uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	out := make([]uuid.UUID, 0, len(userIDs))
	for _, id := range userIDs {
		rec, ok := r.records[id]
		if ok && rec.OnTargetPage && now.Sub(rec.LastSeenAt) < r.staleAfter {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Sweep removes all records whose last heartbeat is older than staleAfter
// and returns how many were removed. Intended to run on its own timer,
// independent of the scheduler tick.
func (r *Registry) Sweep(staleAfter time.Duration) int {
	if staleAfter <= 0 {
		staleAfter = r.staleAfter
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-staleAfter)
	removed := 0
	for id, rec := range r.records {
		if rec.LastSeenAt.Before(cutoff) {
			delete(r.records, id)
			removed++
		}
	}
	return removed
}

// Size returns the number of tracked records.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
