// Package scheduler drives the reminder tick loop: load due candidates,
// commit each fired interval, then dispatch notifications.
package scheduler

import (
	"context"
	"errors"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/config"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/dispatch"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/models"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/repository"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/timeline"
)

// ReminderStore is the slice of the reminder repository the scheduler needs.
type ReminderStore interface {
	LoadDueCandidates(ctx context.Context, horizon time.Duration) ([]models.LeadReminder, error)
	CommitFiredInterval(ctx context.Context, reminder *models.LeadReminder, intervalKey string) error
	CommitStatus(ctx context.Context, reminder *models.LeadReminder, status models.ReminderStatus) error
}

// TimelineStore loads tenant timeline configuration.
type TimelineStore interface {
	Get(ctx context.Context, tenantID string) (*models.TimelineConfig, error)
}

// Dispatcher delivers a committed firing to the owner's channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, reminder *models.LeadReminder, interval models.ReminderInterval, tenantCfg *models.TimelineConfig, suppressExternal bool)
}

// PresenceChecker reports whether an agent is live on the leads page.
type PresenceChecker interface {
	IsOnPage(userID uuid.UUID) bool
}

// AuditSink receives fired-event records. Best-effort.
type AuditSink interface {
	Publish(ctx context.Context, event *dispatch.FiredEvent)
}

// tenantState is the per-tick cache entry for one tenant's configuration.
type tenantState struct {
	cfg       *models.TimelineConfig
	intervals []models.ReminderInterval
	err       error
}

// Scheduler evaluates pending reminders on a fixed tick. Each eligible
// interval is committed to the store before any notification goes out, so a
// crash can drop a notification but never duplicate one.
type Scheduler struct {
	store     ReminderStore
	timelines TimelineStore
	presence  PresenceChecker
	dispatch  Dispatcher
	audit     AuditSink

	tickInterval   time.Duration
	firingWindow   time.Duration
	lookaheadGuard time.Duration
	workers        int

	logger *logrus.Entry
	now    func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a scheduler. audit may be nil.
func New(cfg config.SchedulerConfig, store ReminderStore, timelines TimelineStore, presence PresenceChecker, dispatcher Dispatcher, audit AuditSink, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	workers := cfg.WorkerConcurrency
	if workers <= 0 {
		workers = 1
	}
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = time.Minute
	}
	window := cfg.FiringWindow
	if window <= 0 {
		window = 5 * time.Minute
	}
	guard := cfg.LookaheadGuard
	if guard <= 0 {
		guard = time.Hour
	}
	return &Scheduler{
		store:          store,
		timelines:      timelines,
		presence:       presence,
		dispatch:       dispatcher,
		audit:          audit,
		tickInterval:   tick,
		firingWindow:   window,
		lookaheadGuard: guard,
		workers:        workers,
		logger:         logger.WithField("component", "reminder_scheduler"),
		now:            time.Now,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Start runs the tick loop until Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()

		s.logger.WithFields(logrus.Fields{
			"tick_interval": s.tickInterval,
			"firing_window": s.firingWindow,
			"workers":       s.workers,
		}).Info("Reminder scheduler started")

		for {
			select {
			case <-ticker.C:
				s.Tick(ctx)
			case <-s.stop:
				s.logger.Info("Reminder scheduler stopped")
				return
			case <-ctx.Done():
				s.logger.Info("Reminder scheduler context cancelled")
				return
			}
		}
	}()
}

// Stop terminates the tick loop and waits for the current tick to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// Tick runs one evaluation pass. Safe to call directly; ticks never overlap
// because the loop is single-goroutine.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()
	horizon := time.Duration(timeline.MaxHours*float64(time.Hour)) + s.lookaheadGuard

	candidates, err := s.store.LoadDueCandidates(ctx, horizon)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load due reminders")
		return
	}
	if len(candidates) == 0 {
		return
	}

	// Tenant configs are loaded once per tick so every record in the tick
	// sees the same timeline.
	states := s.loadTenantStates(ctx, candidates)

	// Partition by lead so no two workers ever touch the same record.
	partitions := make([][]int, s.workers)
	for i := range candidates {
		w := int(leadHash(candidates[i].LeadID)) % s.workers
		partitions[w] = append(partitions[w], i)
	}

	var wg sync.WaitGroup
	for _, part := range partitions {
		if len(part) == 0 {
			continue
		}
		wg.Add(1)
		go func(indexes []int) {
			defer wg.Done()
			for _, i := range indexes {
				s.processReminder(ctx, now, &candidates[i], states[candidates[i].TenantID])
			}
		}(part)
	}
	wg.Wait()
}

func (s *Scheduler) loadTenantStates(ctx context.Context, candidates []models.LeadReminder) map[string]*tenantState {
	states := make(map[string]*tenantState)
	for i := range candidates {
		tenantID := candidates[i].TenantID
		if _, ok := states[tenantID]; ok {
			continue
		}

		cfg, err := s.timelines.Get(ctx, tenantID)
		if err != nil {
			s.logger.WithError(err).WithField("tenant_id", tenantID).Error("Failed to load timeline config")
			states[tenantID] = &tenantState{err: err}
			continue
		}
		intervals, err := cfg.DecodeIntervals()
		if err != nil {
			s.logger.WithError(err).WithField("tenant_id", tenantID).Error("Failed to decode timeline intervals")
			states[tenantID] = &tenantState{err: err}
			continue
		}
		// Longest lead time first. Stored configs are already normalized,
		// but the evaluation order is a contract, not a storage detail.
		sort.Slice(intervals, func(i, j int) bool {
			return intervals[i].Hours > intervals[j].Hours
		})
		states[tenantID] = &tenantState{cfg: cfg, intervals: intervals}
	}
	return states
}

func (s *Scheduler) processReminder(ctx context.Context, now time.Time, reminder *models.LeadReminder, state *tenantState) {
	if state == nil || state.err != nil {
		// Config unavailable this tick; the record stays pending.
		return
	}
	// Disabled tenants are skipped entirely. Their records keep accruing
	// no state, so re-enabling picks up where the timeline left off.
	if !state.cfg.Enabled {
		return
	}

	fired := reminder.FiredSet()

	for _, interval := range state.intervals {
		key := interval.Key()
		if fired[key] {
			continue
		}

		triggerAt := reminder.DueAt.Add(-time.Duration(interval.Hours * float64(time.Hour)))
		if now.Before(triggerAt) {
			continue
		}
		if now.Sub(triggerAt) >= s.firingWindow {
			// Window missed, e.g. the service was down. Never fire late.
			s.logger.WithFields(logrus.Fields{
				"reminder_id":  reminder.ID,
				"interval_key": key,
			}).Debug("Firing window missed, skipping interval")
			continue
		}

		s.fireInterval(ctx, now, reminder, interval, state.cfg)
		fired = reminder.FiredSet()
	}

	// The due moment has passed: nothing further can fire for this record.
	if !now.Before(reminder.DueAt) {
		if err := s.store.CommitStatus(ctx, reminder, models.ReminderResolved); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				s.logger.WithField("reminder_id", reminder.ID).Debug("Resolve lost version race, retrying next tick")
				return
			}
			s.logger.WithError(err).WithField("reminder_id", reminder.ID).Error("Failed to resolve reminder")
		}
	}
}

// fireInterval commits the interval mark first, then delivers. The commit is
// the idempotency boundary: once it lands, this interval never fires again,
// even if delivery fails or the process dies mid-send.
func (s *Scheduler) fireInterval(ctx context.Context, now time.Time, reminder *models.LeadReminder, interval models.ReminderInterval, tenantCfg *models.TimelineConfig) {
	key := interval.Key()

	if err := s.store.CommitFiredInterval(ctx, reminder, key); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			// Another replica or a concurrent update won; skip this record
			// for the rest of the tick.
			s.logger.WithFields(logrus.Fields{
				"reminder_id":  reminder.ID,
				"interval_key": key,
			}).Debug("Commit lost version race")
			return
		}
		s.logger.WithError(err).WithFields(logrus.Fields{
			"reminder_id":  reminder.ID,
			"interval_key": key,
		}).Error("Failed to commit fired interval")
		return
	}

	suppressExternal := s.presence != nil && s.presence.IsOnPage(reminder.OwnerUserID)

	s.logger.WithFields(logrus.Fields{
		"tenant_id":    reminder.TenantID,
		"reminder_id":  reminder.ID,
		"lead_id":      reminder.LeadID,
		"interval_key": key,
		"suppressed":   suppressExternal,
	}).Info("Reminder interval fired")

	s.dispatch.Dispatch(ctx, reminder, interval, tenantCfg, suppressExternal)

	if s.audit != nil {
		channel := string(models.ChannelEmail)
		if suppressExternal {
			channel = string(models.ChannelInApp)
		}
		s.audit.Publish(ctx, &dispatch.FiredEvent{
			TenantID:    reminder.TenantID,
			ReminderID:  reminder.ID.String(),
			LeadID:      reminder.LeadID.String(),
			OwnerUserID: reminder.OwnerUserID.String(),
			IntervalKey: key,
			Channel:     channel,
			DueAt:       reminder.DueAt,
			FiredAt:     now,
		})
	}
}

func leadHash(leadID uuid.UUID) uint32 {
	h := fnv.New32a()
	h.Write(leadID[:])
	return h.Sum32()
}
