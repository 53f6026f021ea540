package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrVersionConflict is returned when a compare-and-swap update loses the
// race; the caller should reload the record on the next tick.
var ErrVersionConflict = errors.New("reminder version conflict")

// ReminderRepository handles lead reminder database operations
type ReminderRepository interface {
	// LoadDueCandidates returns all pending reminders whose due time falls
	// within the lookahead horizon, across tenants. Overdue records are
	// included so they can be resolved.
	LoadDueCandidates(ctx context.Context, horizon time.Duration) ([]models.LeadReminder, error)

	// CommitFiredInterval durably marks one interval as fired, guarded by
	// the record's version. On success the in-memory record is updated to
	// match. Returns ErrVersionConflict when the row changed underneath.
	CommitFiredInterval(ctx context.Context, reminder *models.LeadReminder, intervalKey string) error

	// CommitStatus transitions the record's status with the same CAS guard.
	CommitStatus(ctx context.Context, reminder *models.LeadReminder, status models.ReminderStatus) error

	// Upsert creates or updates the reminder for a lead. A due-time change
	// clears the fired set and reopens the record.
	Upsert(ctx context.Context, tenantID string, leadID uuid.UUID, leadName string, ownerUserID uuid.UUID, dueAt time.Time, note string) (*models.LeadReminder, error)

	GetByID(ctx context.Context, id uuid.UUID) (*models.LeadReminder, error)
	GetByLead(ctx context.Context, tenantID string, leadID uuid.UUID) (*models.LeadReminder, error)
	ListUpcoming(ctx context.Context, tenantID string, within time.Duration, limit int) ([]models.LeadReminder, error)

	// Cancel resolves the reminder early (user action).
	Cancel(ctx context.Context, tenantID string, id uuid.UUID) error

	// DeleteByLead removes the reminder when the owning lead is deleted.
	DeleteByLead(ctx context.Context, tenantID string, leadID uuid.UUID) error
}

type reminderRepository struct {
	db *gorm.DB
}

// NewReminderRepository creates a new reminder repository
func NewReminderRepository(db *gorm.DB) ReminderRepository {
	return &reminderRepository{db: db}
}

func (r *reminderRepository) LoadDueCandidates(ctx context.Context, horizon time.Duration) ([]models.LeadReminder, error) {
	var reminders []models.LeadReminder
	err := r.db.WithContext(ctx).
		Where("status = ? AND due_at <= ?", models.ReminderPending, time.Now().Add(horizon)).
		Order("due_at ASC").
		Find(&reminders).Error
	return reminders, err
}

func (r *reminderRepository) CommitFiredInterval(ctx context.Context, reminder *models.LeadReminder, intervalKey string) error {
	fired := reminder.WithFired(intervalKey)

	res := r.db.WithContext(ctx).Model(&models.LeadReminder{}).
		Where("id = ? AND version = ?", reminder.ID, reminder.Version).
		Updates(map[string]interface{}{
			"fired_intervals": fired,
			"version":         reminder.Version + 1,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to commit fired interval %s: %w", intervalKey, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}

	reminder.FiredIntervals = fired
	reminder.Version++
	return nil
}

func (r *reminderRepository) CommitStatus(ctx context.Context, reminder *models.LeadReminder, status models.ReminderStatus) error {
	res := r.db.WithContext(ctx).Model(&models.LeadReminder{}).
		Where("id = ? AND version = ?", reminder.ID, reminder.Version).
		Updates(map[string]interface{}{
			"status":     status,
			"version":    reminder.Version + 1,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to commit status %s: %w", status, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}

	reminder.Status = status
	reminder.Version++
	return nil
}

func (r *reminderRepository) Upsert(ctx context.Context, tenantID string, leadID uuid.UUID, leadName string, ownerUserID uuid.UUID, dueAt time.Time, note string) (*models.LeadReminder, error) {
	var out *models.LeadReminder
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Row-lock the read so a concurrent fired-interval commit cannot
		// land between the load and the update below and get overwritten.
		var existing models.LeadReminder
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ? AND lead_id = ?", tenantID, leadID).
			First(&existing).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			created := models.LeadReminder{
				TenantID:    tenantID,
				LeadID:      leadID,
				LeadName:    leadName,
				OwnerUserID: ownerUserID,
				DueAt:       dueAt,
				Note:        note,
				Status:      models.ReminderPending,
			}
			if err := tx.Create(&created).Error; err != nil {
				return err
			}
			out = &created
			return nil
		}

		cols := upsertColumns(&existing, leadName, ownerUserID, dueAt, note)
		if err := tx.Model(&models.LeadReminder{}).Where("id = ?", existing.ID).Updates(cols).Error; err != nil {
			return err
		}

		existing.LeadName = leadName
		existing.OwnerUserID = ownerUserID
		existing.Note = note
		if !existing.DueAt.Equal(dueAt) {
			existing.DueAt = dueAt
			existing.FiredIntervals = nil
			existing.Status = models.ReminderPending
		}
		existing.Version++
		out = &existing
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert reminder for lead %s: %w", leadID, err)
	}
	return out, nil
}

// upsertColumns builds the column set for updating an existing reminder.
// The scheduler owns fired_intervals and status through its CAS commits, so
// this writes them only on a due-time change, where the fired set belongs to
// the old due time and must be cleared. Version is bumped in SQL rather than
// from the loaded value so it can never collide with a concurrent commit.
func upsertColumns(existing *models.LeadReminder, leadName string, ownerUserID uuid.UUID, dueAt time.Time, note string) map[string]interface{} {
	cols := map[string]interface{}{
		"lead_name":     leadName,
		"owner_user_id": ownerUserID,
		"note":          note,
		"version":       gorm.Expr("version + 1"),
		"updated_at":    time.Now(),
	}
	if !existing.DueAt.Equal(dueAt) {
		cols["due_at"] = dueAt
		cols["fired_intervals"] = nil
		cols["status"] = models.ReminderPending
	}
	return cols
}

func (r *reminderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.LeadReminder, error) {
	var reminder models.LeadReminder
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&reminder).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reminder, nil
}

func (r *reminderRepository) GetByLead(ctx context.Context, tenantID string, leadID uuid.UUID) (*models.LeadReminder, error) {
	var reminder models.LeadReminder
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND lead_id = ?", tenantID, leadID).
		First(&reminder).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reminder, nil
}

func (r *reminderRepository) ListUpcoming(ctx context.Context, tenantID string, within time.Duration, limit int) ([]models.LeadReminder, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var reminders []models.LeadReminder
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND due_at <= ?", tenantID, models.ReminderPending, time.Now().Add(within)).
		Order("due_at ASC").
		Limit(limit).
		Find(&reminders).Error
	return reminders, err
}

func (r *reminderRepository) Cancel(ctx context.Context, tenantID string, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.LeadReminder{}).
		Where("id = ? AND tenant_id = ? AND status = ?", id, tenantID, models.ReminderPending).
		Updates(map[string]interface{}{
			"status":     models.ReminderResolved,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *reminderRepository) DeleteByLead(ctx context.Context, tenantID string, leadID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND lead_id = ?", tenantID, leadID).
		Delete(&models.LeadReminder{}).Error
}
