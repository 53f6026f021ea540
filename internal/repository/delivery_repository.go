package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/models"
	"gorm.io/gorm"
)

// DeliveryLogRepository records dispatch attempts for audit and debugging
type DeliveryLogRepository interface {
	Create(ctx context.Context, log *models.DeliveryLog) error
	ListByReminder(ctx context.Context, tenantID string, reminderID uuid.UUID) ([]models.DeliveryLog, error)
}

type deliveryLogRepository struct {
	db *gorm.DB
}

// NewDeliveryLogRepository creates a new delivery log repository
func NewDeliveryLogRepository(db *gorm.DB) DeliveryLogRepository {
	return &deliveryLogRepository{db: db}
}

func (r *deliveryLogRepository) Create(ctx context.Context, log *models.DeliveryLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *deliveryLogRepository) ListByReminder(ctx context.Context, tenantID string, reminderID uuid.UUID) ([]models.DeliveryLog, error) {
	var logs []models.DeliveryLog
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND reminder_id = ?", tenantID, reminderID).
		Order("created_at DESC").
		Limit(100).
		Find(&logs).Error
	return logs, err
}
