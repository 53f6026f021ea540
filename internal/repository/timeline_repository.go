package repository

import (
	"context"
	"errors"

	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/models"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/timeline"
	"gorm.io/gorm"
)

// TimelineRepository handles reminder timeline configuration storage
type TimelineRepository interface {
	// Get returns the tenant's timeline config, creating the system default
	// for a tenant seen for the first time.
	Get(ctx context.Context, tenantID string) (*models.TimelineConfig, error)

	// Put replaces the tenant's config wholesale. Intervals must already be
	// validated and normalized.
	Put(ctx context.Context, cfg *models.TimelineConfig) error

	// ResetToDefault discards any custom configuration and persists the
	// baseline timeline.
	ResetToDefault(ctx context.Context, tenantID string) (*models.TimelineConfig, error)
}

type timelineRepository struct {
	db *gorm.DB
}

// NewTimelineRepository creates a new timeline repository
func NewTimelineRepository(db *gorm.DB) TimelineRepository {
	return &timelineRepository{db: db}
}

func (r *timelineRepository) Get(ctx context.Context, tenantID string) (*models.TimelineConfig, error) {
	var cfg models.TimelineConfig
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&cfg).Error
	if err == nil {
		return &cfg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	def, err := timeline.Default(tenantID)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Create(def).Error; err != nil {
		return nil, err
	}
	return def, nil
}

func (r *timelineRepository) Put(ctx context.Context, cfg *models.TimelineConfig) error {
	return r.db.WithContext(ctx).Save(cfg).Error
}

func (r *timelineRepository) ResetToDefault(ctx context.Context, tenantID string) (*models.TimelineConfig, error) {
	def, err := timeline.Default(tenantID)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Save(def).Error; err != nil {
		return nil, err
	}
	return def, nil
}
