package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PreferenceRepository handles agent notification preference storage
type PreferenceRepository interface {
	GetByUserID(ctx context.Context, tenantID string, userID uuid.UUID) (*models.AgentPreference, error)
	Upsert(ctx context.Context, pref *models.AgentPreference) error
	UpdatePushTokens(ctx context.Context, tenantID string, userID uuid.UUID, tokens []string) error
}

type preferenceRepository struct {
	db *gorm.DB
}

// NewPreferenceRepository creates a new preference repository
func NewPreferenceRepository(db *gorm.DB) PreferenceRepository {
	return &preferenceRepository{db: db}
}

func (r *preferenceRepository) GetByUserID(ctx context.Context, tenantID string, userID uuid.UUID) (*models.AgentPreference, error) {
	var pref models.AgentPreference
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		First(&pref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Return default preferences
			return &models.AgentPreference{
				TenantID:     tenantID,
				UserID:       userID,
				EmailEnabled: true,
				SMSEnabled:   false,
				PushEnabled:  true,
			}, nil
		}
		return nil, err
	}
	return &pref, nil
}

func (r *preferenceRepository) Upsert(ctx context.Context, pref *models.AgentPreference) error {
	return r.db.WithContext(ctx).Save(pref).Error
}

func (r *preferenceRepository) UpdatePushTokens(ctx context.Context, tenantID string, userID uuid.UUID, tokens []string) error {
	encoded, err := json.Marshal(tokens)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&models.AgentPreference{}).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Update("push_tokens", datatypes.JSON(encoded)).Error
}
