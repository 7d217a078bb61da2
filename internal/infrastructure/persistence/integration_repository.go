package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pesaflow/backend/internal/domain/integration"
	"github.com/pesaflow/backend/internal/infrastructure/persistence/models"
)

// GormIntegrationRepository implements integration.IntegrationRepository using GORM
type GormIntegrationRepository struct {
	db *gorm.DB
}

// NewGormIntegrationRepository creates an integration repository
func NewGormIntegrationRepository(db *gorm.DB) *GormIntegrationRepository {
	return &GormIntegrationRepository{db: db}
}

// Save persists the integration
func (r *GormIntegrationRepository) Save(ctx context.Context, integ *integration.Integration) error {
	var m models.IntegrationModel
	m.FromDomain(integ)
	return r.db.WithContext(ctx).Save(&m).Error
}

// FindByID loads an integration by its ID without tenant scoping; the
// organization is derived from the record itself when resolving webhooks
func (r *GormIntegrationRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Integration, error) {
	var m models.IntegrationModel
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindActiveByProvider loads the organization's active integration for a provider
func (r *GormIntegrationRepository) FindActiveByProvider(ctx context.Context, tenantID uuid.UUID, provider integration.Provider) (*integration.Integration, error) {
	var m models.IntegrationModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND provider = ? AND is_active = ?", tenantID, string(provider), true).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

// Ensure GormIntegrationRepository implements the repository interface
var _ integration.IntegrationRepository = (*GormIntegrationRepository)(nil)
