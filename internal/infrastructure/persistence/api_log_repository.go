package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pesaflow/backend/internal/domain/integration"
	"github.com/pesaflow/backend/internal/infrastructure/persistence/models"
)

// GormAPILogRepository implements integration.APILogRepository using GORM.
// The table is append-only.
type GormAPILogRepository struct {
	db *gorm.DB
}

// NewGormAPILogRepository creates an API audit log repository
func NewGormAPILogRepository(db *gorm.DB) *GormAPILogRepository {
	return &GormAPILogRepository{db: db}
}

// Save appends an audit record
func (r *GormAPILogRepository) Save(ctx context.Context, log *integration.APILog) error {
	var m models.APILogModel
	m.FromDomain(log)
	return r.db.WithContext(ctx).Create(&m).Error
}

// FindByCorrelationID lists the audit trail for a correlation id, oldest first
func (r *GormAPILogRepository) FindByCorrelationID(ctx context.Context, tenantID uuid.UUID, correlationID string) ([]*integration.APILog, error) {
	var rows []models.APILogModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND correlation_id = ?", tenantID, correlationID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	logs := make([]*integration.APILog, 0, len(rows))
	for i := range rows {
		logs = append(logs, rows[i].ToDomain())
	}
	return logs, nil
}

// Ensure GormAPILogRepository implements the repository interface
var _ integration.APILogRepository = (*GormAPILogRepository)(nil)
