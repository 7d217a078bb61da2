package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pesaflow/backend/internal/domain/notification"
	"github.com/pesaflow/backend/internal/infrastructure/persistence/models"
)

// GormNotificationRepository implements notification.NotificationRepository using GORM
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a notification repository
func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// Save persists the notification
func (r *GormNotificationRepository) Save(ctx context.Context, n *notification.Notification) error {
	var m models.NotificationModel
	m.FromDomain(n)
	return r.db.WithContext(ctx).Save(&m).Error
}

// FindByID loads a notification scoped to the organization
func (r *GormNotificationRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*notification.Notification, error) {
	var m models.NotificationModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindDue returns pending notifications and retryable failed ones whose next
// attempt time has passed, oldest first. Rows with a future NextAttemptAt are
// scheduled or backing off and are skipped.
func (r *GormNotificationRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*notification.Notification, error) {
	var rows []models.NotificationModel
	err := r.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND delivery_attempts < ?)",
			string(notification.StatusPending), string(notification.StatusFailed), notification.MaxDeliveryAttempts).
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	due := make([]*notification.Notification, 0, len(rows))
	for i := range rows {
		due = append(due, rows[i].ToDomain())
	}
	return due, nil
}

// CountByPayment counts notifications linked to a payment
func (r *GormNotificationRepository) CountByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.NotificationModel{}).
		Where("tenant_id = ? AND payment_id = ?", tenantID, paymentID).
		Count(&count).Error
	return count, err
}

// Ensure GormNotificationRepository implements the repository interface
var _ notification.NotificationRepository = (*GormNotificationRepository)(nil)

// GormPreferenceRepository implements notification.PreferenceRepository using GORM
type GormPreferenceRepository struct {
	db *gorm.DB
}

// NewGormPreferenceRepository creates a preference repository
func NewGormPreferenceRepository(db *gorm.DB) *GormPreferenceRepository {
	return &GormPreferenceRepository{db: db}
}

// Save persists the preference record
func (r *GormPreferenceRepository) Save(ctx context.Context, p *notification.Preference) error {
	var m models.NotificationPreferenceModel
	m.FromDomain(p)
	return r.db.WithContext(ctx).Save(&m).Error
}

// FindByCustomer loads a customer's channel preferences
func (r *GormPreferenceRepository) FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) (*notification.Preference, error) {
	var m models.NotificationPreferenceModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ?", tenantID, customerID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

// Ensure GormPreferenceRepository implements the repository interface
var _ notification.PreferenceRepository = (*GormPreferenceRepository)(nil)
