package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pesaflow/backend/internal/domain/payment"
	"github.com/pesaflow/backend/internal/domain/shared"
	"github.com/pesaflow/backend/internal/infrastructure/persistence/models"
)

// GormPaymentRepository implements payment.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a payment repository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// Save persists the payment
func (r *GormPaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	var m models.PaymentModel
	m.FromDomain(p)
	return r.db.WithContext(ctx).Save(&m).Error
}

// SaveWithLock persists the payment only if the stored version matches the
// expected one, returning a concurrency conflict otherwise
func (r *GormPaymentRepository) SaveWithLock(ctx context.Context, p *payment.Payment, expectedVersion int) error {
	var m models.PaymentModel
	m.FromDomain(p)

	result := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ? AND version = ?", p.ID, expectedVersion).
		Select("*").
		Updates(&m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("CONCURRENCY_CONFLICT",
			"Payment was modified by another process")
	}
	return nil
}

// FindByID loads a payment scoped to the organization
func (r *GormPaymentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*payment.Payment, error) {
	var m models.PaymentModel
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

// FindByReference loads a payment by its human-readable reference
func (r *GormPaymentRepository) FindByReference(ctx context.Context, tenantID uuid.UUID, reference string) (*payment.Payment, error) {
	var m models.PaymentModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND reference = ?", tenantID, reference).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByCheckoutRequestIDForUpdate locks and returns the payment holding the
// given correlation id, preferring a non-terminal one so a replayed id that
// was reused still resolves to the pending payment
func (r *GormPaymentRepository) FindByCheckoutRequestIDForUpdate(ctx context.Context, tenantID uuid.UUID, checkoutRequestID string) (*payment.Payment, error) {
	if checkoutRequestID == "" {
		return nil, nil
	}

	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND checkout_request_id = ?", tenantID, checkoutRequestID).
		Order("created_at DESC")
	// sqlite (tests) has no row locks and serializes writes on its own
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var rows []models.PaymentModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	for i := range rows {
		if !payment.PaymentStatus(rows[i].Status).IsTerminal() {
			return rows[i].ToDomain(), nil
		}
	}
	return rows[0].ToDomain(), nil
}

// FindByStatus lists payments in the given status, newest first
func (r *GormPaymentRepository) FindByStatus(ctx context.Context, tenantID uuid.UUID, status payment.PaymentStatus, limit, offset int) ([]*payment.Payment, error) {
	var rows []models.PaymentModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, string(status)).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toPayments(rows), nil
}

// FindByCustomer lists a customer's payments, newest first
func (r *GormPaymentRepository) FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID, limit, offset int) ([]*payment.Payment, error) {
	var rows []models.PaymentModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ?", tenantID, customerID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toPayments(rows), nil
}

func toPayments(rows []models.PaymentModel) []*payment.Payment {
	payments := make([]*payment.Payment, 0, len(rows))
	for i := range rows {
		payments = append(payments, rows[i].ToDomain())
	}
	return payments
}

// Ensure GormPaymentRepository implements the repository interface
var _ payment.PaymentRepository = (*GormPaymentRepository)(nil)
