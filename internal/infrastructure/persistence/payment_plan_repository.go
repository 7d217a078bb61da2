package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pesaflow/backend/internal/domain/payment"
	"github.com/pesaflow/backend/internal/infrastructure/persistence/models"
)

// GormPaymentPlanRepository implements payment.PaymentPlanRepository using GORM
type GormPaymentPlanRepository struct {
	db *gorm.DB
}

// NewGormPaymentPlanRepository creates a payment plan repository
func NewGormPaymentPlanRepository(db *gorm.DB) *GormPaymentPlanRepository {
	return &GormPaymentPlanRepository{db: db}
}

// Save persists the plan
func (r *GormPaymentPlanRepository) Save(ctx context.Context, plan *payment.PaymentPlan) error {
	var m models.PaymentPlanModel
	m.FromDomain(plan)
	return r.db.WithContext(ctx).Save(&m).Error
}

// FindByID loads a plan scoped to the organization
func (r *GormPaymentPlanRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*payment.PaymentPlan, error) {
	var m models.PaymentPlanModel
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

// FindByCustomer lists a customer's plans, newest first
func (r *GormPaymentPlanRepository) FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) ([]*payment.PaymentPlan, error) {
	var rows []models.PaymentPlanModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ?", tenantID, customerID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toPlans(rows), nil
}

// FindByStatus lists plans in the given status
func (r *GormPaymentPlanRepository) FindByStatus(ctx context.Context, tenantID uuid.UUID, status payment.PlanStatus, limit, offset int) ([]*payment.PaymentPlan, error) {
	var rows []models.PaymentPlanModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, string(status)).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toPlans(rows), nil
}

func toPlans(rows []models.PaymentPlanModel) []*payment.PaymentPlan {
	plans := make([]*payment.PaymentPlan, 0, len(rows))
	for i := range rows {
		plans = append(plans, rows[i].ToDomain())
	}
	return plans
}

// Ensure GormPaymentPlanRepository implements the repository interface
var _ payment.PaymentPlanRepository = (*GormPaymentPlanRepository)(nil)
