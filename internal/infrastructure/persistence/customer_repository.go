package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pesaflow/backend/internal/domain/customer"
	"github.com/pesaflow/backend/internal/infrastructure/persistence/models"
)

// GormCustomerRepository implements customer.CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a customer repository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// Save persists the customer
func (r *GormCustomerRepository) Save(ctx context.Context, c *customer.Customer) error {
	var m models.CustomerModel
	m.FromDomain(c)
	return r.db.WithContext(ctx).Save(&m).Error
}

// FindByID loads a customer scoped to the organization
func (r *GormCustomerRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*customer.Customer, error) {
	var m models.CustomerModel
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

// FindByPhoneOrEmail returns every active customer matching the phone or
// email exactly. Empty values never match.
func (r *GormCustomerRepository) FindByPhoneOrEmail(ctx context.Context, tenantID uuid.UUID, phone, email string) ([]*customer.Customer, error) {
	if phone == "" && email == "" {
		return nil, nil
	}

	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true)
	switch {
	case phone != "" && email != "":
		query = query.Where("phone_number = ? OR email = ?", phone, email)
	case phone != "":
		query = query.Where("phone_number = ?", phone)
	default:
		query = query.Where("email = ?", email)
	}

	var rows []models.CustomerModel
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	customers := make([]*customer.Customer, 0, len(rows))
	for i := range rows {
		customers = append(customers, rows[i].ToDomain())
	}
	return customers, nil
}

// Ensure GormCustomerRepository implements the repository interface
var _ customer.CustomerRepository = (*GormCustomerRepository)(nil)
