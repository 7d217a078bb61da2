package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pesaflow/backend/internal/domain/payment"
	"github.com/pesaflow/backend/internal/infrastructure/persistence/models"
)

// GormInvoiceRepository implements payment.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates an invoice repository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// Save persists the invoice
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *payment.Invoice) error {
	var m models.InvoiceModel
	m.FromDomain(inv)
	return r.db.WithContext(ctx).Save(&m).Error
}

// FindByID loads an invoice scoped to the organization
func (r *GormInvoiceRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*payment.Invoice, error) {
	var m models.InvoiceModel
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

// FindByNumber loads an invoice by its number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*payment.Invoice, error) {
	var m models.InvoiceModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND number = ?", tenantID, number).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByCustomer lists a customer's invoices, newest first
func (r *GormInvoiceRepository) FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID, limit, offset int) ([]*payment.Invoice, error) {
	var rows []models.InvoiceModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ?", tenantID, customerID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	invoices := make([]*payment.Invoice, 0, len(rows))
	for i := range rows {
		invoices = append(invoices, rows[i].ToDomain())
	}
	return invoices, nil
}

// Ensure GormInvoiceRepository implements the repository interface
var _ payment.InvoiceRepository = (*GormInvoiceRepository)(nil)
