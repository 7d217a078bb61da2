package customer

import (
	"time"

	"github.com/google/uuid"

	"github.com/pesaflow/backend/internal/domain/shared"
)

// Customer is an end-payer belonging to one organization. Payments reference
// customers but do not own them.
type Customer struct {
	shared.TenantAggregateRoot
	Reference       string
	Name            string
	PhoneNumber     string
	Email           string
	IsActive        bool
	LastPaymentDate *time.Time
}

// NewCustomer creates an active customer
func NewCustomer(tenantID uuid.UUID, reference, name, phoneNumber, email string) (*Customer, error) {
	if reference == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Customer reference is required")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Customer name is required")
	}
	if phoneNumber == "" && email == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Customer requires a phone number or an email")
	}

	return &Customer{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Reference:           reference,
		Name:                name,
		PhoneNumber:         phoneNumber,
		Email:               email,
		IsActive:            true,
	}, nil
}

// RecordPaymentActivity updates the last successful payment timestamp
func (c *Customer) RecordPaymentActivity(at time.Time) {
	paidAt := at
	c.LastPaymentDate = &paidAt
	c.IncrementVersion()
	c.UpdatedAt = time.Now()
}

// Deactivate disables the customer
func (c *Customer) Deactivate() {
	c.IsActive = false
	c.IncrementVersion()
	c.UpdatedAt = time.Now()
}
