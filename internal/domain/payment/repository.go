package payment

import (
	"context"

	"github.com/google/uuid"
)

// PaymentRepository defines persistence operations for payments.
// Finder methods return (nil, nil) when no record matches.
type PaymentRepository interface {
	Save(ctx context.Context, p *Payment) error
	// SaveWithLock persists the payment with an optimistic version check and
	// returns a CONCURRENT_MODIFICATION error when the row changed underneath
	SaveWithLock(ctx context.Context, p *Payment, expectedVersion int) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)
	FindByReference(ctx context.Context, tenantID uuid.UUID, reference string) (*Payment, error)
	// FindByCheckoutRequestIDForUpdate looks up the non-terminal payment
	// holding the given correlation id, taking a row-level lock so concurrent
	// callback deliveries serialize
	FindByCheckoutRequestIDForUpdate(ctx context.Context, tenantID uuid.UUID, checkoutRequestID string) (*Payment, error)
	FindByStatus(ctx context.Context, tenantID uuid.UUID, status PaymentStatus, limit, offset int) ([]*Payment, error)
	FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID, limit, offset int) ([]*Payment, error)
}

// InvoiceRepository defines persistence operations for invoices
type InvoiceRepository interface {
	Save(ctx context.Context, inv *Invoice) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)
	FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*Invoice, error)
	FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID, limit, offset int) ([]*Invoice, error)
}

// PaymentPlanRepository defines persistence operations for payment plans
type PaymentPlanRepository interface {
	Save(ctx context.Context, plan *PaymentPlan) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*PaymentPlan, error)
	FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) ([]*PaymentPlan, error)
	FindByStatus(ctx context.Context, tenantID uuid.UUID, status PlanStatus, limit, offset int) ([]*PaymentPlan, error)
}
