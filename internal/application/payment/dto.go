package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pesaflow/backend/internal/domain/payment"
)

// InitiatePaymentCommand creates a new payment in PENDING state
type InitiatePaymentCommand struct {
	TenantID         uuid.UUID
	OrganizationName string
	CustomerID       *uuid.UUID
	Amount           decimal.Decimal
	PhoneNumber      string
	Email            string
	Description      string
	Method           payment.PaymentMethod
	Kind             payment.PaymentKind
	InvoiceID        *uuid.UUID
	PaymentPlanID    *uuid.UUID
	InitiatedBy      *uuid.UUID
}

// ReconcileResult reports the outcome of processing one provider callback.
// Orphaned and AlreadyProcessed outcomes are acknowledged to the provider
// with success so it stops redelivering.
type ReconcileResult struct {
	Success          bool
	AlreadyProcessed bool
	Orphaned         bool
	PaymentID        *uuid.UUID
	Acknowledgement  []byte
}

// CreateInvoiceCommand creates a draft invoice
type CreateInvoiceCommand struct {
	TenantID         uuid.UUID
	OrganizationName string
	CustomerID       uuid.UUID
	Subtotal         decimal.Decimal
	TaxAmount        decimal.Decimal
	DiscountAmount   decimal.Decimal
	IssueDate        time.Time
	DueDate          time.Time
	Notes            string
}

// CreatePlanCommand creates an installment plan
type CreatePlanCommand struct {
	TenantID             uuid.UUID
	CustomerID           uuid.UUID
	Description          string
	TotalAmount          decimal.Decimal
	NumberOfInstallments int
	Frequency            payment.PlanFrequency
	StartDate            time.Time
}

// ManualSettlementCommand records money received outside the provider flow
// against an invoice or plan
type ManualSettlementCommand struct {
	TenantID         uuid.UUID
	OrganizationName string
	Amount           decimal.Decimal
	Method           payment.PaymentMethod
	Description      string
	RecordedBy       *uuid.UUID
}
