package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pesaflow/backend/internal/domain/shared"
)

// InvoiceStatus represents the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusSent          InvoiceStatus = "SENT"
	InvoiceStatusViewed        InvoiceStatus = "VIEWED"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
)

// IsValid checks if the status is a valid invoice status
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusViewed,
		InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusOverdue,
		InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation
func (s InvoiceStatus) String() string {
	return string(s)
}

// Invoice is a bill owed by a customer, settled fully or partially by
// payments. BalanceDue is denormalized for query performance but recomputed
// atomically with every write.
type Invoice struct {
	shared.TenantAggregateRoot
	Number         string
	CustomerID     uuid.UUID
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
	AmountPaid     decimal.Decimal
	BalanceDue     decimal.Decimal
	Status         InvoiceStatus
	IssueDate      time.Time
	DueDate        time.Time
	PaidDate       *time.Time
	Notes          string
}

// NewInvoice creates a draft invoice
func NewInvoice(
	tenantID uuid.UUID,
	number string,
	customerID uuid.UUID,
	subtotal, taxAmount, discountAmount decimal.Decimal,
	issueDate, dueDate time.Time,
) (*Invoice, error) {
	if number == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invoice number is required")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invoice customer is required")
	}
	if subtotal.IsNegative() || taxAmount.IsNegative() || discountAmount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invoice amounts cannot be negative")
	}
	total := subtotal.Add(taxAmount).Sub(discountAmount)
	if !total.IsPositive() {
		return nil, ErrInvalidAmount
	}

	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Number:              number,
		CustomerID:          customerID,
		Subtotal:            subtotal,
		TaxAmount:           taxAmount,
		DiscountAmount:      discountAmount,
		TotalAmount:         total,
		AmountPaid:          decimal.Zero,
		Status:              InvoiceStatusDraft,
		IssueDate:           issueDate,
		DueDate:             dueDate,
	}
	inv.BalanceDue = inv.computeBalanceDue()
	return inv, nil
}

// computeBalanceDue derives the outstanding balance
func (i *Invoice) computeBalanceDue() decimal.Decimal {
	return i.TotalAmount.Sub(i.AmountPaid)
}

// RecordPayment applies a settlement amount to the invoice. It is the only
// sanctioned mutator for AmountPaid and must run in the same transaction as
// the payment row representing the money movement.
func (i *Invoice) RecordPayment(amount decimal.Decimal, paidAt time.Time) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if i.Status == InvoiceStatusCancelled {
		return shared.NewDomainError("INVALID_STATE", "Cannot record a payment on a cancelled invoice")
	}
	i.AmountPaid = i.AmountPaid.Add(amount)
	i.refreshStatus(paidAt)
	i.touch()
	return nil
}

// refreshStatus derives status and balance from the amounts and due date
func (i *Invoice) refreshStatus(now time.Time) {
	i.BalanceDue = i.computeBalanceDue()

	switch {
	case i.AmountPaid.GreaterThanOrEqual(i.TotalAmount):
		if i.Status != InvoiceStatusPaid {
			paidAt := now
			i.PaidDate = &paidAt
		}
		i.Status = InvoiceStatusPaid
	case i.AmountPaid.IsPositive():
		i.Status = InvoiceStatusPartiallyPaid
	case now.After(i.DueDate):
		i.Status = InvoiceStatusOverdue
	}
}

// RefreshOverdue re-derives overdue status against the given time
func (i *Invoice) RefreshOverdue(now time.Time) {
	if i.Status == InvoiceStatusPaid || i.Status == InvoiceStatusCancelled {
		return
	}
	i.refreshStatus(now)
	i.touch()
}

// MarkSent transitions a draft invoice to sent
func (i *Invoice) MarkSent() error {
	if i.Status != InvoiceStatusDraft {
		return shared.NewDomainError("INVALID_STATE",
			"Only draft invoices can be sent, current status: "+i.Status.String())
	}
	i.Status = InvoiceStatusSent
	i.touch()
	return nil
}

// MarkViewed records that the customer opened the invoice
func (i *Invoice) MarkViewed() error {
	if i.Status != InvoiceStatusSent {
		return shared.NewDomainError("INVALID_STATE",
			"Only sent invoices can be marked viewed, current status: "+i.Status.String())
	}
	i.Status = InvoiceStatusViewed
	i.touch()
	return nil
}

// Cancel voids an unpaid invoice
func (i *Invoice) Cancel() error {
	if i.Status == InvoiceStatusPaid {
		return shared.NewDomainError("INVALID_STATE", "Paid invoices cannot be cancelled")
	}
	i.Status = InvoiceStatusCancelled
	i.touch()
	return nil
}

// IsSettled checks if the invoice is fully paid
func (i *Invoice) IsSettled() bool {
	return i.AmountPaid.GreaterThanOrEqual(i.TotalAmount)
}

func (i *Invoice) touch() {
	i.IncrementVersion()
	i.UpdatedAt = time.Now()
}
