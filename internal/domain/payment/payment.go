package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pesaflow/backend/internal/domain/shared"
)

// PaymentStatus represents the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusInitiated  PaymentStatus = "INITIATED"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
	PaymentStatusReversed   PaymentStatus = "REVERSED"
)

// IsValid checks if the status is a valid payment status
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusInitiated, PaymentStatusProcessing,
		PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled,
		PaymentStatusReversed:
		return true
	}
	return false
}

// IsTerminal checks if the status is terminal (no further transitions)
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled,
		PaymentStatusReversed:
		return true
	}
	return false
}

// CanDispatch checks if a payment in this status may be sent to the provider
func (s PaymentStatus) CanDispatch() bool {
	return s == PaymentStatusPending
}

// CanCancel checks if a payment in this status may be cancelled by the caller.
// Once the provider has accepted the push request the prompt cannot be
// recalled, so PROCESSING is not cancellable.
func (s PaymentStatus) CanCancel() bool {
	return s == PaymentStatusPending || s == PaymentStatusInitiated
}

// CanReconcile checks if a callback may settle a payment in this status
func (s PaymentStatus) CanReconcile() bool {
	return s == PaymentStatusInitiated || s == PaymentStatusProcessing
}

// String returns the string representation
func (s PaymentStatus) String() string {
	return string(s)
}

// PaymentMethod represents how the money moves
type PaymentMethod string

const (
	PaymentMethodMpesa  PaymentMethod = "MPESA"
	PaymentMethodCard   PaymentMethod = "CARD"
	PaymentMethodBank   PaymentMethod = "BANK"
	PaymentMethodCash   PaymentMethod = "CASH"
	PaymentMethodWallet PaymentMethod = "WALLET"
	PaymentMethodCheque PaymentMethod = "CHEQUE"
)

// IsValid checks if the method is a known payment method
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodMpesa, PaymentMethodCard, PaymentMethodBank,
		PaymentMethodCash, PaymentMethodWallet, PaymentMethodCheque:
		return true
	}
	return false
}

// String returns the string representation
func (m PaymentMethod) String() string {
	return string(m)
}

// PaymentKind classifies what the payment settles
type PaymentKind string

const (
	PaymentKindInvoice      PaymentKind = "INVOICE"
	PaymentKindSubscription PaymentKind = "SUBSCRIPTION"
	PaymentKindFee          PaymentKind = "FEE"
	PaymentKindRent         PaymentKind = "RENT"
	PaymentKindDonation     PaymentKind = "DONATION"
	PaymentKindRefund       PaymentKind = "REFUND"
	PaymentKindOther        PaymentKind = "OTHER"
)

// IsValid checks if the kind is a known payment kind
func (k PaymentKind) IsValid() bool {
	switch k {
	case PaymentKindInvoice, PaymentKindSubscription, PaymentKindFee,
		PaymentKindRent, PaymentKindDonation, PaymentKindRefund,
		PaymentKindOther:
		return true
	}
	return false
}

// String returns the string representation
func (k PaymentKind) String() string {
	return string(k)
}

// Payment is a single monetary transaction attempt.
// Reference is assigned exactly once at creation and never regenerated.
// NetAmount is recomputed on every amount or fee mutation, never trusted
// from caller input.
type Payment struct {
	shared.TenantAggregateRoot
	Reference         string
	Amount            decimal.Decimal
	TransactionFee    decimal.Decimal
	NetAmount         decimal.Decimal
	Currency          string
	Method            PaymentMethod
	Kind              PaymentKind
	Status            PaymentStatus
	PhoneNumber       string
	Description       string
	CustomerID        *uuid.UUID
	InvoiceID         *uuid.UUID
	PaymentPlanID     *uuid.UUID
	CheckoutRequestID string
	MerchantRequestID string
	ExternalReference string
	FailureReason     string
	// CompletedAt is set on settlement and retained on a REVERSED payment
	// as the original settlement time
	CompletedAt    *time.Time
	IsReversed     bool
	ReversalReason string
	ReversedAt     *time.Time
	ReversedBy     *uuid.UUID
}

// NewPayment creates a payment in PENDING state
func NewPayment(
	tenantID uuid.UUID,
	reference string,
	amount decimal.Decimal,
	method PaymentMethod,
	kind PaymentKind,
	phoneNumber string,
	description string,
) (*Payment, error) {
	if reference == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Payment reference is required")
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown payment method: "+string(method))
	}
	if !kind.IsValid() {
		kind = PaymentKindOther
	}

	p := &Payment{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Reference:           reference,
		Amount:              amount,
		TransactionFee:      decimal.Zero,
		Currency:            "KES",
		Method:              method,
		Kind:                kind,
		Status:              PaymentStatusPending,
		PhoneNumber:         phoneNumber,
		Description:         description,
	}
	p.recalculateNetAmount()

	p.AddDomainEvent(NewPaymentCreatedEvent(p))
	return p, nil
}

// recalculateNetAmount keeps NetAmount = Amount - TransactionFee
func (p *Payment) recalculateNetAmount() {
	p.NetAmount = p.Amount.Sub(p.TransactionFee)
}

// LinkCustomer attaches the resolved customer
func (p *Payment) LinkCustomer(customerID uuid.UUID) {
	p.CustomerID = &customerID
	p.touch()
}

// LinkInvoice attaches the invoice this payment settles
func (p *Payment) LinkInvoice(invoiceID uuid.UUID) {
	p.InvoiceID = &invoiceID
	p.Kind = PaymentKindInvoice
	p.touch()
}

// LinkPaymentPlan attaches the installment plan this payment settles
func (p *Payment) LinkPaymentPlan(planID uuid.UUID) {
	p.PaymentPlanID = &planID
	p.touch()
}

// Initiate marks the start of provider dispatch
func (p *Payment) Initiate() error {
	if !p.Status.CanDispatch() {
		return shared.NewDomainError("INVALID_STATE",
			"Payment cannot be dispatched from status "+p.Status.String())
	}
	p.Status = PaymentStatusInitiated
	p.touch()
	p.AddDomainEvent(NewPaymentInitiatedEvent(p))
	return nil
}

// MarkProcessing records provider acceptance of the push request along with
// the correlation identifiers used to match the eventual callback
func (p *Payment) MarkProcessing(checkoutRequestID, merchantRequestID string) error {
	if p.Status != PaymentStatusInitiated {
		return shared.NewDomainError("INVALID_STATE",
			"Payment cannot enter processing from status "+p.Status.String())
	}
	if checkoutRequestID == "" {
		return shared.NewDomainError("INVALID_INPUT", "Checkout request ID is required")
	}
	p.Status = PaymentStatusProcessing
	p.CheckoutRequestID = checkoutRequestID
	p.MerchantRequestID = merchantRequestID
	p.touch()
	return nil
}

// Complete settles the payment from a confirmed provider callback.
// The confirmed amount from callback metadata overrides the requested amount
// when present.
func (p *Payment) Complete(externalReference string, confirmedAmount decimal.Decimal, paidAt time.Time) error {
	if !p.Status.CanReconcile() {
		if p.Status.IsTerminal() {
			return ErrAlreadyTerminal
		}
		return shared.NewDomainError("INVALID_STATE",
			"Payment cannot be completed from status "+p.Status.String())
	}
	if confirmedAmount.IsPositive() {
		p.Amount = confirmedAmount
	}
	p.Status = PaymentStatusCompleted
	p.ExternalReference = externalReference
	p.CompletedAt = &paidAt
	p.recalculateNetAmount()
	p.touch()
	p.AddDomainEvent(NewPaymentCompletedEvent(p))
	return nil
}

// SettleManually completes a payment that never went through a provider,
// such as a cash or bank settlement recorded by a business user
func (p *Payment) SettleManually(paidAt time.Time) error {
	if p.Status != PaymentStatusPending {
		return shared.NewDomainError("INVALID_STATE",
			"Only pending payments can be settled manually, current status: "+p.Status.String())
	}
	p.Status = PaymentStatusCompleted
	p.CompletedAt = &paidAt
	p.recalculateNetAmount()
	p.touch()
	p.AddDomainEvent(NewPaymentCompletedEvent(p))
	return nil
}

// Fail terminates the payment with a reason
func (p *Payment) Fail(reason string) error {
	if p.Status.IsTerminal() {
		return ErrAlreadyTerminal
	}
	p.Status = PaymentStatusFailed
	p.FailureReason = reason
	p.touch()
	p.AddDomainEvent(NewPaymentFailedEvent(p))
	return nil
}

// Cancel aborts the payment before the provider accepted it
func (p *Payment) Cancel() error {
	if !p.Status.CanCancel() {
		return ErrNotCancellable
	}
	p.Status = PaymentStatusCancelled
	p.touch()
	return nil
}

// Reverse marks a completed payment as reversed. This is a ledger-only
// reversal: no provider reversal API is called. CompletedAt is retained as
// the original settlement time.
func (p *Payment) Reverse(reason string, actor uuid.UUID) error {
	if p.IsReversed {
		return ErrAlreadyReversed
	}
	if p.Status != PaymentStatusCompleted {
		return ErrNotReversible
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_INPUT", "Reversal reason is required")
	}
	now := time.Now()
	p.Status = PaymentStatusReversed
	p.IsReversed = true
	p.ReversalReason = reason
	p.ReversedAt = &now
	p.ReversedBy = &actor
	p.touch()
	p.AddDomainEvent(NewPaymentReversedEvent(p))
	return nil
}

// SetTransactionFee records the provider fee and recomputes the net amount
func (p *Payment) SetTransactionFee(fee decimal.Decimal) error {
	if fee.IsNegative() {
		return shared.NewDomainError("INVALID_INPUT", "Transaction fee cannot be negative")
	}
	p.TransactionFee = fee
	p.recalculateNetAmount()
	p.touch()
	return nil
}

// IsSettled checks if the payment completed and was not reversed
func (p *Payment) IsSettled() bool {
	return p.Status == PaymentStatusCompleted && !p.IsReversed
}

func (p *Payment) touch() {
	p.IncrementVersion()
	p.UpdatedAt = time.Now()
}
