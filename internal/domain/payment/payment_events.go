package payment

import (
	"github.com/shopspring/decimal"

	"github.com/pesaflow/backend/internal/domain/shared"
)

// Event types for the payment aggregate
const (
	EventTypePaymentCreated   = "payment.created"
	EventTypePaymentInitiated = "payment.initiated"
	EventTypePaymentCompleted = "payment.completed"
	EventTypePaymentFailed    = "payment.failed"
	EventTypePaymentReversed  = "payment.reversed"
)

// PaymentCreatedEvent is raised when a payment record is created
type PaymentCreatedEvent struct {
	shared.BaseDomainEvent
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Method    PaymentMethod   `json:"method"`
}

// NewPaymentCreatedEvent creates a PaymentCreatedEvent
func NewPaymentCreatedEvent(p *Payment) *PaymentCreatedEvent {
	return &PaymentCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentCreated, "Payment", p.ID, p.TenantID),
		Reference:       p.Reference,
		Amount:          p.Amount,
		Method:          p.Method,
	}
}

// PaymentInitiatedEvent is raised when provider dispatch begins
type PaymentInitiatedEvent struct {
	shared.BaseDomainEvent
	Reference string `json:"reference"`
}

// NewPaymentInitiatedEvent creates a PaymentInitiatedEvent
func NewPaymentInitiatedEvent(p *Payment) *PaymentInitiatedEvent {
	return &PaymentInitiatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentInitiated, "Payment", p.ID, p.TenantID),
		Reference:       p.Reference,
	}
}

// PaymentCompletedEvent is raised when a callback confirms settlement
type PaymentCompletedEvent struct {
	shared.BaseDomainEvent
	Reference         string          `json:"reference"`
	Amount            decimal.Decimal `json:"amount"`
	NetAmount         decimal.Decimal `json:"net_amount"`
	ExternalReference string          `json:"external_reference"`
}

// NewPaymentCompletedEvent creates a PaymentCompletedEvent
func NewPaymentCompletedEvent(p *Payment) *PaymentCompletedEvent {
	return &PaymentCompletedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypePaymentCompleted, "Payment", p.ID, p.TenantID),
		Reference:         p.Reference,
		Amount:            p.Amount,
		NetAmount:         p.NetAmount,
		ExternalReference: p.ExternalReference,
	}
}

// PaymentFailedEvent is raised when a payment terminates unsuccessfully
type PaymentFailedEvent struct {
	shared.BaseDomainEvent
	Reference     string `json:"reference"`
	FailureReason string `json:"failure_reason"`
}

// NewPaymentFailedEvent creates a PaymentFailedEvent
func NewPaymentFailedEvent(p *Payment) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentFailed, "Payment", p.ID, p.TenantID),
		Reference:       p.Reference,
		FailureReason:   p.FailureReason,
	}
}

// PaymentReversedEvent is raised when a completed payment is reversed
type PaymentReversedEvent struct {
	shared.BaseDomainEvent
	Reference      string `json:"reference"`
	ReversalReason string `json:"reversal_reason"`
}

// NewPaymentReversedEvent creates a PaymentReversedEvent
func NewPaymentReversedEvent(p *Payment) *PaymentReversedEvent {
	return &PaymentReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentReversed, "Payment", p.ID, p.TenantID),
		Reference:       p.Reference,
		ReversalReason:  p.ReversalReason,
	}
}
