package payment

import "github.com/pesaflow/backend/internal/domain/shared"

// Domain errors for the payment lifecycle
var (
	ErrInvalidAmount     = shared.NewDomainError("INVALID_AMOUNT", "Amount must be greater than zero")
	ErrPaymentNotFound   = shared.NewDomainError("PAYMENT_NOT_FOUND", "No payment matches the given reference")
	ErrAlreadyTerminal   = shared.NewDomainError("ALREADY_TERMINAL", "Payment has already reached a terminal state")
	ErrAlreadyReversed   = shared.NewDomainError("ALREADY_REVERSED", "Payment has already been reversed")
	ErrNotReversible     = shared.NewDomainError("INVALID_STATE", "Only completed payments can be reversed")
	ErrNotCancellable    = shared.NewDomainError("INVALID_STATE", "Payment can no longer be cancelled")
	ErrAmbiguousCustomer = shared.NewDomainError("AMBIGUOUS_CUSTOMER", "Multiple customers match the given phone or email")
)
