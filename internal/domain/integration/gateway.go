package integration

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Gateway errors, categorized so callers can decide retryability
var (
	// ErrProviderUnavailable indicates a transient failure; the caller may retry
	ErrProviderUnavailable = errors.New("integration: provider temporarily unavailable")
	// ErrProviderRejected indicates the provider refused the request; not retryable
	ErrProviderRejected = errors.New("integration: provider rejected the request")
	// ErrInvalidCredentials indicates misconfigured credentials; operator action required
	ErrInvalidCredentials = errors.New("integration: provider credentials rejected")
	// ErrMalformedCallback indicates an unparseable callback payload
	ErrMalformedCallback = errors.New("integration: malformed callback payload")
)

// PushRequest is the input to a mobile-money push prompt
type PushRequest struct {
	PhoneNumber string
	Amount      decimal.Decimal
	Reference   string
	Description string
}

// PushResponse carries the correlation identifiers the provider assigned to
// an accepted push request
type PushResponse struct {
	CheckoutRequestID   string
	MerchantRequestID   string
	ResponseDescription string
}

// CallbackResult is the normalized outcome extracted from a provider callback
type CallbackResult struct {
	CheckoutRequestID string
	MerchantRequestID string
	Success           bool
	ResultCode        int
	ResultDescription string
	ReceiptNumber     string
	Amount            decimal.Decimal
	PhoneNumber       string
}

// MoneyMovementProvider abstracts the mobile-money push API and webhook
// verification for one provider. Implementations select sandbox or production
// endpoints from the integration record.
type MoneyMovementProvider interface {
	// Provider returns the provider this adapter serves
	Provider() Provider

	// Authenticate obtains an access token for the integration's credentials
	Authenticate(ctx context.Context, integ *Integration) (string, error)

	// PushPayment dispatches a push prompt to the payer's phone and returns
	// the provider-issued correlation identifiers
	PushPayment(ctx context.Context, integ *Integration, req PushRequest) (*PushResponse, error)

	// VerifyWebhookSignature checks a callback signature against the webhook
	// secret using a constant-time comparison
	VerifyWebhookSignature(payload []byte, signature, secret string) bool

	// ParseCallback extracts the normalized result from a raw callback payload
	ParseCallback(payload []byte) (*CallbackResult, error)

	// AcknowledgementResponse builds the body returned to the provider
	AcknowledgementResponse(success bool, message string) []byte
}
