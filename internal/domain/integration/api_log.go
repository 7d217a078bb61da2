package integration

import (
	"time"

	"github.com/google/uuid"

	"github.com/pesaflow/backend/internal/domain/shared"
)

// APILogStatus classifies an audited provider exchange
type APILogStatus string

const (
	APILogStatusSuccess  APILogStatus = "SUCCESS"
	APILogStatusFailed   APILogStatus = "FAILED"
	APILogStatusRejected APILogStatus = "REJECTED"
	APILogStatusOrphaned APILogStatus = "ORPHANED"
)

// APILogDirection distinguishes outbound provider calls from inbound webhooks
type APILogDirection string

const (
	APILogDirectionOutbound APILogDirection = "OUTBOUND"
	APILogDirectionInbound  APILogDirection = "INBOUND"
)

// APILog is an append-only audit record of one provider exchange, indexed by
// correlation id for operational debugging. It is the only side effect of a
// rejected or orphan webhook.
type APILog struct {
	shared.BaseEntity
	TenantID      uuid.UUID
	Provider      Provider
	Direction     APILogDirection
	Endpoint      string
	RequestBody   string
	ResponseBody  string
	StatusCode    int
	DurationMS    int64
	CorrelationID string
	PaymentID     *uuid.UUID
	Status        APILogStatus
	ErrorMessage  string
}

// NewAPILog creates an audit record for a provider exchange
func NewAPILog(
	tenantID uuid.UUID,
	provider Provider,
	direction APILogDirection,
	endpoint string,
	requestBody, responseBody string,
	statusCode int,
	duration time.Duration,
	correlationID string,
	status APILogStatus,
) *APILog {
	return &APILog{
		BaseEntity:    shared.NewBaseEntity(),
		TenantID:      tenantID,
		Provider:      provider,
		Direction:     direction,
		Endpoint:      endpoint,
		RequestBody:   requestBody,
		ResponseBody:  responseBody,
		StatusCode:    statusCode,
		DurationMS:    duration.Milliseconds(),
		CorrelationID: correlationID,
		Status:        status,
	}
}

// LinkPayment associates the audit record with the payment it concerned
func (l *APILog) LinkPayment(paymentID uuid.UUID) {
	l.PaymentID = &paymentID
}

// SetError records the failure detail
func (l *APILog) SetError(message string) {
	l.ErrorMessage = message
}
