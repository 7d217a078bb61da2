package notification

import (
	"time"

	"github.com/google/uuid"

	"github.com/pesaflow/backend/internal/domain/notification"
)

// SendCommand enqueues one notification
type SendCommand struct {
	TenantID       uuid.UUID
	Channel        notification.Channel
	Priority       notification.Priority
	CustomerID     *uuid.UUID
	RecipientPhone string
	RecipientEmail string
	Subject        string
	Message        string
	PaymentID      *uuid.UUID
	InvoiceID      *uuid.UUID
	ScheduledFor   *time.Time
}

// BulkSendCommand enqueues one notification per recipient
type BulkSendCommand struct {
	TenantID    uuid.UUID
	CustomerIDs []uuid.UUID
	Channel     notification.Channel
	Priority    notification.Priority
	Subject     string
	Message     string
}

// BulkResult counts the outcome of a bulk enqueue; recipient failures are
// counted, not raised
type BulkResult struct {
	Queued int
	Failed int
}
