package notification

import (
	"time"

	"github.com/google/uuid"

	"github.com/pesaflow/backend/internal/domain/shared"
)

// Retry policy for failed deliveries
const (
	MaxDeliveryAttempts = 3
	RetryBackoffStep    = 5 * time.Minute
)

// Channel is the closed set of delivery channels
type Channel string

const (
	ChannelSMS      Channel = "SMS"
	ChannelEmail    Channel = "EMAIL"
	ChannelWhatsapp Channel = "WHATSAPP"
	ChannelPush     Channel = "PUSH"
	ChannelInApp    Channel = "IN_APP"
)

// IsValid checks if the channel is known
func (c Channel) IsValid() bool {
	switch c {
	case ChannelSMS, ChannelEmail, ChannelWhatsapp, ChannelPush, ChannelInApp:
		return true
	}
	return false
}

// String returns the string representation
func (c Channel) String() string {
	return string(c)
}

// Status is the delivery state of a notification
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusFailed    Status = "FAILED"
	StatusRead      Status = "READ"
)

// IsTerminal checks if no further delivery attempt should run.
// FAILED is not terminal until the retry budget is exhausted.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead:
		return true
	}
	return false
}

// Priority orders notifications within the dispatch queue
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// IsValid checks if the priority is known
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Notification is one outbound message, optionally tied to a payment or
// invoice. The notifications table is the durable dispatch queue: the worker
// claims pending rows whose next attempt time has passed.
type Notification struct {
	shared.TenantAggregateRoot
	Channel           Channel
	Status            Status
	Priority          Priority
	CustomerID        *uuid.UUID
	RecipientPhone    string
	RecipientEmail    string
	Subject           string
	Message           string
	PaymentID         *uuid.UUID
	InvoiceID         *uuid.UUID
	ScheduledFor      *time.Time
	NextAttemptAt     *time.Time
	SentAt            *time.Time
	DeliveredAt       *time.Time
	ReadAt            *time.Time
	DeliveryAttempts  int
	FailureReason     string
	ProviderMessageID string
}

// NewNotification creates a pending notification
func NewNotification(
	tenantID uuid.UUID,
	channel Channel,
	priority Priority,
	message string,
) (*Notification, error) {
	if !channel.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown notification channel: "+string(channel))
	}
	if message == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Notification message is required")
	}
	if !priority.IsValid() {
		priority = PriorityNormal
	}

	return &Notification{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Channel:             channel,
		Status:              StatusPending,
		Priority:            priority,
		Message:             message,
	}, nil
}

// Schedule defers the first delivery attempt
func (n *Notification) Schedule(at time.Time) {
	scheduledFor := at
	n.ScheduledFor = &scheduledFor
	n.NextAttemptAt = &scheduledFor
	n.touch()
}

// Reschedule moves the next delivery attempt without counting a failure,
// used when the recipient is inside a quiet-hours window
func (n *Notification) Reschedule(at time.Time) {
	next := at
	n.NextAttemptAt = &next
	n.touch()
}

// MarkSent records a successful handoff to the channel provider
func (n *Notification) MarkSent(providerMessageID string, at time.Time) error {
	if n.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Notification was already delivered")
	}
	sentAt := at
	n.Status = StatusSent
	n.SentAt = &sentAt
	n.ProviderMessageID = providerMessageID
	n.NextAttemptAt = nil
	n.FailureReason = ""
	n.touch()
	return nil
}

// MarkDelivered records provider delivery confirmation
func (n *Notification) MarkDelivered(at time.Time) error {
	if n.Status != StatusSent {
		return shared.NewDomainError("INVALID_STATE",
			"Only sent notifications can be marked delivered")
	}
	deliveredAt := at
	n.Status = StatusDelivered
	n.DeliveredAt = &deliveredAt
	n.touch()
	return nil
}

// MarkRead records that the recipient opened an in-app notification
func (n *Notification) MarkRead(at time.Time) error {
	if n.Status != StatusSent && n.Status != StatusDelivered {
		return shared.NewDomainError("INVALID_STATE",
			"Notification cannot be marked read from status "+string(n.Status))
	}
	readAt := at
	n.Status = StatusRead
	n.ReadAt = &readAt
	n.touch()
	return nil
}

// MarkFailed records a delivery failure and schedules the next retry with
// linear backoff (5, 10, 15 minutes) until the attempt budget is exhausted
func (n *Notification) MarkFailed(reason string, at time.Time) {
	n.DeliveryAttempts++
	n.Status = StatusFailed
	n.FailureReason = reason
	if n.DeliveryAttempts < MaxDeliveryAttempts {
		next := at.Add(RetryBackoffStep * time.Duration(n.DeliveryAttempts))
		n.NextAttemptAt = &next
	} else {
		n.NextAttemptAt = nil
	}
	n.touch()
}

// MarkFailedPermanent records a non-retryable failure, such as the recipient
// having the channel disabled
func (n *Notification) MarkFailedPermanent(reason string) {
	n.Status = StatusFailed
	n.FailureReason = reason
	n.DeliveryAttempts = MaxDeliveryAttempts
	n.NextAttemptAt = nil
	n.touch()
}

// CanRetry checks if another delivery attempt is allowed
func (n *Notification) CanRetry() bool {
	return n.Status == StatusFailed && n.DeliveryAttempts < MaxDeliveryAttempts
}

// SetRecipient attaches the resolved recipient identifiers
func (n *Notification) SetRecipient(customerID *uuid.UUID, phone, email string) {
	n.CustomerID = customerID
	n.RecipientPhone = phone
	n.RecipientEmail = email
	n.touch()
}

// LinkPayment associates the notification with a payment
func (n *Notification) LinkPayment(paymentID uuid.UUID) {
	n.PaymentID = &paymentID
	n.touch()
}

// LinkInvoice associates the notification with an invoice
func (n *Notification) LinkInvoice(invoiceID uuid.UUID) {
	n.InvoiceID = &invoiceID
	n.touch()
}

func (n *Notification) touch() {
	n.IncrementVersion()
	n.UpdatedAt = time.Now()
}
