package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NotificationRepository defines persistence operations for notifications.
// Finder methods return (nil, nil) when no record matches.
type NotificationRepository interface {
	Save(ctx context.Context, n *Notification) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Notification, error)
	// FindDue returns pending and retryable failed notifications whose next
	// attempt time has passed, oldest first
	FindDue(ctx context.Context, now time.Time, limit int) ([]*Notification, error)
	CountByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (int64, error)
}

// PreferenceRepository defines persistence operations for channel preferences
type PreferenceRepository interface {
	Save(ctx context.Context, p *Preference) error
	FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) (*Preference, error)
}

// ChannelSender delivers one notification over its channel. Implementations
// are external collaborators (SMS gateway, SMTP relay, push service).
type ChannelSender interface {
	Channel() Channel
	// Send returns the provider-assigned message identifier
	Send(ctx context.Context, n *Notification) (string, error)
}
