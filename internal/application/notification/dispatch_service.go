package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pesaflow/backend/internal/domain/customer"
	"github.com/pesaflow/backend/internal/domain/notification"
	"github.com/pesaflow/backend/internal/domain/shared"
)

// DispatchService enqueues notifications and processes them through the
// channel senders, honoring recipient preferences and quiet hours, with
// bounded linear-backoff retries.
type DispatchService struct {
	notificationRepo notification.NotificationRepository
	preferenceRepo   notification.PreferenceRepository
	customerRepo     customer.CustomerRepository
	senders          map[notification.Channel]notification.ChannelSender
	logger           *zap.Logger
	now              func() time.Time
}

// NewDispatchService creates a dispatch service
func NewDispatchService(
	notificationRepo notification.NotificationRepository,
	preferenceRepo notification.PreferenceRepository,
	customerRepo customer.CustomerRepository,
	senders []notification.ChannelSender,
	logger *zap.Logger,
) *DispatchService {
	senderMap := make(map[notification.Channel]notification.ChannelSender, len(senders))
	for _, s := range senders {
		senderMap[s.Channel()] = s
	}
	return &DispatchService{
		notificationRepo: notificationRepo,
		preferenceRepo:   preferenceRepo,
		customerRepo:     customerRepo,
		senders:          senderMap,
		logger:           logger,
		now:              time.Now,
	}
}

// Enqueue validates and persists a pending notification. Delivery happens
// asynchronously through the dispatch worker.
func (s *DispatchService) Enqueue(ctx context.Context, cmd SendCommand) (*notification.Notification, error) {
	if err := s.validateRecipient(ctx, &cmd); err != nil {
		return nil, err
	}

	n, err := notification.NewNotification(cmd.TenantID, cmd.Channel, cmd.Priority, cmd.Message)
	if err != nil {
		return nil, err
	}
	n.Subject = cmd.Subject
	n.SetRecipient(cmd.CustomerID, cmd.RecipientPhone, cmd.RecipientEmail)
	if cmd.PaymentID != nil {
		n.LinkPayment(*cmd.PaymentID)
	}
	if cmd.InvoiceID != nil {
		n.LinkInvoice(*cmd.InvoiceID)
	}
	if cmd.ScheduledFor != nil && cmd.ScheduledFor.After(s.now()) {
		n.Schedule(*cmd.ScheduledFor)
	}

	if err := s.notificationRepo.Save(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// validateRecipient enforces channel-specific recipient requirements,
// resolving missing contact details from the customer record
func (s *DispatchService) validateRecipient(ctx context.Context, cmd *SendCommand) error {
	if !cmd.Channel.IsValid() {
		return shared.NewDomainError("INVALID_INPUT", "Unknown notification channel: "+string(cmd.Channel))
	}

	if cmd.CustomerID != nil && (cmd.RecipientPhone == "" || cmd.RecipientEmail == "") {
		c, err := s.customerRepo.FindByID(ctx, cmd.TenantID, *cmd.CustomerID)
		if err != nil {
			return err
		}
		if c == nil {
			return shared.NewDomainError("NOT_FOUND", "Recipient customer not found")
		}
		if cmd.RecipientPhone == "" {
			cmd.RecipientPhone = c.PhoneNumber
		}
		if cmd.RecipientEmail == "" {
			cmd.RecipientEmail = c.Email
		}
	}

	switch cmd.Channel {
	case notification.ChannelEmail:
		if cmd.Subject == "" {
			return shared.NewDomainError("INVALID_INPUT", "Email notifications require a subject")
		}
		if cmd.RecipientEmail == "" {
			return shared.NewDomainError("INVALID_INPUT", "Email notifications require a recipient email")
		}
	case notification.ChannelSMS, notification.ChannelWhatsapp:
		if cmd.RecipientPhone == "" {
			return shared.NewDomainError("INVALID_INPUT",
				string(cmd.Channel)+" notifications require a recipient phone number")
		}
	case notification.ChannelPush, notification.ChannelInApp:
		if cmd.CustomerID == nil {
			return shared.NewDomainError("INVALID_INPUT",
				string(cmd.Channel)+" notifications require a customer recipient")
		}
	}
	return nil
}

// EnqueueBulk creates one notification per recipient. A recipient lookup
// failure does not abort the batch; failures are counted in the result.
func (s *DispatchService) EnqueueBulk(ctx context.Context, cmd BulkSendCommand) (*BulkResult, error) {
	if len(cmd.CustomerIDs) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Bulk send requires at least one recipient")
	}

	result := &BulkResult{}
	for _, customerID := range cmd.CustomerIDs {
		id := customerID
		_, err := s.Enqueue(ctx, SendCommand{
			TenantID:   cmd.TenantID,
			Channel:    cmd.Channel,
			Priority:   cmd.Priority,
			CustomerID: &id,
			Subject:    cmd.Subject,
			Message:    cmd.Message,
		})
		if err != nil {
			result.Failed++
			s.logger.Warn("bulk notification recipient skipped",
				zap.String("customer_id", customerID.String()),
				zap.Error(err))
			continue
		}
		result.Queued++
	}
	return result, nil
}

// Process attempts delivery of one notification. Already-delivered
// notifications are skipped, making duplicate enqueues and worker overlap
// harmless. Delivery failures are recorded on the notification, never
// propagated; the retry schedule drives redelivery.
func (s *DispatchService) Process(ctx context.Context, n *notification.Notification) error {
	if n.Status.IsTerminal() {
		return nil
	}
	if n.Status == notification.StatusFailed && !n.CanRetry() {
		return nil
	}

	now := s.now()

	if n.CustomerID != nil {
		pref, err := s.preferenceRepo.FindByCustomer(ctx, n.TenantID, *n.CustomerID)
		if err != nil {
			return err
		}
		if pref != nil {
			if !pref.Allows(n.Channel) {
				n.MarkFailedPermanent("recipient has disabled the " + n.Channel.String() + " channel")
				return s.notificationRepo.Save(ctx, n)
			}
			if inside, windowEnd := pref.InQuietHours(now); inside {
				n.Reschedule(windowEnd)
				return s.notificationRepo.Save(ctx, n)
			}
		}
	}

	// Rows enqueued inside settlement transactions carry only the customer
	// link; contact details are resolved at delivery time
	if n.CustomerID != nil && (n.RecipientPhone == "" || n.RecipientEmail == "") {
		c, err := s.customerRepo.FindByID(ctx, n.TenantID, *n.CustomerID)
		if err != nil {
			return err
		}
		if c != nil {
			if n.RecipientPhone == "" {
				n.RecipientPhone = c.PhoneNumber
			}
			if n.RecipientEmail == "" {
				n.RecipientEmail = c.Email
			}
		}
	}
	if missing := s.missingContact(n); missing != "" {
		n.MarkFailedPermanent(missing)
		return s.notificationRepo.Save(ctx, n)
	}

	sender, ok := s.senders[n.Channel]
	if !ok {
		n.MarkFailed("no sender configured for channel "+n.Channel.String(), now)
		return s.notificationRepo.Save(ctx, n)
	}

	providerMessageID, sendErr := sender.Send(ctx, n)
	if sendErr != nil {
		n.MarkFailed(sendErr.Error(), now)
		s.logger.Warn("notification delivery failed",
			zap.String("notification_id", n.ID.String()),
			zap.String("channel", n.Channel.String()),
			zap.Int("attempts", n.DeliveryAttempts),
			zap.Error(sendErr))
		return s.notificationRepo.Save(ctx, n)
	}

	if err := n.MarkSent(providerMessageID, now); err != nil {
		return err
	}
	s.logger.Debug("notification sent",
		zap.String("notification_id", n.ID.String()),
		zap.String("channel", n.Channel.String()),
		zap.String("provider_message_id", providerMessageID))
	return s.notificationRepo.Save(ctx, n)
}

// missingContact reports why a notification cannot be delivered on its
// channel, or "" when the required contact detail is present
func (s *DispatchService) missingContact(n *notification.Notification) string {
	switch n.Channel {
	case notification.ChannelSMS, notification.ChannelWhatsapp:
		if n.RecipientPhone == "" {
			return "no recipient phone number for " + n.Channel.String() + " delivery"
		}
	case notification.ChannelEmail:
		if n.RecipientEmail == "" {
			return "no recipient email for email delivery"
		}
	}
	return ""
}

// GetNotification loads one notification scoped to the organization
func (s *DispatchService) GetNotification(ctx context.Context, tenantID, id uuid.UUID) (*notification.Notification, error) {
	n, err := s.notificationRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Notification not found")
	}
	return n, nil
}
