package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pesaflow/backend/internal/domain/notification"
)

// LoggingSender is a development ChannelSender that logs the message instead
// of delivering it. Production deployments replace these with real gateway
// adapters behind the same interface.
type LoggingSender struct {
	channel notification.Channel
	logger  *zap.Logger
}

// NewLoggingSender creates a logging sender for the given channel
func NewLoggingSender(channel notification.Channel, logger *zap.Logger) *LoggingSender {
	return &LoggingSender{channel: channel, logger: logger}
}

// Channel returns the channel this sender serves
func (s *LoggingSender) Channel() notification.Channel {
	return s.channel
}

// Send logs the notification and returns a synthetic message identifier
func (s *LoggingSender) Send(_ context.Context, n *notification.Notification) (string, error) {
	recipient := n.RecipientPhone
	if s.channel == notification.ChannelEmail {
		recipient = n.RecipientEmail
	}

	s.logger.Info("delivering notification",
		zap.String("channel", s.channel.String()),
		zap.String("notification_id", n.ID.String()),
		zap.String("recipient", recipient),
		zap.String("subject", n.Subject),
		zap.String("message", n.Message),
	)

	messageID := fmt.Sprintf("dev-%s-%d", uuid.New().String()[:8], time.Now().Unix())
	return messageID, nil
}

// NewDevelopmentSenders returns logging senders for every channel, keyed the
// way the dispatch service expects
func NewDevelopmentSenders(logger *zap.Logger) map[notification.Channel]notification.ChannelSender {
	channels := []notification.Channel{
		notification.ChannelSMS,
		notification.ChannelEmail,
		notification.ChannelWhatsapp,
		notification.ChannelPush,
		notification.ChannelInApp,
	}
	senders := make(map[notification.Channel]notification.ChannelSender, len(channels))
	for _, ch := range channels {
		senders[ch] = NewLoggingSender(ch, logger)
	}
	return senders
}

// Ensure LoggingSender implements ChannelSender
var _ notification.ChannelSender = (*LoggingSender)(nil)
