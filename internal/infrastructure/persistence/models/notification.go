package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pesaflow/backend/internal/domain/notification"
)

// NotificationModel is the persistence model for the notifications table,
// which doubles as the durable dispatch queue
type NotificationModel struct {
	TenantAggregateModel
	Channel           string     `gorm:"type:varchar(16);not null"`
	Status            string     `gorm:"type:varchar(16);not null;index:idx_notification_due,priority:1"`
	Priority          string     `gorm:"type:varchar(16);not null"`
	CustomerID        *uuid.UUID `gorm:"type:uuid;index"`
	RecipientPhone    string     `gorm:"type:varchar(20)"`
	RecipientEmail    string     `gorm:"type:varchar(128)"`
	Subject           string     `gorm:"type:varchar(255)"`
	Message           string     `gorm:"type:text;not null"`
	PaymentID         *uuid.UUID `gorm:"type:uuid;index"`
	InvoiceID         *uuid.UUID `gorm:"type:uuid;index"`
	ScheduledFor      *time.Time
	NextAttemptAt     *time.Time `gorm:"index:idx_notification_due,priority:2"`
	SentAt            *time.Time
	DeliveredAt       *time.Time
	ReadAt            *time.Time
	DeliveryAttempts  int    `gorm:"not null;default:0"`
	FailureReason     string `gorm:"type:varchar(512)"`
	ProviderMessageID string `gorm:"type:varchar(128)"`
}

// TableName returns the table name
func (NotificationModel) TableName() string {
	return "notifications"
}

// FromDomain copies an aggregate into the model
func (m *NotificationModel) FromDomain(n *notification.Notification) {
	m.FromTenantAggregateRoot(&n.TenantAggregateRoot)
	m.Channel = string(n.Channel)
	m.Status = string(n.Status)
	m.Priority = string(n.Priority)
	m.CustomerID = n.CustomerID
	m.RecipientPhone = n.RecipientPhone
	m.RecipientEmail = n.RecipientEmail
	m.Subject = n.Subject
	m.Message = n.Message
	m.PaymentID = n.PaymentID
	m.InvoiceID = n.InvoiceID
	m.ScheduledFor = n.ScheduledFor
	m.NextAttemptAt = n.NextAttemptAt
	m.SentAt = n.SentAt
	m.DeliveredAt = n.DeliveredAt
	m.ReadAt = n.ReadAt
	m.DeliveryAttempts = n.DeliveryAttempts
	m.FailureReason = n.FailureReason
	m.ProviderMessageID = n.ProviderMessageID
}

// ToDomain converts the model into an aggregate
func (m *NotificationModel) ToDomain() *notification.Notification {
	n := &notification.Notification{
		Channel:           notification.Channel(m.Channel),
		Status:            notification.Status(m.Status),
		Priority:          notification.Priority(m.Priority),
		CustomerID:        m.CustomerID,
		RecipientPhone:    m.RecipientPhone,
		RecipientEmail:    m.RecipientEmail,
		Subject:           m.Subject,
		Message:           m.Message,
		PaymentID:         m.PaymentID,
		InvoiceID:         m.InvoiceID,
		ScheduledFor:      m.ScheduledFor,
		NextAttemptAt:     m.NextAttemptAt,
		SentAt:            m.SentAt,
		DeliveredAt:       m.DeliveredAt,
		ReadAt:            m.ReadAt,
		DeliveryAttempts:  m.DeliveryAttempts,
		FailureReason:     m.FailureReason,
		ProviderMessageID: m.ProviderMessageID,
	}
	m.PopulateTenantAggregateRoot(&n.TenantAggregateRoot)
	return n
}

// NotificationPreferenceModel is the persistence model for per-customer
// channel preferences
type NotificationPreferenceModel struct {
	TenantAggregateModel
	CustomerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_preference_tenant_customer,priority:2"`
	// No default tags on the opt-in flags: a default makes gorm omit
	// zero-valued fields on insert, which would turn a stored opt-out
	// (false) back into the column default (true)
	ReceiveSMS      bool   `gorm:"not null"`
	ReceiveEmail    bool   `gorm:"not null"`
	ReceiveWhatsapp bool   `gorm:"not null"`
	ReceivePush     bool   `gorm:"not null"`
	QuietHoursStart string `gorm:"type:varchar(5)"`
	QuietHoursEnd   string `gorm:"type:varchar(5)"`
}

// TableName returns the table name
func (NotificationPreferenceModel) TableName() string {
	return "notification_preferences"
}

// FromDomain copies an aggregate into the model
func (m *NotificationPreferenceModel) FromDomain(p *notification.Preference) {
	m.FromTenantAggregateRoot(&p.TenantAggregateRoot)
	m.CustomerID = p.CustomerID
	m.ReceiveSMS = p.ReceiveSMS
	m.ReceiveEmail = p.ReceiveEmail
	m.ReceiveWhatsapp = p.ReceiveWhatsapp
	m.ReceivePush = p.ReceivePush
	m.QuietHoursStart = p.QuietHoursStart
	m.QuietHoursEnd = p.QuietHoursEnd
}

// ToDomain converts the model into an aggregate
func (m *NotificationPreferenceModel) ToDomain() *notification.Preference {
	p := &notification.Preference{
		CustomerID:      m.CustomerID,
		ReceiveSMS:      m.ReceiveSMS,
		ReceiveEmail:    m.ReceiveEmail,
		ReceiveWhatsapp: m.ReceiveWhatsapp,
		ReceivePush:     m.ReceivePush,
		QuietHoursStart: m.QuietHoursStart,
		QuietHoursEnd:   m.QuietHoursEnd,
	}
	m.PopulateTenantAggregateRoot(&p.TenantAggregateRoot)
	return p
}
