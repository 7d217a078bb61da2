package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pesaflow/backend/internal/domain/integration"
)

// IntegrationModel is the persistence model for the integrations table
type IntegrationModel struct {
	TenantAggregateModel
	Provider       string `gorm:"type:varchar(16);not null;index"`
	Environment    string `gorm:"type:varchar(16);not null"`
	ConsumerKey    string `gorm:"type:varchar(255);not null"`
	ConsumerSecret string `gorm:"type:varchar(255);not null"`
	ShortCode      string `gorm:"type:varchar(32)"`
	Passkey        string `gorm:"type:varchar(255)"`
	WebhookSecret  string `gorm:"type:varchar(255);not null"`
	CallbackURL    string `gorm:"type:varchar(255)"`
	IsActive       bool   `gorm:"not null"`
	TotalRequests  int64  `gorm:"not null;default:0"`
	FailedRequests int64  `gorm:"not null;default:0"`
	LastUsedAt     *time.Time
}

// TableName returns the table name
func (IntegrationModel) TableName() string {
	return "integrations"
}

// FromDomain copies an aggregate into the model
func (m *IntegrationModel) FromDomain(i *integration.Integration) {
	m.FromTenantAggregateRoot(&i.TenantAggregateRoot)
	m.Provider = string(i.Provider)
	m.Environment = string(i.Environment)
	m.ConsumerKey = i.ConsumerKey
	m.ConsumerSecret = i.ConsumerSecret
	m.ShortCode = i.ShortCode
	m.Passkey = i.Passkey
	m.WebhookSecret = i.WebhookSecret
	m.CallbackURL = i.CallbackURL
	m.IsActive = i.IsActive
	m.TotalRequests = i.TotalRequests
	m.FailedRequests = i.FailedRequests
	m.LastUsedAt = i.LastUsedAt
}

// ToDomain converts the model into an aggregate
func (m *IntegrationModel) ToDomain() *integration.Integration {
	i := &integration.Integration{
		Provider:       integration.Provider(m.Provider),
		Environment:    integration.Environment(m.Environment),
		ConsumerKey:    m.ConsumerKey,
		ConsumerSecret: m.ConsumerSecret,
		ShortCode:      m.ShortCode,
		Passkey:        m.Passkey,
		WebhookSecret:  m.WebhookSecret,
		CallbackURL:    m.CallbackURL,
		IsActive:       m.IsActive,
		TotalRequests:  m.TotalRequests,
		FailedRequests: m.FailedRequests,
		LastUsedAt:     m.LastUsedAt,
	}
	m.PopulateTenantAggregateRoot(&i.TenantAggregateRoot)
	return i
}

// APILogModel is the persistence model for the api_logs table
type APILogModel struct {
	BaseModel
	TenantID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	Provider      string     `gorm:"type:varchar(16);not null"`
	Direction     string     `gorm:"type:varchar(16);not null"`
	Endpoint      string     `gorm:"type:varchar(64);not null"`
	RequestBody   string     `gorm:"type:text"`
	ResponseBody  string     `gorm:"type:text"`
	StatusCode    int        `gorm:"not null;default:0"`
	DurationMS    int64      `gorm:"not null;default:0"`
	CorrelationID string     `gorm:"type:varchar(128);index"`
	PaymentID     *uuid.UUID `gorm:"type:uuid;index"`
	Status        string     `gorm:"type:varchar(16);not null"`
	ErrorMessage  string     `gorm:"type:varchar(512)"`
}

// TableName returns the table name
func (APILogModel) TableName() string {
	return "api_logs"
}

// FromDomain copies an entity into the model
func (m *APILogModel) FromDomain(l *integration.APILog) {
	m.FromBaseEntity(&l.BaseEntity)
	m.TenantID = l.TenantID
	m.Provider = string(l.Provider)
	m.Direction = string(l.Direction)
	m.Endpoint = l.Endpoint
	m.RequestBody = l.RequestBody
	m.ResponseBody = l.ResponseBody
	m.StatusCode = l.StatusCode
	m.DurationMS = l.DurationMS
	m.CorrelationID = l.CorrelationID
	m.PaymentID = l.PaymentID
	m.Status = string(l.Status)
	m.ErrorMessage = l.ErrorMessage
}

// ToDomain converts the model into an entity
func (m *APILogModel) ToDomain() *integration.APILog {
	l := &integration.APILog{
		TenantID:      m.TenantID,
		Provider:      integration.Provider(m.Provider),
		Direction:     integration.APILogDirection(m.Direction),
		Endpoint:      m.Endpoint,
		RequestBody:   m.RequestBody,
		ResponseBody:  m.ResponseBody,
		StatusCode:    m.StatusCode,
		DurationMS:    m.DurationMS,
		CorrelationID: m.CorrelationID,
		PaymentID:     m.PaymentID,
		Status:        integration.APILogStatus(m.Status),
		ErrorMessage:  m.ErrorMessage,
	}
	m.PopulateBaseEntity(&l.BaseEntity)
	return l
}
