package integration

import (
	"time"

	"github.com/google/uuid"

	"github.com/pesaflow/backend/internal/domain/shared"
)

// Provider identifies a money-movement provider
type Provider string

const (
	ProviderMpesa Provider = "MPESA"
)

// IsValid checks if the provider is known
func (p Provider) IsValid() bool {
	return p == ProviderMpesa
}

// String returns the string representation
func (p Provider) String() string {
	return string(p)
}

// Environment selects the provider endpoint set
type Environment string

const (
	EnvironmentSandbox    Environment = "SANDBOX"
	EnvironmentProduction Environment = "PRODUCTION"
)

// IsValid checks if the environment is known
func (e Environment) IsValid() bool {
	return e == EnvironmentSandbox || e == EnvironmentProduction
}

// Integration holds one organization's provider configuration: credentials,
// webhook secret, environment, and usage counters. The webhook callback URL
// embeds the integration ID so inbound callbacks resolve their owning
// organization before signature verification.
type Integration struct {
	shared.TenantAggregateRoot
	Provider       Provider
	Environment    Environment
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	WebhookSecret  string
	CallbackURL    string
	IsActive       bool
	TotalRequests  int64
	FailedRequests int64
	LastUsedAt     *time.Time
}

// NewIntegration creates an active provider integration
func NewIntegration(
	tenantID uuid.UUID,
	provider Provider,
	environment Environment,
	consumerKey, consumerSecret, shortCode, passkey, webhookSecret, callbackURL string,
) (*Integration, error) {
	if !provider.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown provider: "+string(provider))
	}
	if !environment.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown environment: "+string(environment))
	}
	if consumerKey == "" || consumerSecret == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Provider credentials are required")
	}
	if webhookSecret == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Webhook secret is required")
	}

	return &Integration{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Provider:            provider,
		Environment:         environment,
		ConsumerKey:         consumerKey,
		ConsumerSecret:      consumerSecret,
		ShortCode:           shortCode,
		Passkey:             passkey,
		WebhookSecret:       webhookSecret,
		CallbackURL:         callbackURL,
		IsActive:            true,
	}, nil
}

// RecordUsage updates the request counters after a provider call
func (i *Integration) RecordUsage(success bool, at time.Time) {
	i.TotalRequests++
	if !success {
		i.FailedRequests++
	}
	usedAt := at
	i.LastUsedAt = &usedAt
	i.IncrementVersion()
	i.UpdatedAt = time.Now()
}

// Deactivate disables the integration
func (i *Integration) Deactivate() {
	i.IsActive = false
	i.IncrementVersion()
	i.UpdatedAt = time.Now()
}
