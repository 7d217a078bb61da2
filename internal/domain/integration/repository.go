package integration

import (
	"context"

	"github.com/google/uuid"
)

// IntegrationRepository defines persistence operations for provider
// integrations. Finder methods return (nil, nil) when no record matches.
type IntegrationRepository interface {
	Save(ctx context.Context, integ *Integration) error
	// FindByID resolves an integration without tenant scoping; inbound
	// webhooks carry only the integration id and derive the organization
	// from the record itself
	FindByID(ctx context.Context, id uuid.UUID) (*Integration, error)
	FindActiveByProvider(ctx context.Context, tenantID uuid.UUID, provider Provider) (*Integration, error)
}

// APILogRepository is the append-only store for provider exchange audit records
type APILogRepository interface {
	Save(ctx context.Context, log *APILog) error
	FindByCorrelationID(ctx context.Context, tenantID uuid.UUID, correlationID string) ([]*APILog, error)
}
