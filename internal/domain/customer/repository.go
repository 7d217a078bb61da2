package customer

import (
	"context"

	"github.com/google/uuid"
)

// CustomerRepository defines persistence operations for customers.
// Finder methods return (nil, nil) when no record matches.
type CustomerRepository interface {
	Save(ctx context.Context, c *Customer) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Customer, error)
	// FindByPhoneOrEmail returns every active customer in the organization
	// whose phone or email matches exactly; callers decide how to treat
	// multiple matches
	FindByPhoneOrEmail(ctx context.Context, tenantID uuid.UUID, phone, email string) ([]*Customer, error)
}
