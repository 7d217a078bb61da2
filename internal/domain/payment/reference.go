package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReferenceKind identifies which entity a generated reference belongs to
type ReferenceKind string

const (
	ReferenceKindPayment  ReferenceKind = "PAY"
	ReferenceKindInvoice  ReferenceKind = "INV"
	ReferenceKindCustomer ReferenceKind = "CUS"
)

// IsValid checks if the kind is known
func (k ReferenceKind) IsValid() bool {
	switch k {
	case ReferenceKindPayment, ReferenceKindInvoice, ReferenceKindCustomer:
		return true
	}
	return false
}

// SequenceAllocator hands out monotonically increasing sequence numbers
// scoped to (organization, kind, period). Allocation must be atomic so that
// concurrent creations within one organization never observe the same value.
type SequenceAllocator interface {
	Next(ctx context.Context, tenantID uuid.UUID, kind ReferenceKind, period string) (int64, error)
}

// ReferencePeriod returns the period key a reference of the given kind is
// sequenced within: daily for payments, monthly for invoices, none for
// customers.
func ReferencePeriod(kind ReferenceKind, at time.Time) string {
	switch kind {
	case ReferenceKindPayment:
		return at.Format("20060102")
	case ReferenceKindInvoice:
		return at.Format("200601")
	default:
		return ""
	}
}

// FormatReference builds the human-readable reference for an entity.
// Payments: PAY-{ORG3}-{YYYYMMDD}-{seq:05d}
// Invoices: INV-{ORG3}-{YYYYMM}-{seq:05d}
// Customers: CUS-{ORG3}-{seq:05d}
func FormatReference(kind ReferenceKind, organizationName string, seq int64, at time.Time) string {
	prefix := OrganizationPrefix(organizationName)
	if period := ReferencePeriod(kind, at); period != "" {
		return fmt.Sprintf("%s-%s-%s-%05d", kind, prefix, period, seq)
	}
	return fmt.Sprintf("%s-%s-%05d", kind, prefix, seq)
}

// OrganizationPrefix derives the three-letter organization code used in
// references: the first three alphanumeric characters of the name, uppercased,
// padded with X when the name is too short.
func OrganizationPrefix(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == 3 {
				break
			}
		}
	}
	for b.Len() < 3 {
		b.WriteByte('X')
	}
	return b.String()
}
