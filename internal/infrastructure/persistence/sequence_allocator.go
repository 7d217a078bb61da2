package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pesaflow/backend/internal/domain/payment"
	"github.com/pesaflow/backend/internal/infrastructure/persistence/models"
)

// GormSequenceAllocator implements payment.SequenceAllocator with a counter
// row per (tenant, kind, period), incremented by an atomic upsert inside a
// transaction. Concurrent allocators for the same key serialize on the row
// lock, so no two callers ever observe the same value.
type GormSequenceAllocator struct {
	db *gorm.DB
}

// NewGormSequenceAllocator creates a sequence allocator
func NewGormSequenceAllocator(db *gorm.DB) *GormSequenceAllocator {
	return &GormSequenceAllocator{db: db}
}

// Next allocates the next sequence number for the given scope
func (a *GormSequenceAllocator) Next(ctx context.Context, tenantID uuid.UUID, kind payment.ReferenceKind, period string) (int64, error) {
	var seq int64
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counter := models.ReferenceCounterModel{
			TenantID: tenantID,
			Kind:     string(kind),
			Period:   period,
			Seq:      1,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "kind"}, {Name: "period"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"seq": gorm.Expr("reference_counters.seq + 1"),
			}),
		}).Create(&counter).Error; err != nil {
			return err
		}

		var row models.ReferenceCounterModel
		if err := tx.
			Where("tenant_id = ? AND kind = ? AND period = ?", tenantID, string(kind), period).
			Take(&row).Error; err != nil {
			return err
		}
		seq = row.Seq
		return nil
	})
	return seq, err
}

// Ensure GormSequenceAllocator implements the allocator interface
var _ payment.SequenceAllocator = (*GormSequenceAllocator)(nil)
