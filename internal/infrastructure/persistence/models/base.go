package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pesaflow/backend/internal/domain/shared"
)

// BaseModel holds the columns shared by every table
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// FromBaseEntity copies entity fields into the model
func (m *BaseModel) FromBaseEntity(e *shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// PopulateBaseEntity copies model fields into the entity
func (m *BaseModel) PopulateBaseEntity(e *shared.BaseEntity) {
	e.ID = m.ID
	e.CreatedAt = m.CreatedAt
	e.UpdatedAt = m.UpdatedAt
}

// TenantAggregateModel holds the columns shared by organization-scoped
// aggregate tables, including the optimistic-locking version
type TenantAggregateModel struct {
	BaseModel
	TenantID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	CreatedBy *uuid.UUID `gorm:"type:uuid"`
	Version   int        `gorm:"not null;default:1"`
}

// FromTenantAggregateRoot copies aggregate fields into the model
func (m *TenantAggregateModel) FromTenantAggregateRoot(root *shared.TenantAggregateRoot) {
	m.FromBaseEntity(&root.BaseEntity)
	m.TenantID = root.TenantID
	m.CreatedBy = root.CreatedBy
	m.Version = root.Version
}

// PopulateTenantAggregateRoot copies model fields into the aggregate
func (m *TenantAggregateModel) PopulateTenantAggregateRoot(root *shared.TenantAggregateRoot) {
	m.PopulateBaseEntity(&root.BaseEntity)
	root.TenantID = m.TenantID
	root.CreatedBy = m.CreatedBy
	root.Version = m.Version
}
