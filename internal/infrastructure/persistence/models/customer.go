package models

import (
	"time"

	"github.com/pesaflow/backend/internal/domain/customer"
)

// CustomerModel is the persistence model for the customers table
type CustomerModel struct {
	TenantAggregateModel
	Reference       string `gorm:"type:varchar(64);not null;uniqueIndex:idx_customer_tenant_reference,priority:2"`
	Name            string `gorm:"type:varchar(128);not null"`
	PhoneNumber     string `gorm:"type:varchar(20);index"`
	Email           string `gorm:"type:varchar(128);index"`
	IsActive        bool   `gorm:"not null"`
	LastPaymentDate *time.Time
}

// TableName returns the table name
func (CustomerModel) TableName() string {
	return "customers"
}

// FromDomain copies an aggregate into the model
func (m *CustomerModel) FromDomain(c *customer.Customer) {
	m.FromTenantAggregateRoot(&c.TenantAggregateRoot)
	m.Reference = c.Reference
	m.Name = c.Name
	m.PhoneNumber = c.PhoneNumber
	m.Email = c.Email
	m.IsActive = c.IsActive
	m.LastPaymentDate = c.LastPaymentDate
}

// ToDomain converts the model into an aggregate
func (m *CustomerModel) ToDomain() *customer.Customer {
	c := &customer.Customer{
		Reference:       m.Reference,
		Name:            m.Name,
		PhoneNumber:     m.PhoneNumber,
		Email:           m.Email,
		IsActive:        m.IsActive,
		LastPaymentDate: m.LastPaymentDate,
	}
	m.PopulateTenantAggregateRoot(&c.TenantAggregateRoot)
	return c
}
