package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pesaflow/backend/internal/domain/payment"
)

// PaymentModel is the persistence model for the payments table.
// The checkout_request_id index enforces the correlation-store uniqueness
// among non-terminal payments (see the partial index in the migrations).
type PaymentModel struct {
	TenantAggregateModel
	Reference         string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_payment_tenant_reference,priority:2"`
	Amount            decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TransactionFee    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	NetAmount         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Currency          string          `gorm:"type:varchar(8);not null;default:'KES'"`
	Method            string          `gorm:"type:varchar(16);not null"`
	Kind              string          `gorm:"type:varchar(16);not null"`
	Status            string          `gorm:"type:varchar(16);not null;index"`
	PhoneNumber       string          `gorm:"type:varchar(20)"`
	Description       string          `gorm:"type:varchar(255)"`
	CustomerID        *uuid.UUID      `gorm:"type:uuid;index"`
	InvoiceID         *uuid.UUID      `gorm:"type:uuid;index"`
	PaymentPlanID     *uuid.UUID      `gorm:"type:uuid;index"`
	CheckoutRequestID string          `gorm:"type:varchar(128);index"`
	MerchantRequestID string          `gorm:"type:varchar(128)"`
	ExternalReference string          `gorm:"type:varchar(128)"`
	FailureReason     string          `gorm:"type:varchar(255)"`
	CompletedAt       *time.Time
	IsReversed        bool `gorm:"not null;default:false"`
	ReversalReason    string `gorm:"type:varchar(255)"`
	ReversedAt        *time.Time
	ReversedBy        *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name
func (PaymentModel) TableName() string {
	return "payments"
}

// FromDomain copies an aggregate into the model
func (m *PaymentModel) FromDomain(p *payment.Payment) {
	m.FromTenantAggregateRoot(&p.TenantAggregateRoot)
	m.Reference = p.Reference
	m.Amount = p.Amount
	m.TransactionFee = p.TransactionFee
	m.NetAmount = p.NetAmount
	m.Currency = p.Currency
	m.Method = string(p.Method)
	m.Kind = string(p.Kind)
	m.Status = string(p.Status)
	m.PhoneNumber = p.PhoneNumber
	m.Description = p.Description
	m.CustomerID = p.CustomerID
	m.InvoiceID = p.InvoiceID
	m.PaymentPlanID = p.PaymentPlanID
	m.CheckoutRequestID = p.CheckoutRequestID
	m.MerchantRequestID = p.MerchantRequestID
	m.ExternalReference = p.ExternalReference
	m.FailureReason = p.FailureReason
	m.CompletedAt = p.CompletedAt
	m.IsReversed = p.IsReversed
	m.ReversalReason = p.ReversalReason
	m.ReversedAt = p.ReversedAt
	m.ReversedBy = p.ReversedBy
}

// ToDomain converts the model into an aggregate
func (m *PaymentModel) ToDomain() *payment.Payment {
	p := &payment.Payment{
		Reference:         m.Reference,
		Amount:            m.Amount,
		TransactionFee:    m.TransactionFee,
		NetAmount:         m.NetAmount,
		Currency:          m.Currency,
		Method:            payment.PaymentMethod(m.Method),
		Kind:              payment.PaymentKind(m.Kind),
		Status:            payment.PaymentStatus(m.Status),
		PhoneNumber:       m.PhoneNumber,
		Description:       m.Description,
		CustomerID:        m.CustomerID,
		InvoiceID:         m.InvoiceID,
		PaymentPlanID:     m.PaymentPlanID,
		CheckoutRequestID: m.CheckoutRequestID,
		MerchantRequestID: m.MerchantRequestID,
		ExternalReference: m.ExternalReference,
		FailureReason:     m.FailureReason,
		CompletedAt:       m.CompletedAt,
		IsReversed:        m.IsReversed,
		ReversalReason:    m.ReversalReason,
		ReversedAt:        m.ReversedAt,
		ReversedBy:        m.ReversedBy,
	}
	m.PopulateTenantAggregateRoot(&p.TenantAggregateRoot)
	return p
}

// InvoiceModel is the persistence model for the invoices table
type InvoiceModel struct {
	TenantAggregateModel
	Number         string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_invoice_tenant_number,priority:2"`
	CustomerID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	AmountPaid     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BalanceDue     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Status         string          `gorm:"type:varchar(16);not null;index"`
	IssueDate      time.Time       `gorm:"not null"`
	DueDate        time.Time       `gorm:"not null"`
	PaidDate       *time.Time
	Notes          string `gorm:"type:text"`
}

// TableName returns the table name
func (InvoiceModel) TableName() string {
	return "invoices"
}

// FromDomain copies an aggregate into the model
func (m *InvoiceModel) FromDomain(inv *payment.Invoice) {
	m.FromTenantAggregateRoot(&inv.TenantAggregateRoot)
	m.Number = inv.Number
	m.CustomerID = inv.CustomerID
	m.Subtotal = inv.Subtotal
	m.TaxAmount = inv.TaxAmount
	m.DiscountAmount = inv.DiscountAmount
	m.TotalAmount = inv.TotalAmount
	m.AmountPaid = inv.AmountPaid
	m.BalanceDue = inv.BalanceDue
	m.Status = string(inv.Status)
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.PaidDate = inv.PaidDate
	m.Notes = inv.Notes
}

// ToDomain converts the model into an aggregate
func (m *InvoiceModel) ToDomain() *payment.Invoice {
	inv := &payment.Invoice{
		Number:         m.Number,
		CustomerID:     m.CustomerID,
		Subtotal:       m.Subtotal,
		TaxAmount:      m.TaxAmount,
		DiscountAmount: m.DiscountAmount,
		TotalAmount:    m.TotalAmount,
		AmountPaid:     m.AmountPaid,
		BalanceDue:     m.BalanceDue,
		Status:         payment.InvoiceStatus(m.Status),
		IssueDate:      m.IssueDate,
		DueDate:        m.DueDate,
		PaidDate:       m.PaidDate,
		Notes:          m.Notes,
	}
	m.PopulateTenantAggregateRoot(&inv.TenantAggregateRoot)
	return inv
}

// PaymentPlanModel is the persistence model for the payment_plans table
type PaymentPlanModel struct {
	TenantAggregateModel
	CustomerID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	Description          string          `gorm:"type:varchar(255)"`
	TotalAmount          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	NumberOfInstallments int             `gorm:"not null"`
	InstallmentAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	AmountPaid           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Balance              decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Status               string          `gorm:"type:varchar(16);not null;index"`
	Frequency            string          `gorm:"type:varchar(16);not null"`
	StartDate            time.Time       `gorm:"not null"`
	CompletedAt          *time.Time
}

// TableName returns the table name
func (PaymentPlanModel) TableName() string {
	return "payment_plans"
}

// FromDomain copies an aggregate into the model
func (m *PaymentPlanModel) FromDomain(plan *payment.PaymentPlan) {
	m.FromTenantAggregateRoot(&plan.TenantAggregateRoot)
	m.CustomerID = plan.CustomerID
	m.Description = plan.Description
	m.TotalAmount = plan.TotalAmount
	m.NumberOfInstallments = plan.NumberOfInstallments
	m.InstallmentAmount = plan.InstallmentAmount
	m.AmountPaid = plan.AmountPaid
	m.Balance = plan.Balance
	m.Status = string(plan.Status)
	m.Frequency = string(plan.Frequency)
	m.StartDate = plan.StartDate
	m.CompletedAt = plan.CompletedAt
}

// ToDomain converts the model into an aggregate
func (m *PaymentPlanModel) ToDomain() *payment.PaymentPlan {
	plan := &payment.PaymentPlan{
		CustomerID:           m.CustomerID,
		Description:          m.Description,
		TotalAmount:          m.TotalAmount,
		NumberOfInstallments: m.NumberOfInstallments,
		InstallmentAmount:    m.InstallmentAmount,
		AmountPaid:           m.AmountPaid,
		Balance:              m.Balance,
		Status:               payment.PlanStatus(m.Status),
		Frequency:            payment.PlanFrequency(m.Frequency),
		StartDate:            m.StartDate,
		CompletedAt:          m.CompletedAt,
	}
	m.PopulateTenantAggregateRoot(&plan.TenantAggregateRoot)
	return plan
}

// ReferenceCounterModel backs the atomic per-(tenant, kind, period) sequence
// used for reference generation
type ReferenceCounterModel struct {
	TenantID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Kind     string    `gorm:"type:varchar(8);primaryKey"`
	Period   string    `gorm:"type:varchar(16);primaryKey"`
	Seq      int64     `gorm:"not null"`
}

// TableName returns the table name
func (ReferenceCounterModel) TableName() string {
	return "reference_counters"
}
