package handler

import (
	"time"

	"github.com/pesaflow/backend/internal/domain/payment"
)

// CreateInvoiceRequest is the request body for creating an invoice
type CreateInvoiceRequest struct {
	OrganizationName string    `json:"organization_name" binding:"required"`
	CustomerID       string    `json:"customer_id" binding:"required,uuid"`
	Subtotal         string    `json:"subtotal" binding:"required"`
	TaxAmount        string    `json:"tax_amount"`
	DiscountAmount   string    `json:"discount_amount"`
	IssueDate        time.Time `json:"issue_date" binding:"required"`
	DueDate          time.Time `json:"due_date" binding:"required"`
	Notes            string    `json:"notes"`
}

// RecordSettlementRequest is the request body for a manual settlement against
// an invoice or plan
type RecordSettlementRequest struct {
	OrganizationName string `json:"organization_name" binding:"required"`
	Amount           string `json:"amount" binding:"required"`
	Method           string `json:"method"`
	Description      string `json:"description"`
}

// CreatePlanRequest is the request body for creating a payment plan
type CreatePlanRequest struct {
	CustomerID           string    `json:"customer_id" binding:"required,uuid"`
	Description          string    `json:"description"`
	TotalAmount          string    `json:"total_amount" binding:"required"`
	NumberOfInstallments int       `json:"number_of_installments" binding:"required,min=1"`
	Frequency            string    `json:"frequency"`
	StartDate            time.Time `json:"start_date" binding:"required"`
}

// InvoiceResponse is the API representation of an invoice
type InvoiceResponse struct {
	ID             string     `json:"id"`
	Number         string     `json:"number"`
	CustomerID     string     `json:"customer_id"`
	Subtotal       string     `json:"subtotal"`
	TaxAmount      string     `json:"tax_amount"`
	DiscountAmount string     `json:"discount_amount"`
	TotalAmount    string     `json:"total_amount"`
	AmountPaid     string     `json:"amount_paid"`
	BalanceDue     string     `json:"balance_due"`
	Status         string     `json:"status"`
	IssueDate      time.Time  `json:"issue_date"`
	DueDate        time.Time  `json:"due_date"`
	PaidDate       *time.Time `json:"paid_date,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ToInvoiceResponse converts an invoice aggregate to its API representation
func ToInvoiceResponse(inv *payment.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:             inv.ID.String(),
		Number:         inv.Number,
		CustomerID:     inv.CustomerID.String(),
		Subtotal:       inv.Subtotal.StringFixed(2),
		TaxAmount:      inv.TaxAmount.StringFixed(2),
		DiscountAmount: inv.DiscountAmount.StringFixed(2),
		TotalAmount:    inv.TotalAmount.StringFixed(2),
		AmountPaid:     inv.AmountPaid.StringFixed(2),
		BalanceDue:     inv.BalanceDue.StringFixed(2),
		Status:         inv.Status.String(),
		IssueDate:      inv.IssueDate,
		DueDate:        inv.DueDate,
		PaidDate:       inv.PaidDate,
		Notes:          inv.Notes,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
}

// PlanResponse is the API representation of a payment plan
type PlanResponse struct {
	ID                   string     `json:"id"`
	CustomerID           string     `json:"customer_id"`
	Description          string     `json:"description,omitempty"`
	TotalAmount          string     `json:"total_amount"`
	NumberOfInstallments int        `json:"number_of_installments"`
	InstallmentAmount    string     `json:"installment_amount"`
	AmountPaid           string     `json:"amount_paid"`
	Balance              string     `json:"balance"`
	Progress             string     `json:"progress_percentage"`
	Status               string     `json:"status"`
	Frequency            string     `json:"frequency"`
	StartDate            time.Time  `json:"start_date"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// ToPlanResponse converts a payment plan aggregate to its API representation
func ToPlanResponse(plan *payment.PaymentPlan) PlanResponse {
	return PlanResponse{
		ID:                   plan.ID.String(),
		CustomerID:           plan.CustomerID.String(),
		Description:          plan.Description,
		TotalAmount:          plan.TotalAmount.StringFixed(2),
		NumberOfInstallments: plan.NumberOfInstallments,
		InstallmentAmount:    plan.InstallmentAmount.StringFixed(2),
		AmountPaid:           plan.AmountPaid.StringFixed(2),
		Balance:              plan.Balance.StringFixed(2),
		Progress:             plan.ProgressPercentage().StringFixed(2),
		Status:               plan.Status.String(),
		Frequency:            string(plan.Frequency),
		StartDate:            plan.StartDate,
		CompletedAt:          plan.CompletedAt,
		CreatedAt:            plan.CreatedAt,
		UpdatedAt:            plan.UpdatedAt,
	}
}

// SettlementResponse pairs the updated ledger entity with the payment row
// created for the settlement
type SettlementResponse struct {
	Invoice *InvoiceResponse `json:"invoice,omitempty"`
	Plan    *PlanResponse    `json:"plan,omitempty"`
	Payment PaymentResponse  `json:"payment"`
}
