package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/pesaflow/backend/internal/domain/payment"
)

// InitiatePaymentRequest is the request body for creating a payment
type InitiatePaymentRequest struct {
	OrganizationName string  `json:"organization_name" binding:"required"`
	CustomerID       *string `json:"customer_id" binding:"omitempty,uuid"`
	Amount           string  `json:"amount" binding:"required"`
	PhoneNumber      string  `json:"phone_number" binding:"omitempty,msisdn"`
	Email            string  `json:"email" binding:"omitempty,email"`
	Description      string  `json:"description"`
	Method           string  `json:"method" binding:"required"`
	Kind             string  `json:"kind"`
	InvoiceID        *string `json:"invoice_id" binding:"omitempty,uuid"`
	PaymentPlanID    *string `json:"payment_plan_id" binding:"omitempty,uuid"`
}

// ReversePaymentRequest is the request body for reversing a payment
type ReversePaymentRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// PaymentResponse is the API representation of a payment
type PaymentResponse struct {
	ID                string     `json:"id"`
	Reference         string     `json:"reference"`
	Amount            string     `json:"amount"`
	TransactionFee    string     `json:"transaction_fee"`
	NetAmount         string     `json:"net_amount"`
	Currency          string     `json:"currency"`
	Method            string     `json:"method"`
	Kind              string     `json:"kind"`
	Status            string     `json:"status"`
	PhoneNumber       string     `json:"phone_number,omitempty"`
	Description       string     `json:"description,omitempty"`
	CustomerID        *string    `json:"customer_id,omitempty"`
	InvoiceID         *string    `json:"invoice_id,omitempty"`
	PaymentPlanID     *string    `json:"payment_plan_id,omitempty"`
	CheckoutRequestID string     `json:"checkout_request_id,omitempty"`
	ExternalReference string     `json:"external_reference,omitempty"`
	FailureReason     string     `json:"failure_reason,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	IsReversed        bool       `json:"is_reversed"`
	ReversalReason    string     `json:"reversal_reason,omitempty"`
	ReversedAt        *time.Time `json:"reversed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ToPaymentResponse converts a payment aggregate to its API representation
func ToPaymentResponse(p *payment.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                p.ID.String(),
		Reference:         p.Reference,
		Amount:            p.Amount.StringFixed(2),
		TransactionFee:    p.TransactionFee.StringFixed(2),
		NetAmount:         p.NetAmount.StringFixed(2),
		Currency:          p.Currency,
		Method:            p.Method.String(),
		Kind:              p.Kind.String(),
		Status:            p.Status.String(),
		PhoneNumber:       p.PhoneNumber,
		Description:       p.Description,
		CustomerID:        uuidPtrToString(p.CustomerID),
		InvoiceID:         uuidPtrToString(p.InvoiceID),
		PaymentPlanID:     uuidPtrToString(p.PaymentPlanID),
		CheckoutRequestID: p.CheckoutRequestID,
		ExternalReference: p.ExternalReference,
		FailureReason:     p.FailureReason,
		CompletedAt:       p.CompletedAt,
		IsReversed:        p.IsReversed,
		ReversalReason:    p.ReversalReason,
		ReversedAt:        p.ReversedAt,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func uuidPtrToString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func parseUUIDPtr(s *string) *uuid.UUID {
	if s == nil || *s == "" {
		return nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil
	}
	return &id
}
