package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pesaflow/backend/internal/domain/shared"
)

// PlanStatus represents the lifecycle state of a payment plan
type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "ACTIVE"
	PlanStatusCompleted PlanStatus = "COMPLETED"
	PlanStatusOverdue   PlanStatus = "OVERDUE"
	PlanStatusCancelled PlanStatus = "CANCELLED"
)

// IsValid checks if the status is a valid plan status
func (s PlanStatus) IsValid() bool {
	switch s {
	case PlanStatusActive, PlanStatusCompleted, PlanStatusOverdue, PlanStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation
func (s PlanStatus) String() string {
	return string(s)
}

// PlanFrequency is the installment cadence
type PlanFrequency string

const (
	PlanFrequencyWeekly  PlanFrequency = "WEEKLY"
	PlanFrequencyMonthly PlanFrequency = "MONTHLY"
)

// IsValid checks if the frequency is known
func (f PlanFrequency) IsValid() bool {
	return f == PlanFrequencyWeekly || f == PlanFrequencyMonthly
}

// PaymentPlan is an installment schedule for a customer obligation.
// InstallmentAmount is computed once at creation; Balance is recomputed on
// every installment.
type PaymentPlan struct {
	shared.TenantAggregateRoot
	CustomerID           uuid.UUID
	Description          string
	TotalAmount          decimal.Decimal
	NumberOfInstallments int
	InstallmentAmount    decimal.Decimal
	AmountPaid           decimal.Decimal
	Balance              decimal.Decimal
	Status               PlanStatus
	Frequency            PlanFrequency
	StartDate            time.Time
	CompletedAt          *time.Time
}

// NewPaymentPlan creates an active installment plan
func NewPaymentPlan(
	tenantID uuid.UUID,
	customerID uuid.UUID,
	description string,
	totalAmount decimal.Decimal,
	numberOfInstallments int,
	frequency PlanFrequency,
	startDate time.Time,
) (*PaymentPlan, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Plan customer is required")
	}
	if !totalAmount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if numberOfInstallments < 1 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Plan requires at least one installment")
	}
	if !frequency.IsValid() {
		frequency = PlanFrequencyMonthly
	}

	plan := &PaymentPlan{
		TenantAggregateRoot:  shared.NewTenantAggregateRoot(tenantID),
		CustomerID:           customerID,
		Description:          description,
		TotalAmount:          totalAmount,
		NumberOfInstallments: numberOfInstallments,
		InstallmentAmount:    totalAmount.DivRound(decimal.NewFromInt(int64(numberOfInstallments)), 2),
		AmountPaid:           decimal.Zero,
		Status:               PlanStatusActive,
		Frequency:            frequency,
		StartDate:            startDate,
	}
	plan.Balance = plan.computeBalance()
	return plan, nil
}

// computeBalance derives the outstanding balance
func (p *PaymentPlan) computeBalance() decimal.Decimal {
	return p.TotalAmount.Sub(p.AmountPaid)
}

// RecordInstallment applies a received installment. It is the only sanctioned
// mutator for AmountPaid and must run in the same transaction as the payment
// row representing the money movement.
func (p *PaymentPlan) RecordInstallment(amount decimal.Decimal, paidAt time.Time) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if p.Status == PlanStatusCancelled || p.Status == PlanStatusCompleted {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot record an installment on a "+p.Status.String()+" plan")
	}
	p.AmountPaid = p.AmountPaid.Add(amount)
	p.Balance = p.computeBalance()
	if !p.Balance.IsPositive() {
		completedAt := paidAt
		p.Status = PlanStatusCompleted
		p.CompletedAt = &completedAt
	} else if p.Status == PlanStatusOverdue {
		p.Status = PlanStatusActive
	}
	p.touch()
	return nil
}

// MarkOverdue flags a missed installment; driven by an external schedule check
func (p *PaymentPlan) MarkOverdue() error {
	if p.Status != PlanStatusActive {
		return shared.NewDomainError("INVALID_STATE",
			"Only active plans can become overdue, current status: "+p.Status.String())
	}
	p.Status = PlanStatusOverdue
	p.touch()
	return nil
}

// Cancel aborts an unfinished plan
func (p *PaymentPlan) Cancel() error {
	if p.Status == PlanStatusCompleted {
		return shared.NewDomainError("INVALID_STATE", "Completed plans cannot be cancelled")
	}
	p.Status = PlanStatusCancelled
	p.touch()
	return nil
}

// ProgressPercentage returns how much of the plan has been paid, 0-100
func (p *PaymentPlan) ProgressPercentage() decimal.Decimal {
	if !p.TotalAmount.IsPositive() {
		return decimal.Zero
	}
	return p.AmountPaid.Div(p.TotalAmount).Mul(decimal.NewFromInt(100)).Round(2)
}

// IsSettled checks if the plan balance is cleared
func (p *PaymentPlan) IsSettled() bool {
	return !p.computeBalance().IsPositive()
}

func (p *PaymentPlan) touch() {
	p.IncrementVersion()
	p.UpdatedAt = time.Now()
}
