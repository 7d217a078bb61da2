package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pesaflow/backend/internal/domain/notification"
	"github.com/pesaflow/backend/internal/domain/payment"
	"github.com/pesaflow/backend/internal/domain/shared"
)

// LedgerService manages invoices and installment plans, and records manual
// settlements against them. Every ledger mutation is committed atomically
// with the payment row representing the money movement.
type LedgerService struct {
	scope       TransactionScope
	invoiceRepo payment.InvoiceRepository
	planRepo    payment.PaymentPlanRepository
	sequences   payment.SequenceAllocator
	logger      *zap.Logger
	now         func() time.Time
}

// NewLedgerService creates a ledger service
func NewLedgerService(
	scope TransactionScope,
	invoiceRepo payment.InvoiceRepository,
	planRepo payment.PaymentPlanRepository,
	sequences payment.SequenceAllocator,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		scope:       scope,
		invoiceRepo: invoiceRepo,
		planRepo:    planRepo,
		sequences:   sequences,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateInvoice allocates the invoice number and persists a draft invoice
func (s *LedgerService) CreateInvoice(ctx context.Context, cmd CreateInvoiceCommand) (*payment.Invoice, error) {
	at := s.now()
	seq, err := s.sequences.Next(ctx, cmd.TenantID, payment.ReferenceKindInvoice,
		payment.ReferencePeriod(payment.ReferenceKindInvoice, at))
	if err != nil {
		return nil, fmt.Errorf("allocating invoice number: %w", err)
	}
	number := payment.FormatReference(payment.ReferenceKindInvoice, cmd.OrganizationName, seq, at)

	inv, err := payment.NewInvoice(cmd.TenantID, number, cmd.CustomerID,
		cmd.Subtotal, cmd.TaxAmount, cmd.DiscountAmount, cmd.IssueDate, cmd.DueDate)
	if err != nil {
		return nil, err
	}
	inv.Notes = cmd.Notes

	if err := s.invoiceRepo.Save(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info("invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("number", inv.Number),
		zap.String("total", inv.TotalAmount.String()))
	return inv, nil
}

// GetInvoice loads one invoice scoped to the organization
func (s *LedgerService) GetInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*payment.Invoice, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Invoice not found")
	}
	return inv, nil
}

// SendInvoice marks a draft invoice as sent
func (s *LedgerService) SendInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*payment.Invoice, error) {
	inv, err := s.GetInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := inv.MarkSent(); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Save(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// RecordInvoicePayment applies a manual settlement to an invoice. The invoice
// ledger update, the completed payment row and the receipt notification
// commit as one transaction.
func (s *LedgerService) RecordInvoicePayment(ctx context.Context, invoiceID uuid.UUID, cmd ManualSettlementCommand) (*payment.Invoice, *payment.Payment, error) {
	if !cmd.Amount.IsPositive() {
		return nil, nil, payment.ErrInvalidAmount
	}

	at := s.now()
	seq, err := s.sequences.Next(ctx, cmd.TenantID, payment.ReferenceKindPayment,
		payment.ReferencePeriod(payment.ReferenceKindPayment, at))
	if err != nil {
		return nil, nil, fmt.Errorf("allocating payment reference: %w", err)
	}
	reference := payment.FormatReference(payment.ReferenceKindPayment, cmd.OrganizationName, seq, at)

	var inv *payment.Invoice
	var p *payment.Payment
	txErr := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.InvoiceRepo().FindByID(ctx, cmd.TenantID, invoiceID)
		if err != nil {
			return err
		}
		if inv == nil {
			return shared.NewDomainError("NOT_FOUND", "Invoice not found")
		}

		p, err = s.buildManualPayment(reference, cmd, payment.PaymentKindInvoice, at)
		if err != nil {
			return err
		}
		p.LinkInvoice(inv.ID)
		p.LinkCustomer(inv.CustomerID)

		if err := inv.RecordPayment(cmd.Amount, at); err != nil {
			return err
		}
		if err := repos.PaymentRepo().Save(ctx, p); err != nil {
			return err
		}
		if err := repos.InvoiceRepo().Save(ctx, inv); err != nil {
			return err
		}
		return s.enqueueLedgerNotification(ctx, repos, inv, p)
	})
	if txErr != nil {
		return nil, nil, txErr
	}

	s.logger.Info("invoice payment recorded",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("payment_reference", p.Reference),
		zap.String("balance_due", inv.BalanceDue.String()))
	return inv, p, nil
}

// CreatePaymentPlan persists an active installment plan
func (s *LedgerService) CreatePaymentPlan(ctx context.Context, cmd CreatePlanCommand) (*payment.PaymentPlan, error) {
	plan, err := payment.NewPaymentPlan(cmd.TenantID, cmd.CustomerID, cmd.Description,
		cmd.TotalAmount, cmd.NumberOfInstallments, cmd.Frequency, cmd.StartDate)
	if err != nil {
		return nil, err
	}
	if err := s.planRepo.Save(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// RecordInstallment applies a manual installment to a plan, atomically with
// the completed payment row
func (s *LedgerService) RecordInstallment(ctx context.Context, planID uuid.UUID, cmd ManualSettlementCommand) (*payment.PaymentPlan, *payment.Payment, error) {
	if !cmd.Amount.IsPositive() {
		return nil, nil, payment.ErrInvalidAmount
	}

	at := s.now()
	seq, err := s.sequences.Next(ctx, cmd.TenantID, payment.ReferenceKindPayment,
		payment.ReferencePeriod(payment.ReferenceKindPayment, at))
	if err != nil {
		return nil, nil, fmt.Errorf("allocating payment reference: %w", err)
	}
	reference := payment.FormatReference(payment.ReferenceKindPayment, cmd.OrganizationName, seq, at)

	var plan *payment.PaymentPlan
	var p *payment.Payment
	txErr := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		plan, err = repos.PlanRepo().FindByID(ctx, cmd.TenantID, planID)
		if err != nil {
			return err
		}
		if plan == nil {
			return shared.NewDomainError("NOT_FOUND", "Payment plan not found")
		}

		p, err = s.buildManualPayment(reference, cmd, payment.PaymentKindOther, at)
		if err != nil {
			return err
		}
		p.LinkPaymentPlan(plan.ID)
		p.LinkCustomer(plan.CustomerID)

		if err := plan.RecordInstallment(cmd.Amount, at); err != nil {
			return err
		}
		if err := repos.PaymentRepo().Save(ctx, p); err != nil {
			return err
		}
		return repos.PlanRepo().Save(ctx, plan)
	})
	if txErr != nil {
		return nil, nil, txErr
	}
	return plan, p, nil
}

// buildManualPayment creates the completed payment row for a manual settlement
func (s *LedgerService) buildManualPayment(reference string, cmd ManualSettlementCommand, kind payment.PaymentKind, at time.Time) (*payment.Payment, error) {
	method := cmd.Method
	if !method.IsValid() {
		method = payment.PaymentMethodCash
	}
	p, err := payment.NewPayment(cmd.TenantID, reference, cmd.Amount, method,
		kind, "", cmd.Description)
	if err != nil {
		return nil, err
	}
	if cmd.RecordedBy != nil {
		p.SetCreatedBy(*cmd.RecordedBy)
	}
	if err := p.SettleManually(at); err != nil {
		return nil, err
	}
	return p, nil
}

// enqueueLedgerNotification queues the invoice balance update message
func (s *LedgerService) enqueueLedgerNotification(ctx context.Context, repos TransactionalRepositories, inv *payment.Invoice, p *payment.Payment) error {
	message := fmt.Sprintf("Payment of %s received against invoice %s. Balance due: %s",
		formatMoney(p.Amount), inv.Number, formatMoney(inv.BalanceDue))
	n, err := notification.NewNotification(inv.TenantID, notification.ChannelSMS, notification.PriorityNormal, message)
	if err != nil {
		return err
	}
	customerID := inv.CustomerID
	n.SetRecipient(&customerID, "", "")
	n.LinkInvoice(inv.ID)
	n.LinkPayment(p.ID)
	return repos.NotificationRepo().Save(ctx, n)
}

func formatMoney(d decimal.Decimal) string {
	return "KES " + d.StringFixed(2)
}
