package payment

import (
	"context"

	"github.com/pesaflow/backend/internal/domain/customer"
	"github.com/pesaflow/backend/internal/domain/integration"
	"github.com/pesaflow/backend/internal/domain/notification"
	"github.com/pesaflow/backend/internal/domain/payment"
)

// TransactionScope provides transactional access to the repositories touched
// by settlement. A payment's terminal transition, the ledger update on its
// linked invoice or plan, the customer activity update, and the enqueued
// notification must commit or roll back as one unit.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the settlement repositories
// within a transaction. All repositories returned share the same underlying
// database transaction.
type TransactionalRepositories interface {
	PaymentRepo() payment.PaymentRepository
	InvoiceRepo() payment.InvoiceRepository
	PlanRepo() payment.PaymentPlanRepository
	CustomerRepo() customer.CustomerRepository
	NotificationRepo() notification.NotificationRepository
	APILogRepo() integration.APILogRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. Useful for tests.
type NoOpTransactionScope struct {
	paymentRepo      payment.PaymentRepository
	invoiceRepo      payment.InvoiceRepository
	planRepo         payment.PaymentPlanRepository
	customerRepo     customer.CustomerRepository
	notificationRepo notification.NotificationRepository
	apiLogRepo       integration.APILogRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over the given repositories
func NewNoOpTransactionScope(
	paymentRepo payment.PaymentRepository,
	invoiceRepo payment.InvoiceRepository,
	planRepo payment.PaymentPlanRepository,
	customerRepo customer.CustomerRepository,
	notificationRepo notification.NotificationRepository,
	apiLogRepo integration.APILogRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		paymentRepo:      paymentRepo,
		invoiceRepo:      invoiceRepo,
		planRepo:         planRepo,
		customerRepo:     customerRepo,
		notificationRepo: notificationRepo,
		apiLogRepo:       apiLogRepo,
	}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// PaymentRepo returns the payment repository
func (s *NoOpTransactionScope) PaymentRepo() payment.PaymentRepository { return s.paymentRepo }

// InvoiceRepo returns the invoice repository
func (s *NoOpTransactionScope) InvoiceRepo() payment.InvoiceRepository { return s.invoiceRepo }

// PlanRepo returns the payment plan repository
func (s *NoOpTransactionScope) PlanRepo() payment.PaymentPlanRepository { return s.planRepo }

// CustomerRepo returns the customer repository
func (s *NoOpTransactionScope) CustomerRepo() customer.CustomerRepository { return s.customerRepo }

// NotificationRepo returns the notification repository
func (s *NoOpTransactionScope) NotificationRepo() notification.NotificationRepository {
	return s.notificationRepo
}

// APILogRepo returns the API audit log repository
func (s *NoOpTransactionScope) APILogRepo() integration.APILogRepository { return s.apiLogRepo }

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
