package persistence

import (
	"context"

	"gorm.io/gorm"

	apppayment "github.com/pesaflow/backend/internal/application/payment"
	"github.com/pesaflow/backend/internal/domain/customer"
	"github.com/pesaflow/backend/internal/domain/integration"
	"github.com/pesaflow/backend/internal/domain/notification"
	"github.com/pesaflow/backend/internal/domain/payment"
)

// GormSettlementScope implements the settlement transaction scope: every
// repository handed to the callback shares one database transaction.
type GormSettlementScope struct {
	db *gorm.DB
}

// NewGormSettlementScope creates a settlement transaction scope
func NewGormSettlementScope(db *gorm.DB) *GormSettlementScope {
	return &GormSettlementScope{db: db}
}

// Execute runs fn inside a database transaction
func (s *GormSettlementScope) Execute(ctx context.Context, fn func(repos apppayment.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTxRepositories{tx: tx})
	})
}

// gormTxRepositories builds repositories bound to one transaction
type gormTxRepositories struct {
	tx *gorm.DB
}

func (r *gormTxRepositories) PaymentRepo() payment.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

func (r *gormTxRepositories) InvoiceRepo() payment.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

func (r *gormTxRepositories) PlanRepo() payment.PaymentPlanRepository {
	return NewGormPaymentPlanRepository(r.tx)
}

func (r *gormTxRepositories) CustomerRepo() customer.CustomerRepository {
	return NewGormCustomerRepository(r.tx)
}

func (r *gormTxRepositories) NotificationRepo() notification.NotificationRepository {
	return NewGormNotificationRepository(r.tx)
}

func (r *gormTxRepositories) APILogRepo() integration.APILogRepository {
	return NewGormAPILogRepository(r.tx)
}

// Ensure the scope implements the application interfaces
var _ apppayment.TransactionScope = (*GormSettlementScope)(nil)
var _ apppayment.TransactionalRepositories = (*gormTxRepositories)(nil)
