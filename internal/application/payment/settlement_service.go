package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pesaflow/backend/internal/domain/customer"
	"github.com/pesaflow/backend/internal/domain/integration"
	"github.com/pesaflow/backend/internal/domain/notification"
	"github.com/pesaflow/backend/internal/domain/payment"
	"github.com/pesaflow/backend/internal/domain/shared"
)

// ErrInvalidSignature is returned when a webhook signature does not match the
// organization's webhook secret. The payload is audited but never applied.
var ErrInvalidSignature = shared.NewDomainError("INVALID_SIGNATURE", "Webhook signature verification failed")

// callbackDedupeTTL bounds how long a processed callback key is remembered
// in the idempotency store
const callbackDedupeTTL = 24 * time.Hour

// SettlementService drives the payment state machine: initiation, provider
// dispatch, callback reconciliation, reversal and cancellation.
type SettlementService struct {
	scope           TransactionScope
	paymentRepo     payment.PaymentRepository
	customerRepo    customer.CustomerRepository
	integrationRepo integration.IntegrationRepository
	apiLogRepo      integration.APILogRepository
	sequences       payment.SequenceAllocator
	providers       map[integration.Provider]integration.MoneyMovementProvider
	processed       shared.IdempotencyStore
	dispatchTimeout time.Duration
	logger          *zap.Logger
	now             func() time.Time
}

// NewSettlementService creates a settlement service
func NewSettlementService(
	scope TransactionScope,
	paymentRepo payment.PaymentRepository,
	customerRepo customer.CustomerRepository,
	integrationRepo integration.IntegrationRepository,
	apiLogRepo integration.APILogRepository,
	sequences payment.SequenceAllocator,
	providers []integration.MoneyMovementProvider,
	processed shared.IdempotencyStore,
	logger *zap.Logger,
) *SettlementService {
	providerMap := make(map[integration.Provider]integration.MoneyMovementProvider, len(providers))
	for _, p := range providers {
		providerMap[p.Provider()] = p
	}
	return &SettlementService{
		scope:           scope,
		paymentRepo:     paymentRepo,
		customerRepo:    customerRepo,
		integrationRepo: integrationRepo,
		apiLogRepo:      apiLogRepo,
		sequences:       sequences,
		providers:       providerMap,
		processed:       processed,
		dispatchTimeout: 30 * time.Second,
		logger:          logger,
		now:             time.Now,
	}
}

// InitiatePayment validates the request, resolves the customer, assigns the
// organization-scoped reference and persists a payment in PENDING state.
func (s *SettlementService) InitiatePayment(ctx context.Context, cmd InitiatePaymentCommand) (*payment.Payment, error) {
	if !cmd.Amount.IsPositive() {
		return nil, payment.ErrInvalidAmount
	}

	resolvedCustomer, err := s.resolveCustomer(ctx, cmd)
	if err != nil {
		return nil, err
	}

	at := s.now()
	seq, err := s.sequences.Next(ctx, cmd.TenantID, payment.ReferenceKindPayment,
		payment.ReferencePeriod(payment.ReferenceKindPayment, at))
	if err != nil {
		return nil, fmt.Errorf("allocating payment reference: %w", err)
	}
	reference := payment.FormatReference(payment.ReferenceKindPayment, cmd.OrganizationName, seq, at)

	p, err := payment.NewPayment(cmd.TenantID, reference, cmd.Amount, cmd.Method, cmd.Kind,
		cmd.PhoneNumber, cmd.Description)
	if err != nil {
		return nil, err
	}
	if resolvedCustomer != nil {
		p.LinkCustomer(resolvedCustomer.ID)
	}
	if cmd.InvoiceID != nil {
		p.LinkInvoice(*cmd.InvoiceID)
	}
	if cmd.PaymentPlanID != nil {
		p.LinkPaymentPlan(*cmd.PaymentPlanID)
	}
	if cmd.InitiatedBy != nil {
		p.SetCreatedBy(*cmd.InitiatedBy)
	}

	if err := s.paymentRepo.Save(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("payment initiated",
		zap.String("payment_id", p.ID.String()),
		zap.String("reference", p.Reference),
		zap.String("tenant_id", p.TenantID.String()),
		zap.String("amount", p.Amount.String()))
	return p, nil
}

// resolveCustomer finds the customer by explicit ID, or by exact phone/email
// match within the organization. More than one match is an error rather than
// an arbitrary pick.
func (s *SettlementService) resolveCustomer(ctx context.Context, cmd InitiatePaymentCommand) (*customer.Customer, error) {
	if cmd.CustomerID != nil {
		c, err := s.customerRepo.FindByID(ctx, cmd.TenantID, *cmd.CustomerID)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, shared.NewDomainError("NOT_FOUND", "Customer not found")
		}
		return c, nil
	}
	if cmd.PhoneNumber == "" && cmd.Email == "" {
		return nil, nil
	}

	matches, err := s.customerRepo.FindByPhoneOrEmail(ctx, cmd.TenantID, cmd.PhoneNumber, cmd.Email)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, payment.ErrAmbiguousCustomer
	}
}

// DispatchToProvider sends a pending payment to the provider as a push
// request. The payment is moved to INITIATED before the network call so a
// crash mid-dispatch never leaves an untracked provider request, then to
// PROCESSING on provider acceptance or FAILED on rejection. Dispatch is not
// retried automatically: a fresh reference is required for a safe retry.
func (s *SettlementService) DispatchToProvider(ctx context.Context, tenantID, paymentID uuid.UUID) (*payment.Payment, error) {
	p, err := s.paymentRepo.FindByID(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, payment.ErrPaymentNotFound
	}
	if !p.Status.CanDispatch() {
		return nil, shared.NewDomainError("INVALID_STATE",
			"Payment cannot be dispatched from status "+p.Status.String())
	}

	integ, err := s.integrationRepo.FindActiveByProvider(ctx, tenantID, integration.ProviderMpesa)
	if err != nil {
		return nil, err
	}
	if integ == nil {
		return nil, shared.NewDomainError("INVALID_CREDENTIALS", "No active M-Pesa integration is configured")
	}
	provider, ok := s.providers[integ.Provider]
	if !ok {
		return nil, shared.NewDomainError("INVALID_CREDENTIALS",
			"No adapter registered for provider "+integ.Provider.String())
	}

	if err := p.Initiate(); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.Save(ctx, p); err != nil {
		return nil, err
	}

	pushReq := integration.PushRequest{
		PhoneNumber: p.PhoneNumber,
		Amount:      p.Amount,
		Reference:   p.Reference,
		Description: p.Description,
	}

	callCtx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
	defer cancel()

	started := s.now()
	resp, pushErr := provider.PushPayment(callCtx, integ, pushReq)
	elapsed := s.now().Sub(started)

	if pushErr != nil {
		domainErr := classifyGatewayError(pushErr)
		_ = p.Fail(domainErr.Message)
		s.auditDispatch(ctx, integ, p, pushReq, nil, elapsed, pushErr)
		integ.RecordUsage(false, s.now())
		_ = s.integrationRepo.Save(ctx, integ)
		if err := s.paymentRepo.Save(ctx, p); err != nil {
			return nil, err
		}
		s.logger.Warn("provider dispatch failed",
			zap.String("payment_id", p.ID.String()),
			zap.String("reference", p.Reference),
			zap.Error(pushErr))
		return p, domainErr
	}

	if err := p.MarkProcessing(resp.CheckoutRequestID, resp.MerchantRequestID); err != nil {
		return nil, err
	}
	s.auditDispatch(ctx, integ, p, pushReq, resp, elapsed, nil)
	integ.RecordUsage(true, s.now())
	_ = s.integrationRepo.Save(ctx, integ)
	if err := s.paymentRepo.Save(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("payment dispatched to provider",
		zap.String("payment_id", p.ID.String()),
		zap.String("reference", p.Reference),
		zap.String("checkout_request_id", p.CheckoutRequestID))
	return p, nil
}

// classifyGatewayError maps gateway sentinel errors onto the error taxonomy
func classifyGatewayError(err error) *shared.DomainError {
	switch {
	case errors.Is(err, integration.ErrInvalidCredentials):
		return shared.NewDomainError("INVALID_CREDENTIALS", "Provider rejected the configured credentials")
	case errors.Is(err, integration.ErrProviderRejected):
		return shared.NewDomainError("PROVIDER_REJECTED", "Provider rejected the push request: "+err.Error())
	default:
		return shared.NewDomainError("PROVIDER_UNAVAILABLE", "Provider is temporarily unavailable")
	}
}

// auditDispatch records the outbound provider exchange; audit failures are
// logged, never propagated
func (s *SettlementService) auditDispatch(
	ctx context.Context,
	integ *integration.Integration,
	p *payment.Payment,
	req integration.PushRequest,
	resp *integration.PushResponse,
	elapsed time.Duration,
	callErr error,
) {
	reqBody, _ := json.Marshal(req)
	status := integration.APILogStatusSuccess
	respBody := ""
	correlationID := ""
	if resp != nil {
		b, _ := json.Marshal(resp)
		respBody = string(b)
		correlationID = resp.CheckoutRequestID
	}
	if callErr != nil {
		status = integration.APILogStatusFailed
	}

	logEntry := integration.NewAPILog(integ.TenantID, integ.Provider, integration.APILogDirectionOutbound,
		"stkpush", string(reqBody), respBody, 0, elapsed, correlationID, status)
	logEntry.LinkPayment(p.ID)
	if callErr != nil {
		logEntry.SetError(callErr.Error())
	}
	if err := s.apiLogRepo.Save(ctx, logEntry); err != nil {
		s.logger.Error("failed to write provider audit log",
			zap.String("payment_id", p.ID.String()), zap.Error(err))
	}
}

// ReconcileCallback verifies and applies one provider callback. Signature
// failures are audited and rejected without touching any payment. Orphan and
// duplicate callbacks are audited no-ops acknowledged with success. A matched
// callback applies the terminal transition, the customer activity update, the
// invoice/plan ledger update and the notification enqueue in one transaction,
// with the payment row locked for the duration.
func (s *SettlementService) ReconcileCallback(ctx context.Context, integrationID uuid.UUID, rawPayload []byte, signature string) (*ReconcileResult, error) {
	integ, err := s.integrationRepo.FindByID(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	if integ == nil || !integ.IsActive {
		return nil, shared.NewDomainError("NOT_FOUND", "Integration not found")
	}
	provider, ok := s.providers[integ.Provider]
	if !ok {
		return nil, shared.NewDomainError("INVALID_CREDENTIALS",
			"No adapter registered for provider "+integ.Provider.String())
	}

	if !provider.VerifyWebhookSignature(rawPayload, signature, integ.WebhookSecret) {
		s.auditInbound(ctx, integ, rawPayload, "", integration.APILogStatusRejected, "signature verification failed", nil)
		s.logger.Warn("webhook rejected: invalid signature",
			zap.String("integration_id", integrationID.String()),
			zap.String("tenant_id", integ.TenantID.String()))
		return &ReconcileResult{
			Acknowledgement: provider.AcknowledgementResponse(false, "invalid signature"),
		}, ErrInvalidSignature
	}

	cb, err := provider.ParseCallback(rawPayload)
	if err != nil {
		s.auditInbound(ctx, integ, rawPayload, "", integration.APILogStatusRejected, err.Error(), nil)
		return &ReconcileResult{
			Acknowledgement: provider.AcknowledgementResponse(false, "malformed payload"),
		}, shared.NewDomainError("INVALID_INPUT", "Malformed callback payload")
	}

	result := &ReconcileResult{
		Acknowledgement: provider.AcknowledgementResponse(true, "ok"),
	}

	dedupeKey := fmt.Sprintf("callback:%s:%s:%d", integrationID, cb.CheckoutRequestID, cb.ResultCode)
	if s.processed != nil {
		if seen, err := s.processed.IsProcessed(ctx, dedupeKey); err == nil && seen {
			result.AlreadyProcessed = true
			result.Success = true
			return result, nil
		}
	}

	txErr := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		p, err := repos.PaymentRepo().FindByCheckoutRequestIDForUpdate(ctx, integ.TenantID, cb.CheckoutRequestID)
		if err != nil {
			return err
		}
		if p == nil {
			result.Orphaned = true
			orphanLog := integration.NewAPILog(integ.TenantID, integ.Provider, integration.APILogDirectionInbound,
				"callback", string(rawPayload), "", 0, 0, cb.CheckoutRequestID, integration.APILogStatusOrphaned)
			orphanLog.SetError("no payment matches checkout request id")
			return repos.APILogRepo().Save(ctx, orphanLog)
		}
		result.PaymentID = &p.ID

		// Second delivery of the same outcome: the first writer already
		// applied the terminal transition.
		if p.Status.IsTerminal() {
			result.AlreadyProcessed = true
			result.Success = true
			return nil
		}

		if cb.Success {
			if err := s.applySuccess(ctx, repos, p, cb); err != nil {
				return err
			}
		} else {
			if err := s.applyFailure(ctx, repos, p, cb); err != nil {
				return err
			}
		}
		result.Success = true

		auditLog := integration.NewAPILog(integ.TenantID, integ.Provider, integration.APILogDirectionInbound,
			"callback", string(rawPayload), "", 0, 0, cb.CheckoutRequestID, integration.APILogStatusSuccess)
		auditLog.LinkPayment(p.ID)
		return repos.APILogRepo().Save(ctx, auditLog)
	})
	if txErr != nil {
		return nil, txErr
	}

	// Mark only after commit so a rolled-back attempt can be redelivered
	if s.processed != nil && !result.Orphaned {
		if _, err := s.processed.MarkProcessed(ctx, dedupeKey, callbackDedupeTTL); err != nil {
			s.logger.Warn("failed to mark callback processed", zap.Error(err))
		}
	}

	if result.Orphaned {
		s.logger.Warn("orphan callback received",
			zap.String("integration_id", integrationID.String()),
			zap.String("checkout_request_id", cb.CheckoutRequestID))
	}
	return result, nil
}

// applySuccess settles the payment and its linked ledger entities
func (s *SettlementService) applySuccess(ctx context.Context, repos TransactionalRepositories, p *payment.Payment, cb *integration.CallbackResult) error {
	at := s.now()
	if err := p.Complete(cb.ReceiptNumber, cb.Amount, at); err != nil {
		return err
	}
	if cb.PhoneNumber != "" {
		p.PhoneNumber = cb.PhoneNumber
	}
	if err := repos.PaymentRepo().Save(ctx, p); err != nil {
		return err
	}

	if p.CustomerID != nil {
		c, err := repos.CustomerRepo().FindByID(ctx, p.TenantID, *p.CustomerID)
		if err != nil {
			return err
		}
		if c != nil {
			c.RecordPaymentActivity(at)
			if err := repos.CustomerRepo().Save(ctx, c); err != nil {
				return err
			}
		}
	}

	if p.InvoiceID != nil {
		inv, err := repos.InvoiceRepo().FindByID(ctx, p.TenantID, *p.InvoiceID)
		if err != nil {
			return err
		}
		if inv == nil {
			return shared.NewDomainError("NOT_FOUND", "Linked invoice not found")
		}
		if err := inv.RecordPayment(p.Amount, at); err != nil {
			return err
		}
		if err := repos.InvoiceRepo().Save(ctx, inv); err != nil {
			return err
		}
	}

	if p.PaymentPlanID != nil {
		plan, err := repos.PlanRepo().FindByID(ctx, p.TenantID, *p.PaymentPlanID)
		if err != nil {
			return err
		}
		if plan == nil {
			return shared.NewDomainError("NOT_FOUND", "Linked payment plan not found")
		}
		if err := plan.RecordInstallment(p.Amount, at); err != nil {
			return err
		}
		if err := repos.PlanRepo().Save(ctx, plan); err != nil {
			return err
		}
	}

	return s.enqueueReceiptNotification(ctx, repos, p, true)
}

// applyFailure terminates the payment per the provider's result
func (s *SettlementService) applyFailure(ctx context.Context, repos TransactionalRepositories, p *payment.Payment, cb *integration.CallbackResult) error {
	if err := p.Fail(cb.ResultDescription); err != nil {
		return err
	}
	if err := repos.PaymentRepo().Save(ctx, p); err != nil {
		return err
	}
	return s.enqueueReceiptNotification(ctx, repos, p, false)
}

// enqueueReceiptNotification queues the settlement outcome message for the
// asynchronous dispatcher
func (s *SettlementService) enqueueReceiptNotification(ctx context.Context, repos TransactionalRepositories, p *payment.Payment, success bool) error {
	var message string
	if success {
		message = fmt.Sprintf("Payment %s of %s %s received. Receipt: %s",
			p.Reference, p.Currency, p.Amount.StringFixed(2), p.ExternalReference)
	} else {
		message = fmt.Sprintf("Payment %s of %s %s failed: %s",
			p.Reference, p.Currency, p.Amount.StringFixed(2), p.FailureReason)
	}

	n, err := notification.NewNotification(p.TenantID, notification.ChannelSMS, notification.PriorityHigh, message)
	if err != nil {
		return err
	}
	n.SetRecipient(p.CustomerID, p.PhoneNumber, "")
	n.LinkPayment(p.ID)
	return repos.NotificationRepo().Save(ctx, n)
}

// auditInbound writes an audit record for a rejected inbound webhook; write
// failures are logged, never propagated
func (s *SettlementService) auditInbound(ctx context.Context, integ *integration.Integration, payload []byte, correlationID string, status integration.APILogStatus, errMsg string, paymentID *uuid.UUID) {
	logEntry := integration.NewAPILog(integ.TenantID, integ.Provider, integration.APILogDirectionInbound,
		"callback", string(payload), "", 0, 0, correlationID, status)
	if errMsg != "" {
		logEntry.SetError(errMsg)
	}
	if paymentID != nil {
		logEntry.LinkPayment(*paymentID)
	}
	if err := s.apiLogRepo.Save(ctx, logEntry); err != nil {
		s.logger.Error("failed to write webhook audit log", zap.Error(err))
	}
}

// ReversePayment marks a completed payment as reversed. Ledger-only: no
// provider reversal call is made.
func (s *SettlementService) ReversePayment(ctx context.Context, tenantID, paymentID uuid.UUID, reason string, actor uuid.UUID) (*payment.Payment, error) {
	p, err := s.paymentRepo.FindByID(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, payment.ErrPaymentNotFound
	}

	expectedVersion := p.GetVersion()
	if err := p.Reverse(reason, actor); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.SaveWithLock(ctx, p, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.Info("payment reversed",
		zap.String("payment_id", p.ID.String()),
		zap.String("reference", p.Reference),
		zap.String("reason", reason))
	return p, nil
}

// CancelPayment aborts a payment the provider has not yet accepted
func (s *SettlementService) CancelPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (*payment.Payment, error) {
	p, err := s.paymentRepo.FindByID(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, payment.ErrPaymentNotFound
	}

	expectedVersion := p.GetVersion()
	if err := p.Cancel(); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.SaveWithLock(ctx, p, expectedVersion); err != nil {
		return nil, err
	}
	return p, nil
}

// GetPayment loads one payment scoped to the organization
func (s *SettlementService) GetPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (*payment.Payment, error) {
	p, err := s.paymentRepo.FindByID(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, payment.ErrPaymentNotFound
	}
	return p, nil
}
