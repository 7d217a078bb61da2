package payment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pesaflow/backend/internal/domain/customer"
	"github.com/pesaflow/backend/internal/domain/integration"
	"github.com/pesaflow/backend/internal/domain/notification"
	"github.com/pesaflow/backend/internal/domain/payment"
	"github.com/pesaflow/backend/internal/domain/shared"
)

// ============================================
// Mock Repositories
// ============================================

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPaymentRepository) SaveWithLock(ctx context.Context, p *payment.Payment, expectedVersion int) error {
	args := m.Called(ctx, p, expectedVersion)
	return args.Error(0)
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*payment.Payment, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByReference(ctx context.Context, tenantID uuid.UUID, reference string) (*payment.Payment, error) {
	args := m.Called(ctx, tenantID, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByCheckoutRequestIDForUpdate(ctx context.Context, tenantID uuid.UUID, checkoutRequestID string) (*payment.Payment, error) {
	args := m.Called(ctx, tenantID, checkoutRequestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByStatus(ctx context.Context, tenantID uuid.UUID, status payment.PaymentStatus, limit, offset int) ([]*payment.Payment, error) {
	args := m.Called(ctx, tenantID, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID, limit, offset int) ([]*payment.Payment, error) {
	args := m.Called(ctx, tenantID, customerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*payment.Payment), args.Error(1)
}

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Save(ctx context.Context, inv *payment.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*payment.Invoice, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*payment.Invoice, error) {
	args := m.Called(ctx, tenantID, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID, limit, offset int) ([]*payment.Invoice, error) {
	args := m.Called(ctx, tenantID, customerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*payment.Invoice), args.Error(1)
}

type MockPlanRepository struct {
	mock.Mock
}

func (m *MockPlanRepository) Save(ctx context.Context, plan *payment.PaymentPlan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockPlanRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*payment.PaymentPlan, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.PaymentPlan), args.Error(1)
}

func (m *MockPlanRepository) FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) ([]*payment.PaymentPlan, error) {
	args := m.Called(ctx, tenantID, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*payment.PaymentPlan), args.Error(1)
}

func (m *MockPlanRepository) FindByStatus(ctx context.Context, tenantID uuid.UUID, status payment.PlanStatus, limit, offset int) ([]*payment.PaymentPlan, error) {
	args := m.Called(ctx, tenantID, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*payment.PaymentPlan), args.Error(1)
}

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) Save(ctx context.Context, c *customer.Customer) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCustomerRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*customer.Customer, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) FindByPhoneOrEmail(ctx context.Context, tenantID uuid.UUID, phone, email string) ([]*customer.Customer, error) {
	args := m.Called(ctx, tenantID, phone, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*customer.Customer), args.Error(1)
}

type MockIntegrationRepository struct {
	mock.Mock
}

func (m *MockIntegrationRepository) Save(ctx context.Context, integ *integration.Integration) error {
	args := m.Called(ctx, integ)
	return args.Error(0)
}

func (m *MockIntegrationRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Integration, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Integration), args.Error(1)
}

func (m *MockIntegrationRepository) FindActiveByProvider(ctx context.Context, tenantID uuid.UUID, provider integration.Provider) (*integration.Integration, error) {
	args := m.Called(ctx, tenantID, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Integration), args.Error(1)
}

type MockAPILogRepository struct {
	mock.Mock
}

func (m *MockAPILogRepository) Save(ctx context.Context, log *integration.APILog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockAPILogRepository) FindByCorrelationID(ctx context.Context, tenantID uuid.UUID, correlationID string) ([]*integration.APILog, error) {
	args := m.Called(ctx, tenantID, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*integration.APILog), args.Error(1)
}

type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Save(ctx context.Context, n *notification.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNotificationRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*notification.Notification, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notification.Notification), args.Error(1)
}

func (m *MockNotificationRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*notification.Notification, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*notification.Notification), args.Error(1)
}

func (m *MockNotificationRepository) CountByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, paymentID)
	return args.Get(0).(int64), args.Error(1)
}

type MockSequenceAllocator struct {
	mock.Mock
}

func (m *MockSequenceAllocator) Next(ctx context.Context, tenantID uuid.UUID, kind payment.ReferenceKind, period string) (int64, error) {
	args := m.Called(ctx, tenantID, kind, period)
	return args.Get(0).(int64), args.Error(1)
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Provider() integration.Provider {
	return integration.ProviderMpesa
}

func (m *MockProvider) Authenticate(ctx context.Context, integ *integration.Integration) (string, error) {
	args := m.Called(ctx, integ)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) PushPayment(ctx context.Context, integ *integration.Integration, req integration.PushRequest) (*integration.PushResponse, error) {
	args := m.Called(ctx, integ, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.PushResponse), args.Error(1)
}

func (m *MockProvider) VerifyWebhookSignature(payload []byte, signature, secret string) bool {
	args := m.Called(payload, signature, secret)
	return args.Bool(0)
}

func (m *MockProvider) ParseCallback(payload []byte) (*integration.CallbackResult, error) {
	args := m.Called(payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.CallbackResult), args.Error(1)
}

func (m *MockProvider) AcknowledgementResponse(success bool, message string) []byte {
	args := m.Called(success, message)
	return args.Get(0).([]byte)
}

// memoryDedupe is an in-process idempotency store for tests
type memoryDedupe struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemoryDedupe() *memoryDedupe {
	return &memoryDedupe{keys: make(map[string]bool)}
}

func (s *memoryDedupe) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *memoryDedupe) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key], nil
}

func (s *memoryDedupe) Close() error { return nil }

// ============================================
// Test Fixtures
// ============================================

type settlementFixture struct {
	service       *SettlementService
	paymentRepo   *MockPaymentRepository
	invoiceRepo   *MockInvoiceRepository
	planRepo      *MockPlanRepository
	customerRepo  *MockCustomerRepository
	integRepo     *MockIntegrationRepository
	apiLogRepo    *MockAPILogRepository
	notifRepo     *MockNotificationRepository
	sequences     *MockSequenceAllocator
	provider      *MockProvider
	dedupe        *memoryDedupe
}

func newSettlementFixture(t *testing.T) *settlementFixture {
	t.Helper()
	f := &settlementFixture{
		paymentRepo:  new(MockPaymentRepository),
		invoiceRepo:  new(MockInvoiceRepository),
		planRepo:     new(MockPlanRepository),
		customerRepo: new(MockCustomerRepository),
		integRepo:    new(MockIntegrationRepository),
		apiLogRepo:   new(MockAPILogRepository),
		notifRepo:    new(MockNotificationRepository),
		sequences:    new(MockSequenceAllocator),
		provider:     new(MockProvider),
		dedupe:       newMemoryDedupe(),
	}
	scope := NewNoOpTransactionScope(f.paymentRepo, f.invoiceRepo, f.planRepo,
		f.customerRepo, f.notifRepo, f.apiLogRepo)
	f.service = NewSettlementService(scope, f.paymentRepo, f.customerRepo, f.integRepo,
		f.apiLogRepo, f.sequences, []integration.MoneyMovementProvider{f.provider},
		f.dedupe, zap.NewNop())
	f.service.now = func() time.Time {
		return time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	}
	return f
}

func createTestIntegration(t *testing.T, tenantID uuid.UUID) *integration.Integration {
	t.Helper()
	integ, err := integration.NewIntegration(tenantID, integration.ProviderMpesa,
		integration.EnvironmentSandbox, "ck_test", "cs_test", "174379", "pk_test",
		"whsec_test", "https://pay.example.com/webhooks/mpesa")
	require.NoError(t, err)
	return integ
}

func createProcessingPayment(t *testing.T, tenantID uuid.UUID, checkoutRequestID string) *payment.Payment {
	t.Helper()
	p, err := payment.NewPayment(tenantID, "PAY-ACM-20250115-00042",
		decimal.NewFromInt(1500), payment.PaymentMethodMpesa, payment.PaymentKindInvoice,
		"254712345678", "January rent")
	require.NoError(t, err)
	require.NoError(t, p.Initiate())
	require.NoError(t, p.MarkProcessing(checkoutRequestID, "29115-34620561-1"))
	return p
}

// ============================================
// InitiatePayment Tests
// ============================================

func TestSettlementService_InitiatePayment(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	matched, err := customer.NewCustomer(tenantID, "CUS-ACM-00001", "Wanjiku Kamau", "254712345678", "")
	require.NoError(t, err)

	f.customerRepo.On("FindByPhoneOrEmail", ctx, tenantID, "254712345678", "").
		Return([]*customer.Customer{matched}, nil)
	f.sequences.On("Next", ctx, tenantID, payment.ReferenceKindPayment, "20250115").
		Return(int64(42), nil)
	f.paymentRepo.On("Save", ctx, mock.AnythingOfType("*payment.Payment")).Return(nil)

	p, err := f.service.InitiatePayment(ctx, InitiatePaymentCommand{
		TenantID:         tenantID,
		OrganizationName: "Acme Holdings",
		Amount:           decimal.NewFromInt(1500),
		PhoneNumber:      "254712345678",
		Method:           payment.PaymentMethodMpesa,
		Kind:             payment.PaymentKindInvoice,
	})

	require.NoError(t, err)
	assert.Equal(t, "PAY-ACM-20250115-00042", p.Reference)
	assert.Equal(t, payment.PaymentStatusPending, p.Status)
	require.NotNil(t, p.CustomerID)
	assert.Equal(t, matched.ID, *p.CustomerID)
	f.paymentRepo.AssertExpectations(t)
}

func TestSettlementService_InitiatePayment_RejectsNonPositiveAmount(t *testing.T) {
	f := newSettlementFixture(t)

	_, err := f.service.InitiatePayment(context.Background(), InitiatePaymentCommand{
		TenantID: uuid.New(),
		Amount:   decimal.Zero,
		Method:   payment.PaymentMethodMpesa,
	})

	assert.ErrorIs(t, err, payment.ErrInvalidAmount)
	f.paymentRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestSettlementService_InitiatePayment_AmbiguousCustomer(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	first, err := customer.NewCustomer(tenantID, "CUS-ACM-00001", "Wanjiku Kamau", "254712345678", "")
	require.NoError(t, err)
	second, err := customer.NewCustomer(tenantID, "CUS-ACM-00002", "Wanjiku K.", "254712345678", "")
	require.NoError(t, err)

	f.customerRepo.On("FindByPhoneOrEmail", ctx, tenantID, "254712345678", "").
		Return([]*customer.Customer{first, second}, nil)

	_, err = f.service.InitiatePayment(ctx, InitiatePaymentCommand{
		TenantID:    tenantID,
		Amount:      decimal.NewFromInt(100),
		PhoneNumber: "254712345678",
		Method:      payment.PaymentMethodMpesa,
	})

	assert.ErrorIs(t, err, payment.ErrAmbiguousCustomer)
	f.paymentRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestSettlementService_InitiatePayment_NoContactMatchProceedsUnlinked(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	f.customerRepo.On("FindByPhoneOrEmail", ctx, tenantID, "254700000000", "").
		Return([]*customer.Customer{}, nil)
	f.sequences.On("Next", ctx, tenantID, payment.ReferenceKindPayment, "20250115").
		Return(int64(1), nil)
	f.paymentRepo.On("Save", ctx, mock.AnythingOfType("*payment.Payment")).Return(nil)

	p, err := f.service.InitiatePayment(ctx, InitiatePaymentCommand{
		TenantID:         tenantID,
		OrganizationName: "Acme Holdings",
		Amount:           decimal.NewFromInt(100),
		PhoneNumber:      "254700000000",
		Method:           payment.PaymentMethodMpesa,
	})

	require.NoError(t, err)
	assert.Nil(t, p.CustomerID)
}

func TestSettlementService_InitiatePayment_ExplicitCustomerNotFound(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()
	customerID := uuid.New()

	f.customerRepo.On("FindByID", ctx, tenantID, customerID).Return(nil, nil)

	_, err := f.service.InitiatePayment(ctx, InitiatePaymentCommand{
		TenantID:   tenantID,
		CustomerID: &customerID,
		Amount:     decimal.NewFromInt(100),
		Method:     payment.PaymentMethodMpesa,
	})

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}

// ============================================
// DispatchToProvider Tests
// ============================================

func TestSettlementService_DispatchToProvider(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	p, err := payment.NewPayment(tenantID, "PAY-ACM-20250115-00042",
		decimal.NewFromInt(1500), payment.PaymentMethodMpesa, payment.PaymentKindInvoice,
		"254712345678", "January rent")
	require.NoError(t, err)
	integ := createTestIntegration(t, tenantID)

	f.paymentRepo.On("FindByID", ctx, tenantID, p.ID).Return(p, nil)
	f.integRepo.On("FindActiveByProvider", ctx, tenantID, integration.ProviderMpesa).Return(integ, nil)
	f.paymentRepo.On("Save", ctx, p).Return(nil)
	f.provider.On("PushPayment", mock.Anything, integ, mock.AnythingOfType("integration.PushRequest")).
		Return(&integration.PushResponse{
			CheckoutRequestID: "ws_CO_15012025103000",
			MerchantRequestID: "29115-34620561-1",
		}, nil)
	f.apiLogRepo.On("Save", ctx, mock.AnythingOfType("*integration.APILog")).Return(nil)
	f.integRepo.On("Save", ctx, integ).Return(nil)

	result, err := f.service.DispatchToProvider(ctx, tenantID, p.ID)

	require.NoError(t, err)
	assert.Equal(t, payment.PaymentStatusProcessing, result.Status)
	assert.Equal(t, "ws_CO_15012025103000", result.CheckoutRequestID)
	assert.Equal(t, int64(1), integ.TotalRequests)
	assert.Equal(t, int64(0), integ.FailedRequests)
	f.paymentRepo.AssertNumberOfCalls(t, "Save", 2)
	f.apiLogRepo.AssertExpectations(t)
}

func TestSettlementService_DispatchToProvider_ProviderUnavailable(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	p, err := payment.NewPayment(tenantID, "PAY-ACM-20250115-00043",
		decimal.NewFromInt(500), payment.PaymentMethodMpesa, payment.PaymentKindFee,
		"254712345678", "")
	require.NoError(t, err)
	integ := createTestIntegration(t, tenantID)

	f.paymentRepo.On("FindByID", ctx, tenantID, p.ID).Return(p, nil)
	f.integRepo.On("FindActiveByProvider", ctx, tenantID, integration.ProviderMpesa).Return(integ, nil)
	f.paymentRepo.On("Save", ctx, p).Return(nil)
	f.provider.On("PushPayment", mock.Anything, integ, mock.AnythingOfType("integration.PushRequest")).
		Return(nil, integration.ErrProviderUnavailable)
	f.apiLogRepo.On("Save", ctx, mock.AnythingOfType("*integration.APILog")).Return(nil)
	f.integRepo.On("Save", ctx, integ).Return(nil)

	result, err := f.service.DispatchToProvider(ctx, tenantID, p.ID)

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "PROVIDER_UNAVAILABLE", domainErr.Code)
	assert.Equal(t, payment.PaymentStatusFailed, result.Status)
	assert.Equal(t, int64(1), integ.FailedRequests)
}

func TestSettlementService_DispatchToProvider_CredentialRejection(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	p, err := payment.NewPayment(tenantID, "PAY-ACM-20250115-00044",
		decimal.NewFromInt(500), payment.PaymentMethodMpesa, payment.PaymentKindFee,
		"254712345678", "")
	require.NoError(t, err)
	integ := createTestIntegration(t, tenantID)

	f.paymentRepo.On("FindByID", ctx, tenantID, p.ID).Return(p, nil)
	f.integRepo.On("FindActiveByProvider", ctx, tenantID, integration.ProviderMpesa).Return(integ, nil)
	f.paymentRepo.On("Save", ctx, p).Return(nil)
	f.provider.On("PushPayment", mock.Anything, integ, mock.AnythingOfType("integration.PushRequest")).
		Return(nil, integration.ErrInvalidCredentials)
	f.apiLogRepo.On("Save", ctx, mock.AnythingOfType("*integration.APILog")).Return(nil)
	f.integRepo.On("Save", ctx, integ).Return(nil)

	_, err = f.service.DispatchToProvider(ctx, tenantID, p.ID)

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_CREDENTIALS", domainErr.Code)
}

func TestSettlementService_DispatchToProvider_InvalidState(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	p := createProcessingPayment(t, tenantID, "ws_CO_already_dispatched")

	f.paymentRepo.On("FindByID", ctx, tenantID, p.ID).Return(p, nil)

	_, err := f.service.DispatchToProvider(ctx, tenantID, p.ID)

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_STATE", domainErr.Code)
	f.provider.AssertNotCalled(t, "PushPayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestSettlementService_DispatchToProvider_NoActiveIntegration(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	p, err := payment.NewPayment(tenantID, "PAY-ACM-20250115-00045",
		decimal.NewFromInt(500), payment.PaymentMethodMpesa, payment.PaymentKindOther,
		"254712345678", "")
	require.NoError(t, err)

	f.paymentRepo.On("FindByID", ctx, tenantID, p.ID).Return(p, nil)
	f.integRepo.On("FindActiveByProvider", ctx, tenantID, integration.ProviderMpesa).Return(nil, nil)

	_, err = f.service.DispatchToProvider(ctx, tenantID, p.ID)

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_CREDENTIALS", domainErr.Code)
	assert.Equal(t, payment.PaymentStatusPending, p.Status)
}

// ============================================
// ReconcileCallback Tests
// ============================================

func TestSettlementService_ReconcileCallback_Success(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()
	integ := createTestIntegration(t, tenantID)

	payer, err := customer.NewCustomer(tenantID, "CUS-ACM-00001", "Wanjiku Kamau", "254712345678", "")
	require.NoError(t, err)

	inv, err := payment.NewInvoice(tenantID, "INV-ACM-202501-00007", payer.ID,
		decimal.NewFromInt(1500), decimal.Zero, decimal.Zero,
		time.Now(), time.Now().AddDate(0, 0, 30))
	require.NoError(t, err)

	p := createProcessingPayment(t, tenantID, "ws_CO_15012025103000")
	p.LinkCustomer(payer.ID)
	p.LinkInvoice(inv.ID)

	rawPayload := []byte(`{"Body":{"stkCallback":{"ResultCode":0}}}`)
	cb := &integration.CallbackResult{
		CheckoutRequestID: "ws_CO_15012025103000",
		Success:           true,
		ResultCode:        0,
		ReceiptNumber:     "SBL5XKP2QT",
		Amount:            decimal.NewFromInt(1500),
		PhoneNumber:       "254712345678",
	}

	f.integRepo.On("FindByID", ctx, integ.ID).Return(integ, nil)
	f.provider.On("VerifyWebhookSignature", rawPayload, "sig", "whsec_test").Return(true)
	f.provider.On("ParseCallback", rawPayload).Return(cb, nil)
	f.provider.On("AcknowledgementResponse", true, "ok").Return([]byte(`{"status":"ok"}`))
	f.paymentRepo.On("FindByCheckoutRequestIDForUpdate", ctx, tenantID, "ws_CO_15012025103000").Return(p, nil)
	f.paymentRepo.On("Save", ctx, p).Return(nil)
	f.customerRepo.On("FindByID", ctx, tenantID, payer.ID).Return(payer, nil)
	f.customerRepo.On("Save", ctx, payer).Return(nil)
	f.invoiceRepo.On("FindByID", ctx, tenantID, inv.ID).Return(inv, nil)
	f.invoiceRepo.On("Save", ctx, inv).Return(nil)
	f.notifRepo.On("Save", ctx, mock.AnythingOfType("*notification.Notification")).Return(nil)
	f.apiLogRepo.On("Save", ctx, mock.AnythingOfType("*integration.APILog")).Return(nil)

	result, err := f.service.ReconcileCallback(ctx, integ.ID, rawPayload, "sig")

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.Orphaned)
	assert.False(t, result.AlreadyProcessed)
	require.NotNil(t, result.PaymentID)
	assert.Equal(t, p.ID, *result.PaymentID)

	assert.Equal(t, payment.PaymentStatusCompleted, p.Status)
	assert.Equal(t, "SBL5XKP2QT", p.ExternalReference)
	assert.Equal(t, payment.InvoiceStatusPaid, inv.Status)
	require.NotNil(t, payer.LastPaymentDate)

	// Committed callbacks are remembered so redeliveries short-circuit
	seen, err := f.dedupe.IsProcessed(ctx, "callback:"+integ.ID.String()+":ws_CO_15012025103000:0")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestSettlementService_ReconcileCallback_Failure(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()
	integ := createTestIntegration(t, tenantID)

	p := createProcessingPayment(t, tenantID, "ws_CO_15012025103000")

	rawPayload := []byte(`{"Body":{"stkCallback":{"ResultCode":1032}}}`)
	cb := &integration.CallbackResult{
		CheckoutRequestID: "ws_CO_15012025103000",
		Success:           false,
		ResultCode:        1032,
		ResultDescription: "Request cancelled by user",
	}

	f.integRepo.On("FindByID", ctx, integ.ID).Return(integ, nil)
	f.provider.On("VerifyWebhookSignature", rawPayload, "sig", "whsec_test").Return(true)
	f.provider.On("ParseCallback", rawPayload).Return(cb, nil)
	f.provider.On("AcknowledgementResponse", true, "ok").Return([]byte(`{"status":"ok"}`))
	f.paymentRepo.On("FindByCheckoutRequestIDForUpdate", ctx, tenantID, "ws_CO_15012025103000").Return(p, nil)
	f.paymentRepo.On("Save", ctx, p).Return(nil)
	f.notifRepo.On("Save", ctx, mock.AnythingOfType("*notification.Notification")).Return(nil)
	f.apiLogRepo.On("Save", ctx, mock.AnythingOfType("*integration.APILog")).Return(nil)

	result, err := f.service.ReconcileCallback(ctx, integ.ID, rawPayload, "sig")

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, payment.PaymentStatusFailed, p.Status)
	assert.Equal(t, "Request cancelled by user", p.FailureReason)
}

func TestSettlementService_ReconcileCallback_InvalidSignature(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()
	integ := createTestIntegration(t, tenantID)

	rawPayload := []byte(`{"Body":{}}`)

	f.integRepo.On("FindByID", ctx, integ.ID).Return(integ, nil)
	f.provider.On("VerifyWebhookSignature", rawPayload, "bad", "whsec_test").Return(false)
	f.provider.On("AcknowledgementResponse", false, "invalid signature").Return([]byte(`{"status":"error"}`))
	f.apiLogRepo.On("Save", ctx, mock.MatchedBy(func(log *integration.APILog) bool {
		return log.Status == integration.APILogStatusRejected
	})).Return(nil)

	result, err := f.service.ReconcileCallback(ctx, integ.ID, rawPayload, "bad")

	assert.ErrorIs(t, err, ErrInvalidSignature)
	require.NotNil(t, result)
	assert.Equal(t, []byte(`{"status":"error"}`), result.Acknowledgement)
	f.paymentRepo.AssertNotCalled(t, "FindByCheckoutRequestIDForUpdate", mock.Anything, mock.Anything, mock.Anything)
	f.apiLogRepo.AssertExpectations(t)
}

func TestSettlementService_ReconcileCallback_MalformedPayload(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()
	integ := createTestIntegration(t, tenantID)

	rawPayload := []byte(`not json`)

	f.integRepo.On("FindByID", ctx, integ.ID).Return(integ, nil)
	f.provider.On("VerifyWebhookSignature", rawPayload, "sig", "whsec_test").Return(true)
	f.provider.On("ParseCallback", rawPayload).Return(nil, integration.ErrMalformedCallback)
	f.provider.On("AcknowledgementResponse", false, "malformed payload").Return([]byte(`{"status":"error"}`))
	f.apiLogRepo.On("Save", ctx, mock.AnythingOfType("*integration.APILog")).Return(nil)

	result, err := f.service.ReconcileCallback(ctx, integ.ID, rawPayload, "sig")

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_INPUT", domainErr.Code)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.Acknowledgement)
}

func TestSettlementService_ReconcileCallback_Orphan(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()
	integ := createTestIntegration(t, tenantID)

	rawPayload := []byte(`{"Body":{"stkCallback":{"ResultCode":0}}}`)
	cb := &integration.CallbackResult{
		CheckoutRequestID: "ws_CO_unknown",
		Success:           true,
	}

	f.integRepo.On("FindByID", ctx, integ.ID).Return(integ, nil)
	f.provider.On("VerifyWebhookSignature", rawPayload, "sig", "whsec_test").Return(true)
	f.provider.On("ParseCallback", rawPayload).Return(cb, nil)
	f.provider.On("AcknowledgementResponse", true, "ok").Return([]byte(`{"status":"ok"}`))
	f.paymentRepo.On("FindByCheckoutRequestIDForUpdate", ctx, tenantID, "ws_CO_unknown").Return(nil, nil)
	f.apiLogRepo.On("Save", ctx, mock.MatchedBy(func(log *integration.APILog) bool {
		return log.Status == integration.APILogStatusOrphaned
	})).Return(nil)

	result, err := f.service.ReconcileCallback(ctx, integ.ID, rawPayload, "sig")

	require.NoError(t, err)
	assert.True(t, result.Orphaned)
	assert.False(t, result.Success)
	f.apiLogRepo.AssertExpectations(t)

	// Orphans are not deduped: the payment may be created later
	seen, err := f.dedupe.IsProcessed(ctx, "callback:"+integ.ID.String()+":ws_CO_unknown:0")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestSettlementService_ReconcileCallback_DuplicateTerminalPayment(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()
	integ := createTestIntegration(t, tenantID)

	p := createProcessingPayment(t, tenantID, "ws_CO_15012025103000")
	require.NoError(t, p.Complete("SBL5XKP2QT", decimal.NewFromInt(1500), time.Now()))

	rawPayload := []byte(`{"Body":{"stkCallback":{"ResultCode":0}}}`)
	cb := &integration.CallbackResult{
		CheckoutRequestID: "ws_CO_15012025103000",
		Success:           true,
		ReceiptNumber:     "SBL5XKP2QT",
	}

	f.integRepo.On("FindByID", ctx, integ.ID).Return(integ, nil)
	f.provider.On("VerifyWebhookSignature", rawPayload, "sig", "whsec_test").Return(true)
	f.provider.On("ParseCallback", rawPayload).Return(cb, nil)
	f.provider.On("AcknowledgementResponse", true, "ok").Return([]byte(`{"status":"ok"}`))
	f.paymentRepo.On("FindByCheckoutRequestIDForUpdate", ctx, tenantID, "ws_CO_15012025103000").Return(p, nil)

	result, err := f.service.ReconcileCallback(ctx, integ.ID, rawPayload, "sig")

	require.NoError(t, err)
	assert.True(t, result.AlreadyProcessed)
	assert.True(t, result.Success)
	f.paymentRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	f.notifRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestSettlementService_ReconcileCallback_DedupeShortCircuit(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()
	integ := createTestIntegration(t, tenantID)

	rawPayload := []byte(`{"Body":{"stkCallback":{"ResultCode":0}}}`)
	cb := &integration.CallbackResult{
		CheckoutRequestID: "ws_CO_15012025103000",
		Success:           true,
	}
	_, err := f.dedupe.MarkProcessed(ctx, "callback:"+integ.ID.String()+":ws_CO_15012025103000:0", time.Hour)
	require.NoError(t, err)

	f.integRepo.On("FindByID", ctx, integ.ID).Return(integ, nil)
	f.provider.On("VerifyWebhookSignature", rawPayload, "sig", "whsec_test").Return(true)
	f.provider.On("ParseCallback", rawPayload).Return(cb, nil)
	f.provider.On("AcknowledgementResponse", true, "ok").Return([]byte(`{"status":"ok"}`))

	result, err := f.service.ReconcileCallback(ctx, integ.ID, rawPayload, "sig")

	require.NoError(t, err)
	assert.True(t, result.AlreadyProcessed)
	f.paymentRepo.AssertNotCalled(t, "FindByCheckoutRequestIDForUpdate", mock.Anything, mock.Anything, mock.Anything)
}

func TestSettlementService_ReconcileCallback_UnknownIntegration(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	unknownID := uuid.New()

	f.integRepo.On("FindByID", ctx, unknownID).Return(nil, nil)

	_, err := f.service.ReconcileCallback(ctx, unknownID, []byte(`{}`), "sig")

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestSettlementService_ReconcileCallback_SettlesLinkedPlan(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()
	integ := createTestIntegration(t, tenantID)

	plan, err := payment.NewPaymentPlan(tenantID, uuid.New(), "School fees term 1",
		decimal.NewFromInt(4500), 3, payment.PlanFrequencyMonthly, time.Now())
	require.NoError(t, err)

	p := createProcessingPayment(t, tenantID, "ws_CO_15012025103000")
	p.LinkPaymentPlan(plan.ID)

	rawPayload := []byte(`{"Body":{"stkCallback":{"ResultCode":0}}}`)
	cb := &integration.CallbackResult{
		CheckoutRequestID: "ws_CO_15012025103000",
		Success:           true,
		ReceiptNumber:     "SBL5XKP2QT",
		Amount:            decimal.NewFromInt(1500),
	}

	f.integRepo.On("FindByID", ctx, integ.ID).Return(integ, nil)
	f.provider.On("VerifyWebhookSignature", rawPayload, "sig", "whsec_test").Return(true)
	f.provider.On("ParseCallback", rawPayload).Return(cb, nil)
	f.provider.On("AcknowledgementResponse", true, "ok").Return([]byte(`{"status":"ok"}`))
	f.paymentRepo.On("FindByCheckoutRequestIDForUpdate", ctx, tenantID, "ws_CO_15012025103000").Return(p, nil)
	f.paymentRepo.On("Save", ctx, p).Return(nil)
	f.planRepo.On("FindByID", ctx, tenantID, plan.ID).Return(plan, nil)
	f.planRepo.On("Save", ctx, plan).Return(nil)
	f.notifRepo.On("Save", ctx, mock.AnythingOfType("*notification.Notification")).Return(nil)
	f.apiLogRepo.On("Save", ctx, mock.AnythingOfType("*integration.APILog")).Return(nil)

	result, err := f.service.ReconcileCallback(ctx, integ.ID, rawPayload, "sig")

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, plan.Balance.Equal(decimal.NewFromInt(3000)))
}

// ============================================
// Reversal and Cancellation Tests
// ============================================

func TestSettlementService_ReversePayment(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()
	actor := uuid.New()

	p := createProcessingPayment(t, tenantID, "ws_CO_15012025103000")
	require.NoError(t, p.Complete("SBL5XKP2QT", decimal.NewFromInt(1500), time.Now()))
	versionBeforeReverse := p.GetVersion()

	f.paymentRepo.On("FindByID", ctx, tenantID, p.ID).Return(p, nil)
	f.paymentRepo.On("SaveWithLock", ctx, p, versionBeforeReverse).Return(nil)

	result, err := f.service.ReversePayment(ctx, tenantID, p.ID, "duplicate charge", actor)

	require.NoError(t, err)
	assert.Equal(t, payment.PaymentStatusReversed, result.Status)
	assert.True(t, result.IsReversed)
	assert.NotNil(t, result.CompletedAt)
	f.paymentRepo.AssertExpectations(t)
}

func TestSettlementService_ReversePayment_ConcurrencyConflict(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	p := createProcessingPayment(t, tenantID, "ws_CO_15012025103000")
	require.NoError(t, p.Complete("SBL5XKP2QT", decimal.NewFromInt(1500), time.Now()))
	conflict := shared.NewDomainError("CONCURRENCY_CONFLICT", "Payment was modified concurrently")

	f.paymentRepo.On("FindByID", ctx, tenantID, p.ID).Return(p, nil)
	f.paymentRepo.On("SaveWithLock", ctx, p, mock.AnythingOfType("int")).Return(conflict)

	_, err := f.service.ReversePayment(ctx, tenantID, p.ID, "duplicate charge", uuid.New())

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "CONCURRENCY_CONFLICT", domainErr.Code)
}

func TestSettlementService_CancelPayment(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	p, err := payment.NewPayment(tenantID, "PAY-ACM-20250115-00050",
		decimal.NewFromInt(100), payment.PaymentMethodMpesa, payment.PaymentKindOther,
		"254712345678", "")
	require.NoError(t, err)

	f.paymentRepo.On("FindByID", ctx, tenantID, p.ID).Return(p, nil)
	f.paymentRepo.On("SaveWithLock", ctx, p, mock.AnythingOfType("int")).Return(nil)

	result, err := f.service.CancelPayment(ctx, tenantID, p.ID)

	require.NoError(t, err)
	assert.Equal(t, payment.PaymentStatusCancelled, result.Status)
}

func TestSettlementService_CancelPayment_ProcessingRejected(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	p := createProcessingPayment(t, tenantID, "ws_CO_15012025103000")

	f.paymentRepo.On("FindByID", ctx, tenantID, p.ID).Return(p, nil)

	_, err := f.service.CancelPayment(ctx, tenantID, p.ID)

	assert.ErrorIs(t, err, payment.ErrNotCancellable)
	f.paymentRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything, mock.Anything)
}

func TestSettlementService_GetPayment_NotFound(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()
	paymentID := uuid.New()

	f.paymentRepo.On("FindByID", ctx, tenantID, paymentID).Return(nil, nil)

	_, err := f.service.GetPayment(ctx, tenantID, paymentID)
	assert.ErrorIs(t, err, payment.ErrPaymentNotFound)
}
