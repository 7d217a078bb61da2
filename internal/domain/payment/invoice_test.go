package payment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestInvoice(t *testing.T) *Invoice {
	inv, err := NewInvoice(uuid.New(), "INV-ACM-202501-00001", uuid.New(),
		decimal.NewFromInt(10000), decimal.NewFromInt(1600), decimal.NewFromInt(600),
		time.Now(), time.Now().Add(30*24*time.Hour))
	require.NoError(t, err)
	return inv
}

func TestNewInvoice(t *testing.T) {
	inv := createTestInvoice(t)

	assert.Equal(t, InvoiceStatusDraft, inv.Status)
	// total = subtotal + tax - discount
	assert.True(t, inv.TotalAmount.Equal(decimal.NewFromInt(11000)))
	assert.True(t, inv.BalanceDue.Equal(decimal.NewFromInt(11000)))
	assert.True(t, inv.AmountPaid.IsZero())
}

func TestNewInvoice_RejectsNegativeAmounts(t *testing.T) {
	_, err := NewInvoice(uuid.New(), "INV-ACM-202501-00002", uuid.New(),
		decimal.NewFromInt(-1), decimal.Zero, decimal.Zero,
		time.Now(), time.Now())
	assert.Error(t, err)
}

func TestNewInvoice_RejectsNonPositiveTotal(t *testing.T) {
	// Discount swallows the whole invoice
	_, err := NewInvoice(uuid.New(), "INV-ACM-202501-00003", uuid.New(),
		decimal.NewFromInt(100), decimal.Zero, decimal.NewFromInt(100),
		time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestInvoice_RecordPartialPayment(t *testing.T) {
	inv := createTestInvoice(t)

	require.NoError(t, inv.RecordPayment(decimal.NewFromInt(4000), time.Now()))

	assert.Equal(t, InvoiceStatusPartiallyPaid, inv.Status)
	assert.True(t, inv.BalanceDue.Equal(decimal.NewFromInt(7000)))
	assert.Nil(t, inv.PaidDate)
	assert.False(t, inv.IsSettled())
}

func TestInvoice_RecordFullPayment(t *testing.T) {
	inv := createTestInvoice(t)
	paidAt := time.Now()

	require.NoError(t, inv.RecordPayment(decimal.NewFromInt(4000), paidAt))
	require.NoError(t, inv.RecordPayment(decimal.NewFromInt(7000), paidAt))

	assert.Equal(t, InvoiceStatusPaid, inv.Status)
	assert.True(t, inv.BalanceDue.IsZero())
	require.NotNil(t, inv.PaidDate)
	assert.True(t, inv.IsSettled())
}

func TestInvoice_OverpaymentStillMarksPaid(t *testing.T) {
	inv := createTestInvoice(t)

	require.NoError(t, inv.RecordPayment(decimal.NewFromInt(12000), time.Now()))

	assert.Equal(t, InvoiceStatusPaid, inv.Status)
	assert.True(t, inv.BalanceDue.Equal(decimal.NewFromInt(-1000)))
}

func TestInvoice_RecordPaymentRejectsNonPositive(t *testing.T) {
	inv := createTestInvoice(t)
	assert.ErrorIs(t, inv.RecordPayment(decimal.Zero, time.Now()), ErrInvalidAmount)
}

func TestInvoice_RecordPaymentOnCancelledRejected(t *testing.T) {
	inv := createTestInvoice(t)
	require.NoError(t, inv.Cancel())
	assert.Error(t, inv.RecordPayment(decimal.NewFromInt(100), time.Now()))
}

func TestInvoice_RefreshOverdue(t *testing.T) {
	inv := createTestInvoice(t)
	afterDue := inv.DueDate.Add(24 * time.Hour)

	inv.RefreshOverdue(afterDue)
	assert.Equal(t, InvoiceStatusOverdue, inv.Status)

	// A payment pulls it back out of overdue
	require.NoError(t, inv.RecordPayment(decimal.NewFromInt(100), afterDue))
	assert.Equal(t, InvoiceStatusPartiallyPaid, inv.Status)
}

func TestInvoice_RefreshOverdueLeavesPaidAlone(t *testing.T) {
	inv := createTestInvoice(t)
	require.NoError(t, inv.RecordPayment(decimal.NewFromInt(11000), time.Now()))

	inv.RefreshOverdue(inv.DueDate.Add(24 * time.Hour))
	assert.Equal(t, InvoiceStatusPaid, inv.Status)
}

func TestInvoice_SendAndViewFlow(t *testing.T) {
	inv := createTestInvoice(t)

	require.NoError(t, inv.MarkSent())
	assert.Equal(t, InvoiceStatusSent, inv.Status)

	require.NoError(t, inv.MarkViewed())
	assert.Equal(t, InvoiceStatusViewed, inv.Status)

	assert.Error(t, inv.MarkSent())
}

func TestInvoice_CancelPaidRejected(t *testing.T) {
	inv := createTestInvoice(t)
	require.NoError(t, inv.RecordPayment(decimal.NewFromInt(11000), time.Now()))
	assert.Error(t, inv.Cancel())
}
