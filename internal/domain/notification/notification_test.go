package notification

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestNotification(t *testing.T) *Notification {
	n, err := NewNotification(uuid.New(), ChannelSMS, PriorityHigh, "Payment received")
	require.NoError(t, err)
	return n
}

func TestNewNotification(t *testing.T) {
	n := createTestNotification(t)

	assert.Equal(t, StatusPending, n.Status)
	assert.Equal(t, 0, n.DeliveryAttempts)
	assert.Nil(t, n.NextAttemptAt)
}

func TestNewNotification_Validation(t *testing.T) {
	_, err := NewNotification(uuid.New(), Channel("PIGEON"), PriorityNormal, "hi")
	assert.Error(t, err)

	_, err = NewNotification(uuid.New(), ChannelSMS, PriorityNormal, "")
	assert.Error(t, err)
}

func TestNewNotification_DefaultsUnknownPriority(t *testing.T) {
	n, err := NewNotification(uuid.New(), ChannelSMS, Priority(""), "hi")
	require.NoError(t, err)
	assert.Equal(t, PriorityNormal, n.Priority)
}

func TestNotification_MarkSent(t *testing.T) {
	n := createTestNotification(t)
	at := time.Now()

	require.NoError(t, n.MarkSent("SM123", at))
	assert.Equal(t, StatusSent, n.Status)
	assert.Equal(t, "SM123", n.ProviderMessageID)
	assert.Nil(t, n.NextAttemptAt)

	assert.Error(t, n.MarkSent("SM124", at))
}

func TestNotification_DeliveryAndReadFlow(t *testing.T) {
	n := createTestNotification(t)
	at := time.Now()

	require.NoError(t, n.MarkSent("SM123", at))
	require.NoError(t, n.MarkDelivered(at))
	assert.Equal(t, StatusDelivered, n.Status)

	require.NoError(t, n.MarkRead(at))
	assert.Equal(t, StatusRead, n.Status)
}

func TestNotification_MarkDeliveredRequiresSent(t *testing.T) {
	n := createTestNotification(t)
	assert.Error(t, n.MarkDelivered(time.Now()))
}

// ============================================
// Retry Tests
// ============================================

func TestNotification_LinearBackoff(t *testing.T) {
	n := createTestNotification(t)
	at := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

	n.MarkFailed("gateway timeout", at)
	assert.Equal(t, 1, n.DeliveryAttempts)
	require.NotNil(t, n.NextAttemptAt)
	assert.Equal(t, at.Add(5*time.Minute), *n.NextAttemptAt)
	assert.True(t, n.CanRetry())

	n.MarkFailed("gateway timeout", at)
	require.NotNil(t, n.NextAttemptAt)
	assert.Equal(t, at.Add(10*time.Minute), *n.NextAttemptAt)

	// Third failure exhausts the budget
	n.MarkFailed("gateway timeout", at)
	assert.Equal(t, 3, n.DeliveryAttempts)
	assert.Nil(t, n.NextAttemptAt)
	assert.False(t, n.CanRetry())
}

func TestNotification_MarkFailedPermanent(t *testing.T) {
	n := createTestNotification(t)

	n.MarkFailedPermanent("recipient has disabled the SMS channel")
	assert.Equal(t, StatusFailed, n.Status)
	assert.False(t, n.CanRetry())
	assert.Nil(t, n.NextAttemptAt)
}

func TestNotification_SentIsTerminal(t *testing.T) {
	assert.True(t, StatusSent.IsTerminal())
	assert.True(t, StatusDelivered.IsTerminal())
	assert.True(t, StatusRead.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusFailed.IsTerminal())
}

func TestNotification_ScheduleAndReschedule(t *testing.T) {
	n := createTestNotification(t)
	at := time.Now().Add(time.Hour)

	n.Schedule(at)
	require.NotNil(t, n.ScheduledFor)
	require.NotNil(t, n.NextAttemptAt)
	assert.Equal(t, at, *n.NextAttemptAt)

	// Quiet-hours reschedule moves the attempt without counting a failure
	later := at.Add(2 * time.Hour)
	n.Reschedule(later)
	assert.Equal(t, later, *n.NextAttemptAt)
	assert.Equal(t, 0, n.DeliveryAttempts)
}
