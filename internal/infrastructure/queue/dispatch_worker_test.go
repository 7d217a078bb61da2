package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pesaflow/backend/internal/domain/notification"
)

// fakeDueRepo serves one batch of due notifications, then nothing
type fakeDueRepo struct {
	mu    sync.Mutex
	due   []*notification.Notification
	polls int
}

func (r *fakeDueRepo) Save(_ context.Context, _ *notification.Notification) error { return nil }

func (r *fakeDueRepo) FindByID(_ context.Context, _, _ uuid.UUID) (*notification.Notification, error) {
	return nil, nil
}

func (r *fakeDueRepo) FindDue(_ context.Context, _ time.Time, limit int) ([]*notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls++
	if len(r.due) == 0 {
		return nil, nil
	}
	if limit > len(r.due) {
		limit = len(r.due)
	}
	batch := r.due[:limit]
	r.due = r.due[limit:]
	return batch, nil
}

func (r *fakeDueRepo) CountByPayment(_ context.Context, _, _ uuid.UUID) (int64, error) {
	return 0, nil
}

func (r *fakeDueRepo) pollCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.polls
}

// countingProcessor records which notifications it was handed
type countingProcessor struct {
	mu        sync.Mutex
	processed map[uuid.UUID]int
	done      chan struct{}
	expect    int
}

func newCountingProcessor(expect int) *countingProcessor {
	return &countingProcessor{
		processed: make(map[uuid.UUID]int),
		done:      make(chan struct{}),
		expect:    expect,
	}
}

func (p *countingProcessor) Process(_ context.Context, n *notification.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed[n.ID]++
	if len(p.processed) == p.expect {
		close(p.done)
	}
	return nil
}

func (p *countingProcessor) count(id uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processed[id]
}

func makeDueNotifications(t *testing.T, n int) []*notification.Notification {
	t.Helper()
	due := make([]*notification.Notification, 0, n)
	for i := 0; i < n; i++ {
		notif, err := notification.NewNotification(uuid.New(), notification.ChannelSMS,
			notification.PriorityNormal, "Payment received")
		require.NoError(t, err)
		due = append(due, notif)
	}
	return due
}

func TestDispatchWorker_ProcessesDueBatch(t *testing.T) {
	due := makeDueNotifications(t, 10)
	repo := &fakeDueRepo{due: due}
	processor := newCountingProcessor(len(due))

	worker := NewDispatchWorker(repo, processor, Config{
		PollInterval: 10 * time.Millisecond,
		BatchSize:    50,
		Workers:      4,
	}, zap.NewNop())

	worker.Start(context.Background())
	defer worker.Stop()

	select {
	case <-processor.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the batch to be processed")
	}

	for _, n := range due {
		assert.Equal(t, 1, processor.count(n.ID))
	}
}

func TestDispatchWorker_PollsOnInterval(t *testing.T) {
	repo := &fakeDueRepo{}
	processor := newCountingProcessor(1)

	worker := NewDispatchWorker(repo, processor, Config{
		PollInterval: 5 * time.Millisecond,
		BatchSize:    10,
		Workers:      1,
	}, zap.NewNop())

	worker.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	worker.Stop()

	// The first drain runs immediately, then the ticker takes over
	assert.GreaterOrEqual(t, repo.pollCount(), 2)
}

func TestDispatchWorker_StopWaitsForInflight(t *testing.T) {
	due := makeDueNotifications(t, 1)
	repo := &fakeDueRepo{due: due}
	processor := newCountingProcessor(1)

	worker := NewDispatchWorker(repo, processor, Config{
		PollInterval: time.Hour,
		BatchSize:    10,
		Workers:      1,
	}, zap.NewNop())

	worker.Start(context.Background())

	select {
	case <-processor.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the first drain")
	}

	worker.Stop()
	assert.Equal(t, 1, processor.count(due[0].ID))
}

func TestDispatchWorker_StartIsIdempotent(t *testing.T) {
	repo := &fakeDueRepo{}
	worker := NewDispatchWorker(repo, newCountingProcessor(1), Config{
		PollInterval: time.Hour,
		BatchSize:    10,
		Workers:      1,
	}, zap.NewNop())

	ctx := context.Background()
	worker.Start(ctx)
	worker.Start(ctx)
	worker.Stop()
	// A second stop on a stopped worker is also safe
	worker.Stop()
}

func TestDispatchWorker_ConfigDefaults(t *testing.T) {
	worker := NewDispatchWorker(&fakeDueRepo{}, newCountingProcessor(1), Config{}, zap.NewNop())

	assert.Equal(t, DefaultConfig().PollInterval, worker.config.PollInterval)
	assert.Equal(t, DefaultConfig().BatchSize, worker.config.BatchSize)
	assert.Equal(t, DefaultConfig().Workers, worker.config.Workers)
}
