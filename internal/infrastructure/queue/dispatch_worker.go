package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pesaflow/backend/internal/domain/notification"
)

// Processor handles one due notification. The application dispatch service
// satisfies this.
type Processor interface {
	Process(ctx context.Context, n *notification.Notification) error
}

// Config holds dispatch worker settings
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	Workers      int
}

// DefaultConfig returns sensible worker defaults
func DefaultConfig() Config {
	return Config{
		PollInterval: 10 * time.Second,
		BatchSize:    50,
		Workers:      4,
	}
}

// DispatchWorker polls the notifications table for due rows and fans them out
// to a bounded set of delivery goroutines. The table itself is the queue, so
// restarts lose nothing.
type DispatchWorker struct {
	repo      notification.NotificationRepository
	processor Processor
	config    Config
	logger    *zap.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewDispatchWorker creates a dispatch worker
func NewDispatchWorker(
	repo notification.NotificationRepository,
	processor Processor,
	config Config,
	logger *zap.Logger,
) *DispatchWorker {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}
	return &DispatchWorker{
		repo:      repo,
		processor: processor,
		config:    config,
		logger:    logger,
	}
}

// Start begins polling. It is a no-op if the worker is already running.
func (w *DispatchWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.run(runCtx)

	w.logger.Info("notification dispatch worker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize),
		zap.Int("workers", w.config.Workers),
	)
}

// Stop halts polling and waits for in-flight deliveries to finish
func (w *DispatchWorker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	cancel := w.cancel
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
	w.logger.Info("notification dispatch worker stopped")
}

func (w *DispatchWorker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	// Drain anything already due before the first tick
	w.processBatch(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processBatch(ctx)
		}
	}
}

func (w *DispatchWorker) processBatch(ctx context.Context) {
	due, err := w.repo.FindDue(ctx, time.Now(), w.config.BatchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("failed to load due notifications", zap.Error(err))
		}
		return
	}
	if len(due) == 0 {
		return
	}

	jobs := make(chan *notification.Notification)
	var batch sync.WaitGroup
	for i := 0; i < w.config.Workers; i++ {
		batch.Add(1)
		go func() {
			defer batch.Done()
			for n := range jobs {
				if err := w.processor.Process(ctx, n); err != nil && ctx.Err() == nil {
					w.logger.Error("notification processing failed",
						zap.String("notification_id", n.ID.String()),
						zap.Error(err))
				}
			}
		}()
	}

	for _, n := range due {
		select {
		case <-ctx.Done():
			close(jobs)
			batch.Wait()
			return
		case jobs <- n:
		}
	}
	close(jobs)
	batch.Wait()
}
