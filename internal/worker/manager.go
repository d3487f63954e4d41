package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"scoop_backend/internal/queue"
)

const (
	// DefaultWorkerCount is the default number of worker goroutines
	DefaultWorkerCount = 2

	// DefaultBatchSize is the number of messages to read per batch
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long to block waiting for new messages
	DefaultBlockTimeout = 5 * time.Second

	// DefaultHandleTimeout bounds a single delivery
	DefaultHandleTimeout = 15 * time.Second
)

// EventHandler processes one decoded push event.
type EventHandler interface {
	HandleEvent(ctx context.Context, event queue.PushEvent) error
}

// Manager orchestrates worker goroutines that consume the push stream.
type Manager struct {
	consumer      queue.Consumer
	handler       EventHandler
	logger        *zap.Logger
	workerCount   int
	batchSize     int64
	blockTime     time.Duration
	handleTimeout time.Duration

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// ManagerConfig holds configuration for the worker manager.
type ManagerConfig struct {
	WorkerCount   int           // Number of worker goroutines
	BatchSize     int64         // Messages per read
	BlockTimeout  time.Duration // Block time for XREADGROUP
	HandleTimeout time.Duration // Per-message delivery deadline
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		WorkerCount:   DefaultWorkerCount,
		BatchSize:     DefaultBatchSize,
		BlockTimeout:  DefaultBlockTimeout,
		HandleTimeout: DefaultHandleTimeout,
	}
}

// NewManager creates a new worker manager.
func NewManager(consumer queue.Consumer, handler EventHandler, cfg ManagerConfig, logger *zap.Logger) *Manager {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = DefaultBlockTimeout
	}
	if cfg.HandleTimeout <= 0 {
		cfg.HandleTimeout = DefaultHandleTimeout
	}

	return &Manager{
		consumer:      consumer,
		handler:       handler,
		logger:        logger.Named("worker_manager"),
		workerCount:   cfg.WorkerCount,
		batchSize:     cfg.BatchSize,
		blockTime:     cfg.BlockTimeout,
		handleTimeout: cfg.HandleTimeout,
	}
}

// Start begins the worker goroutines.
// Call Stop() to gracefully shut down.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.consumer.EnsureGroup(m.ctx, queue.StreamPush, queue.ConsumerGroupPush); err != nil {
		m.cancel()
		return err
	}

	m.logger.Info("starting workers",
		zap.Int("workers", m.workerCount),
		zap.String("stream", queue.StreamPush),
		zap.String("group", queue.ConsumerGroupPush),
	)

	for i := range m.workerCount {
		workerID := i + 1
		m.wg.Add(1)
		go m.runWorker(workerID, consumerNameForWorker(workerID))
	}
	return nil
}

// Stop gracefully shuts down all workers.
// Blocks until all workers have finished.
func (m *Manager) Stop() {
	m.logger.Info("stopping workers")
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("all workers stopped")
}

// runWorker is the main loop for a single worker goroutine.
func (m *Manager) runWorker(workerID int, consumerName string) {
	defer m.wg.Done()
	logger := m.logger.With(zap.Int("worker", workerID), zap.String("consumer", consumerName))
	logger.Debug("worker started")

	// Crash recovery: messages delivered to this consumer name but never acked.
	m.processPending(logger, consumerName)

	for {
		select {
		case <-m.ctx.Done():
			logger.Debug("worker shutting down")
			return
		default:
			m.processMessages(logger, consumerName)
		}
	}
}

// processPending handles messages that were delivered but not acknowledged.
func (m *Manager) processPending(logger *zap.Logger, consumerName string) {
	for {
		messages, err := m.consumer.ReadPending(m.ctx, queue.StreamPush, queue.ConsumerGroupPush, consumerName, m.batchSize)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Warn("read pending failed", zap.Error(err))
			}
			return
		}
		if len(messages) == 0 {
			return
		}

		logger.Info("replaying pending messages", zap.Int("count", len(messages)))
		m.handleMessages(logger, messages)
	}
}

// processMessages reads and handles a batch of messages.
func (m *Manager) processMessages(logger *zap.Logger, consumerName string) {
	messages, err := m.consumer.Read(
		m.ctx,
		queue.StreamPush,
		queue.ConsumerGroupPush,
		consumerName,
		m.batchSize,
		m.blockTime,
	)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		logger.Warn("read failed", zap.Error(err))
		select {
		case <-m.ctx.Done():
		case <-time.After(time.Second):
		}
		return
	}

	if len(messages) == 0 {
		return
	}
	m.handleMessages(logger, messages)
}

// handleMessages processes a batch of messages and acknowledges them.
func (m *Manager) handleMessages(logger *zap.Logger, messages []queue.Message) {
	for _, msg := range messages {
		ctx, cancel := context.WithTimeout(m.ctx, m.handleTimeout)
		err := m.handler.HandleEvent(ctx, msg.Event)
		cancel()
		if err != nil {
			// Push is best-effort: ack anyway so a dead token can't wedge the stream.
			logger.Warn("handle event failed", zap.String("msg_id", msg.ID), zap.String("type", msg.Event.Type), zap.Error(err))
		}

		if err := m.consumer.Ack(m.ctx, queue.StreamPush, queue.ConsumerGroupPush, msg.ID); err != nil {
			logger.Warn("ack failed", zap.String("msg_id", msg.ID), zap.Error(err))
		}
	}
}

// consumerNameForWorker generates a unique consumer name for each worker.
func consumerNameForWorker(workerID int) string {
	return fmt.Sprintf("worker-%d", workerID)
}
