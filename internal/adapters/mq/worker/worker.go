// Package worker runs benchmark recalculations requested through the trigger queue.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/cxdiag/internal/adapters/mq/queue"
	"github.com/okian/cxdiag/internal/domain/model"
	"github.com/okian/cxdiag/pkg/logger"
)

// Recalculator rebuilds the benchmark snapshot.
type Recalculator interface {
	Recalculate(ctx context.Context, reason model.TriggerReason) (model.RecalculationSummary, error)
}

// Queue defines how the worker receives triggers.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Trigger
}

// Worker processes recalculation triggers.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is closed.
	Run(ctx context.Context)

	// Wait blocks until Run has returned.
	Wait(ctx context.Context) error

	// Shutdown stops the worker after the run in progress, dropping pending triggers.
	Shutdown(ctx context.Context) error
}

// RecalculationWorker implements Worker with a single sequential loop.
// Failed runs are logged and never retried; the next trigger starts fresh.
type RecalculationWorker struct {
	queue        Queue
	recalculator Recalculator
	name         string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

var _ Worker = (*RecalculationWorker)(nil)

// NewRecalculationWorker creates a worker with configuration options.
func NewRecalculationWorker(q Queue, r Recalculator, opts ...Option) *RecalculationWorker {
	w := &RecalculationWorker{
		queue:        q,
		recalculator: r,
		name:         "worker",
		shutdown:     make(chan struct{}),
		done:         make(chan struct{}),
		logger:       logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *RecalculationWorker) Run(ctx context.Context) {
	defer close(w.done)

	triggers := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case t, ok := <-triggers:
			if !ok {
				return
			}
			if err := w.process(ctx, t); err != nil {
				w.logger.Error(ctx, "recalculation failed", logger.String("reason", string(t.Reason)), logger.Error(err))
			}
		}
	}
}

// Wait blocks until the loop has exited or ctx expires.
func (w *RecalculationWorker) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for worker: %w", ctx.Err())
	}
}

// Shutdown signals the loop to stop and waits for it.
func (w *RecalculationWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *RecalculationWorker) process(ctx context.Context, t queue.Trigger) error {
	start := time.Now()
	summary, err := w.recalculator.Recalculate(ctx, t.Reason)
	if err != nil {
		return fmt.Errorf("recalculate after %s trigger: %w", t.Reason, err)
	}

	fields := []logger.Field{
		logger.String("reason", string(t.Reason)),
		logger.Int("total_diagnostics", summary.TotalDiagnostics),
		logger.Int("dimensions_updated", summary.DimensionsUpdated),
		logger.Duration("took", time.Since(start)),
		logger.Duration("waited", start.Sub(t.RequestedAt)),
	}
	if !summary.Success {
		w.logger.Warn(ctx, summary.Message, fields...)
		return nil
	}
	w.logger.Info(ctx, summary.Message, fields...)
	return nil
}
