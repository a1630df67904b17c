// Package queue holds pending benchmark recalculation triggers.
//
// The queue is bounded and never blocks producers. When it is full a new
// trigger is coalesced into the pending one, since that pending run will
// read the corpus after the new diagnostic was stored anyway.
package queue

import (
	"context"
	"sync"

	"github.com/okian/cxdiag/internal/domain/model"
	"github.com/okian/cxdiag/pkg/metrics"
)

const defaultQueueCapacity = 1

// Trigger is the payload type flowing through the queue.
type Trigger = model.Trigger

// Result reports what Enqueue did with a trigger.
type Result int

// Enqueue results.
const (
	Enqueued Result = iota
	Coalesced
	Rejected
)

func (r Result) String() string {
	switch r {
	case Enqueued:
		return "enqueued"
	case Coalesced:
		return "coalesced"
	default:
		return "rejected"
	}
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a trigger, coalescing it when the queue is full.
	// Rejected is returned once the queue is closed or ctx is done.
	Enqueue(ctx context.Context, t Trigger) Result

	// Dequeue returns the channel triggers are delivered on.
	// The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Trigger

	// Len returns the current number of pending triggers.
	Len(ctx context.Context) int

	// Close stops accepting triggers and closes the dequeue channel.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	triggers chan Trigger
	capacity int
	mu       sync.RWMutex
	closed   bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.triggers = make(chan Trigger, q.capacity)
	metrics.UpdateTriggerQueueSize(0)
	return q
}

// Enqueue adds a trigger without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Trigger) Result {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed || ctx.Err() != nil {
		return Rejected
	}

	select {
	case q.triggers <- t:
		metrics.RecordTriggerEnqueued()
		metrics.UpdateTriggerQueueSize(len(q.triggers))
		return Enqueued
	default:
		metrics.RecordTriggerCoalesced()
		return Coalesced
	}
}

// Dequeue returns the trigger channel.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan Trigger {
	return q.triggers
}

// Len returns the current number of pending triggers.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.triggers)
	metrics.UpdateTriggerQueueSize(size)
	return size
}

// Capacity returns the number of pending slots.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Close stops the queue. Pending triggers are still delivered to consumers.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.triggers)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
