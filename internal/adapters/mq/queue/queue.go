// Package queue holds pending rebuild requests.
//
// Every write that changes the timeline asks for a rebuild. Requests wait in
// a bounded buffer until the rebuild worker picks them up; a full buffer
// rejects the request instead of blocking the writer.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/mcronin4/scrappers-cup/internal/domain/rebuild"
	"github.com/mcronin4/scrappers-cup/pkg/metrics"
)

const defaultQueueCapacity = 64

// Reply is the outcome delivered to a waiting requester.
type Reply struct {
	Result rebuild.Result
	Err    error
}

// Request asks for one rebuild. The zero value is not usable; use NewRequest.
type Request struct {
	Reason     string
	EnqueuedAt time.Time

	reply chan Reply
}

// NewRequest creates a request with its own reply slot.
func NewRequest(reason string) Request {
	return Request{
		Reason:     reason,
		EnqueuedAt: time.Now(),
		reply:      make(chan Reply, 1),
	}
}

// Done returns the channel the reply is delivered on.
func (r Request) Done() <-chan Reply { return r.reply }

// Resolve delivers rep to the requester. Only the first call has effect.
func (r Request) Resolve(rep Reply) {
	if r.reply == nil {
		return
	}
	select {
	case r.reply <- rep:
	default:
	}
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a request. It returns false if the queue is full or closed.
	Enqueue(ctx context.Context, r Request) bool

	// Dequeue returns the channel requests are delivered on.
	// The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Request

	// Len returns the current number of queued requests.
	Len(ctx context.Context) int

	// Close stops accepting requests and closes the dequeue channel.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	requests chan Request
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.requests = make(chan Request, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueDepth(0)
	return q
}

// Enqueue adds a request to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, r Request) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}
	if r.EnqueuedAt.IsZero() {
		r.EnqueuedAt = time.Now()
	}

	select {
	case <-ctx.Done():
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
	}

	select {
	case q.requests <- r:
		metrics.UpdateQueueDepth(len(q.requests))
		return true
	default:
		metrics.RecordQueueRejected()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns the underlying channel. Consumers may receive from it
// without blocking to drain every pending request at once.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan Request {
	return q.requests
}

// Len returns the current number of queued requests.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.requests)
	metrics.UpdateQueueDepth(size)
	return size
}

// Close closes the queue. Requests already buffered stay readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.closed = true
	close(q.requests)
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
