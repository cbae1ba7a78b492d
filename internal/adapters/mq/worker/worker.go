// Package worker runs queued rebuild requests one at a time.
//
// A single worker owns every rebuild so replays never overlap. Requests that
// pile up while a rebuild runs are answered together by the next run.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mcronin4/scrappers-cup/internal/adapters/mq/queue"
	"github.com/mcronin4/scrappers-cup/internal/domain/rebuild"
	"github.com/mcronin4/scrappers-cup/pkg/logger"
	"github.com/mcronin4/scrappers-cup/pkg/metrics"
)

const defaultRebuildTimeout = 30 * time.Second

// Rebuilder performs one full rebuild.
type Rebuilder interface {
	Rebuild(ctx context.Context) (rebuild.Result, error)
}

// Queue defines how the worker receives requests.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Request
}

// Worker processes rebuild requests.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the running rebuild, if any.
	Shutdown(ctx context.Context) error
}

// RebuildWorker implements Worker with request coalescing.
type RebuildWorker struct {
	queue     Queue
	rebuilder Rebuilder
	name      string
	timeout   time.Duration

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewRebuildWorker creates a worker reading from q.
func NewRebuildWorker(q Queue, r Rebuilder, opts ...Option) *RebuildWorker {
	w := &RebuildWorker{
		queue:     q,
		rebuilder: r,
		name:      "rebuild-worker",
		timeout:   defaultRebuildTimeout,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("rebuild-worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts the worker loop. ctx bounds every rebuild the worker runs;
// a requester giving up does not cancel a rebuild other requesters share.
func (w *RebuildWorker) Run(ctx context.Context) {
	requests := w.queue.Dequeue(ctx)
	defer func() {
		w.reject(requests)
		close(w.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			batch := w.collect(requests, req)
			w.process(ctx, batch)
		}
	}
}

// collect drains every request already waiting behind first.
func (w *RebuildWorker) collect(requests <-chan queue.Request, first queue.Request) []queue.Request {
	batch := []queue.Request{first}
	for {
		select {
		case req, ok := <-requests:
			if !ok {
				return batch
			}
			batch = append(batch, req)
		default:
			return batch
		}
	}
}

func (w *RebuildWorker) process(ctx context.Context, batch []queue.Request) {
	now := time.Now()
	for _, req := range batch {
		metrics.RecordQueueWait(float64(now.Sub(req.EnqueuedAt).Microseconds()) / 1000)
	}
	metrics.UpdateQueueDepth(0)
	if len(batch) > 1 {
		metrics.RecordRebuildsCoalesced(len(batch) - 1)
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if w.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, w.timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	res, err := w.rebuilder.Rebuild(runCtx)
	cancel()

	if err != nil {
		metrics.RecordErrorByComponent("worker", "rebuild_failed")
		w.logger.Error(ctx, "rebuild failed",
			logger.String("worker", w.name),
			logger.Int("requests", len(batch)),
			logger.Error(err),
		)
	} else {
		w.logger.Debug(ctx, "rebuild finished",
			logger.String("worker", w.name),
			logger.Int("requests", len(batch)),
			logger.String("reason", batch[0].Reason),
			logger.Int("updated_competitors", res.UpdatedCompetitors),
			logger.Int("error_count", res.ErrorCount),
		)
	}

	for _, req := range batch {
		req.Resolve(queue.Reply{Result: res, Err: err})
	}
}

// reject answers every request still buffered once the worker stops.
func (w *RebuildWorker) reject(requests <-chan queue.Request) {
	for {
		select {
		case req, ok := <-requests:
			if !ok {
				return
			}
			req.Resolve(queue.Reply{Err: ErrStopped})
		default:
			return
		}
	}
}

// Shutdown signals the worker and waits for it to finish or ctx to end.
func (w *RebuildWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out", logger.String("worker", w.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *RebuildWorker) Done() <-chan struct{} { return w.done }
