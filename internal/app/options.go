package service

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/mcronin4/scrappers-cup/internal/adapters/repository"
	"github.com/mcronin4/scrappers-cup/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the persistence collaborator. The caller keeps ownership and
// closes it after Stop. Without this option the service uses a MemoryStore.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
			s.ownsStore = false
		}
	}
}

// WithRebuildQueueSize sets the maximum number of pending rebuild requests.
func WithRebuildQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithRebuildTimeout bounds a single rebuild run. Zero removes the bound.
func WithRebuildTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.rebuildTimeout = d
		}
	}
}

// WithIdempotencySize sets how many Idempotency-Key values are remembered.
func WithIdempotencySize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.idempotencySize = size
		}
	}
}

// WithIdempotencyTTL forgets Idempotency-Key values older than ttl. Zero keeps
// them until evicted by size.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.idempotencyTTL = ttl
		}
	}
}

// WithRebuildOnStart controls whether Start runs one rebuild.
func WithRebuildOnStart(enabled bool) Option {
	return func(s *Service) {
		s.rebuildOnStart = enabled
	}
}

// WithClock overrides the time source for contest and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides the id source for new competitors, contests and events.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithTracerProvider sets the provider used for service and rebuild spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracerProvider = tp
		}
	}
}
