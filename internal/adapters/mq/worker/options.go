package worker

import (
	"time"

	"github.com/mcronin4/scrappers-cup/pkg/logger"
)

// Option applies a configuration option to the RebuildWorker.
type Option func(*RebuildWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *RebuildWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *RebuildWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithTimeout bounds each rebuild run. Zero or less removes the bound.
func WithTimeout(d time.Duration) Option {
	return func(w *RebuildWorker) {
		w.timeout = d
	}
}
