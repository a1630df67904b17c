package worker

import (
	"github.com/okian/cxdiag/pkg/logger"
)

// Option applies a configuration option to the RecalculationWorker.
type Option func(*RecalculationWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *RecalculationWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *RecalculationWorker) {
		if l != nil {
			w.logger = l
		}
	}
}
