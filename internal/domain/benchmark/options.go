package benchmark

import (
	"time"

	"github.com/okian/cxdiag/internal/domain/questionnaire"
	"github.com/okian/cxdiag/pkg/logger"
)

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithCatalog replaces the default dimension catalog.
func WithCatalog(c *questionnaire.Catalog) Option {
	return func(a *Aggregator) {
		if c != nil {
			a.catalog = c
		}
	}
}

// WithClock overrides the time source for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}
