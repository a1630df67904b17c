package service

import (
	repository "github.com/okian/cxdiag/internal/adapters/repository"
	"github.com/okian/cxdiag/internal/domain/questionnaire"
	"github.com/okian/cxdiag/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDatabase selects the SQL driver and DSN opened by Start.
func WithDatabase(driver, dsn string) Option {
	return func(s *Service) {
		if driver != "" {
			s.driver = driver
		}
		if dsn != "" {
			s.dsn = dsn
		}
	}
}

// WithStore injects an already opened store. Start will not open one and
// Stop will not close it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
			s.ownsStore = false
		}
	}
}

// WithFullQuestionnaireItemCount sets the answered count that marks a submission complete.
func WithFullQuestionnaireItemCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fullItemCount = n
		}
	}
}

// WithAutoRecalculate toggles the completion trigger.
func WithAutoRecalculate(enabled bool) Option {
	return func(s *Service) {
		s.autoRecalculate = enabled
	}
}

// WithRecalculateOnStart queues one recalculation when the service starts.
func WithRecalculateOnStart(enabled bool) Option {
	return func(s *Service) {
		s.recalculateOnStart = enabled
	}
}

// WithTriggerQueueSize sets the number of pending recalculation slots.
func WithTriggerQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.triggerQueueSize = size
		}
	}
}

// WithMaxPageSize caps per_page on listings.
func WithMaxPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPageSize = n
		}
	}
}

// WithCatalog replaces the embedded dimension catalog.
func WithCatalog(c *questionnaire.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
