package repository

import "time"

// Option applies a configuration option to the SQLStore.
type Option func(*SQLStore)

// WithMaxOpenConns caps the connection pool. SQLite stores default to one.
func WithMaxOpenConns(n int) Option {
	return func(s *SQLStore) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SQLStore) {
		if now != nil {
			s.now = now
		}
	}
}
