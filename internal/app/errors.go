package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrEmptyResponses = errors.New("no answers to save")
	ErrInvalidTenant  = errors.New("tenant id must not be empty")
	ErrNotFound       = errors.New("diagnostic not found")
	ErrNoBenchmark    = errors.New("no benchmark data available")
	ErrNotStarted     = errors.New("service not started")
)
