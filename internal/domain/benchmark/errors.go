package benchmark

import "errors"

// Sentinel kinds for benchmark errors.
var (
	ErrNoCorpus    = errors.New("no diagnostics with responses")
	ErrPersistence = errors.New("benchmark persistence failure")
)
