package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound      = errors.New("diagnostic not found")
	ErrPersistence   = errors.New("persistence failure")
	ErrInvalidDriver = errors.New("unsupported database driver")
)
