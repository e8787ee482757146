package storage

import "errors"

// Sentinel errors returned by every backend; callers match them with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key: stored rows are immutable")
	ErrInvalidInput = errors.New("invalid input")
)
