package service

import "errors"

var (
	// ErrConfigNotFound means the global record or the queue record is absent.
	// The gate fails open on it.
	ErrConfigNotFound = errors.New("config not found")
	// ErrStoreUnavailable wraps failed or undecodable store calls.
	ErrStoreUnavailable = errors.New("queue state store unavailable")

	ErrInvalidAmount = errors.New("release amount must be positive")
	ErrInvalidConfig = errors.New("invalid config")
)
