package domain

import "errors"

var (
	// ErrInvalidConfig is returned when a component refuses to construct or
	// start because its configuration is malformed. Never retriable.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrPoolExhausted is returned when a bounded pool has no free handle
	// within its acquire deadline.
	ErrPoolExhausted = errors.New("pool exhausted")

	// ErrUnknownSymbol is returned when a symbol id has no registry entry.
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrSignerUnavailable is returned when the external wallet signer cannot
	// be reached or does not answer within its deadline.
	ErrSignerUnavailable = errors.New("signer unavailable")

	// ErrNotRunning is returned when an operation requires a running
	// component.
	ErrNotRunning = errors.New("not running")
)
