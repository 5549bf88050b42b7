package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrInsufficientData     = errors.New("insufficient data")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrStaleData            = errors.New("stale market data")
	ErrLockHeld             = errors.New("lock already held")
	ErrOracleUnavailable    = errors.New("approval oracle unavailable")
	ErrContextDone          = errors.New("context cancelled")
)
