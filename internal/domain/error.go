package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid exec context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Catalog / fees
	ErrTierNotFound  = errors.New("pricing tier not found")
	ErrInvalidAmount = errors.New("amount out of range")

	// Payment workflow
	ErrAmountMismatch     = errors.New("transfer amount does not match payment request")
	ErrExpiredSettlement  = errors.New("payment window expired, please retry")
	ErrActivationFailure  = errors.New("entitlement activation failed")
	ErrPaymentTerminal    = errors.New("payment request is already in a terminal state")
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique payment code")
	ErrSubjectNotFound    = errors.New("subject not found")
	ErrRateLimited        = errors.New("too many requests")
	ErrLockHeld           = errors.New("lock is held by another worker")
)
