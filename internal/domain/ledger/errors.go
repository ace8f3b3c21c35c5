package ledger

import "errors"

var (
	// ErrInvalidAmount is returned when amount is <= 0
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrInsufficientBalance is returned when a debit exceeds the current balance
	ErrInsufficientBalance = errors.New("insufficient token balance")

	// ErrAccountNotFound is returned when the account doesn't exist
	ErrAccountNotFound = errors.New("account not found")

	// ErrDuplicateEvent is returned when a payment event references a
	// transaction that is not pending. Benign under at-least-once delivery.
	ErrDuplicateEvent = errors.New("duplicate payment event")

	// ErrDuplicateReference is returned when a pending purchase reuses an
	// external payment reference
	ErrDuplicateReference = errors.New("duplicate external reference")

	// ErrInvalidCorrelation is returned when the correlation union is malformed
	ErrInvalidCorrelation = errors.New("invalid transaction correlation")

	ErrInternal = errors.New("internal error")
)
