package storage

import "errors"

var (
	// ErrNotFound is returned for a missing account, transaction or chain
	// state row.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a signature is already in the
	// transaction log. The log is append-only.
	ErrDuplicateKey = errors.New("signature already recorded")

	// ErrInvalidInput rejects nil records, empty addresses and values the
	// backing column cannot hold.
	ErrInvalidInput = errors.New("invalid input")
)
