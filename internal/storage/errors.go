package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when another writer holds the account.
	ErrConflict = errors.New("account is locked by another run")

	// ErrStale is returned when a guarded write finds the row changed since it was read.
	ErrStale = errors.New("record changed since it was read")

	// ErrAlreadyResolved is returned when resolving a discrepancy that is already resolved.
	ErrAlreadyResolved = errors.New("discrepancy already resolved")
)
