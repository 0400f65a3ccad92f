package storage

import "errors"

// Storage errors shared by all store implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an insert collides with an existing
	// key or a unique constraint.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrForeignKeyViolation is returned when the relational store rejects
	// a write referencing a non-existent foreign id. References are not
	// pre-validated; this surfaces at exec time.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable is returned when the backing store cannot be reached.
	ErrUnavailable = errors.New("store unavailable")
)
