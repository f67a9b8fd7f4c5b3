package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest signals a request that failed parameter validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrParse signals an unparsable input record. Offline stages skip such records.
	ErrParse = errors.New("parse error")
	// ErrIntegrity signals that persisted artifacts disagree with each other.
	ErrIntegrity = errors.New("integrity violation")
	// ErrVectorDimMismatch signals a query or index vector of the wrong dimensionality.
	ErrVectorDimMismatch = fmt.Errorf("%w: vector dimension mismatch", ErrIntegrity)
	// ErrBackendUnavailable signals an unreachable lexical, vector, metadata or relational backend.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
)

// IntegrityError describes a failed cross-artifact check (row counts, ID contiguity, dimensions).
type IntegrityError struct {
	Check string
	Want  int64
	Got   int64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: %s: want %d, got %d", ErrIntegrity.Error(), e.Check, e.Want, e.Got)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// NewIntegrityError creates an integrity error for the named check.
func NewIntegrityError(check string, want, got int64) error {
	return &IntegrityError{Check: check, Want: want, Got: got}
}

// ParseError is a skipped input record with its position in the source stream.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: line %d: %s", ErrParse.Error(), e.Line, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }
