package service

import (
	"errors"
	"fmt"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

var (
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("document not found")

	// ErrAlreadyProcessed is returned when approving or rejecting a processed document
	ErrAlreadyProcessed = errors.New("document already processed")

	// ErrConflict is returned when the document is not in a state that allows the action
	ErrConflict = errors.New("document state conflict")

	// ErrInvalidRequest is returned for missing or malformed input
	ErrInvalidRequest = errors.New("invalid request")
)

// AccountingWriteError reports that the accounting system refused the bill.
// The document keeps its needs_review status and approval can be retried.
type AccountingWriteError struct {
	DocumentID string
	Err        error
}

func (e *AccountingWriteError) Error() string {
	return fmt.Sprintf("accounting write failed, document %s remains in review: %v", e.DocumentID, e.Err)
}

func (e *AccountingWriteError) Unwrap() error {
	return e.Err
}
