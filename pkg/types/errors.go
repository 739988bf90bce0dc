package types

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies every failure before it reaches the response envelope.
type ErrorKind string

const (
	KindAuth             ErrorKind = "AUTH_ERROR"
	KindNotFound         ErrorKind = "NOT_FOUND"
	KindTimeout          ErrorKind = "TIMEOUT"
	KindQueryError       ErrorKind = "QUERY_ERROR"
	KindInsufficientData ErrorKind = "INSUFFICIENT_DATA"
	KindInvalidInput     ErrorKind = "INVALID_INPUT"
	KindInternal         ErrorKind = "INTERNAL_ERROR"
)

// ObserverError is a structured, agent-facing error. The Message is safe to
// surface to the caller; collaborator internals stay out of it.
type ObserverError struct {
	Kind    ErrorKind `json:"kind"`
	Tool    string    `json:"tool,omitempty"`
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
}

func (e *ObserverError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s (%s)", e.Kind, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// NewError builds an ObserverError with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *ObserverError {
	return &ObserverError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the classification of err, unwrapping as needed.
// Unclassified errors are KindInternal.
func KindOf(err error) ErrorKind {
	var oe *ObserverError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
