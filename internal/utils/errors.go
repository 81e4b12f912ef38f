package utils

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrPatientNotQueued is returned when a transition names a patient that
	// is not in the acting view's list, for example one already dispensed.
	ErrPatientNotQueued = errors.New("patient is not in this queue")

	// ErrSubmissionInProgress is returned when a transition for the same
	// patient is already in flight.
	ErrSubmissionInProgress = errors.New("a submission for this patient is already in progress")

	// ErrSessionClosed is returned once a session has been torn down.
	ErrSessionClosed = errors.New("session has been closed")
)

// ValidationError reports missing or invalid form fields. It is produced
// locally and never reaches the network.
type ValidationError struct {
	Fields map[string]string `json:"errors"`
}

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add records a message for field, keeping the first one reported.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

// Empty reports whether no field errors were recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// AuthError means the upstream API rejected the session (401/403) or the
// credentials.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("not authorized (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("not authorized (status %d): %s", e.StatusCode, e.Message)
}

// NetworkError wraps a transport failure talking to the upstream API.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServerError reports an unexpected upstream response.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.StatusCode == 0 {
		return "server error: " + e.Message
	}
	return fmt.Sprintf("server error (status %d): %s", e.StatusCode, e.Message)
}

// IsAuthStatus reports whether an upstream status code invalidates the session.
func IsAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}
