// Package models pkg/models/errors.go holds the error taxonomy shared by the
// tracker, command queue, switch mirror and latency buffer. The API layer maps
// these sentinels onto HTTP status codes.
package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed or out-of-domain input (400).
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a referenced entity that must exist but does not (404).
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a lost optimistic-concurrency race or a forbidden transition (409).
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized marks a heartbeat with a wrong shared secret (401).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConfiguration marks missing or invalid startup configuration (500, fatal).
	ErrConfiguration = errors.New("configuration error")
	// ErrUpstream marks a store failure other than not-found (500).
	ErrUpstream = errors.New("upstream error")
)

// Validationf wraps ErrValidation with a client-facing message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Upstream wraps a store error so callers can classify it with errors.Is.
func Upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstream, op, err)
}

// Message strips the sentinel prefix so the remainder can be shown to API clients.
func Message(err error) string {
	for _, sentinel := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrUnauthorized} {
		if msg, ok := strings.CutPrefix(err.Error(), sentinel.Error()+": "); ok {
			return msg
		}
	}

	return err.Error()
}
