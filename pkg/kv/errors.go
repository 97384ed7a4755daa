// Package kv pkg/kv/errors.go provides errors for the kv package.
package kv

import "errors"

var (
	// Lookup and concurrency errors.

	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrConflict      = errors.New("entity version mismatch")

	// Connection errors.

	ErrMissingConnectionString = errors.New("store connection string is not set")
	ErrUnsupportedScheme       = errors.New("unsupported store scheme")
	ErrInvalidConnectionString = errors.New("invalid store connection string")

	// Operation errors.

	ErrFailedOpenDB      = errors.New("failed to open database")
	ErrFailedToInit      = errors.New("failed to initialize schema")
	ErrFailedToEnableWAL = errors.New("failed to enable WAL mode")
	ErrFailedToQuery     = errors.New("failed to query")
	ErrFailedToScan      = errors.New("failed to scan")
	ErrFailedToWrite     = errors.New("failed to write")
	ErrFailedToEncode    = errors.New("failed to encode entity")
	ErrFailedToDecode    = errors.New("failed to decode entity")
	ErrMissingKey        = errors.New("partition and row keys are required")
)
