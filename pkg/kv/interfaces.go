// Package kv pkg/kv/interfaces.go
package kv

import (
	"context"
)

//go:generate mockgen -destination=mock_kv.go -package=kv github.com/mfreeman451/boardwatch/pkg/kv Store

// Store is a table-like key-value store addressed by (partition, row).
// Every backend must make a single-entity write atomic; Update and Insert
// are the only conditional operations.
type Store interface {
	// Get returns ErrNotFound when no entity exists at (partition, row).
	Get(ctx context.Context, partition, row string) (*Entity, error)

	// Upsert replaces the entity unconditionally (last write wins) and sets
	// e.Version and e.Timestamp to the stored values.
	Upsert(ctx context.Context, e *Entity) error

	// Insert creates the entity and fails with ErrAlreadyExists on collision.
	Insert(ctx context.Context, e *Entity) error

	// Update replaces the entity only if the stored version equals e.Version.
	// It returns ErrNotFound when absent and ErrConflict on a version mismatch.
	Update(ctx context.Context, e *Entity) error

	// List returns every entity in the partition in no particular order.
	List(ctx context.Context, partition string) ([]Entity, error)

	Close() error
}
