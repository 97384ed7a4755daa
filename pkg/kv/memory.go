// Package kv pkg/kv/memory.go
package kv

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entities in process memory. It exists for tests and for
// running the dashboard locally; state does not survive a restart and is not
// shared between instances.
type MemoryStore struct {
	mu         sync.RWMutex
	partitions map[string]map[string]Entity
	now        func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		partitions: make(map[string]map[string]Entity),
		now:        time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, partition, row string) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.partitions[partition][row]
	if !ok {
		return nil, ErrNotFound
	}

	c := e.clone()

	return &c, nil
}

func (s *MemoryStore) Upsert(_ context.Context, e *Entity) error {
	if err := e.validateKeys(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var version int64 = 1
	if existing, ok := s.partitions[e.PartitionKey][e.RowKey]; ok {
		version = existing.Version + 1
	}

	s.storeLocked(e, version)

	return nil
}

func (s *MemoryStore) Insert(_ context.Context, e *Entity) error {
	if err := e.validateKeys(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.partitions[e.PartitionKey][e.RowKey]; ok {
		return ErrAlreadyExists
	}

	s.storeLocked(e, 1)

	return nil
}

func (s *MemoryStore) Update(_ context.Context, e *Entity) error {
	if err := e.validateKeys(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.partitions[e.PartitionKey][e.RowKey]
	if !ok {
		return ErrNotFound
	}

	if existing.Version != e.Version {
		return ErrConflict
	}

	s.storeLocked(e, existing.Version+1)

	return nil
}

func (s *MemoryStore) List(_ context.Context, partition string) ([]Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.partitions[partition]
	out := make([]Entity, 0, len(rows))

	for _, e := range rows {
		out = append(out, e.clone())
	}

	return out, nil
}

func (*MemoryStore) Close() error {
	return nil
}

// storeLocked writes e with the given version; s.mu must be held.
func (s *MemoryStore) storeLocked(e *Entity, version int64) {
	rows, ok := s.partitions[e.PartitionKey]
	if !ok {
		rows = make(map[string]Entity)
		s.partitions[e.PartitionKey] = rows
	}

	e.Version = version
	e.Timestamp = s.now().UTC()
	rows[e.RowKey] = e.clone()
}
