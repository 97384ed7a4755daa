package kv

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Status string `json:"status"`
}

func backends(t *testing.T) map[string]Store {
	t.Helper()

	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "status.db"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func TestStore_GetMissing(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(context.Background(), "stm32", "nope")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			e, err := NewEntity("stm32", "stm32-master", payload{Status: "online"})
			require.NoError(t, err)
			require.NoError(t, store.Upsert(ctx, e))
			assert.Equal(t, int64(1), e.Version)
			assert.False(t, e.Timestamp.IsZero())

			e2, err := NewEntity("stm32", "stm32-master", payload{Status: "offline"})
			require.NoError(t, err)
			require.NoError(t, store.Upsert(ctx, e2))
			assert.Equal(t, int64(2), e2.Version)

			got, err := store.Get(ctx, "stm32", "stm32-master")
			require.NoError(t, err)

			var p payload
			require.NoError(t, got.Decode(&p))
			assert.Equal(t, "offline", p.Status)
			assert.Equal(t, int64(2), got.Version)
		})
	}
}

func TestStore_InsertRejectsDuplicate(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			e, err := NewEntity("stm32-commands", "cmd-1", payload{Status: "pending"})
			require.NoError(t, err)
			require.NoError(t, store.Insert(ctx, e))
			assert.Equal(t, int64(1), e.Version)

			dup, err := NewEntity("stm32-commands", "cmd-1", payload{Status: "pending"})
			require.NoError(t, err)
			assert.ErrorIs(t, store.Insert(ctx, dup), ErrAlreadyExists)
		})
	}
}

func TestStore_UpdateIsConditional(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			e, err := NewEntity("stm32-commands", "cmd-1", payload{Status: "pending"})
			require.NoError(t, err)
			require.NoError(t, store.Insert(ctx, e))

			first, err := store.Get(ctx, "stm32-commands", "cmd-1")
			require.NoError(t, err)
			second, err := store.Get(ctx, "stm32-commands", "cmd-1")
			require.NoError(t, err)

			require.NoError(t, first.SetData(payload{Status: "sent"}))
			require.NoError(t, store.Update(ctx, first))
			assert.Equal(t, int64(2), first.Version)

			// second still carries version 1 and must lose
			require.NoError(t, second.SetData(payload{Status: "completed"}))
			assert.ErrorIs(t, store.Update(ctx, second), ErrConflict)

			got, err := store.Get(ctx, "stm32-commands", "cmd-1")
			require.NoError(t, err)

			var p payload
			require.NoError(t, got.Decode(&p))
			assert.Equal(t, "sent", p.Status)
		})
	}
}

func TestStore_UpdateMissing(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			e, err := NewEntity("stm32-commands", "ghost", payload{Status: "sent"})
			require.NoError(t, err)

			e.Version = 1
			assert.ErrorIs(t, store.Update(context.Background(), e), ErrNotFound)
		})
	}
}

func TestStore_ListScopesToPartition(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []struct{ partition, row string }{
				{"gateway", "raspi"},
				{"stm32", "a"},
				{"stm32", "b"},
			} {
				e, err := NewEntity(k.partition, k.row, payload{Status: "online"})
				require.NoError(t, err)
				require.NoError(t, store.Upsert(ctx, e))
			}

			entities, err := store.List(ctx, "stm32")
			require.NoError(t, err)

			rows := make([]string, 0, len(entities))
			for _, e := range entities {
				assert.Equal(t, "stm32", e.PartitionKey)
				rows = append(rows, e.RowKey)
			}

			sort.Strings(rows)
			assert.Equal(t, []string{"a", "b"}, rows)

			empty, err := store.List(ctx, "nothing-here")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestStore_MissingKeys(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			e := &Entity{PartitionKey: "stm32", Data: []byte(`{}`)}
			assert.ErrorIs(t, store.Upsert(context.Background(), e), ErrMissingKey)
		})
	}
}
