package metrics

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/mfreeman451/boardwatch/pkg/kv"
	"github.com/mfreeman451/boardwatch/pkg/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestRecorder_RecordAndSnapshot(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder(kv.NewMemoryStore(), DefaultCapacity, zerolog.Nop())

	for i, v := range []float64{10, 20, 30, 40, 50, 60} {
		n, err := rec.Record(ctx, "", v)
		require.NoError(t, err)
		assert.Equal(t, min(i+1, DefaultCapacity), n)
	}

	stats, err := rec.Snapshot(ctx, models.DefaultLatencySource)
	require.NoError(t, err)
	assert.Equal(t, Stats{Latest: 60, Min: 20, Max: 60, Avg: 40, Samples: []float64{20, 30, 40, 50, 60}}, stats)
}

func TestRecorder_EmptySnapshot(t *testing.T) {
	rec := NewRecorder(kv.NewMemoryStore(), DefaultCapacity, zerolog.Nop())

	stats, err := rec.Snapshot(context.Background(), "uart-2")
	require.NoError(t, err)
	assert.Equal(t, Stats{Samples: []float64{}}, stats)
}

func TestRecorder_SourcesAreIndependent(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder(kv.NewMemoryStore(), DefaultCapacity, zerolog.Nop())

	_, err := rec.Record(ctx, "a", 5)
	require.NoError(t, err)
	_, err = rec.Record(ctx, "b", 9)
	require.NoError(t, err)

	a, err := rec.Snapshot(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []float64{5}, a.Samples)
}

func TestRecorder_RejectsInvalid(t *testing.T) {
	rec := NewRecorder(kv.NewMemoryStore(), DefaultCapacity, zerolog.Nop())

	for _, v := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := rec.Record(context.Background(), "", v)
		assert.ErrorIs(t, err, models.ErrValidation)
	}
}

func TestRecorder_ConcurrentWritersLoseNothing(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder(kv.NewMemoryStore(), 100, zerolog.Nop())

	const writers = 4

	var wg sync.WaitGroup

	var mu sync.Mutex

	recorded := 0

	for i := 0; i < writers; i++ {
		wg.Add(1)

		go func(v float64) {
			defer wg.Done()

			if _, err := rec.Record(ctx, "", v); err == nil {
				mu.Lock()
				recorded++
				mu.Unlock()
			}
		}(float64(i))
	}

	wg.Wait()

	stats, err := rec.Snapshot(ctx, "")
	require.NoError(t, err)
	assert.Len(t, stats.Samples, recorded)
}

func TestRecorder_RetriesOnConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := kv.NewMockStore(ctrl)
	existing, err := kv.NewEntity(LatencyPartition, "gateway", window{Samples: []float64{1}})
	require.NoError(t, err)

	existing.Version = 3

	gomock.InOrder(
		store.EXPECT().Get(gomock.Any(), LatencyPartition, "gateway").Return(existing, nil),
		store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(kv.ErrConflict),
		store.EXPECT().Get(gomock.Any(), LatencyPartition, "gateway").Return(existing, nil),
		store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil),
	)

	rec := NewRecorder(store, DefaultCapacity, zerolog.Nop())

	n, err := rec.Record(context.Background(), "gateway", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRecorder_UpstreamError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := kv.NewMockStore(ctrl)
	store.EXPECT().Get(gomock.Any(), LatencyPartition, "gateway").Return(nil, errors.New("connection reset"))

	rec := NewRecorder(store, DefaultCapacity, zerolog.Nop())

	_, err := rec.Snapshot(context.Background(), "gateway")
	assert.ErrorIs(t, err, models.ErrUpstream)
}
