// Package metrics pkg/metrics/recorder.go
package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/mfreeman451/boardwatch/pkg/kv"
	"github.com/mfreeman451/boardwatch/pkg/models"
	"github.com/rs/zerolog"
)

const (
	// LatencyPartition holds one row per latency source.
	LatencyPartition = "latency"

	maxRecordAttempts = 5
)

var errTooManyConflicts = errors.New("latency buffer kept changing under concurrent writers")

// window is the stored form of a source's buffer.
type window struct {
	Samples []float64 `json:"samples"`
}

// Recorder persists each source's buffer as a single store row and appends
// with an optimistic read-modify-write, retrying when another writer wins.
type Recorder struct {
	store    kv.Store
	capacity int
	logger   zerolog.Logger
}

// NewRecorder creates a Recorder with the given buffer capacity.
func NewRecorder(store kv.Store, capacity int, logger zerolog.Logger) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Recorder{
		store:    store,
		capacity: capacity,
		logger:   logger.With().Str("component", "latency").Logger(),
	}
}

func (r *Recorder) Record(ctx context.Context, source string, latency float64) (int, error) {
	if math.IsNaN(latency) || math.IsInf(latency, 0) || latency < 0 {
		return 0, models.Validationf("Invalid latency value. Expected { latency: number }")
	}

	source = sourceOrDefault(source)

	for attempt := 0; attempt < maxRecordAttempts; attempt++ {
		n, err := r.tryRecord(ctx, source, latency)
		if errors.Is(err, kv.ErrConflict) || errors.Is(err, kv.ErrAlreadyExists) {
			r.logger.Debug().Str("source", source).Int("attempt", attempt+1).Msg("latency write conflict, retrying")

			continue
		}

		return n, err
	}

	return 0, fmt.Errorf("%w: %w", models.ErrConflict, errTooManyConflicts)
}

func (r *Recorder) tryRecord(ctx context.Context, source string, latency float64) (int, error) {
	e, err := r.store.Get(ctx, LatencyPartition, source)

	switch {
	case errors.Is(err, kv.ErrNotFound):
		buf := NewBuffer(r.capacity)
		buf.Add(latency)

		e, err = kv.NewEntity(LatencyPartition, source, window{Samples: buf.Samples()})
		if err != nil {
			return 0, err
		}

		if err := r.store.Insert(ctx, e); err != nil {
			return 0, wrapStoreErr("insert latency window", err)
		}

		return buf.Len(), nil
	case err != nil:
		return 0, models.Upstream("get latency window", err)
	}

	var w window
	if err := e.Decode(&w); err != nil {
		return 0, models.Upstream("decode latency window", err)
	}

	buf := NewBufferFrom(r.capacity, w.Samples)
	buf.Add(latency)

	if err := e.SetData(window{Samples: buf.Samples()}); err != nil {
		return 0, err
	}

	if err := r.store.Update(ctx, e); err != nil {
		return 0, wrapStoreErr("update latency window", err)
	}

	return buf.Len(), nil
}

func (r *Recorder) Snapshot(ctx context.Context, source string) (Stats, error) {
	source = sourceOrDefault(source)

	e, err := r.store.Get(ctx, LatencyPartition, source)
	if errors.Is(err, kv.ErrNotFound) {
		return Compute(nil), nil
	}

	if err != nil {
		return Stats{}, models.Upstream("get latency window", err)
	}

	var w window
	if err := e.Decode(&w); err != nil {
		return Stats{}, models.Upstream("decode latency window", err)
	}

	return NewBufferFrom(r.capacity, w.Samples).Snapshot(), nil
}

// wrapStoreErr passes concurrency errors through for the retry loop and
// classifies everything else as an upstream failure.
func wrapStoreErr(op string, err error) error {
	if errors.Is(err, kv.ErrConflict) || errors.Is(err, kv.ErrAlreadyExists) {
		return err
	}

	return models.Upstream(op, err)
}

func sourceOrDefault(source string) string {
	if source == "" {
		return models.DefaultLatencySource
	}

	return source
}
