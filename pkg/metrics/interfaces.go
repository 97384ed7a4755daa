package metrics

import (
	"context"
)

// LatencyRecorder keeps a rolling window of latency samples per source.
type LatencyRecorder interface {
	// Record appends a sample and returns how many samples are now held.
	Record(ctx context.Context, source string, latency float64) (int, error)
	Snapshot(ctx context.Context, source string) (Stats, error)
}
