// Package metrics pkg/metrics/buffer.go
package metrics

import (
	"math"
)

// DefaultCapacity is the number of latency samples the dashboard keeps.
const DefaultCapacity = 5

// Buffer is a fixed-capacity FIFO of latency samples. When full, adding a
// sample evicts the oldest one. It is not safe for concurrent use; the
// Recorder serializes access through the store instead.
type Buffer struct {
	points []float64
	start  int
	count  int
}

// NewBuffer creates an empty buffer holding at most size samples.
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = DefaultCapacity
	}

	return &Buffer{points: make([]float64, size)}
}

// NewBufferFrom seeds a buffer with samples ordered oldest to newest,
// keeping only the most recent size of them.
func NewBufferFrom(size int, samples []float64) *Buffer {
	b := NewBuffer(size)
	for _, s := range samples {
		b.Add(s)
	}

	return b
}

// Add appends a sample, evicting the oldest when the buffer is full.
func (b *Buffer) Add(v float64) {
	size := len(b.points)

	if b.count < size {
		b.points[(b.start+b.count)%size] = v
		b.count++

		return
	}

	b.points[b.start] = v
	b.start = (b.start + 1) % size
}

// Len returns the number of stored samples.
func (b *Buffer) Len() int {
	return b.count
}

// Samples returns a copy of the stored samples, oldest first. An empty
// buffer yields an empty, non-nil slice.
func (b *Buffer) Samples() []float64 {
	out := make([]float64, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.points[(b.start+i)%len(b.points)]
	}

	return out
}

// Snapshot computes the derived statistics over the stored samples.
func (b *Buffer) Snapshot() Stats {
	return Compute(b.Samples())
}

// Stats are derived on demand and never stored. Empty input yields zeros
// and an empty samples list rather than nulls.
type Stats struct {
	Latest  float64   `json:"latest"`
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Avg     float64   `json:"avg"`
	Samples []float64 `json:"samples"`
}

// Compute returns latest/min/max and the average rounded to the nearest integer.
func Compute(samples []float64) Stats {
	if len(samples) == 0 {
		return Stats{Samples: []float64{}}
	}

	lo, hi, sum := samples[0], samples[0], 0.0

	for _, s := range samples {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
		sum += s
	}

	return Stats{
		Latest:  samples[len(samples)-1],
		Min:     lo,
		Max:     hi,
		Avg:     math.Round(sum / float64(len(samples))),
		Samples: append([]float64(nil), samples...),
	}
}
