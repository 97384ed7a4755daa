/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package metrics

import (
	"context"
	"testing"

	"github.com/mfreeman451/boardwatch/pkg/kv"
	"github.com/rs/zerolog"
)

// BenchmarkBuffer benchmarks the in-memory ring.
func BenchmarkBuffer(b *testing.B) {
	buffer := NewBuffer(DefaultCapacity)

	b.Run("Add", func(b *testing.B) {
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			buffer.Add(float64(i))
		}
	})

	b.Run("Snapshot", func(b *testing.B) {
		for i := 0; i < DefaultCapacity; i++ {
			buffer.Add(float64(i))
		}

		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			_ = buffer.Snapshot()
		}
	})
}

// BenchmarkRecorder benchmarks the store-backed read-modify-write path.
func BenchmarkRecorder(b *testing.B) {
	rec := NewRecorder(kv.NewMemoryStore(), DefaultCapacity, zerolog.Nop())
	ctx := context.Background()

	b.Run("Record", func(b *testing.B) {
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			_, _ = rec.Record(ctx, "bench", float64(i%100))
		}
	})

	b.Run("Snapshot", func(b *testing.B) {
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			_, _ = rec.Snapshot(ctx, "bench")
		}
	})
}
