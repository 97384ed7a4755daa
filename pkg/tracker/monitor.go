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

package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/mfreeman451/boardwatch/pkg/alerts"
	"github.com/mfreeman451/boardwatch/pkg/models"
)

// Monitor scans the partition every interval and alerts once for each record
// that is stored online but has gone stale. It never writes to the store.
func (t *Tracker) Monitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.checkExpired(ctx); err != nil {
				t.logger.Error().Err(err).Msg("status scan failed")
			}
		}
	}
}

func (t *Tracker) checkExpired(ctx context.Context) error {
	entities, err := t.store.List(ctx, t.partition)
	if err != nil {
		return models.Upstream("list status", err)
	}

	now := t.now()

	for i := range entities {
		var row stored
		if err := entities[i].Decode(&row); err != nil {
			t.logger.Warn().Err(err).Str("id", entities[i].RowKey).Msg("skipping undecodable status row")

			continue
		}

		if row.Status != models.StatusOnline {
			continue
		}

		age := now.Sub(row.LastUpdated)
		if age <= t.timeout || !t.markExpired(entities[i].RowKey, row.LastUpdated) {
			continue
		}

		id := entities[i].RowKey

		t.logger.Warn().Str("id", id).Dur("age", age).Msg("device stopped reporting")

		t.sendAlert(ctx, &alerts.WebhookAlert{
			Level:    alerts.Error,
			Title:    "Device Offline",
			Message:  fmt.Sprintf("%s '%s' has not reported for %s", t.label, id, age.Round(time.Second)),
			DeviceID: id,
			Details: map[string]any{
				"partition":    t.partition,
				"last_updated": row.LastUpdated.Format(time.RFC3339),
			},
		})
	}

	return nil
}

// markExpired reports whether this expiry has not been alerted yet.
func (t *Tracker) markExpired(id string, lastUpdated time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if seen, ok := t.alerted[id]; ok && seen.Equal(lastUpdated) {
		return false
	}

	t.alerted[id] = lastUpdated

	return true
}
