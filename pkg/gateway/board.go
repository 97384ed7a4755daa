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

package gateway

import (
	"context"
	"time"
)

// boardLoop reports the board online while it talks and offline once it has
// been silent for BoardTimeout or its serial link drops. Online is re-sent
// every HeartbeatInterval so the server side does not expire it.
func (a *Agent) boardLoop(ctx context.Context) {
	w := boardWatch{}

	a.reportBoard(ctx, &w, statusOffline)

	ticker := time.NewTicker(a.cfg.BoardTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.activity:
			if !a.linkUp() {
				continue // chatter from a port that has since dropped
			}

			w.lastActivity = a.now()

			if w.status != statusOnline || a.now().Sub(w.lastReport) >= a.cfg.HeartbeatInterval {
				a.reportBoard(ctx, &w, statusOnline)
			}
		case <-a.linkDown:
			if w.status != statusOffline {
				a.logger.Warn().Msg("serial link down, marking board offline")
				a.reportBoard(ctx, &w, statusOffline)
			}
		case <-ticker.C:
			if w.status == statusOnline && a.now().Sub(w.lastActivity) > a.cfg.BoardTimeout {
				a.logger.Warn().Dur("silence", a.now().Sub(w.lastActivity)).Msg("no board activity, marking offline")
				a.reportBoard(ctx, &w, statusOffline)
			}
		}
	}
}

type boardWatch struct {
	status       string
	lastActivity time.Time
	lastReport   time.Time
}

func (a *Agent) reportBoard(ctx context.Context, w *boardWatch, status string) {
	if err := a.api.ReportBoardStatus(ctx, a.cfg.BoardID, status); err != nil {
		a.logger.Warn().Err(err).Str("status", status).Msg("failed to report board status")

		return
	}

	if w.status != status {
		a.logger.Info().Str("board_id", a.cfg.BoardID).Str("status", status).Msg("board status changed")
	}

	w.status = status
	w.lastReport = a.now()
}
