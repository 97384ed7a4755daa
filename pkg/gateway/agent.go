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
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/mfreeman451/boardwatch/pkg/client"
	"github.com/rs/zerolog"
)

// Agent runs the heartbeat, command relay, serial link and board watch loops.
type Agent struct {
	api    API
	open   Opener
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time

	mu   sync.Mutex
	port io.ReadWriteCloser // nil while the link is down
	// relayed maps ids written to the board to whether the server has
	// acknowledged them as sent.
	relayed map[string]bool

	activity chan struct{}
	linkDown chan struct{}
}

func New(api API, open Opener, cfg Config, logger zerolog.Logger) *Agent {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}

	return &Agent{
		api:      api,
		open:     open,
		cfg:      cfg,
		logger:   logger.With().Str("component", "gateway").Str("gateway_id", cfg.GatewayID).Logger(),
		now:      time.Now,
		relayed:  make(map[string]bool),
		activity: make(chan struct{}, 1),
		linkDown: make(chan struct{}, 1),
	}
}

// Start runs until ctx is canceled, then reports the gateway offline.
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info().
		Dur("heartbeat_interval", a.cfg.HeartbeatInterval).
		Dur("command_poll_interval", a.cfg.CommandPollInterval).
		Str("device_id", a.cfg.DeviceID).
		Msg("starting gateway agent")

	var wg sync.WaitGroup

	loops := []func(context.Context){a.serialLoop, a.heartbeatLoop, a.commandLoop, a.boardLoop}
	for _, loop := range loops {
		wg.Add(1)

		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(loop)
	}

	wg.Wait()

	a.shutdown()

	return nil
}

func (a *Agent) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.api.ReportGatewayStatus(ctx, a.cfg.GatewayID, statusOffline); err != nil {
		a.logger.Warn().Err(err).Msg("failed to report gateway offline")

		return
	}

	a.logger.Info().Msg("gateway reported offline")
}

func (a *Agent) heartbeatLoop(ctx context.Context) {
	a.heartbeat(ctx)

	ticker := time.NewTicker(a.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.heartbeat(ctx)
		}
	}
}

func (a *Agent) heartbeat(ctx context.Context) {
	hb := client.Heartbeat{
		GatewayID: a.cfg.GatewayID,
		Secret:    a.cfg.Secret,
		Source:    heartbeatSource,
	}

	if rtt, err := a.api.Ping(ctx); err == nil {
		ms := float64(rtt.Microseconds()) / 1000
		hb.LatencyMs = &ms
	} else {
		a.logger.Debug().Err(err).Msg("ping failed, sending heartbeat without latency")
	}

	resp, err := a.api.SendHeartbeat(ctx, hb)
	if err != nil {
		if client.IsStatus(err, http.StatusUnauthorized) {
			a.logger.Error().Msg("heartbeat rejected, check the shared secret")

			return
		}

		a.logger.Warn().Err(err).Msg("heartbeat failed")

		return
	}

	a.logger.Debug().Str("status", resp.Status).Msg("heartbeat sent")
}

func (a *Agent) commandLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.CommandPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.relayCommands(ctx); err != nil {
				a.logger.Debug().Err(err).Msg("command poll failed")
			}
		}
	}
}

// relayCommands writes each new pending command to the board and marks it
// sent. Ids already written are never written again; a failed mark is retried
// on the next poll without touching the port.
func (a *Agent) relayCommands(ctx context.Context) error {
	if !a.linkUp() {
		return errSerialDown
	}

	pending, err := a.api.PendingCommands(ctx, a.cfg.DeviceID)
	if err != nil {
		return err
	}

	a.pruneRelayed(pending)

	for _, cmd := range pending {
		written, marked := a.relayState(cmd.CommandID)

		switch {
		case marked:
			continue
		case written:
			a.markSent(ctx, cmd.CommandID)
		default:
			if err := a.writeCommand(cmd); err != nil {
				return fmt.Errorf("failed to write command %s: %w", cmd.CommandID, err)
			}

			a.markSent(ctx, cmd.CommandID)
		}
	}

	return nil
}

func (a *Agent) markSent(ctx context.Context, id string) {
	switch err := a.api.MarkCommand(ctx, id, commandSent); {
	case err == nil:
		a.logger.Info().Str("command_id", id).Msg("command sent and marked as sent")
	case client.IsStatus(err, http.StatusConflict):
		a.logger.Info().Str("command_id", id).Msg("command already advanced elsewhere")
	default:
		a.logger.Warn().Err(err).Str("command_id", id).Msg("command sent but failed to mark, will retry")

		return
	}

	a.mu.Lock()
	if _, ok := a.relayed[id]; ok {
		a.relayed[id] = true
	}
	a.mu.Unlock()
}

// writeCommand writes the value to the board and records the id as written.
func (a *Agent) writeCommand(cmd client.Command) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.port == nil {
		return errSerialDown
	}

	if _, err := fmt.Fprintf(a.port, "%d\n", cmd.Value); err != nil {
		return err
	}

	a.relayed[cmd.CommandID] = false

	a.logger.Info().Int("value", cmd.Value).Str("mode", cmd.Mode).Msg("sent command to board")

	return nil
}

func (a *Agent) relayState(id string) (written, marked bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	marked, written = a.relayed[id]

	return written, marked
}

// pruneRelayed forgets ids that are no longer pending; they cannot come back.
func (a *Agent) pruneRelayed(pending []client.Command) {
	still := make(map[string]struct{}, len(pending))
	for _, cmd := range pending {
		still[cmd.CommandID] = struct{}{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for id := range a.relayed {
		if _, ok := still[id]; !ok {
			delete(a.relayed, id)
		}
	}
}
