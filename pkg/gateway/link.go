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
	"errors"
	"io"
	"time"
)

const readBufferSize = 256

// serialLoop keeps the board's serial link open. When opening or reading
// fails the board is reported offline and the link is reopened after
// ReconnectDelay.
func (a *Agent) serialLoop(ctx context.Context) {
	for {
		port, err := a.open()
		if err != nil {
			a.logger.Warn().Err(err).Dur("retry_in", a.cfg.ReconnectDelay).Msg("failed to open serial link")
			a.signal(a.linkDown)
		} else {
			a.logger.Info().Msg("serial link open")
			a.serve(ctx, port)

			if ctx.Err() == nil {
				a.logger.Warn().Dur("retry_in", a.cfg.ReconnectDelay).Msg("serial link lost")
				a.signal(a.linkDown)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(a.cfg.ReconnectDelay):
		}
	}
}

// serve reads from port until it fails or ctx is done, signalling activity
// for every chunk the board writes.
func (a *Agent) serve(ctx context.Context, port io.ReadWriteCloser) {
	a.setPort(port)

	// Closing the port is the only way to unblock a pending Read.
	stop := context.AfterFunc(ctx, func() { _ = port.Close() })

	defer func() {
		stop()
		a.setPort(nil)
		_ = port.Close()
	}()

	buf := make([]byte, readBufferSize)

	for {
		n, err := port.Read(buf)
		if n > 0 {
			a.signal(a.activity)
		}

		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				a.logger.Debug().Err(err).Msg("serial read failed")
			}

			return
		}
	}
}

func (a *Agent) setPort(port io.ReadWriteCloser) {
	a.mu.Lock()
	a.port = port
	a.mu.Unlock()
}

func (a *Agent) linkUp() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.port != nil
}

func (*Agent) signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
