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

// Package gateway is the Raspberry Pi side of boardwatch: it keeps the
// gateway's heartbeat alive, relays queued commands to the STM32 board over
// its serial link and reports the board's liveness from serial activity.
package gateway

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/mfreeman451/boardwatch/pkg/client"
)

//go:generate mockgen -destination=mock_gateway.go -package=gateway github.com/mfreeman451/boardwatch/pkg/gateway API

// API is the subset of the boardwatch HTTP API the agent uses.
type API interface {
	SendHeartbeat(ctx context.Context, hb client.Heartbeat) (*client.StatusResponse, error)
	ReportGatewayStatus(ctx context.Context, gatewayID, status string) error
	ReportBoardStatus(ctx context.Context, deviceID, status string) error
	PendingCommands(ctx context.Context, deviceID string) ([]client.Command, error)
	MarkCommand(ctx context.Context, commandID, status string) error
	Ping(ctx context.Context) (time.Duration, error)
}

// Opener opens the board's serial link. The agent calls it again after the
// link fails.
type Opener func() (io.ReadWriteCloser, error)

// Config tunes the agent loops.
type Config struct {
	GatewayID           string
	DeviceID            string
	BoardID             string
	Secret              string
	HeartbeatInterval   time.Duration
	CommandPollInterval time.Duration
	BoardTimeout        time.Duration
	ReconnectDelay      time.Duration
}

const (
	statusOnline  = "online"
	statusOffline = "offline"
	commandSent   = "sent"

	heartbeatSource       = "raspberry-pi"
	shutdownTimeout       = 5 * time.Second
	defaultReconnectDelay = 5 * time.Second
)

var errSerialDown = errors.New("serial link is down")
