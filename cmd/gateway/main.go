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

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/mfreeman451/boardwatch/pkg/client"
	"github.com/mfreeman451/boardwatch/pkg/config"
	"github.com/mfreeman451/boardwatch/pkg/gateway"
	"github.com/mfreeman451/boardwatch/pkg/logger"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (optional)")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatal().Err(err).Msg("failed to load .env")
	}

	var cfg config.GatewayConfig
	if err := config.LoadAndValidate(*configPath, &cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	lg, err := logger.New(os.Stdout, cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize logger")
	}

	api, err := client.New(cfg.APIURL)
	if err != nil {
		lg.Fatal().Err(err).Msg("invalid api_url")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agent := gateway.New(api, gateway.SerialOpener(cfg.SerialDevice, cfg.BaudRate), gateway.Config{
		GatewayID:           cfg.GatewayID,
		DeviceID:            cfg.DeviceID,
		BoardID:             cfg.BoardID,
		Secret:              cfg.Secret,
		HeartbeatInterval:   cfg.HeartbeatInterval,
		CommandPollInterval: cfg.CommandPollInterval,
		BoardTimeout:        cfg.BoardTimeout,
		ReconnectDelay:      cfg.ReconnectDelay,
	}, lg)

	if err := agent.Start(ctx); err != nil {
		lg.Error().Err(err).Msg("gateway agent stopped with error")
	}
}
