package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/mfreeman451/boardwatch/pkg/alerts"
	"github.com/mfreeman451/boardwatch/pkg/api"
	"github.com/mfreeman451/boardwatch/pkg/commands"
	"github.com/mfreeman451/boardwatch/pkg/config"
	"github.com/mfreeman451/boardwatch/pkg/kv"
	"github.com/mfreeman451/boardwatch/pkg/lifecycle"
	"github.com/mfreeman451/boardwatch/pkg/logger"
	"github.com/mfreeman451/boardwatch/pkg/metrics"
	"github.com/mfreeman451/boardwatch/pkg/switchstate"
	"github.com/mfreeman451/boardwatch/pkg/tracker"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	serviceName = "boardwatch"
	healthRow   = "health"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (optional)")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatal().Err(err).Msg("failed to load .env")
	}

	var cfg config.ServerConfig
	if err := config.LoadAndValidate(*configPath, &cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	lg, err := logger.New(os.Stdout, cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize logger")
	}

	if err := run(context.Background(), &cfg, lg); err != nil {
		lg.Fatal().Err(err).Msg("boardwatch stopped with error")
	}
}

func run(ctx context.Context, cfg *config.ServerConfig, lg zerolog.Logger) error {
	store, err := kv.Open(ctx, cfg.ConnectionString)
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Close(); err != nil {
			lg.Error().Err(err).Msg("failed to close store")
		}
	}()

	alerter := buildAlerter(cfg.Webhooks, lg)

	boards := tracker.New(store, tracker.BoardPartition, cfg.StatusTimeout, lg,
		tracker.WithAlerter(alerter), tracker.WithLabel("Board"))
	gateways := tracker.New(store, tracker.GatewayPartition, cfg.GatewayTimeout, lg,
		tracker.WithAlerter(alerter), tracker.WithLabel("Gateway"))

	server := api.NewAPIServer(api.Services{
		Boards:   boards,
		Gateways: gateways,
		Commands: commands.NewQueue(store, lg),
		Switches: switchstate.NewMirror(store, "", lg),
		Latency:  metrics.NewRecorder(store, metrics.DefaultCapacity, lg),
	}, api.Config{
		HeartbeatSecret: cfg.HeartbeatSecret,
		RateLimit:       cfg.RateLimit,
		RateBurst:       cfg.RateBurst,
	}, lg)

	var workers []lifecycle.Worker

	if cfg.MonitorInterval > 0 {
		for _, t := range []*tracker.Tracker{boards, gateways} {
			workers = append(workers, func(ctx context.Context) { t.Monitor(ctx, cfg.MonitorInterval) })
		}
	}

	return lifecycle.RunServer(ctx, &lifecycle.ServerOptions{
		ServiceName: serviceName,
		ListenAddr:  cfg.ListenAddr,
		Handler:     server.Handler(),
		GRPCAddr:    cfg.GrpcAddr,
		Probe: func(ctx context.Context) error {
			_, err := store.Get(ctx, serviceName, healthRow)
			if errors.Is(err, kv.ErrNotFound) {
				return nil
			}

			return err
		},
		Workers: workers,
		Logger:  lg,
	})
}

func buildAlerter(hooks []alerts.WebhookConfig, lg zerolog.Logger) alerts.AlertService {
	multi := make(alerts.Multi, 0, len(hooks))

	for _, hook := range hooks {
		if !hook.Enabled {
			continue
		}

		multi = append(multi, alerts.NewWebhookAlerter(hook, lg))
	}

	lg.Info().Int("webhooks", len(multi)).Msg("alerting configured")

	return multi
}
