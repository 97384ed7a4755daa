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

// Package lifecycle runs the HTTP API, the optional gRPC health server and
// background workers until a signal or error ends the process.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mfreeman451/boardwatch/pkg/grpc"
	"github.com/rs/zerolog"
)

const (
	ShutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
	probeInterval     = 15 * time.Second
)

// Worker is a background loop that returns when ctx is done.
type Worker func(ctx context.Context)

// ServerOptions holds configuration for creating a server.
type ServerOptions struct {
	ServiceName string
	ListenAddr  string
	Handler     http.Handler
	GRPCAddr    string // empty disables the health server
	Probe       grpc.ProbeFunc
	Workers     []Worker
	Logger      zerolog.Logger

	// Signals defaults to SIGINT and SIGTERM.
	Signals []os.Signal
}

// RunServer starts the HTTP server, the health server and workers, and blocks
// until ctx is canceled, a signal arrives, or a server fails.
func RunServer(ctx context.Context, opts *ServerOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := opts.Logger.With().Str("service", opts.ServiceName).Logger()
	logger.Info().Msg("starting service")

	errChan := make(chan error, 2)

	httpServer := &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           opts.Handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		logger.Info().Str("addr", opts.ListenAddr).Msg("HTTP server listening")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	var grpcServer *grpc.Server

	if opts.GRPCAddr != "" {
		grpcServer = grpc.NewServer(opts.GRPCAddr, logger)
		grpcServer.SetServing(opts.ServiceName, true)

		go func() {
			if err := grpcServer.Start(); err != nil {
				errChan <- fmt.Errorf("grpc server: %w", err)
			}
		}()

		if opts.Probe != nil {
			go grpcServer.WatchProbe(ctx, opts.ServiceName+".store", probeInterval, opts.Probe)
		}
	}

	var wg sync.WaitGroup

	for _, w := range opts.Workers {
		wg.Add(1)

		go func(w Worker) {
			defer wg.Done()
			w(ctx)
		}(w)
	}

	runErr := waitForShutdown(ctx, opts.Signals, errChan, logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	cancel()

	if grpcServer != nil {
		grpcServer.Stop(shutdownCtx)
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during HTTP shutdown")

		if runErr == nil {
			runErr = fmt.Errorf("shutdown error: %w", err)
		}
	}

	wg.Wait()
	logger.Info().Msg("service stopped")

	return runErr
}

func waitForShutdown(ctx context.Context, signals []os.Signal, errChan <-chan error, logger zerolog.Logger) error {
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, signals...)

	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("received signal, initiating shutdown")

		return nil
	case err := <-errChan:
		logger.Error().Err(err).Msg("server failed, initiating shutdown")

		return err
	case <-ctx.Done():
		logger.Info().Msg("context canceled, initiating shutdown")

		return nil
	}
}
