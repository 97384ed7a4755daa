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

// Package grpc pkg/grpc/server.go exposes the standard gRPC health service so
// orchestrators can probe the API process.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// ServerOption is a function type that modifies Server configuration.
type ServerOption func(*Server)

// ProbeFunc reports whether a dependency is usable.
type ProbeFunc func(ctx context.Context) error

var errInternalError = errors.New("internal error")

const (
	shutdownTimer = 5 * time.Second
	probeTimeout  = 5 * time.Second
)

// Server wraps a gRPC server with a health service.
type Server struct {
	srv         *grpc.Server
	healthCheck *health.Server
	addr        string
	logger      zerolog.Logger
	mu          sync.Mutex
	services    map[string]struct{}
	serverOpts  []grpc.ServerOption
}

// NewServer creates a new gRPC server with the health service registered.
func NewServer(addr string, logger zerolog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		addr:     addr,
		logger:   logger.With().Str("component", "grpc").Logger(),
		services: make(map[string]struct{}),
	}

	s.serverOpts = []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			s.loggingInterceptor,
			s.recoveryInterceptor,
		),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 10 * time.Minute,
			Time:              120 * time.Second,
			Timeout:           20 * time.Second,
		}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.srv = grpc.NewServer(s.serverOpts...)
	s.healthCheck = health.NewServer()
	healthpb.RegisterHealthServer(s.srv, s.healthCheck)

	return s
}

// WithServerOptions adds gRPC server options.
func WithServerOptions(opt ...grpc.ServerOption) ServerOption {
	return func(s *Server) {
		s.serverOpts = append(s.serverOpts, opt...)
	}
}

// SetServing marks a named service, "" being the whole server.
func (s *Server) SetServing(service string, serving bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}

	s.services[service] = struct{}{}
	s.healthCheck.SetServingStatus(service, status)
}

// WatchProbe runs probe every interval and mirrors its result into the
// service's health status until ctx is done.
func (s *Server) WatchProbe(ctx context.Context, service string, interval time.Duration, probe ProbeFunc) {
	check := func() {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()

		err := probe(pctx)
		if err != nil {
			s.logger.Warn().Err(err).Str("service", service).Msg("health probe failed")
		}

		s.SetServing(service, err == nil)
	}

	check()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server listening")

	if err := s.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("failed to serve: %w", err)
	}

	return nil
}

// Start listens on the configured address and serves.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	return s.Serve(lis)
}

// Stop marks every service not serving, then stops gracefully, forcing the
// stop after a short grace period.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	s.healthCheck.Shutdown()
	s.mu.Unlock()

	stopped := make(chan struct{})

	go func() {
		s.srv.GracefulStop()
		close(stopped)
	}()

	timer := time.NewTimer(shutdownTimer)
	defer timer.Stop()

	select {
	case <-stopped:
		s.logger.Info().Msg("gRPC server stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn().Msg("gRPC server shutdown canceled, forcing stop")
		s.srv.Stop()
	case <-timer.C:
		s.logger.Warn().Msg("gRPC server shutdown timed out, forcing stop")
		s.srv.Stop()
	}
}

func (s *Server) loggingInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	s.logger.Debug().Str("method", info.FullMethod).Dur("duration", time.Since(start)).Err(err).Msg("gRPC call")

	return resp, err
}

func (s *Server) recoveryInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("method", info.FullMethod).Msg("recovered from panic")

			err = errInternalError
		}
	}()

	return handler(ctx, req)
}
