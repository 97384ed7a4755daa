// Package api pkg/api/server.go serves the dashboard and gateway HTTP API.
package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	httpx "github.com/mfreeman451/boardwatch/pkg/http"
	"github.com/rs/zerolog"
)

type APIServer struct {
	svc     Services
	cfg     Config
	router  *mux.Router
	allowed map[string][]string // path -> methods, for the Allow header
	logger  zerolog.Logger
}

type route struct {
	path    string
	method  string
	handler http.HandlerFunc
}

func NewAPIServer(svc Services, cfg Config, logger zerolog.Logger) *APIServer {
	s := &APIServer{
		svc:     svc,
		cfg:     cfg,
		router:  mux.NewRouter(),
		allowed: make(map[string][]string),
		logger:  logger.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()

	return s
}

func (s *APIServer) routes() []route {
	return []route{
		{"/api/stm32-status", http.MethodGet, s.getBoardStatus},
		{"/api/stm32-status", http.MethodPost, s.reportBoardStatus},
		{"/api/gateway-status", http.MethodGet, s.getGatewayStatus},
		{"/api/gateway-status", http.MethodPost, s.reportGatewayStatus},
		{"/api/gateway-heartbeat", http.MethodPost, s.gatewayHeartbeat},
		{"/api/stm32-command", http.MethodGet, s.listCommands},
		{"/api/stm32-command", http.MethodPost, s.enqueueCommand},
		{"/api/stm32-command", http.MethodPut, s.advanceCommand},
		{"/api/stm32-switch-state", http.MethodGet, s.getSwitchState},
		{"/api/stm32-switch-state", http.MethodPost, s.setSwitchState},
		{"/api/latency", http.MethodGet, s.getLatency},
		{"/api/latency", http.MethodPost, s.recordLatency},
		{"/api/main", http.MethodGet, s.getLatency},
		{"/api/main", http.MethodPost, s.recordLatency},
		{"/api/ping", http.MethodGet, s.ping},
	}
}

func (s *APIServer) setupRoutes() {
	for _, rt := range s.routes() {
		s.router.HandleFunc(rt.path, rt.handler).Methods(rt.method)
		s.allowed[rt.path] = append(s.allowed[rt.path], rt.method)
	}

	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.methodNotAllowed)
	s.router.NotFoundHandler = http.HandlerFunc(s.notFound)
}

// Handler returns the router wrapped in logging, CORS and rate limiting.
func (s *APIServer) Handler() http.Handler {
	var h http.Handler = s.router

	h = httpx.RateLimit(s.cfg.RateLimit, s.cfg.RateBurst)(h)
	h = httpx.CommonMiddleware(h)
	h = httpx.Logging(s.logger)(h)

	return h
}

func (s *APIServer) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	if methods, ok := s.allowed[r.URL.Path]; ok {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}

	s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
}

func (s *APIServer) notFound(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
}
