package api

import (
	"time"

	"github.com/mfreeman451/boardwatch/pkg/metrics"
	"github.com/mfreeman451/boardwatch/pkg/models"
)

// Services are the domain components behind the HTTP surface.
type Services struct {
	Boards   StatusTracker
	Gateways StatusTracker
	Commands CommandQueue
	Switches SwitchMirror
	Latency  metrics.LatencyRecorder
}

// Config tunes the HTTP surface.
type Config struct {
	HeartbeatSecret string
	RateLimit       float64
	RateBurst       int
}

type statusReport struct {
	DeviceID  string   `json:"deviceId"`
	GatewayID string   `json:"gatewayId"`
	Status    string   `json:"status"`
	LatencyMs *float64 `json:"latencyMs"`
}

type heartbeatRequest struct {
	GatewayID string   `json:"gatewayId"`
	LatencyMs *float64 `json:"latencyMs"`
	Secret    string   `json:"secret"`
	Source    string   `json:"source"`
}

type enqueueRequest struct {
	Value    *float64 `json:"value"`
	Mode     string   `json:"mode"`
	DeviceID string   `json:"deviceId"`
}

type advanceRequest struct {
	CommandID string `json:"commandId"`
	Status    string `json:"status"`
}

type switchRequest struct {
	Mode  string `json:"mode"`
	Value *int   `json:"value"`
}

type latencyRequest struct {
	Latency *float64 `json:"latency"`
}

type commandView struct {
	CommandID string               `json:"commandId"`
	Value     int                  `json:"value"`
	Mode      models.Mode          `json:"mode"`
	Status    models.CommandStatus `json:"status"`
	Timestamp time.Time            `json:"timestamp"`
}

type commandList struct {
	Commands []commandView `json:"commands"`
	Count    int           `json:"count"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
