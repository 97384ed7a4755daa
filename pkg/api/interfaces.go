// Package api pkg/api/interfaces.go
package api

import (
	"context"

	"github.com/mfreeman451/boardwatch/pkg/commands"
	"github.com/mfreeman451/boardwatch/pkg/switchstate"
	"github.com/mfreeman451/boardwatch/pkg/tracker"
)

// StatusTracker records and derives device liveness for one device class.
type StatusTracker interface {
	Report(ctx context.Context, id, status string, latencyMs *float64) (*tracker.Record, error)
	Heartbeat(ctx context.Context, id string, latencyMs *float64) (*tracker.Record, error)
	Status(ctx context.Context, id string) (*tracker.Record, error)
}

// CommandQueue is the board command queue.
type CommandQueue interface {
	Enqueue(ctx context.Context, deviceID string, value int, mode string) (*commands.Command, error)
	ListPending(ctx context.Context) ([]commands.Command, error)
	Advance(ctx context.Context, commandID, status string) (*commands.Command, error)
}

// SwitchMirror holds the last reported switch configuration.
type SwitchMirror interface {
	Set(ctx context.Context, mode string, value *int) (*switchstate.State, error)
	Get(ctx context.Context) (*switchstate.State, error)
}
