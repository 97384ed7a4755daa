// Package commands is the queue of small integer commands the dashboard sends
// to the STM32 board through the Pi gateway.
package commands

import (
	"time"

	"github.com/mfreeman451/boardwatch/pkg/models"
)

const (
	// Partition holds every command ever enqueued; rows are never deleted.
	Partition = "stm32-commands"

	idPrefix = "cmd-"
)

// Command is a queued value for the board.
type Command struct {
	ID        string               `json:"commandId"`
	DeviceID  string               `json:"deviceId"`
	Value     int                  `json:"value"`
	Mode      models.Mode          `json:"mode"`
	Status    models.CommandStatus `json:"status"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}
