// Package tracker records device liveness reports and derives online/offline
// status from their age.
package tracker

import (
	"time"

	"github.com/mfreeman451/boardwatch/pkg/models"
)

// Well-known partitions, one per device class.
const (
	GatewayPartition = "gateway"
	BoardPartition   = "stm32"
)

// Record is the derived view of a device's status.
type Record struct {
	ID          string
	Status      models.DeviceStatus
	LastUpdated *time.Time // nil when the device never reported
	AgeMs       *int64
	LatencyMs   *float64
}

// stored is the persisted row payload.
type stored struct {
	Status      models.DeviceStatus `json:"status"`
	LastUpdated time.Time           `json:"lastUpdated"`
	LatencyMs   *float64            `json:"latencyMs,omitempty"`
}

func unknownRecord(id string) *Record {
	return &Record{ID: id, Status: models.StatusUnknown}
}
