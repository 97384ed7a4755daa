package models

import "time"

// DeviceStatus is the reported liveness of a gateway or board.
type DeviceStatus string

const (
	StatusOnline  DeviceStatus = "online"
	StatusOffline DeviceStatus = "offline"
	StatusUnknown DeviceStatus = "unknown" // read-side sentinel, never stored
)

// ParseDeviceStatus accepts only the values a device may report.
func ParseDeviceStatus(s string) (DeviceStatus, error) {
	switch DeviceStatus(s) {
	case StatusOnline, StatusOffline:
		return DeviceStatus(s), nil
	}

	return "", Validationf("status must be 'online' or 'offline'")
}

// Mode is the link the STM32 master uses to drive its slaves.
type Mode string

const (
	ModeSerial   Mode = "serial"
	ModeUART     Mode = "uart"
	ModeParallel Mode = "parallel"
	ModeUnknown  Mode = "unknown"
)

// ParseMode validates a mode against the closed serial/uart/parallel set.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSerial, ModeUART, ModeParallel:
		return Mode(s), nil
	}

	return "", Validationf("Mode must be 'serial', 'uart', or 'parallel'")
}

// CommandStatus is the lifecycle state of a queued command.
type CommandStatus string

const (
	CommandPending   CommandStatus = "pending"
	CommandSent      CommandStatus = "sent"
	CommandCompleted CommandStatus = "completed"
)

// Command value domain, both ends inclusive.
const (
	MinCommandValue = 0
	MaxCommandValue = 16
)

// Well-known identifiers used by the Pi bridge and the dashboard.
const (
	DefaultGatewayID     = "raspi"
	DefaultBoardID       = "stm32-master"
	DefaultCommandDevice = "stm32-main"
	DefaultLatencySource = "gateway"
)

// DefaultStatusTimeout is the canonical staleness window for both device classes.
const DefaultStatusTimeout = 90 * time.Second
