// pkg/driver/types.go
package driver

import (
	"time"

	"av-control-service/internal/model"
)

// PowerState represents device power status. Projectors pass through
// transitional cooling and warming phases during which most commands are
// refused.
type PowerState string

const (
	PowerOn      PowerState = "ON"
	PowerStandby PowerState = "STANDBY"
	PowerCooling PowerState = "COOLING"
	PowerWarming PowerState = "WARMING"
	PowerUnknown PowerState = "UNKNOWN"
)

// IsTransitional reports whether the device is between stable power states
func (p PowerState) IsTransitional() bool {
	return p == PowerCooling || p == PowerWarming
}

// DeviceInfo contains basic device information
type DeviceInfo struct {
	Brand           model.DeviceBrand    `json:"brand"`
	Model           string               `json:"model"`
	SerialNumber    string               `json:"serial_number,omitempty"`
	FirmwareVersion string               `json:"firmware_version,omitempty"`
	Capabilities    []model.Capability   `json:"capabilities"`
	ConnectionType  model.ConnectionType `json:"connection_type"`
	Location        string               `json:"location,omitempty"`
}

// LampStatus contains projector lamp usage information
type LampStatus struct {
	LampNumber int           `json:"lamp_number"`
	On         bool          `json:"on"`
	Usage      time.Duration `json:"usage"`
	UsageHours int           `json:"usage_hours"`

	// RemainingPercent is the estimated remaining lamp life, -1 when the
	// device does not report it.
	RemainingPercent int `json:"remaining_percent"`
}

// RouteStatus reports one matrix routing assignment
type RouteStatus struct {
	Output string `json:"output"`
	Input  string `json:"input"`
}

// OperationResult represents the result of a device operation as reported
// to upper layers.
type OperationResult struct {
	Success      bool                   `json:"success"`
	ErrorCode    string                 `json:"error_code,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
	Duration     string                 `json:"duration"`
	Timestamp    time.Time              `json:"timestamp"`
}
