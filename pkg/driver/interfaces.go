// pkg/driver/interfaces.go
package driver

import (
	"context"

	"av-control-service/internal/model"
)

// DeviceDriver is the interface every AV device driver implements. Input
// names are room-facing labels ("HDMI_1", "RGB_2") that each driver maps to
// protocol-level values.
type DeviceDriver interface {
	// Connection management
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	// Device information
	GetDeviceInfo() (*DeviceInfo, error)
	GetCapabilities() []model.Capability

	// Power control
	PowerOn(ctx context.Context) error
	PowerOff(ctx context.Context) error
	PowerStatus(ctx context.Context) (PowerState, error)

	// Input selection. SelectInput returns the input the device reports
	// as selected after the switch.
	SelectInput(ctx context.Context, input string) (string, error)
	InputStatus(ctx context.Context) (string, error)

	// Health
	Ping(ctx context.Context) error

	// Cleanup
	Close() error
}

// Projector extends DeviceDriver with projector-specific operations
type Projector interface {
	DeviceDriver

	// AV mute (picture and sound blanked, lamp stays lit)
	AVMute(ctx context.Context, mute bool) error
	AVMuteStatus(ctx context.Context) (bool, error)

	// Lamp usage
	LampInfo(ctx context.Context) (*LampStatus, error)

	// Active device-reported error conditions, human readable
	DeviceErrors(ctx context.Context) ([]string, error)

	// Model name as reported by the device
	ModelName(ctx context.Context) (string, error)
}

// Switcher extends DeviceDriver for presentation switchers and scalers.
// Some switchers have no power control; those return an unsupported error
// from PowerOn/PowerOff.
type Switcher interface {
	DeviceDriver

	// Video blank (the switcher analog of projector AV mute)
	AVMute(ctx context.Context, mute bool) error
}

// MatrixSwitcher extends Switcher for devices that route any input to any
// output independently.
type MatrixSwitcher interface {
	Switcher

	// Route connects an input to one output
	Route(ctx context.Context, output, input string) error

	// Routes reports the current input feeding each output
	Routes(ctx context.Context) ([]RouteStatus, error)
}

// TV extends DeviceDriver for television sets
type TV interface {
	DeviceDriver

	// SendKey emits a remote-control key press
	SendKey(ctx context.Context, key string) error

	// Volume control, level 0-100
	SetVolume(ctx context.Context, level int) error
	VolumeUp(ctx context.Context) error
	VolumeDown(ctx context.Context) error
	Mute(ctx context.Context) error

	// Channel control
	SetChannel(ctx context.Context, channel int) error
}
