// internal/model/device.go
package model

// DeviceType represents the category of AV device
type DeviceType string

const (
	DeviceTypeProjector DeviceType = "PROJECTOR"
	DeviceTypeSwitcher  DeviceType = "SWITCHER"
	DeviceTypeTV        DeviceType = "TV"
)

// DeviceBrand represents supported control protocol families
type DeviceBrand string

const (
	BrandNEC     DeviceBrand = "NEC"
	BrandPJLink  DeviceBrand = "PJLINK"
	BrandKramer  DeviceBrand = "KRAMER"
	BrandSamsung DeviceBrand = "SAMSUNG"
	BrandGeneric DeviceBrand = "GENERIC"
)

// ConnectionType represents how the device is reached
type ConnectionType string

const (
	ConnectionTypeSerial ConnectionType = "SERIAL"
	ConnectionTypeTCP    ConnectionType = "TCP"
)

// Capability represents what a device can do
type Capability string

const (
	CapabilityPower       Capability = "POWER"
	CapabilityInputSelect Capability = "INPUT_SELECT"
	CapabilityAVMute      Capability = "AV_MUTE"
	CapabilityLampInfo    Capability = "LAMP_INFO"
	CapabilityErrorReport Capability = "ERROR_REPORT"
	CapabilityMatrixRoute Capability = "MATRIX_ROUTE"
	CapabilityVolume      Capability = "VOLUME"
	CapabilityChannel     Capability = "CHANNEL"
)

// JSONObject is a free-form configuration object decoded from JSON
type JSONObject map[string]interface{}

// Device represents one physical device in a room
type Device struct {
	DeviceID         string         `json:"device_id"`
	DeviceType       DeviceType     `json:"device_type"`
	Brand            DeviceBrand    `json:"brand"`
	Model            string         `json:"model"`
	ConnectionType   ConnectionType `json:"connection_type"`
	ConnectionConfig JSONObject     `json:"connection_config"`
	Location         string         `json:"location,omitempty"`

	// Inputs maps room-specific input names to protocol input values.
	// Entries here override the driver's built-in defaults.
	Inputs map[string]string `json:"inputs,omitempty"`

	// Outputs maps output names to protocol output values (matrix switchers).
	Outputs map[string]string `json:"outputs,omitempty"`

	DefaultInput string `json:"default_input,omitempty"`
}

// MergeInputMaps layers user-supplied overrides over driver defaults.
// Override entries win for overlapping keys. The result is a fresh map
// the caller owns; neither argument is modified.
func MergeInputMaps(overrides, defaults map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(overrides))
	for name, value := range overrides {
		merged[name] = value
	}
	for name, value := range defaults {
		if _, ok := merged[name]; !ok {
			merged[name] = value
		}
	}
	return merged
}
