// internal/driver/nec/commands.go
package nec

import (
	"av-control-service/internal/wire"
	"av-control-service/pkg/driver"
)

// Fixed command frames from the NEC control command manual. The constant
// frames carry their checksum byte already; only parameterized commands are
// checksummed at encode time.
var (
	cmdPowerOn    = wire.Command{Name: "power_on", Payload: []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}}
	cmdPowerOff   = wire.Command{Name: "power_off", Payload: []byte{0x02, 0x01, 0x00, 0x00, 0x00, 0x03}}
	cmdMuteOn     = wire.Command{Name: "av_mute_on", Payload: []byte{0x02, 0x10, 0x00, 0x00, 0x00, 0x12}}
	cmdMuteOff    = wire.Command{Name: "av_mute_off", Payload: []byte{0x02, 0x11, 0x00, 0x00, 0x00, 0x13}}
	cmdStatus     = wire.Command{Name: "status", Payload: []byte{0x00, 0xbf, 0x00, 0x00, 0x01, 0x02, 0xc2}}
	cmdFilterInfo = wire.Command{Name: "filter_info", Payload: []byte{0x03, 0x95, 0x00, 0x00, 0x00, 0x98}}
	cmdGetErrors  = wire.Command{Name: "get_errors", Payload: []byte{0x00, 0x88, 0x00, 0x00, 0x00, 0x88}}
	cmdGetModel   = wire.Command{Name: "get_model", Payload: []byte{0x00, 0x85, 0x00, 0x00, 0x01, 0x04, 0x8a}}
)

// switchInputCommand builds an input switch frame for the given input code
func switchInputCommand(code byte) wire.Command {
	return wire.Command{
		Name:     "select_input",
		Payload:  []byte{0x02, 0x03, 0x00, 0x00, 0x02, 0x01, code},
		Checksum: true,
	}
}

// Lamp info request parameters
const (
	lampNumber1 = 0x00
	lampNumber2 = 0x01

	lampDatumUsage = 0x01
	lampDatumLife  = 0x04
)

// lampInfoCommand builds a lamp information request
func lampInfoCommand(lamp, datum byte) wire.Command {
	return wire.Command{
		Name:     "lamp_info",
		Payload:  []byte{0x03, 0x96, 0x00, 0x00, 0x02, lamp, datum},
		Checksum: true,
	}
}

// defaultInputs maps input names to input switch codes
var defaultInputs = map[string]byte{
	"RGB_1":        0x01,
	"RGB_2":        0x02,
	"RGB_3":        0x03,
	"HDMI_1":       0x1a,
	"HDMI_2":       0x1b,
	"VIDEO_1":      0x06,
	"VIDEO_2":      0x0b,
	"VIDEO_3":      0x10,
	"DISPLAYPORT":  0xa6,
	"USB_VIEWER_A": 0x1f,
	"USB_VIEWER_B": 0x22,
	"NETWORK":      0x20,
}

// altInputs holds alternate input codes. Some models take HDMI 1 as 0x1a,
// others as 0xa1; when the primary code is rejected as out of range, the
// alternate gets one try.
var altInputs = map[string]byte{
	"HDMI_1":      0xa1,
	"HDMI_2":      0xa2,
	"DISPLAYPORT": 0x1b,
}

// powerStates maps the status response operation byte to a power state
var powerStates = map[byte]driver.PowerState{
	0x00: driver.PowerStandby, // standby (sleep)
	0x04: driver.PowerOn,
	0x05: driver.PowerCooling,
	0x06: driver.PowerStandby, // standby (error)
	0x0f: driver.PowerStandby, // standby (power saving)
	0x10: driver.PowerStandby, // network standby
}

// signalNames maps the two selection signal bytes of a status response to
// the displayed source.
var signalNames = map[[2]byte]string{
	{0x01, 0x01}: "Computer 1",
	{0x01, 0x02}: "Video",
	{0x01, 0x03}: "S-video",
	{0x01, 0x06}: "HDMI 1",
	{0x01, 0x07}: "Viewer",
	{0x01, 0x0a}: "Stereo DVI",
	{0x01, 0x20}: "DVI",
	{0x01, 0x21}: "HDMI 1",
	{0x01, 0x22}: "DisplayPort",
	{0x01, 0x23}: "SLOT",
	{0x01, 0x27}: "HDBaseT",
	{0x01, 0x28}: "SDI 1",
	{0x02, 0x01}: "Computer 2",
	{0x02, 0x06}: "HDMI 2",
	{0x02, 0x07}: "LAN",
	{0x02, 0x21}: "HDMI 2",
	{0x02, 0x22}: "DisplayPort 2",
	{0x02, 0x28}: "SDI 2",
	{0x03, 0x01}: "Computer 3",
	{0x03, 0x04}: "Component",
	{0x03, 0x06}: "SLOT",
	{0x03, 0x28}: "SDI 3",
	{0x04, 0x07}: "Viewer",
	{0x04, 0x28}: "SDI 4",
	{0x05, 0x07}: "APPS",
}

// Status response payload offsets (relative to the decoded payload)
const (
	statusOffsetPower     = 1
	statusOffsetSignal    = 3
	statusOffsetVideoMute = 6
	statusMinLength       = 7
)

// errorBit identifies one flag in the error status bitfield
type errorBit struct {
	offset  int // payload offset
	mask    byte
	message string
}

// errorBits decodes the error status request response. Unused bits are
// omitted.
var errorBits = []errorBit{
	{0, 0x80, "Lamp in replacement moratorium"},
	{0, 0x40, "Lamp or backlight not lit"},
	{0, 0x20, "Power error"},
	{0, 0x10, "Fan error"},
	{0, 0x08, "Fan error"},
	{0, 0x02, "Temperature error (bi-metallic strip)"},
	{0, 0x01, "Cover error"},

	{1, 0x80, "Refer to extended error status"},
	{1, 0x04, "Lamp 2 not lit"},
	{1, 0x02, "Formatter error"},
	{1, 0x01, "Lamp usage time exceeded the limit"},

	{2, 0x80, "Lamp 2 usage time exceeded the limit"},
	{2, 0x40, "Lamp 2 in replacement moratorium"},
	{2, 0x20, "Mirror cover error"},
	{2, 0x10, "Lamp data error"},
	{2, 0x08, "Lamp not present"},
	{2, 0x04, "Temperature error (sensor)"},
	{2, 0x02, "FPGA error"},

	{3, 0x80, "The lens is not installed properly"},
	{3, 0x40, "Iris calibration error"},
	{3, 0x20, "Ballast communication error"},
	{3, 0x08, "Foreign matter sensor error"},
	{3, 0x04, "Temperature error due to dust"},
	{3, 0x02, "Lamp 2 data error"},
	{3, 0x01, "Lamp 2 not present"},

	{8, 0x08, "System error has occurred (Formatter)"},
	{8, 0x04, "System error has occurred (Slave CPU)"},
	{8, 0x02, "The interlock switch is open"},
	{8, 0x01, "The portrait cover side is up"},
}
