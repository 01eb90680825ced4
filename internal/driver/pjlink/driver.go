// internal/driver/pjlink/driver.go
package pjlink

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"av-control-service/internal/model"
	"av-control-service/internal/session"
	"av-control-service/internal/transport"
	"av-control-service/internal/utils"
	"av-control-service/internal/wire"
	"av-control-service/pkg/driver"
)

const defaultTCPPort = 4352

// Class 1 command bodies. The codec adds the "%1" header and trailing CR.
var (
	cmdPowerOn     = wire.Command{Name: "power_on", Payload: []byte("POWR 1")}
	cmdPowerOff    = wire.Command{Name: "power_off", Payload: []byte("POWR 0")}
	cmdPowerStatus = wire.Command{Name: "power_status", Payload: []byte("POWR ?")}
	cmdInputStatus = wire.Command{Name: "input_status", Payload: []byte("INPT ?")}
	cmdInputList   = wire.Command{Name: "input_list", Payload: []byte("INST ?")}
	cmdLampInfo    = wire.Command{Name: "lamp_info", Payload: []byte("LAMP ?")}
	cmdGetErrors   = wire.Command{Name: "get_errors", Payload: []byte("ERST ?")}
	cmdGetClass    = wire.Command{Name: "get_class", Payload: []byte("CLSS ?")}
	cmdGetMuted    = wire.Command{Name: "get_muted", Payload: []byte("AVMT ?")}
	cmdGetModel    = wire.Command{Name: "get_model", Payload: []byte("NAME ?")}
	cmdMuteOn      = wire.Command{Name: "av_mute_on", Payload: []byte("AVMT 31")}
	cmdMuteOff     = wire.Command{Name: "av_mute_off", Payload: []byte("AVMT 30")}
)

// switchInputCommand builds an input switch command for an input code
func switchInputCommand(code string) wire.Command {
	return wire.Command{Name: "select_input", Payload: []byte("INPT " + code)}
}

// defaultInputs maps input names to PJLink input numbers. The first digit is
// the terminal type, the second the index within that type.
var defaultInputs = map[string]string{
	"RGB_1":     "11",
	"RGB_2":     "12",
	"RGB_3":     "13",
	"VIDEO_1":   "21",
	"VIDEO_2":   "22",
	"VIDEO_3":   "23",
	"DIGITAL_1": "31",
	"DIGITAL_2": "32",
	"DIGITAL_3": "33",
	"STORAGE_1": "41",
	"STORAGE_2": "42",
	"NETWORK":   "51",
}

// powerStates maps POWR query digits to power states
var powerStates = map[string]driver.PowerState{
	"0": driver.PowerStandby,
	"1": driver.PowerOn,
	"2": driver.PowerCooling,
	"3": driver.PowerWarming,
}

// errorNames indexes the six ERST status digits
var errorNames = [6]string{
	"Fan error",
	"Lamp error",
	"Temperature error",
	"Lamp cover open",
	"Filter warning - clean filter",
	"Other (unknown) error",
}

// ProjectorDriver implements driver.Projector for any PJLink class 1
// compatible projector over TCP.
type ProjectorDriver struct {
	device  *model.Device
	session *session.Session
	logger  *utils.DeviceLogger

	inputs map[string]string

	mutex       sync.RWMutex
	isConnected bool
}

// NewProjectorDriver creates a PJLink projector driver. PJLink is network
// control only.
func NewProjectorDriver(device *model.Device, connectionConfig interface{}, logger *zap.Logger) (driver.DeviceDriver, error) {
	if device.ConnectionType != model.ConnectionTypeTCP {
		return nil, fmt.Errorf("PJLink requires a TCP connection, got %s", device.ConnectionType)
	}

	connConfig, ok := connectionConfig.(map[string]interface{})
	if !ok {
		if device.ConnectionConfig == nil {
			return nil, fmt.Errorf("connection configuration is required")
		}
		connConfig = device.ConnectionConfig
	}
	if _, ok := connConfig["port"]; !ok {
		connConfig["port"] = defaultTCPPort
	}

	deviceLogger := utils.NewDeviceLogger(logger, device.DeviceID, string(device.DeviceType), string(device.Brand))

	tr, err := transport.New(device.ConnectionType, connConfig, deviceLogger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	// Fresh connection per command; the device sends a "PJLINK 0" banner
	// on every connect which must be consumed before the response.
	sess := session.New(tr, wire.NewPJLinkCodec(), deviceLogger.Logger,
		session.WithFreshConnection(),
		session.WithGreetingDiscard(),
		session.WithExchangeLogger(deviceLogger),
	)

	return &ProjectorDriver{
		device:  device,
		session: sess,
		logger:  deviceLogger,
		inputs:  model.MergeInputMaps(device.Inputs, defaultInputs),
	}, nil
}

// Connect verifies the projector is reachable
func (d *ProjectorDriver) Connect(ctx context.Context) error {
	if err := d.Ping(ctx); err != nil {
		d.logger.LogConnection("connect", false, err)
		return err
	}

	d.mutex.Lock()
	d.isConnected = true
	d.mutex.Unlock()

	d.logger.LogConnection("connect", true, nil)
	return nil
}

// Disconnect releases the transport
func (d *ProjectorDriver) Disconnect(ctx context.Context) error {
	d.mutex.Lock()
	d.isConnected = false
	d.mutex.Unlock()

	err := d.session.Close()
	d.logger.LogConnection("disconnect", err == nil, err)
	return err
}

// IsConnected reports whether the last connectivity check succeeded
func (d *ProjectorDriver) IsConnected() bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.isConnected
}

// GetDeviceInfo returns static device information
func (d *ProjectorDriver) GetDeviceInfo() (*driver.DeviceInfo, error) {
	return &driver.DeviceInfo{
		Brand:          d.device.Brand,
		Model:          d.device.Model,
		Capabilities:   d.GetCapabilities(),
		ConnectionType: d.device.ConnectionType,
		Location:       d.device.Location,
	}, nil
}

// GetCapabilities returns what this driver supports
func (d *ProjectorDriver) GetCapabilities() []model.Capability {
	return []model.Capability{
		model.CapabilityPower,
		model.CapabilityInputSelect,
		model.CapabilityAVMute,
		model.CapabilityLampInfo,
		model.CapabilityErrorReport,
	}
}

// PowerOn powers the projector on
func (d *ProjectorDriver) PowerOn(ctx context.Context) error {
	return d.runSimple(ctx, cmdPowerOn)
}

// PowerOff powers the projector off
func (d *ProjectorDriver) PowerOff(ctx context.Context) error {
	return d.runSimple(ctx, cmdPowerOff)
}

// PowerStatus queries the current power state. Cooling and warming are
// reported as their own transitional states rather than as errors.
func (d *ProjectorDriver) PowerStatus(ctx context.Context) (driver.PowerState, error) {
	payload, err := d.run(ctx, cmdPowerStatus)
	if err != nil {
		return driver.PowerUnknown, err
	}

	state, ok := powerStates[strings.TrimSpace(string(payload))]
	if !ok {
		return driver.PowerUnknown, fmt.Errorf("unexpected power response %q", payload)
	}
	return state, nil
}

// SelectInput switches to the named input
func (d *ProjectorDriver) SelectInput(ctx context.Context, input string) (string, error) {
	code, ok := d.inputs[input]
	if !ok {
		return "", fmt.Errorf("unknown input %q", input)
	}
	if _, err := d.run(ctx, switchInputCommand(code)); err != nil {
		return "", err
	}
	return d.nameForCode(code), nil
}

// InputStatus reports the currently selected input by name
func (d *ProjectorDriver) InputStatus(ctx context.Context) (string, error) {
	payload, err := d.run(ctx, cmdInputStatus)
	if err != nil {
		return "", err
	}

	code := strings.TrimSpace(string(payload))
	name := d.nameForCode(code)
	if name == "" {
		return "", fmt.Errorf("device reports unmapped input code %q", code)
	}
	return name, nil
}

// InputList reports the input names this projector actually has
func (d *ProjectorDriver) InputList(ctx context.Context) ([]string, error) {
	payload, err := d.run(ctx, cmdInputList)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, code := range strings.Fields(string(payload)) {
		if name := d.nameForCode(code); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// AVMute blanks or restores picture and sound
func (d *ProjectorDriver) AVMute(ctx context.Context, mute bool) error {
	cmd := cmdMuteOff
	if mute {
		cmd = cmdMuteOn
	}
	return d.runSimple(ctx, cmd)
}

// AVMuteStatus reports whether anything is muted. The first response digit
// is the mute type (video/audio/both), the second whether it is active.
func (d *ProjectorDriver) AVMuteStatus(ctx context.Context) (bool, error) {
	payload, err := d.run(ctx, cmdGetMuted)
	if err != nil {
		return false, err
	}

	data := strings.TrimSpace(string(payload))
	if len(data) < 2 {
		return false, fmt.Errorf("unexpected mute response %q", payload)
	}
	return data[1] == '1', nil
}

// LampInfo reports the first lamp's cumulative hours and lit state. The
// response is "<hours> <0|1>" pairs, one per lamp.
func (d *ProjectorDriver) LampInfo(ctx context.Context) (*driver.LampStatus, error) {
	payload, err := d.run(ctx, cmdLampInfo)
	if err != nil {
		return nil, err
	}

	fields := strings.Fields(string(payload))
	if len(fields) < 2 {
		return nil, fmt.Errorf("unexpected lamp response %q", payload)
	}

	hours, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("unparseable lamp hours %q", fields[0])
	}

	return &driver.LampStatus{
		LampNumber:       1,
		On:               fields[1] == "1",
		Usage:            time.Duration(hours) * time.Hour,
		UsageHours:       hours,
		RemainingPercent: -1,
	}, nil
}

// DeviceErrors reports active error conditions. The response is six digits,
// one per error category; 1 is a warning, 2 an error, both are reported.
func (d *ProjectorDriver) DeviceErrors(ctx context.Context) ([]string, error) {
	payload, err := d.run(ctx, cmdGetErrors)
	if err != nil {
		return nil, err
	}

	digits := strings.TrimSpace(string(payload))
	var errors []string
	for i, c := range digits {
		if i >= len(errorNames) {
			break
		}
		if c == '1' || c == '2' {
			errors = append(errors, errorNames[i])
		}
	}
	return errors, nil
}

// ModelName reports the projector name
func (d *ProjectorDriver) ModelName(ctx context.Context) (string, error) {
	payload, err := d.run(ctx, cmdGetModel)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(payload)), nil
}

// Class reports the PJLink class the device supports
func (d *ProjectorDriver) Class(ctx context.Context) (int, error) {
	payload, err := d.run(ctx, cmdGetClass)
	if err != nil {
		return 0, err
	}

	class, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil {
		return 0, fmt.Errorf("unexpected class response %q", payload)
	}
	return class, nil
}

// Ping verifies the projector answers a power query
func (d *ProjectorDriver) Ping(ctx context.Context) error {
	_, err := d.run(ctx, cmdPowerStatus)
	return err
}

// Close releases resources
func (d *ProjectorDriver) Close() error {
	return d.session.Close()
}

// nameForCode reverse-maps an input code, preferring room-specific names
// over driver defaults.
func (d *ProjectorDriver) nameForCode(code string) string {
	for name, c := range d.device.Inputs {
		if c == code {
			return name
		}
	}
	for name, c := range defaultInputs {
		if c == code {
			return name
		}
	}
	return ""
}

// run executes a command and returns the response payload
func (d *ProjectorDriver) run(ctx context.Context, cmd wire.Command) ([]byte, error) {
	outcome, err := d.session.Execute(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if !outcome.OK() {
		return nil, outcome.Err
	}
	return outcome.Payload, nil
}

// runSimple executes a command where only success matters
func (d *ProjectorDriver) runSimple(ctx context.Context, cmd wire.Command) error {
	_, err := d.run(ctx, cmd)
	return err
}
