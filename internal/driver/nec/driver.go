// internal/driver/nec/driver.go
package nec

import (
	"bytes"
	"context"
	"encoding/binary"
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

const (
	defaultTCPPort  = 7142
	defaultBaudRate = 38400
)

// ProjectorDriver implements driver.Projector for NEC projectors. It covers
// the shared binary command set; model differences are limited to input
// codes, which the alternate-code retry absorbs.
type ProjectorDriver struct {
	device  *model.Device
	session *session.Session
	logger  *utils.DeviceLogger

	inputs   map[string]byte
	deviceID string

	mutex       sync.RWMutex
	isConnected bool
}

// NewProjectorDriver creates an NEC projector driver
func NewProjectorDriver(device *model.Device, connectionConfig interface{}, logger *zap.Logger) (driver.DeviceDriver, error) {
	connConfig, ok := connectionConfig.(map[string]interface{})
	if !ok {
		if device.ConnectionConfig == nil {
			return nil, fmt.Errorf("connection configuration is required")
		}
		connConfig = device.ConnectionConfig
	}

	// Protocol defaults: TCP control port 7142, serial 38400 baud
	if device.ConnectionType == model.ConnectionTypeTCP {
		if _, ok := connConfig["port"]; !ok {
			connConfig["port"] = defaultTCPPort
		}
	} else if _, ok := connConfig["baud_rate"]; !ok {
		connConfig["baud_rate"] = defaultBaudRate
	}

	deviceLogger := utils.NewDeviceLogger(logger, device.DeviceID, string(device.DeviceType), string(device.Brand))

	tr, err := transport.New(device.ConnectionType, connConfig, deviceLogger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	inputs, err := mergeInputCodes(device.Inputs)
	if err != nil {
		return nil, err
	}

	// NEC projectors expect a fresh connection per command exchange
	sess := session.New(tr, wire.NewNECCodec(), deviceLogger.Logger,
		session.WithFreshConnection(),
		session.WithExchangeLogger(deviceLogger),
	)

	return &ProjectorDriver{
		device:   device,
		session:  sess,
		logger:   deviceLogger,
		inputs:   inputs,
		deviceID: device.DeviceID,
	}, nil
}

// mergeInputCodes layers config-supplied input codes over driver defaults
func mergeInputCodes(overrides map[string]string) (map[string]byte, error) {
	merged := make(map[string]byte, len(defaultInputs)+len(overrides))
	for name, code := range defaultInputs {
		merged[name] = code
	}
	for name, value := range overrides {
		code, err := parseInputCode(value)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		merged[name] = code
	}
	return merged, nil
}

// parseInputCode parses an input code from configuration. Accepts "0x1a"
// hex or plain decimal.
func parseInputCode(value string) (byte, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(value), "0x"), baseFor(value), 8)
	if err != nil {
		return 0, fmt.Errorf("invalid input code %q", value)
	}
	return byte(v), nil
}

func baseFor(value string) int {
	if strings.HasPrefix(strings.ToLower(value), "0x") {
		return 16
	}
	return 10
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

// PowerStatus queries the current power state
func (d *ProjectorDriver) PowerStatus(ctx context.Context) (driver.PowerState, error) {
	payload, err := d.runStatus(ctx)
	if err != nil {
		return driver.PowerUnknown, err
	}

	state, ok := powerStates[payload[statusOffsetPower]]
	if !ok {
		return driver.PowerUnknown, nil
	}
	return state, nil
}

// SelectInput switches to the named input. If the primary input code is
// rejected as out of range and an alternate code exists, the alternate gets
// one try before the error is reported.
func (d *ProjectorDriver) SelectInput(ctx context.Context, input string) (string, error) {
	code, ok := d.inputs[input]
	if !ok {
		return "", fmt.Errorf("unknown input %q", input)
	}

	outcome, err := d.session.Execute(ctx, switchInputCommand(code))
	if err != nil {
		return "", err
	}

	if !outcome.OK() && outcome.Err.Class == wire.ErrOutOfRange {
		alt, hasAlt := altInputs[input]
		if hasAlt && alt != code {
			d.logger.Debug("Primary input code rejected, trying alternate",
				zap.String("input", input),
				zap.Uint8("primary", code),
				zap.Uint8("alternate", alt),
			)
			outcome, err = d.session.Execute(ctx, switchInputCommand(alt))
			if err != nil {
				return "", err
			}
		}
	}

	if !outcome.OK() {
		return "", outcome.Err
	}
	return input, nil
}

// InputStatus reports the currently selected input by name. NEC reports the
// selected source with different values than input switching uses, so the
// signal type is mapped back to the closest input name.
func (d *ProjectorDriver) InputStatus(ctx context.Context) (string, error) {
	payload, err := d.runStatus(ctx)
	if err != nil {
		return "", err
	}

	signal := [2]byte{payload[statusOffsetSignal], payload[statusOffsetSignal+1]}
	name, ok := signalNames[signal]
	if !ok {
		return "", fmt.Errorf("unrecognized input signal %#02x %#02x", signal[0], signal[1])
	}

	guess := guessInputName(name, signal[0])
	if guess == "" {
		return "", fmt.Errorf("unable to determine input from signal %q", name)
	}

	// Prefer a room-specific name bound to the same code.
	code, ok := d.inputs[guess]
	if !ok {
		return "", fmt.Errorf("input %q is not mapped", guess)
	}
	for custom := range d.device.Inputs {
		if d.inputs[custom] == code {
			return custom, nil
		}
	}
	return guess, nil
}

// guessInputName maps a reported signal description to an input name
func guessInputName(signal string, group byte) string {
	switch {
	case strings.Contains(signal, "Computer"):
		return fmt.Sprintf("RGB_%d", group)
	case strings.Contains(signal, "HDMI"), strings.Contains(signal, "HDBaseT"):
		return fmt.Sprintf("HDMI_%d", group)
	case strings.Contains(signal, "DisplayPort"):
		return "DISPLAYPORT"
	case strings.Contains(signal, "S-video"), strings.Contains(signal, "Component"):
		return "VIDEO_2"
	case strings.Contains(signal, "Video"):
		return "VIDEO_1"
	case strings.Contains(signal, "LAN"):
		return "NETWORK"
	case strings.Contains(signal, "Viewer"), strings.Contains(signal, "SLOT"), strings.Contains(signal, "APPS"):
		return "USB_VIEWER_A"
	}
	return ""
}

// AVMute blanks or restores picture and sound
func (d *ProjectorDriver) AVMute(ctx context.Context, mute bool) error {
	cmd := cmdMuteOff
	if mute {
		cmd = cmdMuteOn
	}
	return d.runSimple(ctx, cmd)
}

// AVMuteStatus reports whether the picture is muted
func (d *ProjectorDriver) AVMuteStatus(ctx context.Context) (bool, error) {
	payload, err := d.runStatus(ctx)
	if err != nil {
		return false, err
	}
	return payload[statusOffsetVideoMute] == 0x01, nil
}

// LampInfo reports lamp 1 usage and estimated remaining life
func (d *ProjectorDriver) LampInfo(ctx context.Context) (*driver.LampStatus, error) {
	usage, err := d.lampDatum(ctx, lampNumber1, lampDatumUsage)
	if err != nil {
		return nil, err
	}

	status := &driver.LampStatus{
		LampNumber:       1,
		Usage:            time.Duration(usage) * time.Second,
		UsageHours:       int(usage / 3600),
		RemainingPercent: -1,
	}

	// Remaining life is a separate request and not supported everywhere.
	if life, err := d.lampDatum(ctx, lampNumber1, lampDatumLife); err == nil {
		status.RemainingPercent = int(life)
	}

	return status, nil
}

// lampDatum requests one lamp information value, a little-endian uint32
func (d *ProjectorDriver) lampDatum(ctx context.Context, lamp, datum byte) (uint32, error) {
	outcome, err := d.session.Execute(ctx, lampInfoCommand(lamp, datum))
	if err != nil {
		return 0, err
	}
	if !outcome.OK() {
		return 0, outcome.Err
	}
	if len(outcome.Payload) < 6 {
		return 0, fmt.Errorf("lamp info response too short: %d bytes", len(outcome.Payload))
	}
	return binary.LittleEndian.Uint32(outcome.Payload[2:6]), nil
}

// DeviceErrors reports active error conditions from the error status
// bitfield.
func (d *ProjectorDriver) DeviceErrors(ctx context.Context) ([]string, error) {
	outcome, err := d.session.Execute(ctx, cmdGetErrors)
	if err != nil {
		return nil, err
	}
	if !outcome.OK() {
		return nil, outcome.Err
	}
	if len(outcome.Payload) < 9 {
		return nil, fmt.Errorf("error status response too short: %d bytes", len(outcome.Payload))
	}

	var errors []string
	for _, bit := range errorBits {
		if outcome.Payload[bit.offset]&bit.mask != 0 {
			errors = append(errors, bit.message)
		}
	}
	return errors, nil
}

// ModelName reports the projector model or series name. Older models pad
// the field with junk after the first null, so decoding stops there.
func (d *ProjectorDriver) ModelName(ctx context.Context) (string, error) {
	outcome, err := d.session.Execute(ctx, cmdGetModel)
	if err != nil {
		return "", err
	}
	if !outcome.OK() {
		return "", outcome.Err
	}

	name := outcome.Payload
	if len(name) > 32 {
		name = name[:32]
	}
	if idx := bytes.IndexByte(name, 0x00); idx >= 0 {
		name = name[:idx]
	}
	return string(name), nil
}

// FilterUsage reports cumulative filter hours. Models without a filter
// usage counter reject the request.
func (d *ProjectorDriver) FilterUsage(ctx context.Context) (int, error) {
	outcome, err := d.session.Execute(ctx, cmdFilterInfo)
	if err != nil {
		return 0, err
	}
	if !outcome.OK() {
		return 0, outcome.Err
	}
	if len(outcome.Payload) < 4 {
		return 0, fmt.Errorf("filter info response too short: %d bytes", len(outcome.Payload))
	}
	seconds := binary.LittleEndian.Uint32(outcome.Payload[:4])
	return int(seconds / 3600), nil
}

// Ping verifies the projector answers a status request
func (d *ProjectorDriver) Ping(ctx context.Context) error {
	_, err := d.runStatus(ctx)
	return err
}

// Close releases resources
func (d *ProjectorDriver) Close() error {
	return d.session.Close()
}

// runSimple executes a command where only success matters
func (d *ProjectorDriver) runSimple(ctx context.Context, cmd wire.Command) error {
	outcome, err := d.session.Execute(ctx, cmd)
	if err != nil {
		return err
	}
	if !outcome.OK() {
		return outcome.Err
	}
	return nil
}

// runStatus executes the basic information request and validates length
func (d *ProjectorDriver) runStatus(ctx context.Context) ([]byte, error) {
	outcome, err := d.session.Execute(ctx, cmdStatus)
	if err != nil {
		return nil, err
	}
	if !outcome.OK() {
		return nil, outcome.Err
	}
	if len(outcome.Payload) < statusMinLength {
		return nil, fmt.Errorf("status response too short: %d bytes", len(outcome.Payload))
	}
	return outcome.Payload, nil
}
