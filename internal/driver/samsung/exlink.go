// internal/driver/samsung/exlink.go
package samsung

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"av-control-service/internal/model"
	"av-control-service/internal/session"
	"av-control-service/internal/transport"
	"av-control-service/internal/utils"
	"av-control-service/internal/wire"
	"av-control-service/pkg/driver"
)

const defaultBaudRate = 9600

// Ex-Link command prefixes. The codec appends the checksum byte. Modern TVs
// need Samsung's proprietary USB serial adapter; ordinary USB UARTs will not
// work. Older sets expose a 3.5mm service jack instead.
var (
	cmdPowerOn     = wire.Command{Name: "power_on", Payload: []byte{0x08, 0x22, 0x00, 0x00, 0x00, 0x02}}
	cmdPowerOff    = wire.Command{Name: "power_off", Payload: []byte{0x08, 0x22, 0x00, 0x00, 0x00, 0x01}}
	cmdPowerToggle = wire.Command{Name: "power_toggle", Payload: []byte{0x08, 0x22, 0x00, 0x00, 0x00, 0x00}}

	// Input select takes a two byte terminal code appended to this prefix.
	selectInputPrefix = []byte{0x08, 0x22, 0x0a, 0x00}

	// Volume set takes the level as the final byte.
	setVolumePrefix = []byte{0x08, 0x22, 0x01, 0x00, 0x00}

	// Channel set takes the channel number as the final byte.
	setChannelPrefix = []byte{0x08, 0x22, 0x04, 0x00, 0x00}
)

// keyCommands maps remote key names to their frames
var keyCommands = map[string]wire.Command{
	"VOLUME_UP":        {Name: "key_volume_up", Payload: []byte{0x08, 0x22, 0x01, 0x00, 0x01, 0x00}},
	"VOLUME_DOWN":      {Name: "key_volume_down", Payload: []byte{0x08, 0x22, 0x01, 0x00, 0x02, 0x00}},
	"MUTE":             {Name: "key_mute", Payload: []byte{0x08, 0x22, 0x02, 0x00, 0x00, 0x00}},
	"MENU":             {Name: "key_menu", Payload: []byte{0x08, 0x22, 0x0d, 0x00, 0x00, 0x1a}},
	"ENTER":            {Name: "key_enter", Payload: []byte{0x08, 0x22, 0x0d, 0x00, 0x00, 0x68}},
	"RETURN":           {Name: "key_return", Payload: []byte{0x08, 0x22, 0x0d, 0x00, 0x00, 0x58}},
	"EXIT":             {Name: "key_exit", Payload: []byte{0x08, 0x22, 0x0d, 0x00, 0x00, 0x2d}},
	"UP":               {Name: "key_up", Payload: []byte{0x08, 0x22, 0x0d, 0x00, 0x00, 0x60}},
	"DOWN":             {Name: "key_down", Payload: []byte{0x08, 0x22, 0x0d, 0x00, 0x00, 0x61}},
	"LEFT":             {Name: "key_left", Payload: []byte{0x08, 0x22, 0x0d, 0x00, 0x00, 0x65}},
	"RIGHT":            {Name: "key_right", Payload: []byte{0x08, 0x22, 0x0d, 0x00, 0x00, 0x62}},
	"CHANNEL_UP":       {Name: "key_channel_up", Payload: []byte{0x08, 0x22, 0x03, 0x00, 0x01, 0x00}},
	"CHANNEL_DOWN":     {Name: "key_channel_down", Payload: []byte{0x08, 0x22, 0x03, 0x00, 0x02, 0x00}},
	"PREVIOUS_CHANNEL": {Name: "key_previous_channel", Payload: []byte{0x08, 0x22, 0x0d, 0x00, 0x00, 0x13}},
	"SMART_HUB":        {Name: "key_smart_hub", Payload: []byte{0x08, 0x22, 0x0d, 0x00, 0x00, 0x8c}},
	"NETFLIX":          {Name: "key_netflix", Payload: []byte{0x08, 0x22, 0x0d, 0x00, 0x00, 0xf3}},
	"AMAZON":           {Name: "key_amazon", Payload: []byte{0x08, 0x22, 0x0d, 0x00, 0x00, 0xf4}},
}

// defaultInputs maps input names to two byte terminal codes
var defaultInputs = map[string][]byte{
	"TV":          {0x00, 0x00},
	"VIDEO_1":     {0x01, 0x00},
	"VIDEO_2":     {0x01, 0x01},
	"VIDEO_3":     {0x01, 0x02},
	"SVIDEO_1":    {0x02, 0x00},
	"SVIDEO_2":    {0x02, 0x01},
	"SVIDEO_3":    {0x02, 0x02},
	"COMPONENT_1": {0x03, 0x00},
	"COMPONENT_2": {0x03, 0x01},
	"COMPONENT_3": {0x03, 0x02},
	"RGB_1":       {0x04, 0x00},
	"RGB_2":       {0x04, 0x01},
	"RGB_3":       {0x04, 0x02},
	"HDMI_1":      {0x05, 0x00},
	"HDMI_2":      {0x05, 0x01},
	"HDMI_3":      {0x05, 0x02},
	"HDMI_4":      {0x05, 0x03},
}

// ExLinkDriver implements driver.TV for Samsung sets controlled over the
// Ex-Link RS-232 port. The protocol is one-way in practice: the TV answers
// with undocumented bytes, so responses are logged and commands are assumed
// to have landed. Selecting an input the panel does not have shows
// "Not available" on screen and reverts, with no error on the wire.
type ExLinkDriver struct {
	device  *model.Device
	session *session.Session
	logger  *utils.DeviceLogger

	inputs map[string][]byte

	mutex       sync.RWMutex
	isConnected bool
}

// NewExLinkDriver creates an Ex-Link TV driver. Ex-Link is serial only.
func NewExLinkDriver(device *model.Device, connectionConfig interface{}, logger *zap.Logger) (driver.DeviceDriver, error) {
	if device.ConnectionType != model.ConnectionTypeSerial {
		return nil, fmt.Errorf("Ex-Link requires a serial connection, got %s", device.ConnectionType)
	}

	connConfig, ok := connectionConfig.(map[string]interface{})
	if !ok {
		if device.ConnectionConfig == nil {
			return nil, fmt.Errorf("connection configuration is required")
		}
		connConfig = device.ConnectionConfig
	}
	if _, ok := connConfig["baud_rate"]; !ok {
		connConfig["baud_rate"] = defaultBaudRate
	}

	deviceLogger := utils.NewDeviceLogger(logger, device.DeviceID, string(device.DeviceType), string(device.Brand))

	tr, err := transport.New(device.ConnectionType, connConfig, deviceLogger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	sess := session.New(tr, wire.NewExLinkCodec(), deviceLogger.Logger,
		session.WithFreshConnection(),
		session.WithExchangeLogger(deviceLogger),
	)

	inputs, err := mergeInputCodes(device.Inputs)
	if err != nil {
		return nil, err
	}

	return &ExLinkDriver{
		device:  device,
		session: sess,
		logger:  deviceLogger,
		inputs:  inputs,
	}, nil
}

// Connect verifies the serial device can be opened
func (d *ExLinkDriver) Connect(ctx context.Context) error {
	tr := d.session.Transport()
	if !tr.IsOpen() {
		if err := tr.Open(ctx); err != nil {
			d.logger.LogConnection("connect", false, err)
			return err
		}
		tr.Close()
	}

	d.mutex.Lock()
	d.isConnected = true
	d.mutex.Unlock()

	d.logger.LogConnection("connect", true, nil)
	return nil
}

// Disconnect releases the transport
func (d *ExLinkDriver) Disconnect(ctx context.Context) error {
	d.mutex.Lock()
	d.isConnected = false
	d.mutex.Unlock()

	err := d.session.Close()
	d.logger.LogConnection("disconnect", err == nil, err)
	return err
}

// IsConnected reports whether the last connectivity check succeeded
func (d *ExLinkDriver) IsConnected() bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.isConnected
}

// GetDeviceInfo returns static device information
func (d *ExLinkDriver) GetDeviceInfo() (*driver.DeviceInfo, error) {
	return &driver.DeviceInfo{
		Brand:          d.device.Brand,
		Model:          d.device.Model,
		Capabilities:   d.GetCapabilities(),
		ConnectionType: d.device.ConnectionType,
		Location:       d.device.Location,
	}, nil
}

// GetCapabilities returns what this driver supports
func (d *ExLinkDriver) GetCapabilities() []model.Capability {
	return []model.Capability{
		model.CapabilityPower,
		model.CapabilityInputSelect,
		model.CapabilityVolume,
		model.CapabilityChannel,
	}
}

// PowerOn powers the TV on
func (d *ExLinkDriver) PowerOn(ctx context.Context) error {
	return d.send(ctx, cmdPowerOn)
}

// PowerOff powers the TV off
func (d *ExLinkDriver) PowerOff(ctx context.Context) error {
	return d.send(ctx, cmdPowerOff)
}

// PowerToggle flips the power state
func (d *ExLinkDriver) PowerToggle(ctx context.Context) error {
	return d.send(ctx, cmdPowerToggle)
}

// PowerStatus is not readable over Ex-Link
func (d *ExLinkDriver) PowerStatus(ctx context.Context) (driver.PowerState, error) {
	return driver.PowerUnknown, unsupported("power_status")
}

// SelectInput switches to the named input. The TV reports nothing usable
// back, so success is assumed and the requested name returned.
func (d *ExLinkDriver) SelectInput(ctx context.Context, input string) (string, error) {
	code, ok := d.inputs[input]
	if !ok {
		return "", fmt.Errorf("unknown input %q", input)
	}

	payload := append(append([]byte{}, selectInputPrefix...), code...)
	if err := d.send(ctx, wire.Command{Name: "select_input", Payload: payload}); err != nil {
		return "", err
	}
	return input, nil
}

// InputStatus is not readable over Ex-Link
func (d *ExLinkDriver) InputStatus(ctx context.Context) (string, error) {
	return "", unsupported("input_status")
}

// SendKey emits a remote-control key press
func (d *ExLinkDriver) SendKey(ctx context.Context, key string) error {
	cmd, ok := keyCommands[strings.ToUpper(key)]
	if !ok {
		return fmt.Errorf("unknown key %q", key)
	}
	return d.send(ctx, cmd)
}

// SetVolume sets the volume level directly
func (d *ExLinkDriver) SetVolume(ctx context.Context, level int) error {
	if level < 0 || level > 100 {
		return fmt.Errorf("volume %d out of range 0-100", level)
	}
	payload := append(append([]byte{}, setVolumePrefix...), byte(level))
	return d.send(ctx, wire.Command{Name: "set_volume", Payload: payload})
}

// VolumeUp raises the volume one step
func (d *ExLinkDriver) VolumeUp(ctx context.Context) error {
	return d.send(ctx, keyCommands["VOLUME_UP"])
}

// VolumeDown lowers the volume one step
func (d *ExLinkDriver) VolumeDown(ctx context.Context) error {
	return d.send(ctx, keyCommands["VOLUME_DOWN"])
}

// Mute toggles audio mute. Ex-Link has no discrete mute on and off.
func (d *ExLinkDriver) Mute(ctx context.Context) error {
	return d.send(ctx, keyCommands["MUTE"])
}

// SetChannel tunes to a channel. The channel rides in a single byte.
func (d *ExLinkDriver) SetChannel(ctx context.Context, channel int) error {
	if channel < 1 || channel > 255 {
		return fmt.Errorf("channel %d out of range 1-255", channel)
	}
	payload := append(append([]byte{}, setChannelPrefix...), byte(channel))
	return d.send(ctx, wire.Command{Name: "set_channel", Payload: payload})
}

// Ping verifies the serial device can be opened
func (d *ExLinkDriver) Ping(ctx context.Context) error {
	tr := d.session.Transport()
	if tr.IsOpen() {
		return nil
	}
	if err := tr.Open(ctx); err != nil {
		return err
	}
	return tr.Close()
}

// Close releases resources
func (d *ExLinkDriver) Close() error {
	return d.session.Close()
}

// send executes a command, logging whatever bytes the TV answers with
func (d *ExLinkDriver) send(ctx context.Context, cmd wire.Command) error {
	outcome, err := d.session.Execute(ctx, cmd)
	if err != nil {
		return err
	}
	if len(outcome.Payload) > 0 {
		d.logger.Logger.Debug("Ex-Link response",
			zap.String("command", cmd.Name),
			zap.Binary("data", outcome.Payload),
		)
	}
	return nil
}

// mergeInputCodes overlays configured input codes on the defaults. Configured
// values are hex strings for the two code bytes ("0500" or "0x0500").
func mergeInputCodes(overrides map[string]string) (map[string][]byte, error) {
	inputs := make(map[string][]byte, len(defaultInputs)+len(overrides))
	for name, code := range defaultInputs {
		inputs[name] = code
	}
	for name, value := range overrides {
		code, err := hex.DecodeString(strings.TrimPrefix(value, "0x"))
		if err != nil || len(code) != 2 {
			return nil, fmt.Errorf("input %q: code %q is not two hex bytes", name, value)
		}
		inputs[name] = code
	}
	return inputs, nil
}

// unsupported builds the rejection returned for state queries Ex-Link
// cannot answer.
func unsupported(op string) error {
	return &wire.DeviceError{
		Class:   wire.ErrUnsupported,
		Command: op,
		Detail:  "not readable over Ex-Link",
	}
}
