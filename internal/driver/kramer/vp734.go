// internal/driver/kramer/vp734.go
package kramer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"av-control-service/internal/model"
	"av-control-service/internal/notify"
	"av-control-service/internal/transport"
	"av-control-service/internal/utils"
	"av-control-service/pkg/driver"
)

const (
	vp734DefaultTCPPort  = 5000
	vp734DefaultBaudRate = 115200

	// The unit is slow to answer and sometimes drops confirmations
	// entirely, so waits are bounded rather than indefinite.
	vp734DefaultWaitTimeout = 2 * time.Second
)

// vp734DefaultInputs maps input names to the parameter of the input switch
// notification function.
var vp734DefaultInputs = map[string]string{
	"RGB_1":       "0",
	"RGB_2":       "1",
	"HDMI_1":      "2",
	"HDMI_2":      "3",
	"HDMI_3":      "4",
	"HDMI_4":      "5",
	"DISPLAYPORT": "6",
}

// VP734 command bytes. Set commands are "Y 0 <func> <param>\r", queries are
// "Y 1 <func>\r"; the device answers both through its notification stream.
var (
	vp734PowerOn    = []byte("Y 0 10 1\r")
	vp734PowerOff   = []byte("Y 0 10 0\r")
	vp734PowerQuery = []byte("Y 1 10\r")
	vp734BlankOn    = []byte("Y 0 8 1\r")
	vp734BlankOff   = []byte("Y 0 8 0\r")
	vp734BlankQuery = []byte("Y 1 8\r")
	vp734InputQuery = []byte("Y 1 30\r")
)

func vp734SelectInput(code string) []byte {
	return []byte("Y 0 30 " + code + "\r")
}

// VP734Driver implements driver.Switcher for the Kramer VP-734
// presentation scaler/switcher. Unlike the rest of the Kramer line it has no
// request/response protocol: every state change arrives as an unsolicited
// notification, so the driver holds the connection open for its lifetime and
// keeps a state mirror current from the stream. RS-232 is preferred over
// ethernet for reliability.
type VP734Driver struct {
	device   *model.Device
	tr       transport.Transport
	notifier *notify.Synchronizer
	logger   *utils.DeviceLogger

	inputs      map[string]string
	waitTimeout time.Duration

	mutex       sync.RWMutex
	cancel      context.CancelFunc
	isConnected bool
}

// NewVP734Driver creates a VP-734 driver over RS-232 or TCP
func NewVP734Driver(device *model.Device, connectionConfig interface{}, logger *zap.Logger) (driver.DeviceDriver, error) {
	connConfig, ok := connectionConfig.(map[string]interface{})
	if !ok {
		if device.ConnectionConfig == nil {
			return nil, fmt.Errorf("connection configuration is required")
		}
		connConfig = device.ConnectionConfig
	}

	switch device.ConnectionType {
	case model.ConnectionTypeTCP:
		if _, ok := connConfig["port"]; !ok {
			connConfig["port"] = vp734DefaultTCPPort
		}
	case model.ConnectionTypeSerial:
		if _, ok := connConfig["baud_rate"]; !ok {
			connConfig["baud_rate"] = vp734DefaultBaudRate
		}
	}

	deviceLogger := utils.NewDeviceLogger(logger, device.DeviceID, string(device.DeviceType), string(device.Brand))

	tr, err := transport.New(device.ConnectionType, connConfig, deviceLogger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	waitTimeout := vp734DefaultWaitTimeout
	if raw, ok := connConfig["notify_wait_timeout"].(string); ok {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid notify_wait_timeout %q", raw)
		}
		waitTimeout = parsed
	}

	return &VP734Driver{
		device:      device,
		tr:          tr,
		notifier:    notify.NewSynchronizer(tr, deviceLogger.Logger),
		logger:      deviceLogger,
		inputs:      model.MergeInputMaps(device.Inputs, vp734DefaultInputs),
		waitTimeout: waitTimeout,
	}, nil
}

// Connect opens the transport and starts the notification read loop. The
// loop runs until Disconnect or a transport failure; a failure invalidates
// the state mirror and flags the driver as disconnected.
func (d *VP734Driver) Connect(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.isConnected {
		return nil
	}

	if err := d.tr.Open(ctx); err != nil {
		d.logger.LogConnection("connect", false, err)
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	go func() {
		err := d.notifier.Run(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			d.mutex.Lock()
			d.isConnected = false
			d.mutex.Unlock()
		}
	}()

	d.isConnected = true
	d.logger.LogConnection("connect", true, nil)
	return nil
}

// Disconnect stops the read loop and closes the transport
func (d *VP734Driver) Disconnect(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.isConnected = false

	err := d.tr.Close()
	d.logger.LogConnection("disconnect", err == nil, err)
	return err
}

// IsConnected reports whether the read loop is live
func (d *VP734Driver) IsConnected() bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.isConnected && d.tr.IsOpen()
}

// GetDeviceInfo returns static device information
func (d *VP734Driver) GetDeviceInfo() (*driver.DeviceInfo, error) {
	return &driver.DeviceInfo{
		Brand:          d.device.Brand,
		Model:          d.device.Model,
		Capabilities:   d.GetCapabilities(),
		ConnectionType: d.device.ConnectionType,
		Location:       d.device.Location,
	}, nil
}

// GetCapabilities returns what this driver supports
func (d *VP734Driver) GetCapabilities() []model.Capability {
	return []model.Capability{
		model.CapabilityPower,
		model.CapabilityInputSelect,
		model.CapabilityAVMute,
	}
}

// PowerOn powers the switcher on
func (d *VP734Driver) PowerOn(ctx context.Context) error {
	return d.setAndConfirm(ctx, "power_on", vp734PowerOn, func(s notify.Snapshot) bool {
		return s.Power == notify.On
	})
}

// PowerOff powers the switcher off
func (d *VP734Driver) PowerOff(ctx context.Context) error {
	return d.setAndConfirm(ctx, "power_off", vp734PowerOff, func(s notify.Snapshot) bool {
		return s.Power == notify.Off
	})
}

// PowerStatus queries the power state. A powered-on unit may answer the
// query with a bare "-" instead of a notification; the read loop folds that
// quirk into the state mirror.
func (d *VP734Driver) PowerStatus(ctx context.Context) (driver.PowerState, error) {
	snap, err := d.query(ctx, vp734PowerQuery, func(s notify.Snapshot) bool {
		return s.Power != notify.Unknown
	})
	if err != nil {
		return driver.PowerUnknown, err
	}

	switch snap.Power {
	case notify.On:
		return driver.PowerOn, nil
	case notify.Off:
		return driver.PowerStandby, nil
	default:
		return driver.PowerUnknown, fmt.Errorf("power state unknown: %w", notify.ErrWaitTimeout)
	}
}

// SelectInput switches to the named input. The confirming notification is
// not always emitted over ethernet, so a missing confirmation is logged and
// tolerated rather than failed.
func (d *VP734Driver) SelectInput(ctx context.Context, input string) (string, error) {
	value, ok := d.inputs[input]
	if !ok {
		return "", fmt.Errorf("unknown input %q", input)
	}
	code, err := strconv.Atoi(value)
	if err != nil {
		return "", fmt.Errorf("input %q maps to non-numeric value %q", input, value)
	}

	err = d.setAndConfirm(ctx, "select_input", vp734SelectInput(value), func(s notify.Snapshot) bool {
		return s.InputKnown && s.Input == code
	})
	if err != nil {
		return "", err
	}
	return d.nameForCode(value), nil
}

// InputStatus reports the currently selected input by name
func (d *VP734Driver) InputStatus(ctx context.Context) (string, error) {
	snap, err := d.query(ctx, vp734InputQuery, func(s notify.Snapshot) bool {
		return s.InputKnown
	})
	if err != nil {
		return "", err
	}
	if !snap.InputKnown {
		return "", fmt.Errorf("input state unknown: %w", notify.ErrWaitTimeout)
	}

	value := strconv.Itoa(snap.Input)
	name := d.nameForCode(value)
	if name == "" {
		return "", fmt.Errorf("device reports unmapped input code %q", value)
	}
	return name, nil
}

// AVMute blanks or restores video output
func (d *VP734Driver) AVMute(ctx context.Context, mute bool) error {
	cmd := vp734BlankOff
	want := notify.Off
	if mute {
		cmd = vp734BlankOn
		want = notify.On
	}
	return d.setAndConfirm(ctx, "av_mute", cmd, func(s notify.Snapshot) bool {
		return s.Mute == want
	})
}

// AVMuteStatus reports whether video output is blanked
func (d *VP734Driver) AVMuteStatus(ctx context.Context) (bool, error) {
	snap, err := d.query(ctx, vp734BlankQuery, func(s notify.Snapshot) bool {
		return s.Mute != notify.Unknown
	})
	if err != nil {
		return false, err
	}
	if snap.Mute == notify.Unknown {
		return false, fmt.Errorf("mute state unknown: %w", notify.ErrWaitTimeout)
	}
	return snap.Mute == notify.On, nil
}

// Ping verifies the unit answers a power query
func (d *VP734Driver) Ping(ctx context.Context) error {
	_, err := d.PowerStatus(ctx)
	return err
}

// Close stops the read loop and releases the transport
func (d *VP734Driver) Close() error {
	return d.Disconnect(context.Background())
}

// setAndConfirm sends a set command and waits for the state mirror to show
// the requested value. A confirmation timeout is tolerated: the unit drops
// confirmations often enough that treating silence as failure would reject
// switches that actually landed.
func (d *VP734Driver) setAndConfirm(ctx context.Context, op string, cmd []byte, pred func(notify.Snapshot) bool) error {
	if !d.IsConnected() {
		return transport.ErrNotOpen
	}

	_, err := d.notifier.QueryAndWait(ctx, cmd, pred, d.waitTimeout)
	if errors.Is(err, notify.ErrWaitTimeout) {
		d.logger.Logger.Warn("No confirmation received, assuming command landed",
			zap.String("operation", op),
		)
		return nil
	}
	return err
}

// query sends a query command and waits for an answer. Timeouts surface the
// last snapshot so callers can distinguish stale knowledge from none.
func (d *VP734Driver) query(ctx context.Context, cmd []byte, pred func(notify.Snapshot) bool) (notify.Snapshot, error) {
	if !d.IsConnected() {
		return notify.Snapshot{}, transport.ErrNotOpen
	}

	snap, err := d.notifier.QueryAndWait(ctx, cmd, pred, d.waitTimeout)
	if err != nil && !errors.Is(err, notify.ErrWaitTimeout) {
		return snap, err
	}
	return snap, nil
}

// nameForCode reverse-maps an input value, preferring room-specific names
// over driver defaults.
func (d *VP734Driver) nameForCode(value string) string {
	for name, v := range d.device.Inputs {
		if v == value {
			return name
		}
	}
	for name, v := range vp734DefaultInputs {
		if v == value {
			return name
		}
	}
	return ""
}
