// internal/driver/kramer/p3000.go
package kramer

import (
	"context"
	"fmt"
	"regexp"
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

const (
	defaultTCPPort  = 5000
	defaultBaudRate = 9600
)

// Response shapes vary by model. '#ROUTE? 1,*' answers one
// '~NN@ROUTE <layer>,<out>,<in>' line per output; '#VID? *' and '#AV? *'
// answer a single '~NN@VID <in>>%<out>,...' line.
var (
	routeLinePattern  = regexp.MustCompile(`ROUTE\s+\d+,(\d+|\*),(\d+)`)
	switchPattern     = regexp.MustCompile(`(?:VID|AV)\s+([0-9>,*\s]+)`)
	switchPairPattern = regexp.MustCompile(`(\d+)>(\d+|\*)`)
)

// p3000DefaultInputs covers numbered input terminals up to the sizes we
// deploy. Room configuration overrides these with friendly names.
var p3000DefaultInputs = map[string]string{
	"1": "1",
	"2": "2",
	"3": "3",
	"4": "4",
}

// p3000DefaultOutputs routes to all outputs unless the room names them.
var p3000DefaultOutputs = map[string]string{
	"ALL": "*",
}

// P3000Driver implements driver.MatrixSwitcher for Kramer switchers speaking
// Protocol 3000 with numbered terminals (VS-42UHD, VS-211UHD and similar).
// Models using long terminal names ("IN.HDMI.1") need a different mapping.
type P3000Driver struct {
	device  *model.Device
	session *session.Session
	logger  *utils.DeviceLogger

	inputs  map[string]string
	outputs map[string]string

	mutex       sync.RWMutex
	isConnected bool
}

// NewP3000Driver creates a Protocol 3000 switcher driver over RS-232 or TCP
func NewP3000Driver(device *model.Device, connectionConfig interface{}, logger *zap.Logger) (driver.DeviceDriver, error) {
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
			connConfig["port"] = defaultTCPPort
		}
	case model.ConnectionTypeSerial:
		if _, ok := connConfig["baud_rate"]; !ok {
			connConfig["baud_rate"] = defaultBaudRate
		}
	}

	deviceLogger := utils.NewDeviceLogger(logger, device.DeviceID, string(device.DeviceType), string(device.Brand))

	tr, err := transport.New(device.ConnectionType, connConfig, deviceLogger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	sess := session.New(tr, wire.NewP3000Codec(), deviceLogger.Logger,
		session.WithFreshConnection(),
		session.WithExchangeLogger(deviceLogger),
	)

	return &P3000Driver{
		device:  device,
		session: sess,
		logger:  deviceLogger,
		inputs:  model.MergeInputMaps(device.Inputs, p3000DefaultInputs),
		outputs: model.MergeInputMaps(device.Outputs, p3000DefaultOutputs),
	}, nil
}

// Connect verifies the switcher answers the Protocol 3000 handshake
func (d *P3000Driver) Connect(ctx context.Context) error {
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
func (d *P3000Driver) Disconnect(ctx context.Context) error {
	d.mutex.Lock()
	d.isConnected = false
	d.mutex.Unlock()

	err := d.session.Close()
	d.logger.LogConnection("disconnect", err == nil, err)
	return err
}

// IsConnected reports whether the last connectivity check succeeded
func (d *P3000Driver) IsConnected() bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.isConnected
}

// GetDeviceInfo returns static device information
func (d *P3000Driver) GetDeviceInfo() (*driver.DeviceInfo, error) {
	return &driver.DeviceInfo{
		Brand:          d.device.Brand,
		Model:          d.device.Model,
		Capabilities:   d.GetCapabilities(),
		ConnectionType: d.device.ConnectionType,
		Location:       d.device.Location,
	}, nil
}

// GetCapabilities returns what this driver supports
func (d *P3000Driver) GetCapabilities() []model.Capability {
	return []model.Capability{
		model.CapabilityInputSelect,
		model.CapabilityMatrixRoute,
	}
}

// PowerOn is not available on these switchers
func (d *P3000Driver) PowerOn(ctx context.Context) error {
	return unsupported("power_on")
}

// PowerOff is not available on these switchers
func (d *P3000Driver) PowerOff(ctx context.Context) error {
	return unsupported("power_off")
}

// PowerStatus is not available on these switchers
func (d *P3000Driver) PowerStatus(ctx context.Context) (driver.PowerState, error) {
	return driver.PowerUnknown, unsupported("power_status")
}

// SelectInput routes the named input to all outputs
func (d *P3000Driver) SelectInput(ctx context.Context, input string) (string, error) {
	if err := d.Route(ctx, "ALL", input); err != nil {
		return "", err
	}
	return nameForValue(d.device.Inputs, d.inputs, d.inputs[input]), nil
}

// Route connects an input to one output. Routing commands vary across the
// product line, so candidates are tried in order until one is accepted.
// #AV goes before #VID so devices with separately routable audio and video
// switch both together.
func (d *P3000Driver) Route(ctx context.Context, output, input string) error {
	inValue, ok := d.inputs[input]
	if !ok {
		return fmt.Errorf("unknown input %q", input)
	}
	outValue, ok := d.outputs[output]
	if !ok {
		return fmt.Errorf("unknown output %q", output)
	}

	plan := []wire.Command{
		{Name: "route", Payload: []byte(fmt.Sprintf("ROUTE 1,%s,%s", outValue, inValue))},
		{Name: "av_switch", Payload: []byte(fmt.Sprintf("AV %s>%s", inValue, outValue))},
		{Name: "vid_switch", Payload: []byte(fmt.Sprintf("VID %s>%s", inValue, outValue))},
	}

	outcome, _, err := d.session.ExecuteWithFallback(ctx, plan)
	if err != nil {
		return err
	}
	if !outcome.OK() {
		return outcome.Err
	}
	return nil
}

// Routes reports the input currently feeding each output. Query commands are
// probed in order until the device accepts one; the wildcard forms come first
// because they answer for every output in one exchange.
func (d *P3000Driver) Routes(ctx context.Context) ([]driver.RouteStatus, error) {
	plan := []wire.Command{
		{Name: "route_query", Payload: []byte("ROUTE? 1,*")},
		{Name: "av_query_all", Payload: []byte("AV? *")},
		{Name: "vid_query_all", Payload: []byte("VID? *")},
		{Name: "av_query", Payload: []byte("AV? 1")},
		{Name: "vid_query", Payload: []byte("VID? 1")},
	}

	outcome, _, err := d.session.ExecuteWithFallback(ctx, plan)
	if err != nil {
		return nil, err
	}
	if !outcome.OK() {
		return nil, outcome.Err
	}

	routes := d.parseRoutes(string(outcome.Payload))
	if len(routes) == 0 {
		return nil, fmt.Errorf("unparseable routing response %q", outcome.Payload)
	}
	return routes, nil
}

// InputStatus reports the input feeding the first output
func (d *P3000Driver) InputStatus(ctx context.Context) (string, error) {
	routes, err := d.Routes(ctx)
	if err != nil {
		return "", err
	}
	return routes[0].Input, nil
}

// AVMute is not available on these switchers
func (d *P3000Driver) AVMute(ctx context.Context, mute bool) error {
	return unsupported("av_mute")
}

// Ping sends the bare Protocol 3000 handshake
func (d *P3000Driver) Ping(ctx context.Context) error {
	outcome, err := d.session.Execute(ctx, wire.Command{Name: "handshake", Payload: []byte("")})
	if err != nil {
		return err
	}
	if !outcome.OK() {
		return outcome.Err
	}
	return nil
}

// Close releases resources
func (d *P3000Driver) Close() error {
	return d.session.Close()
}

// parseRoutes extracts output/input pairs from either response shape.
// '#ROUTE? 1,*' answers one line per output:
//
//	~01@ROUTE 1,1,1\r\n~01@ROUTE 1,2,1\r\n
//
// '#VID? *' (and presumably #AV? *) answers a single line of in>out pairs:
//
//	~01@VID 1>1,1>2\r\n
func (d *P3000Driver) parseRoutes(body string) []driver.RouteStatus {
	var routes []driver.RouteStatus

	if strings.Contains(body, "ROUTE") {
		for _, line := range strings.Split(body, "\r\n") {
			if m := routeLinePattern.FindStringSubmatch(line); m != nil {
				routes = append(routes, driver.RouteStatus{
					Output: nameForValue(d.device.Outputs, d.outputs, m[1]),
					Input:  nameForValue(d.device.Inputs, d.inputs, m[2]),
				})
			}
		}
		return routes
	}

	if m := switchPattern.FindStringSubmatch(body); m != nil {
		for _, pair := range strings.Split(m[1], ",") {
			if pm := switchPairPattern.FindStringSubmatch(pair); pm != nil {
				routes = append(routes, driver.RouteStatus{
					Output: nameForValue(d.device.Outputs, d.outputs, pm[2]),
					Input:  nameForValue(d.device.Inputs, d.inputs, pm[1]),
				})
			}
		}
	}
	return routes
}

// nameForValue reverse-maps a terminal value, preferring room-specific names
// over driver defaults. Unknown values come back verbatim so raw routing data
// is never lost.
func nameForValue(room, merged map[string]string, value string) string {
	for name, v := range room {
		if v == value {
			return name
		}
	}
	for name, v := range merged {
		if v == value {
			return name
		}
	}
	return value
}

// unsupported builds the rejection returned for operations this hardware
// does not have.
func unsupported(op string) error {
	return &wire.DeviceError{
		Class:   wire.ErrUnsupported,
		Command: op,
		Detail:  "operation not supported by this device",
	}
}
