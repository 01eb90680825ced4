// cmd/avctl/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"av-control-service/internal/config"
	"av-control-service/internal/discovery"
	serialscan "av-control-service/internal/discovery/serial"
	tcpscan "av-control-service/internal/discovery/tcp"
	"av-control-service/internal/driver"
	"av-control-service/internal/model"
	"av-control-service/internal/utils"
	pkgdriver "av-control-service/pkg/driver"
)

// avctl issues one control operation against one AV device and exits.
// Room configuration (friendly input names, connection details) arrives on
// the command line; service configuration (logging, timeouts) through the
// usual config file and AVCTL_* environment variables.

type options struct {
	deviceID string
	devType  string
	brand    string
	model    string
	location string

	conn         string
	serialDevice string
	baudRate     int
	host         string
	port         int

	inputs  string
	outputs string

	op      string
	input   string
	output  string
	key     string
	volume  int
	channel int

	hosts string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "avctl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Debug mode escalates log verbosity, but never in production.
	if cfg.IsDebugEnabled() && !cfg.IsProduction() {
		cfg.Logging.Level = "debug"
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer utils.CloseLogger(logger)

	switch opts.op {
	case "discover":
		return discover(logger, opts, cfg)
	case "drivers":
		return listDrivers(logger)
	}

	device, connConfig, err := buildDevice(opts)
	if err != nil {
		return err
	}

	// Notification-driven drivers bound their confirmation waits with this.
	if _, ok := connConfig["notify_wait_timeout"]; !ok {
		connConfig["notify_wait_timeout"] = cfg.Device.NotifyWaitTimeout.String()
	}
	applyPortDefaults(device, connConfig, cfg)

	registry := driver.NewRegistry(logger)
	driver.RegisterDefaultDrivers(registry, logger)

	if !registry.IsSupported(device.Brand, device.DeviceType, device.Model) {
		return fmt.Errorf("no driver for brand=%s type=%s model=%s (-op drivers lists what is available)",
			device.Brand, device.DeviceType, device.Model)
	}

	dev, err := registry.CreateDriver(device, connConfig)
	if err != nil {
		return err
	}
	defer dev.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Device.OperationTimeout)
	defer cancel()

	opLogger := utils.NewOperationLogger(logger, opts.op, uuid.New().String())
	opLogger.Start(zap.String("device_id", device.DeviceID))

	if err := dev.Connect(ctx); err != nil {
		opLogger.Error(err)
		return err
	}

	result, err := dispatch(ctx, dev, opts)
	if err != nil {
		opLogger.Error(err)
		return err
	}
	opLogger.Success()

	if result != "" {
		fmt.Println(result)
	}
	return nil
}

func parseFlags() *options {
	opts := &options{}

	flag.StringVar(&opts.deviceID, "id", "device-1", "device identifier used in logs")
	flag.StringVar(&opts.devType, "type", "", "device type: PROJECTOR, SWITCHER or TV")
	flag.StringVar(&opts.brand, "brand", "", "device brand: NEC, PJLINK, KRAMER or SAMSUNG")
	flag.StringVar(&opts.model, "model", "", "device model, used to pick model-specific drivers (e.g. VP-734)")
	flag.StringVar(&opts.location, "location", "", "room or rack location for logs")

	flag.StringVar(&opts.conn, "conn", "", "connection type: serial or tcp")
	flag.StringVar(&opts.serialDevice, "serial-device", "/dev/ttyUSB0", "serial device path")
	flag.IntVar(&opts.baudRate, "baud", 0, "serial baud rate (0 uses the driver default)")
	flag.StringVar(&opts.host, "host", "", "device IP address or hostname")
	flag.IntVar(&opts.port, "port", 0, "TCP port (0 uses the driver default)")

	flag.StringVar(&opts.inputs, "inputs", "", "input name overrides, NAME=VALUE comma separated")
	flag.StringVar(&opts.outputs, "outputs", "", "output name overrides, NAME=VALUE comma separated")

	flag.StringVar(&opts.op, "op", "", "operation to perform")
	flag.StringVar(&opts.input, "input", "", "input name for select_input and route")
	flag.StringVar(&opts.output, "output", "ALL", "output name for route")
	flag.StringVar(&opts.key, "key", "", "remote key name for the key operation")
	flag.IntVar(&opts.volume, "volume", -1, "volume level for set_volume")
	flag.IntVar(&opts.channel, "channel", 0, "channel number for set_channel")

	flag.StringVar(&opts.hosts, "hosts", "", "hosts to probe for the discover operation, comma separated")

	flag.Parse()
	return opts
}

func buildDevice(opts *options) (*model.Device, map[string]interface{}, error) {
	if opts.devType == "" || opts.brand == "" {
		return nil, nil, fmt.Errorf("both -type and -brand are required")
	}
	if opts.op == "" {
		return nil, nil, fmt.Errorf("-op is required")
	}

	connConfig := map[string]interface{}{}
	var connType model.ConnectionType

	switch strings.ToLower(opts.conn) {
	case "serial":
		connType = model.ConnectionTypeSerial
		connConfig["device"] = opts.serialDevice
		if opts.baudRate > 0 {
			connConfig["baud_rate"] = opts.baudRate
		}
	case "tcp":
		connType = model.ConnectionTypeTCP
		if opts.host == "" {
			return nil, nil, fmt.Errorf("-host is required for tcp connections")
		}
		connConfig["host"] = opts.host
		if opts.port > 0 {
			connConfig["port"] = opts.port
		}
	default:
		return nil, nil, fmt.Errorf("-conn must be serial or tcp")
	}

	inputs, err := parseNameMap(opts.inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("-inputs: %w", err)
	}
	outputs, err := parseNameMap(opts.outputs)
	if err != nil {
		return nil, nil, fmt.Errorf("-outputs: %w", err)
	}

	device := &model.Device{
		DeviceID:         opts.deviceID,
		DeviceType:       model.DeviceType(strings.ToUpper(opts.devType)),
		Brand:            model.DeviceBrand(strings.ToUpper(opts.brand)),
		Model:            opts.model,
		ConnectionType:   connType,
		ConnectionConfig: connConfig,
		Location:         opts.location,
		Inputs:           inputs,
		Outputs:          outputs,
	}
	return device, connConfig, nil
}

// applyPortDefaults fills in the configured control port for the brand when
// none was given on the command line. Drivers carry their own fallbacks, so
// this only matters when a site overrides a port globally in config.
func applyPortDefaults(device *model.Device, connConfig map[string]interface{}, cfg *config.Config) {
	if device.ConnectionType == model.ConnectionTypeSerial {
		// Baud rate is left alone: the drivers know their device's rate
		// (NEC 38400, VP-734 115200) and only a -baud flag overrides it.
		serial := cfg.Device.DefaultPort.Serial
		if _, ok := connConfig["read_timeout"]; !ok && serial.Timeout > 0 {
			connConfig["read_timeout"] = serial.Timeout.String()
		}
		return
	}

	tcp := cfg.Device.DefaultPort.TCP
	if _, ok := connConfig["connect_timeout"]; !ok && tcp.ConnectTimeout > 0 {
		connConfig["connect_timeout"] = tcp.ConnectTimeout.String()
	}
	if _, ok := connConfig["read_timeout"]; !ok && tcp.ReadTimeout > 0 {
		connConfig["read_timeout"] = tcp.ReadTimeout.String()
	}
	if _, ok := connConfig["port"]; ok {
		return
	}

	var port int
	switch device.Brand {
	case model.BrandNEC:
		port = tcp.NECPort
	case model.BrandPJLink:
		port = tcp.PJLinkPort
	case model.BrandKramer:
		port = tcp.KramerPort
	}
	if port > 0 {
		connConfig["port"] = port
	}
}

// parseNameMap parses "HDMI_MAIN=31,DOC_CAM=32" style overrides
func parseNameMap(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	m := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" || value == "" {
			return nil, fmt.Errorf("malformed entry %q, want NAME=VALUE", pair)
		}
		m[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return m, nil
}

// discover scans serial ports and, when -hosts is given, TCP control ports
func discover(logger *zap.Logger, opts *options, cfg *config.Config) error {
	manager := discovery.NewScannerManager(logger)
	manager.RegisterScanner(serialscan.NewScanner(logger, nil))

	if opts.hosts != "" {
		hosts := strings.Split(opts.hosts, ",")
		for i := range hosts {
			hosts[i] = strings.TrimSpace(hosts[i])
		}
		manager.RegisterScanner(tcpscan.NewScanner(logger, hosts, cfg.Device.DefaultPort.TCP.ConnectTimeout))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Device.OperationTimeout)
	defer cancel()

	devices, err := manager.ScanAll(ctx)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("nothing found")
		return nil
	}

	for _, d := range devices {
		line := fmt.Sprintf("%-6s %v", d.ConnectionType, d.ConnectionInfo)
		if d.Brand != "" {
			line += fmt.Sprintf("  %s/%s", d.Brand, d.DeviceType)
		}
		line += fmt.Sprintf("  confidence=%.2f", d.Confidence)
		if d.Detail != "" {
			line += "  " + d.Detail
		}
		fmt.Println(line)
	}
	return nil
}

// listDrivers prints every registered brand, device type and model
func listDrivers(logger *zap.Logger) error {
	registry := driver.NewRegistry(logger)
	driver.RegisterDefaultDrivers(registry, logger)

	keys := registry.ListDrivers()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Brand != keys[j].Brand {
			return keys[i].Brand < keys[j].Brand
		}
		if keys[i].DeviceType != keys[j].DeviceType {
			return keys[i].DeviceType < keys[j].DeviceType
		}
		return keys[i].Model < keys[j].Model
	})
	for _, key := range keys {
		fmt.Printf("%-8s %-10s %s\n", key.Brand, key.DeviceType, key.Model)
	}
	return nil
}

func dispatch(ctx context.Context, dev pkgdriver.DeviceDriver, opts *options) (string, error) {
	switch opts.op {
	case "power_on":
		return "", dev.PowerOn(ctx)

	case "power_off":
		return "", dev.PowerOff(ctx)

	case "power_status":
		state, err := dev.PowerStatus(ctx)
		if err != nil {
			return "", err
		}
		return string(state), nil

	case "select_input":
		if opts.input == "" {
			return "", fmt.Errorf("select_input needs -input")
		}
		name, err := dev.SelectInput(ctx, opts.input)
		if err != nil {
			return "", err
		}
		return name, nil

	case "input_status":
		return dev.InputStatus(ctx)

	case "ping":
		return "", dev.Ping(ctx)

	case "mute_on", "mute_off":
		m, ok := dev.(interface {
			AVMute(ctx context.Context, mute bool) error
		})
		if !ok {
			return "", fmt.Errorf("device does not support AV mute")
		}
		return "", m.AVMute(ctx, opts.op == "mute_on")

	case "power_toggle":
		toggler, ok := dev.(interface {
			PowerToggle(ctx context.Context) error
		})
		if !ok {
			return "", fmt.Errorf("device does not support power toggle")
		}
		return "", toggler.PowerToggle(ctx)

	case "filter":
		f, ok := dev.(interface {
			FilterUsage(ctx context.Context) (int, error)
		})
		if !ok {
			return "", fmt.Errorf("device does not report filter usage")
		}
		hours, err := f.FilterUsage(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("filter: %d hours", hours), nil

	case "lamp":
		proj, ok := dev.(pkgdriver.Projector)
		if !ok {
			return "", fmt.Errorf("lamp info is a projector operation")
		}
		lamp, err := proj.LampInfo(ctx)
		if err != nil {
			return "", err
		}
		if lamp.RemainingPercent >= 0 {
			return fmt.Sprintf("lamp %d: %d hours, %d%% remaining", lamp.LampNumber, lamp.UsageHours, lamp.RemainingPercent), nil
		}
		return fmt.Sprintf("lamp %d: %d hours", lamp.LampNumber, lamp.UsageHours), nil

	case "errors":
		proj, ok := dev.(pkgdriver.Projector)
		if !ok {
			return "", fmt.Errorf("error report is a projector operation")
		}
		errs, err := proj.DeviceErrors(ctx)
		if err != nil {
			return "", err
		}
		if len(errs) == 0 {
			return "no errors reported", nil
		}
		return strings.Join(errs, "\n"), nil

	case "model":
		proj, ok := dev.(pkgdriver.Projector)
		if !ok {
			return "", fmt.Errorf("model name is a projector operation")
		}
		return proj.ModelName(ctx)

	case "route":
		matrix, ok := dev.(pkgdriver.MatrixSwitcher)
		if !ok {
			return "", fmt.Errorf("route is a matrix switcher operation")
		}
		if opts.input == "" {
			return "", fmt.Errorf("route needs -input")
		}
		return "", matrix.Route(ctx, opts.output, opts.input)

	case "routes":
		matrix, ok := dev.(pkgdriver.MatrixSwitcher)
		if !ok {
			return "", fmt.Errorf("routes is a matrix switcher operation")
		}
		routes, err := matrix.Routes(ctx)
		if err != nil {
			return "", err
		}
		var lines []string
		for _, r := range routes {
			lines = append(lines, fmt.Sprintf("%s <- %s", r.Output, r.Input))
		}
		return strings.Join(lines, "\n"), nil

	case "key":
		tv, ok := dev.(pkgdriver.TV)
		if !ok {
			return "", fmt.Errorf("key is a TV operation")
		}
		if opts.key == "" {
			return "", fmt.Errorf("key needs -key")
		}
		return "", tv.SendKey(ctx, opts.key)

	case "set_volume":
		tv, ok := dev.(pkgdriver.TV)
		if !ok {
			return "", fmt.Errorf("set_volume is a TV operation")
		}
		return "", tv.SetVolume(ctx, opts.volume)

	case "volume_up":
		tv, ok := dev.(pkgdriver.TV)
		if !ok {
			return "", fmt.Errorf("volume_up is a TV operation")
		}
		return "", tv.VolumeUp(ctx)

	case "volume_down":
		tv, ok := dev.(pkgdriver.TV)
		if !ok {
			return "", fmt.Errorf("volume_down is a TV operation")
		}
		return "", tv.VolumeDown(ctx)

	case "mute_toggle":
		tv, ok := dev.(pkgdriver.TV)
		if !ok {
			return "", fmt.Errorf("mute_toggle is a TV operation")
		}
		return "", tv.Mute(ctx)

	case "set_channel":
		tv, ok := dev.(pkgdriver.TV)
		if !ok {
			return "", fmt.Errorf("set_channel is a TV operation")
		}
		return "", tv.SetChannel(ctx, opts.channel)

	default:
		return "", fmt.Errorf("unknown operation %q", opts.op)
	}
}
