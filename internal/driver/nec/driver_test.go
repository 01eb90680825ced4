package nec

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"av-control-service/internal/model"
	"av-control-service/internal/session"
	"av-control-service/internal/utils"
	"av-control-service/internal/wire"
	"av-control-service/pkg/driver"
)

// fakeTransport replays canned responses in write order
type fakeTransport struct {
	responses [][]byte
	writes    [][]byte
	isOpen    bool
}

func (ft *fakeTransport) Open(ctx context.Context) error { ft.isOpen = true; return nil }
func (ft *fakeTransport) Close() error                   { ft.isOpen = false; return nil }
func (ft *fakeTransport) IsOpen() bool                   { return ft.isOpen }

func (ft *fakeTransport) Write(ctx context.Context, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	ft.writes = append(ft.writes, buf)
	return nil
}

func (ft *fakeTransport) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	if len(ft.responses) == 0 {
		return []byte{}, nil
	}
	resp := ft.responses[0]
	ft.responses = ft.responses[1:]
	return resp, nil
}

func (ft *fakeTransport) ResetInputBuffer() error    { return nil }
func (ft *fakeTransport) Kind() model.ConnectionType { return model.ConnectionTypeTCP }

func newTestDriver(t *testing.T, ft *fakeTransport, overrides map[string]string) *ProjectorDriver {
	t.Helper()
	inputs, err := mergeInputCodes(overrides)
	if err != nil {
		t.Fatalf("mergeInputCodes: %v", err)
	}
	device := &model.Device{
		DeviceID:   "proj-1",
		DeviceType: model.DeviceTypeProjector,
		Brand:      model.BrandNEC,
		Inputs:     overrides,
	}
	return &ProjectorDriver{
		device:  device,
		session: session.New(ft, wire.NewNECCodec(), zap.NewNop(), session.WithFreshConnection()),
		logger:  utils.NewDeviceLogger(zap.NewNop(), "proj-1", "PROJECTOR", "NEC"),
		inputs:  inputs,
	}
}

// statusFrame builds a basic information response with the given power,
// signal tuple, and mute bytes.
func statusFrame(power byte, sig1, sig2 byte, mute byte) []byte {
	data := []byte{0x00, power, 0x00, sig1, sig2, 0xff, mute, 0x00, 0x00, 0x00}
	return append([]byte{0x20, 0xbf, 0x00, 0x00, byte(len(data))}, data...)
}

func TestPowerStatusMapping(t *testing.T) {
	cases := []struct {
		name  string
		value byte
		want  driver.PowerState
	}{
		{"on", 0x04, driver.PowerOn},
		{"standby", 0x00, driver.PowerStandby},
		{"cooling", 0x05, driver.PowerCooling},
		{"network standby", 0x10, driver.PowerStandby},
		{"unmapped", 0x42, driver.PowerUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ft := &fakeTransport{responses: [][]byte{statusFrame(tc.value, 0x01, 0x21, 0x00)}}
			d := newTestDriver(t, ft, nil)

			state, err := d.PowerStatus(context.Background())
			if err != nil {
				t.Fatalf("PowerStatus: %v", err)
			}
			if state != tc.want {
				t.Fatalf("state = %s, want %s", state, tc.want)
			}
		})
	}
}

func TestPowerOnSendsFixedFrame(t *testing.T) {
	ft := &fakeTransport{responses: [][]byte{{0x22, 0x00, 0x00, 0x00, 0x00}}}
	d := newTestDriver(t, ft, nil)

	if err := d.PowerOn(context.Background()); err != nil {
		t.Fatalf("PowerOn: %v", err)
	}
	want := []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	if len(ft.writes) != 1 || string(ft.writes[0]) != string(want) {
		t.Fatalf("wrote % x, want % x", ft.writes[0], want)
	}
}

func TestPowerOnDeviceErrorSurfaces(t *testing.T) {
	// Error frame: command refused because power is off (class NotReady).
	ft := &fakeTransport{responses: [][]byte{{0xa2, 0x00, 0x00, 0x00, 0x02, 0x02, 0x0d}}}
	d := newTestDriver(t, ft, nil)

	err := d.PowerOn(context.Background())
	if err == nil {
		t.Fatal("expected device error")
	}
	devErr, ok := err.(*wire.DeviceError)
	if !ok {
		t.Fatalf("error type %T", err)
	}
	if devErr.Class != wire.ErrNotReady {
		t.Fatalf("class = %s, want not ready", devErr.Class)
	}
}

func TestSelectInputRetriesAlternateCode(t *testing.T) {
	ft := &fakeTransport{responses: [][]byte{
		// (1,1): specified input terminal is invalid
		{0xa2, 0x03, 0x00, 0x00, 0x02, 0x01, 0x01},
		{0x22, 0x03, 0x00, 0x00, 0x01, 0x01},
	}}
	d := newTestDriver(t, ft, nil)

	got, err := d.SelectInput(context.Background(), "HDMI_1")
	if err != nil {
		t.Fatalf("SelectInput: %v", err)
	}
	if got != "HDMI_1" {
		t.Fatalf("selected = %q", got)
	}
	if len(ft.writes) != 2 {
		t.Fatalf("writes = %d, want 2", len(ft.writes))
	}
	if ft.writes[0][6] != 0x1a || ft.writes[1][6] != 0xa1 {
		t.Fatalf("codes tried: %#02x then %#02x, want 0x1a then 0xa1", ft.writes[0][6], ft.writes[1][6])
	}
}

func TestSelectInputNoAlternateForOtherErrors(t *testing.T) {
	ft := &fakeTransport{responses: [][]byte{
		// (0,1): command not supported
		{0xa2, 0x03, 0x00, 0x00, 0x02, 0x00, 0x01},
	}}
	d := newTestDriver(t, ft, nil)

	_, err := d.SelectInput(context.Background(), "HDMI_1")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(ft.writes) != 1 {
		t.Fatalf("writes = %d, want 1: only out-of-range retries the alternate", len(ft.writes))
	}
}

func TestSelectInputUnknownName(t *testing.T) {
	d := newTestDriver(t, &fakeTransport{}, nil)
	if _, err := d.SelectInput(context.Background(), "SCART"); err == nil {
		t.Fatal("expected error for unknown input")
	}
}

func TestInputStatusPrefersConfiguredName(t *testing.T) {
	// Signal (0x01, 0x21) reports HDMI 1; the room config binds the same
	// code to a friendlier name.
	ft := &fakeTransport{responses: [][]byte{statusFrame(0x04, 0x01, 0x21, 0x00)}}
	d := newTestDriver(t, ft, map[string]string{"LAPTOP": "0x1a"})

	got, err := d.InputStatus(context.Background())
	if err != nil {
		t.Fatalf("InputStatus: %v", err)
	}
	if got != "LAPTOP" {
		t.Fatalf("input = %q, want LAPTOP", got)
	}
}

func TestInputStatusUnknownSignal(t *testing.T) {
	ft := &fakeTransport{responses: [][]byte{statusFrame(0x04, 0x09, 0x99, 0x00)}}
	d := newTestDriver(t, ft, nil)

	if _, err := d.InputStatus(context.Background()); err == nil {
		t.Fatal("expected error for unknown signal tuple")
	}
}

func TestAVMuteStatus(t *testing.T) {
	ft := &fakeTransport{responses: [][]byte{statusFrame(0x04, 0x01, 0x21, 0x01)}}
	d := newTestDriver(t, ft, nil)

	muted, err := d.AVMuteStatus(context.Background())
	if err != nil {
		t.Fatalf("AVMuteStatus: %v", err)
	}
	if !muted {
		t.Fatal("muted = false, want true")
	}
}

func TestLampInfoDecodesSeconds(t *testing.T) {
	// 3,600,000 seconds = 1000 hours, little endian. Life request answers 47%.
	usage := []byte{0x23, 0x96, 0x00, 0x00, 0x06, 0x00, 0x01, 0x80, 0xee, 0x36, 0x00}
	life := []byte{0x23, 0x96, 0x00, 0x00, 0x06, 0x00, 0x04, 0x2f, 0x00, 0x00, 0x00}
	ft := &fakeTransport{responses: [][]byte{usage, life}}
	d := newTestDriver(t, ft, nil)

	lamp, err := d.LampInfo(context.Background())
	if err != nil {
		t.Fatalf("LampInfo: %v", err)
	}
	if lamp.UsageHours != 1000 {
		t.Fatalf("usage hours = %d, want 1000", lamp.UsageHours)
	}
	if lamp.RemainingPercent != 47 {
		t.Fatalf("remaining = %d, want 47", lamp.RemainingPercent)
	}
}

func TestFilterUsageDecodesSeconds(t *testing.T) {
	// 720,000 seconds = 200 hours, little endian.
	data := []byte{0x80, 0xfc, 0x0a, 0x00}
	frame := append([]byte{0x23, 0x95, 0x00, 0x00, byte(len(data))}, data...)
	ft := &fakeTransport{responses: [][]byte{frame}}
	d := newTestDriver(t, ft, nil)

	hours, err := d.FilterUsage(context.Background())
	if err != nil {
		t.Fatalf("FilterUsage: %v", err)
	}
	if hours != 200 {
		t.Fatalf("hours = %d, want 200", hours)
	}
}

func TestDeviceErrorsDecodesBitfield(t *testing.T) {
	data := make([]byte, 12)
	data[0] = 0x40 // lamp or backlight not lit
	data[8] = 0x02 // interlock switch open
	frame := append([]byte{0x20, 0x88, 0x00, 0x00, byte(len(data))}, data...)
	ft := &fakeTransport{responses: [][]byte{frame}}
	d := newTestDriver(t, ft, nil)

	errs, err := d.DeviceErrors(context.Background())
	if err != nil {
		t.Fatalf("DeviceErrors: %v", err)
	}
	if len(errs) != 2 {
		t.Fatalf("errors = %v, want 2 entries", errs)
	}
	if errs[0] != "Lamp or backlight not lit" || errs[1] != "The interlock switch is open" {
		t.Fatalf("unexpected messages: %v", errs)
	}
}

func TestModelNameTruncatesAtNull(t *testing.T) {
	data := append([]byte("NP-P502HL"), 0x00, 0xc2, 0xc2)
	frame := append([]byte{0x20, 0x85, 0x00, 0x00, byte(len(data))}, data...)
	ft := &fakeTransport{responses: [][]byte{frame}}
	d := newTestDriver(t, ft, nil)

	name, err := d.ModelName(context.Background())
	if err != nil {
		t.Fatalf("ModelName: %v", err)
	}
	if name != "NP-P502HL" {
		t.Fatalf("model = %q", name)
	}
}
