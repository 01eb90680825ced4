package samsung

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"av-control-service/internal/model"
	"av-control-service/internal/session"
	"av-control-service/internal/utils"
	"av-control-service/internal/wire"
)

// fakeTransport records writes; the TV side stays silent like a real set
// usually does.
type fakeTransport struct {
	writes [][]byte
	isOpen bool
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
	return []byte{}, nil
}

func (ft *fakeTransport) ResetInputBuffer() error    { return nil }
func (ft *fakeTransport) Kind() model.ConnectionType { return model.ConnectionTypeSerial }

func newTestDriver(t *testing.T, ft *fakeTransport, overrides map[string]string) *ExLinkDriver {
	t.Helper()

	device := &model.Device{
		DeviceID:   "tv-1",
		DeviceType: model.DeviceTypeTV,
		Brand:      model.BrandSamsung,
		Inputs:     overrides,
	}
	inputs, err := mergeInputCodes(overrides)
	if err != nil {
		t.Fatalf("mergeInputCodes: %v", err)
	}
	return &ExLinkDriver{
		device: device,
		session: session.New(ft, wire.NewExLinkCodec(), zap.NewNop(),
			session.WithFreshConnection(),
		),
		logger: utils.NewDeviceLogger(zap.NewNop(), "tv-1", "TV", "SAMSUNG"),
		inputs: inputs,
	}
}

func assertSingleWrite(t *testing.T, ft *fakeTransport, want []byte) {
	t.Helper()
	if len(ft.writes) != 1 {
		t.Fatalf("wrote %d frames, want 1", len(ft.writes))
	}
	if !bytes.Equal(ft.writes[0], want) {
		t.Fatalf("wrote % x, want % x", ft.writes[0], want)
	}
}

func TestPowerOnFrame(t *testing.T) {
	ft := &fakeTransport{}
	d := newTestDriver(t, ft, nil)

	if err := d.PowerOn(context.Background()); err != nil {
		t.Fatalf("PowerOn: %v", err)
	}
	assertSingleWrite(t, ft, []byte{0x08, 0x22, 0x00, 0x00, 0x00, 0x02, 0xd4})
}

func TestSelectInputFrame(t *testing.T) {
	ft := &fakeTransport{}
	d := newTestDriver(t, ft, nil)

	name, err := d.SelectInput(context.Background(), "HDMI_2")
	if err != nil {
		t.Fatalf("SelectInput: %v", err)
	}
	if name != "HDMI_2" {
		t.Fatalf("name = %q, want %q", name, "HDMI_2")
	}
	assertSingleWrite(t, ft, []byte{0x08, 0x22, 0x0a, 0x00, 0x05, 0x01, 0xc6})
}

func TestSelectInputUnknownName(t *testing.T) {
	ft := &fakeTransport{}
	d := newTestDriver(t, ft, nil)

	if _, err := d.SelectInput(context.Background(), "BETAMAX"); err == nil {
		t.Fatal("expected error for unknown input")
	}
	if len(ft.writes) != 0 {
		t.Fatalf("wrote %d frames, want 0", len(ft.writes))
	}
}

func TestSelectInputConfiguredCode(t *testing.T) {
	ft := &fakeTransport{}
	d := newTestDriver(t, ft, map[string]string{"GAME_CONSOLE": "0x0503"})

	name, err := d.SelectInput(context.Background(), "GAME_CONSOLE")
	if err != nil {
		t.Fatalf("SelectInput: %v", err)
	}
	if name != "GAME_CONSOLE" {
		t.Fatalf("name = %q, want %q", name, "GAME_CONSOLE")
	}

	frame := ft.writes[0]
	if frame[4] != 0x05 || frame[5] != 0x03 {
		t.Fatalf("frame carries code % x, want 05 03", frame[4:6])
	}
}

func TestBadInputCodeRejected(t *testing.T) {
	if _, err := mergeInputCodes(map[string]string{"BAD": "zz"}); err == nil {
		t.Fatal("expected error for non-hex code")
	}
	if _, err := mergeInputCodes(map[string]string{"BAD": "0x05"}); err == nil {
		t.Fatal("expected error for single byte code")
	}
}

func TestSendKey(t *testing.T) {
	ft := &fakeTransport{}
	d := newTestDriver(t, ft, nil)

	if err := d.SendKey(context.Background(), "mute"); err != nil {
		t.Fatalf("SendKey: %v", err)
	}
	assertSingleWrite(t, ft, []byte{0x08, 0x22, 0x02, 0x00, 0x00, 0x00, 0xd4})

	if err := d.SendKey(context.Background(), "EJECT"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestSetVolume(t *testing.T) {
	ft := &fakeTransport{}
	d := newTestDriver(t, ft, nil)

	if err := d.SetVolume(context.Background(), 25); err != nil {
		t.Fatalf("SetVolume: %v", err)
	}
	frame := ft.writes[0]
	if frame[5] != 25 {
		t.Fatalf("frame carries level %d, want 25", frame[5])
	}

	if err := d.SetVolume(context.Background(), 101); err == nil {
		t.Fatal("expected error for out of range volume")
	}
	if err := d.SetVolume(context.Background(), -1); err == nil {
		t.Fatal("expected error for negative volume")
	}
}

func TestSetChannel(t *testing.T) {
	ft := &fakeTransport{}
	d := newTestDriver(t, ft, nil)

	if err := d.SetChannel(context.Background(), 7); err != nil {
		t.Fatalf("SetChannel: %v", err)
	}
	frame := ft.writes[0]
	if frame[5] != 7 {
		t.Fatalf("frame carries channel %d, want 7", frame[5])
	}

	if err := d.SetChannel(context.Background(), 256); err == nil {
		t.Fatal("expected error for out of range channel")
	}
}

func TestStatusQueriesUnsupported(t *testing.T) {
	ft := &fakeTransport{}
	d := newTestDriver(t, ft, nil)

	_, err := d.PowerStatus(context.Background())
	var devErr *wire.DeviceError
	if !errors.As(err, &devErr) || devErr.Class != wire.ErrUnsupported {
		t.Fatalf("PowerStatus error = %v, want unsupported DeviceError", err)
	}

	_, err = d.InputStatus(context.Background())
	if !errors.As(err, &devErr) || devErr.Class != wire.ErrUnsupported {
		t.Fatalf("InputStatus error = %v, want unsupported DeviceError", err)
	}
	if len(ft.writes) != 0 {
		t.Fatalf("wrote %d frames, want 0", len(ft.writes))
	}
}
