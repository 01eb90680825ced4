package kramer

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"av-control-service/internal/model"
	"av-control-service/internal/session"
	"av-control-service/internal/utils"
	"av-control-service/internal/wire"
)

// fakeTransport replays canned responses in order, one per read.
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

func newTestP3000(ft *fakeTransport, inputs, outputs map[string]string) *P3000Driver {
	device := &model.Device{
		DeviceID:   "sw-1",
		DeviceType: model.DeviceTypeSwitcher,
		Brand:      model.BrandKramer,
		Inputs:     inputs,
		Outputs:    outputs,
	}
	return &P3000Driver{
		device: device,
		session: session.New(ft, wire.NewP3000Codec(), zap.NewNop(),
			session.WithFreshConnection(),
		),
		logger:  utils.NewDeviceLogger(zap.NewNop(), "sw-1", "SWITCHER", "KRAMER"),
		inputs:  model.MergeInputMaps(inputs, p3000DefaultInputs),
		outputs: model.MergeInputMaps(outputs, p3000DefaultOutputs),
	}
}

func TestSelectInputFallbackOrder(t *testing.T) {
	ft := &fakeTransport{responses: [][]byte{
		[]byte("~01@ROUTE ERR 002\r\n"),
		[]byte("~01@AV ERR002\r\n"),
		[]byte("~01@VID 2>*\r\n"),
	}}
	d := newTestP3000(ft, nil, nil)

	name, err := d.SelectInput(context.Background(), "2")
	if err != nil {
		t.Fatalf("SelectInput: %v", err)
	}
	if name != "2" {
		t.Fatalf("name = %q, want %q", name, "2")
	}

	want := []string{"#ROUTE 1,*,2\r", "#AV 2>*\r", "#VID 2>*\r"}
	if len(ft.writes) != len(want) {
		t.Fatalf("wrote %d commands, want %d", len(ft.writes), len(want))
	}
	for i, w := range want {
		if string(ft.writes[i]) != w {
			t.Fatalf("write[%d] = %q, want %q", i, ft.writes[i], w)
		}
	}
}

func TestRouteOutOfRangeStopsFallback(t *testing.T) {
	ft := &fakeTransport{responses: [][]byte{
		[]byte("~01@ROUTE ERR 003\r\n"),
	}}
	d := newTestP3000(ft, nil, nil)

	err := d.Route(context.Background(), "ALL", "4")
	var devErr *wire.DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("error = %v, want *wire.DeviceError", err)
	}
	if devErr.Class != wire.ErrOutOfRange {
		t.Fatalf("class = %s, want out_of_range", devErr.Class)
	}
	if len(ft.writes) != 1 {
		t.Fatalf("wrote %d commands, want 1", len(ft.writes))
	}
}

func TestRouteAllCandidatesUnsupported(t *testing.T) {
	ft := &fakeTransport{responses: [][]byte{
		[]byte("~01@ERR 002\r\n"),
		[]byte("~01@ERR 002\r\n"),
		[]byte("~01@ERR 002\r\n"),
	}}
	d := newTestP3000(ft, nil, nil)

	err := d.Route(context.Background(), "ALL", "1")
	if !errors.Is(err, session.ErrPlanExhausted) {
		t.Fatalf("error = %v, want ErrPlanExhausted", err)
	}
	var devErr *wire.DeviceError
	if !errors.As(err, &devErr) || devErr.Class != wire.ErrUnsupported {
		t.Fatalf("error = %v, want Unsupported device error", err)
	}
}

func TestSelectInputUnknownName(t *testing.T) {
	ft := &fakeTransport{}
	d := newTestP3000(ft, nil, nil)

	if _, err := d.SelectInput(context.Background(), "LASERDISC"); err == nil {
		t.Fatal("expected error for unknown input")
	}
	if len(ft.writes) != 0 {
		t.Fatalf("wrote %d commands, want 0", len(ft.writes))
	}
}

func TestRoutesRouteResponse(t *testing.T) {
	ft := &fakeTransport{responses: [][]byte{
		[]byte("~01@ROUTE 1,1,2\r\n~01@ROUTE 1,2,1\r\n"),
	}}
	d := newTestP3000(ft,
		map[string]string{"PC": "1", "DOC_CAM": "2"},
		map[string]string{"LEFT_TV": "1", "RIGHT_TV": "2"},
	)

	routes, err := d.Routes(context.Background())
	if err != nil {
		t.Fatalf("Routes: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("got %d routes, want 2", len(routes))
	}
	if routes[0].Output != "LEFT_TV" || routes[0].Input != "DOC_CAM" {
		t.Fatalf("routes[0] = %+v", routes[0])
	}
	if routes[1].Output != "RIGHT_TV" || routes[1].Input != "PC" {
		t.Fatalf("routes[1] = %+v", routes[1])
	}
}

func TestRoutesVidResponse(t *testing.T) {
	ft := &fakeTransport{responses: [][]byte{
		[]byte("~01@ERR 002\r\n"),
		[]byte("~01@ERR 002\r\n"),
		[]byte("~01@VID 1>1,1>2\r\n"),
	}}
	d := newTestP3000(ft, nil, nil)

	routes, err := d.Routes(context.Background())
	if err != nil {
		t.Fatalf("Routes: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("got %d routes, want 2", len(routes))
	}
	for i, r := range routes {
		if r.Input != "1" {
			t.Fatalf("routes[%d].Input = %q, want %q", i, r.Input, "1")
		}
	}
}

func TestInputStatusReportsFirstRoute(t *testing.T) {
	ft := &fakeTransport{responses: [][]byte{
		[]byte("~01@ROUTE 1,1,2\r\n"),
	}}
	d := newTestP3000(ft, map[string]string{"APPLE_TV": "2"}, nil)

	name, err := d.InputStatus(context.Background())
	if err != nil {
		t.Fatalf("InputStatus: %v", err)
	}
	if name != "APPLE_TV" {
		t.Fatalf("name = %q, want %q", name, "APPLE_TV")
	}
}

func TestPowerOperationsUnsupported(t *testing.T) {
	ft := &fakeTransport{}
	d := newTestP3000(ft, nil, nil)

	for _, err := range []error{
		d.PowerOn(context.Background()),
		d.PowerOff(context.Background()),
	} {
		var devErr *wire.DeviceError
		if !errors.As(err, &devErr) {
			t.Fatalf("error = %v, want *wire.DeviceError", err)
		}
		if devErr.Class != wire.ErrUnsupported {
			t.Fatalf("class = %s, want unsupported", devErr.Class)
		}
	}
	if len(ft.writes) != 0 {
		t.Fatalf("wrote %d commands, want 0", len(ft.writes))
	}
}

func TestPingHandshake(t *testing.T) {
	ft := &fakeTransport{responses: [][]byte{
		[]byte("~01@ OK\r\n"),
	}}
	d := newTestP3000(ft, nil, nil)

	if err := d.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if len(ft.writes) != 1 || string(ft.writes[0]) != "#\r" {
		t.Fatalf("wrote %q", ft.writes)
	}
}
