package tcp

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"

	"av-control-service/internal/model"
)

// startFakeDevice listens on an ephemeral port and answers each connection
// with the given banner. Returns the host, port, and a stop function.
func startFakeDevice(t *testing.T, banner []byte) (string, int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			if len(banner) > 0 {
				conn.Write(banner)
			}
			time.Sleep(50 * time.Millisecond)
			conn.Close()
		}
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}

// withProbes swaps the probe table for the duration of a test
func withProbes(t *testing.T, probes []probe) {
	t.Helper()
	saved := avPorts
	avPorts = probes
	t.Cleanup(func() { avPorts = saved })
}

func TestScanIdentifiesPJLinkBanner(t *testing.T) {
	host, port := startFakeDevice(t, []byte("PJLINK 0\r"))

	withProbes(t, []probe{{
		port:       port,
		brand:      model.BrandPJLink,
		deviceType: model.DeviceTypeProjector,
		confidence: 0.5,
		detail:     "PJLink port open",
		banner:     avPorts[0].banner,
	}})

	s := NewScanner(zap.NewNop(), []string{host}, time.Second)
	devices, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("found %d devices, want 1", len(devices))
	}

	d := devices[0]
	if d.Brand != model.BrandPJLink || d.Confidence < 0.9 {
		t.Fatalf("device = %+v, want PJLink with high confidence", d)
	}
	if d.ConnectionInfo["host"] != host || d.ConnectionInfo["port"] != port {
		t.Fatalf("connection info = %v", d.ConnectionInfo)
	}
}

func TestScanOpenPortWithoutBannerKeepsBaseConfidence(t *testing.T) {
	host, port := startFakeDevice(t, nil)

	withProbes(t, []probe{{
		port:       port,
		brand:      model.BrandKramer,
		deviceType: model.DeviceTypeSwitcher,
		confidence: 0.4,
		detail:     "Kramer Protocol 3000 port open",
	}})

	s := NewScanner(zap.NewNop(), []string{host}, time.Second)
	devices, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("found %d devices, want 1", len(devices))
	}
	if devices[0].Brand != model.BrandKramer || devices[0].Confidence != 0.4 {
		t.Fatalf("device = %+v", devices[0])
	}
}

func TestScanSilentHostFindsNothing(t *testing.T) {
	withProbes(t, []probe{{
		port:       1, // nothing listens here
		brand:      model.BrandNEC,
		deviceType: model.DeviceTypeProjector,
		confidence: 0.5,
	}})

	s := NewScanner(zap.NewNop(), []string{"127.0.0.1"}, 200*time.Millisecond)
	devices, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(devices) != 0 {
		t.Fatalf("found %d devices, want 0", len(devices))
	}
}

func TestScannerUnavailableWithoutHosts(t *testing.T) {
	s := NewScanner(zap.NewNop(), nil, time.Second)
	if s.IsAvailable() {
		t.Fatal("scanner with no hosts should not be available")
	}
}
