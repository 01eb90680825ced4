// internal/discovery/tcp/scanner.go
package tcp

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"av-control-service/internal/discovery"
	"av-control-service/internal/model"
	"av-control-service/internal/wire"
)

// probe describes one well-known AV control port and what an open socket
// there suggests.
type probe struct {
	port       int
	brand      model.DeviceBrand
	deviceType model.DeviceType
	confidence float64
	detail     string

	// banner inspects the first bytes the device volunteers. Nil for
	// protocols that stay silent until addressed.
	banner func(data []byte) (float64, string, bool)
}

// avPorts are probed on every host, most conclusive first. Only PJLink
// identifies itself; the binary and Protocol 3000 ports prove nothing beyond
// something listening on a number those vendors use.
var avPorts = []probe{
	{
		port:       4352,
		brand:      model.BrandPJLink,
		deviceType: model.DeviceTypeProjector,
		confidence: 0.5,
		detail:     "PJLink port open",
		banner: func(data []byte) (float64, string, bool) {
			if wire.IsPJLinkGreeting(data) {
				return 0.95, "PJLink greeting received", true
			}
			return 0, "", false
		},
	},
	{
		port:       7142,
		brand:      model.BrandNEC,
		deviceType: model.DeviceTypeProjector,
		confidence: 0.5,
		detail:     "NEC projector control port open",
	},
	{
		port:       5000,
		brand:      model.BrandKramer,
		deviceType: model.DeviceTypeSwitcher,
		confidence: 0.4,
		detail:     "Kramer Protocol 3000 port open",
	},
}

// Scanner probes a host list for the TCP control ports AV devices listen on
type Scanner struct {
	logger      *zap.Logger
	hosts       []string
	connTimeout time.Duration
}

// NewScanner creates a TCP scanner over an explicit host list. Sweeping
// whole subnets is deliberately not done from here; give it the hosts the
// room documentation names.
func NewScanner(logger *zap.Logger, hosts []string, connTimeout time.Duration) *Scanner {
	if connTimeout <= 0 {
		connTimeout = 2 * time.Second
	}
	return &Scanner{
		logger:      logger.With(zap.String("scanner", "tcp")),
		hosts:       hosts,
		connTimeout: connTimeout,
	}
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return "tcp"
}

// IsAvailable reports whether there is anything to scan
func (s *Scanner) IsAvailable() bool {
	return len(s.hosts) > 0
}

// Scan probes each host's AV control ports, reporting the first port that
// answers per host.
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredDevice, error) {
	var discovered []*discovery.DiscoveredDevice

	for _, host := range s.hosts {
		select {
		case <-ctx.Done():
			return discovered, ctx.Err()
		default:
		}

		if device := s.probeHost(ctx, host); device != nil {
			discovered = append(discovered, device)
		}
	}

	s.logger.Info("TCP scan completed",
		zap.Int("hosts_probed", len(s.hosts)),
		zap.Int("devices_found", len(discovered)),
	)
	return discovered, nil
}

func (s *Scanner) probeHost(ctx context.Context, host string) *discovery.DiscoveredDevice {
	dialer := net.Dialer{Timeout: s.connTimeout}

	for _, p := range avPorts {
		addr := net.JoinHostPort(host, fmt.Sprintf("%d", p.port))
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			continue
		}

		confidence, detail := p.confidence, p.detail
		if p.banner != nil {
			if c, d, ok := s.readBanner(conn, p.banner); ok {
				confidence, detail = c, d
			}
		}
		conn.Close()

		s.logger.Debug("Host answered",
			zap.String("host", host),
			zap.Int("port", p.port),
			zap.String("detail", detail),
		)

		return &discovery.DiscoveredDevice{
			ConnectionType: model.ConnectionTypeTCP,
			ConnectionInfo: map[string]interface{}{"host": host, "port": p.port},
			Brand:          p.brand,
			DeviceType:     p.deviceType,
			Confidence:     confidence,
			Detail:         detail,
		}
	}
	return nil
}

func (s *Scanner) readBanner(conn net.Conn, inspect func([]byte) (float64, string, bool)) (float64, string, bool) {
	conn.SetReadDeadline(time.Now().Add(s.connTimeout))
	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	if err != nil || n == 0 {
		return 0, "", false
	}
	return inspect(buf[:n])
}
