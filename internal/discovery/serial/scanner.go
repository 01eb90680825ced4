// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"strings"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"av-control-service/internal/discovery"
	"av-control-service/internal/model"
)

// Scanner enumerates serial ports that could have an AV device on the other
// end. Ports are only listed, never probed: firing bytes at an unknown
// device risks triggering it, and a silent port proves nothing since half of
// these protocols only speak when spoken to in their own framing.
type Scanner struct {
	logger   *zap.Logger
	patterns []string
}

// defaultPortPatterns matches the device names USB serial adapters and
// onboard UARTs get across platforms.
var defaultPortPatterns = []string{
	"ttyUSB", "ttyACM", "ttyS", "usbserial", "COM",
}

// NewScanner creates a serial port scanner. With no patterns, a default set
// covering common UART device names is used.
func NewScanner(logger *zap.Logger, patterns []string) *Scanner {
	if len(patterns) == 0 {
		patterns = defaultPortPatterns
	}
	return &Scanner{
		logger:   logger.With(zap.String("scanner", "serial")),
		patterns: patterns,
	}
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return "serial"
}

// IsAvailable reports whether serial scanning can run on this platform
func (s *Scanner) IsAvailable() bool {
	return true
}

// Scan lists serial ports matching the configured patterns
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredDevice, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}

	var discovered []*discovery.DiscoveredDevice
	for _, port := range ports {
		select {
		case <-ctx.Done():
			return discovered, ctx.Err()
		default:
		}

		if !s.matches(port) {
			s.logger.Debug("Skipping serial port", zap.String("port", port))
			continue
		}

		discovered = append(discovered, &discovery.DiscoveredDevice{
			ConnectionType: model.ConnectionTypeSerial,
			ConnectionInfo: map[string]interface{}{"device": port},
			Confidence:     0.2,
			Detail:         "serial port present, device behind it unknown",
		})
	}

	s.logger.Info("Serial scan completed",
		zap.Int("ports_total", len(ports)),
		zap.Int("ports_matched", len(discovered)),
	)
	return discovered, nil
}

func (s *Scanner) matches(port string) bool {
	for _, pattern := range s.patterns {
		if strings.Contains(port, pattern) {
			return true
		}
	}
	return false
}
