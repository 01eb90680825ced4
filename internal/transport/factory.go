// internal/transport/factory.go
package transport

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"av-control-service/internal/model"
)

// New creates a transport based on connection type and configuration
func New(connectionType model.ConnectionType, config map[string]interface{}, logger *zap.Logger) (Transport, error) {
	switch connectionType {
	case model.ConnectionTypeSerial:
		return newSerialTransport(config, logger)
	case model.ConnectionTypeTCP:
		return newTCPTransport(config, logger)
	default:
		return nil, fmt.Errorf("unsupported connection type: %s", connectionType)
	}
}

// newSerialTransport builds a serial transport from a device connection config
func newSerialTransport(config map[string]interface{}, logger *zap.Logger) (Transport, error) {
	serialConfig := &SerialConfig{
		BaudRate:    9600,
		DataBits:    8,
		StopBits:    1,
		Parity:      "none",
		ReadTimeout: 2 * time.Second,
	}

	// Parse device path
	if device, ok := config["device"].(string); ok {
		serialConfig.Device = device
	} else {
		return nil, fmt.Errorf("serial device is required")
	}

	// Parse baud rate
	if baudRate, ok := config["baud_rate"]; ok {
		switch v := baudRate.(type) {
		case float64:
			serialConfig.BaudRate = int(v)
		case int:
			serialConfig.BaudRate = v
		}
	}

	// Parse data bits
	if dataBits, ok := config["data_bits"]; ok {
		switch v := dataBits.(type) {
		case float64:
			serialConfig.DataBits = int(v)
		case int:
			serialConfig.DataBits = v
		}
	}

	// Parse stop bits
	if stopBits, ok := config["stop_bits"]; ok {
		switch v := stopBits.(type) {
		case float64:
			serialConfig.StopBits = int(v)
		case int:
			serialConfig.StopBits = v
		}
	}

	// Parse parity
	if parity, ok := config["parity"].(string); ok {
		serialConfig.Parity = parity
	}

	// Parse read timeout
	if timeout, ok := config["read_timeout"].(string); ok {
		if dur, err := time.ParseDuration(timeout); err == nil {
			serialConfig.ReadTimeout = dur
		}
	}

	logger.Info("Creating serial transport",
		zap.String("device", serialConfig.Device),
		zap.Int("baud_rate", serialConfig.BaudRate),
	)

	return NewSerialTransport(serialConfig, logger), nil
}

// newTCPTransport builds a TCP transport from a device connection config
func newTCPTransport(config map[string]interface{}, logger *zap.Logger) (Transport, error) {
	tcpConfig := &TCPConfig{
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    2 * time.Second,
	}

	// Parse host
	if host, ok := config["host"].(string); ok {
		tcpConfig.Host = host
	} else {
		return nil, fmt.Errorf("TCP host is required")
	}

	// Parse port
	if port, ok := config["port"]; ok {
		switch v := port.(type) {
		case float64:
			tcpConfig.Port = int(v)
		case int:
			tcpConfig.Port = v
		}
	}
	if tcpConfig.Port <= 0 || tcpConfig.Port > 65535 {
		return nil, fmt.Errorf("TCP port is required and must be 1-65535")
	}

	// Parse connect timeout
	if timeout, ok := config["connect_timeout"].(string); ok {
		if dur, err := time.ParseDuration(timeout); err == nil {
			tcpConfig.ConnectTimeout = dur
		}
	}

	// Parse read timeout
	if timeout, ok := config["read_timeout"].(string); ok {
		if dur, err := time.ParseDuration(timeout); err == nil {
			tcpConfig.ReadTimeout = dur
		}
	}

	logger.Info("Creating TCP transport",
		zap.String("host", tcpConfig.Host),
		zap.Int("port", tcpConfig.Port),
	)

	return NewTCPTransport(tcpConfig, logger), nil
}
