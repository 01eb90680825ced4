// internal/transport/serial.go
package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"av-control-service/internal/model"
)

// SerialConfig holds RS-232 parameters. AV gear is universally 8N1; only the
// device path, baud rate, and read timeout vary per device.
type SerialConfig struct {
	Device      string        `json:"device"`
	BaudRate    int           `json:"baud_rate"`
	DataBits    int           `json:"data_bits"`
	StopBits    int           `json:"stop_bits"`
	Parity      string        `json:"parity"`
	ReadTimeout time.Duration `json:"read_timeout"`
}

// SerialTransport implements Transport for RS-232 connections
type SerialTransport struct {
	config *SerialConfig
	port   serial.Port
	logger *zap.Logger
	mutex  sync.RWMutex
	isOpen bool

	// Counters get their own lock: Read and Write run concurrently under
	// the connection RLock when a notification loop is active.
	statsMu sync.Mutex
	stats   Stats
}

// NewSerialTransport creates a serial transport. The port is not opened
// until Open is called.
func NewSerialTransport(config *SerialConfig, logger *zap.Logger) *SerialTransport {
	return &SerialTransport{
		config: config,
		logger: logger.With(
			zap.String("transport", "serial"),
			zap.String("device", config.Device),
		),
	}
}

// Open opens the serial port
func (st *SerialTransport) Open(ctx context.Context) error {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	if st.isOpen {
		return nil
	}

	mode := &serial.Mode{
		BaudRate: st.config.BaudRate,
		DataBits: st.config.DataBits,
		StopBits: serial.StopBits(st.config.StopBits),
	}

	switch st.config.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	default:
		mode.Parity = serial.NoParity
	}

	port, err := serial.Open(st.config.Device, mode)
	if err != nil {
		st.logger.Error("Failed to open serial port", zap.Error(err))
		return fmt.Errorf("failed to open serial port %s: %w", st.config.Device, err)
	}

	if err := port.SetReadTimeout(st.config.ReadTimeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	st.port = port
	st.isOpen = true
	st.setConnected(true)

	st.logger.Debug("Serial port opened",
		zap.Int("baud_rate", st.config.BaudRate),
		zap.Duration("read_timeout", st.config.ReadTimeout),
	)
	return nil
}

// Close closes the serial port
func (st *SerialTransport) Close() error {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	if !st.isOpen || st.port == nil {
		return nil
	}

	if err := st.port.Close(); err != nil {
		st.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	st.port = nil
	st.isOpen = false
	st.setConnected(false)
	return nil
}

// IsOpen returns whether the port is open
func (st *SerialTransport) IsOpen() bool {
	st.mutex.RLock()
	defer st.mutex.RUnlock()
	return st.isOpen && st.port != nil
}

// Write writes data to the serial port
func (st *SerialTransport) Write(ctx context.Context, data []byte) error {
	st.mutex.RLock()
	defer st.mutex.RUnlock()

	if !st.isOpen || st.port == nil {
		return ErrNotOpen
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	n, err := st.port.Write(data)
	if err != nil {
		st.recordError()
		st.logger.Error("Serial write failed", zap.Error(err))
		return fmt.Errorf("failed to write to serial port: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	st.recordWrite(len(data))
	st.logger.Debug("Serial write completed", zap.Int("bytes", len(data)))
	return nil
}

// Read reads up to maxBytes from the serial port, blocking at most the
// configured read timeout. A timeout yields an empty (not nil-error) result,
// matching serial semantics where silence is a normal outcome.
func (st *SerialTransport) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	st.mutex.RLock()
	defer st.mutex.RUnlock()

	if !st.isOpen || st.port == nil {
		return nil, ErrNotOpen
	}

	buffer := make([]byte, maxBytes)

	done := make(chan struct {
		data []byte
		err  error
	}, 1)

	go func() {
		n, err := st.port.Read(buffer)
		result := struct {
			data []byte
			err  error
		}{}

		if err != nil {
			if err == io.EOF {
				result.data = buffer[:n]
			} else {
				result.err = fmt.Errorf("failed to read from serial port: %w", err)
			}
		} else {
			result.data = make([]byte, n)
			copy(result.data, buffer[:n])
		}
		done <- result
	}()

	select {
	case result := <-done:
		if result.err != nil {
			st.recordError()
			return nil, result.err
		}
		st.recordRead(len(result.data))
		return result.data, nil

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ResetInputBuffer discards unread inbound bytes
func (st *SerialTransport) ResetInputBuffer() error {
	st.mutex.RLock()
	defer st.mutex.RUnlock()

	if !st.isOpen || st.port == nil {
		return ErrNotOpen
	}
	return st.port.ResetInputBuffer()
}

// Kind returns the connection type
func (st *SerialTransport) Kind() model.ConnectionType {
	return model.ConnectionTypeSerial
}

// Stats returns a snapshot of the transport counters
func (st *SerialTransport) Stats() Stats {
	st.statsMu.Lock()
	defer st.statsMu.Unlock()
	return st.stats
}

func (st *SerialTransport) recordWrite(n int) {
	st.statsMu.Lock()
	defer st.statsMu.Unlock()
	st.stats.BytesWritten += int64(n)
	st.stats.OperationCount++
	st.stats.LastActivity = time.Now()
}

func (st *SerialTransport) recordRead(n int) {
	st.statsMu.Lock()
	defer st.statsMu.Unlock()
	st.stats.BytesRead += int64(n)
	st.stats.OperationCount++
	st.stats.LastActivity = time.Now()
}

func (st *SerialTransport) recordError() {
	st.statsMu.Lock()
	defer st.statsMu.Unlock()
	st.stats.ErrorCount++
}

func (st *SerialTransport) setConnected(connected bool) {
	st.statsMu.Lock()
	defer st.statsMu.Unlock()
	st.stats.IsConnected = connected
	if connected {
		st.stats.LastActivity = time.Now()
	}
}
