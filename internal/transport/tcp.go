// internal/transport/tcp.go
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"av-control-service/internal/model"
)

// TCPConfig holds parameters for a TCP device connection
type TCPConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	ReadTimeout    time.Duration `json:"read_timeout"`
}

// TCPTransport implements Transport over a TCP socket
type TCPTransport struct {
	config *TCPConfig
	conn   net.Conn
	logger *zap.Logger
	mutex  sync.RWMutex
	isOpen bool

	// Counters get their own lock: Read and Write run concurrently under
	// the connection RLock when a notification loop is active.
	statsMu sync.Mutex
	stats   Stats
}

// NewTCPTransport creates a TCP transport. The socket is not dialed until
// Open is called.
func NewTCPTransport(config *TCPConfig, logger *zap.Logger) *TCPTransport {
	return &TCPTransport{
		config: config,
		logger: logger.With(
			zap.String("transport", "tcp"),
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
		),
	}
}

// Open dials the device
func (tt *TCPTransport) Open(ctx context.Context) error {
	tt.mutex.Lock()
	defer tt.mutex.Unlock()

	if tt.isOpen {
		return nil
	}

	address := net.JoinHostPort(tt.config.Host, fmt.Sprintf("%d", tt.config.Port))
	dialer := &net.Dialer{Timeout: tt.config.ConnectTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		tt.recordError()
		tt.logger.Error("Failed to connect", zap.Error(err))
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	tt.conn = conn
	tt.isOpen = true
	tt.setConnected(true)

	tt.logger.Debug("TCP connection established")
	return nil
}

// Close closes the socket
func (tt *TCPTransport) Close() error {
	tt.mutex.Lock()
	defer tt.mutex.Unlock()

	if !tt.isOpen || tt.conn == nil {
		return nil
	}

	if err := tt.conn.Close(); err != nil {
		tt.logger.Error("Failed to close connection", zap.Error(err))
		return fmt.Errorf("failed to close TCP connection: %w", err)
	}

	tt.conn = nil
	tt.isOpen = false
	tt.setConnected(false)
	return nil
}

// IsOpen returns whether the socket is open
func (tt *TCPTransport) IsOpen() bool {
	tt.mutex.RLock()
	defer tt.mutex.RUnlock()
	return tt.isOpen && tt.conn != nil
}

// Write writes data to the socket
func (tt *TCPTransport) Write(ctx context.Context, data []byte) error {
	tt.mutex.RLock()
	defer tt.mutex.RUnlock()

	if !tt.isOpen || tt.conn == nil {
		return ErrNotOpen
	}

	if deadline, ok := ctx.Deadline(); ok {
		tt.conn.SetWriteDeadline(deadline)
	} else {
		tt.conn.SetWriteDeadline(time.Now().Add(tt.config.ReadTimeout))
	}

	n, err := tt.conn.Write(data)
	if err != nil {
		tt.recordError()
		tt.logger.Error("TCP write failed", zap.Error(err))
		return fmt.Errorf("failed to write to TCP connection: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	tt.recordWrite(len(data))
	tt.logger.Debug("TCP write completed", zap.Int("bytes", len(data)))
	return nil
}

// Read reads up to maxBytes from the socket. A read deadline is taken from
// the context when present, otherwise the configured read timeout applies.
// A deadline expiry yields an empty result; a peer close yields
// ErrConnectionClosed so callers can distinguish silence from a dead link.
func (tt *TCPTransport) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	tt.mutex.RLock()
	defer tt.mutex.RUnlock()

	if !tt.isOpen || tt.conn == nil {
		return nil, ErrNotOpen
	}

	if deadline, ok := ctx.Deadline(); ok {
		tt.conn.SetReadDeadline(deadline)
	} else {
		tt.conn.SetReadDeadline(time.Now().Add(tt.config.ReadTimeout))
	}

	buffer := make([]byte, maxBytes)
	n, err := tt.conn.Read(buffer)
	if err != nil {
		if errors.Is(err, io.EOF) {
			tt.setConnected(false)
			return nil, ErrConnectionClosed
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			// Silence within the window, not a failure.
			return []byte{}, nil
		}
		tt.recordError()
		tt.logger.Error("TCP read failed", zap.Error(err))
		return nil, fmt.Errorf("failed to read from TCP connection: %w", err)
	}
	if n == 0 {
		tt.setConnected(false)
		return nil, ErrConnectionClosed
	}

	data := make([]byte, n)
	copy(data, buffer[:n])

	tt.recordRead(n)
	return data, nil
}

// ResetInputBuffer drains any bytes already queued on the socket
func (tt *TCPTransport) ResetInputBuffer() error {
	tt.mutex.RLock()
	defer tt.mutex.RUnlock()

	if !tt.isOpen || tt.conn == nil {
		return ErrNotOpen
	}

	buffer := make([]byte, 4096)
	for {
		tt.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
		n, err := tt.conn.Read(buffer)
		if err != nil || n == 0 {
			break
		}
	}
	tt.conn.SetReadDeadline(time.Time{})
	return nil
}

// Kind returns the connection type
func (tt *TCPTransport) Kind() model.ConnectionType {
	return model.ConnectionTypeTCP
}

// Stats returns a snapshot of the transport counters
func (tt *TCPTransport) Stats() Stats {
	tt.statsMu.Lock()
	defer tt.statsMu.Unlock()
	return tt.stats
}

func (tt *TCPTransport) recordWrite(n int) {
	tt.statsMu.Lock()
	defer tt.statsMu.Unlock()
	tt.stats.BytesWritten += int64(n)
	tt.stats.OperationCount++
	tt.stats.LastActivity = time.Now()
}

func (tt *TCPTransport) recordRead(n int) {
	tt.statsMu.Lock()
	defer tt.statsMu.Unlock()
	tt.stats.BytesRead += int64(n)
	tt.stats.OperationCount++
	tt.stats.LastActivity = time.Now()
}

func (tt *TCPTransport) recordError() {
	tt.statsMu.Lock()
	defer tt.statsMu.Unlock()
	tt.stats.ErrorCount++
}

func (tt *TCPTransport) setConnected(connected bool) {
	tt.statsMu.Lock()
	defer tt.statsMu.Unlock()
	tt.stats.IsConnected = connected
	if connected {
		tt.stats.LastActivity = time.Now()
	}
}
