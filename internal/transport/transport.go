// internal/transport/transport.go
package transport

import (
	"context"
	"errors"
	"time"

	"av-control-service/internal/model"
)

// Transport is a byte-oriented duplex channel to one device. At most one
// logical command is in flight per Transport at a time; callers serialize
// access (the session layer owns that mutex).
type Transport interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Data exchange
	Write(ctx context.Context, data []byte) error
	Read(ctx context.Context, maxBytes int) ([]byte, error)

	// ResetInputBuffer discards any unread inbound bytes.
	ResetInputBuffer() error

	Kind() model.ConnectionType
}

// ErrConnectionClosed is returned when the peer has closed the connection.
// A zero-length TCP read after a successful poll means the device dropped
// the session; it must never be surfaced as an empty successful read.
var ErrConnectionClosed = errors.New("connection closed by device")

// ErrNotOpen is returned for I/O on a transport that is not open.
var ErrNotOpen = errors.New("transport not open")

// Stats provides transport-level statistics
type Stats struct {
	BytesWritten   int64     `json:"bytes_written"`
	BytesRead      int64     `json:"bytes_read"`
	OperationCount int64     `json:"operation_count"`
	ErrorCount     int64     `json:"error_count"`
	LastActivity   time.Time `json:"last_activity"`
	IsConnected    bool      `json:"is_connected"`
}
