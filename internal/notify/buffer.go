// internal/notify/buffer.go
package notify

import (
	"bytes"
	"strings"
)

// Buffer accumulates raw transport bytes and splits them into complete
// messages on a terminator. Devices deliver data in arbitrary chunks, so a
// message boundary can land anywhere; the tail after the last terminator is
// retained for the next Append.
type Buffer struct {
	terminator []byte
	pending    []byte
}

// NewBuffer creates a message buffer splitting on the given terminator
func NewBuffer(terminator string) *Buffer {
	return &Buffer{terminator: []byte(terminator)}
}

// Append adds raw bytes to the buffer
func (b *Buffer) Append(data []byte) {
	b.pending = append(b.pending, data...)
}

// Next returns the next complete message with the terminator stripped and
// surrounding whitespace trimmed. The second return value is false when no
// complete message is buffered.
func (b *Buffer) Next() (string, bool) {
	idx := bytes.Index(b.pending, b.terminator)
	if idx < 0 {
		return "", false
	}
	msg := string(b.pending[:idx])
	b.pending = b.pending[idx+len(b.terminator):]
	return strings.TrimSpace(msg), true
}

// Pending returns the number of buffered bytes not yet forming a message
func (b *Buffer) Pending() int {
	return len(b.pending)
}
