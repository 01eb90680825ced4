// internal/wire/wire.go
package wire

import "fmt"

// ErrorClass normalizes device-specific error bytes and substrings onto a
// shared taxonomy. This is the single place per-brand quirks are flattened;
// everything above the codecs speaks only in these terms.
type ErrorClass int

const (
	// ErrUnknown covers unparseable or undocumented responses. The raw
	// bytes are always preserved so the error table can be extended later.
	ErrUnknown ErrorClass = iota

	// ErrUnsupported means the command or feature is absent on this model.
	// Often non-fatal: it is what drives fallback candidates.
	ErrUnsupported

	// ErrOutOfRange means a parameter was rejected as invalid.
	ErrOutOfRange

	// ErrNotReady means the device is busy, off, or cooling and cannot
	// accept the command right now. Callers should retry later, not loop.
	ErrNotReady

	// ErrSyntax means the frame itself was malformed. Always a driver bug.
	ErrSyntax

	// ErrFailure is a device-reported generic command failure.
	ErrFailure
)

func (c ErrorClass) String() string {
	switch c {
	case ErrUnsupported:
		return "unsupported"
	case ErrOutOfRange:
		return "out_of_range"
	case ErrNotReady:
		return "not_ready"
	case ErrSyntax:
		return "syntax"
	case ErrFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Command is one logical device command ready for framing.
type Command struct {
	// Name identifies the command in logs and errors ("POWER_ON", "#ROUTE").
	Name string

	// Payload is the opcode plus parameters for binary protocols, or the
	// ASCII command body (without prologue/epilogue) for text protocols.
	Payload []byte

	// Checksum indicates a trailing integrity byte must be appended.
	// Only meaningful for checksummed binary protocols.
	Checksum bool
}

// DeviceError is a classified device- or frame-level error. It carries the
// command that provoked it and the raw response bytes so callers can render
// a precise message rather than a generic one.
type DeviceError struct {
	Class   ErrorClass
	Command string
	Raw     []byte
	Detail  string
}

func (e *DeviceError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s, raw=% x)", e.Command, e.Detail, e.Class, e.Raw)
	}
	return fmt.Sprintf("%s: %s (raw=% x)", e.Command, e.Class, e.Raw)
}

// Outcome is the result of one command exchange: a success payload or a
// classified error, never both.
type Outcome struct {
	Payload []byte
	Err     *DeviceError
}

// OK reports whether the exchange succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Class returns the error class, or ErrUnknown for a success outcome.
func (o Outcome) Class() ErrorClass {
	if o.Err == nil {
		return ErrUnknown
	}
	return o.Err.Class
}

// Succeed builds a success outcome.
func Succeed(payload []byte) Outcome {
	return Outcome{Payload: payload}
}

// Fail builds an error outcome.
func Fail(class ErrorClass, cmd string, raw []byte, detail string) Outcome {
	return Outcome{Err: &DeviceError{Class: class, Command: cmd, Raw: raw, Detail: detail}}
}

// Codec frames logical commands into transport bytes and interprets raw
// response bytes. Decode must never panic on truncated or garbage input;
// anything unparseable becomes an ErrUnknown outcome carrying the raw bytes.
type Codec interface {
	Encode(cmd Command) []byte
	Decode(cmd Command, raw []byte) Outcome
}
