// internal/wire/pjlink.go
package wire

import "bytes"

// PJLink class 1 framing, per PJLink specification v2.00. Commands are
// '%1CMD param\r'; responses are '%1CMD=result\r'. On connect the device
// sends a 'PJLINK n' greeting (n=1 means authentication enabled) before any
// command response; the session layer discards it.

// pjlinkErrorCodes maps the four documented error literals.
var pjlinkErrorCodes = map[string]struct {
	message string
	class   ErrorClass
}{
	"ERR1": {"unrecognized command", ErrUnsupported},
	"ERR2": {"parameter out of bounds", ErrOutOfRange},
	"ERR3": {"system unavailable", ErrNotReady},
	"ERR4": {"failure to execute command", ErrFailure},
}

// PJLinkCodec frames PJLink key-value ASCII commands.
type PJLinkCodec struct{}

func NewPJLinkCodec() *PJLinkCodec { return &PJLinkCodec{} }

func (c *PJLinkCodec) Encode(cmd Command) []byte {
	frame := make([]byte, 0, len(cmd.Payload)+3)
	if !bytes.HasPrefix(cmd.Payload, []byte("%1")) {
		frame = append(frame, '%', '1')
	}
	frame = append(frame, cmd.Payload...)
	if !bytes.HasSuffix(frame, []byte("\r")) {
		frame = append(frame, '\r')
	}
	return frame
}

func (c *PJLinkCodec) Decode(cmd Command, raw []byte) Outcome {
	if len(raw) == 0 {
		return Fail(ErrUnknown, cmd.Name, raw, "empty response")
	}
	for literal, known := range pjlinkErrorCodes {
		if bytes.Contains(raw, []byte(literal)) {
			return Fail(known.class, cmd.Name, raw, known.message)
		}
	}
	eq := bytes.IndexByte(raw, '=')
	if eq < 0 {
		return Fail(ErrUnknown, cmd.Name, raw, "response carries no '=' separator")
	}
	payload := bytes.TrimRight(raw[eq+1:], "\r\n")
	return Succeed(payload)
}

// IsPJLinkGreeting reports whether raw is the connection banner the device
// emits before any response ("PJLINK 0" or "PJLINK 1").
func IsPJLinkGreeting(raw []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(raw), []byte("PJLINK"))
}
