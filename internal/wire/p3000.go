// internal/wire/p3000.go
package wire

import (
	"bytes"
	"regexp"
	"strings"
)

// Kramer Protocol 3000 framing. Commands are '#CMD\r'; responses are
// '~NN@...\r\n' where NN is the device ID. Errors appear as 'ERR XXX' with
// zero or more spaces between token and code, varying by model (the VS-42UHD
// inserts spaces, the VS-211UHD does not), so matching uses a regexp.

var p3000ErrPattern = regexp.MustCompile(`ERR\s*(\d{3})`)

// p3000ErrorCodes per the Protocol 3000 reference.
var p3000ErrorCodes = map[string]ErrorClass{
	"001": ErrSyntax,      // syntax error
	"002": ErrUnsupported, // command not available on this device
	"003": ErrOutOfRange,  // parameter out of range
}

// P3000Codec frames Kramer Protocol 3000 ASCII commands.
type P3000Codec struct{}

func NewP3000Codec() *P3000Codec { return &P3000Codec{} }

func (c *P3000Codec) Encode(cmd Command) []byte {
	frame := make([]byte, 0, len(cmd.Payload)+2)
	if !bytes.HasPrefix(cmd.Payload, []byte("#")) {
		frame = append(frame, '#')
	}
	frame = append(frame, cmd.Payload...)
	if !bytes.HasSuffix(frame, []byte("\r")) {
		frame = append(frame, '\r')
	}
	return frame
}

func (c *P3000Codec) Decode(cmd Command, raw []byte) Outcome {
	if len(raw) == 0 {
		return Fail(ErrUnknown, cmd.Name, raw, "empty response")
	}
	if m := p3000ErrPattern.FindSubmatch(raw); m != nil {
		code := string(m[1])
		if class, ok := p3000ErrorCodes[code]; ok {
			return Fail(class, cmd.Name, raw, "device reported ERR "+code)
		}
		return Fail(ErrUnknown, cmd.Name, raw, "device reported ERR "+code)
	}
	return Succeed(stripP3000Envelope(raw))
}

// stripP3000Envelope removes the '~NN@' response prologue and the trailing
// '\r\n' epilogue, leaving the body. Multi-line responses keep their interior
// separators; callers that need per-line routing info split on '\r\n'.
func stripP3000Envelope(raw []byte) []byte {
	body := strings.TrimSuffix(string(raw), "\r\n")
	if at := strings.Index(body, "@"); at >= 0 && strings.HasPrefix(body, "~") {
		body = body[at+1:]
	}
	return []byte(body)
}
