// internal/wire/nec.go
package wire

// NEC binary protocol framing, per the NEC control command manual rev 7.1.
//
// Responses: the high order nibble of the first byte is 0x2 on success and
// 0xA on error. Bytes 3-4 are the projector ID. On error, bytes 6 and 7
// (indexes 5 and 6) carry the error code pair. On success, returned data
// usually starts at index 5; the exact offset varies by one command, so the
// codec hands back the slice from necPayloadOffset and drivers index into it.

const necPayloadOffset = 5

// necError pairs the documented message with its normalized class.
type necError struct {
	message string
	class   ErrorClass
}

// Section 2.4 "Error code list" of the NEC manual.
var necErrorCodes = map[[2]byte]necError{
	{0x00, 0x00}: {"the command cannot be recognized", ErrUnsupported},
	{0x00, 0x01}: {"the command is not supported by the model in use", ErrUnsupported},
	{0x01, 0x00}: {"the specified value is invalid", ErrOutOfRange},
	{0x01, 0x01}: {"the specified input terminal is invalid", ErrOutOfRange},
	{0x01, 0x02}: {"the specified language is invalid", ErrOutOfRange},
	{0x02, 0x00}: {"memory allocation error", ErrFailure},
	{0x02, 0x02}: {"memory in use", ErrNotReady},
	{0x02, 0x03}: {"the specified value cannot be set", ErrFailure},
	{0x02, 0x04}: {"forced onscreen mute on", ErrNotReady},
	{0x02, 0x06}: {"viewer error", ErrFailure},
	{0x02, 0x07}: {"no signal", ErrFailure},
	{0x02, 0x08}: {"a test pattern or filter is displayed", ErrNotReady},
	{0x02, 0x09}: {"no PC card is inserted", ErrFailure},
	{0x02, 0x0a}: {"memory operation error", ErrFailure},
	{0x02, 0x0c}: {"an entry list is displayed", ErrNotReady},
	{0x02, 0x0d}: {"the command cannot be accepted because the power is off", ErrNotReady},
	{0x02, 0x0e}: {"the command execution failed", ErrFailure},
	{0x02, 0x0f}: {"there is no authority necessary for the operation", ErrFailure},
	{0x03, 0x00}: {"the specified gain number is incorrect", ErrOutOfRange},
	{0x03, 0x01}: {"the specified gain is invalid", ErrOutOfRange},
	{0x03, 0x02}: {"adjustment failed", ErrFailure},
}

// NECChecksum is the single-byte sum-mod-256 appended to parameterized frames.
func NECChecksum(frame []byte) byte {
	var sum int
	for _, b := range frame {
		sum += int(b)
	}
	return byte(sum & 0xFF)
}

// NECCodec frames NEC checksummed binary commands.
type NECCodec struct{}

func NewNECCodec() *NECCodec { return &NECCodec{} }

func (c *NECCodec) Encode(cmd Command) []byte {
	frame := make([]byte, 0, len(cmd.Payload)+1)
	frame = append(frame, cmd.Payload...)
	if cmd.Checksum {
		frame = append(frame, NECChecksum(frame))
	}
	return frame
}

func (c *NECCodec) Decode(cmd Command, raw []byte) Outcome {
	if len(raw) == 0 {
		return Fail(ErrUnknown, cmd.Name, raw, "empty response")
	}
	switch raw[0] >> 4 {
	case 0x2:
		if len(raw) <= necPayloadOffset {
			// Short but successful frames exist (simple acks); hand
			// back an empty payload rather than misclassifying.
			return Succeed(nil)
		}
		return Succeed(raw[necPayloadOffset:])
	case 0xa:
		if len(raw) < 7 {
			return Fail(ErrUnknown, cmd.Name, raw, "truncated error frame")
		}
		code := [2]byte{raw[5], raw[6]}
		if known, ok := necErrorCodes[code]; ok {
			return Fail(known.class, cmd.Name, raw, known.message)
		}
		return Fail(ErrUnknown, cmd.Name, raw, "undocumented error code")
	default:
		return Fail(ErrUnknown, cmd.Name, raw, "unrecognized response type")
	}
}
