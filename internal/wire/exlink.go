// internal/wire/exlink.go
package wire

// Samsung Ex-Link framing. Every frame is checksummed with the two's
// complement of the byte sum: checksum = (0x100 - sum(frame)) & 0xFF.
// Samsung does not document the response format, so decode treats anything
// received as an opaque success payload; callers log the raw bytes.

// ExLinkChecksum computes the Ex-Link trailer byte.
func ExLinkChecksum(frame []byte) byte {
	var sum int
	for _, b := range frame {
		sum += int(b)
	}
	return byte((0x100 - sum) & 0xFF)
}

// ExLinkCodec frames Samsung Ex-Link commands.
type ExLinkCodec struct{}

func NewExLinkCodec() *ExLinkCodec { return &ExLinkCodec{} }

func (c *ExLinkCodec) Encode(cmd Command) []byte {
	frame := make([]byte, 0, len(cmd.Payload)+1)
	frame = append(frame, cmd.Payload...)
	// Ex-Link checksums every frame regardless of cmd.Checksum.
	frame = append(frame, ExLinkChecksum(frame))
	return frame
}

func (c *ExLinkCodec) Decode(cmd Command, raw []byte) Outcome {
	return Succeed(raw)
}
