package wire

import (
	"bytes"
	"testing"
)

func TestP3000Encode(t *testing.T) {
	codec := NewP3000Codec()
	cases := []struct {
		in   string
		want string
	}{
		{"ROUTE 1,1,2", "#ROUTE 1,1,2\r"},
		{"#VID 1>2", "#VID 1>2\r"},
		{"#AV? *\r", "#AV? *\r"},
	}
	for _, tc := range cases {
		got := codec.Encode(Command{Name: "SELECT", Payload: []byte(tc.in)})
		if string(got) != tc.want {
			t.Errorf("Encode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestP3000DecodeErrorSpacingVariants(t *testing.T) {
	codec := NewP3000Codec()
	cases := []struct {
		raw  string
		want ErrorClass
	}{
		{"~01@ERR 001\r\n", ErrSyntax},
		{"~01@ERR001\r\n", ErrSyntax},
		{"~01@VID ERR 002\r\n", ErrUnsupported},
		{"~01@VID ERR002\r\n", ErrUnsupported},
		{"~01@ROUTE ERR  003\r\n", ErrOutOfRange},
		{"~01@ERR 042\r\n", ErrUnknown},
	}
	for _, tc := range cases {
		out := codec.Decode(Command{Name: "TEST"}, []byte(tc.raw))
		if out.OK() {
			t.Fatalf("Decode(%q) succeeded, want %v", tc.raw, tc.want)
		}
		if out.Class() != tc.want {
			t.Errorf("Decode(%q) class = %v, want %v", tc.raw, out.Class(), tc.want)
		}
	}
}

func TestP3000DecodeSuccessStripsEnvelope(t *testing.T) {
	codec := NewP3000Codec()
	out := codec.Decode(Command{Name: "ROUTE?"}, []byte("~01@ROUTE 1,1,2\r\n"))
	if !out.OK() {
		t.Fatalf("Decode returned error: %v", out.Err)
	}
	if string(out.Payload) != "ROUTE 1,1,2" {
		t.Errorf("payload = %q, want %q", out.Payload, "ROUTE 1,1,2")
	}
}

func TestP3000DecodeMultiLineKeepsInteriorSeparators(t *testing.T) {
	codec := NewP3000Codec()
	raw := []byte("~01@ROUTE 1,1,1\r\n~01@ROUTE 1,2,1\r\n")
	out := codec.Decode(Command{Name: "ROUTE?"}, raw)
	if !out.OK() {
		t.Fatalf("Decode returned error: %v", out.Err)
	}
	if !bytes.Contains(out.Payload, []byte("\r\n")) {
		t.Errorf("interior separator lost: %q", out.Payload)
	}
}

func TestP3000DecodeEmptyIsUnknown(t *testing.T) {
	codec := NewP3000Codec()
	out := codec.Decode(Command{Name: "TEST"}, nil)
	if out.OK() || out.Class() != ErrUnknown {
		t.Errorf("empty response must decode to unknown, got %+v", out)
	}
}
