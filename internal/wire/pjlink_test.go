package wire

import "testing"

func TestPJLinkEncode(t *testing.T) {
	codec := NewPJLinkCodec()
	cases := []struct {
		in   string
		want string
	}{
		{"POWR 1", "%1POWR 1\r"},
		{"%1POWR ?", "%1POWR ?\r"},
		{"%1INPT 31\r", "%1INPT 31\r"},
	}
	for _, tc := range cases {
		got := codec.Encode(Command{Name: "POWR", Payload: []byte(tc.in)})
		if string(got) != tc.want {
			t.Errorf("Encode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPJLinkDecodeErrorLiterals(t *testing.T) {
	codec := NewPJLinkCodec()
	cases := []struct {
		raw  string
		want ErrorClass
	}{
		{"%1POWR=ERR1\r", ErrUnsupported},
		{"%1INPT=ERR2\r", ErrOutOfRange},
		{"%1POWR=ERR3\r", ErrNotReady},
		{"%1POWR=ERR4\r", ErrFailure},
	}
	for _, tc := range cases {
		out := codec.Decode(Command{Name: "TEST"}, []byte(tc.raw))
		if out.OK() || out.Class() != tc.want {
			t.Errorf("Decode(%q) class = %v, want %v", tc.raw, out.Class(), tc.want)
		}
	}
}

func TestPJLinkDecodeSuccess(t *testing.T) {
	codec := NewPJLinkCodec()
	out := codec.Decode(Command{Name: "POWR?"}, []byte("%1POWR=1\r"))
	if !out.OK() {
		t.Fatalf("Decode returned error: %v", out.Err)
	}
	if string(out.Payload) != "1" {
		t.Errorf("payload = %q, want %q", out.Payload, "1")
	}
}

func TestPJLinkDecodeNoSeparatorIsUnknown(t *testing.T) {
	codec := NewPJLinkCodec()
	out := codec.Decode(Command{Name: "TEST"}, []byte("garbage"))
	if out.OK() || out.Class() != ErrUnknown {
		t.Errorf("garbage must decode to unknown, got %+v", out)
	}
}

func TestIsPJLinkGreeting(t *testing.T) {
	if !IsPJLinkGreeting([]byte("PJLINK 0\r")) {
		t.Error("banner not recognized")
	}
	if IsPJLinkGreeting([]byte("%1POWR=1\r")) {
		t.Error("response misread as banner")
	}
}
