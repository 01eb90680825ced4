package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"av-control-service/internal/model"
)

func TestBufferSplitsAcrossChunkBoundaries(t *testing.T) {
	b := NewBuffer("\r\n>")

	// One terminator split across two chunks, plus a partial tail.
	b.Append([]byte("Z 0 30 2\r"))
	if _, ok := b.Next(); ok {
		t.Fatal("message yielded before terminator complete")
	}
	b.Append([]byte("\n>Z 0 10 1\r\n"))
	msg, ok := b.Next()
	if !ok || msg != "Z 0 30 2" {
		t.Fatalf("first message = %q ok=%v", msg, ok)
	}
	if _, ok := b.Next(); ok {
		t.Fatal("partial tail yielded as message")
	}
	b.Append([]byte(">"))
	msg, ok = b.Next()
	if !ok || msg != "Z 0 10 1" {
		t.Fatalf("second message = %q ok=%v", msg, ok)
	}
	if b.Pending() != 0 {
		t.Fatalf("pending = %d after draining", b.Pending())
	}
	b.Append([]byte("Z 0 8"))
	if b.Pending() != 5 {
		t.Fatalf("pending = %d, want 5", b.Pending())
	}
}

func TestSynchronizerDropsOversizedPartial(t *testing.T) {
	sy := NewSynchronizer(&streamTransport{}, zap.NewNop())

	// A stream with no terminator in sight gets discarded, and parsing
	// recovers on the next complete message.
	sy.buffer.Append(make([]byte, maxPendingBytes+1))
	sy.drain()
	if got := sy.buffer.Pending(); got != 0 {
		t.Fatalf("pending = %d after overflow, want 0", got)
	}
	sy.buffer.Append([]byte("Z 0 10 1\r\n>"))
	sy.drain()
	if got := sy.State().Snapshot().Power; got != On {
		t.Fatalf("power = %s after recovery, want on", got)
	}
}

// streamTransport feeds chunks to the synchronizer read loop, then reports
// the configured terminal error.
type streamTransport struct {
	chunks   [][]byte
	finalErr error
	writes   [][]byte
}

func (st *streamTransport) Open(ctx context.Context) error { return nil }
func (st *streamTransport) Close() error                   { return nil }
func (st *streamTransport) IsOpen() bool                   { return true }

func (st *streamTransport) Write(ctx context.Context, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	st.writes = append(st.writes, buf)
	return nil
}

func (st *streamTransport) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	if len(st.chunks) == 0 {
		if st.finalErr != nil {
			return nil, st.finalErr
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	chunk := st.chunks[0]
	st.chunks = st.chunks[1:]
	return chunk, nil
}

func (st *streamTransport) ResetInputBuffer() error    { return nil }
func (st *streamTransport) Kind() model.ConnectionType { return model.ConnectionTypeSerial }

func TestSynchronizerTracksStateFromChunkedStream(t *testing.T) {
	linkDown := errors.New("link down")
	st := &streamTransport{
		chunks: [][]byte{
			// Echo of an input switch command, then the confirmation,
			// split mid-message.
			[]byte("Y 0 30 3\r\n>Z 0 "),
			[]byte("30 3\r\n>Z 0 10 "),
			[]byte("1\r\n>Z 0 8 1\r\n>"),
		},
		finalErr: linkDown,
	}
	sy := NewSynchronizer(st, zap.NewNop())

	// Feed the whole script; the loop ends on the terminal error and must
	// invalidate state.
	err := sy.Run(context.Background())
	if !errors.Is(err, linkDown) {
		t.Fatalf("Run: %v", err)
	}
	snap := sy.State().Snapshot()
	if snap.Power != Unknown || snap.InputKnown {
		t.Fatalf("state not invalidated after transport failure: %+v", snap)
	}
}

func TestSynchronizerHandlesMessages(t *testing.T) {
	sy := NewSynchronizer(&streamTransport{}, zap.NewNop())

	sy.handle("Z 0 10 1")
	sy.handle("Z 0 30 4")
	sy.handle("Z 0 8 0")
	snap := sy.State().Snapshot()
	if snap.Power != On {
		t.Fatalf("power = %s, want on", snap.Power)
	}
	if !snap.InputKnown || snap.Input != 4 {
		t.Fatalf("input = %d known=%v, want 4/true", snap.Input, snap.InputKnown)
	}
	if snap.Mute != Off {
		t.Fatalf("mute = %s, want off", snap.Mute)
	}

	// Echo of an input switch counts as evidence; other echoes do not.
	sy.handle("Y 0 30 2")
	if got := sy.State().Snapshot().Input; got != 2 {
		t.Fatalf("input after echo = %d, want 2", got)
	}
	sy.handle("Y 0 10 0")
	if got := sy.State().Snapshot().Power; got != On {
		t.Fatalf("power changed by echo: %s", got)
	}

	// When a confirmation does follow the echo, it has the final word.
	sy.handle("Z 0 30 6")
	if got := sy.State().Snapshot().Input; got != 6 {
		t.Fatalf("input after confirmation = %d, want 6", got)
	}
}

func TestSynchronizerBarePowerQuirk(t *testing.T) {
	sy := NewSynchronizer(&streamTransport{}, zap.NewNop())
	sy.handle("-")
	if got := sy.State().Snapshot().Power; got != On {
		t.Fatalf("power = %s, want on", got)
	}
}

func TestSynchronizerIgnoresBootNoise(t *testing.T) {
	sy := NewSynchronizer(&streamTransport{}, zap.NewNop())
	sy.handle("IP: 192.168.1.39")
	sy.handle("VTR1.21 VTX1.07 VPD1.10")
	sy.handle("Z 0 999 7")
	snap := sy.State().Snapshot()
	if snap.Power != Unknown || snap.Mute != Unknown || snap.InputKnown {
		t.Fatalf("noise mutated state: %+v", snap)
	}
}

func TestQueryAndWaitTimesOut(t *testing.T) {
	st := &streamTransport{}
	sy := NewSynchronizer(st, zap.NewNop())

	start := time.Now()
	_, err := sy.QueryAndWait(context.Background(), []byte("Y 1 10\r"),
		func(s Snapshot) bool { return s.Power != Unknown },
		50*time.Millisecond)
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("want ErrWaitTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("wait not bounded: %v", elapsed)
	}
	if len(st.writes) != 1 || string(st.writes[0]) != "Y 1 10\r" {
		t.Fatalf("query not written: %v", st.writes)
	}
}

func TestQueryAndWaitSeesUpdate(t *testing.T) {
	st := &streamTransport{}
	sy := NewSynchronizer(st, zap.NewNop())

	go func() {
		time.Sleep(10 * time.Millisecond)
		sy.State().SetPower(true)
	}()

	snap, err := sy.QueryAndWait(context.Background(), []byte("Y 1 10\r"),
		func(s Snapshot) bool { return s.Power == On },
		time.Second)
	if err != nil {
		t.Fatalf("QueryAndWait: %v", err)
	}
	if snap.Power != On {
		t.Fatalf("power = %s", snap.Power)
	}
}
