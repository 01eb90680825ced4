// internal/notify/synchronizer.go
package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"av-control-service/internal/transport"
)

// ErrWaitTimeout is returned when a queried state change does not arrive
// within the wait window.
var ErrWaitTimeout = errors.New("timed out waiting for device notification")

const (
	// Kramer scaler/switcher message terminator
	messageTerminator = "\r\n>"

	readChunkSize = 2048

	// A partial message this large can only be garbage or a framing
	// mismatch; the buffer is dropped rather than grown without bound.
	maxPendingBytes = 64 * 1024

	funcVideoBlank = 8
	funcPower      = 10
	funcInput      = 30
)

// functionNames maps notification function numbers to readable labels for
// debug logging. State tracking only acts on blank, power, and input.
var functionNames = map[int]string{
	0: "menu", 1: "up", 2: "down", 3: "left", 4: "right", 5: "enter",
	7: "panel lock", 8: "video blank", 9: "video freeze", 10: "power",
	11: "mute", 14: "info", 30: "input", 31: "auto switch",
	80: "output resolution", 82: "aspect ratio", 91: "test pattern",
	450: "input signal",
}

// Synchronizer owns a transport read loop and keeps a State current from
// the notification stream the device emits. Devices in this family report
// every state change, solicited or not, as "Z <subop> <func> <params>"
// messages; queries are answered through the same stream.
type Synchronizer struct {
	tr     transport.Transport
	state  *State
	buffer *Buffer
	logger *zap.Logger
}

// NewSynchronizer creates a synchronizer over an open transport
func NewSynchronizer(tr transport.Transport, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		tr:     tr,
		state:  NewState(),
		buffer: NewBuffer(messageTerminator),
		logger: logger.With(zap.String("component", "notify")),
	}
}

// State returns the tracked device state
func (sy *Synchronizer) State() *State {
	return sy.state
}

// Run reads from the transport until the context is cancelled or the
// transport fails. A transport failure invalidates the state and stops the
// loop; reconnection is the owner's decision, not a silent retry here.
func (sy *Synchronizer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		data, err := sy.tr.Read(ctx, readChunkSize)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sy.state.Invalidate()
			sy.logger.Error("Notification read loop stopped", zap.Error(err))
			return fmt.Errorf("notification read: %w", err)
		}
		if len(data) == 0 {
			continue
		}

		sy.buffer.Append(data)
		sy.drain()
	}
}

// drain handles every complete buffered message and drops the buffer if the
// unterminated tail grows past the sanity limit.
func (sy *Synchronizer) drain() {
	for {
		msg, ok := sy.buffer.Next()
		if !ok {
			break
		}
		sy.handle(msg)
	}
	if pending := sy.buffer.Pending(); pending > maxPendingBytes {
		sy.logger.Warn("Dropping oversized partial message", zap.Int("pending_bytes", pending))
		sy.buffer = NewBuffer(messageTerminator)
	}
}

// QueryAndWait writes a query and waits until the state satisfies the
// predicate or the timeout expires. The last observed snapshot is returned
// either way so callers can report partial knowledge on timeout.
func (sy *Synchronizer) QueryAndWait(ctx context.Context, query []byte, pred func(Snapshot) bool, timeout time.Duration) (Snapshot, error) {
	// Grab the change channel before writing so an answer that races the
	// write is not missed.
	changed := sy.state.Changed()

	if err := sy.tr.Write(ctx, query); err != nil {
		return sy.state.Snapshot(), fmt.Errorf("query write: %w", err)
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		snap := sy.state.Snapshot()
		if pred(snap) {
			return snap, nil
		}

		select {
		case <-changed:
			changed = sy.state.Changed()
		case <-deadline.C:
			return sy.state.Snapshot(), ErrWaitTimeout
		case <-ctx.Done():
			return sy.state.Snapshot(), ctx.Err()
		}
	}
}

// handle classifies one complete message and updates state
func (sy *Synchronizer) handle(msg string) {
	if msg == "" {
		return
	}

	// A bare "-" is the answer to a power query while the unit is on.
	if msg == "-" {
		sy.state.SetPower(true)
		sy.logger.Debug("Power query answered: power is on")
		return
	}

	// Boot chatter: "MAC: ..", "IP: .." and similar lines carry a colon.
	if strings.Contains(msg, ":") {
		sy.logger.Debug("Ignoring boot message", zap.String("message", msg))
		return
	}

	// Firmware version banner printed during boot, first token is the
	// main firmware.
	if strings.Contains(msg, "VTR") {
		sy.logger.Debug("Firmware banner", zap.String("version", strings.Fields(msg)[0]))
		return
	}

	fields := strings.Fields(msg)
	if len(fields) < 3 {
		sy.logger.Debug("Unrecognized notification", zap.String("message", msg))
		return
	}

	fn, err := strconv.Atoi(fields[2])
	if err != nil {
		sy.logger.Debug("Unrecognized notification", zap.String("message", msg))
		return
	}

	// "Y ..." is the echo of a command we sent. Input switches are the
	// exception: the confirming "Z 0 30 x" is not always emitted, so the
	// echo is the only evidence the switch landed. When the confirmation
	// does arrive it passes through the same path and has the final word.
	if fields[0] != "Z" && fn != funcInput {
		sy.logger.Debug("Command echo", zap.String("message", msg))
		return
	}

	if len(fields) < 4 {
		sy.logger.Debug("Notification without parameter", zap.String("message", msg))
		return
	}

	param, err := strconv.Atoi(fields[3])
	if err != nil {
		sy.logger.Debug("Unparseable notification parameter", zap.String("message", msg))
		return
	}

	switch fn {
	case funcVideoBlank:
		sy.state.SetMute(param == 1)
	case funcPower:
		sy.state.SetPower(param == 1)
	case funcInput:
		sy.state.SetInput(param)
	default:
		name, ok := functionNames[fn]
		if !ok {
			name = fmt.Sprintf("function %d", fn)
		}
		sy.logger.Debug("Notification observed",
			zap.String("function", name),
			zap.Int("parameter", param),
		)
	}
}
