// internal/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"av-control-service/internal/transport"
	"av-control-service/internal/wire"
)

// ErrPlanExhausted is returned when every candidate of a fallback plan was
// rejected as unsupported by the device.
var ErrPlanExhausted = errors.New("all fallback candidates unsupported")

const defaultReadBufferSize = 512

// ExchangeLogger receives the raw bytes of every command exchange.
// *utils.DeviceLogger satisfies it.
type ExchangeLogger interface {
	LogExchange(command string, sent, received []byte)
}

// Session serializes command exchanges against a single device transport.
// One session owns one transport; concurrent callers are queued on the
// session mutex so request/response pairs never interleave on the wire.
type Session struct {
	mu              sync.Mutex
	tr              transport.Transport
	codec           wire.Codec
	logger          *zap.Logger
	fresh           bool
	discardGreeting bool
	readBufferSize  int
	postWriteDelay  time.Duration
	exchange        ExchangeLogger
}

// Option configures a Session
type Option func(*Session)

// WithFreshConnection makes the session open the transport before each
// command and close it after. Several projector protocols (NEC, PJLink)
// behave best with a short-lived connection per exchange.
func WithFreshConnection() Option {
	return func(s *Session) { s.fresh = true }
}

// WithGreetingDiscard makes the session read and drop one banner line right
// after the transport opens. PJLink devices send "PJLINK 0" on connect.
func WithGreetingDiscard() Option {
	return func(s *Session) { s.discardGreeting = true }
}

// WithReadBufferSize overrides the per-exchange read buffer size
func WithReadBufferSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.readBufferSize = n
		}
	}
}

// WithPostWriteDelay inserts a pause between write and read for devices that
// need settle time before answering.
func WithPostWriteDelay(d time.Duration) Option {
	return func(s *Session) { s.postWriteDelay = d }
}

// WithExchangeLogger routes the raw sent and received bytes of every
// exchange to el.
func WithExchangeLogger(el ExchangeLogger) Option {
	return func(s *Session) { s.exchange = el }
}

// New creates a session over the given transport and codec
func New(tr transport.Transport, codec wire.Codec, logger *zap.Logger, opts ...Option) *Session {
	s := &Session{
		tr:             tr,
		codec:          codec,
		logger:         logger.With(zap.String("component", "session")),
		readBufferSize: defaultReadBufferSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transport exposes the underlying transport for callers that run their own
// read loop (notification-driven devices).
func (s *Session) Transport() transport.Transport {
	return s.tr
}

// Open opens the underlying transport unless the session runs in
// fresh-connection mode, where Execute manages the lifecycle itself.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fresh {
		return nil
	}
	return s.open(ctx)
}

// Close closes the underlying transport
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tr.Close()
}

// IsOpen reports whether the transport is currently open
func (s *Session) IsOpen() bool {
	return s.tr.IsOpen()
}

// Execute sends one command and reads one response. The returned error
// covers transport failures only; device-reported errors come back inside
// the Outcome.
func (s *Session) Execute(ctx context.Context, cmd wire.Command) (wire.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.execute(ctx, cmd)
}

func (s *Session) execute(ctx context.Context, cmd wire.Command) (wire.Outcome, error) {
	opID := uuid.New().String()
	logger := s.logger.With(
		zap.String("operation_id", opID),
		zap.String("command", cmd.Name),
	)

	if s.fresh {
		if err := s.open(ctx); err != nil {
			return wire.Outcome{}, err
		}
		defer s.closeQuiet(logger)
	} else if !s.tr.IsOpen() {
		if err := s.open(ctx); err != nil {
			return wire.Outcome{}, err
		}
	}

	// Stale bytes from a previous exchange would corrupt this decode.
	if err := s.tr.ResetInputBuffer(); err != nil {
		logger.Debug("Input buffer reset failed", zap.Error(err))
	}

	frame := s.codec.Encode(cmd)
	start := time.Now()

	if err := s.tr.Write(ctx, frame); err != nil {
		logger.Error("Command write failed", zap.Error(err))
		return wire.Outcome{}, fmt.Errorf("write %s: %w", cmd.Name, err)
	}

	if s.postWriteDelay > 0 {
		select {
		case <-time.After(s.postWriteDelay):
		case <-ctx.Done():
			return wire.Outcome{}, ctx.Err()
		}
	}

	raw, err := s.tr.Read(ctx, s.readBufferSize)
	if err != nil {
		logger.Error("Response read failed", zap.Error(err))
		return wire.Outcome{}, fmt.Errorf("read %s: %w", cmd.Name, err)
	}

	if s.exchange != nil {
		s.exchange.LogExchange(cmd.Name, frame, raw)
	}

	outcome := s.codec.Decode(cmd, raw)

	if outcome.OK() {
		logger.Debug("Command completed",
			zap.Duration("duration", time.Since(start)),
			zap.Int("response_bytes", len(raw)),
		)
	} else {
		logger.Debug("Command rejected by device",
			zap.Duration("duration", time.Since(start)),
			zap.String("error_class", outcome.Err.Class.String()),
			zap.String("detail", outcome.Err.Detail),
		)
	}

	return outcome, nil
}

// ExecuteWithFallback runs candidates in order until one is accepted. Only
// an Unsupported rejection advances to the next candidate; any other device
// error is the device's answer and is returned as-is. The second return
// value is the index of the candidate that produced the outcome. An
// exhausted plan yields an Unsupported outcome naming the last candidate,
// and an error matching both ErrPlanExhausted and the outcome's DeviceError.
func (s *Session) ExecuteWithFallback(ctx context.Context, candidates []wire.Command) (wire.Outcome, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(candidates) == 0 {
		return wire.Outcome{}, -1, fmt.Errorf("empty fallback plan")
	}

	for i, cmd := range candidates {
		outcome, err := s.execute(ctx, cmd)
		if err != nil {
			return wire.Outcome{}, i, err
		}
		if outcome.OK() || outcome.Err.Class != wire.ErrUnsupported {
			return outcome, i, nil
		}
		s.logger.Debug("Candidate unsupported, trying next",
			zap.String("command", cmd.Name),
			zap.Int("candidate", i),
			zap.Int("remaining", len(candidates)-i-1),
		)
	}

	last := candidates[len(candidates)-1]
	outcome := wire.Fail(wire.ErrUnsupported, last.Name, nil, "no fallback candidate accepted")
	return outcome, len(candidates) - 1,
		fmt.Errorf("%w: %w", ErrPlanExhausted, outcome.Err)
}

func (s *Session) open(ctx context.Context) error {
	if s.tr.IsOpen() {
		return nil
	}
	if err := s.tr.Open(ctx); err != nil {
		return err
	}
	if s.discardGreeting {
		banner, err := s.tr.Read(ctx, s.readBufferSize)
		if err != nil {
			s.tr.Close()
			return fmt.Errorf("greeting read: %w", err)
		}
		if wire.IsPJLinkGreeting(banner) {
			s.logger.Debug("Discarded connection greeting", zap.ByteString("banner", banner))
		} else if len(banner) > 0 {
			s.logger.Warn("Unexpected bytes in place of greeting", zap.Binary("data", banner))
		}
	}
	return nil
}

func (s *Session) closeQuiet(logger *zap.Logger) {
	if err := s.tr.Close(); err != nil {
		logger.Debug("Transport close failed", zap.Error(err))
	}
}
