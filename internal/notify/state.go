// internal/notify/state.go
package notify

import "sync"

// Tristate is a device property that may be unknown, for example before the
// first notification arrives or after the link drops.
type Tristate int

const (
	Unknown Tristate = iota
	Off
	On
)

func (t Tristate) String() string {
	switch t {
	case Off:
		return "off"
	case On:
		return "on"
	default:
		return "unknown"
	}
}

func tristate(on bool) Tristate {
	if on {
		return On
	}
	return Off
}

// Snapshot is a point-in-time copy of the tracked device state
type Snapshot struct {
	Power      Tristate
	Mute       Tristate
	Input      int
	InputKnown bool
}

// State tracks device properties updated from unsolicited notifications.
// Readers take snapshots; waiters block on a channel that is closed and
// replaced on every update.
type State struct {
	mu      sync.Mutex
	snap    Snapshot
	changed chan struct{}
}

// NewState creates a state tracker with everything unknown
func NewState() *State {
	return &State{changed: make(chan struct{})}
}

// Snapshot returns a copy of the current state
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Changed returns a channel closed on the next state update. Callers must
// re-acquire the channel after each wakeup.
func (s *State) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// SetPower records the power state
func (s *State) SetPower(on bool) {
	s.update(func(snap *Snapshot) { snap.Power = tristate(on) })
}

// SetMute records the AV mute (video blank) state
func (s *State) SetMute(on bool) {
	s.update(func(snap *Snapshot) { snap.Mute = tristate(on) })
}

// SetInput records the selected input
func (s *State) SetInput(input int) {
	s.update(func(snap *Snapshot) {
		snap.Input = input
		snap.InputKnown = true
	})
}

// Invalidate resets everything to unknown. Called when the transport dies;
// stale state must not be served as truth.
func (s *State) Invalidate() {
	s.update(func(snap *Snapshot) {
		*snap = Snapshot{}
	})
}

func (s *State) update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap)
	close(s.changed)
	s.changed = make(chan struct{})
}
