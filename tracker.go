package nanogio

import (
	"context"

	E "github.com/sagernet/sing/common/exceptions"
)

// Readiness is the outcome of polling a [Tracker].
type Readiness int

const (
	NotReady Readiness = iota
	Ready
)

func (r Readiness) String() string {
	if r == Ready {
		return "ready"
	}
	return "not ready"
}

// edge is the state of an edge-triggered readiness latch.
//
// An armed edge asks the reactor on every observation; once the reactor has
// reported readiness the edge disarms and keeps answering Ready without asking,
// until the consumer finds there is no more work and schedules it again.
type edge uint8

const (
	armed edge = iota
	disarmed
)

// observe returns the current readiness, consulting query only while armed.
func (e *edge) observe(query func() bool) Readiness {
	if *e == disarmed {
		return Ready
	}
	if !query() {
		return NotReady
	}
	*e = disarmed
	return Ready
}

func (e *edge) schedule() {
	*e = armed
}

func (e edge) String() string {
	if e == armed {
		return "armed"
	}
	return "disarmed"
}

// Tracker adapts a descriptor's readiness notifications to polling.
//
// The transport behind the descriptor may still refuse to make progress after
// the descriptor signalled readiness. Callers report that with [Tracker.Schedule],
// which re-arms the tracker so the next poll waits for a fresh notification.
type Tracker struct {
	reg   Registration
	state edge
}

// NewTracker registers fd with the reactor for read readiness.
func NewTracker(fd uintptr, reactor Reactor) (*Tracker, error) {
	reg, err := reactor.Register(fd)
	if err != nil {
		return nil, E.Cause(err, "register fd ", fd)
	}
	return &Tracker{reg: reg, state: armed}, nil
}

// Poll reports whether the descriptor is believed to be ready.
// When it is not, a wake-up is requested from the reactor.
func (t *Tracker) Poll() Readiness {
	return t.state.observe(func() bool {
		if t.reg.Readable() {
			return true
		}
		t.reg.NeedRead()
		return false
	})
}

// Schedule re-arms the tracker and requests a wake-up on the next readiness edge.
func (t *Tracker) Schedule() {
	t.state.schedule()
	t.reg.NeedRead()
}

// Wait suspends the calling coroutine until the reactor reports readiness.
func (t *Tracker) Wait(ctx context.Context) error {
	return t.reg.WaitForReady(ctx)
}

// Close unregisters the descriptor. The descriptor itself stays open.
func (t *Tracker) Close() error {
	return t.reg.Close()
}

func (t *Tracker) String() string {
	return t.state.String()
}
