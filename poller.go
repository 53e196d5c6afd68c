package nanogio

import (
	"context"
	"time"
)

// Poller is the OS-facing half of an [EventLoop].
type Poller interface {
	// Wait blocks until a registered descriptor becomes ready,
	// the timeout expires, or WakeupThreadsafe is called.
	Wait(timeout time.Duration) error
	WakeupThreadsafe() error
	Register(fd uintptr) (Registration, error)
	Close() error
}

// Reactor registers file descriptors for read readiness notifications.
// [*EventLoop] is a Reactor once it is running.
type Reactor interface {
	Register(fd uintptr) (Registration, error)
}

// Registration is a reactor's record of one descriptor.
//
// Readiness observed by the reactor is latched until NeedRead is called;
// a Registration never queries the descriptor itself.
type Registration interface {
	// Readable reports whether the descriptor signalled read readiness
	// since the last call to NeedRead.
	Readable() bool
	// NeedRead clears the latched readiness and asks for a wake-up
	// on the next readiness edge.
	NeedRead()
	// WaitForReady suspends the calling coroutine until the descriptor is readable.
	WaitForReady(ctx context.Context) error
	// Close removes the descriptor from the reactor without closing it.
	Close() error
}
