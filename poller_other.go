//go:build !linux

package nanogio

import (
	"time"
)

// TimerPoller only services timers and thread wake-ups;
// it cannot watch file descriptors.
type TimerPoller struct {
	wakeupCh chan struct{}
}

// NewPoller constructs a new [TimerPoller].
func NewPoller() (Poller, error) {
	return &TimerPoller{wakeupCh: make(chan struct{}, 100)}, nil
}

// Wait implements [Poller].
func (c *TimerPoller) Wait(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-c.wakeupCh:
	}
	return nil
}

// WakeupThreadsafe implements [Poller].
func (c *TimerPoller) WakeupThreadsafe() error {
	select {
	case c.wakeupCh <- struct{}{}:
	default:
	}
	return nil
}

// Register implements [Poller].
func (c *TimerPoller) Register(uintptr) (Registration, error) {
	return nil, ErrNotImplemented
}

// Close implements [Poller].
func (c *TimerPoller) Close() error {
	return nil
}
