//go:build linux

package nanogio

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// EpollPoller is an edge-triggered epoll poller.
type EpollPoller struct {
	epfd    int
	wakerFd int

	subscribed map[int32]*epollRegistration
	events     []unix.EpollEvent
}

// NewPoller constructs a new [EpollPoller].
func NewPoller() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	// eventfd for waking up the poller from another thread
	wakerFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}

	poller := &EpollPoller{
		epfd:       epfd,
		wakerFd:    wakerFd,
		subscribed: make(map[int32]*epollRegistration),
		events:     make([]unix.EpollEvent, 64),
	}
	if err := poller.add(wakerFd); err != nil {
		_ = poller.Close()
		return nil, err
	}
	return poller, nil
}

func (e *EpollPoller) add(fd int) error {
	event := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(fd)}
	return unix.EpollCtl(e.epfd, unix.EPOLL_CTL_ADD, fd, &event)
}

// Wait implements [Poller].
func (e *EpollPoller) Wait(timeout time.Duration) error {
	n, err := unix.EpollWait(e.epfd, e.events, max(0, int(timeout.Milliseconds())))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			err = nil
		}
		return err
	}

	for i := 0; i < n; i++ {
		fd := e.events[i].Fd
		if int(fd) == e.wakerFd {
			var buf [8]byte
			_, _ = unix.Read(e.wakerFd, buf[:])
			continue
		}
		if reg := e.subscribed[fd]; reg != nil {
			reg.notifyReady()
		}
	}

	return nil
}

// WakeupThreadsafe implements [Poller].
func (e *EpollPoller) WakeupThreadsafe() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(e.wakerFd, buf[:])
	return err
}

// Register implements [Poller].
// The descriptor is registered edge-triggered for read readiness.
func (e *EpollPoller) Register(fd uintptr) (Registration, error) {
	if _, ok := e.subscribed[int32(fd)]; ok {
		return nil, unix.EEXIST
	}
	if err := e.add(int(fd)); err != nil {
		return nil, err
	}

	reg := &epollRegistration{poller: e, fd: int32(fd)}
	e.subscribed[int32(fd)] = reg
	return reg, nil
}

func (e *EpollPoller) unregister(reg *epollRegistration) error {
	delete(e.subscribed, reg.fd)
	return unix.EpollCtl(e.epfd, unix.EPOLL_CTL_DEL, int(reg.fd), nil)
}

// Close implements [Poller].
func (e *EpollPoller) Close() error {
	clear(e.subscribed)
	return errors.Join(unix.Close(e.wakerFd), unix.Close(e.epfd))
}

type epollRegistration struct {
	poller   *EpollPoller
	fd       int32
	ready    bool
	closed   bool
	readyFut *Future[any]
}

func (r *epollRegistration) notifyReady() {
	r.ready = true
	if fut := r.readyFut; fut != nil {
		r.readyFut = nil
		fut.SetResult(nil, nil)
	}
}

// Readable implements [Registration].
func (r *epollRegistration) Readable() bool {
	return r.ready
}

// NeedRead implements [Registration].
func (r *epollRegistration) NeedRead() {
	r.ready = false
}

// WaitForReady implements [Registration].
func (r *epollRegistration) WaitForReady(ctx context.Context) error {
	if r.closed {
		return unix.EBADF
	}
	if r.ready {
		return nil
	}
	if r.readyFut == nil || r.readyFut.HasResult() {
		r.readyFut = NewFuture[any]()
	}
	_, err := r.readyFut.Await(ctx)
	return err
}

// Close implements [Registration].
func (r *epollRegistration) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if fut := r.readyFut; fut != nil {
		r.readyFut = nil
		fut.Cancel(unix.EBADF)
	}
	return r.poller.unregister(r)
}
