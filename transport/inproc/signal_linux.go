//go:build linux

package inproc

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// signal is a level indicator backed by an eventfd.
// The descriptor is readable while the counter is non-zero.
type signal struct {
	fd int
}

func newSignal() (*signal, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &signal{fd: fd}, nil
}

func (s *signal) raise() {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	// EAGAIN means the counter is saturated, which still reads as raised
	_, _ = unix.Write(s.fd, buf[:])
}

func (s *signal) clear() {
	var buf [8]byte
	_, _ = unix.Read(s.fd, buf[:])
}

func (s *signal) close() error {
	return unix.Close(s.fd)
}
