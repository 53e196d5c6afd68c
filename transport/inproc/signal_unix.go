//go:build unix && !linux

package inproc

import (
	"golang.org/x/sys/unix"
)

// signal is a level indicator backed by a non-blocking self-pipe.
// The read end is readable while at least one byte is buffered.
type signal struct {
	fd int
	w  int
}

func newSignal() (*signal, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, err
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return nil, err
		}
	}
	return &signal{fd: fds[0], w: fds[1]}, nil
}

func (s *signal) raise() {
	_, _ = unix.Write(s.w, []byte{1})
}

func (s *signal) clear() {
	var buf [64]byte
	for {
		if n, err := unix.Read(s.fd, buf[:]); n <= 0 || err != nil {
			return
		}
	}
}

func (s *signal) close() error {
	err := unix.Close(s.w)
	if cerr := unix.Close(s.fd); err == nil {
		err = cerr
	}
	return err
}
