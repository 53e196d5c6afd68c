package nanogio

import (
	E "github.com/sagernet/sing/common/exceptions"
)

var (
	ErrNotImplemented = E.New("not implemented on this platform")
	ErrLoopNotRunning = E.New("event loop is not running")

	// ErrNoDirection is returned when a socket has neither a pollable
	// receive descriptor nor a pollable send descriptor.
	ErrNoDirection = E.New("socket has no pollable direction")
	// ErrAlreadyAttached is returned by a second bind or connect.
	ErrAlreadyAttached = E.New("socket already has an endpoint")
	// ErrNotAttached is returned when polling a socket before bind or connect.
	ErrNotAttached = E.New("socket has no endpoint")
	// ErrUnsupportedDirection is returned when receiving on a send-only
	// socket or sending on a receive-only one.
	ErrUnsupportedDirection = E.New("direction not supported by socket")
	// ErrShutdown wraps the error of an endpoint that failed to shut down.
	ErrShutdown = E.New("endpoint shutdown failed")
	ErrClosed   = E.New("socket closed")
)
