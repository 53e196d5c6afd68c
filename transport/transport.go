// Package transport describes the message socket library consumed by nanogio.
//
// A transport hands out non-blocking sockets ([Handle]) that expose raw file
// descriptors for readiness notification. A descriptor becoming readable only
// hints that the matching non-blocking call may make progress; the call itself
// may still report [ErrWouldBlock].
package transport

import (
	"errors"
	"syscall"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock is returned by non-blocking operations that cannot make progress yet.
var ErrWouldBlock = iox.ErrWouldBlock

var (
	ErrTerminated           = errors.New("transport terminated")
	ErrAddrInUse            = errors.New("address in use")
	ErrInvalidAddress       = errors.New("invalid address")
	ErrProtocolNotSupported = errors.New("protocol not supported")
	ErrBadHandle            = errors.New("bad socket handle")
	ErrNoSuchEndpoint       = errors.New("no such endpoint")
	ErrNotSupported         = errors.New("operation not supported by socket")
)

// IsWouldBlock reports whether err means "try again later".
func IsWouldBlock(err error) bool {
	return errors.Is(err, ErrWouldBlock) || errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}

// Transport opens sockets for a communication pattern.
type Transport interface {
	Open(pattern Pattern) (Handle, error)
}

// Handle is a single non-blocking transport socket.
// A Handle is not safe for concurrent use.
type Handle interface {
	// ReceiveFd returns the descriptor that becomes readable when a message may be received.
	ReceiveFd() (uintptr, error)
	// SendFd returns the descriptor that becomes readable when a message may be sent.
	SendFd() (uintptr, error)

	Bind(addr string) (Endpoint, error)
	Connect(addr string) (Endpoint, error)

	// TryRecv appends one whole message to dst.
	// Returns ErrWouldBlock if no message is queued.
	TryRecv(dst []byte) ([]byte, error)
	// TrySend queues msg as one message.
	// Returns ErrWouldBlock if the message cannot be queued right now.
	TrySend(msg []byte) (int, error)

	// Name returns a diagnostic name no longer than maxLen bytes.
	Name(maxLen int) (string, error)
	Close() error
}

// Endpoint is a bound or connected address.
type Endpoint interface {
	Shutdown() error
}

// Subscriber is implemented by handles of the [Sub] pattern.
type Subscriber interface {
	Subscribe(topic []byte) error
	Unsubscribe(topic []byte) error
}
