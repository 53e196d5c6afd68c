package nanogio

import (
	"errors"
	"fmt"

	E "github.com/sagernet/sing/common/exceptions"
	"github.com/sirupsen/logrus"

	"github.com/arvidfm/nanogio/transport"
)

const (
	maxSocketNameLength = 128
	unknownSocketName   = "Unable to get socket name"
)

// PollState is the outcome of [Stream.PollNext].
type PollState int

const (
	// PollPending means no message is available yet; the socket's receive
	// tracker will wake the caller once one might be.
	PollPending PollState = iota
	// PollItem means Poll.Item holds the next message.
	PollItem
	// PollEnd means the stream is exhausted.
	PollEnd
)

// Poll is the result of [Stream.PollNext].
type Poll struct {
	State PollState
	Item  []byte
}

// SendState is the outcome of [Sink.TrySend].
type SendState int

const (
	// SendRejected means the message was not queued and must be resubmitted.
	SendRejected SendState = iota
	// SendAccepted means the message was handed to the transport.
	SendAccepted
)

// SendResult is the result of [Sink.TrySend]. A rejected message is returned in Item.
type SendResult struct {
	State SendState
	Item  []byte
}

// Stream is a source of inbound messages.
type Stream interface {
	// PollNext tries to take the next message without blocking.
	PollNext() (Poll, error)
}

// Sink is a destination for outbound messages.
type Sink interface {
	// TrySend tries to hand msg to the transport without blocking.
	TrySend(msg []byte) (SendResult, error)
	// PollFlush reports whether everything accepted has been flushed.
	PollFlush() error
}

// Option configures a [Socket].
type Option func(*Socket)

// WithLogger sets the logger entry the socket logs to.
func WithLogger(log *logrus.Entry) Option {
	return func(s *Socket) {
		s.log = log
	}
}

// WithMetrics makes the socket record its traffic in m.
func WithMetrics(m *Metrics) Option {
	return func(s *Socket) {
		s.metrics = m
	}
}

// WithReadBufferSize sets the initial capacity of the buffer each message is read into.
func WithReadBufferSize(size int) Option {
	return func(s *Socket) {
		s.readBufferSize = size
	}
}

// Socket drives a non-blocking transport socket from an event loop.
//
// A Socket is a [Stream] if its pattern can receive and a [Sink] if it can send.
// It must be bound or connected, exactly once, before any message is transferred.
//
// A Socket is owned by a single coroutine; it performs no locking.
type Socket struct {
	handle   transport.Handle
	pattern  transport.Pattern
	name     string
	endpoint transport.Endpoint
	recv     *Tracker
	send     *Tracker
	closed   bool

	log            *logrus.Entry
	metrics        *Metrics
	readBufferSize int
}

var (
	_ Stream = (*Socket)(nil)
	_ Sink   = (*Socket)(nil)
)

// NewSocket opens a transport socket for the given pattern and registers its
// descriptors with the reactor. Fails with [ErrNoDirection] if neither the
// receive nor the send descriptor could be registered.
func NewSocket(reactor Reactor, t transport.Transport, pattern transport.Pattern, opts ...Option) (*Socket, error) {
	handle, err := t.Open(pattern)
	if err != nil {
		return nil, E.Cause(err, "open ", pattern, " socket")
	}

	s := &Socket{
		handle:  handle,
		pattern: pattern,
		log:     NewLogger("socket"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.name, err = handle.Name(maxSocketNameLength)
	if err != nil {
		s.name = unknownSocketName
	}
	s.log = s.log.WithFields(logrus.Fields{"socket": s.name, "pattern": pattern.String()})

	if fd, err := handle.ReceiveFd(); err == nil {
		s.recv = s.newTracker(reactor, fd, directionRecv)
	}
	if fd, err := handle.SendFd(); err == nil {
		s.send = s.newTracker(reactor, fd, directionSend)
	}

	// at least one direction must be pollable
	if s.recv == nil && s.send == nil {
		_ = handle.Close()
		return nil, E.Cause(ErrNoDirection, pattern, " socket")
	}
	return s, nil
}

func (s *Socket) newTracker(reactor Reactor, fd uintptr, direction string) *Tracker {
	tracker, err := NewTracker(fd, reactor)
	if err != nil {
		s.log.WithError(err).Debugf("%s direction unavailable", direction)
		return nil
	}
	return tracker
}

// Name returns the transport's diagnostic name for the socket.
func (s *Socket) Name() string {
	return s.name
}

// Pattern returns the pattern the socket was opened with.
func (s *Socket) Pattern() transport.Pattern {
	return s.pattern
}

// Handle returns the underlying transport socket, for setting transport
// specific options. Messages must only be transferred through the Socket.
func (s *Socket) Handle() transport.Handle {
	return s.handle
}

// AsStream returns the socket as a [Stream] if it can receive.
func (s *Socket) AsStream() (Stream, bool) {
	if s.recv == nil {
		return nil, false
	}
	return s, true
}

// AsSink returns the socket as a [Sink] if it can send.
func (s *Socket) AsSink() (Sink, bool) {
	if s.send == nil {
		return nil, false
	}
	return s, true
}

// Bind binds the socket to addr.
// Fails with [ErrAlreadyAttached] if the socket was already bound or connected.
func (s *Socket) Bind(addr string) error {
	return s.attach("bind", addr, s.handle.Bind)
}

// Connect connects the socket to addr.
// Fails with [ErrAlreadyAttached] if the socket was already bound or connected.
func (s *Socket) Connect(addr string) error {
	return s.attach("connect", addr, s.handle.Connect)
}

func (s *Socket) attach(op, addr string, f func(string) (transport.Endpoint, error)) error {
	if s.closed {
		return ErrClosed
	}
	if s.endpoint != nil {
		return E.Cause(ErrAlreadyAttached, op, " ", addr)
	}

	endpoint, err := f(addr)
	if err != nil {
		return E.Cause(err, op, " ", addr)
	}
	s.endpoint = endpoint
	s.log.WithField("address", addr).Debug(op)
	return nil
}

// Subscribe adds a topic prefix to a sub socket.
func (s *Socket) Subscribe(topic []byte) error {
	sub, ok := s.handle.(transport.Subscriber)
	if !ok {
		return transport.ErrNotSupported
	}
	return sub.Subscribe(topic)
}

// Unsubscribe removes a topic prefix from a sub socket.
func (s *Socket) Unsubscribe(topic []byte) error {
	sub, ok := s.handle.(transport.Subscriber)
	if !ok {
		return transport.ErrNotSupported
	}
	return sub.Unsubscribe(topic)
}

func (s *Socket) ready(tracker *Tracker) error {
	switch {
	case s.closed:
		return ErrClosed
	case s.endpoint == nil:
		s.log.Error("endpoint is empty")
		return ErrNotAttached
	case tracker == nil:
		return ErrUnsupportedDirection
	}
	return nil
}

// PollNext implements [Stream].
func (s *Socket) PollNext() (Poll, error) {
	s.log.Trace("trying to poll the socket")
	if err := s.ready(s.recv); err != nil {
		return Poll{}, err
	}

	if s.recv.Poll() == NotReady {
		s.log.Trace("receive fd not ready")
		return Poll{State: PollPending}, nil
	}

	msg, err := s.handle.TryRecv(make([]byte, 0, s.readBufferSize))
	switch {
	case err == nil:
		s.log.Tracef("read ok, got %d bytes", len(msg))
		s.metrics.transferred(s.pattern.String(), directionRecv, len(msg))
		return Poll{State: PollItem, Item: msg}, nil
	case transport.IsWouldBlock(err):
		s.log.Trace("would block while reading from socket")
		s.metrics.wouldBlock(s.pattern.String(), directionRecv)
		s.recv.Schedule()
		return Poll{State: PollPending}, nil
	case errors.Is(err, transport.ErrTerminated):
		return Poll{State: PollEnd}, nil
	default:
		return Poll{}, err
	}
}

// TrySend implements [Sink].
// A rejected message is returned unchanged and must be resubmitted;
// the socket keeps no copy of it.
func (s *Socket) TrySend(msg []byte) (SendResult, error) {
	s.log.Trace("sending message")
	if err := s.ready(s.send); err != nil {
		return SendResult{}, err
	}

	if s.send.Poll() == NotReady {
		s.log.Trace("send fd not ready")
		return SendResult{State: SendRejected, Item: msg}, nil
	}

	n, err := s.handle.TrySend(msg)
	switch {
	case err == nil:
		s.log.Tracef("write ok, wrote %d bytes", n)
		s.metrics.transferred(s.pattern.String(), directionSend, n)
		return SendResult{State: SendAccepted}, nil
	case transport.IsWouldBlock(err):
		s.log.Trace("would block while writing to socket")
		s.metrics.wouldBlock(s.pattern.String(), directionSend)
		s.send.Schedule()
		return SendResult{State: SendRejected, Item: msg}, nil
	default:
		return SendResult{}, err
	}
}

// PollFlush implements [Sink]. Messages are never buffered by the socket,
// so there is never anything to flush.
func (s *Socket) PollFlush() error {
	return nil
}

// Close shuts down the endpoint, if any, unregisters the socket's descriptors
// and closes the transport socket. Only the first call has any effect.
//
// A failing endpoint shutdown breaks the transport's contract; it is logged
// and reported as [ErrShutdown], but the socket is released regardless.
func (s *Socket) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.endpoint != nil {
		if err := s.endpoint.Shutdown(); err != nil {
			s.log.WithError(err).Error("socket endpoint shutdown failed")
			errs = append(errs, fmt.Errorf("%w: %w", ErrShutdown, err))
		}
		s.endpoint = nil
	}
	for _, tracker := range []*Tracker{s.recv, s.send} {
		if tracker != nil {
			errs = append(errs, tracker.Close())
		}
	}
	errs = append(errs, s.handle.Close())
	return errors.Join(errs...)
}

func (s *Socket) String() string {
	trackerState := func(t *Tracker) string {
		if t == nil {
			return "none"
		}
		return t.String()
	}
	return fmt.Sprintf("Socket{socket: %q, endpoint: %t, recv: %s, send: %s}",
		s.name, s.endpoint != nil, trackerState(s.recv), trackerState(s.send))
}
