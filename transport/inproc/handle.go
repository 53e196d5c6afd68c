package inproc

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	E "github.com/sagernet/sing/common/exceptions"

	"github.com/arvidfm/nanogio/transport"
)

var serials atomix.Uint32

// Handle is an inproc socket.
// Like every [transport.Handle] it must be used by one goroutine at a time,
// but distinct handles may live on distinct goroutines.
type Handle struct {
	t       *Transport
	pattern transport.Pattern
	serial  uint32
	recvSig *signal
	sendSig *signal
	closed  atomic.Bool

	mu       sync.Mutex
	incoming []*pipe
	outgoing []*pipe
	nextIn   int
	nextOut  int
	topics   [][]byte

	// guarded by t.mu
	endpoints []*endpoint
}

var (
	_ transport.Handle     = (*Handle)(nil)
	_ transport.Subscriber = (*Handle)(nil)
)

func newHandle(t *Transport, pattern transport.Pattern) (*Handle, error) {
	h := &Handle{
		t:       t,
		pattern: pattern,
		serial:  serials.Add(1),
	}

	var err error
	if pattern.CanRecv() {
		if h.recvSig, err = newSignal(); err != nil {
			return nil, err
		}
	}
	if pattern.CanSend() {
		if h.sendSig, err = newSignal(); err != nil {
			_ = h.closeSignals()
			return nil, err
		}
		if pattern == transport.Pub {
			// publishing never blocks
			h.sendSig.raise()
		}
	}
	return h, nil
}

func (h *Handle) check() error {
	if h.closed.Load() {
		return transport.ErrBadHandle
	}
	if h.t.terminated.Load() {
		return transport.ErrTerminated
	}
	return nil
}

// Pattern returns the pattern the handle was opened with.
func (h *Handle) Pattern() transport.Pattern {
	return h.pattern
}

// ReceiveFd implements [transport.Handle].
func (h *Handle) ReceiveFd() (uintptr, error) {
	if err := h.check(); err != nil {
		return 0, err
	}
	if h.recvSig == nil {
		return 0, E.Cause(transport.ErrNotSupported, "receive fd of ", h.pattern, " socket")
	}
	return uintptr(h.recvSig.fd), nil
}

// SendFd implements [transport.Handle].
func (h *Handle) SendFd() (uintptr, error) {
	if err := h.check(); err != nil {
		return 0, err
	}
	if h.sendSig == nil {
		return 0, E.Cause(transport.ErrNotSupported, "send fd of ", h.pattern, " socket")
	}
	return uintptr(h.sendSig.fd), nil
}

// Bind implements [transport.Handle].
func (h *Handle) Bind(addr string) (transport.Endpoint, error) {
	if err := h.check(); err != nil {
		return nil, err
	}
	return h.t.bind(h, addr)
}

// Connect implements [transport.Handle].
func (h *Handle) Connect(addr string) (transport.Endpoint, error) {
	if err := h.check(); err != nil {
		return nil, err
	}
	return h.t.connect(h, addr)
}

// TryRecv implements [transport.Handle].
func (h *Handle) TryRecv(dst []byte) ([]byte, error) {
	if err := h.check(); err != nil {
		return dst, err
	}
	if h.recvSig == nil {
		return dst, transport.ErrNotSupported
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	msg, ok := h.dequeue()
	if !ok {
		// drain the signal, then look again so a message queued
		// concurrently with the drain is not left unsignalled
		h.recvSig.clear()
		if msg, ok = h.dequeue(); !ok {
			return dst, transport.ErrWouldBlock
		}
		h.recvSig.raise()
	}
	return append(dst, msg...), nil
}

// dequeue takes the next accepted message, visiting pipes round-robin.
// Must be called with h.mu held.
func (h *Handle) dequeue() ([]byte, bool) {
	n := len(h.incoming)
	for i := range n {
		idx := (h.nextIn + i) % n
		p := h.incoming[idx]
		for {
			msg, err := p.queue.Dequeue()
			if err != nil {
				break
			}
			// a slot was freed either way
			if sig := p.from.h.sendSig; sig != nil {
				sig.raise()
			}
			if h.accepts(msg) {
				h.nextIn = (idx + 1) % n
				return msg, true
			}
		}
	}
	return nil, false
}

func (h *Handle) accepts(msg []byte) bool {
	if h.pattern != transport.Sub {
		return true
	}
	for _, topic := range h.topics {
		if bytes.HasPrefix(msg, topic) {
			return true
		}
	}
	return false
}

// TrySend implements [transport.Handle].
func (h *Handle) TrySend(msg []byte) (int, error) {
	if err := h.check(); err != nil {
		return 0, err
	}
	if h.sendSig == nil {
		return 0, transport.ErrNotSupported
	}

	msg = slices.Clone(msg)
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pattern == transport.Pub {
		h.publish(msg)
		return len(msg), nil
	}

	if !h.enqueue(msg) {
		h.sendSig.clear()
		if !h.enqueue(msg) {
			return 0, transport.ErrWouldBlock
		}
		h.sendSig.raise()
	}
	return len(msg), nil
}

// enqueue queues msg on the next pipe with room, visiting pipes round-robin.
// Must be called with h.mu held.
func (h *Handle) enqueue(msg []byte) bool {
	n := len(h.outgoing)
	for i := range n {
		idx := (h.nextOut + i) % n
		p := h.outgoing[idx]
		if err := p.queue.Enqueue(&msg); err != nil {
			continue
		}
		p.to.h.recvSig.raise()
		h.nextOut = (idx + 1) % n
		return true
	}
	return false
}

// publish queues msg on every pipe, dropping it for subscribers that are behind.
// Must be called with h.mu held.
func (h *Handle) publish(msg []byte) {
	for _, p := range h.outgoing {
		if err := p.queue.Enqueue(&msg); err == nil {
			p.to.h.recvSig.raise()
		}
	}
}

// Recv blocks the calling goroutine until a message arrives.
// Intended for goroutines that are not driven by an event loop.
func (h *Handle) Recv() ([]byte, error) {
	var bo iox.Backoff
	for {
		msg, err := h.TryRecv(nil)
		if !transport.IsWouldBlock(err) {
			return msg, err
		}
		bo.Wait()
	}
}

// Send blocks the calling goroutine until msg has been queued.
// Intended for goroutines that are not driven by an event loop.
func (h *Handle) Send(msg []byte) error {
	var bo iox.Backoff
	for {
		_, err := h.TrySend(msg)
		if !transport.IsWouldBlock(err) {
			return err
		}
		bo.Wait()
	}
}

// Subscribe implements [transport.Subscriber].
// A sub socket only receives messages starting with one of its topics.
// The empty topic matches every message.
func (h *Handle) Subscribe(topic []byte) error {
	if err := h.check(); err != nil {
		return err
	}
	if h.pattern != transport.Sub {
		return transport.ErrNotSupported
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.topics = append(h.topics, slices.Clone(topic))
	return nil
}

// Unsubscribe implements [transport.Subscriber].
func (h *Handle) Unsubscribe(topic []byte) error {
	if err := h.check(); err != nil {
		return err
	}
	if h.pattern != transport.Sub {
		return transport.ErrNotSupported
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, t := range h.topics {
		if bytes.Equal(t, topic) {
			h.topics = slices.Delete(h.topics, i, i+1)
			return nil
		}
	}
	return E.Cause(transport.ErrInvalidAddress, "not subscribed to ", string(topic))
}

// Name implements [transport.Handle].
func (h *Handle) Name(maxLen int) (string, error) {
	if maxLen <= 0 {
		return "", fmt.Errorf("invalid name length %d", maxLen)
	}
	name := fmt.Sprintf("inproc.%s.%d", h.pattern, h.serial)
	if len(name) > maxLen {
		name = name[:maxLen]
	}
	return name, nil
}

// Close implements [transport.Handle].
// Endpoints still attached to the handle are shut down.
func (h *Handle) Close() error {
	if h.closed.Swap(true) {
		return transport.ErrBadHandle
	}
	if err := h.t.close(h); err != nil {
		return err
	}
	return h.closeSignals()
}

func (h *Handle) closeSignals() error {
	var errs []error
	for _, sig := range []*signal{h.recvSig, h.sendSig} {
		if sig != nil {
			errs = append(errs, sig.close())
		}
	}
	return errors.Join(errs...)
}

// wake raises every signal of the handle. Called with t.mu held.
func (h *Handle) wake() {
	for _, sig := range []*signal{h.recvSig, h.sendSig} {
		if sig != nil {
			sig.raise()
		}
	}
}

// peers returns the number of pipes attached to the handle.
func (h *Handle) peers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.incoming) + len(h.outgoing)
}

func (h *Handle) addIncoming(p *pipe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.incoming = append(h.incoming, p)
}

func (h *Handle) addOutgoing(p *pipe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outgoing = append(h.outgoing, p)
	if h.pattern != transport.Pub {
		h.sendSig.raise()
	}
}

func (h *Handle) removeIncoming(p *pipe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.incoming = removeItem(h.incoming, p)
	h.nextIn = 0
}

func (h *Handle) removeOutgoing(p *pipe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outgoing = removeItem(h.outgoing, p)
	h.nextOut = 0
}
