// Package inproc implements [transport.Transport] inside a single process.
//
// Every socket owns eventfd-backed descriptors that become readable when a
// message can be received or sent, so inproc sockets can be driven by a
// readiness-based event loop exactly like sockets of an out-of-process
// transport. Each connection between two sockets is a bounded lock-free
// single-producer single-consumer queue.
//
// Addresses take the form inproc://name and are scoped to one [Transport].
// Connecting before the address is bound is allowed; the connection is
// established once a socket binds the address.
package inproc

import (
	"sync"
	"sync/atomic"

	E "github.com/sagernet/sing/common/exceptions"

	"github.com/arvidfm/nanogio/transport"
)

// Transport is an isolated inproc address namespace.
type Transport struct {
	mu         sync.Mutex
	bound      map[string]*endpoint
	connecting map[string][]*endpoint
	handles    map[*Handle]struct{}

	terminated atomic.Bool
}

var _ transport.Transport = (*Transport)(nil)

// New returns an empty [Transport].
func New() *Transport {
	return &Transport{
		bound:      make(map[string]*endpoint),
		connecting: make(map[string][]*endpoint),
		handles:    make(map[*Handle]struct{}),
	}
}

// Open implements [transport.Transport].
func (t *Transport) Open(pattern transport.Pattern) (transport.Handle, error) {
	return t.OpenHandle(pattern)
}

// OpenHandle is like Open but returns the concrete handle type.
func (t *Transport) OpenHandle(pattern transport.Pattern) (*Handle, error) {
	if t.terminated.Load() {
		return nil, transport.ErrTerminated
	}
	if !pattern.CanSend() && !pattern.CanRecv() {
		return nil, E.Cause(transport.ErrNotSupported, "open ", pattern)
	}

	h, err := newHandle(t, pattern)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.handles[h] = struct{}{}
	t.mu.Unlock()
	return h, nil
}

// Terminate shuts the transport down. Every subsequent operation on its
// handles fails with [transport.ErrTerminated], and all their descriptors are
// signalled so that pollers wake up and observe the termination.
func (t *Transport) Terminate() {
	t.terminated.Store(true)

	t.mu.Lock()
	defer t.mu.Unlock()
	for h := range t.handles {
		h.wake()
	}
}

func (t *Transport) bind(h *Handle, addr string) (*endpoint, error) {
	name, err := parseAddress(addr)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.bound[name]; ok {
		return nil, E.Cause(transport.ErrAddrInUse, addr)
	}

	ep := &endpoint{t: t, h: h, name: name, bound: true}
	t.bound[name] = ep
	h.endpoints = append(h.endpoints, ep)
	for _, peer := range t.connecting[name] {
		t.link(ep, peer)
	}
	return ep, nil
}

func (t *Transport) connect(h *Handle, addr string) (*endpoint, error) {
	name, err := parseAddress(addr)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ep := &endpoint{t: t, h: h, name: name}
	t.connecting[name] = append(t.connecting[name], ep)
	h.endpoints = append(h.endpoints, ep)
	if binder := t.bound[name]; binder != nil {
		t.link(binder, ep)
	}
	return ep, nil
}

// link creates the pipes between a bound and a connecting endpoint.
// Endpoints whose patterns cannot talk to each other are left unconnected.
// Must be called with t.mu held.
func (t *Transport) link(a, b *endpoint) {
	if a.h == b.h || !a.h.pattern.Peer(b.h.pattern) {
		return
	}
	if a.h.pattern == transport.Pair && (a.h.peers() > 0 || b.h.peers() > 0) {
		return
	}

	for _, dir := range [][2]*endpoint{{a, b}, {b, a}} {
		from, to := dir[0], dir[1]
		if !from.h.pattern.CanSend() || !to.h.pattern.CanRecv() {
			continue
		}
		p := newPipe(from, to)
		from.pipes = append(from.pipes, p)
		to.pipes = append(to.pipes, p)
		p.attach()
	}
}

func (t *Transport) shutdown(ep *endpoint) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shutdownLocked(ep)
}

// shutdownLocked detaches ep and every pipe it participates in.
// Must be called with t.mu held.
func (t *Transport) shutdownLocked(ep *endpoint) error {
	if ep.shut {
		return E.Cause(transport.ErrNoSuchEndpoint, ep.name)
	}
	ep.shut = true

	if ep.bound {
		delete(t.bound, ep.name)
	} else {
		t.connecting[ep.name] = removeItem(t.connecting[ep.name], ep)
		if len(t.connecting[ep.name]) == 0 {
			delete(t.connecting, ep.name)
		}
	}
	ep.h.endpoints = removeItem(ep.h.endpoints, ep)

	for _, p := range ep.pipes {
		p.detach()
		peer := p.from
		if peer == ep {
			peer = p.to
		}
		peer.pipes = removeItem(peer.pipes, p)
	}
	ep.pipes = nil
	return nil
}

// close shuts down all endpoints of h and forgets it.
func (t *Transport) close(h *Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.handles[h]; !ok {
		return transport.ErrBadHandle
	}

	for len(h.endpoints) > 0 {
		_ = t.shutdownLocked(h.endpoints[0])
	}
	delete(t.handles, h)
	return nil
}

// endpoint is one bind or connect of a handle.
type endpoint struct {
	t     *Transport
	h     *Handle
	name  string
	bound bool
	shut  bool
	pipes []*pipe
}

// Shutdown implements [transport.Endpoint].
func (ep *endpoint) Shutdown() error {
	return ep.t.shutdown(ep)
}

func removeItem[T comparable](items []T, item T) []T {
	for i := range items {
		if items[i] == item {
			return append(items[:i], items[i+1:]...)
		}
	}
	return items
}
