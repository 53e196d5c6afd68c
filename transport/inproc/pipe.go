package inproc

import (
	"code.hybscloud.com/lfq"
)

// pipeCapacity bounds the number of queued messages per connection.
const pipeCapacity = 64

// pipe carries messages in one direction between two endpoints.
// The sending handle is the only producer and the receiving handle the only consumer.
type pipe struct {
	from  *endpoint
	to    *endpoint
	queue lfq.SPSC[[]byte]
}

func newPipe(from, to *endpoint) *pipe {
	p := &pipe{from: from, to: to}
	p.queue.Init(pipeCapacity)
	return p
}

// attach makes the pipe visible to both handles.
// The receiver learns about the pipe first so no message can be queued
// on a pipe the receiver is not yet polling.
func (p *pipe) attach() {
	p.to.h.addIncoming(p)
	p.from.h.addOutgoing(p)
}

// detach hides the pipe from both handles. Queued messages are dropped.
// Once detach returns, neither handle touches the other's signals through p.
func (p *pipe) detach() {
	p.from.h.removeOutgoing(p)
	p.to.h.removeIncoming(p)
}
