package main

import (
	"context"
	"time"

	"github.com/arvidfm/nanogio"
	"github.com/arvidfm/nanogio/transport"
)

// pipe runs a pull listener and a push sender on one event loop.
type pipe struct {
	transport transport.Transport
	address   string
	message   []byte
	count     int
	interval  time.Duration
	metrics   *nanogio.Metrics
}

func (p *pipe) run(ctx context.Context, listen, send bool) error {
	var tasks []nanogio.Futurer
	if listen {
		pull, err := p.open(ctx, transport.Pull)
		if err != nil {
			return err
		}
		defer pull.Close()
		if err := pull.Bind(p.address); err != nil {
			return err
		}
		tasks = append(tasks, nanogio.SpawnTask(ctx, func(ctx context.Context) (int, error) {
			return p.listen(ctx, pull)
		}))
	}

	if send {
		push, err := p.open(ctx, transport.Push)
		if err != nil {
			return err
		}
		defer push.Close()
		if err := push.Connect(p.address); err != nil {
			return err
		}
		tasks = append(tasks, nanogio.SpawnTask(ctx, func(ctx context.Context) (int, error) {
			return push.Forward(ctx, p.messages(ctx))
		}))
	}

	_, err := nanogio.Wait(nanogio.WaitFirstError, tasks...).Await(ctx)
	return err
}

func (p *pipe) open(ctx context.Context, pattern transport.Pattern) (*nanogio.Socket, error) {
	return nanogio.NewSocket(
		nanogio.RunningLoop(ctx), p.transport, pattern,
		nanogio.WithLogger(logger.WithField("side", pattern.String())),
		nanogio.WithMetrics(p.metrics),
	)
}

// listen logs every received message until count messages have arrived.
func (p *pipe) listen(ctx context.Context, pull *nanogio.Socket) (received int, err error) {
	for msg := range pull.Messages(ctx).UntilErr(&err) {
		logger.Info(string(msg))
		if received++; received == p.count {
			break
		}
	}
	return received, err
}

// messages yields the configured message count times, pausing for the interval in between.
func (p *pipe) messages(ctx context.Context) nanogio.AsyncIterable[[]byte] {
	if p.interval <= 0 {
		return nanogio.Repeat(p.message, p.count)
	}
	return nanogio.AsyncIter(func(yield func([]byte) error) error {
		for i := 0; p.count == 0 || i < p.count; i++ {
			if i > 0 {
				if err := nanogio.Sleep(ctx, p.interval); err != nil {
					return err
				}
			}
			if err := yield(p.message); err != nil {
				return err
			}
		}
		return nil
	})
}
