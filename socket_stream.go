package nanogio

import (
	"context"
	"errors"
	"io"
)

// Recv suspends the current coroutine until the next message arrives.
// Returns [io.EOF] once the transport has been terminated.
func (s *Socket) Recv(ctx context.Context) ([]byte, error) {
	for {
		poll, err := s.PollNext()
		if err != nil {
			return nil, err
		}

		switch poll.State {
		case PollItem:
			return poll.Item, nil
		case PollEnd:
			return nil, io.EOF
		}

		if err := s.recv.Wait(ctx); err != nil {
			return nil, err
		}
	}
}

// Send suspends the current coroutine until msg has been handed to the transport.
func (s *Socket) Send(ctx context.Context, msg []byte) error {
	for {
		res, err := s.TrySend(msg)
		if err != nil {
			return err
		}
		if res.State == SendAccepted {
			return nil
		}

		msg = res.Item
		if err := s.send.Wait(ctx); err != nil {
			return err
		}
	}
}

// Messages returns an AsyncIterable yielding every message received on the socket.
// Iteration ends without an error once the transport has been terminated.
func (s *Socket) Messages(ctx context.Context) AsyncIterable[[]byte] {
	return AsyncIter(func(yield func([]byte) error) error {
		for {
			msg, err := s.Recv(ctx)
			if errors.Is(err, io.EOF) {
				return nil
			} else if err != nil {
				return err
			}

			if err := yield(msg); err != nil {
				return err
			}
		}
	})
}

// Forward sends every message of src and returns the number of messages sent.
func (s *Socket) Forward(ctx context.Context, src AsyncIterable[[]byte]) (n int, err error) {
	for msg := range src.UntilErr(&err) {
		if err := s.Send(ctx, msg); err != nil {
			return n, err
		}
		n++
	}
	if err != nil {
		return n, err
	}
	return n, s.PollFlush()
}
