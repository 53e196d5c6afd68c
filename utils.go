package nanogio

import (
	"context"
	"time"
)

// WaitMode modifies the behaviour of [Wait].
type WaitMode int

const (
	WaitFirstResult WaitMode = iota // wait until any future has a result or an error
	WaitFirstError                  // wait until any future has an error or until all futures have completed
	WaitAll                         // wait until all futures have completed or errored
)

// Wait returns a [Future] completing once any or all of futs complete,
// depending on mode. Wait does not cancel any futures.
func Wait(mode WaitMode, futs ...Futurer) *Future[any] {
	var done int
	var futErr error
	waitFut := NewFuture[any]()
	if len(futs) == 0 {
		waitFut.SetResult(nil, nil)
		return waitFut
	}

	for _, fut := range futs {
		fut.AddDoneCallback(func(err error) {
			done++
			if err != nil {
				futErr = err
				if mode != WaitAll || done >= len(futs) {
					waitFut.SetResult(nil, err)
				}
			} else if done >= len(futs) || mode == WaitFirstResult {
				waitFut.SetResult(nil, futErr)
			}
		})
	}
	return waitFut
}

// Sleep suspends the current coroutine for the given duration.
func Sleep(ctx context.Context, duration time.Duration) error {
	fut := NewFuture[any]()
	handle := RunningLoop(ctx).ScheduleCallback(duration, func() {
		fut.SetResult(nil, nil)
	})
	fut.AddDoneCallback(func(err error) {
		handle.Cancel()
	})
	_, err := fut.Await(ctx)
	return err
}

// Go runs f on a new goroutine and returns a [Future] completing with its result.
// f must not use the event loop: its context carries no running loop.
func Go[T any](ctx context.Context, f func(ctx context.Context) (T, error)) *Future[T] {
	loop := RunningLoop(ctx)
	fut := NewFuture[T]()

	goroCtx := context.WithValue(ctx, runningLoop{}, nil)
	go func() {
		result, err := f(goroCtx)
		loop.RunCallbackThreadsafe(func() {
			fut.SetResult(result, err)
		})
	}()
	return fut
}
