package nanogio

import (
	"context"
	"errors"
	"iter"
)

var (
	ErrNotReady = errors.New("future is still pending")
)

// Coroutine1 is a coroutine that can return an error.
type Coroutine1 func(ctx context.Context) error

// SpawnTask starts this coroutine as a background task.
func (c Coroutine1) SpawnTask(ctx context.Context) *Task[any] {
	return SpawnTask[any](ctx, func(ctx context.Context) (any, error) {
		return nil, c(ctx)
	})
}

// Coroutine2 is a coroutine that can return a result or an error.
type Coroutine2[R any] func(ctx context.Context) (R, error)

// SpawnTask starts this coroutine as a background task.
func (c Coroutine2[R]) SpawnTask(ctx context.Context) *Task[R] {
	return SpawnTask(ctx, c)
}

// Futurer is the untyped view of an [Awaitable].
type Futurer interface {
	// HasResult reports whether the Futurer has completed or been cancelled.
	HasResult() bool
	// Err returns the error the Futurer completed with, if any.
	Err() error
	// AddDoneCallback runs callback once the Futurer completes,
	// immediately if it already has.
	AddDoneCallback(callback func(error)) Futurer
	// Cancel completes the Futurer with err, or [context.Canceled] if err is nil.
	// Has no effect on a completed Futurer.
	Cancel(err error)
}

// tasker is an untyped view of a [Task].
type tasker interface {
	Futurer
	yield(ctx context.Context, fut Futurer) error
}

// Awaitable is a result that may only become available later.
// Awaiting it suspends the current coroutine until then.
type Awaitable[T any] interface {
	Futurer
	// Await suspends the current task until the Awaitable completes.
	// Cancelling the task or ctx cancels the Awaitable as well.
	Await(ctx context.Context) (T, error)
	// MustAwait is like Await but panics on error.
	MustAwait(ctx context.Context) T
	// AddResultCallback runs callback once the Awaitable completes,
	// immediately if it already has.
	AddResultCallback(callback func(result T, err error)) Awaitable[T]
	// Future returns the underlying [Future].
	Future() *Future[T]
	// Result returns the result, or [ErrNotReady] if there is none yet.
	Result() (T, error)
}

// Future holds the result of a pending operation and runs its callbacks
// once [Future.SetResult] or [Futurer.Cancel] is called.
type Future[ResType any] struct {
	done      bool
	result    ResType
	err       error
	callbacks []func(ResType, error)
}

// NewFuture returns a pending [Future].
func NewFuture[ResType any]() *Future[ResType] {
	return &Future[ResType]{}
}

// HasResult implements [Futurer].
func (f *Future[ResType]) HasResult() bool {
	return f.done
}

// Err implements [Futurer].
func (f *Future[ResType]) Err() error {
	return f.err
}

// Result implements [Awaitable].
func (f *Future[ResType]) Result() (ResType, error) {
	if f.done {
		return f.result, f.err
	}

	var zero ResType
	return zero, ErrNotReady
}

// Future implements [Awaitable].
func (f *Future[ResType]) Future() *Future[ResType] {
	return f
}

// AddDoneCallback implements [Futurer].
func (f *Future[ResType]) AddDoneCallback(callback func(error)) Futurer {
	f.AddResultCallback(func(_ ResType, err error) {
		callback(err)
	})
	return f
}

// AddResultCallback implements [Awaitable].
func (f *Future[ResType]) AddResultCallback(callback func(ResType, error)) Awaitable[ResType] {
	if f.HasResult() {
		callback(f.result, f.err)
	} else {
		f.callbacks = append(f.callbacks, callback)
	}
	return f
}

// Await implements [Awaitable].
func (f *Future[ResType]) Await(ctx context.Context) (ResType, error) {
	if err := RunningLoop(ctx).Yield(ctx, f); err != nil {
		var zero ResType
		return zero, err
	}
	return f.Result()
}

// MustAwait implements [Awaitable].
func (f *Future[ResType]) MustAwait(ctx context.Context) ResType {
	res, err := f.Await(ctx)
	if err != nil {
		panic(err)
	}
	return res
}

// Cancel implements [Futurer].
func (f *Future[ResType]) Cancel(err error) {
	if err == nil {
		err = context.Canceled
	}
	var zero ResType
	f.SetResult(zero, err)
}

// SetResult completes the Future and runs its callbacks.
// Only the first call has any effect.
func (f *Future[ResType]) SetResult(result ResType, err error) {
	if f.HasResult() {
		return
	}

	f.result, f.err = result, err
	f.done = true

	for _, callback := range f.callbacks {
		callback(result, err)
	}
	f.callbacks = nil
}

// Task drives a coroutine, resuming it whenever the [Awaitable] it is
// suspended on completes.
type Task[RetType any] struct {
	loop    *EventLoop
	yielder func(Futurer) bool

	next       func() (Futurer, bool)
	stop       func()
	ctx        context.Context
	cancel     context.CancelCauseFunc
	pendingFut Futurer
	resultFut  *Future[RetType]
}

// SpawnTask starts the given coroutine as a background task.
// The coroutine first runs on the next tick of the loop.
func SpawnTask[RetType any](ctx context.Context, coro Coroutine2[RetType]) *Task[RetType] {
	ctx, cancel := context.WithCancelCause(ctx)
	task := &Task[RetType]{
		loop:      RunningLoop(ctx),
		resultFut: NewFuture[RetType](),
		ctx:       ctx,
		cancel:    cancel,
	}

	// the coroutine runs as a pull iterator that yields every future it awaits
	next, stop := iter.Pull(func(yield func(Futurer) bool) {
		task.yielder = yield
		task.resultFut.SetResult(coro(ctx))
	})
	task.resultFut.AddDoneCallback(func(err error) {
		if task.pendingFut != nil {
			task.pendingFut.Cancel(nil)
		}
		task.cancel(err)
	})
	task.next = next
	task.stop = stop

	task.loop.RunCallback(func() {
		if task.resultFut.HasResult() {
			return
		} else if err := context.Cause(ctx); err != nil {
			task.resultFut.Cancel(err)
		} else {
			task.step()
		}
	})
	return task
}

// step resumes the coroutine until it next awaits something.
func (t *Task[_]) step() (ok bool) {
	t.loop.withTask(t, func() {
		t.pendingFut, ok = t.next()
	})
	if !ok {
		t.pendingFut = nil
		t.stop()
		return false
	}

	if t.pendingFut != nil {
		t.pendingFut.AddDoneCallback(func(err error) {
			t.step()
		})
	} else {
		// a nil future yields for one tick
		t.loop.RunCallback(func() {
			t.step()
		})
	}
	return true
}

func (t *Task[_]) yield(childCtx context.Context, fut Futurer) error {
	if err := context.Cause(t.ctx); err != nil {
		t.resultFut.Cancel(err)
		if fut != nil {
			fut.Cancel(err)
		}
		return t.Err()
	}

	if err := childCtx.Err(); err != nil {
		if fut != nil {
			fut.Cancel(err)
		}
		return err
	}

	if !t.yielder(fut) {
		t.resultFut.Cancel(nil)
		return t.Err()
	}

	// the awaited future has completed; only the contexts can still fail us
	if err := context.Cause(t.ctx); err != nil {
		t.resultFut.Cancel(err)
		return t.Err()
	}
	if err := childCtx.Err(); err != nil {
		return err
	}
	return nil
}

// HasResult implements [Futurer].
func (t *Task[_]) HasResult() bool {
	return t.resultFut.HasResult()
}

// Result implements [Awaitable].
func (t *Task[RetType]) Result() (RetType, error) {
	return t.resultFut.Result()
}

// Err implements [Futurer].
func (t *Task[_]) Err() error {
	return t.resultFut.Err()
}

// Future implements [Awaitable].
func (t *Task[RetType]) Future() *Future[RetType] {
	return t.resultFut
}

// Await implements [Awaitable].
func (t *Task[RetType]) Await(ctx context.Context) (RetType, error) {
	return t.resultFut.Await(ctx)
}

// MustAwait implements [Awaitable].
func (t *Task[RetType]) MustAwait(ctx context.Context) RetType {
	return t.resultFut.MustAwait(ctx)
}

// Cancel implements [Futurer].
func (t *Task[_]) Cancel(err error) {
	t.resultFut.Cancel(err)
}

// AddResultCallback implements [Awaitable].
func (t *Task[RetType]) AddResultCallback(callback func(result RetType, err error)) Awaitable[RetType] {
	t.resultFut.AddResultCallback(callback)
	return t
}

// AddDoneCallback implements [Futurer].
func (t *Task[_]) AddDoneCallback(callback func(error)) Futurer {
	t.resultFut.AddDoneCallback(callback)
	return t
}
