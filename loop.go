package nanogio

import (
	"container/heap"
	"context"
	"time"
)

type runningLoop struct{}

// RunningLoop returns the [EventLoop] running in the current context.
// If no EventLoop is running, this function will panic.
// This function should not generally be called from a manually launched goroutine.
func RunningLoop(ctx context.Context) *EventLoop {
	return ctx.Value(runningLoop{}).(*EventLoop)
}

// EventLoop runs coroutines on a single goroutine, waking them when
// callbacks come due or registered descriptors become readable.
type EventLoop struct {
	pendingCallbacks    callbackQueue
	callbacksFromThread chan *Callback

	poller       Poller
	currentTasks []tasker
}

var _ Reactor = (*EventLoop)(nil)

// NewEventLoop constructs a new [EventLoop].
func NewEventLoop() *EventLoop {
	return &EventLoop{
		callbacksFromThread: make(chan *Callback, 100),
	}
}

// Run starts the event loop with the given coroutine as the main task.
// The loop will exit once the main task has exited and there are no pending callbacks.
func (e *EventLoop) Run(ctx context.Context, main Coroutine1) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var err error
	if e.poller, err = NewPoller(); err != nil {
		return err
	}
	defer func() {
		if err := e.poller.Close(); err != nil {
			loopLog.WithError(err).Warn("could not close poller")
		}
		e.poller = nil
	}()

	// cancellation must interrupt a poller blocked in Wait
	poller, woken := e.poller, make(chan struct{})
	stopWakeup := context.AfterFunc(ctx, func() {
		defer close(woken)
		if err := poller.WakeupThreadsafe(); err != nil {
			loopLog.WithError(err).Warn("could not wake up event loop on cancellation")
		}
	})
	defer func() {
		if !stopWakeup() {
			<-woken
		}
	}()

	ctx = context.WithValue(ctx, runningLoop{}, e)
	mainTask := main.SpawnTask(ctx).Future().AddDoneCallback(func(err error) {
		if err != nil {
			cancel(err)
		}
	})

	for ctx.Err() == nil {
		e.addCallbacksFromThread(ctx)
		e.runReadyCallbacks(ctx)

		if ctx.Err() != nil || (mainTask.HasResult() && e.pendingCallbacks.Empty()) {
			break
		}

		timeout := time.Second * 30
		if !e.pendingCallbacks.Empty() {
			timeout = e.pendingCallbacks.TimeUntilNext()
		}
		if deadline, ok := ctx.Deadline(); ok {
			timeout = min(timeout, time.Until(deadline))
		}

		if err := e.poller.Wait(timeout); err != nil {
			return err
		}
	}

	return context.Cause(ctx)
}

// Register implements [Reactor]. Only valid while the loop is running.
func (e *EventLoop) Register(fd uintptr) (Registration, error) {
	if e.poller == nil {
		return nil, ErrLoopNotRunning
	}
	return e.poller.Register(fd)
}

func (e *EventLoop) addCallbacksFromThread(ctx context.Context) {
	for ctx.Err() == nil {
		select {
		case callback := <-e.callbacksFromThread:
			e.pendingCallbacks.Add(callback)
		default:
			return
		}
	}
}

func (e *EventLoop) runReadyCallbacks(ctx context.Context) {
	for ctx.Err() == nil && e.pendingCallbacks.RunNext() {
	}
}

// withTask pushes the currently executing task to the top of the task stack
// so that [EventLoop.Yield] knows what task's yielder to use.
func (e *EventLoop) withTask(t tasker, step func()) {
	oldTasks := e.currentTasks
	e.currentTasks = append(e.currentTasks, t)

	step()

	if e.currentTask() != t {
		panic("context switched from unexpected task")
	}
	e.currentTasks = oldTasks
}

func (e *EventLoop) currentTask() tasker {
	return e.currentTasks[len(e.currentTasks)-1]
}

// Yield suspends the current task until fut completes.
// A nil fut yields for a single tick of the loop.
func (e *EventLoop) Yield(ctx context.Context, fut Futurer) error {
	return e.currentTask().yield(ctx, fut)
}

// ScheduleCallback schedules a callback to be executed after the given duration.
func (e *EventLoop) ScheduleCallback(delay time.Duration, callback func()) *Callback {
	handle := NewCallback(delay, callback)
	e.pendingCallbacks.Add(handle)
	return handle
}

// RunCallback schedules a callback for immediate execution by the event loop.
// Not threadsafe; use [EventLoop.RunCallbackThreadsafe] to schedule callbacks from other threads.
func (e *EventLoop) RunCallback(callback func()) {
	e.ScheduleCallback(0, callback)
}

// RunCallbackThreadsafe schedules a callback for immediate execution on the event loop's thread.
func (e *EventLoop) RunCallbackThreadsafe(callback func()) {
	e.callbacksFromThread <- NewCallback(0, callback)
	if poller := e.poller; poller != nil {
		if err := poller.WakeupThreadsafe(); err != nil {
			loopLog.WithError(err).Warn("could not wake up event loop from thread")
		}
	}
}

// Callback is a handle to a callback scheduled to be run by an [EventLoop].
type Callback struct {
	callback func()
	when     time.Time

	// queue == nil && index < 0 if the callback has not been scheduled
	// or has already run
	queue *callbackQueue
	index int
}

// NewCallback creates a handle to a callback due after the given duration.
// Use [EventLoop.ScheduleCallback] to actually schedule it.
func NewCallback(duration time.Duration, callback func()) *Callback {
	return &Callback{
		callback: callback,
		when:     time.Now().Add(duration),
		index:    -2,
	}
}

// Cancel removes this callback from its queue.
// Returns false if the callback was not scheduled.
func (c *Callback) Cancel() bool {
	if c.queue != nil {
		return c.queue.Remove(c)
	}
	return false
}

// callbackQueue is a min-heap of callbacks ordered by due time.
type callbackQueue []*Callback

func (r *callbackQueue) Len() int {
	return len(*r)
}

func (r *callbackQueue) Less(i, j int) bool {
	return (*r)[i].when.Before((*r)[j].when)
}

func (r *callbackQueue) Swap(i, j int) {
	(*r)[i].index = j
	(*r)[j].index = i
	(*r)[i], (*r)[j] = (*r)[j], (*r)[i]
}

func (r *callbackQueue) Push(x any) {
	callback := x.(*Callback)
	callback.index = r.Len()
	callback.queue = r
	*r = append(*r, callback)
}

func (r *callbackQueue) Pop() any {
	n := len(*r)
	callback := (*r)[n-1]
	*r = (*r)[:n-1]
	callback.index = -1
	callback.queue = nil
	return callback
}

// Remove cancels a queued callback. Returns false if it is not in this queue.
func (r *callbackQueue) Remove(callback *Callback) bool {
	if callback.queue != r || callback.index < 0 {
		return false
	}
	heap.Remove(r, callback.index)
	return true
}

func (r *callbackQueue) Add(c *Callback) {
	heap.Push(r, c)
}

// RunNext runs the earliest callback if it is due.
// Returns false if nothing was run.
func (r *callbackQueue) RunNext() bool {
	if r.Empty() || r.TimeUntilNext() > 0 {
		return false
	}

	head := heap.Pop(r).(*Callback)
	head.callback()
	return true
}

func (r *callbackQueue) TimeUntilNext() time.Duration {
	return time.Until((*r)[0].when)
}

func (r *callbackQueue) Empty() bool {
	return r.Len() == 0
}
