package nanogio

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testEventLoop(t *testing.T, name string, wantErr bool, wantRuntime time.Duration, main func(ctx context.Context, loop *EventLoop, t *testing.T) error) {
	t.Run(name, func(t *testing.T) {
		start := time.Now()
		loop := NewEventLoop()

		ctx := context.Background()
		if wantRuntime > 0 {
			timeoutCtx, cancel := context.WithTimeout(ctx, wantRuntime+time.Millisecond*500)
			defer cancel()
			ctx = timeoutCtx
		}

		err := loop.Run(ctx, func(ctx context.Context) error {
			return main(ctx, loop, t)
		})
		if errors.Is(err, ErrNotImplemented) {
			t.Skipf("function not supported on this platform")
		}
		elapsed := time.Since(start)

		tolerance := wantRuntime.Seconds() / 20
		if wantRuntime > 0 && math.Abs(elapsed.Seconds()-wantRuntime.Seconds()) > tolerance {
			t.Errorf("expected %s, got: %s (difference: %f)", wantRuntime, elapsed, math.Abs(elapsed.Seconds()-wantRuntime.Seconds()))
		}
		if (err != nil) != wantErr {
			t.Errorf("expected error %v, got: %v", wantErr, err)
		} else if errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("deadline exceeded")
		}
	})
}

func TestSleep(t *testing.T) {
	syncSleep := func(_ context.Context, duration time.Duration) error {
		time.Sleep(duration)
		return nil
	}

	var interleaved, sequential bytes.Buffer
	for j := range 5 {
		for i := range 5 {
			fmt.Fprintf(&interleaved, "task %d: %d\n", i, j)
			fmt.Fprintf(&sequential, "task %d: %d\n", j, i)
		}
	}

	tests := []struct {
		name      string
		sleepFunc func(context.Context, time.Duration) error
		spawnFunc func(context.Context, func(context.Context) (int, error)) Awaitable[int]

		wantOutput  string
		wantRuntime time.Duration
	}{
		{
			name:      "task async sleep",
			sleepFunc: Sleep,
			spawnFunc: func(ctx context.Context, f func(context.Context) (int, error)) Awaitable[int] {
				return SpawnTask(ctx, f)
			},

			wantOutput:  interleaved.String(),
			wantRuntime: time.Millisecond * 550,
		},
		{
			name:      "task sync sleep",
			sleepFunc: syncSleep,
			spawnFunc: func(ctx context.Context, f func(context.Context) (int, error)) Awaitable[int] {
				return SpawnTask(ctx, f)
			},

			wantOutput:  sequential.String(),
			wantRuntime: time.Millisecond * 2650,
		},
		{
			name:      "goroutine sync sleep",
			sleepFunc: syncSleep,
			spawnFunc: func(ctx context.Context, f func(context.Context) (int, error)) Awaitable[int] {
				return Go(ctx, f)
			},

			wantOutput:  interleaved.String(),
			wantRuntime: time.Millisecond * 550,
		},
	}

	for _, tt := range tests {
		testEventLoop(t, tt.name, false, tt.wantRuntime, func(ctx context.Context, loop *EventLoop, t *testing.T) error {
			var mu sync.Mutex
			var buf bytes.Buffer
			tasks := make([]Futurer, 5)
			results := make([]int, 5)
			for i := range tasks {
				tasks[i] = tt.spawnFunc(ctx, func(ctx context.Context) (int, error) {
					if err := tt.sleepFunc(ctx, time.Millisecond*10*time.Duration(i+1)); err != nil {
						return 0, err
					}

					for j := range 5 {
						mu.Lock()
						fmt.Fprintf(&buf, "task %d: %d\n", i, j)
						mu.Unlock()
						if err := tt.sleepFunc(ctx, time.Millisecond*100); err != nil {
							return 0, err
						}
					}
					return i * 10, nil
				}).AddResultCallback(func(result int, err error) {
					results[i] = result
				})
			}

			if _, err := Wait(WaitAll, tasks...).Await(ctx); err != nil {
				return err
			}

			require.Equal(t, tt.wantOutput, buf.String())
			for i := range results {
				require.Equal(t, i*10, results[i])
			}
			return nil
		})
	}
}

func TestFuture_Result(t *testing.T) {
	fut1 := NewFuture[int]()
	_, err := fut1.Result()
	require.ErrorIs(t, err, ErrNotReady)

	fut1.SetResult(10, nil)
	result, err := fut1.Result()
	require.NoError(t, err)
	require.Equal(t, 10, result)

	// completed futures ignore later results
	fut1.Cancel(nil)
	fut1.SetResult(42, errors.New("oops"))
	result, err = fut1.Result()
	require.NoError(t, err)
	require.Equal(t, 10, result)

	fut2 := NewFuture[int]()
	fut2.Cancel(nil)
	_, err = fut2.Result()
	require.ErrorIs(t, err, context.Canceled)

	fut3 := NewFuture[int]()
	fut3.Cancel(sql.ErrNoRows)
	_, err = fut3.Result()
	require.ErrorIs(t, err, sql.ErrNoRows)

	fut4 := NewFuture[int]()
	fut4.SetResult(42, sql.ErrConnDone)
	result, err = fut4.Result()
	require.Equal(t, 42, result)
	require.ErrorIs(t, err, sql.ErrConnDone)
}

func TestFuture_Callbacks(t *testing.T) {
	fut := NewFuture[string]()
	var calls []string
	fut.AddResultCallback(func(result string, err error) {
		calls = append(calls, "first "+result)
	})
	fut.AddDoneCallback(func(err error) {
		calls = append(calls, "second")
	})
	require.Empty(t, calls)

	fut.SetResult("done", nil)
	fut.AddResultCallback(func(result string, err error) {
		calls = append(calls, "late "+result)
	})
	require.Equal(t, []string{"first done", "second", "late done"}, calls)
}

func TestWait(t *testing.T) {
	errOops := errors.New("oops")

	tests := []struct {
		name    string
		mode    WaitMode
		results []error
		wantErr error
		// number of futures to complete before the wait is expected to finish
		wantDoneAfter int
	}{
		{name: "first result", mode: WaitFirstResult, results: []error{nil, nil, nil}, wantDoneAfter: 1},
		{name: "first result error", mode: WaitFirstResult, results: []error{errOops, nil}, wantErr: errOops, wantDoneAfter: 1},
		{name: "first error", mode: WaitFirstError, results: []error{nil, errOops, nil}, wantErr: errOops, wantDoneAfter: 2},
		{name: "first error none", mode: WaitFirstError, results: []error{nil, nil}, wantDoneAfter: 2},
		{name: "all", mode: WaitAll, results: []error{errOops, nil, nil}, wantErr: errOops, wantDoneAfter: 3},
		{name: "empty", mode: WaitAll, wantDoneAfter: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			futs := make([]Futurer, len(tt.results))
			for i := range futs {
				futs[i] = NewFuture[any]()
			}
			wait := Wait(tt.mode, futs...)

			for i, err := range tt.results {
				require.Equal(t, i < tt.wantDoneAfter, !wait.HasResult(), "after %d futures", i)
				futs[i].(*Future[any]).SetResult(nil, err)
			}
			require.True(t, wait.HasResult())
			_, err := wait.Result()
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGoroutineHasNoLoop(t *testing.T) {
	testEventLoop(t, "goroutine has no loop", false, -1, func(ctx context.Context, loop *EventLoop, t *testing.T) error {
		result, err := Go(ctx, func(ctx context.Context) (result int, err error) {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("goroutine did not panic")
				}
				result = 42
			}()
			_ = Sleep(ctx, time.Second)
			return 0, nil
		}).Await(ctx)

		if err != nil {
			return err
		}
		require.Equal(t, 42, result)
		return nil
	})
}

func TestAsyncIterable(t *testing.T) {
	tests := []struct {
		name     string
		sleeps   []time.Duration
		errorOn  int
		breakOn  int
		cancelOn int

		wantSum     int
		wantRuntime time.Duration
		wantErr     bool
	}{
		{
			name:     "standard",
			sleeps:   []time.Duration{1, 5, 4, 3, 2},
			errorOn:  -1,
			breakOn:  -1,
			cancelOn: -1,

			wantSum:     15,
			wantRuntime: time.Millisecond * 15 * 10,
			wantErr:     false,
		},
		{
			name:     "early break",
			sleeps:   []time.Duration{1, 5, 4, 3, 2},
			errorOn:  -1,
			breakOn:  1,
			cancelOn: -1,

			wantSum:     1,
			wantRuntime: time.Millisecond * 10,
			wantErr:     false,
		},
		{
			name:     "immediate error",
			sleeps:   []time.Duration{1, 5, 4, 3, 2},
			errorOn:  0,
			breakOn:  -1,
			cancelOn: -1,

			wantSum:     0,
			wantRuntime: 0,
			wantErr:     true,
		},
		{
			name:     "late error",
			sleeps:   []time.Duration{1, 5, 4, 3, 2},
			errorOn:  3,
			breakOn:  -1,
			cancelOn: -1,

			wantSum:     10,
			wantRuntime: time.Millisecond * 10 * 10,
			wantErr:     true,
		},
		{
			name:     "final cancel",
			sleeps:   []time.Duration{1, 5, 4, 3, 2},
			errorOn:  -1,
			breakOn:  -1,
			cancelOn: 4,

			wantSum:     13,
			wantRuntime: time.Millisecond * 13 * 10,
			wantErr:     true,
		},
	}

	iterators := []struct {
		name string
		f    func(context.Context, AsyncIterable[int]) (int, error)
	}{
		{
			name: "range",
			f: func(ctx context.Context, it AsyncIterable[int]) (i int, err error) {
				for v, err := range it {
					if err != nil {
						return i, err
					}
					i += v
				}
				return i, err
			},
		},
		{
			name: "UntilErr",
			f: func(ctx context.Context, it AsyncIterable[int]) (i int, err error) {
				for v := range it.UntilErr(&err) {
					i += v
				}
				return i, err
			},
		},
		{
			name: "ForEach",
			f: func(ctx context.Context, it AsyncIterable[int]) (i int, err error) {
				return i, it.ForEach(func(v int) error {
					i += v
					return nil
				})
			},
		},
	}

	for _, tt := range tests {
		for _, iterator := range iterators {
			testEventLoop(t, fmt.Sprintf("%s_%s", tt.name, iterator.name), tt.wantErr, tt.wantRuntime, func(ctx context.Context, _ *EventLoop, t *testing.T) error {
				ctx, cancel := context.WithCancel(ctx)
				defer cancel()
				sum, err := iterator.f(ctx, AsyncIter(func(yield func(int) error) error {
					for i, sleepTime := range tt.sleeps {
						if tt.breakOn == i {
							break
						} else if tt.errorOn == i {
							return errors.New("error")
						} else if tt.cancelOn == i {
							cancel()
						}
						if err := Sleep(ctx, time.Millisecond*sleepTime*10); err != nil {
							return err
						}
						if err := yield(int(sleepTime)); err != nil {
							return err
						}
					}
					return nil
				}))

				require.Equal(t, tt.wantSum, sum)
				return err
			})
		}
	}
}

func TestRepeat(t *testing.T) {
	var got []string
	err := Repeat("x", 3).ForEach(func(v string) error {
		got = append(got, v)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"x", "x", "x"}, got)

	var n int
	for range Repeat(1, 0) {
		if n++; n == 10 {
			break
		}
	}
	require.Equal(t, 10, n)
}

func TestTask_Cancel(t *testing.T) {
	for numFuts := range 10 {
		for numTasks := 1; numTasks < 10; numTasks++ {
			for cancelOn := range numFuts + 2 {
				name := fmt.Sprintf("%d_%d_%d", numFuts, numTasks, cancelOn)
				testEventLoop(t, name, false, -1, func(ctx context.Context, loop *EventLoop, t *testing.T) error {
					counts := make([]int, numTasks)
					futs := make([]*Future[int], numFuts)
					for i := range futs {
						futs[i] = NewFuture[int]()
					}
					tasks := make([]*Task[any], numTasks)
					for i := range tasks {
						tasks[i] = SpawnTask(ctx, func(ctx context.Context) (any, error) {
							for _, fut := range futs {
								counts[i]++
								if _, err := fut.Await(ctx); err != nil {
									return nil, err
								}
							}
							return nil, nil
						})
					}

					tasks[0].AddDoneCallback(func(err error) {
						for _, task := range tasks {
							task.Cancel(nil)
						}
					})

					// yield to the event loop once to give the tasks a chance to start
					if err := loop.Yield(ctx, nil); err != nil {
						return err
					}

					for i, fut := range futs {
						if i == cancelOn {
							fut.Cancel(nil)
						} else {
							fut.SetResult(i, nil)
						}
					}

					for i, task := range tasks {
						if !task.HasResult() {
							t.Errorf("expected task %d to have finished, but it did not", i+1)
						}
						wantCount := min(cancelOn+1, numFuts)
						if counts[i] != wantCount {
							t.Errorf("expected task %d to return %d, but got: %d", i+1, wantCount, counts[i])
						}
					}

					wantErr := cancelOn < len(futs)
					if err := tasks[0].Err(); (err != nil) != wantErr {
						t.Errorf("expected error %t, but got: %v", wantErr, err)
					}
					for j, task := range tasks[1:] {
						if task.Err() == nil {
							t.Errorf("expected task %d to be cancelled, but it was not", j+1)
						}
					}
					return nil
				})
			}
		}
	}
}

func TestCallbackQueue(t *testing.T) {
	var q callbackQueue
	var order []int
	later := NewCallback(time.Hour, func() { order = append(order, 3) })
	q.Add(later)
	q.Add(NewCallback(-2*time.Millisecond, func() { order = append(order, 1) }))
	q.Add(NewCallback(-time.Millisecond, func() { order = append(order, 2) }))

	for q.RunNext() {
	}
	require.Equal(t, []int{1, 2}, order)
	require.False(t, q.Empty())

	require.True(t, later.Cancel())
	require.False(t, later.Cancel())
	require.True(t, q.Empty())
}

func TestEventLoop_RegisterNotRunning(t *testing.T) {
	_, err := NewEventLoop().Register(0)
	require.ErrorIs(t, err, ErrLoopNotRunning)
}
