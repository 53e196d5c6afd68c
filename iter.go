package nanogio

import (
	"context"
	"iter"
)

// AsyncIterable is an iterator whose producer may suspend between items.
// A non-nil error is always the final element.
type AsyncIterable[T any] iter.Seq2[T, error]

// ForEach calls f for every item, stopping at the first error.
func (ai AsyncIterable[T]) ForEach(f func(T) error) error {
	for v, err := range ai {
		if err != nil {
			return err
		}
		if err := f(v); err != nil {
			return err
		}
	}
	return nil
}

// UntilErr converts the iterable to a plain iterator that stops at the first error,
// which is stored in err.
func (ai AsyncIterable[T]) UntilErr(err *error) iter.Seq[T] {
	return func(yield func(T) bool) {
		for v, thisErr := range ai {
			if thisErr != nil {
				*err = thisErr
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

// AsyncIter builds an [AsyncIterable] from a producer function.
// yield returns an error once the consumer stops iterating;
// the producer should then return.
func AsyncIter[T any](f func(yield func(T) error) error) AsyncIterable[T] {
	return func(yield func(T, error) bool) {
		var earlyStop bool
		if err := f(func(val T) error {
			if !yield(val, nil) {
				earlyStop = true
				return context.Canceled
			}
			return nil
		}); err != nil && !earlyStop {
			var zero T
			yield(zero, err)
		}
	}
}

// Repeat returns an [AsyncIterable] yielding v count times, or forever if count is 0.
func Repeat[T any](v T, count int) AsyncIterable[T] {
	return AsyncIter(func(yield func(T) error) error {
		for i := 0; count == 0 || i < count; i++ {
			if err := yield(v); err != nil {
				return err
			}
		}
		return nil
	})
}
