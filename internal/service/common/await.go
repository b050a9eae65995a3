//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPanicked wraps a panic recovered from an awaited call.
var ErrPanicked = errors.New("call panicked")

// result carries the outcome of an awaited call.
type result[T any] struct {
	value T
	err   error
}

// Await runs fn in its own goroutine and returns as soon as either fn
// finishes or ctx is done. A collaborator that ignores ctx therefore cannot
// hold the caller past its deadline; its goroutine finishes in the
// background and the late result is discarded. Panics in fn are returned
// as errors wrapping ErrPanicked.
func Await[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, err
	}

	done := make(chan result[T], 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result[T]{err: fmt.Errorf("%w: %v", ErrPanicked, r)}
			}
		}()

		value, err := fn(ctx)
		done <- result[T]{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-done:
		return r.value, r.err
	}
}

// Sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
