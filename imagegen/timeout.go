package imagegen

import (
	"context"
	"errors"
	"time"

	"spellforge/poll"
)

var errCallTimeout = errors.New("imagegen: call timeout")

// RunWithTimeout runs fn under a deadline of timeout. If that deadline,
// rather than ctx, ends the call, the error is a *poll.TimeoutError. A
// non-positive timeout runs fn with ctx unchanged.
func RunWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}

	start := time.Now()
	tctx, cancel := context.WithTimeoutCause(ctx, timeout, errCallTimeout)
	defer cancel()

	v, err := fn(tctx)
	if err != nil && ctx.Err() == nil && errors.Is(context.Cause(tctx), errCallTimeout) {
		var zero T
		return zero, &poll.TimeoutError{Timeout: timeout, Elapsed: time.Since(start)}
	}
	return v, err
}
