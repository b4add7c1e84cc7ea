// Package poll provides the Poll-Until-Ready primitive used to await
// asynchronous backend jobs.
//
// poll.go implements WaitUntil, a generic wait that repeatedly invokes a
// caller-supplied probe at a fixed interval until the probe reports a final
// value, fails, or the deadline passes.
//
// Probes never overlap: the next tick is scheduled only after the previous
// probe has returned, so a slow probe stretches the schedule rather than
// stacking up concurrent calls.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Defaults applied by Options.WithDefaults.
const (
	DefaultInterval = time.Second
	DefaultTimeout  = 20 * time.Second
)

// ErrTimeout is matched by every *TimeoutError.
var ErrTimeout = errors.New("poll: timed out")

// TimeoutError reports that the probe kept returning "not yet" past the
// configured timeout.
type TimeoutError struct {
	Timeout time.Duration // configured deadline
	Elapsed time.Duration // time from the call start to the failing tick
	Ticks   int           // probes made
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("poll: timed out after %s (timeout %s, %d probes)",
		e.Elapsed.Round(time.Millisecond), e.Timeout, e.Ticks)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// CheckFunc probes once. It returns done=false for "not yet"; value is
// ignored in that case. A non-nil error ends the wait immediately.
type CheckFunc[T any] func(ctx context.Context) (value T, done bool, err error)

// Options configures WaitUntil.
type Options struct {
	// Interval between the end of one probe and the start of the next.
	// The first probe also waits one Interval. Default: 1s.
	Interval time.Duration

	// Timeout measured from the start of the call. Checked only after a
	// "not yet" probe, so the error surfaces at most one Interval (plus the
	// probe's own duration) late. Zero or negative waits until ctx ends.
	Timeout time.Duration
}

// WithDefaults returns o with a zero Interval replaced by DefaultInterval.
// Timeout is left alone since zero has its own meaning.
func (o Options) WithDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	return o
}

// WaitUntil invokes check every opts.Interval until it reports done.
//
// Returns the probe's value on success, the probe's error if it fails,
// ctx.Err() if the context ends first, or a *TimeoutError once the timeout
// has elapsed. check is never called again after WaitUntil returns.
func WaitUntil[T any](ctx context.Context, check CheckFunc[T], opts Options) (T, error) {
	var zero T
	opts = opts.WithDefaults()
	start := time.Now()

	timer := time.NewTimer(opts.Interval)
	defer timer.Stop()

	for ticks := 1; ; ticks++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-timer.C:
		}

		value, done, err := check(ctx)
		if err != nil {
			return zero, err
		}
		if done {
			return value, nil
		}

		elapsed := time.Since(start)
		if opts.Timeout > 0 && elapsed > opts.Timeout {
			return zero, &TimeoutError{Timeout: opts.Timeout, Elapsed: elapsed, Ticks: ticks}
		}

		timer.Reset(opts.Interval)
	}
}

// Sleep pauses for d or until ctx ends, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
