package fn

import (
	"context"
	"math/rand"
	"time"
)

// RetryOpts tunes Retry. InitialWait doubles after each failed attempt up
// to MaxWait; Jitter randomizes each sleep to spread out reconnect storms
// against an upstream that is already rate limiting (Reddit's API in
// particular).
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
}

// DefaultRetry suits short HTTP fetches.
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: time.Second,
	MaxWait:     30 * time.Second,
	Jitter:      true,
}

// backoff returns the sleep before the next attempt given the current base
// wait.
func (o RetryOpts) backoff(wait time.Duration) time.Duration {
	d := wait
	if o.Jitter {
		d = time.Duration(float64(wait) * (0.5 + rand.Float64()))
	}
	if d > o.MaxWait {
		d = o.MaxWait
	}
	return d
}

// Retry runs f until it succeeds, attempts are exhausted, or ctx is
// cancelled. The listing and comment fetches wrap their HTTP calls in
// this; the final attempt's result is returned as-is on exhaustion.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	var result Result[T]
	wait := opts.InitialWait

	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		result = f(ctx)
		if result.IsOk() {
			return result
		}
		if attempt == opts.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return Err[T](ctx.Err())
		case <-time.After(opts.backoff(wait)):
		}

		wait *= 2
		if wait > opts.MaxWait {
			wait = opts.MaxWait
		}
	}
	return result
}

// RetryStage lifts Retry onto a Stage so retries compose into pipelines.
func RetryStage[In, Out any](opts RetryOpts, stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		return Retry(ctx, opts, func(ctx context.Context) Result[Out] {
			return stage(ctx, in)
		})
	}
}
