package llm

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryPolicy bounds retries of retryable unified errors (429, 5xx,
// transport failures). Non-retryable errors fail immediately.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    15 * time.Second,
	}
}

// SleepFunc is injectable for tests.
type SleepFunc func(context.Context, time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is exhausted. A server-provided Retry-After wins over the
// computed backoff.
func Retry(ctx context.Context, policy RetryPolicy, sleep SleepFunc, fn func() (Response, error)) (Response, error) {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if sleep == nil {
		sleep = defaultSleep
	}
	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == policy.MaxAttempts-1 {
			return Response{}, err
		}
		d := backoffDelay(policy, attempt)
		var le Error
		if errors.As(err, &le) {
			if ra := le.RetryAfter(); ra != nil && *ra > 0 {
				d = *ra
			}
		}
		if err := sleep(ctx, d); err != nil {
			return Response{}, WrapContextError("", err)
		}
	}
	return Response{}, lastErr
}

func backoffDelay(policy RetryPolicy, attempt int) time.Duration {
	d := policy.BaseDelay << uint(attempt)
	if policy.MaxDelay > 0 && d > policy.MaxDelay {
		d = policy.MaxDelay
	}
	// Full jitter.
	if d > 0 {
		d = time.Duration(rand.Int63n(int64(d))) + d/2
	}
	if policy.MaxDelay > 0 && d > policy.MaxDelay {
		d = policy.MaxDelay
	}
	return d
}
