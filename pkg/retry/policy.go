package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds one external call: attempts, per-attempt timeout and backoff between attempts.
type Policy struct {
	Attempts        int
	Timeout         time.Duration // per attempt; 0 means only the caller's deadline applies
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy is used for the vector index and the generation service
func DefaultPolicy(timeout time.Duration) Policy {
	return Policy{
		Attempts:        3,
		Timeout:         timeout,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, fails permanently, the attempts are exhausted
// or ctx ends. It returns the number of attempts made.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, int, error) {
	attempts := 0

	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	maxTries := p.Attempts
	if maxTries < 1 {
		maxTries = 1
	}

	result, err := backoff.Retry(ctx, func() (T, error) {
		attempts++

		if err := ctx.Err(); err != nil {
			var zero T
			return zero, backoff.Permanent(err)
		}

		attemptCtx := ctx
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}

		out, err := op(attemptCtx)
		if err != nil && ctx.Err() != nil {
			// The caller went away; retrying cannot help.
			return out, backoff.Permanent(err)
		}
		return out, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(maxTries)))

	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
	}
	return result, attempts, err
}
