package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryStrategy selects how the delay grows between attempts.
type RetryStrategy string

const (
	RetryExponential RetryStrategy = "exponential"
	RetryLinear      RetryStrategy = "linear"
	RetryFixed       RetryStrategy = "fixed"
)

var ErrInvalidRetryStrategy = errors.New("invalid retry strategy")

// ParseRetryStrategy maps a flag value to a strategy.
func ParseRetryStrategy(value string) (RetryStrategy, error) {
	switch strategy := RetryStrategy(value); strategy {
	case RetryExponential, RetryLinear, RetryFixed:
		return strategy, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRetryStrategy, value)
	}
}

// RetryPolicy describes bounded retries with backoff.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Strategy     RetryStrategy
}

// DefaultRetryPolicy returns three exponential attempts starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2.0,
		MaxDelay:     15 * time.Second,
		Strategy:     RetryExponential,
	}
}

// Delay returns the wait after the given 1-based attempt, capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	var delay time.Duration

	switch p.Strategy {
	case RetryExponential:
		delay = time.Duration(float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1)))
	case RetryLinear:
		delay = p.InitialDelay * time.Duration(attempt)
	case RetryFixed:
		delay = p.InitialDelay
	default:
		delay = p.InitialDelay
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}

	return delay
}

// Do calls fn until it succeeds, MaxAttempts is reached or ctx is done.
// onError, when set, observes every failed attempt.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error, onError func(attempt int, err error)) error {
	attempts := max(p.MaxAttempts, 1)
	attempt := 0

	var lastErr error

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++

		lastErr = fn(ctx)
		if lastErr != nil && onError != nil {
			onError(attempt, lastErr)
		}

		return struct{}{}, lastErr
	},
		backoff.WithBackOff(&policyBackOff{policy: p}),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		return nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}

	if ctx.Err() != nil && !errors.Is(err, lastErr) {
		return fmt.Errorf("retry aborted after %d attempts: %w", attempt, errors.Join(lastErr, err))
	}

	return fmt.Errorf("failed after %d attempts: %w", attempt, err)
}

// policyBackOff feeds RetryPolicy.Delay into backoff.Retry.
type policyBackOff struct {
	policy  RetryPolicy
	attempt int
}

func (b *policyBackOff) NextBackOff() time.Duration {
	b.attempt++

	return b.policy.Delay(b.attempt)
}

func (b *policyBackOff) Reset() {
	b.attempt = 0
}

// Permanent marks err as not worth retrying. Do returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
