package billing

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy controls how transient provider failures are retried within one charge
type RetryPolicy struct {
	// MaxAttempts is the total number of provider calls, including the first
	MaxAttempts int
	// Interval is the wait before the second attempt. Zero disables waiting.
	Interval time.Duration
	// Exponential doubles the wait after every failed attempt
	Exponential bool
	// MaxInterval caps exponential waits. Zero means uncapped.
	MaxInterval time.Duration
}

// DefaultRetryPolicy returns five attempts one second apart
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		Interval:    time.Second,
	}
}

// NoDelayRetryPolicy returns a policy that retries immediately
func NoDelayRetryPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: maxAttempts}
}

// Validate checks the policy is usable
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return errors.New("retry policy needs at least one attempt")
	}
	if p.Interval < 0 || p.MaxInterval < 0 {
		return errors.New("retry intervals cannot be negative")
	}
	return nil
}

// newBackOff returns a fresh wait schedule for a single charge
func (p RetryPolicy) newBackOff() backoff.BackOff {
	if p.Interval <= 0 {
		return &backoff.ZeroBackOff{}
	}
	if !p.Exponential {
		return backoff.NewConstantBackOff(p.Interval)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Interval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	// backoff caps at one minute unless told otherwise
	b.MaxInterval = time.Duration(math.MaxInt64)
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.Reset()
	return b
}

// sleepContext waits for d or until ctx is done, whichever comes first
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
