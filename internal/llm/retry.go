package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry configuration.
const (
	MaxRetries           = 3
	RetryInitialInterval = time.Second
	RetryMaxInterval     = 30 * time.Second
	RetryMaxElapsedTime  = 2 * time.Minute
)

// NewRetryBackoff builds the exponential backoff with jitter the Agent Loop
// drives around repeated Client.Stream attempts.
func NewRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryInitialInterval
	b.MaxInterval = RetryMaxInterval
	b.MaxElapsedTime = RetryMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, MaxRetries), ctx)
}

// RateLimitBackoff is the longer base delay used on
// rate_limit errors ("yes, long backoff"), used in place of NewRetryBackoff
// when the previous attempt was classified errs.KindRateLimit.
func RateLimitBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Second
	b.MaxInterval = 60 * time.Second
	b.MaxElapsedTime = RetryMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, MaxRetries), ctx)
}
