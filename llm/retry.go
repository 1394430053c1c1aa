package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	retryDelay        = 1 * time.Second
	backoffMultiplier = 2
)

// limiter bounds concurrent provider calls and applies the per-call timeout
// and retry policy shared by every provider.
type limiter struct {
	slots      chan struct{}
	maxRetries int
	timeout    time.Duration
	delay      time.Duration
	log        zerolog.Logger
}

func newLimiter(maxConcurrent, maxRetries int, timeout time.Duration, log zerolog.Logger) *limiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &limiter{
		slots:      make(chan struct{}, maxConcurrent),
		maxRetries: maxRetries,
		timeout:    timeout,
		delay:      retryDelay,
		log:        log,
	}
}

// do runs call with at most maxRetries attempts. Errors wrapped with
// backoff.Permanent stop the loop immediately.
func (l *limiter) do(ctx context.Context, name string, call func(ctx context.Context) error) error {
	select {
	case l.slots <- struct{}{}:
		defer func() { <-l.slots }()
	case <-ctx.Done():
		return ctx.Err()
	}

	attempt := 0
	op := func() error {
		attempt++
		callCtx := ctx
		if l.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, l.timeout)
			defer cancel()
		}
		return call(callCtx)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.delay
	b.Multiplier = backoffMultiplier
	b.RandomizationFactor = 0.1
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(l.maxRetries-1)), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		l.log.Warn().Err(err).Str("call", name).Int("attempt", attempt).Dur("retry_in", wait).Msg("LLM request failed, retrying")
	})
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		return fmt.Errorf("%s failed after %d attempts: %w", name, attempt, err)
	}
	return nil
}
