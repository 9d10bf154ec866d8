package analysis

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"medid-server-go/internal/domain/failure"
	"medid-server-go/internal/platform/config"
	"medid-server-go/internal/platform/errors"
	"medid-server-go/internal/platform/logging"
)

// jitterFraction spreads retries by up to ±10 % of the computed delay.
const jitterFraction = 0.1

// Backoff returns the wait before the next try after attempt (1-based).
func Backoff(p config.RetryPolicy, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := p.ExponentialBase
	if base < 1 {
		base = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(base, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter {
		delay += delay * jitterFraction * (rand.Float64()*2 - 1)
	}
	return time.Duration(max(delay, 0))
}

// noRetryCodes are failures a second attempt cannot change.
var noRetryCodes = map[string]bool{
	"drug_not_found":         true,
	"low_confidence":         true,
	"no_medication_detected": true,
	"model_unavailable":      true,
	"no_image_data":          true,
}

// Retryable reports whether err belongs to a retryable failure category.
func Retryable(err error) bool {
	if err == nil || noRetryCodes[errors.CodeOf(err)] {
		return false
	}
	return failure.Classify(err).RetryPossible
}

// Retry runs fn up to p.MaxAttempts times, sleeping Backoff between tries.
// It stops early on non-retryable errors and when ctx is done.
func Retry[T any](ctx context.Context, p config.RetryPolicy, logger *logging.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	attempts := max(p.MaxAttempts, 1)
	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = fn(ctx)
		if err == nil || !Retryable(err) || attempt == attempts {
			return result, err
		}

		delay := Backoff(p, attempt)
		logger.WarnTag("RETRY", "%s attempt %d/%d failed (%s), retrying in %s",
			op, attempt, attempts, errors.CodeOf(err), delay.Round(time.Millisecond))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, err
		case <-timer.C:
		}
	}
	return result, err
}
