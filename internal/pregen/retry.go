package pregen

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/ttsblind/pregen/internal/synth"
)

const jitterPercent = 10

// RetryPolicy bounds how often a retryable provider error is retried and
// how long to wait between attempts.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	var b retry.Backoff = retry.NewExponential(base)
	b = retry.WithJitterPercent(jitterPercent, b)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	return retry.WithMaxRetries(uint64(p.attempts()-1), b)
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempt ceiling is reached. A provider Retry-After longer than the computed
// delay is honoured up to MaxDelay. If ctx ends while waiting, the last error
// is returned. The number of calls made is returned alongside.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error) (int, error) {
	b := p.backoff()
	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil || !synth.IsRetryable(err) {
			return attempt, err
		}
		delay, stop := b.Next()
		if stop {
			return attempt, err
		}
		if se, ok := synth.AsError(err); ok && se.RetryAfter > delay {
			delay = se.RetryAfter
		}
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return attempt, err
		case <-t.C:
		}
	}
}
