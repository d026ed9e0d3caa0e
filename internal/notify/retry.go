package notify

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// Policy configures retries around a Sender.
type Policy struct {
	// MaxAttempts is the total number of tries. Values below 1 mean 1.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy is a single attempt.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 1, BaseDelay: 500 * time.Millisecond, MaxDelay: 4 * time.Second}
}

type retrying struct {
	next   Sender
	policy Policy
	sleep  func(context.Context, time.Duration) error
}

// WithRetry wraps next so that delivery failures are retried with jittered
// exponential backoff. Validation and attachment errors are never retried.
func WithRetry(next Sender, p Policy) Sender {
	if p.MaxAttempts <= 1 {
		return next
	}
	return &retrying{next: next, policy: p, sleep: sleepCtx}
}

func (r *retrying) Deliver(ctx context.Context, req Request) error {
	backoff := r.policy.BaseDelay
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		lastErr = r.next.Deliver(ctx, req)
		if lastErr == nil {
			return nil
		}
		var de *DeliveryError
		if !errors.As(lastErr, &de) || attempt == r.policy.MaxAttempts {
			return lastErr
		}
		wait := withJitter(backoff)
		if r.policy.MaxDelay > 0 && wait > r.policy.MaxDelay {
			wait = r.policy.MaxDelay
		}
		zerolog.Ctx(ctx).Warn().Err(lastErr).Int("attempt", attempt).Dur("wait", wait).Msg("delivery failed, retrying")
		if err := r.sleep(ctx, wait); err != nil {
			return lastErr
		}
		backoff *= 2
	}
	return lastErr
}

// withJitter returns a backoff duration with +/- 20% jitter applied.
func withJitter(d time.Duration) time.Duration {
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if out <= 0 {
		return d
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
