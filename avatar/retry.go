package avatar

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy defines the per-provider retry behaviour.
type RetryPolicy struct {
	// MaxAttempts bounds total attempts against one provider, the first
	// attempt included.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
	// BaseDelay seeds the exponential backoff; the computed cap doubles
	// each attempt up to MaxDelay.
	BaseDelay time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay" json:"max_delay"`
}

// DefaultRetryPolicy returns sensible defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = def.MaxDelay
	}
	return p
}

// RetryEngine executes a logical delivery against a single provider with
// bounded retries. Backoff uses full jitter: the delay before attempt n+1
// is uniform in [0, min(base*2^(n-1), cap)], so concurrent requests never
// synchronize into a retry storm.
type RetryEngine struct {
	policy RetryPolicy
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryEngine creates a RetryEngine with the given policy.
func NewRetryEngine(policy RetryPolicy, logger *zap.Logger) *RetryEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryEngine{
		policy: policy.normalized(),
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Deliver attempts the request against one provider until it succeeds, a
// fatal failure ends it, or attempts are exhausted. It returns the number
// of attempts made alongside the result or the last error.
func (e *RetryEngine) Deliver(ctx context.Context, p Provider, req *SpeakRequest) (*SpeakResult, int, error) {
	var lastErr error
	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		res, err := p.Speak(ctx, req)
		if err == nil {
			if attempt > 1 {
				e.logger.Debug("delivery succeeded after retry",
					zap.String("provider", p.Name()),
					zap.Int("attempt", attempt),
				)
			}
			return res, attempt, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return nil, attempt, err
		}
		if attempt == e.policy.MaxAttempts {
			break
		}

		delay := e.delayBefore(attempt + 1)
		e.logger.Debug("retrying delivery",
			zap.String("provider", p.Name()),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := e.sleep(ctx, delay); err != nil {
			return nil, attempt, err
		}
	}

	e.logger.Warn("delivery attempts exhausted",
		zap.String("provider", p.Name()),
		zap.Int("attempts", e.policy.MaxAttempts),
		zap.Error(lastErr),
	)
	return nil, e.policy.MaxAttempts, lastErr
}

// delayBefore computes the full-jitter delay preceding the given attempt.
func (e *RetryEngine) delayBefore(attempt int) time.Duration {
	cap := e.policy.BaseDelay
	for i := 2; i < attempt; i++ {
		cap *= 2
		if cap >= e.policy.MaxDelay {
			cap = e.policy.MaxDelay
			break
		}
	}
	if cap <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(cap) + 1))
}

// sleepCtx suspends only the calling task; cancellation aborts the pending
// backoff immediately.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return nil
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
