package avatar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine(policy RetryPolicy) (*RetryEngine, *[]time.Duration) {
	e := NewRetryEngine(policy, nil)
	slept := &[]time.Duration{}
	e.sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return e, slept
}

func TestRetryEngineFirstAttemptSuccess(t *testing.T) {
	e, slept := testEngine(DefaultRetryPolicy())
	p := newStub("duix").succeed()

	res, attempts, err := e.Deliver(context.Background(), p, &SpeakRequest{Text: "hi"})
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, *slept)
}

func TestRetryEngineRetriesRetryableThenSucceeds(t *testing.T) {
	e, slept := testEngine(DefaultRetryPolicy())
	p := newStub("duix").failN(2, serverErr("duix")).succeed()

	res, attempts, err := e.Deliver(context.Background(), p, &SpeakRequest{Text: "hi"})
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, 3, attempts)
	assert.Len(t, *slept, 2)
}

func TestRetryEngineExhaustsAttempts(t *testing.T) {
	e, _ := testEngine(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Second})
	p := newStub("duix").failN(5, serverErr("duix"))

	_, attempts, err := e.Deliver(context.Background(), p, &SpeakRequest{Text: "hi"})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, p.callCount(), "no attempt beyond the cap")
	assert.Equal(t, ErrProviderServer, CodeOf(err))
}

func TestRetryEngineFatalErrorShortCircuits(t *testing.T) {
	for _, fatal := range []*Error{
		rejectedErr("duix"),
		unauthorizedErr("duix"),
		NewError(ErrInvalidRequest, "empty text"),
	} {
		e, slept := testEngine(DefaultRetryPolicy())
		p := newStub("duix").fail(fatal).succeed()

		_, attempts, err := e.Deliver(context.Background(), p, &SpeakRequest{Text: "hi"})
		require.Error(t, err)
		assert.Equal(t, 1, attempts)
		assert.Equal(t, 1, p.callCount())
		assert.Empty(t, *slept, "no backoff after a non-retryable error")
		assert.Equal(t, fatal.Code, CodeOf(err))
	}
}

func TestRetryEngineUpstreamThrottleEndsAttempts(t *testing.T) {
	e, slept := testEngine(DefaultRetryPolicy())
	p := newStub("duix").failN(3, throttledErr("duix"))

	_, attempts, err := e.Deliver(context.Background(), p, &SpeakRequest{Text: "hi"})
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "a throttling provider is never retried in place")
	assert.Equal(t, 1, p.callCount())
	assert.Empty(t, *slept, "no backoff against a throttling provider")
	assert.Equal(t, ErrRateLimited, CodeOf(err))
}

func TestRetryEngineBackoffWithinJitterBounds(t *testing.T) {
	e := NewRetryEngine(RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}, nil)

	// Full jitter: uniform in [0, min(base*2^(n-2), max)].
	caps := map[int]time.Duration{
		2: 200 * time.Millisecond,
		3: 400 * time.Millisecond,
		4: 800 * time.Millisecond,
		5: 1600 * time.Millisecond,
	}
	for attempt, cap := range caps {
		for i := 0; i < 50; i++ {
			d := e.delayBefore(attempt)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.LessOrEqual(t, d, cap, "attempt %d", attempt)
		}
	}
}

func TestRetryEngineBackoffCapped(t *testing.T) {
	e := NewRetryEngine(RetryPolicy{
		MaxAttempts: 20,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}, nil)
	for i := 0; i < 50; i++ {
		assert.LessOrEqual(t, e.delayBefore(15), 5*time.Second)
	}
}

func TestRetryEngineContextCancelAbortsBackoff(t *testing.T) {
	e := NewRetryEngine(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}, nil)
	p := newStub("duix").failN(3, serverErr("duix"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, _, err := e.Deliver(ctx, p, &SpeakRequest{Text: "hi"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second, "cancelled backoff must not block")
}

func TestSleepCtx(t *testing.T) {
	require.NoError(t, sleepCtx(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, sleepCtx(ctx, 0), context.Canceled)
}
