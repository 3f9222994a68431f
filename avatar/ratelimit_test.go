package avatar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterUnconfiguredAdmits(t *testing.T) {
	l := NewRateLimiter()
	for i := 0; i < 100; i++ {
		assert.True(t, l.TryAcquire("anything"))
	}
}

func TestRateLimiterDeniesBeyondBurst(t *testing.T) {
	l := NewRateLimiter()
	l.Configure("duix", 1, 3)

	admitted := 0
	for i := 0; i < 10; i++ {
		if l.TryAcquire("duix") {
			admitted++
		}
	}
	// The bucket starts full; refill within the loop is negligible.
	assert.Equal(t, 3, admitted)
}

func TestRateLimiterZeroBurstStillAdmitsOne(t *testing.T) {
	l := NewRateLimiter()
	l.Configure("duix", 5, 0)
	assert.True(t, l.TryAcquire("duix"))
}

func TestRateLimiterNonPositiveRPSRemovesBound(t *testing.T) {
	l := NewRateLimiter()
	l.Configure("duix", 1, 1)
	assert.True(t, l.TryAcquire("duix"))
	assert.False(t, l.TryAcquire("duix"))

	l.Configure("duix", 0, 0)
	for i := 0; i < 10; i++ {
		assert.True(t, l.TryAcquire("duix"))
	}
}

func TestRateLimiterBucketsAreIndependent(t *testing.T) {
	l := NewRateLimiter()
	l.Configure("a", 1, 1)
	l.Configure("b", 1, 1)

	assert.True(t, l.TryAcquire("a"))
	assert.False(t, l.TryAcquire("a"))
	assert.True(t, l.TryAcquire("b"), "draining one bucket must not affect another")
}
