package avatar

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	speakRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatar_speak_requests_total",
			Help: "Total speak deliveries by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
	speakDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "avatar_speak_duration_seconds",
			Help:    "Speak delivery duration per provider, retries included.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)
	cacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avatar_cache_hits_total",
			Help: "Total speak requests served from the response cache.",
		},
	)
	cacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avatar_cache_misses_total",
			Help: "Total speak requests that missed the response cache.",
		},
	)
	rateLimitDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatar_rate_limit_denials_total",
			Help: "Total local admission denials per provider.",
		},
		[]string{"provider"},
	)
)

func observeOutcome(provider, outcome string, elapsed time.Duration) {
	speakRequestsTotal.WithLabelValues(provider, outcome).Inc()
	speakDurationSeconds.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func observeCache(hit bool) {
	if hit {
		cacheHitsTotal.Inc()
		return
	}
	cacheMissesTotal.Inc()
}

func observeRateLimited(provider string) {
	rateLimitDenialsTotal.WithLabelValues(provider).Inc()
}
