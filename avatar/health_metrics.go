package avatar

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	providerHealthState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "avatar_provider_health_state",
			Help: "Provider health state (0 healthy, 1 degraded, 2 unhealthy).",
		},
		[]string{"provider"},
	)
	providerProbeLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "avatar_provider_probe_latency_ms",
			Help:    "Provider liveness probe latency in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"provider"},
	)
	providerProbeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatar_provider_probe_failures_total",
			Help: "Total provider liveness probe failures.",
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(
		providerHealthState,
		providerProbeLatencyMs,
		providerProbeFailuresTotal,
	)
}

func observeHealthState(provider string, state HealthState) {
	providerHealthState.WithLabelValues(provider).Set(float64(state))
}

func dropHealthState(provider string) {
	providerHealthState.DeleteLabelValues(provider)
}

func observeProbe(provider string, healthy bool, latency time.Duration) {
	if latency > 0 {
		providerProbeLatencyMs.WithLabelValues(provider).Observe(float64(latency.Milliseconds()))
	}
	if !healthy {
		providerProbeFailuresTotal.WithLabelValues(provider).Inc()
	}
}
