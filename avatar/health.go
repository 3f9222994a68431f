package avatar

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthState classifies a provider's current reliability.
type HealthState int8

const (
	StateHealthy HealthState = iota
	StateDegraded
	StateUnhealthy
)

func (s HealthState) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// HealthConfig tunes the per-provider health state machine. All thresholds
// are policy, not recovered requirements; defaults follow the common
// circuit-breaker shape.
type HealthConfig struct {
	// DegradeAfter is the consecutive-failure count that moves a HEALTHY
	// provider to DEGRADED.
	DegradeAfter int `yaml:"degrade_after" json:"degrade_after"`
	// FailAfter is the additional consecutive-failure count that moves a
	// DEGRADED provider to UNHEALTHY.
	FailAfter int `yaml:"fail_after" json:"fail_after"`
	// RecoverAfter is the consecutive-success count that restores HEALTHY.
	RecoverAfter int `yaml:"recover_after" json:"recover_after"`
	// CooldownBase seeds the UNHEALTHY re-admission cooldown; it doubles
	// with every flap up to CooldownMax.
	CooldownBase time.Duration `yaml:"cooldown_base" json:"cooldown_base"`
	CooldownMax  time.Duration `yaml:"cooldown_max" json:"cooldown_max"`
	// ProbeInterval schedules the background liveness probe; each cycle is
	// jittered to avoid a thundering herd across instances.
	ProbeInterval time.Duration `yaml:"probe_interval" json:"probe_interval"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout" json:"probe_timeout"`
}

// DefaultHealthConfig returns sensible defaults.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		DegradeAfter:  3,
		FailAfter:     2,
		RecoverAfter:  2,
		CooldownBase:  30 * time.Second,
		CooldownMax:   10 * time.Minute,
		ProbeInterval: 30 * time.Second,
		ProbeTimeout:  10 * time.Second,
	}
}

func (c HealthConfig) normalized() HealthConfig {
	def := DefaultHealthConfig()
	if c.DegradeAfter <= 0 {
		c.DegradeAfter = def.DegradeAfter
	}
	if c.FailAfter <= 0 {
		c.FailAfter = def.FailAfter
	}
	if c.RecoverAfter <= 0 {
		c.RecoverAfter = def.RecoverAfter
	}
	if c.CooldownBase <= 0 {
		c.CooldownBase = def.CooldownBase
	}
	if c.CooldownMax < c.CooldownBase {
		c.CooldownMax = def.CooldownMax
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = def.ProbeInterval
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = def.ProbeTimeout
	}
	return c
}

// HealthSnapshot is a read-only copy of one provider's health record.
type HealthSnapshot struct {
	State                HealthState `json:"state"`
	ConsecutiveFailures  int         `json:"consecutive_failures"`
	ConsecutiveSuccesses int         `json:"consecutive_successes"`
	Flaps                int         `json:"flaps"`
	CooldownUntil        time.Time   `json:"cooldown_until,omitempty"`
	LastProbe            time.Time   `json:"last_probe,omitempty"`
}

type providerHealth struct {
	mu              sync.Mutex
	state           HealthState
	consecFailures  int
	consecSuccesses int
	flaps           int
	cooldownUntil   time.Time
	canaryInFlight  bool
	lastProbe       time.Time
}

// Prober issues a liveness check against one provider by name. The health
// monitor runs probes on its own schedule, never inline with user requests.
type Prober interface {
	Probe(ctx context.Context, name string) error
}

// ProbeFunc adapts a function to the Prober interface.
type ProbeFunc func(ctx context.Context, name string) error

func (f ProbeFunc) Probe(ctx context.Context, name string) error { return f(ctx, name) }

// Monitor owns the per-provider health records. All other components only
// read snapshots; updates are commutative best-effort counters, so a lost
// update under race only delays a transition, never corrupts one.
//
// Records use a lock per provider so unrelated requests never serialize on
// each other, and no lock is ever held across a network call.
type Monitor struct {
	mu      sync.RWMutex
	records map[string]*providerHealth

	cfg    HealthConfig
	logger *zap.Logger
	now    func() time.Time

	onTransition func(name string, from, to HealthState)
}

// NewMonitor creates a Monitor with the given thresholds.
func NewMonitor(cfg HealthConfig, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		records: make(map[string]*providerHealth),
		cfg:     cfg.normalized(),
		logger:  logger,
		now:     time.Now,
	}
}

// OnTransition installs a hook invoked after every state change, outside
// the record lock. Set it before the monitor receives outcomes; it is not
// synchronized against them.
func (m *Monitor) OnTransition(fn func(name string, from, to HealthState)) {
	m.onTransition = fn
}

// Track ensures a health record exists for the provider. Re-tracking an
// existing provider keeps its record and publishes its actual state, not
// a fresh HEALTHY.
func (m *Monitor) Track(name string) {
	m.mu.Lock()
	r, ok := m.records[name]
	if !ok {
		r = &providerHealth{state: StateHealthy}
		m.records[name] = r
	}
	m.mu.Unlock()

	r.mu.Lock()
	state := r.state
	r.mu.Unlock()
	observeHealthState(name, state)
}

// Reconcile aligns tracked providers with a reloaded descriptor set:
// records for surviving names keep their history, removed providers are
// dropped, new ones start HEALTHY.
func (m *Monitor) Reconcile(names []string) {
	keep := make(map[string]struct{}, len(names))
	for _, n := range names {
		keep[n] = struct{}{}
	}

	m.mu.Lock()
	for name := range m.records {
		if _, ok := keep[name]; !ok {
			delete(m.records, name)
			dropHealthState(name)
		}
	}
	for _, name := range names {
		if _, ok := m.records[name]; !ok {
			m.records[name] = &providerHealth{state: StateHealthy}
		}
	}
	m.mu.Unlock()
}

func (m *Monitor) record(name string) *providerHealth {
	m.mu.RLock()
	r, ok := m.records[name]
	m.mu.RUnlock()
	if ok {
		return r
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok = m.records[name]; ok {
		return r
	}
	r = &providerHealth{state: StateHealthy}
	m.records[name] = r
	return r
}

// RecordSuccess feeds one successful outcome into the state machine. A
// success for an UNHEALTHY provider (its canary) lands it in DEGRADED, not
// HEALTHY, so a single lucky probe cannot flap it back into full rotation.
func (m *Monitor) RecordSuccess(name string) {
	r := m.record(name)
	r.mu.Lock()
	prev := r.state
	r.consecFailures = 0
	r.canaryInFlight = false
	switch r.state {
	case StateUnhealthy:
		r.state = StateDegraded
		r.consecSuccesses = 1
	case StateDegraded:
		r.consecSuccesses++
		if r.consecSuccesses >= m.cfg.RecoverAfter {
			r.state = StateHealthy
			r.consecSuccesses = 0
		}
	default:
		r.consecSuccesses++
	}
	state := r.state
	r.mu.Unlock()

	if state != prev {
		m.logger.Info("provider health transition",
			zap.String("provider", name),
			zap.Stringer("from", prev),
			zap.Stringer("to", state),
		)
		if m.onTransition != nil {
			m.onTransition(name, prev, state)
		}
	}
	observeHealthState(name, state)
}

// RecordFailure feeds one terminal failure into the state machine.
// Mid-cooldown failures of an already UNHEALTHY provider are ignored; a
// failed canary re-arms the cooldown, doubled per flap up to the cap.
func (m *Monitor) RecordFailure(name string) {
	r := m.record(name)
	now := m.now()

	r.mu.Lock()
	prev := r.state
	r.consecSuccesses = 0
	switch r.state {
	case StateHealthy:
		r.consecFailures++
		if r.consecFailures >= m.cfg.DegradeAfter {
			r.state = StateDegraded
			r.consecFailures = 0
		}
	case StateDegraded:
		r.consecFailures++
		if r.consecFailures >= m.cfg.FailAfter {
			r.state = StateUnhealthy
			r.consecFailures = 0
			r.cooldownUntil = now.Add(m.cooldown(r.flaps))
			r.flaps++
			r.canaryInFlight = false
		}
	case StateUnhealthy:
		if r.canaryInFlight || !now.Before(r.cooldownUntil) {
			r.cooldownUntil = now.Add(m.cooldown(r.flaps))
			r.flaps++
			r.canaryInFlight = false
		}
	}
	state := r.state
	until := r.cooldownUntil
	r.mu.Unlock()

	if state != prev {
		m.logger.Warn("provider health transition",
			zap.String("provider", name),
			zap.Stringer("from", prev),
			zap.Stringer("to", state),
			zap.Time("cooldown_until", until),
		)
		if m.onTransition != nil {
			m.onTransition(name, prev, state)
		}
	}
	observeHealthState(name, state)
}

// cooldown grows exponentially with the flap count, capped.
func (m *Monitor) cooldown(flaps int) time.Duration {
	d := m.cfg.CooldownBase
	for i := 0; i < flaps && d < m.cfg.CooldownMax; i++ {
		d *= 2
	}
	if d > m.cfg.CooldownMax {
		d = m.cfg.CooldownMax
	}
	return d
}

// Tier maps a provider onto its selection tier: 0 HEALTHY, 1 DEGRADED,
// 2 for an UNHEALTHY provider whose cooldown has elapsed and whose canary
// slot is free. ok is false when the provider must not be selected.
func (m *Monitor) Tier(name string) (int, bool) {
	r := m.record(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case StateHealthy:
		return 0, true
	case StateDegraded:
		return 1, true
	case StateUnhealthy:
		if !r.canaryInFlight && !m.now().Before(r.cooldownUntil) {
			return 2, true
		}
	}
	return 0, false
}

// AcquireCanary claims the single canary slot for a cooled-down UNHEALTHY
// provider. The claim is released by the next RecordSuccess/RecordFailure.
func (m *Monitor) AcquireCanary(name string) bool {
	r := m.record(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateUnhealthy || r.canaryInFlight || m.now().Before(r.cooldownUntil) {
		return false
	}
	r.canaryInFlight = true
	return true
}

// ReleaseCanary frees a claimed canary slot without recording an outcome,
// for trials that were aborted before any provider traffic was charged.
func (m *Monitor) ReleaseCanary(name string) {
	r := m.record(name)
	r.mu.Lock()
	r.canaryInFlight = false
	r.mu.Unlock()
}

// Snapshot returns a copy of every tracked provider's health record.
func (m *Monitor) Snapshot() map[string]HealthSnapshot {
	m.mu.RLock()
	names := make([]string, 0, len(m.records))
	recs := make([]*providerHealth, 0, len(m.records))
	for name, r := range m.records {
		names = append(names, name)
		recs = append(recs, r)
	}
	m.mu.RUnlock()

	out := make(map[string]HealthSnapshot, len(names))
	for i, r := range recs {
		r.mu.Lock()
		out[names[i]] = HealthSnapshot{
			State:                r.state,
			ConsecutiveFailures:  r.consecFailures,
			ConsecutiveSuccesses: r.consecSuccesses,
			Flaps:                r.flaps,
			CooldownUntil:        r.cooldownUntil,
			LastProbe:            r.lastProbe,
		}
		r.mu.Unlock()
	}
	return out
}

// Start runs the background probe loop until ctx is cancelled. Only
// DEGRADED and UNHEALTHY providers are probed; probe outcomes feed the
// same state machine as request outcomes.
func (m *Monitor) Start(ctx context.Context, prober Prober) {
	go func() {
		for {
			// Re-jitter every cycle: interval plus up to 20%.
			wait := m.cfg.ProbeInterval
			if j := int64(wait / 5); j > 0 {
				wait += time.Duration(rand.Int63n(j))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			m.probeCycle(ctx, prober)
		}
	}()
}

func (m *Monitor) probeCycle(ctx context.Context, prober Prober) {
	m.mu.RLock()
	targets := make([]string, 0, len(m.records))
	for name, r := range m.records {
		r.mu.Lock()
		if r.state != StateHealthy {
			targets = append(targets, name)
		}
		r.mu.Unlock()
	}
	m.mu.RUnlock()

	for _, name := range targets {
		probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
		start := m.now()
		err := prober.Probe(probeCtx, name)
		cancel()
		latency := m.now().Sub(start)

		r := m.record(name)
		r.mu.Lock()
		r.lastProbe = m.now()
		r.mu.Unlock()

		observeProbe(name, err == nil, latency)
		if err != nil {
			m.logger.Warn("provider probe failed",
				zap.String("provider", name),
				zap.Duration("latency", latency),
				zap.Error(err),
			)
			m.RecordFailure(name)
			continue
		}
		m.RecordSuccess(name)
	}
}
