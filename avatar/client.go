package avatar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ClientConfig assembles the delivery pipeline.
type ClientConfig struct {
	// AvatarID is injected into provider payloads when the request does
	// not carry its own.
	AvatarID string

	Retry  RetryPolicy
	Health HealthConfig

	// CacheTTL bounds how long a successful delivery absorbs duplicates.
	// Commentary is near real time, so the default is short.
	CacheTTL time.Duration
	// CacheCapacity bounds the in-memory cache; ignored when Cache is set.
	CacheCapacity int
	// Cache overrides the default in-memory cache, e.g. with a RedisCache.
	Cache Cache

	// Events, when set, receives delivery lifecycle and health transition
	// events, e.g. a *dispatch.Dispatcher. Nil means no events.
	Events EventSink
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Retry:         DefaultRetryPolicy(),
		Health:        DefaultHealthConfig(),
		CacheTTL:      5 * time.Second,
		CacheCapacity: 1024,
	}
}

// Client is the delivery façade. A speak call runs cache lookup, candidate
// selection, rate admission, retry-with-backoff, failover, health update
// and cache store, in that order. All shared state lives on the Client, so
// independent instances never cross-contaminate.
type Client struct {
	registry *Registry
	health   *Monitor
	limiter  *RateLimiter
	cache    Cache
	engine   *RetryEngine
	selector *Selector
	group    singleflight.Group

	avatarID string
	cacheTTL time.Duration
	events   EventSink
	logger   *zap.Logger
}

// NewClient creates a Client. A nil logger is replaced with a no-op one.
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := cfg.Cache
	if cache == nil {
		var err error
		cache, err = NewMemoryCache(cfg.CacheCapacity)
		if err != nil {
			return nil, fmt.Errorf("build response cache: %w", err)
		}
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultClientConfig().CacheTTL
	}

	registry := NewRegistry()
	health := NewMonitor(cfg.Health, logger)
	c := &Client{
		registry: registry,
		health:   health,
		limiter:  NewRateLimiter(),
		cache:    cache,
		engine:   NewRetryEngine(cfg.Retry, logger),
		selector: NewSelector(registry, health),
		avatarID: cfg.AvatarID,
		cacheTTL: ttl,
		events:   cfg.Events,
		logger:   logger.With(zap.String("component", "avatar_client")),
	}
	if c.events != nil {
		health.OnTransition(func(name string, from, to HealthState) {
			c.events.Emit(context.Background(), EventHealthTransition, "health_monitor", map[string]any{
				"provider": name,
				"from":     from.String(),
				"to":       to.String(),
			})
		})
	}
	return c, nil
}

// emit forwards an event to the configured sink, if any.
func (c *Client) emit(ctx context.Context, eventType string, data map[string]any) {
	if c.events == nil {
		return
	}
	c.events.Emit(ctx, eventType, "avatar_client", data)
}

// Register adds a provider to the rotation.
func (c *Client) Register(desc Descriptor, p Provider) error {
	if err := c.registry.Register(desc, p); err != nil {
		return err
	}
	c.health.Track(desc.Name)
	c.limiter.Configure(desc.Name, desc.RPS, desc.Burst)
	c.logger.Info("provider registered",
		zap.String("provider", desc.Name),
		zap.String("kind", desc.Kind),
		zap.Int("weight", desc.Weight),
	)
	return nil
}

// Reload replaces the provider set wholesale, preserving health history
// for providers that persist across the reload. In-flight requests finish
// against the entries they already resolved.
func (c *Client) Reload(entries []*Entry) {
	kept := c.registry.Replace(entries)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Descriptor.Name)
		c.limiter.Configure(e.Descriptor.Name, e.Descriptor.RPS, e.Descriptor.Burst)
	}
	c.health.Reconcile(names)
	c.logger.Info("provider set reloaded",
		zap.Int("providers", len(entries)),
		zap.Strings("kept", kept),
	)
}

// Start launches the background probe loop; it stops when ctx is cancelled.
func (c *Client) Start(ctx context.Context) {
	c.health.Start(ctx, ProbeFunc(func(ctx context.Context, name string) error {
		entry, ok := c.registry.Get(name)
		if !ok {
			return fmt.Errorf("provider %q not registered", name)
		}
		st, err := entry.Provider.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if st == nil || !st.Healthy {
			return fmt.Errorf("provider %q reported unhealthy", name)
		}
		return nil
	}))
}

// HealthSnapshot exposes the current per-provider health records.
func (c *Client) HealthSnapshot() map[string]HealthSnapshot {
	return c.health.Snapshot()
}

// CheckProviders runs every adapter's liveness probe on demand and returns
// the result per provider. Probe failures feed the health state machine
// the same way scheduled probes do.
func (c *Client) CheckProviders(ctx context.Context) map[string]*HealthStatus {
	out := make(map[string]*HealthStatus)
	for _, entry := range c.registry.List() {
		name := entry.Descriptor.Name
		st, err := entry.Provider.HealthCheck(ctx)
		if err != nil || st == nil {
			st = &HealthStatus{Healthy: false}
		}
		out[name] = st
		if st.Healthy {
			c.health.RecordSuccess(name)
		} else {
			c.health.RecordFailure(name)
		}
	}
	return out
}

// Stats summarizes the client's current state for diagnostics.
type Stats struct {
	AvatarID     string                    `json:"avatar_id,omitempty"`
	Providers    map[string]HealthSnapshot `json:"providers"`
	CacheEntries int                       `json:"cache_entries"`
}

// Stats returns a diagnostic snapshot.
func (c *Client) Stats() Stats {
	return Stats{
		AvatarID:     c.avatarID,
		Providers:    c.health.Snapshot(),
		CacheEntries: c.cache.Len(),
	}
}

// Speak delivers one utterance to the first provider that accepts it.
// Identical payloads within the cache TTL are served from cache with no
// provider traffic, and concurrent identical payloads collapse into a
// single delivery.
func (c *Client) Speak(ctx context.Context, req *SpeakRequest) (*SpeakResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	r := *req
	if r.AvatarID == "" {
		r.AvatarID = c.avatarID
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	fp := Fingerprint(&r)
	if res, ok := c.cache.Get(ctx, fp); ok {
		observeCache(true)
		return res, nil
	}
	observeCache(false)

	v, err, _ := c.group.Do(fp, func() (interface{}, error) {
		return c.deliver(ctx, fp, &r)
	})
	if err != nil {
		return nil, err
	}
	return v.(*SpeakResult), nil
}

// deliver walks the candidate list until one provider succeeds.
func (c *Client) deliver(ctx context.Context, fp string, req *SpeakRequest) (*SpeakResult, error) {
	candidates := c.selector.Candidates(req)
	outcomes := make([]ProviderOutcome, 0, len(candidates))

	for _, cand := range candidates {
		name := cand.Entry.Descriptor.Name

		if !c.limiter.TryAcquire(name) {
			observeRateLimited(name)
			outcomes = append(outcomes, ProviderOutcome{
				Provider: name,
				Code:     ErrRateLimited,
				Err:      NewError(ErrRateLimited, "local admission denied").WithProvider(name),
			})
			c.emit(ctx, EventFailover, map[string]any{
				"provider": name,
				"code":     string(ErrRateLimited),
			})
			continue
		}
		if cand.Canary && !c.health.AcquireCanary(name) {
			// Another request already holds this provider's canary slot.
			continue
		}

		start := time.Now()
		res, attempts, err := c.engine.Deliver(ctx, cand.Entry.Provider, req)
		elapsed := time.Since(start)

		if err == nil {
			c.health.RecordSuccess(name)
			observeOutcome(name, "success", elapsed)
			res.ID = uuid.NewString()
			res.Provider = name
			res.CreatedAt = time.Now()
			c.cache.Put(ctx, fp, res, c.cacheTTL)
			c.emit(ctx, EventDelivered, map[string]any{
				"provider": name,
				"attempts": attempts,
				"id":       res.ID,
			})
			return res, nil
		}

		if ctx.Err() != nil {
			// The caller's own deadline ended the attempt; the provider is
			// not charged a failure for our impatience.
			if cand.Canary {
				c.health.ReleaseCanary(name)
			}
			return nil, NewError(ErrTimeout, "delivery aborted by caller deadline").
				WithProvider(name).WithCause(ctx.Err())
		}
		if IsCallerFault(err) {
			// Retrying elsewhere cannot fix a caller defect.
			if cand.Canary {
				c.health.ReleaseCanary(name)
			}
			return nil, err
		}

		c.health.RecordFailure(name)
		observeOutcome(name, "failure", elapsed)
		c.logger.Warn("provider delivery failed",
			zap.String("provider", name),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		outcomes = append(outcomes, ProviderOutcome{
			Provider: name,
			Code:     CodeOf(err),
			Attempts: attempts,
			Err:      err,
		})
		c.emit(ctx, EventFailover, map[string]any{
			"provider": name,
			"code":     string(CodeOf(err)),
			"attempts": attempts,
		})
	}

	c.emit(ctx, EventExhausted, map[string]any{"candidates": len(outcomes)})
	return nil, &ExhaustedError{Outcomes: outcomes}
}

func validateRequest(req *SpeakRequest) error {
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return NewError(ErrInvalidRequest, "speak request requires non-empty text")
	}
	return nil
}
