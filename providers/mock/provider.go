// Package mock provides an in-process avatar provider for tests and local
// development. Failures and latency are scriptable.
package mock

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/BaSui01/avatargate/avatar"
	"github.com/BaSui01/avatargate/providers"
	"go.uber.org/zap"
)

func init() {
	providers.RegisterKind("mock", func(desc avatar.Descriptor, logger *zap.Logger) (avatar.Provider, error) {
		return New(desc.Name), nil
	})
}

// Provider replays scripted errors before succeeding. The zero value is a
// provider named "mock" that always succeeds instantly.
type Provider struct {
	mu        sync.Mutex
	name      string
	delay     time.Duration
	errs      []error
	unhealthy bool
	calls     int
	probes    int
}

// New creates a mock provider with the given name.
func New(name string) *Provider {
	if name == "" {
		name = "mock"
	}
	return &Provider{name: name}
}

func (p *Provider) Name() string {
	if p.name == "" {
		return "mock"
	}
	return p.name
}

// FailWith queues errors returned by subsequent Speak calls, in order.
func (p *Provider) FailWith(errs ...error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, errs...)
	return p
}

// WithDelay makes every Speak call block for d before responding.
func (p *Provider) WithDelay(d time.Duration) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = d
	return p
}

// SetUnhealthy controls what HealthCheck reports.
func (p *Provider) SetUnhealthy(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unhealthy = v
}

// Calls reports how many Speak calls the provider has seen.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Probes reports how many HealthCheck calls the provider has seen.
func (p *Provider) Probes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.probes
}

func (p *Provider) Speak(ctx context.Context, req *avatar.SpeakRequest) (*avatar.SpeakResult, error) {
	p.mu.Lock()
	p.calls++
	delay := p.delay
	var next error
	if len(p.errs) > 0 {
		next = p.errs[0]
		p.errs = p.errs[1:]
	}
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, (&avatar.Error{Code: avatar.ErrTimeout, Message: "mock delivery interrupted", Provider: p.Name()}).WithCause(ctx.Err())
		}
	}
	if next != nil {
		return nil, next
	}

	body, _ := json.Marshal(map[string]string{
		"status":  "spoken",
		"text":    req.Text,
		"emotion": req.Emotion,
	})
	return &avatar.SpeakResult{Body: body}, nil
}

func (p *Provider) HealthCheck(ctx context.Context) (*avatar.HealthStatus, error) {
	p.mu.Lock()
	p.probes++
	unhealthy := p.unhealthy
	p.mu.Unlock()

	if unhealthy {
		return &avatar.HealthStatus{Healthy: false}, &avatar.Error{
			Code: avatar.ErrProviderServer, Message: "mock marked unhealthy", Retryable: true, Provider: p.Name(),
		}
	}
	return &avatar.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}
