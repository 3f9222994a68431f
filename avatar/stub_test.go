package avatar

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// stubProvider replays scripted responses for pipeline tests.
type stubProvider struct {
	mu      sync.Mutex
	name    string
	results []stubResult
	calls   int
	healthy bool
}

type stubResult struct {
	res *SpeakResult
	err error
}

func newStub(name string) *stubProvider {
	return &stubProvider{name: name, healthy: true}
}

func (s *stubProvider) succeed() *stubProvider {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, _ := json.Marshal(map[string]string{"status": "ok"})
	s.results = append(s.results, stubResult{res: &SpeakResult{Body: body}})
	return s
}

func (s *stubProvider) fail(err error) *stubProvider {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, stubResult{err: err})
	return s
}

func (s *stubProvider) failN(n int, err error) *stubProvider {
	for i := 0; i < n; i++ {
		s.fail(err)
	}
	return s
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Speak(ctx context.Context, _ *SpeakRequest) (*SpeakResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError(ErrTimeout, "stub interrupted").WithCause(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.results) == 0 {
		body, _ := json.Marshal(map[string]string{"status": "ok"})
		return &SpeakResult{Body: body}, nil
	}
	next := s.results[0]
	s.results = s.results[1:]
	if next.err != nil {
		return nil, next.err
	}
	res := *next.res
	return &res, nil
}

func (s *stubProvider) HealthCheck(context.Context) (*HealthStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.healthy {
		return &HealthStatus{Healthy: false}, nil
	}
	return &HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

// common scripted errors
func serverErr(provider string) *Error {
	return NewError(ErrProviderServer, "upstream 500").WithRetryable(true).WithProvider(provider)
}

func rejectedErr(provider string) *Error {
	return NewError(ErrProviderRejected, "payload rejected").WithProvider(provider)
}

func unauthorizedErr(provider string) *Error {
	return NewError(ErrUnauthorized, "bad credentials").WithProvider(provider)
}

func throttledErr(provider string) *Error {
	return NewError(ErrRateLimited, "upstream 429").WithHTTPStatus(429).WithProvider(provider)
}
