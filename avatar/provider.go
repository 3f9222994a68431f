package avatar

import (
	"context"
	"encoding/json"
	"time"
)

// SpeakRequest is one utterance to deliver to an avatar backend.
// Text, Emotion and Language form the payload; VoiceID and Gesture are
// optional and provider-specific. Timeout, when set, bounds the whole
// delivery including failover across providers.
type SpeakRequest struct {
	Text     string        `json:"text"`
	Emotion  string        `json:"emotion,omitempty"`
	Language string        `json:"language,omitempty"`
	VoiceID  string        `json:"voice_id,omitempty"`
	Gesture  string        `json:"gesture,omitempty"`
	AvatarID string        `json:"avatar_id,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}

// SpeakResult is a successful delivery.
type SpeakResult struct {
	ID        string          `json:"id,omitempty"`
	Provider  string          `json:"provider,omitempty"`
	Body      json.RawMessage `json:"body,omitempty"`
	Cached    bool            `json:"cached,omitempty"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
}

// HealthStatus is the result of a provider liveness probe.
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
}

// Provider is the uniform adapter interface over one avatar backend.
// Implementations translate the canonical payload into the backend's wire
// format and map backend failures onto *Error values so the retry engine
// and health monitor can classify them.
type Provider interface {
	// Speak delivers one utterance. Errors should be *Error values.
	Speak(ctx context.Context, req *SpeakRequest) (*SpeakResult, error)

	// HealthCheck performs a lightweight liveness probe, used by the
	// background probe loop rather than inline with user requests.
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Name returns the provider's unique identifier.
	Name() string
}
