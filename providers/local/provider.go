// Package local adapts a self-hosted avatar service speaking the canonical
// wire format: POST {base}/speak with {"text","emotion","language"}.
package local

import (
	"context"
	"net/http"
	"strings"

	"github.com/BaSui01/avatargate/avatar"
	"github.com/BaSui01/avatargate/providers"
	"go.uber.org/zap"
)

const (
	speakPath  = "/speak"
	healthPath = "/healthz"
)

func init() {
	providers.RegisterKind("local", func(desc avatar.Descriptor, logger *zap.Logger) (avatar.Provider, error) {
		return New(desc, logger), nil
	})
}

// Provider delivers utterances to a local avatar service. No auth and no
// emotion translation: the canonical tags pass through unchanged.
type Provider struct {
	desc   avatar.Descriptor
	client *http.Client
	logger *zap.Logger
}

// New creates a local-service adapter from its descriptor.
func New(desc avatar.Descriptor, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		desc:   desc,
		client: providers.NewHTTPClient(desc.Timeout),
		logger: logger.With(zap.String("provider", desc.Name)),
	}
}

func (p *Provider) Name() string { return p.desc.Name }

type speakPayload struct {
	Text     string `json:"text"`
	Emotion  string `json:"emotion"`
	Language string `json:"language"`
	VoiceID  string `json:"voice_id,omitempty"`
	Gesture  string `json:"gesture,omitempty"`
}

func (p *Provider) Speak(ctx context.Context, req *avatar.SpeakRequest) (*avatar.SpeakResult, error) {
	payload := speakPayload{
		Text:     req.Text,
		Emotion:  req.Emotion,
		Language: req.Language,
		VoiceID:  req.VoiceID,
		Gesture:  req.Gesture,
	}
	body, err := providers.PostJSON(ctx, p.client, p.endpoint(speakPath), nil, payload, p.Name())
	if err != nil {
		return nil, err
	}
	return &avatar.SpeakResult{Body: body}, nil
}

func (p *Provider) HealthCheck(ctx context.Context) (*avatar.HealthStatus, error) {
	return providers.CheckEndpoint(ctx, p.client, p.endpoint(healthPath), nil, p.Name())
}

func (p *Provider) endpoint(path string) string {
	return strings.TrimRight(p.desc.BaseURL, "/") + path
}
