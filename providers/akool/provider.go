// Package akool adapts the Akool avatar speak API.
package akool

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/BaSui01/avatargate/avatar"
	"github.com/BaSui01/avatargate/providers"
	"go.uber.org/zap"
)

const (
	speakPath  = "/v1/avatar/speak"
	healthPath = "/v1/health"
)

func init() {
	providers.RegisterKind("akool", func(desc avatar.Descriptor, logger *zap.Logger) (avatar.Provider, error) {
		return New(desc, logger), nil
	})
}

var emotionMap = map[string]string{
	"neutral":  "neutral",
	"happy":    "happy",
	"sad":      "sad",
	"excited":  "excited",
	"serious":  "professional",
	"friendly": "warm",
}

// Provider delivers utterances to an Akool endpoint using Bearer auth.
// Akool's payload names the utterance field "input_text".
type Provider struct {
	desc   avatar.Descriptor
	client *http.Client
	logger *zap.Logger
}

// New creates an Akool adapter from its descriptor.
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
	AvatarID  string `json:"avatar_id"`
	InputText string `json:"input_text"`
	Emotion   string `json:"emotion"`
	Language  string `json:"language"`
	VoiceID   string `json:"voice_id,omitempty"`
	Gesture   string `json:"gesture,omitempty"`
}

func (p *Provider) Speak(ctx context.Context, req *avatar.SpeakRequest) (*avatar.SpeakResult, error) {
	payload := speakPayload{
		AvatarID:  req.AvatarID,
		InputText: req.Text,
		Emotion:   providers.MapEmotion(emotionMap, req.Emotion, "neutral"),
		Language:  req.Language,
		VoiceID:   req.VoiceID,
		Gesture:   req.Gesture,
	}
	body, err := providers.PostJSON(ctx, p.client, p.endpoint(speakPath), p.headers(), payload, p.Name())
	if err != nil {
		return nil, err
	}
	return &avatar.SpeakResult{Body: body}, nil
}

func (p *Provider) HealthCheck(ctx context.Context) (*avatar.HealthStatus, error) {
	return providers.CheckEndpoint(ctx, p.client, p.endpoint(healthPath), p.headers(), p.Name())
}

func (p *Provider) headers() map[string]string {
	return map[string]string{"Authorization": fmt.Sprintf("Bearer %s", p.desc.APIKey)}
}

func (p *Provider) endpoint(path string) string {
	return strings.TrimRight(p.desc.BaseURL, "/") + path
}
