// Package senseavatar adapts the SenseAvatar speak API.
package senseavatar

import (
	"context"
	"net/http"
	"strings"

	"github.com/BaSui01/avatargate/avatar"
	"github.com/BaSui01/avatargate/providers"
	"go.uber.org/zap"
)

const (
	speakPath  = "/v1/speak"
	healthPath = "/v1/status"
)

func init() {
	providers.RegisterKind("senseavatar", func(desc avatar.Descriptor, logger *zap.Logger) (avatar.Provider, error) {
		return New(desc, logger), nil
	})
}

var emotionMap = map[string]string{
	"neutral":   "normal",
	"happy":     "happy",
	"sad":       "sad",
	"angry":     "angry",
	"surprised": "surprised",
	"excited":   "energetic",
	"serious":   "formal",
	"friendly":  "gentle",
}

// Provider delivers utterances to a SenseAvatar endpoint. Unlike DUIX and
// Akool, authentication is an X-API-Key header and the payload uses the
// short field names "avatar" and "lang".
type Provider struct {
	desc   avatar.Descriptor
	client *http.Client
	logger *zap.Logger
}

// New creates a SenseAvatar adapter from its descriptor.
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
	Avatar   string `json:"avatar"`
	Text     string `json:"text"`
	Emotion  string `json:"emotion"`
	Language string `json:"lang"`
	VoiceID  string `json:"voice_id,omitempty"`
	Gesture  string `json:"gesture,omitempty"`
}

func (p *Provider) Speak(ctx context.Context, req *avatar.SpeakRequest) (*avatar.SpeakResult, error) {
	payload := speakPayload{
		Avatar:   req.AvatarID,
		Text:     req.Text,
		Emotion:  providers.MapEmotion(emotionMap, req.Emotion, "normal"),
		Language: req.Language,
		VoiceID:  req.VoiceID,
		Gesture:  req.Gesture,
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
	return map[string]string{"X-API-Key": p.desc.APIKey}
}

func (p *Provider) endpoint(path string) string {
	return strings.TrimRight(p.desc.BaseURL, "/") + path
}
