package duix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/avatargate/avatar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProvider(url string) *Provider {
	return New(avatar.Descriptor{
		Name:    "duix-main",
		Kind:    "duix",
		BaseURL: url,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	}, nil)
}

func TestSpeakWireFormat(t *testing.T) {
	var captured map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/avatar/speak", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"status":"accepted"}`))
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	res, err := p.Speak(context.Background(), &avatar.SpeakRequest{
		Text:     "what a goal!",
		Emotion:  "excited",
		Language: "en",
		AvatarID: "anna",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"accepted"}`, string(res.Body))

	assert.Equal(t, "Bearer test-key", auth)
	assert.Equal(t, "anna", captured["avatar_id"])
	assert.Equal(t, "what a goal!", captured["text"])
	assert.Equal(t, "excitement", captured["emotion"], "canonical tag translated to the DUIX vocabulary")
	assert.Equal(t, "en", captured["language"])
}

func TestSpeakEmotionMapping(t *testing.T) {
	cases := map[string]string{
		"happy":      "joy",
		"sad":        "sadness",
		"angry":      "anger",
		"analytical": "thoughtful",
		"neutral":    "neutral",
		"made-up":    "neutral", // unknown tags degrade to neutral
	}
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		got = body["emotion"].(string)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	for canonical, wire := range cases {
		_, err := p.Speak(context.Background(), &avatar.SpeakRequest{Text: "hi", Emotion: canonical})
		require.NoError(t, err)
		assert.Equal(t, wire, got, "emotion %q", canonical)
	}
}

func TestSpeakOmitsEmptyOptionalFields(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	_, err := p.Speak(context.Background(), &avatar.SpeakRequest{Text: "hi"})
	require.NoError(t, err)
	assert.NotContains(t, raw, "voice_id")
	assert.NotContains(t, raw, "gesture")
}

func TestSpeakMapsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	_, err := p.Speak(context.Background(), &avatar.SpeakRequest{Text: "hi"})
	require.Error(t, err)
	assert.Equal(t, avatar.ErrProviderServer, avatar.CodeOf(err))
	assert.True(t, avatar.IsRetryable(err))
}

func TestSpeakMapsThrottleToImmediateFailover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	_, err := p.Speak(context.Background(), &avatar.SpeakRequest{Text: "hi"})
	require.Error(t, err)
	assert.Equal(t, avatar.ErrRateLimited, avatar.CodeOf(err))
	assert.False(t, avatar.IsRetryable(err), "a throttled provider must fail over, not be retried in place")
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/health", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	st, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Healthy)
}

func TestBaseURLTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/avatar/speak", r.URL.Path)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := testProvider(srv.URL + "/")
	_, err := p.Speak(context.Background(), &avatar.SpeakRequest{Text: "hi"})
	require.NoError(t, err)
}
