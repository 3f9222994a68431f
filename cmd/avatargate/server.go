package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/BaSui01/avatargate/avatar"
	"github.com/BaSui01/avatargate/config"
	"github.com/BaSui01/avatargate/dispatch"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes the delivery client over HTTP.
type Server struct {
	client *avatar.Client
	events *dispatch.Dispatcher
	logger *zap.Logger
	http   *http.Server
}

// NewServer wires the routes and middleware chain. events carries the
// client's lifecycle events and backs the /events endpoint; it may be nil.
func NewServer(cfg config.ServerConfig, client *avatar.Client, events *dispatch.Dispatcher, logger *zap.Logger) *Server {
	s := &Server{client: client, events: events, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/speak", s.handleSpeak)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/providers/health", s.handleProviderHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/events", s.handleEvents)
	mux.Handle("/metrics", promhttp.Handler())

	handler := Chain(mux,
		Recovery(logger),
		RequestID(),
		RequestLogger(logger),
	)

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type speakRequest struct {
	Text     string `json:"text"`
	Emotion  string `json:"emotion,omitempty"`
	Language string `json:"language,omitempty"`
	VoiceID  string `json:"voice_id,omitempty"`
	Gesture  string `json:"gesture,omitempty"`
	AvatarID string `json:"avatar_id,omitempty"`
	// TimeoutMS caps the whole delivery, retries and failover included.
	TimeoutMS int `json:"timeout_ms,omitempty"`
}

type speakResponse struct {
	ID       string          `json:"id"`
	Provider string          `json:"provider"`
	Cached   bool            `json:"cached"`
	Body     json.RawMessage `json:"body"`
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}

	var in speakRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, string(avatar.ErrInvalidRequest), "malformed JSON body")
		return
	}

	req := &avatar.SpeakRequest{
		Text:     in.Text,
		Emotion:  in.Emotion,
		Language: in.Language,
		VoiceID:  in.VoiceID,
		Gesture:  in.Gesture,
		AvatarID: in.AvatarID,
	}
	if in.TimeoutMS > 0 {
		req.Timeout = time.Duration(in.TimeoutMS) * time.Millisecond
	}

	result, err := s.client.Speak(r.Context(), req)
	if err != nil {
		s.writeSpeakError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, speakResponse{
		ID:       result.ID,
		Provider: result.Provider,
		Cached:   result.Cached,
		Body:     result.Body,
	})
}

// writeSpeakError maps delivery errors onto HTTP statuses. Caller faults
// come back as 4xx; exhaustion and everything else as 502/500.
func (s *Server) writeSpeakError(w http.ResponseWriter, err error) {
	var exhausted *avatar.ExhaustedError
	if errors.As(err, &exhausted) {
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":    string(avatar.ErrExhausted),
			"message":  exhausted.Error(),
			"outcomes": exhausted.Outcomes,
		})
		return
	}

	code := avatar.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case avatar.ErrInvalidRequest:
		status = http.StatusBadRequest
	case avatar.ErrUnauthorized:
		status = http.StatusUnauthorized
	case avatar.ErrRateLimited:
		status = http.StatusTooManyRequests
	case avatar.ErrTimeout:
		status = http.StatusGatewayTimeout
	case avatar.ErrTransport, avatar.ErrProviderServer, avatar.ErrProviderRejected:
		status = http.StatusBadGateway
	}
	writeError(w, status, string(code), err.Error())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": s.client.HealthSnapshot(),
	})
}

func (s *Server) handleProviderHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	writeJSON(w, http.StatusOK, s.client.CheckProviders(ctx))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.client.Stats())
}

// handleEvents returns recent delivery lifecycle events, optionally
// filtered by ?type= and bounded by ?limit=.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSON(w, http.StatusOK, []dispatch.Event{})
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, s.events.History(r.URL.Query().Get("type"), limit))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
