package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/BaSui01/avatargate/avatar"
)

// DefaultTimeout bounds a single attempt when the descriptor doesn't.
const DefaultTimeout = 30 * time.Second

// maxErrBody caps how much of an upstream error body is kept for messages.
const maxErrBody = 2048

// NewHTTPClient builds the per-adapter HTTP client.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// MapHTTPError maps an upstream HTTP status onto the delivery error
// taxonomy. 5xx is retryable on the same provider; throttling and payload
// rejections fail over to the next candidate without retrying in place;
// credential failures are surfaced to the caller immediately.
func MapHTTPError(status int, msg, provider string) *avatar.Error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &avatar.Error{Code: avatar.ErrUnauthorized, Message: msg, HTTPStatus: status, Provider: provider}
	case status == http.StatusRequestTimeout:
		return &avatar.Error{Code: avatar.ErrTimeout, Message: msg, HTTPStatus: status, Retryable: true, Provider: provider}
	case status == http.StatusTooManyRequests:
		return &avatar.Error{Code: avatar.ErrRateLimited, Message: msg, HTTPStatus: status, Provider: provider}
	case status >= 500:
		return &avatar.Error{Code: avatar.ErrProviderServer, Message: msg, HTTPStatus: status, Retryable: true, Provider: provider}
	default:
		return &avatar.Error{Code: avatar.ErrProviderRejected, Message: msg, HTTPStatus: status, Provider: provider}
	}
}

// MapTransportError maps connection-level failures. Timeouts and transport
// faults are retryable; a caller-cancelled context is not.
func MapTransportError(err error, provider string) *avatar.Error {
	if errors.Is(err, context.Canceled) {
		return &avatar.Error{Code: avatar.ErrTimeout, Message: "request cancelled", Provider: provider, Cause: err}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &avatar.Error{Code: avatar.ErrTimeout, Message: "request timed out", Retryable: true, Provider: provider, Cause: err}
	}
	return &avatar.Error{Code: avatar.ErrTransport, Message: "transport failure", Retryable: true, Provider: provider, Cause: err}
}

// PostJSON issues a JSON POST and returns the raw 2xx response body.
// Non-2xx statuses and transport faults come back as *avatar.Error.
func PostJSON(ctx context.Context, client *http.Client, endpoint string, headers map[string]string, payload interface{}, provider string) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, (&avatar.Error{Code: avatar.ErrInvalidRequest, Message: "encode request payload", Provider: provider}).WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, (&avatar.Error{Code: avatar.ErrInvalidRequest, Message: "build request", Provider: provider}).WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, MapTransportError(err, provider)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, (&avatar.Error{Code: avatar.ErrTransport, Message: "read response body", Retryable: true, Provider: provider}).WithCause(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(data)
		if len(msg) > maxErrBody {
			msg = msg[:maxErrBody]
		}
		return nil, MapHTTPError(resp.StatusCode, fmt.Sprintf("%s speak failed: %s", provider, msg), provider)
	}
	return json.RawMessage(data), nil
}

// CheckEndpoint probes a liveness URL and reports latency. Any 2xx counts
// as healthy.
func CheckEndpoint(ctx context.Context, client *http.Client, endpoint string, headers map[string]string, provider string) (*avatar.HealthStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &avatar.HealthStatus{Healthy: false}, err
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &avatar.HealthStatus{Healthy: false, Latency: latency}, MapTransportError(err, provider)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &avatar.HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("%s health check failed: status=%d", provider, resp.StatusCode)
	}
	return &avatar.HealthStatus{Healthy: true, Latency: latency}, nil
}

// MapEmotion translates a canonical emotion tag through a provider map,
// falling back to the provider's neutral form.
func MapEmotion(table map[string]string, emotion, fallback string) string {
	if mapped, ok := table[emotion]; ok {
		return mapped
	}
	return fallback
}
