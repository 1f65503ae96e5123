// Package embedder provides the HTTP client for the external embedding
// provider and the batching embedding service built on top of it.
package embedder

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

	"docindex/internal/application/common/slogger"
	"docindex/internal/port/outbound"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout           = 30 * time.Second
	defaultRequestsPerSecond = 2.0
)

// Config configures the embedding provider client. All state that used to
// hide behind a process-global client (API key, model) is carried here and
// injected at construction time.
type Config struct {
	BaseURL           string
	APIKey            string
	Provider          string
	Model             string
	Dimensions        int
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client calls an OpenAI-compatible embeddings endpoint. It implements
// outbound.EmbeddingProvider: one EmbedBatch call is one provider request.
type Client struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates an embedding provider client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("embedding base URL is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("embedding model is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, errors.New("embedding dimensions must be positive")
	}
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}

	return &Client{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return c.config.Provider
}

// Model returns the embedding model name.
func (c *Client) Model() string {
	return c.config.Model
}

// Dimensions returns the configured vector dimensionality.
func (c *Client) Dimensions() int {
	return c.config.Dimensions
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Model string          `json:"model"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// EmbedBatch embeds the given texts in a single provider request, waiting on
// the client-side rate limiter first. Results are returned in provider order
// with the provider-assigned index attached.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([]outbound.IndexedVector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.networkError(err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	body, err := json.Marshal(embeddingRequest{Model: c.config.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.config.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.networkError(err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slogger.Error(ctx, "Failed to close response body", slogger.Fields{
				"error": closeErr.Error(),
			})
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, c.httpError(ctx, resp)
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &outbound.ExternalServiceError{
			Service:   c.config.Provider,
			Code:      "invalid_response",
			Type:      outbound.ErrorTypeServer,
			Message:   "failed to decode embedding response",
			Retryable: false,
			Cause:     err,
		}
	}

	vectors := make([]outbound.IndexedVector, len(parsed.Data))
	for i, d := range parsed.Data {
		vectors[i] = outbound.IndexedVector{Index: d.Index, Vector: d.Embedding}
	}
	return vectors, nil
}

// httpError maps HTTP status codes to external-service errors with the cause
// categories callers branch on (auth, quota, validation, server).
func (c *Client) httpError(ctx context.Context, resp *http.Response) *outbound.ExternalServiceError {
	body, readErr := io.ReadAll(resp.Body)

	var apiMessage string
	if readErr == nil && len(body) > 0 {
		var parsed errorResponse
		if json.Unmarshal(body, &parsed) == nil {
			apiMessage = parsed.Error.Message
		}
	}

	slogger.Error(ctx, "HTTP error received from embedding provider", slogger.Fields{
		"provider":    c.config.Provider,
		"status_code": resp.StatusCode,
		"api_message": apiMessage,
	})

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		message := fmt.Sprintf("authentication failed (HTTP %d)", resp.StatusCode)
		if apiMessage != "" {
			message = fmt.Sprintf("%s: %s", message, apiMessage)
		}
		return &outbound.ExternalServiceError{
			Service:   c.config.Provider,
			Code:      "invalid_api_key",
			Type:      outbound.ErrorTypeAuth,
			Message:   message,
			Retryable: false,
		}

	case http.StatusTooManyRequests:
		message := fmt.Sprintf("rate limit exceeded (HTTP %d)", resp.StatusCode)
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			message = fmt.Sprintf("%s, retry after %s seconds", message, retryAfter)
		}
		if apiMessage != "" {
			message = fmt.Sprintf("%s: %s", message, apiMessage)
		}
		return &outbound.ExternalServiceError{
			Service:   c.config.Provider,
			Code:      "rate_limit_exceeded",
			Type:      outbound.ErrorTypeQuota,
			Message:   message,
			Retryable: true,
		}

	case http.StatusBadRequest:
		message := fmt.Sprintf("invalid request (HTTP %d)", resp.StatusCode)
		if apiMessage != "" {
			message = fmt.Sprintf("%s: %s", message, apiMessage)
		}
		return &outbound.ExternalServiceError{
			Service:   c.config.Provider,
			Code:      "invalid_request",
			Type:      outbound.ErrorTypeValidation,
			Message:   message,
			Retryable: false,
		}

	default:
		message := fmt.Sprintf("server error (HTTP %d)", resp.StatusCode)
		if apiMessage != "" {
			message = fmt.Sprintf("%s: %s", message, apiMessage)
		}
		return &outbound.ExternalServiceError{
			Service:   c.config.Provider,
			Code:      "server_error",
			Type:      outbound.ErrorTypeServer,
			Message:   message,
			Retryable: resp.StatusCode >= 500,
		}
	}
}

// networkError maps transport failures to external-service errors.
func (c *Client) networkError(err error) *outbound.ExternalServiceError {
	if errors.Is(err, context.Canceled) {
		return &outbound.ExternalServiceError{
			Service:   c.config.Provider,
			Code:      "request_canceled",
			Type:      outbound.ErrorTypeNetwork,
			Message:   "request was canceled",
			Retryable: false,
			Cause:     err,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &outbound.ExternalServiceError{
			Service:   c.config.Provider,
			Code:      "connection_timeout",
			Type:      outbound.ErrorTypeTimeout,
			Message:   "connection timeout",
			Retryable: true,
			Cause:     err,
		}
	}

	return &outbound.ExternalServiceError{
		Service:   c.config.Provider,
		Code:      "network_error",
		Type:      outbound.ErrorTypeNetwork,
		Message:   err.Error(),
		Retryable: true,
		Cause:     err,
	}
}
