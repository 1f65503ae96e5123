// Package qdrant provides the vector index adapter backed by Qdrant's REST
// API. Each tenant owns one collection; points carry tenant and file ids as
// indexed payload fields.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"docindex/internal/port/outbound"
)

const (
	serviceName    = "qdrant"
	defaultTimeout = 15 * time.Second
	defaultPrefix  = "company_"
)

// Config configures the Qdrant client.
type Config struct {
	BaseURL          string
	APIKey           string
	CollectionPrefix string
	Timeout          time.Duration
}

// Client is a REST client to Qdrant implementing outbound.VectorIndex.
// It assumes cosine distance.
type Client struct {
	baseURL string
	apiKey  string
	prefix  string
	client  *http.Client
}

// NewClient creates a Qdrant client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("qdrant base URL is required")
	}
	prefix := cfg.CollectionPrefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		prefix:  prefix,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// CollectionName returns the tenant's collection name.
func (c *Client) CollectionName(tenantID uuid.UUID) string {
	return c.prefix + tenantID.String()
}

// Healthz verifies the Qdrant instance is reachable.
func (c *Client) Healthz(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, nil); err != nil {
		return wrapServiceError("health check", err)
	}
	return nil
}

// statusError carries the HTTP status of a failed Qdrant call so callers can
// branch on "collection missing".
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant returned HTTP %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal qdrant request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build qdrant request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return c.wrapTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{status: resp.StatusCode, body: string(payload)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &outbound.ExternalServiceError{
				Service:   serviceName,
				Code:      "invalid_response",
				Type:      outbound.ErrorTypeServer,
				Message:   "failed to decode qdrant response",
				Retryable: false,
				Cause:     err,
			}
		}
	}
	return nil
}

// wrapServiceError converts a low-level failure into the external-service
// error shape surfaced to the pipeline. Not-found statuses are left to the
// caller, which maps them to empty results where that is meaningful.
func wrapServiceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *statusError
	if errors.As(err, &se) {
		retryable := se.status >= 500
		return &outbound.ExternalServiceError{
			Service:   serviceName,
			Code:      fmt.Sprintf("http_%d", se.status),
			Type:      outbound.ErrorTypeServer,
			Message:   fmt.Sprintf("%s failed: HTTP %d", op, se.status),
			Retryable: retryable,
			Cause:     err,
		}
	}
	var svcErr *outbound.ExternalServiceError
	if errors.As(err, &svcErr) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (c *Client) wrapTransportError(err error) error {
	errType := outbound.ErrorTypeNetwork
	if errors.Is(err, context.DeadlineExceeded) {
		errType = outbound.ErrorTypeTimeout
	}
	return &outbound.ExternalServiceError{
		Service:   serviceName,
		Code:      "connection_error",
		Type:      errType,
		Message:   err.Error(),
		Retryable: true,
		Cause:     err,
	}
}
