package outbound

import (
	"context"
	"fmt"
)

// IndexedVector is one embedding returned by the provider, tagged with the
// provider-assigned position of its input text. Providers may return batch
// results out of order; callers re-sort by Index.
type IndexedVector struct {
	Index  int
	Vector []float32
}

// EmbeddingProvider is the outbound port for the external embedding service.
// EmbedBatch performs exactly one provider request; batching across the
// provider's per-request limit is the caller's concern.
type EmbeddingProvider interface {
	// EmbedBatch embeds the given texts in a single request. The result has
	// exactly one entry per input text, in provider order.
	EmbedBatch(ctx context.Context, texts []string) ([]IndexedVector, error)

	// Name returns the provider identifier recorded on embedding records.
	Name() string

	// Model returns the embedding model name.
	Model() string

	// Dimensions returns the dimensionality of produced vectors.
	Dimensions() int
}

// EmbeddingService is the port consumed by the indexing job processor: a
// length- and order-preserving mapping from chunk texts to vectors. A failure
// on any underlying batch fails the whole call; no partial result is returned.
type EmbeddingService interface {
	// EmbedChunks embeds all chunks, splitting into provider-sized batches
	// internally. The result aligns positionally with the input.
	EmbedChunks(ctx context.Context, chunks []string) ([][]float32, error)

	// Provider returns the identifier of the underlying provider.
	Provider() string

	// Model returns the embedding model name.
	Model() string

	// Dimensions returns the dimensionality of produced vectors.
	Dimensions() int
}

// Error cause categories for external service failures.
const (
	ErrorTypeAuth       = "auth"
	ErrorTypeQuota      = "quota"
	ErrorTypeTimeout    = "timeout"
	ErrorTypeNetwork    = "network"
	ErrorTypeValidation = "validation"
	ErrorTypeServer     = "server"
)

// ExternalServiceError represents a failure of an external collaborator
// (embedding provider or vector index), tagged with the originating service
// name and a cause category.
type ExternalServiceError struct {
	Service   string
	Code      string
	Type      string
	Message   string
	Retryable bool
	Cause     error
}

func (e *ExternalServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Service, e.Message, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Service, e.Message, e.Code)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ExternalServiceError) Unwrap() error {
	return e.Cause
}

// IsRateLimit reports whether the error is a provider-side rate limit, which
// callers treat with backoff rather than immediate failure.
func (e *ExternalServiceError) IsRateLimit() bool {
	return e.Type == ErrorTypeQuota
}
