package embedder

import (
	"context"
	"fmt"
	"sort"

	"docindex/internal/application/common/retry"
	"docindex/internal/application/common/slogger"
	"docindex/internal/port/outbound"
)

// DefaultBatchSize stays well below the provider's documented per-request
// limit.
const DefaultBatchSize = 100

// Batcher implements outbound.EmbeddingService by splitting chunk lists into
// provider-sized batches. A failure on any batch aborts the whole call; no
// partial result is ever returned.
type Batcher struct {
	provider  outbound.EmbeddingProvider
	batchSize int
	retrier   *retry.Executor
}

// NewBatcher creates a batching embedding service. A batchSize of zero or
// less uses DefaultBatchSize. retryConfig may be nil to use defaults.
func NewBatcher(provider outbound.EmbeddingProvider, batchSize int, retryConfig *retry.Config) *Batcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Batcher{
		provider:  provider,
		batchSize: batchSize,
		retrier:   retry.NewExecutor(retryConfig, nil),
	}
}

// Provider returns the underlying provider identifier.
func (b *Batcher) Provider() string {
	return b.provider.Name()
}

// Model returns the embedding model name.
func (b *Batcher) Model() string {
	return b.provider.Model()
}

// Dimensions returns the vector dimensionality.
func (b *Batcher) Dimensions() int {
	return b.provider.Dimensions()
}

// EmbedChunks embeds all chunks, preserving input order and length. Empty
// input returns an empty result without touching the provider.
func (b *Batcher) EmbedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += b.batchSize {
		end := start + b.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		batchVectors, err := b.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batchVectors...)
	}

	slogger.Debug(ctx, "Embedded chunks", slogger.Fields3(
		"chunk_count", len(chunks),
		"batch_size", b.batchSize,
		"model", b.provider.Model(),
	))

	return vectors, nil
}

// embedBatch performs one provider call with retry and re-sorts the results
// by the provider-assigned index so they align with the batch input.
func (b *Batcher) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var indexed []outbound.IndexedVector
	err := b.retrier.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		indexed, callErr = b.provider.EmbedBatch(ctx, batch)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	// A count mismatch from the provider is a hard error, never silently
	// tolerated: downstream invariants require one vector per chunk.
	if len(indexed) != len(batch) {
		return nil, &outbound.ExternalServiceError{
			Service: b.provider.Name(),
			Code:    "count_mismatch",
			Type:    outbound.ErrorTypeServer,
			Message: fmt.Sprintf("provider returned %d vectors for %d inputs", len(indexed), len(batch)),
		}
	}

	sort.Slice(indexed, func(i, j int) bool {
		return indexed[i].Index < indexed[j].Index
	})

	// After sorting, the indexes must be exactly 0..n-1. Anything else
	// (out of range, duplicated, missing) would misalign vectors with
	// their chunks, so it is the same hard error as a count mismatch.
	vectors := make([][]float32, len(indexed))
	for i, v := range indexed {
		if v.Index != i {
			return nil, &outbound.ExternalServiceError{
				Service: b.provider.Name(),
				Code:    "invalid_index",
				Type:    outbound.ErrorTypeServer,
				Message: fmt.Sprintf("provider returned index %d where %d was expected for batch of %d", v.Index, i, len(batch)),
			}
		}
		vectors[i] = v.Vector
	}
	return vectors, nil
}
