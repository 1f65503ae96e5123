package embedder

import (
	"context"
	"fmt"
	"testing"

	"docindex/internal/application/common/retry"
	"docindex/internal/port/outbound"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider returns deterministic vectors encoding the input position, in
// reverse provider order to exercise re-sorting.
type fakeProvider struct {
	calls      [][]string
	failOnCall int // 1-based call number to fail on, 0 for never
	shortByOne bool
	indexes    []int // overrides provider-assigned indexes when set
}

func (f *fakeProvider) Name() string    { return "fake" }
func (f *fakeProvider) Model() string   { return "fake-embedding-001" }
func (f *fakeProvider) Dimensions() int { return 2 }

func (f *fakeProvider) EmbedBatch(_ context.Context, texts []string) ([]outbound.IndexedVector, error) {
	f.calls = append(f.calls, texts)
	if f.failOnCall > 0 && len(f.calls) == f.failOnCall {
		return nil, &outbound.ExternalServiceError{
			Service: "fake",
			Code:    "server_error",
			Type:    outbound.ErrorTypeServer,
			Message: "boom",
		}
	}

	n := len(texts)
	if f.shortByOne {
		n--
	}
	out := make([]outbound.IndexedVector, 0, n)
	// Reverse order: provider index still identifies the input position.
	for i := n - 1; i >= 0; i-- {
		out = append(out, outbound.IndexedVector{
			Index:  i,
			Vector: []float32{float32(i), float32(i) + 0.5},
		})
	}
	if f.indexes != nil {
		for i := range out {
			out[i].Index = f.indexes[i]
		}
	}
	return out, nil
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("chunk %d", i)
	}
	return out
}

func noRetry() *retry.Config {
	return &retry.Config{MaxRetries: 0, InitialDelay: 1, MaxDelay: 1, BackoffFactor: 1}
}

func TestBatcher_EmptyInputSkipsProvider(t *testing.T) {
	provider := &fakeProvider{}
	batcher := NewBatcher(provider, 100, noRetry())

	vectors, err := batcher.EmbedChunks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Empty(t, provider.calls)
}

func TestBatcher_PreservesInputOrder(t *testing.T) {
	provider := &fakeProvider{}
	batcher := NewBatcher(provider, 100, noRetry())

	vectors, err := batcher.EmbedChunks(context.Background(), texts(7))
	require.NoError(t, err)
	require.Len(t, vectors, 7)

	// The fake returns batch results reversed; after re-sorting by provider
	// index, vector i must encode position i.
	for i, v := range vectors {
		assert.Equal(t, []float32{float32(i), float32(i) + 0.5}, v, "vector %d misaligned", i)
	}
}

func TestBatcher_SplitsIntoProviderSizedBatches(t *testing.T) {
	provider := &fakeProvider{}
	batcher := NewBatcher(provider, 100, noRetry())

	vectors, err := batcher.EmbedChunks(context.Background(), texts(250))
	require.NoError(t, err)
	assert.Len(t, vectors, 250)

	require.Len(t, provider.calls, 3)
	assert.Len(t, provider.calls[0], 100)
	assert.Len(t, provider.calls[1], 100)
	assert.Len(t, provider.calls[2], 50)
}

func TestBatcher_BatchFailureAbortsWholeCall(t *testing.T) {
	provider := &fakeProvider{failOnCall: 2}
	batcher := NewBatcher(provider, 100, noRetry())

	vectors, err := batcher.EmbedChunks(context.Background(), texts(250))
	require.Error(t, err)
	assert.Nil(t, vectors, "no partial result on batch failure")

	var svcErr *outbound.ExternalServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "fake", svcErr.Service)
}

func TestBatcher_CountMismatchIsHardError(t *testing.T) {
	provider := &fakeProvider{shortByOne: true}
	batcher := NewBatcher(provider, 100, noRetry())

	_, err := batcher.EmbedChunks(context.Background(), texts(10))
	require.Error(t, err)

	var svcErr *outbound.ExternalServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "count_mismatch", svcErr.Code)
}

func TestBatcher_NonPermutationIndexesAreHardErrors(t *testing.T) {
	cases := map[string][]int{
		"duplicate":    {0, 0},
		"out of range": {0, 2},
		"negative":     {-1, 0},
	}

	for name, indexes := range cases {
		t.Run(name, func(t *testing.T) {
			provider := &fakeProvider{indexes: indexes}
			batcher := NewBatcher(provider, 100, noRetry())

			vectors, err := batcher.EmbedChunks(context.Background(), texts(2))
			require.Error(t, err)
			assert.Nil(t, vectors)

			var svcErr *outbound.ExternalServiceError
			require.ErrorAs(t, err, &svcErr)
			assert.Equal(t, "invalid_index", svcErr.Code)
		})
	}
}

func TestBatcher_DefaultsBatchSize(t *testing.T) {
	provider := &fakeProvider{}
	batcher := NewBatcher(provider, 0, nil)
	assert.Equal(t, DefaultBatchSize, batcher.batchSize)
}
