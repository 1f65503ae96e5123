package service

import (
	"strings"
	"testing"

	domainerrors "docindex/internal/domain/errors/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_EmptyTextYieldsNoChunks(t *testing.T) {
	chunks, err := Chunk("", 100, 10)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = Chunk("   \n\t  ", 100, 10)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunk_ShortTextYieldsSingleTrimmedChunk(t *testing.T) {
	chunks, err := Chunk("  hello world  ", 100, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0])
}

func TestChunk_InvalidParameters(t *testing.T) {
	_, err := Chunk("some text", 0, 0)
	require.ErrorIs(t, err, domainerrors.ErrInvalidChunkSize)

	_, err = Chunk("some text", -5, 0)
	require.ErrorIs(t, err, domainerrors.ErrInvalidChunkSize)

	_, err = Chunk("some text", 10, -1)
	require.ErrorIs(t, err, domainerrors.ErrInvalidOverlap)

	_, err = Chunk("some text", 10, 10)
	require.ErrorIs(t, err, domainerrors.ErrInvalidOverlap)

	_, err = Chunk("some text", 10, 15)
	require.ErrorIs(t, err, domainerrors.ErrInvalidOverlap)
}

func TestChunk_RespectsChunkSizeBound(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 50)

	chunks, err := Chunk(text, 200, 20)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 200, "chunk %d exceeds bound", i)
		assert.NotEmpty(t, strings.TrimSpace(c), "chunk %d is empty", i)
	}
}

func TestChunk_PrefersSentenceBoundaries(t *testing.T) {
	text := "First sentence here. Second sentence follows. Third one closes it out."

	chunks, err := Chunk(text, 30, 0)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// Non-final chunks should end at a sentence terminator when one fits
	// inside the window.
	for _, c := range chunks[:len(chunks)-1] {
		assert.True(t, strings.HasSuffix(c, "."), "chunk %q should break at sentence end", c)
	}
}

func TestChunk_OverlapRepeatsTrailingContext(t *testing.T) {
	text := strings.Repeat("abcdefghij", 30)

	chunks, err := Chunk(text, 100, 20)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// With no natural boundaries the cut lands on the hard window end, so
	// each chunk must begin with the previous chunk's trailing overlap.
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		tail := string(prev[len(prev)-20:])
		assert.True(t, strings.HasPrefix(chunks[i], tail),
			"chunk %d does not start with previous chunk's tail", i)
	}
}

func TestChunk_CoversAllInputText(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet consectetur adipiscing elit ", 40)

	chunks, err := Chunk(text, 150, 0)
	require.NoError(t, err)

	// With zero overlap the chunks partition the text; joined back together
	// (modulo boundary whitespace trimming) nothing may be lost.
	joined := strings.Join(chunks, " ")
	assert.Equal(t,
		strings.Fields(strings.TrimSpace(text)),
		strings.Fields(joined),
	)
}

func TestChunk_DeterministicAcrossRuns(t *testing.T) {
	text := strings.Repeat("Sentence one is short. Sentence two is a bit longer than one. ", 25)

	first, err := Chunk(text, 120, 30)
	require.NoError(t, err)
	second, err := Chunk(text, 120, 30)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestChunk_AlwaysMakesProgress(t *testing.T) {
	// Large overlap relative to chunk size with no break points must not
	// loop forever or emit empty chunks.
	text := strings.Repeat("x", 1000)

	chunks, err := Chunk(text, 10, 9)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.NotEmpty(t, c)
	}
}

func TestChunk_NoEmptyChunksOnWhitespaceRuns(t *testing.T) {
	text := "word" + strings.Repeat(" ", 300) + "tail"

	chunks, err := Chunk(text, 50, 5)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}
