// Package service provides pure domain services with no I/O dependencies.
package service

import (
	"strings"
	"unicode"

	domainerrors "docindex/internal/domain/errors/domain"
)

// Boundary scan floor: a break point is only searched in the trailing half of
// the window so a pathological text cannot shrink chunks arbitrarily.
const minBoundaryFraction = 2

// Chunk splits text into ordered, overlapping chunks of at most chunkSize
// runes. The last overlap runes of each chunk are repeated at the start of
// the next one to preserve context across boundaries.
//
// Chunks are trimmed of leading and trailing whitespace; internal whitespace
// is preserved. Empty input yields no chunks. The function is deterministic,
// which indexing relies on for idempotent reprocessing.
func Chunk(text string, chunkSize, overlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, domainerrors.ErrInvalidChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, domainerrors.ErrInvalidOverlap
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}

	runes := []rune(trimmed)
	if len(runes) <= chunkSize {
		return []string{trimmed}, nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end >= len(runes) {
			if piece := strings.TrimSpace(string(runes[start:])); piece != "" {
				chunks = append(chunks, piece)
			}
			break
		}

		cut := breakPoint(runes, start, end)
		if piece := strings.TrimSpace(string(runes[start:cut])); piece != "" {
			chunks = append(chunks, piece)
		}

		next := cut - overlap
		if next <= start {
			// Progress guard: overlap can never push the window backwards.
			next = cut
		}
		start = next
	}

	return chunks, nil
}

// breakPoint finds where to cut the window [start, end). It prefers the
// position just after the last sentence terminator, then the last whitespace
// run, and falls back to the hard window end. Only the trailing half of the
// window is searched so every chunk keeps a useful size.
func breakPoint(runes []rune, start, end int) int {
	floor := start + (end-start)/minBoundaryFraction

	for i := end - 1; i > floor; i-- {
		switch runes[i] {
		case '.', '!', '?', '\n':
			return i + 1
		}
	}

	for i := end - 1; i > floor; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}

	return end
}
