package outbound

import (
	"context"

	"docindex/internal/domain/entity"
)

// TextExtractor produces the raw text of a stored file. Extraction is
// upstream of this core; the indexing pipeline only consumes its string
// output.
type TextExtractor interface {
	// Extract returns the full extracted text of the document.
	Extract(ctx context.Context, doc *entity.Document) (string, error)
}
