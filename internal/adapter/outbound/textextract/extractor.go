// Package textextract reads stored file blobs and produces their plain text.
package textextract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"docindex/internal/domain/entity"
	domainerrors "docindex/internal/domain/errors/domain"
)

// MaxFileSize caps how much of a blob is read into memory.
const MaxFileSize = 64 << 20 // 64 MiB

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// textMIMETypes are the exact non-"text/*" MIME types treated as plain text.
var textMIMETypes = map[string]bool{
	"application/json":     true,
	"application/xml":      true,
	"application/x-yaml":   true,
	"application/yaml":     true,
	"application/markdown": true,
	"application/sql":      true,
	"application/rtf":      false, // binary container, needs a real converter
}

// FilesystemExtractor extracts text from blobs laid out on disk as
// root/<tenant-id>/<file-id>.
type FilesystemExtractor struct {
	root string
}

// NewFilesystemExtractor creates an extractor rooted at the blob store path.
func NewFilesystemExtractor(root string) (*FilesystemExtractor, error) {
	if root == "" {
		return nil, domainerrors.ErrInvalidInput
	}
	return &FilesystemExtractor{root: root}, nil
}

// Extract returns the full extracted text of the document. Unsupported MIME
// types and blobs with no usable text map to ErrNoTextExtracted so the
// caller can fail the file without retrying.
func (e *FilesystemExtractor) Extract(ctx context.Context, doc *entity.Document) (string, error) {
	if doc == nil {
		return "", domainerrors.ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !supportsMIME(doc.MimeType()) {
		return "", fmt.Errorf("mime type %q: %w", doc.MimeType(), domainerrors.ErrNoTextExtracted)
	}

	path := filepath.Join(e.root, doc.TenantID().String(), doc.ID().String())
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("blob %s: %w", path, domainerrors.ErrFileNotFound)
		}
		return "", fmt.Errorf("stat blob: %w", err)
	}
	if info.Size() > MaxFileSize {
		return "", fmt.Errorf("blob %s exceeds %d bytes: %w", path, int64(MaxFileSize), domainerrors.ErrInvalidInput)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read blob: %w", err)
	}

	text := sanitize(data)
	if strings.TrimSpace(text) == "" {
		return "", domainerrors.ErrNoTextExtracted
	}
	return text, nil
}

func supportsMIME(mimeType string) bool {
	// Parameters like "; charset=utf-8" do not affect support.
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	if strings.HasSuffix(mimeType, "+json") || strings.HasSuffix(mimeType, "+xml") {
		return true
	}
	return textMIMETypes[mimeType]
}

// sanitize strips a UTF-8 BOM and replaces invalid byte sequences so the
// chunker only ever sees valid UTF-8.
func sanitize(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}
