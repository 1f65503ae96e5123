package entity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultEmbeddingRetention is how long an embedding record is kept before
// it expires. The record is a snapshot of derived data, not the source of
// truth; expiry is independent of the document's lifecycle.
const DefaultEmbeddingRetention = 30 * 24 * time.Hour

// EmbeddingRecord holds the chunk texts and embedding vectors produced by a
// single indexing run of one file. Contents and vectors are parallel lists.
type EmbeddingRecord struct {
	id         uuid.UUID
	tenantID   uuid.UUID
	fileID     uuid.UUID
	contents   []string
	vectors    [][]float32
	provider   string
	model      string
	dimensions int
	createdAt  time.Time
	expiresAt  time.Time
}

// NewEmbeddingRecord creates an embedding record after validating that the
// chunk texts and vectors align positionally.
func NewEmbeddingRecord(
	tenantID, fileID uuid.UUID,
	contents []string,
	vectors [][]float32,
	provider, model string,
	dimensions int,
	retention time.Duration,
) (*EmbeddingRecord, error) {
	if len(contents) != len(vectors) {
		return nil, errors.New("contents and vectors length mismatch")
	}
	if retention <= 0 {
		retention = DefaultEmbeddingRetention
	}
	now := time.Now()
	return &EmbeddingRecord{
		id:         uuid.New(),
		tenantID:   tenantID,
		fileID:     fileID,
		contents:   contents,
		vectors:    vectors,
		provider:   provider,
		model:      model,
		dimensions: dimensions,
		createdAt:  now,
		expiresAt:  now.Add(retention),
	}, nil
}

// RestoreEmbeddingRecord creates an EmbeddingRecord from stored data.
func RestoreEmbeddingRecord(
	id uuid.UUID,
	tenantID uuid.UUID,
	fileID uuid.UUID,
	contents []string,
	vectors [][]float32,
	provider string,
	model string,
	dimensions int,
	createdAt time.Time,
	expiresAt time.Time,
) *EmbeddingRecord {
	return &EmbeddingRecord{
		id:         id,
		tenantID:   tenantID,
		fileID:     fileID,
		contents:   contents,
		vectors:    vectors,
		provider:   provider,
		model:      model,
		dimensions: dimensions,
		createdAt:  createdAt,
		expiresAt:  expiresAt,
	}
}

// ID returns the record ID.
func (e *EmbeddingRecord) ID() uuid.UUID {
	return e.id
}

// TenantID returns the owning tenant ID.
func (e *EmbeddingRecord) TenantID() uuid.UUID {
	return e.tenantID
}

// FileID returns the file this record belongs to.
func (e *EmbeddingRecord) FileID() uuid.UUID {
	return e.fileID
}

// Contents returns the ordered chunk texts.
func (e *EmbeddingRecord) Contents() []string {
	return e.contents
}

// Vectors returns the embedding vectors, parallel to Contents.
func (e *EmbeddingRecord) Vectors() [][]float32 {
	return e.vectors
}

// Provider returns the embedding provider identifier.
func (e *EmbeddingRecord) Provider() string {
	return e.provider
}

// Model returns the embedding model name.
func (e *EmbeddingRecord) Model() string {
	return e.model
}

// Dimensions returns the vector dimensionality.
func (e *EmbeddingRecord) Dimensions() int {
	return e.dimensions
}

// ChunkCount returns the number of chunks in this record.
func (e *EmbeddingRecord) ChunkCount() int {
	return len(e.contents)
}

// CreatedAt returns the creation timestamp.
func (e *EmbeddingRecord) CreatedAt() time.Time {
	return e.createdAt
}

// ExpiresAt returns the expiry timestamp.
func (e *EmbeddingRecord) ExpiresAt() time.Time {
	return e.expiresAt
}

// IsExpired reports whether the record has passed its retention window.
func (e *EmbeddingRecord) IsExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}
