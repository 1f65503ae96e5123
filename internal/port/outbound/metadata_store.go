// Package outbound defines the outbound ports (interfaces) for external dependencies.
package outbound

import (
	"context"
	"time"

	"docindex/internal/domain/entity"

	"github.com/google/uuid"
)

// Cursor drives keyset pagination over metadata-store enumerations. A zero
// Cursor starts from the beginning; the cursor returned alongside a page
// resumes after the last row of that page. HasMore is false on the final page.
type Cursor struct {
	AfterID uuid.UUID
	Limit   int
	HasMore bool
}

// TenantInfo is the slim read model used when enumerating tenants.
type TenantInfo struct {
	ID   uuid.UUID
	Name string
}

// FileRepository is the outbound port for Document records in the metadata
// store. Enumerations skip soft-deleted rows.
type FileRepository interface {
	// FindByID retrieves a single non-deleted document.
	FindByID(ctx context.Context, tenantID, fileID uuid.UUID) (*entity.Document, error)

	// Update persists the document's mutable processing fields (status,
	// chunk count, error message, timestamps) atomically.
	Update(ctx context.Context, doc *entity.Document) error

	// FindByTenant returns one page of the tenant's non-deleted documents
	// across all projects, ordered by id.
	FindByTenant(ctx context.Context, tenantID uuid.UUID, cursor Cursor) ([]*entity.Document, Cursor, error)

	// FindFailedByProject returns all documents of a project currently in
	// FAILED status.
	FindFailedByProject(ctx context.Context, projectID uuid.UUID) ([]*entity.Document, error)

	// FindStuckProcessing returns documents that have been in PROCESSING
	// longer than the given duration, across all tenants of the project.
	FindStuckProcessing(ctx context.Context, projectID uuid.UUID, olderThan time.Duration) ([]*entity.Document, error)
}

// EmbeddingRepository is the outbound port for Embedding records. Records
// past their retention window are treated as absent by all reads.
type EmbeddingRepository interface {
	// Save upserts the embedding record for the record's file, replacing
	// any record from a previous indexing run.
	Save(ctx context.Context, record *entity.EmbeddingRecord) error

	// FindByFileID retrieves the current embedding record for a file.
	FindByFileID(ctx context.Context, tenantID, fileID uuid.UUID) (*entity.EmbeddingRecord, error)

	// ChunkCounts returns the stored chunk count per file for the given
	// file ids in one query. Files without a live record are absent from
	// the result map.
	ChunkCounts(ctx context.Context, tenantID uuid.UUID, fileIDs []uuid.UUID) (map[uuid.UUID]int, error)

	// DeleteByFileID removes the embedding record for a file, if any.
	DeleteByFileID(ctx context.Context, tenantID, fileID uuid.UUID) error
}

// TenantRepository enumerates tenants for all-tenant reconciliation runs.
type TenantRepository interface {
	// List returns one page of non-deleted tenants ordered by id.
	List(ctx context.Context, cursor Cursor) ([]TenantInfo, Cursor, error)

	// Exists reports whether the tenant exists and is not deleted.
	Exists(ctx context.Context, tenantID uuid.UUID) (bool, error)
}
