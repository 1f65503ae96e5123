package outbound

import (
	"context"

	"github.com/google/uuid"
)

// VectorIndex is the outbound port for the tenant-partitioned vector store.
// Each tenant owns one collection; every point carries the tenant id and
// file id as indexed payload fields.
type VectorIndex interface {
	// EnsureCollection creates the tenant's collection if it does not exist.
	EnsureCollection(ctx context.Context, tenantID uuid.UUID, dimensions int) error

	// UpsertChunks inserts one point per chunk for the given file. Contents
	// and vectors must align positionally.
	UpsertChunks(ctx context.Context, tenantID, fileID uuid.UUID, contents []string, vectors [][]float32) error

	// DeleteByFile removes every point tagged with the file id. Deleting an
	// already-absent file is a no-op.
	DeleteByFile(ctx context.Context, tenantID, fileID uuid.UUID) error

	// CountAll returns the total point count in the tenant's collection.
	CountAll(ctx context.Context, tenantID uuid.UUID) (int, error)

	// CountByFile returns the point count tagged with one file id.
	CountByFile(ctx context.Context, tenantID, fileID uuid.UUID) (int, error)

	// CountByFiles returns per-file point counts for the given file ids
	// using one indexed multi-id query, not a scan per file.
	CountByFiles(ctx context.Context, tenantID uuid.UUID, fileIDs []uuid.UUID) (map[uuid.UUID]int, error)

	// DistinctFileIDs enumerates the distinct file ids present in the
	// tenant's collection.
	DistinctFileIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error)
}
