package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FileDiscrepancy records a per-file chunk-count mismatch between the
// metadata store and the vector index.
type FileDiscrepancy struct {
	FileID           uuid.UUID `json:"file_id"`
	FileName         string    `json:"file_name"`
	DBChunkCount     int       `json:"db_chunk_count"`
	QdrantChunkCount int       `json:"qdrant_chunk_count"`
}

func (d FileDiscrepancy) String() string {
	return fmt.Sprintf("file %s (%s): db=%d qdrant=%d",
		d.FileID, d.FileName, d.DBChunkCount, d.QdrantChunkCount)
}

// ConsistencyReport is the ephemeral result of one reconciliation run for a
// tenant. It is never persisted and never mutated after construction.
//
// MissingInIndex and MissingInDB are coarse aggregate signals: a file
// over-counted in one store and another under-counted can cancel out in the
// totals. Per-file discrepancies are the precise signal; the aggregates are
// kept for operator dashboards despite that blind spot.
type ConsistencyReport struct {
	TenantID          uuid.UUID         `json:"tenant_id"`
	DBVectorCount     int               `json:"db_vector_count"`
	QdrantVectorCount int               `json:"qdrant_vector_count"`
	MissingInIndex    int               `json:"missing_in_index"`
	MissingInDB       int               `json:"missing_in_db"`
	Discrepancies     []FileDiscrepancy `json:"discrepancies"`
	OrphanedFiles     []uuid.UUID       `json:"orphaned_files"`
	Issues            []string          `json:"issues"`
	Err               string            `json:"error,omitempty"`
	CheckedAt         time.Time         `json:"checked_at"`
}

// IsConsistent reports whether the run found no discrepancies and no orphans.
func (r *ConsistencyReport) IsConsistent() bool {
	return len(r.Discrepancies) == 0 && len(r.OrphanedFiles) == 0 && r.Err == ""
}

// CleanupResult is the outcome of one orphaned-vector cleanup run for a tenant.
type CleanupResult struct {
	TenantID       uuid.UUID   `json:"tenant_id"`
	VectorsDeleted int         `json:"vectors_deleted"`
	FilesProcessed int         `json:"files_processed"`
	OrphanedFiles  []uuid.UUID `json:"orphaned_files"`
	Errors         []string    `json:"errors,omitempty"`
}
