package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"docindex/internal/domain/entity"
	domainerrors "docindex/internal/domain/errors/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLEmbeddingRepository implements the EmbeddingRepository interface.
// Chunk texts and vectors are stored as JSONB documents; rows past their
// expiry are invisible to every read.
type PostgreSQLEmbeddingRepository struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLEmbeddingRepository creates a new PostgreSQL embedding repository.
func NewPostgreSQLEmbeddingRepository(pool *pgxpool.Pool) *PostgreSQLEmbeddingRepository {
	return &PostgreSQLEmbeddingRepository{pool: pool}
}

// Save upserts the embedding record for the record's file. There is at most
// one live record per (tenant, file); a re-index replaces the previous one.
func (r *PostgreSQLEmbeddingRepository) Save(ctx context.Context, record *entity.EmbeddingRecord) error {
	if record == nil {
		return ErrInvalidArgument
	}

	contentsJSON, err := json.Marshal(record.Contents())
	if err != nil {
		return fmt.Errorf("marshal contents: %w", err)
	}
	vectorsJSON, err := json.Marshal(record.Vectors())
	if err != nil {
		return fmt.Errorf("marshal vectors: %w", err)
	}

	query := `
		INSERT INTO docindex.file_embeddings (
			id, tenant_id, file_id, contents, vectors,
			provider, model, dimensions, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, file_id) DO UPDATE SET
			id = EXCLUDED.id,
			contents = EXCLUDED.contents,
			vectors = EXCLUDED.vectors,
			provider = EXCLUDED.provider,
			model = EXCLUDED.model,
			dimensions = EXCLUDED.dimensions,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`

	_, err = r.pool.Exec(ctx, query,
		record.ID(),
		record.TenantID(),
		record.FileID(),
		contentsJSON,
		vectorsJSON,
		record.Provider(),
		record.Model(),
		record.Dimensions(),
		record.CreatedAt(),
		record.ExpiresAt(),
	)
	if err != nil {
		return WrapError(err, "save embedding record")
	}
	return nil
}

// FindByFileID retrieves the live embedding record for a file.
func (r *PostgreSQLEmbeddingRepository) FindByFileID(ctx context.Context, tenantID, fileID uuid.UUID) (*entity.EmbeddingRecord, error) {
	if tenantID == uuid.Nil || fileID == uuid.Nil {
		return nil, ErrInvalidArgument
	}

	query := `
		SELECT id, tenant_id, file_id, contents, vectors,
			   provider, model, dimensions, created_at, expires_at
		FROM docindex.file_embeddings
		WHERE tenant_id = $1 AND file_id = $2 AND expires_at > now()`

	var (
		id                        uuid.UUID
		rTenantID, rFileID        uuid.UUID
		contentsJSON, vectorsJSON []byte
		provider, model           string
		dimensions                int
		createdAt, expiresAt      time.Time
	)

	err := r.pool.QueryRow(ctx, query, tenantID, fileID).Scan(
		&id, &rTenantID, &rFileID, &contentsJSON, &vectorsJSON,
		&provider, &model, &dimensions, &createdAt, &expiresAt,
	)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, domainerrors.ErrEmbeddingNotFound
		}
		return nil, WrapError(err, "find embedding record")
	}

	var contents []string
	if err := json.Unmarshal(contentsJSON, &contents); err != nil {
		return nil, fmt.Errorf("unmarshal contents: %w", err)
	}
	var vectors [][]float32
	if err := json.Unmarshal(vectorsJSON, &vectors); err != nil {
		return nil, fmt.Errorf("unmarshal vectors: %w", err)
	}

	return entity.RestoreEmbeddingRecord(
		id, rTenantID, rFileID, contents, vectors,
		provider, model, dimensions, createdAt, expiresAt,
	), nil
}

// ChunkCounts returns the stored chunk count per file for the given files in
// a single query. Counting jsonb_array_length avoids pulling the vectors.
func (r *PostgreSQLEmbeddingRepository) ChunkCounts(
	ctx context.Context,
	tenantID uuid.UUID,
	fileIDs []uuid.UUID,
) (map[uuid.UUID]int, error) {
	if tenantID == uuid.Nil {
		return nil, ErrInvalidArgument
	}
	counts := make(map[uuid.UUID]int, len(fileIDs))
	if len(fileIDs) == 0 {
		return counts, nil
	}

	query := `
		SELECT file_id, jsonb_array_length(contents)
		FROM docindex.file_embeddings
		WHERE tenant_id = $1 AND file_id = ANY($2) AND expires_at > now()`

	rows, err := r.pool.Query(ctx, query, tenantID, fileIDs)
	if err != nil {
		return nil, WrapError(err, "count embedding chunks")
	}
	defer rows.Close()

	for rows.Next() {
		var fileID uuid.UUID
		var count int
		if err := rows.Scan(&fileID, &count); err != nil {
			return nil, WrapError(err, "scan chunk count row")
		}
		counts[fileID] = count
	}
	if rows.Err() != nil {
		return nil, WrapError(rows.Err(), "iterate chunk count rows")
	}
	return counts, nil
}

// DeleteByFileID removes the embedding record for a file. Deleting a file
// with no record is a no-op.
func (r *PostgreSQLEmbeddingRepository) DeleteByFileID(ctx context.Context, tenantID, fileID uuid.UUID) error {
	if tenantID == uuid.Nil || fileID == uuid.Nil {
		return ErrInvalidArgument
	}

	query := `DELETE FROM docindex.file_embeddings WHERE tenant_id = $1 AND file_id = $2`
	if _, err := r.pool.Exec(ctx, query, tenantID, fileID); err != nil {
		return WrapError(err, "delete embedding record")
	}
	return nil
}
