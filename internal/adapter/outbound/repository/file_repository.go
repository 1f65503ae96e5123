package repository

import (
	"context"
	"time"

	"docindex/internal/domain/entity"
	domainerrors "docindex/internal/domain/errors/domain"
	"docindex/internal/domain/valueobject"
	"docindex/internal/port/outbound"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultPageLimit = 500

const fileColumns = `id, tenant_id, project_id, name, mime_type, size_bytes,
			   status, chunk_count, error_message, uploaded_at, started_at,
			   completed_at, updated_at, deleted_at`

// PostgreSQLFileRepository implements the FileRepository interface.
type PostgreSQLFileRepository struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLFileRepository creates a new PostgreSQL file repository.
func NewPostgreSQLFileRepository(pool *pgxpool.Pool) *PostgreSQLFileRepository {
	return &PostgreSQLFileRepository{pool: pool}
}

// FindByID finds a non-deleted file by tenant and file id.
func (r *PostgreSQLFileRepository) FindByID(ctx context.Context, tenantID, fileID uuid.UUID) (*entity.Document, error) {
	if tenantID == uuid.Nil || fileID == uuid.Nil {
		return nil, ErrInvalidArgument
	}

	query := `
		SELECT ` + fileColumns + `
		FROM docindex.files
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`

	doc, err := scanDocument(r.pool.QueryRow(ctx, query, fileID, tenantID))
	if err != nil {
		if IsNotFoundError(err) {
			return nil, domainerrors.ErrFileNotFound
		}
		return nil, WrapError(err, "find file by ID")
	}
	return doc, nil
}

// Update persists the file's mutable processing fields. The WHERE clause pins
// id and tenant, making the status write atomic per file.
func (r *PostgreSQLFileRepository) Update(ctx context.Context, doc *entity.Document) error {
	if doc == nil {
		return ErrInvalidArgument
	}

	query := `
		UPDATE docindex.files
		SET status = $3, chunk_count = $4, error_message = $5,
			started_at = $6, completed_at = $7, updated_at = $8, deleted_at = $9
		WHERE id = $1 AND tenant_id = $2`

	tag, err := r.pool.Exec(ctx, query,
		doc.ID(),
		doc.TenantID(),
		doc.Status().String(),
		doc.ChunkCount(),
		doc.ErrorMessage(),
		doc.StartedAt(),
		doc.CompletedAt(),
		doc.UpdatedAt(),
		doc.DeletedAt(),
	)
	if err != nil {
		return WrapError(err, "update file")
	}
	if tag.RowsAffected() == 0 {
		return domainerrors.ErrFileNotFound
	}
	return nil
}

// FindByTenant returns one page of the tenant's non-deleted files across all
// projects, ordered by id for keyset pagination.
func (r *PostgreSQLFileRepository) FindByTenant(
	ctx context.Context,
	tenantID uuid.UUID,
	cursor outbound.Cursor,
) ([]*entity.Document, outbound.Cursor, error) {
	if tenantID == uuid.Nil {
		return nil, outbound.Cursor{}, ErrInvalidArgument
	}
	limit := cursor.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}

	query := `
		SELECT ` + fileColumns + `
		FROM docindex.files
		WHERE tenant_id = $1 AND deleted_at IS NULL AND id > $2
		ORDER BY id
		LIMIT $3`

	// Fetch one extra row to learn whether another page exists.
	rows, err := r.pool.Query(ctx, query, tenantID, cursor.AfterID, limit+1)
	if err != nil {
		return nil, outbound.Cursor{}, WrapError(err, "find files by tenant")
	}
	defer rows.Close()

	var docs []*entity.Document
	for rows.Next() {
		doc, scanErr := scanDocument(rows)
		if scanErr != nil {
			return nil, outbound.Cursor{}, WrapError(scanErr, "scan file row")
		}
		docs = append(docs, doc)
	}
	if rows.Err() != nil {
		return nil, outbound.Cursor{}, WrapError(rows.Err(), "iterate file rows")
	}

	next := outbound.Cursor{Limit: limit}
	if len(docs) > limit {
		docs = docs[:limit]
		next.HasMore = true
	}
	if len(docs) > 0 {
		next.AfterID = docs[len(docs)-1].ID()
	}
	return docs, next, nil
}

// FindFailedByProject returns all files of a project in FAILED status.
func (r *PostgreSQLFileRepository) FindFailedByProject(ctx context.Context, projectID uuid.UUID) ([]*entity.Document, error) {
	if projectID == uuid.Nil {
		return nil, ErrInvalidArgument
	}

	query := `
		SELECT ` + fileColumns + `
		FROM docindex.files
		WHERE project_id = $1 AND status = $2 AND deleted_at IS NULL
		ORDER BY id`

	return r.queryDocuments(ctx, query, projectID, valueobject.FileStatusFailed.String())
}

// FindStuckProcessing returns files of a project stuck in PROCESSING longer
// than olderThan.
func (r *PostgreSQLFileRepository) FindStuckProcessing(
	ctx context.Context,
	projectID uuid.UUID,
	olderThan time.Duration,
) ([]*entity.Document, error) {
	if projectID == uuid.Nil {
		return nil, ErrInvalidArgument
	}

	query := `
		SELECT ` + fileColumns + `
		FROM docindex.files
		WHERE project_id = $1 AND status = $2 AND started_at < $3 AND deleted_at IS NULL
		ORDER BY id`

	cutoff := time.Now().Add(-olderThan)
	return r.queryDocuments(ctx, query, projectID, valueobject.FileStatusProcessing.String(), cutoff)
}

func (r *PostgreSQLFileRepository) queryDocuments(ctx context.Context, query string, args ...any) ([]*entity.Document, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, WrapError(err, "query files")
	}
	defer rows.Close()

	var docs []*entity.Document
	for rows.Next() {
		doc, scanErr := scanDocument(rows)
		if scanErr != nil {
			return nil, WrapError(scanErr, "scan file row")
		}
		docs = append(docs, doc)
	}
	if rows.Err() != nil {
		return nil, WrapError(rows.Err(), "iterate file rows")
	}
	return docs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		id, tenantID, projectID           uuid.UUID
		name, mimeType, statusStr         string
		sizeBytes                         int64
		chunkCount                        int
		errorMessage                      *string
		uploadedAt, updatedAt             time.Time
		startedAt, completedAt, deletedAt *time.Time
	)

	err := row.Scan(
		&id, &tenantID, &projectID, &name, &mimeType, &sizeBytes,
		&statusStr, &chunkCount, &errorMessage, &uploadedAt, &startedAt,
		&completedAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	status, err := valueobject.NewFileStatus(statusStr)
	if err != nil {
		return nil, err
	}

	return entity.RestoreDocument(
		id, tenantID, projectID, name, mimeType, sizeBytes,
		status, chunkCount, errorMessage, uploadedAt, startedAt,
		completedAt, updatedAt, deletedAt,
	), nil
}
