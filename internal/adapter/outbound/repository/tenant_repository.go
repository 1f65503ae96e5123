package repository

import (
	"context"

	"docindex/internal/port/outbound"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLTenantRepository implements the TenantRepository interface over
// the companies table.
type PostgreSQLTenantRepository struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLTenantRepository creates a new PostgreSQL tenant repository.
func NewPostgreSQLTenantRepository(pool *pgxpool.Pool) *PostgreSQLTenantRepository {
	return &PostgreSQLTenantRepository{pool: pool}
}

// List returns one page of non-deleted tenants ordered by id.
func (r *PostgreSQLTenantRepository) List(ctx context.Context, cursor outbound.Cursor) ([]outbound.TenantInfo, outbound.Cursor, error) {
	limit := cursor.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}

	query := `
		SELECT id, name
		FROM docindex.companies
		WHERE deleted_at IS NULL AND id > $1
		ORDER BY id
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, cursor.AfterID, limit+1)
	if err != nil {
		return nil, outbound.Cursor{}, WrapError(err, "list tenants")
	}
	defer rows.Close()

	var tenants []outbound.TenantInfo
	for rows.Next() {
		var t outbound.TenantInfo
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, outbound.Cursor{}, WrapError(err, "scan tenant row")
		}
		tenants = append(tenants, t)
	}
	if rows.Err() != nil {
		return nil, outbound.Cursor{}, WrapError(rows.Err(), "iterate tenant rows")
	}

	next := outbound.Cursor{Limit: limit}
	if len(tenants) > limit {
		tenants = tenants[:limit]
		next.HasMore = true
	}
	if len(tenants) > 0 {
		next.AfterID = tenants[len(tenants)-1].ID
	}
	return tenants, next, nil
}

// Exists reports whether the tenant exists and is not deleted.
func (r *PostgreSQLTenantRepository) Exists(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	if tenantID == uuid.Nil {
		return false, ErrInvalidArgument
	}

	query := `SELECT EXISTS (SELECT 1 FROM docindex.companies WHERE id = $1 AND deleted_at IS NULL)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, tenantID).Scan(&exists); err != nil {
		return false, WrapError(err, "check tenant exists")
	}
	return exists, nil
}
