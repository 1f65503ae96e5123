// Package projectstats maintains per-project aggregate counters.
package projectstats

import (
	"context"
	"time"

	"docindex/internal/application/common/slogger"
	"docindex/internal/port/outbound"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const updateTimeout = 5 * time.Second

// PostgreSQLNotifier applies stats deltas to the project_stats table. The
// counters are coarse aggregates for dashboards; callers treat failures as
// non-fatal and the notifier only logs them.
type PostgreSQLNotifier struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLNotifier creates a notifier backed by the given pool.
func NewPostgreSQLNotifier(pool *pgxpool.Pool) *PostgreSQLNotifier {
	return &PostgreSQLNotifier{pool: pool}
}

// NotifyIndexed applies a net counter delta for one project. Counters are
// never driven below zero even if deltas arrive out of order.
func (n *PostgreSQLNotifier) NotifyIndexed(
	ctx context.Context,
	tenantID, projectID uuid.UUID,
	delta outbound.StatsDelta,
) error {
	if delta == (outbound.StatsDelta{}) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	query := `
		INSERT INTO docindex.project_stats (tenant_id, project_id, file_count, vector_count, byte_count, updated_at)
		VALUES ($1, $2, GREATEST($3, 0), GREATEST($4, 0), GREATEST($5, 0), now())
		ON CONFLICT (tenant_id, project_id) DO UPDATE SET
			file_count = GREATEST(docindex.project_stats.file_count + $3, 0),
			vector_count = GREATEST(docindex.project_stats.vector_count + $4, 0),
			byte_count = GREATEST(docindex.project_stats.byte_count + $5, 0),
			updated_at = now()`

	_, err := n.pool.Exec(ctx, query, tenantID, projectID, delta.Files, delta.Vectors, delta.Bytes)
	if err != nil {
		slogger.Warn(ctx, "Failed to update project stats", slogger.Fields{
			"tenant_id":  tenantID.String(),
			"project_id": projectID.String(),
			"error":      err.Error(),
		})
		return err
	}
	return nil
}
