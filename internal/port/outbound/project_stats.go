package outbound

import (
	"context"

	"github.com/google/uuid"
)

// StatsDelta is a net change to a project's aggregate counters.
type StatsDelta struct {
	Files   int
	Vectors int
	Bytes   int64
}

// ProjectStatsNotifier receives counter deltas after net chunk-count changes.
// Fire-and-forget from the pipeline's perspective: callers log failures and
// move on, and invoke it exactly once per successful run with a nonzero net
// change. Deltas are measured against the last successful run: a failed
// re-index that already cleared a file's vectors reports nothing, leaving
// the counters overstated until the next successful run carries the
// correction.
type ProjectStatsNotifier interface {
	NotifyIndexed(ctx context.Context, tenantID, projectID uuid.UUID, delta StatsDelta) error
}
