package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunOnceChecksAllTenants(t *testing.T) {
	tenantID := uuid.New()
	f := newConsistencyFixture(tenantID)
	f.indexedFile(tenantID, 3, 3)

	scheduler := NewReconciliationScheduler(ReconciliationSchedulerConfig{Interval: time.Hour}, f.service)

	assert.True(t, scheduler.RunOnce(context.Background()))
	assert.False(t, scheduler.LastRun().IsZero())
}

func TestScheduler_RunOnceAutoCleanup(t *testing.T) {
	tenantID := uuid.New()
	f := newConsistencyFixture(tenantID)
	orphanID := uuid.New()
	f.index.set(tenantID, orphanID, 4)

	scheduler := NewReconciliationScheduler(
		ReconciliationSchedulerConfig{Interval: time.Hour, AutoCleanup: true},
		f.service,
	)

	require.True(t, scheduler.RunOnce(context.Background()))

	ids, err := f.index.DistinctFileIDs(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestScheduler_StartStop(t *testing.T) {
	f := newConsistencyFixture()
	scheduler := NewReconciliationScheduler(ReconciliationSchedulerConfig{Interval: time.Hour}, f.service)

	scheduler.Start(context.Background())
	scheduler.Stop()

	// Stop is idempotent.
	scheduler.Stop()
}
