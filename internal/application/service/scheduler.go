package service

import (
	"context"
	"sync"
	"time"

	"docindex/internal/application/common/slogger"

	"github.com/google/uuid"
)

// ReconciliationSchedulerConfig holds scheduler configuration.
type ReconciliationSchedulerConfig struct {
	Interval    time.Duration
	AutoCleanup bool
}

// ReconciliationScheduler triggers periodic all-tenant consistency runs and,
// optionally, orphan cleanup after each check. Runs never overlap: a tick
// that arrives while a run is still in progress is skipped.
type ReconciliationScheduler struct {
	config      ReconciliationSchedulerConfig
	consistency *ConsistencyService

	mu      sync.Mutex
	running bool
	lastRun time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewReconciliationScheduler creates a scheduler driving the given service.
func NewReconciliationScheduler(config ReconciliationSchedulerConfig, consistency *ConsistencyService) *ReconciliationScheduler {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	return &ReconciliationScheduler{
		config:      config,
		consistency: consistency,
	}
}

// Start launches the periodic loop. It returns immediately; the loop stops
// when Stop is called or the context is cancelled.
func (s *ReconciliationScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(loopCtx)

	slogger.Info(ctx, "Reconciliation scheduler started", slogger.Fields{
		"interval":     s.config.Interval.String(),
		"auto_cleanup": s.config.AutoCleanup,
	})
}

// Stop halts the loop and waits for an in-flight run to finish.
func (s *ReconciliationScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunOnce triggers one reconciliation run immediately. Returns false if a
// run is already in progress.
func (s *ReconciliationScheduler) RunOnce(ctx context.Context) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return false
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.lastRun = time.Now()
		s.mu.Unlock()
	}()

	runID := uuid.New().String()
	fields := slogger.Fields{"run_id": runID}
	slogger.Info(ctx, "Reconciliation run starting", fields)

	reports, err := s.consistency.CheckAllTenants(ctx)
	if err != nil {
		slogger.ErrorWithError(ctx, err, "Reconciliation run failed", fields)
		return true
	}

	inconsistent := 0
	for _, report := range reports {
		if !report.IsConsistent() {
			inconsistent++
		}
	}
	fields["tenants_checked"] = len(reports)
	fields["tenants_inconsistent"] = inconsistent

	if s.config.AutoCleanup && inconsistent > 0 {
		results, cleanupErr := s.consistency.CleanupAllTenants(ctx)
		if cleanupErr != nil {
			slogger.ErrorWithError(ctx, cleanupErr, "Reconciliation cleanup failed", fields)
		} else {
			deleted := 0
			for _, result := range results {
				deleted += result.VectorsDeleted
			}
			fields["vectors_deleted"] = deleted
		}
	}

	slogger.Info(ctx, "Reconciliation run finished", fields)
	return true
}

// LastRun returns when the most recent run finished.
func (s *ReconciliationScheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

func (s *ReconciliationScheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}
