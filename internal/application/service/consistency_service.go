package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"docindex/internal/application/common/slogger"
	"docindex/internal/domain/entity"
	"docindex/internal/port/outbound"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

const (
	defaultFilePageSize   = 500
	defaultTenantPageSize = 100
	defaultTenantParallel = 4
)

// ConsistencyService compares, per tenant, the chunk counts recorded in the
// metadata store against the vector index, and cleans up orphaned index
// entries. Checks are read only and safe to run while indexing is active;
// files indexed mid-scan show up as transient discrepancies that resolve on
// the next run.
type ConsistencyService struct {
	fileRepo      outbound.FileRepository
	embeddingRepo outbound.EmbeddingRepository
	tenantRepo    outbound.TenantRepository
	vectorIndex   outbound.VectorIndex

	tenantParallelism int

	checksCounter  metric.Int64Counter
	orphansCounter metric.Int64Counter
	deletedCounter metric.Int64Counter
}

// NewConsistencyService creates a consistency service. tenantParallelism
// bounds the number of tenants checked concurrently in the all-tenant
// variants; zero or negative selects a default.
func NewConsistencyService(
	fileRepo outbound.FileRepository,
	embeddingRepo outbound.EmbeddingRepository,
	tenantRepo outbound.TenantRepository,
	vectorIndex outbound.VectorIndex,
	tenantParallelism int,
) *ConsistencyService {
	if tenantParallelism <= 0 {
		tenantParallelism = defaultTenantParallel
	}

	meter := otel.Meter("consistency-service")
	checks, _ := meter.Int64Counter(
		"consistency_checks_total",
		metric.WithDescription("Total number of tenant consistency checks run"),
	)
	orphans, _ := meter.Int64Counter(
		"consistency_orphans_found_total",
		metric.WithDescription("Total number of orphaned files detected"),
	)
	deleted, _ := meter.Int64Counter(
		"consistency_vectors_deleted_total",
		metric.WithDescription("Total number of orphaned vectors deleted"),
	)

	return &ConsistencyService{
		fileRepo:          fileRepo,
		embeddingRepo:     embeddingRepo,
		tenantRepo:        tenantRepo,
		vectorIndex:       vectorIndex,
		tenantParallelism: tenantParallelism,
		checksCounter:     checks,
		orphansCounter:    orphans,
		deletedCounter:    deleted,
	}
}

// CheckTenant runs one consistency check for a tenant and returns the report.
func (s *ConsistencyService) CheckTenant(ctx context.Context, tenantID uuid.UUID) (*entity.ConsistencyReport, error) {
	report := &entity.ConsistencyReport{
		TenantID:  tenantID,
		CheckedAt: time.Now(),
	}
	s.checksCounter.Add(ctx, 1)

	known, dbVectorCount, err := s.collectKnownFiles(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("enumerate files: %w", err)
	}
	report.DBVectorCount = dbVectorCount

	qdrantVectorCount, err := s.vectorIndex.CountAll(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("count index vectors: %w", err)
	}
	report.QdrantVectorCount = qdrantVectorCount

	fileIDs := make([]uuid.UUID, 0, len(known))
	for id := range known {
		fileIDs = append(fileIDs, id)
	}
	indexCounts, err := s.vectorIndex.CountByFiles(ctx, tenantID, fileIDs)
	if err != nil {
		return nil, fmt.Errorf("count index vectors per file: %w", err)
	}

	for _, id := range sortedIDs(fileIDs) {
		file := known[id]
		dbCount := file.chunkCount
		indexCount := indexCounts[id]
		if dbCount != indexCount {
			d := entity.FileDiscrepancy{
				FileID:           id,
				FileName:         file.name,
				DBChunkCount:     dbCount,
				QdrantChunkCount: indexCount,
			}
			report.Discrepancies = append(report.Discrepancies, d)
			report.Issues = append(report.Issues, "chunk count mismatch: "+d.String())
		}
	}

	orphans, err := s.findOrphans(ctx, tenantID, known)
	if err != nil {
		return nil, err
	}
	for _, orphan := range orphans {
		report.OrphanedFiles = append(report.OrphanedFiles, orphan.fileID)
		report.Issues = append(report.Issues, fmt.Sprintf(
			"orphaned file %s: %d vectors indexed with no metadata record",
			orphan.fileID, orphan.chunkCount,
		))
	}
	s.orphansCounter.Add(ctx, int64(len(orphans)))

	// Coarse signals only: compensating per-file errors can cancel out here.
	report.MissingInIndex = max(0, dbVectorCount-qdrantVectorCount)
	report.MissingInDB = max(0, qdrantVectorCount-dbVectorCount)

	if len(report.Discrepancies) == 0 && len(report.OrphanedFiles) == 0 {
		report.Issues = []string{"no discrepancies found"}
	}

	slogger.Info(ctx, "Consistency check finished", slogger.Fields{
		"tenant_id":           tenantID.String(),
		"db_vector_count":     report.DBVectorCount,
		"qdrant_vector_count": report.QdrantVectorCount,
		"discrepancies":       len(report.Discrepancies),
		"orphaned_files":      len(report.OrphanedFiles),
	})
	return report, nil
}

// CleanupOrphanedVectors deletes every vector-index entry belonging to a file
// id with no metadata record. One file's delete failure does not abort the
// rest; rerunning cleanup is idempotent.
func (s *ConsistencyService) CleanupOrphanedVectors(ctx context.Context, tenantID uuid.UUID) (*entity.CleanupResult, error) {
	result := &entity.CleanupResult{TenantID: tenantID}

	known, _, err := s.collectKnownFiles(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("enumerate files: %w", err)
	}
	orphans, err := s.findOrphans(ctx, tenantID, known)
	if err != nil {
		return nil, err
	}

	for _, orphan := range orphans {
		result.FilesProcessed++
		result.OrphanedFiles = append(result.OrphanedFiles, orphan.fileID)

		if err := s.vectorIndex.DeleteByFile(ctx, tenantID, orphan.fileID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("delete file %s: %v", orphan.fileID, err))
			slogger.Warn(ctx, "Orphan cleanup failed for file", slogger.Fields{
				"tenant_id": tenantID.String(),
				"file_id":   orphan.fileID.String(),
				"error":     err.Error(),
			})
			continue
		}
		result.VectorsDeleted += orphan.chunkCount
	}
	s.deletedCounter.Add(ctx, int64(result.VectorsDeleted))

	slogger.Info(ctx, "Orphan cleanup finished", slogger.Fields{
		"tenant_id":       tenantID.String(),
		"files_processed": result.FilesProcessed,
		"vectors_deleted": result.VectorsDeleted,
		"errors":          len(result.Errors),
	})
	return result, nil
}

// CheckAllTenants checks every tenant, isolating failures: a failing tenant
// yields a report whose Err field is set rather than aborting the run.
func (s *ConsistencyService) CheckAllTenants(ctx context.Context) ([]*entity.ConsistencyReport, error) {
	var (
		mu      sync.Mutex
		reports []*entity.ConsistencyReport
	)

	err := s.forEachTenant(ctx, func(ctx context.Context, tenant outbound.TenantInfo) {
		report, err := s.CheckTenant(ctx, tenant.ID)
		if err != nil {
			report = &entity.ConsistencyReport{
				TenantID:  tenant.ID,
				Err:       err.Error(),
				CheckedAt: time.Now(),
			}
		}
		mu.Lock()
		reports = append(reports, report)
		mu.Unlock()
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].TenantID.String() < reports[j].TenantID.String()
	})
	return reports, nil
}

// CleanupAllTenants runs orphan cleanup for every tenant with per-tenant
// failure isolation.
func (s *ConsistencyService) CleanupAllTenants(ctx context.Context) ([]*entity.CleanupResult, error) {
	var (
		mu      sync.Mutex
		results []*entity.CleanupResult
	)

	err := s.forEachTenant(ctx, func(ctx context.Context, tenant outbound.TenantInfo) {
		result, err := s.CleanupOrphanedVectors(ctx, tenant.ID)
		if err != nil {
			result = &entity.CleanupResult{
				TenantID: tenant.ID,
				Errors:   []string{err.Error()},
			}
		}
		mu.Lock()
		results = append(results, result)
		mu.Unlock()
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].TenantID.String() < results[j].TenantID.String()
	})
	return results, nil
}

// forEachTenant iterates tenants page by page, dispatching fn with bounded
// parallelism. fn is responsible for its own failure isolation; only tenant
// enumeration errors abort the walk.
func (s *ConsistencyService) forEachTenant(ctx context.Context, fn func(context.Context, outbound.TenantInfo)) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.tenantParallelism)

	cursor := outbound.Cursor{Limit: defaultTenantPageSize}
	for {
		tenants, next, err := s.tenantRepo.List(ctx, cursor)
		if err != nil {
			return fmt.Errorf("list tenants: %w", err)
		}
		for _, tenant := range tenants {
			tenant := tenant
			group.Go(func() error {
				fn(groupCtx, tenant)
				return nil
			})
		}
		if !next.HasMore {
			break
		}
		cursor = next
	}
	return group.Wait()
}

type knownFile struct {
	name       string
	chunkCount int
}

type orphanFile struct {
	fileID     uuid.UUID
	chunkCount int
}

// collectKnownFiles walks the tenant's non-deleted files page by page and
// resolves each file's stored chunk count from its embedding record (0 when
// none exists). Returns the file map and the summed dbVectorCount.
func (s *ConsistencyService) collectKnownFiles(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]knownFile, int, error) {
	known := make(map[uuid.UUID]knownFile)
	total := 0

	cursor := outbound.Cursor{Limit: defaultFilePageSize}
	for {
		files, next, err := s.fileRepo.FindByTenant(ctx, tenantID, cursor)
		if err != nil {
			return nil, 0, err
		}
		if len(files) == 0 {
			break
		}

		pageIDs := make([]uuid.UUID, 0, len(files))
		names := make(map[uuid.UUID]string, len(files))
		for _, file := range files {
			pageIDs = append(pageIDs, file.ID())
			names[file.ID()] = file.Name()
		}

		counts, err := s.embeddingRepo.ChunkCounts(ctx, tenantID, pageIDs)
		if err != nil {
			return nil, 0, err
		}
		for _, id := range pageIDs {
			count := counts[id]
			known[id] = knownFile{name: names[id], chunkCount: count}
			total += count
		}

		if !next.HasMore {
			break
		}
		cursor = next
	}
	return known, total, nil
}

// findOrphans enumerates the distinct file ids present in the tenant's index
// partition and returns those without a metadata record, with their current
// chunk counts.
func (s *ConsistencyService) findOrphans(ctx context.Context, tenantID uuid.UUID, known map[uuid.UUID]knownFile) ([]orphanFile, error) {
	indexedIDs, err := s.vectorIndex.DistinctFileIDs(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("enumerate indexed file ids: %w", err)
	}

	var orphanIDs []uuid.UUID
	for _, id := range indexedIDs {
		if _, ok := known[id]; !ok {
			orphanIDs = append(orphanIDs, id)
		}
	}
	if len(orphanIDs) == 0 {
		return nil, nil
	}

	counts, err := s.vectorIndex.CountByFiles(ctx, tenantID, orphanIDs)
	if err != nil {
		return nil, fmt.Errorf("count orphan vectors: %w", err)
	}

	orphans := make([]orphanFile, 0, len(orphanIDs))
	for _, id := range sortedIDs(orphanIDs) {
		orphans = append(orphans, orphanFile{fileID: id, chunkCount: counts[id]})
	}
	return orphans, nil
}

func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	sorted := make([]uuid.UUID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})
	return sorted
}
