package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"docindex/internal/domain/entity"
	domainerrors "docindex/internal/domain/errors/domain"
	"docindex/internal/port/outbound"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memFileRepo struct {
	mu       sync.Mutex
	byTenant map[uuid.UUID][]*entity.Document
	listErr  map[uuid.UUID]error
}

func newMemFileRepo() *memFileRepo {
	return &memFileRepo{
		byTenant: make(map[uuid.UUID][]*entity.Document),
		listErr:  make(map[uuid.UUID]error),
	}
}

func (r *memFileRepo) add(doc *entity.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byTenant[doc.TenantID()] = append(r.byTenant[doc.TenantID()], doc)
}

func (r *memFileRepo) FindByID(_ context.Context, tenantID, fileID uuid.UUID) (*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doc := range r.byTenant[tenantID] {
		if doc.ID() == fileID {
			return doc, nil
		}
	}
	return nil, domainerrors.ErrFileNotFound
}

func (r *memFileRepo) Update(_ context.Context, _ *entity.Document) error { return nil }

func (r *memFileRepo) FindByTenant(_ context.Context, tenantID uuid.UUID, cursor outbound.Cursor) ([]*entity.Document, outbound.Cursor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.listErr[tenantID]; err != nil {
		return nil, outbound.Cursor{}, err
	}
	// Single-page fake; pagination behavior is covered by the repository tests.
	return r.byTenant[tenantID], outbound.Cursor{Limit: cursor.Limit}, nil
}

func (r *memFileRepo) FindFailedByProject(context.Context, uuid.UUID) ([]*entity.Document, error) {
	return nil, nil
}

func (r *memFileRepo) FindStuckProcessing(context.Context, uuid.UUID, time.Duration) ([]*entity.Document, error) {
	return nil, nil
}

type memEmbeddingRepo struct {
	mu     sync.Mutex
	counts map[uuid.UUID]int
}

func newMemEmbeddingRepo() *memEmbeddingRepo {
	return &memEmbeddingRepo{counts: make(map[uuid.UUID]int)}
}

func (r *memEmbeddingRepo) Save(context.Context, *entity.EmbeddingRecord) error { return nil }

func (r *memEmbeddingRepo) FindByFileID(context.Context, uuid.UUID, uuid.UUID) (*entity.EmbeddingRecord, error) {
	return nil, domainerrors.ErrEmbeddingNotFound
}

func (r *memEmbeddingRepo) ChunkCounts(_ context.Context, _ uuid.UUID, fileIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[uuid.UUID]int)
	for _, id := range fileIDs {
		if count, ok := r.counts[id]; ok {
			counts[id] = count
		}
	}
	return counts, nil
}

func (r *memEmbeddingRepo) DeleteByFileID(context.Context, uuid.UUID, uuid.UUID) error { return nil }

type memTenantRepo struct {
	tenants []outbound.TenantInfo
}

func (r *memTenantRepo) List(_ context.Context, cursor outbound.Cursor) ([]outbound.TenantInfo, outbound.Cursor, error) {
	return r.tenants, outbound.Cursor{Limit: cursor.Limit}, nil
}

func (r *memTenantRepo) Exists(context.Context, uuid.UUID) (bool, error) { return true, nil }

type memVectorIndex struct {
	mu        sync.Mutex
	points    map[uuid.UUID]map[uuid.UUID]int // tenant -> file -> count
	deleteErr map[uuid.UUID]error
	countErr  map[uuid.UUID]error
}

func newMemVectorIndex() *memVectorIndex {
	return &memVectorIndex{
		points:    make(map[uuid.UUID]map[uuid.UUID]int),
		deleteErr: make(map[uuid.UUID]error),
		countErr:  make(map[uuid.UUID]error),
	}
}

func (v *memVectorIndex) set(tenantID, fileID uuid.UUID, count int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.points[tenantID] == nil {
		v.points[tenantID] = make(map[uuid.UUID]int)
	}
	v.points[tenantID][fileID] = count
}

func (v *memVectorIndex) EnsureCollection(context.Context, uuid.UUID, int) error { return nil }

func (v *memVectorIndex) UpsertChunks(_ context.Context, tenantID, fileID uuid.UUID, contents []string, _ [][]float32) error {
	v.set(tenantID, fileID, len(contents))
	return nil
}

func (v *memVectorIndex) DeleteByFile(_ context.Context, tenantID, fileID uuid.UUID) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.deleteErr[fileID]; err != nil {
		return err
	}
	delete(v.points[tenantID], fileID)
	return nil
}

func (v *memVectorIndex) CountAll(_ context.Context, tenantID uuid.UUID) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.countErr[tenantID]; err != nil {
		return 0, err
	}
	total := 0
	for _, count := range v.points[tenantID] {
		total += count
	}
	return total, nil
}

func (v *memVectorIndex) CountByFile(_ context.Context, tenantID, fileID uuid.UUID) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.points[tenantID][fileID], nil
}

func (v *memVectorIndex) CountByFiles(_ context.Context, tenantID uuid.UUID, fileIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	counts := make(map[uuid.UUID]int)
	for _, id := range fileIDs {
		if count, ok := v.points[tenantID][id]; ok {
			counts[id] = count
		}
	}
	return counts, nil
}

func (v *memVectorIndex) DistinctFileIDs(_ context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(v.points[tenantID]))
	for id := range v.points[tenantID] {
		ids = append(ids, id)
	}
	return ids, nil
}

type consistencyFixture struct {
	service   *ConsistencyService
	fileRepo  *memFileRepo
	embedRepo *memEmbeddingRepo
	tenants   *memTenantRepo
	index     *memVectorIndex
}

func newConsistencyFixture(tenantIDs ...uuid.UUID) *consistencyFixture {
	f := &consistencyFixture{
		fileRepo:  newMemFileRepo(),
		embedRepo: newMemEmbeddingRepo(),
		tenants:   &memTenantRepo{},
		index:     newMemVectorIndex(),
	}
	for _, id := range tenantIDs {
		f.tenants.tenants = append(f.tenants.tenants, outbound.TenantInfo{ID: id, Name: "tenant"})
	}
	f.service = NewConsistencyService(f.fileRepo, f.embedRepo, f.tenants, f.index, 2)
	return f
}

// indexedFile registers a file with chunkCount in the metadata store and
// indexCount entries in the vector index.
func (f *consistencyFixture) indexedFile(tenantID uuid.UUID, chunkCount, indexCount int) *entity.Document {
	doc := entity.NewDocument(tenantID, uuid.New(), "doc.txt", "text/plain", 100)
	f.fileRepo.add(doc)
	f.embedRepo.counts[doc.ID()] = chunkCount
	if indexCount > 0 {
		f.index.set(tenantID, doc.ID(), indexCount)
	}
	return doc
}

func TestCheckTenant_DetectsChunkCountMismatch(t *testing.T) {
	tenantID := uuid.New()
	f := newConsistencyFixture(tenantID)
	doc := f.indexedFile(tenantID, 10, 5)

	report, err := f.service.CheckTenant(context.Background(), tenantID)
	require.NoError(t, err)

	require.Len(t, report.Discrepancies, 1)
	assert.Equal(t, doc.ID(), report.Discrepancies[0].FileID)
	assert.Equal(t, 10, report.Discrepancies[0].DBChunkCount)
	assert.Equal(t, 5, report.Discrepancies[0].QdrantChunkCount)
	assert.Equal(t, 5, report.MissingInIndex)
	assert.Equal(t, 0, report.MissingInDB)
	assert.False(t, report.IsConsistent())
}

func TestCheckTenant_ConsistentTenant(t *testing.T) {
	tenantID := uuid.New()
	f := newConsistencyFixture(tenantID)
	f.indexedFile(tenantID, 7, 7)
	f.indexedFile(tenantID, 3, 3)

	report, err := f.service.CheckTenant(context.Background(), tenantID)
	require.NoError(t, err)

	assert.True(t, report.IsConsistent())
	assert.Equal(t, 10, report.DBVectorCount)
	assert.Equal(t, 10, report.QdrantVectorCount)
	assert.Equal(t, []string{"no discrepancies found"}, report.Issues)
}

func TestCheckTenant_EmptyTenant(t *testing.T) {
	tenantID := uuid.New()
	f := newConsistencyFixture(tenantID)

	report, err := f.service.CheckTenant(context.Background(), tenantID)
	require.NoError(t, err)

	assert.True(t, report.IsConsistent())
	assert.Zero(t, report.DBVectorCount)
	assert.Zero(t, report.QdrantVectorCount)
	assert.Zero(t, report.MissingInIndex)
	assert.Zero(t, report.MissingInDB)
	assert.Equal(t, []string{"no discrepancies found"}, report.Issues)
}

func TestCheckTenant_ReportsOrphans(t *testing.T) {
	tenantID := uuid.New()
	f := newConsistencyFixture(tenantID)
	f.indexedFile(tenantID, 4, 4)

	orphanID := uuid.New()
	f.index.set(tenantID, orphanID, 6)

	report, err := f.service.CheckTenant(context.Background(), tenantID)
	require.NoError(t, err)

	require.Len(t, report.OrphanedFiles, 1)
	assert.Equal(t, orphanID, report.OrphanedFiles[0])
	assert.Empty(t, report.Discrepancies)
	assert.False(t, report.IsConsistent())
}

func TestCleanupOrphanedVectors_DeletesOnlyOrphans(t *testing.T) {
	tenantID := uuid.New()
	f := newConsistencyFixture(tenantID)
	kept := f.indexedFile(tenantID, 4, 4)

	orphanID := uuid.New()
	f.index.set(tenantID, orphanID, 6)

	result, err := f.service.CleanupOrphanedVectors(context.Background(), tenantID)
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{orphanID}, result.OrphanedFiles)
	assert.Equal(t, 6, result.VectorsDeleted)
	assert.Equal(t, 1, result.FilesProcessed)
	assert.Empty(t, result.Errors)

	count, err := f.index.CountByFile(context.Background(), tenantID, kept.ID())
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	// A second run finds nothing left to clean.
	again, err := f.service.CleanupOrphanedVectors(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Empty(t, again.OrphanedFiles)
	assert.Zero(t, again.VectorsDeleted)
}

func TestCleanupOrphanedVectors_ContinuesPastFailures(t *testing.T) {
	tenantID := uuid.New()
	f := newConsistencyFixture(tenantID)

	failingID := uuid.New()
	okID := uuid.New()
	f.index.set(tenantID, failingID, 3)
	f.index.set(tenantID, okID, 5)
	f.index.deleteErr[failingID] = errors.New("delete rejected")

	result, err := f.service.CleanupOrphanedVectors(context.Background(), tenantID)
	require.NoError(t, err)

	assert.Equal(t, 2, result.FilesProcessed)
	assert.Equal(t, 5, result.VectorsDeleted)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "delete rejected")
}

func TestCheckAllTenants_IsolatesTenantFailures(t *testing.T) {
	healthyID := uuid.New()
	brokenID := uuid.New()
	f := newConsistencyFixture(healthyID, brokenID)
	f.indexedFile(healthyID, 2, 2)
	f.index.countErr[brokenID] = errors.New("collection unavailable")

	reports, err := f.service.CheckAllTenants(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)

	byTenant := make(map[uuid.UUID]*entity.ConsistencyReport)
	for _, report := range reports {
		byTenant[report.TenantID] = report
	}

	assert.True(t, byTenant[healthyID].IsConsistent())
	assert.Empty(t, byTenant[healthyID].Err)
	assert.Contains(t, byTenant[brokenID].Err, "collection unavailable")
	assert.False(t, byTenant[brokenID].IsConsistent())
}

func TestCheckAllTenants_FileListingFailureIsolated(t *testing.T) {
	healthyID := uuid.New()
	brokenID := uuid.New()
	f := newConsistencyFixture(healthyID, brokenID)
	f.indexedFile(healthyID, 1, 1)
	f.fileRepo.listErr[brokenID] = errors.New("database timeout")

	reports, err := f.service.CheckAllTenants(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)

	failed := 0
	for _, report := range reports {
		if report.Err != "" {
			failed++
			assert.Equal(t, brokenID, report.TenantID)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestCleanupAllTenants_ReportsPerTenant(t *testing.T) {
	tenantA := uuid.New()
	tenantB := uuid.New()
	f := newConsistencyFixture(tenantA, tenantB)

	f.index.set(tenantA, uuid.New(), 2)
	f.indexedFile(tenantB, 3, 3)

	results, err := f.service.CleanupAllTenants(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	deleted := 0
	for _, result := range results {
		deleted += result.VectorsDeleted
	}
	assert.Equal(t, 2, deleted)
}
