package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"docindex/internal/application/common/slogger"
	"docindex/internal/domain/entity"
	domainerrors "docindex/internal/domain/errors/domain"
	"docindex/internal/domain/messaging"
	"docindex/internal/domain/service"
	"docindex/internal/domain/valueobject"
	"docindex/internal/port/inbound"
	"docindex/internal/port/outbound"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
	defaultJobTimeout   = 10 * time.Minute
)

// JobProcessorConfig holds configuration for the job processor.
type JobProcessorConfig struct {
	MaxConcurrentJobs  int
	JobTimeout         time.Duration
	ChunkSize          int
	ChunkOverlap       int
	EmbeddingRetention time.Duration
}

func (c JobProcessorConfig) withDefaults() JobProcessorConfig {
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = 1
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaultJobTimeout
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = c.ChunkSize / 5
	}
	return c
}

// DefaultJobProcessor runs the indexing pipeline for one file per job:
// extract text, chunk, embed, replace the file's vector-index entries, and
// persist the embedding record. Jobs for the same file are single-flighted;
// redelivered jobs rebuild the file's entries from scratch.
type DefaultJobProcessor struct {
	config           JobProcessorConfig
	fileRepo         outbound.FileRepository
	embeddingRepo    outbound.EmbeddingRepository
	vectorIndex      outbound.VectorIndex
	embeddingService outbound.EmbeddingService
	textExtractor    outbound.TextExtractor
	statsNotifier    outbound.ProjectStatsNotifier

	inflight  singleflight.Group
	semaphore chan struct{}

	metricsMu sync.Mutex
	metrics   inbound.JobProcessorMetrics

	jobsProcessedCounter metric.Int64Counter
	jobsFailedCounter    metric.Int64Counter
	chunksIndexedCounter metric.Int64Counter
	jobDurationHistogram metric.Float64Histogram
}

// NewDefaultJobProcessor creates a new default job processor.
func NewDefaultJobProcessor(
	config JobProcessorConfig,
	fileRepo outbound.FileRepository,
	embeddingRepo outbound.EmbeddingRepository,
	vectorIndex outbound.VectorIndex,
	embeddingService outbound.EmbeddingService,
	textExtractor outbound.TextExtractor,
	statsNotifier outbound.ProjectStatsNotifier,
) *DefaultJobProcessor {
	config = config.withDefaults()

	meter := otel.Meter("indexing-job-processor")
	jobsProcessed, _ := meter.Int64Counter(
		"indexing_jobs_processed_total",
		metric.WithDescription("Total number of indexing jobs completed successfully"),
	)
	jobsFailed, _ := meter.Int64Counter(
		"indexing_jobs_failed_total",
		metric.WithDescription("Total number of indexing jobs that failed"),
	)
	chunksIndexed, _ := meter.Int64Counter(
		"indexing_chunks_indexed_total",
		metric.WithDescription("Total number of chunks written to the vector index"),
	)
	jobDuration, _ := meter.Float64Histogram(
		"indexing_job_duration_seconds",
		metric.WithDescription("Wall-clock duration of indexing jobs"),
		metric.WithUnit("s"),
	)

	return &DefaultJobProcessor{
		config:               config,
		fileRepo:             fileRepo,
		embeddingRepo:        embeddingRepo,
		vectorIndex:          vectorIndex,
		embeddingService:     embeddingService,
		textExtractor:        textExtractor,
		statsNotifier:        statsNotifier,
		semaphore:            make(chan struct{}, config.MaxConcurrentJobs),
		jobsProcessedCounter: jobsProcessed,
		jobsFailedCounter:    jobsFailed,
		chunksIndexedCounter: chunksIndexed,
		jobDurationHistogram: jobDuration,
	}
}

// ProcessJob processes one indexing job message. Concurrent jobs for the
// same file collapse into a single execution via the dedup key.
func (p *DefaultJobProcessor) ProcessJob(ctx context.Context, msg messaging.IndexingJobMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	_, err, _ := p.inflight.Do(msg.DedupKey(), func() (interface{}, error) {
		return nil, p.runJob(ctx, msg)
	})
	return err
}

// GetMetrics returns cumulative job processing counters.
func (p *DefaultJobProcessor) GetMetrics() inbound.JobProcessorMetrics {
	p.metricsMu.Lock()
	defer p.metricsMu.Unlock()
	return p.metrics
}

func (p *DefaultJobProcessor) runJob(ctx context.Context, msg messaging.IndexingJobMessage) error {
	p.semaphore <- struct{}{}
	defer func() { <-p.semaphore }()

	start := time.Now()
	defer func() {
		p.jobDurationHistogram.Record(ctx, time.Since(start).Seconds())
	}()

	jobCtx, cancel := context.WithTimeout(ctx, p.config.JobTimeout)
	defer cancel()

	logFields := slogger.Fields{
		"event_id":  msg.EventID,
		"tenant_id": msg.TenantID.String(),
		"file_id":   msg.FileID.String(),
	}
	slogger.Info(jobCtx, "Processing indexing job", logFields)

	doc, err := p.fileRepo.FindByID(jobCtx, msg.TenantID, msg.FileID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrFileNotFound) || errors.Is(err, domainerrors.ErrFileDeleted) {
			// The file was deleted between enqueue and delivery. Nothing
			// to index; acknowledge and move on.
			slogger.Warn(jobCtx, "Skipping job for missing file", logFields)
			return nil
		}
		return fmt.Errorf("load file: %w", err)
	}

	if doc.Status() == valueobject.FileStatusCompleted {
		slogger.Info(jobCtx, "File already indexed, skipping redelivered job", logFields)
		return nil
	}

	// A file that never contributed chunks has not been counted yet.
	previousChunks := doc.ChunkCount()
	firstIndex := previousChunks == 0

	if err := p.markProcessing(jobCtx, doc); err != nil {
		return err
	}

	chunkCount, err := p.indexFile(jobCtx, doc)
	if err != nil {
		// No stats delta on failure. A run that cleared the previous
		// vectors before failing leaves the counters overstated, but the
		// stored chunk count is untouched, so the next successful run's
		// delta carries the correction.
		p.recordFailure(jobCtx, doc, err, logFields)
		return err
	}

	if err := doc.Complete(chunkCount); err != nil {
		return fmt.Errorf("complete file: %w", err)
	}
	if err := p.fileRepo.Update(jobCtx, doc); err != nil {
		return fmt.Errorf("persist completed file: %w", err)
	}

	p.notifyStats(jobCtx, doc, previousChunks, chunkCount, firstIndex)
	p.recordSuccess(jobCtx, int64(chunkCount))

	logFields["chunk_count"] = chunkCount
	slogger.Info(jobCtx, "Indexing job completed", logFields)
	return nil
}

// markProcessing moves the file into PROCESSING from whatever retryable
// state it is in. A file already in PROCESSING (redelivery after a worker
// crash) is left as is.
func (p *DefaultJobProcessor) markProcessing(ctx context.Context, doc *entity.Document) error {
	if doc.Status() == valueobject.FileStatusProcessing {
		return nil
	}
	if doc.Status() == valueobject.FileStatusFailed {
		if err := doc.MarkRetrying(); err != nil {
			return fmt.Errorf("mark file retrying: %w", err)
		}
	}
	if err := doc.StartProcessing(); err != nil {
		return fmt.Errorf("start processing: %w", err)
	}
	if err := p.fileRepo.Update(ctx, doc); err != nil {
		return fmt.Errorf("persist processing status: %w", err)
	}
	return nil
}

// indexFile runs extraction, chunking, embedding, and both store writes, and
// returns the resulting chunk count. The vector index write deletes the
// file's existing entries first so a redelivered job never duplicates them.
func (p *DefaultJobProcessor) indexFile(ctx context.Context, doc *entity.Document) (int, error) {
	text, err := p.textExtractor.Extract(ctx, doc)
	if err != nil {
		return 0, fmt.Errorf("extract text: %w", err)
	}

	chunks, err := service.Chunk(text, p.config.ChunkSize, p.config.ChunkOverlap)
	if err != nil {
		return 0, fmt.Errorf("chunk text: %w", err)
	}
	if len(chunks) == 0 {
		return 0, domainerrors.ErrNoTextExtracted
	}

	vectors, err := p.embeddingService.EmbedChunks(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}

	if err := p.vectorIndex.EnsureCollection(ctx, doc.TenantID(), p.embeddingService.Dimensions()); err != nil {
		return 0, fmt.Errorf("ensure collection: %w", err)
	}
	if err := p.vectorIndex.DeleteByFile(ctx, doc.TenantID(), doc.ID()); err != nil {
		return 0, fmt.Errorf("clear previous vectors: %w", err)
	}
	if err := p.vectorIndex.UpsertChunks(ctx, doc.TenantID(), doc.ID(), chunks, vectors); err != nil {
		return 0, fmt.Errorf("write vectors: %w", err)
	}

	record, err := entity.NewEmbeddingRecord(
		doc.TenantID(), doc.ID(), chunks, vectors,
		p.embeddingService.Provider(), p.embeddingService.Model(),
		p.embeddingService.Dimensions(), p.config.EmbeddingRetention,
	)
	if err != nil {
		return 0, fmt.Errorf("build embedding record: %w", err)
	}
	if err := p.embeddingRepo.Save(ctx, record); err != nil {
		return 0, fmt.Errorf("save embedding record: %w", err)
	}

	return len(chunks), nil
}

func (p *DefaultJobProcessor) recordFailure(ctx context.Context, doc *entity.Document, cause error, logFields slogger.Fields) {
	if err := doc.Fail(cause.Error()); err != nil {
		slogger.ErrorWithError(ctx, err, "Failed to transition file to FAILED", logFields)
	} else if err := p.fileRepo.Update(ctx, doc); err != nil {
		slogger.ErrorWithError(ctx, err, "Failed to persist FAILED status", logFields)
	}

	p.metricsMu.Lock()
	p.metrics.JobsFailed++
	p.metrics.LastJobTime = time.Now()
	p.metricsMu.Unlock()
	p.jobsFailedCounter.Add(ctx, 1)

	slogger.ErrorWithError(ctx, cause, "Indexing job failed", logFields)
}

func (p *DefaultJobProcessor) recordSuccess(ctx context.Context, chunks int64) {
	p.metricsMu.Lock()
	p.metrics.JobsProcessed++
	p.metrics.ChunksIndexed += chunks
	p.metrics.LastJobTime = time.Now()
	p.metricsMu.Unlock()

	p.jobsProcessedCounter.Add(ctx, 1)
	p.chunksIndexedCounter.Add(ctx, chunks)
}

// notifyStats reports the net counter change for this run. Failures are
// logged and swallowed; stats are advisory.
func (p *DefaultJobProcessor) notifyStats(ctx context.Context, doc *entity.Document, previousChunks, newChunks int, firstIndex bool) {
	delta := outbound.StatsDelta{
		Vectors: newChunks - previousChunks,
	}
	if firstIndex {
		delta.Files = 1
		delta.Bytes = doc.SizeBytes()
	}
	if delta == (outbound.StatsDelta{}) {
		return
	}

	if err := p.statsNotifier.NotifyIndexed(ctx, doc.TenantID(), doc.ProjectID(), delta); err != nil {
		slogger.Warn(ctx, "Project stats notification failed", slogger.Fields{
			"tenant_id":  doc.TenantID().String(),
			"project_id": doc.ProjectID().String(),
			"error":      err.Error(),
		})
	}
}

var _ inbound.JobProcessor = (*DefaultJobProcessor)(nil)
