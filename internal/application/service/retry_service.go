package service

import (
	"context"
	"fmt"
	"time"

	"docindex/internal/application/common/slogger"
	"docindex/internal/domain/entity"
	domainerrors "docindex/internal/domain/errors/domain"
	"docindex/internal/domain/messaging"
	"docindex/internal/domain/valueobject"
	"docindex/internal/port/outbound"

	"github.com/google/uuid"
)

// Retry origins recorded on re-enqueued job messages.
const (
	RetryOriginManual = "manual"
	RetryOriginBulk   = "bulk"
	RetryOriginStuck  = "stuck"
)

// DefaultStuckThreshold is how long a file may sit in PROCESSING before a
// forced retry treats it as abandoned.
const DefaultStuckThreshold = 30 * time.Minute

// RetryResult summarizes one bulk retry run.
type RetryResult struct {
	Queued int               `json:"queued"`
	Errors map[string]string `json:"errors,omitempty"`
}

// RetryService re-enqueues indexing jobs for failed or stuck files. Retries
// move the file through RETRYING so its state machine records the attempt
// before the worker picks the job up.
type RetryService struct {
	fileRepo       outbound.FileRepository
	publisher      outbound.MessagePublisher
	stuckThreshold time.Duration
}

// NewRetryService creates a retry service. stuckThreshold bounds how long a
// PROCESSING file is tolerated before forced retry; zero selects the default.
func NewRetryService(fileRepo outbound.FileRepository, publisher outbound.MessagePublisher, stuckThreshold time.Duration) *RetryService {
	if stuckThreshold <= 0 {
		stuckThreshold = DefaultStuckThreshold
	}
	return &RetryService{
		fileRepo:       fileRepo,
		publisher:      publisher,
		stuckThreshold: stuckThreshold,
	}
}

// RetryFile re-enqueues the indexing job for one failed file.
func (s *RetryService) RetryFile(ctx context.Context, tenantID, fileID uuid.UUID) error {
	doc, err := s.fileRepo.FindByID(ctx, tenantID, fileID)
	if err != nil {
		return err
	}
	if doc.Status() == valueobject.FileStatusProcessing {
		return domainerrors.ErrFileProcessing
	}
	if doc.Status() != valueobject.FileStatusFailed {
		return fmt.Errorf("file %s is %s, only failed files can be retried", fileID, doc.Status())
	}
	return s.requeue(ctx, doc, RetryOriginManual)
}

// RetryFailedFiles re-enqueues one indexing job per FAILED file in the
// project. Individual enqueue errors are collected per file; they never
// abort the rest of the batch.
func (s *RetryService) RetryFailedFiles(ctx context.Context, projectID uuid.UUID) (*RetryResult, error) {
	failed, err := s.fileRepo.FindFailedByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("find failed files: %w", err)
	}

	result := &RetryResult{}
	for _, doc := range failed {
		if err := s.requeue(ctx, doc, RetryOriginBulk); err != nil {
			if result.Errors == nil {
				result.Errors = make(map[string]string)
			}
			result.Errors[doc.ID().String()] = err.Error()
			continue
		}
		result.Queued++
	}

	slogger.Info(ctx, "Bulk retry finished", slogger.Fields{
		"project_id": projectID.String(),
		"queued":     result.Queued,
		"errors":     len(result.Errors),
	})
	return result, nil
}

// RetryStuckFiles force-retries files stuck in PROCESSING beyond the
// threshold. A stuck file is treated as abandoned by a crashed worker, not
// as a failure.
func (s *RetryService) RetryStuckFiles(ctx context.Context, projectID uuid.UUID) (*RetryResult, error) {
	stuck, err := s.fileRepo.FindStuckProcessing(ctx, projectID, s.stuckThreshold)
	if err != nil {
		return nil, fmt.Errorf("find stuck files: %w", err)
	}

	result := &RetryResult{}
	for _, doc := range stuck {
		if err := s.requeue(ctx, doc, RetryOriginStuck); err != nil {
			if result.Errors == nil {
				result.Errors = make(map[string]string)
			}
			result.Errors[doc.ID().String()] = err.Error()
			continue
		}
		result.Queued++
	}
	return result, nil
}

// requeue transitions the file to RETRYING, persists it, then publishes a
// fresh job message. The status write happens first so a publish failure
// leaves the file visibly pending a retry rather than silently failed.
func (s *RetryService) requeue(ctx context.Context, doc *entity.Document, origin string) error {
	if err := doc.MarkRetrying(); err != nil {
		return fmt.Errorf("mark retrying: %w", err)
	}
	if err := s.fileRepo.Update(ctx, doc); err != nil {
		return fmt.Errorf("persist retrying status: %w", err)
	}

	msg := messaging.NewIndexingJobMessage(doc.TenantID(), doc.ID())
	msg.RetryOrigin = origin
	if err := s.publisher.PublishIndexingJob(ctx, msg); err != nil {
		return fmt.Errorf("publish retry job: %w", err)
	}

	slogger.Info(ctx, "File queued for retry", slogger.Fields{
		"tenant_id": doc.TenantID().String(),
		"file_id":   doc.ID().String(),
		"origin":    origin,
	})
	return nil
}
