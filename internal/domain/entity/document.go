package entity

import (
	"time"

	"docindex/internal/domain/valueobject"

	"github.com/google/uuid"
)

// Document represents an uploaded file and its indexing state. It is the
// authoritative per-file record in the metadata store; only the indexing
// job processor mutates its processing fields.
type Document struct {
	id           uuid.UUID
	tenantID     uuid.UUID
	projectID    uuid.UUID
	name         string
	mimeType     string
	sizeBytes    int64
	status       valueobject.FileStatus
	chunkCount   int
	errorMessage *string
	uploadedAt   time.Time
	startedAt    *time.Time
	completedAt  *time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

// NewDocument creates a new Document entity in PENDING status.
func NewDocument(tenantID, projectID uuid.UUID, name, mimeType string, sizeBytes int64) *Document {
	now := time.Now()
	return &Document{
		id:         uuid.New(),
		tenantID:   tenantID,
		projectID:  projectID,
		name:       name,
		mimeType:   mimeType,
		sizeBytes:  sizeBytes,
		status:     valueobject.FileStatusPending,
		uploadedAt: now,
		updatedAt:  now,
	}
}

// RestoreDocument creates a Document entity from stored data.
func RestoreDocument(
	id uuid.UUID,
	tenantID uuid.UUID,
	projectID uuid.UUID,
	name string,
	mimeType string,
	sizeBytes int64,
	status valueobject.FileStatus,
	chunkCount int,
	errorMessage *string,
	uploadedAt time.Time,
	startedAt *time.Time,
	completedAt *time.Time,
	updatedAt time.Time,
	deletedAt *time.Time,
) *Document {
	return &Document{
		id:           id,
		tenantID:     tenantID,
		projectID:    projectID,
		name:         name,
		mimeType:     mimeType,
		sizeBytes:    sizeBytes,
		status:       status,
		chunkCount:   chunkCount,
		errorMessage: errorMessage,
		uploadedAt:   uploadedAt,
		startedAt:    startedAt,
		completedAt:  completedAt,
		updatedAt:    updatedAt,
		deletedAt:    deletedAt,
	}
}

// ID returns the file ID.
func (d *Document) ID() uuid.UUID {
	return d.id
}

// TenantID returns the owning tenant ID.
func (d *Document) TenantID() uuid.UUID {
	return d.tenantID
}

// ProjectID returns the owning project ID.
func (d *Document) ProjectID() uuid.UUID {
	return d.projectID
}

// Name returns the file name.
func (d *Document) Name() string {
	return d.name
}

// MimeType returns the file MIME type.
func (d *Document) MimeType() string {
	return d.mimeType
}

// SizeBytes returns the stored file size.
func (d *Document) SizeBytes() int64 {
	return d.sizeBytes
}

// Status returns the current processing status.
func (d *Document) Status() valueobject.FileStatus {
	return d.status
}

// ChunkCount returns the number of chunks created by the last successful run.
func (d *Document) ChunkCount() int {
	return d.chunkCount
}

// ErrorMessage returns the failure cause from the last failed run, if any.
func (d *Document) ErrorMessage() *string {
	return d.errorMessage
}

// UploadedAt returns the upload timestamp.
func (d *Document) UploadedAt() time.Time {
	return d.uploadedAt
}

// StartedAt returns the timestamp processing last started.
func (d *Document) StartedAt() *time.Time {
	return d.startedAt
}

// CompletedAt returns the timestamp processing last completed.
func (d *Document) CompletedAt() *time.Time {
	return d.completedAt
}

// UpdatedAt returns the last update timestamp.
func (d *Document) UpdatedAt() time.Time {
	return d.updatedAt
}

// DeletedAt returns the soft-delete timestamp.
func (d *Document) DeletedAt() *time.Time {
	return d.deletedAt
}

// IsDeleted returns true if the document has been soft-deleted.
func (d *Document) IsDeleted() bool {
	return d.deletedAt != nil
}

// StartProcessing marks the document as PROCESSING and records the start time.
func (d *Document) StartProcessing() error {
	if err := d.transition(valueobject.FileStatusProcessing); err != nil {
		return err
	}
	now := time.Now()
	d.startedAt = &now
	d.completedAt = nil
	d.errorMessage = nil
	return nil
}

// Complete marks the document as COMPLETED with the final chunk count.
func (d *Document) Complete(chunkCount int) error {
	if err := d.transition(valueobject.FileStatusCompleted); err != nil {
		return err
	}
	now := time.Now()
	d.completedAt = &now
	d.chunkCount = chunkCount
	d.errorMessage = nil
	return nil
}

// Fail marks the document as FAILED and preserves the failure cause
// for operator visibility.
func (d *Document) Fail(cause string) error {
	if err := d.transition(valueobject.FileStatusFailed); err != nil {
		return err
	}
	now := time.Now()
	d.completedAt = &now
	d.errorMessage = &cause
	return nil
}

// MarkRetrying moves a failed or stuck document into RETRYING ahead
// of a re-enqueued indexing job.
func (d *Document) MarkRetrying() error {
	return d.transition(valueobject.FileStatusRetrying)
}

// SoftDelete marks the document as logically deleted.
func (d *Document) SoftDelete() {
	now := time.Now()
	d.deletedAt = &now
	d.updatedAt = now
}

func (d *Document) transition(target valueobject.FileStatus) error {
	if !d.status.CanTransitionTo(target) {
		return &InvalidStatusTransitionError{From: d.status, To: target}
	}
	d.status = target
	d.updatedAt = time.Now()
	return nil
}

// InvalidStatusTransitionError indicates an attempted illegal status change.
type InvalidStatusTransitionError struct {
	From valueobject.FileStatus
	To   valueobject.FileStatus
}

func (e *InvalidStatusTransitionError) Error() string {
	return "invalid file status transition from " + e.From.String() + " to " + e.To.String()
}
