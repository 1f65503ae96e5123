// Package messaging provides domain types for indexing job messages
// delivered through the job queue.
package messaging

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// IndexingJobMessage is the payload of one indexing job. EventID doubles as
// the broker-side deduplication key; the queue delivers at least once, so
// consumers must treat redelivery of the same EventID as routine.
type IndexingJobMessage struct {
	EventID     string    `json:"event_id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	FileID      uuid.UUID `json:"file_id"`
	Timestamp   time.Time `json:"timestamp"`
	RetryOrigin string    `json:"retry_origin,omitempty"`
}

// NewIndexingJobMessage creates a job message with a fresh event ID.
func NewIndexingJobMessage(tenantID, fileID uuid.UUID) IndexingJobMessage {
	return IndexingJobMessage{
		EventID:   uuid.New().String(),
		TenantID:  tenantID,
		FileID:    fileID,
		Timestamp: time.Now(),
	}
}

// Validate checks the message carries everything a worker needs.
func (m IndexingJobMessage) Validate() error {
	if m.EventID == "" {
		return errors.New("event_id is required")
	}
	if m.TenantID == uuid.Nil {
		return errors.New("tenant_id cannot be nil")
	}
	if m.FileID == uuid.Nil {
		return errors.New("file_id cannot be nil")
	}
	return nil
}

// DedupKey returns the single-flight key for this message. Two jobs with the
// same key must never process concurrently.
func (m IndexingJobMessage) DedupKey() string {
	return m.TenantID.String() + "/" + m.FileID.String()
}
