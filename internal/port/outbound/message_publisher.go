package outbound

import (
	"context"

	"docindex/internal/domain/messaging"
)

// MessagePublisher is the outbound port for enqueueing indexing jobs on the
// durable job queue. Delivery is at least once; the message's event id is the
// broker-side deduplication key.
type MessagePublisher interface {
	// PublishIndexingJob enqueues one indexing job.
	PublishIndexingJob(ctx context.Context, msg messaging.IndexingJobMessage) error
}

// MessagePublisherHealthStatus reports the publisher's connection health.
type MessagePublisherHealthStatus struct {
	Connected        bool   `json:"connected"`
	JetStreamEnabled bool   `json:"jetstream_enabled"`
	Uptime           string `json:"uptime"`
	Reconnects       int    `json:"reconnects"`
	LastError        string `json:"last_error,omitempty"`
}
