// Package inbound defines the inbound ports (interfaces) driving the core.
package inbound

import (
	"context"
	"time"

	"docindex/internal/domain/messaging"
)

// JobProcessor consumes indexing job messages. ProcessJob must be safe under
// redelivery of the same message: re-running a job for a file first removes
// any partially written vector-index entries for that file.
type JobProcessor interface {
	// ProcessJob runs the full indexing pipeline for one file.
	ProcessJob(ctx context.Context, msg messaging.IndexingJobMessage) error

	// GetMetrics returns cumulative processing counters.
	GetMetrics() JobProcessorMetrics
}

// JobProcessorMetrics holds cumulative job processing counters.
type JobProcessorMetrics struct {
	JobsProcessed int64
	JobsFailed    int64
	ChunksIndexed int64
	LastJobTime   time.Time
}

// Consumer is the message-queue consumer driving a JobProcessor.
type Consumer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health() ConsumerHealthStatus
}

// ConsumerHealthStatus reports consumer liveness and error counts.
type ConsumerHealthStatus struct {
	Subject         string    `json:"subject"`
	QueueGroup      string    `json:"queue_group"`
	IsRunning       bool      `json:"is_running"`
	IsConnected     bool      `json:"is_connected"`
	MessagesHandled int64     `json:"messages_handled"`
	ErrorCount      int64     `json:"error_count"`
	LastError       string    `json:"last_error,omitempty"`
	LastMessageTime time.Time `json:"last_message_time"`
}
