// Package messaging provides the NATS JetStream publisher for indexing jobs.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"docindex/internal/config"
	"docindex/internal/domain/messaging"
	"docindex/internal/port/outbound"

	"github.com/nats-io/nats.go"
)

const (
	natsConnectionTimeout = 5 * time.Second

	// StreamName is the JetStream work-queue stream carrying indexing jobs.
	StreamName = "INDEXING"

	// SubjectIndexingJob is the subject indexing jobs are published on.
	SubjectIndexingJob = "indexing.job"

	streamSubjects = "indexing.>"
	streamMaxAge   = 24 * time.Hour
)

// NATSMessagePublisher publishes indexing job messages to NATS JetStream.
// The message's event id doubles as the JetStream Nats-Msg-Id, so the broker
// deduplicates double publishes of the same event within its dedup window.
type NATSMessagePublisher struct {
	config config.NATSConfig

	mu             sync.RWMutex
	conn           *nats.Conn
	js             nats.JetStreamContext
	connectedAt    time.Time
	reconnectCount int
	lastError      error
}

// NewNATSMessagePublisher creates a publisher from validated configuration.
func NewNATSMessagePublisher(cfg config.NATSConfig) (*NATSMessagePublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("NATS URL cannot be empty")
	}
	if !strings.HasPrefix(cfg.URL, "nats://") {
		return nil, errors.New("invalid NATS URL scheme")
	}
	if cfg.MaxReconnects < 0 {
		return nil, errors.New("max reconnects cannot be negative")
	}
	if cfg.ReconnectWait < 0 {
		return nil, errors.New("reconnect wait cannot be negative")
	}

	return &NATSMessagePublisher{config: cfg}, nil
}

// Connect establishes the NATS connection and JetStream context.
func (n *NATSMessagePublisher) Connect() error {
	opts := []nats.Option{
		nats.MaxReconnects(n.config.MaxReconnects),
		nats.ReconnectWait(n.config.ReconnectWait),
		nats.Timeout(natsConnectionTimeout),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			n.mu.Lock()
			n.reconnectCount++
			n.lastError = nil
			n.mu.Unlock()
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			n.mu.Lock()
			n.lastError = err
			n.mu.Unlock()
		}),
	}

	conn, err := nats.Connect(n.config.URL, opts...)
	if err != nil {
		n.mu.Lock()
		n.lastError = err
		n.mu.Unlock()
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	n.mu.Lock()
	n.conn = conn
	n.js = js
	n.connectedAt = time.Now()
	n.mu.Unlock()
	return nil
}

// Disconnect closes the NATS connection.
func (n *NATSMessagePublisher) Disconnect() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
		n.js = nil
	}
	return nil
}

// EnsureStream creates the indexing work-queue stream if it does not exist.
func (n *NATSMessagePublisher) EnsureStream() error {
	n.mu.RLock()
	js := n.js
	n.mu.RUnlock()
	if js == nil {
		return errors.New("not connected to NATS server")
	}

	streamConfig := &nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{streamSubjects},
		Storage:   nats.FileStorage,
		Retention: nats.WorkQueuePolicy,
		MaxAge:    streamMaxAge,
		Replicas:  1,
	}

	if _, err := js.AddStream(streamConfig); err != nil {
		if _, infoErr := js.StreamInfo(StreamName); infoErr == nil {
			return nil
		}
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// PublishIndexingJob enqueues one indexing job on the work-queue stream.
func (n *NATSMessagePublisher) PublishIndexingJob(ctx context.Context, msg messaging.IndexingJobMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	n.mu.RLock()
	js := n.js
	n.mu.RUnlock()
	if js == nil {
		return errors.New("not connected to NATS server")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	_, err = js.Publish(SubjectIndexingJob, data,
		nats.Context(ctx),
		nats.MsgId(msg.EventID),
	)
	if err != nil {
		n.mu.Lock()
		n.lastError = err
		n.mu.Unlock()
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// GetConnectionHealth returns the publisher's connection health.
func (n *NATSMessagePublisher) GetConnectionHealth() outbound.MessagePublisherHealthStatus {
	n.mu.RLock()
	defer n.mu.RUnlock()

	status := outbound.MessagePublisherHealthStatus{
		Connected:        n.conn != nil && n.conn.IsConnected(),
		JetStreamEnabled: n.js != nil,
		Reconnects:       n.reconnectCount,
	}
	if !n.connectedAt.IsZero() {
		status.Uptime = time.Since(n.connectedAt).String()
	}
	if n.lastError != nil {
		status.LastError = n.lastError.Error()
	}
	return status
}

var _ outbound.MessagePublisher = (*NATSMessagePublisher)(nil)
