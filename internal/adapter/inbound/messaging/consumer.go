// Package messaging provides the NATS JetStream consumer feeding the
// indexing job processor.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"docindex/internal/application/common/slogger"
	"docindex/internal/config"
	"docindex/internal/domain/messaging"
	"docindex/internal/port/inbound"
	"docindex/internal/port/outbound"

	"github.com/nats-io/nats.go"
)

const natsConnectionTimeout = 5 * time.Second

// ConsumerConfig holds configuration for the indexing job consumer.
type ConsumerConfig struct {
	Subject       string
	QueueGroup    string
	DurableName   string
	AckWait       time.Duration
	MaxDeliver    int
	MaxAckPending int
}

func validateConsumerConfig(cfg ConsumerConfig) error {
	if cfg.Subject == "" {
		return errors.New("subject cannot be empty")
	}
	if cfg.QueueGroup == "" {
		return errors.New("queue group cannot be empty")
	}
	if cfg.DurableName == "" {
		return errors.New("durable name cannot be empty")
	}
	if cfg.AckWait <= 0 {
		return errors.New("ack wait duration must be positive")
	}
	if cfg.MaxDeliver <= 0 {
		return errors.New("max deliver count must be positive")
	}
	if cfg.MaxAckPending <= 0 {
		return errors.New("max ack pending must be positive")
	}
	return nil
}

// NATSConsumer subscribes to the indexing job subject with a durable queue
// group and drives the job processor. Failed jobs are Nak'd so JetStream
// redelivers them up to MaxDeliver times; non-retryable failures are Term'd.
type NATSConsumer struct {
	config       ConsumerConfig
	natsConfig   config.NATSConfig
	jobProcessor inbound.JobProcessor

	mu      sync.RWMutex
	conn    *nats.Conn
	sub     *nats.Subscription
	running bool
	health  inbound.ConsumerHealthStatus
}

// NewNATSConsumer creates a consumer after validating its configuration.
func NewNATSConsumer(
	cfg ConsumerConfig,
	natsConfig config.NATSConfig,
	processor inbound.JobProcessor,
) (*NATSConsumer, error) {
	if err := validateConsumerConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid consumer configuration: %w", err)
	}
	if processor == nil {
		return nil, errors.New("job processor cannot be nil")
	}

	return &NATSConsumer{
		config:       cfg,
		natsConfig:   natsConfig,
		jobProcessor: processor,
		health: inbound.ConsumerHealthStatus{
			Subject:    cfg.Subject,
			QueueGroup: cfg.QueueGroup,
		},
	}, nil
}

// Start connects to NATS and begins consuming. It returns once the
// subscription is established; message handling runs on NATS callbacks.
func (n *NATSConsumer) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return fmt.Errorf("consumer already running for subject %s", n.config.Subject)
	}

	conn, err := nats.Connect(n.natsConfig.URL,
		nats.MaxReconnects(n.natsConfig.MaxReconnects),
		nats.ReconnectWait(n.natsConfig.ReconnectWait),
		nats.Timeout(natsConnectionTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	sub, err := js.QueueSubscribe(
		n.config.Subject,
		n.config.QueueGroup,
		n.handleMessage,
		nats.Durable(n.config.DurableName),
		nats.ManualAck(),
		nats.AckWait(n.config.AckWait),
		nats.MaxDeliver(n.config.MaxDeliver),
		nats.MaxAckPending(n.config.MaxAckPending),
	)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	n.conn = conn
	n.sub = sub
	n.running = true
	n.health.IsRunning = true
	n.health.IsConnected = true

	slogger.Info(ctx, "Indexing job consumer started", slogger.Fields{
		"subject":     n.config.Subject,
		"queue_group": n.config.QueueGroup,
		"durable":     n.config.DurableName,
	})
	return nil
}

// Stop drains the subscription and closes the connection. Stopping a stopped
// consumer is a no-op.
func (n *NATSConsumer) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running {
		return nil
	}

	if n.sub != nil {
		if err := n.sub.Drain(); err != nil {
			slogger.Warn(ctx, "Failed to drain subscription", slogger.Fields{"error": err.Error()})
		}
		n.sub = nil
	}
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}

	n.running = false
	n.health.IsRunning = false
	n.health.IsConnected = false

	slogger.Info(ctx, "Indexing job consumer stopped", slogger.Fields{
		"subject": n.config.Subject,
	})
	return nil
}

// Health returns the consumer's current health status.
func (n *NATSConsumer) Health() inbound.ConsumerHealthStatus {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.health
}

func (n *NATSConsumer) handleMessage(msg *nats.Msg) {
	ctx := context.Background()

	jobMessage, err := decodeJobMessage(msg.Data)
	if err != nil {
		n.recordError(err)
		slogger.ErrorWithError(ctx, err, "Dropping malformed job message", nil)
		// Malformed payloads never become valid; terminate redelivery.
		n.terminate(msg)
		return
	}

	if err := n.jobProcessor.ProcessJob(ctx, jobMessage); err != nil {
		n.recordError(err)
		if isRetryable(err) {
			if nakErr := msg.Nak(); nakErr != nil {
				slogger.Warn(ctx, "Failed to NAK message", slogger.Fields{"error": nakErr.Error()})
			}
		} else {
			n.terminate(msg)
		}
		return
	}

	if err := msg.Ack(); err != nil {
		n.recordError(err)
		slogger.Warn(ctx, "Failed to ACK message", slogger.Fields{"error": err.Error()})
		return
	}
	n.recordHandled()
}

func (n *NATSConsumer) terminate(msg *nats.Msg) {
	if err := msg.Term(); err != nil {
		slogger.WarnNoCtx("Failed to terminate message", slogger.Fields{"error": err.Error()})
	}
}

func (n *NATSConsumer) recordHandled() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.health.MessagesHandled++
	n.health.LastMessageTime = time.Now()
}

func (n *NATSConsumer) recordError(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.health.ErrorCount++
	n.health.LastError = err.Error()
}

func decodeJobMessage(data []byte) (messaging.IndexingJobMessage, error) {
	var jobMessage messaging.IndexingJobMessage
	if err := json.Unmarshal(data, &jobMessage); err != nil {
		return jobMessage, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if err := jobMessage.Validate(); err != nil {
		return jobMessage, fmt.Errorf("message validation failed: %w", err)
	}
	return jobMessage, nil
}

// isRetryable decides whether a failed job should be redelivered. External
// service errors carry an explicit retryable flag; everything else is
// retried so transient store failures heal on redelivery.
func isRetryable(err error) bool {
	var serviceErr *outbound.ExternalServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Retryable
	}
	return true
}

var _ inbound.Consumer = (*NATSConsumer)(nil)
