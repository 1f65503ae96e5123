package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	inboundmessaging "docindex/internal/adapter/inbound/messaging"
	"docindex/internal/adapter/outbound/embedder"
	outboundmessaging "docindex/internal/adapter/outbound/messaging"
	"docindex/internal/adapter/outbound/projectstats"
	"docindex/internal/adapter/outbound/qdrant"
	"docindex/internal/adapter/outbound/repository"
	"docindex/internal/adapter/outbound/textextract"
	"docindex/internal/application/common/retry"
	"docindex/internal/application/common/slogger"
	"docindex/internal/application/service"
	"docindex/internal/application/worker"
	"docindex/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the indexing worker service",
	Long: `Start the worker service that consumes indexing jobs from NATS JetStream,
extracts and chunks document text, generates embeddings, and writes them to
the tenant's vector collection. The worker also runs the periodic
reconciliation scheduler when enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkerService(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorkerService(ctx context.Context) error {
	cfg := GetConfig()
	slogger.Configure(cfg.Log.Level, cfg.Log.Format)

	slogger.Info(ctx, "Starting indexing worker service", slogger.Fields{
		"concurrency":  cfg.Worker.Concurrency,
		"queue_group":  cfg.Worker.QueueGroup,
		"durable_name": cfg.Worker.DurableName,
	})

	pool, err := setupDatabaseConnection(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup database connection: %w", err)
	}
	defer pool.Close()

	consumer, publisher, scheduler, err := createWorkerService(ctx, cfg, pool)
	if err != nil {
		return fmt.Errorf("failed to create worker service: %w", err)
	}

	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	if scheduler != nil {
		scheduler.Start(ctx)
	}

	slogger.Info(ctx, "Worker service started successfully", slogger.Fields{
		"subject": outboundmessaging.SubjectIndexingJob,
	})

	waitForShutdown(ctx, consumer, publisher, scheduler)
	return nil
}

func setupDatabaseConnection(cfg *config.Config) (*pgxpool.Pool, error) {
	dbConfig := repository.DatabaseConfig{
		Host:           cfg.Database.Host,
		Port:           cfg.Database.Port,
		Database:       cfg.Database.Name,
		Username:       cfg.Database.User,
		Password:       cfg.Database.Password,
		Schema:         cfg.Database.Schema,
		SSLMode:        cfg.Database.SSLMode,
		MaxConnections: cfg.Database.MaxConnections,
		MinConnections: cfg.Database.MaxIdleConnections,
	}
	return repository.NewDatabaseConnection(dbConfig)
}

// createWorkerService wires the adapters into the consumer, the publisher
// used for retries, and the reconciliation scheduler (nil when disabled).
func createWorkerService(
	ctx context.Context,
	cfg *config.Config,
	pool *pgxpool.Pool,
) (*inboundmessaging.NATSConsumer, *outboundmessaging.NATSMessagePublisher, *service.ReconciliationScheduler, error) {
	fileRepo := repository.NewPostgreSQLFileRepository(pool)
	embeddingRepo := repository.NewPostgreSQLEmbeddingRepository(pool)
	tenantRepo := repository.NewPostgreSQLTenantRepository(pool)

	vectorIndex, err := qdrant.NewClient(qdrant.Config{
		BaseURL:          cfg.Qdrant.URL,
		APIKey:           cfg.Qdrant.APIKey,
		CollectionPrefix: cfg.Qdrant.CollectionPrefix,
		Timeout:          cfg.Qdrant.Timeout,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create vector index client: %w", err)
	}
	if err := vectorIndex.Healthz(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("vector index is unreachable: %w", err)
	}

	provider, err := embedder.NewClient(embedder.Config{
		BaseURL:           cfg.Embedding.BaseURL,
		APIKey:            cfg.Embedding.APIKey,
		Provider:          cfg.Embedding.Provider,
		Model:             cfg.Embedding.Model,
		Dimensions:        cfg.Embedding.Dimensions,
		Timeout:           cfg.Embedding.Timeout,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	embeddingService := embedder.NewBatcher(provider, cfg.Embedding.BatchSize, &retry.Config{
		MaxRetries:    cfg.Embedding.MaxRetries,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	})

	textExtractor, err := textextract.NewFilesystemExtractor(cfg.Storage.Root)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create text extractor: %w", err)
	}

	statsNotifier := projectstats.NewPostgreSQLNotifier(pool)

	processor := worker.NewDefaultJobProcessor(
		worker.JobProcessorConfig{
			MaxConcurrentJobs:  cfg.Worker.Concurrency,
			JobTimeout:         cfg.Worker.JobTimeout,
			ChunkSize:          cfg.Worker.ChunkSize,
			ChunkOverlap:       cfg.Worker.ChunkOverlap,
			EmbeddingRetention: cfg.Embedding.Retention,
		},
		fileRepo,
		embeddingRepo,
		vectorIndex,
		embeddingService,
		textExtractor,
		statsNotifier,
	)

	publisher, err := outboundmessaging.NewNATSMessagePublisher(cfg.NATS)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create message publisher: %w", err)
	}
	if err := publisher.Connect(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect message publisher: %w", err)
	}
	if err := publisher.EnsureStream(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	consumer, err := inboundmessaging.NewNATSConsumer(
		inboundmessaging.ConsumerConfig{
			Subject:       outboundmessaging.SubjectIndexingJob,
			QueueGroup:    cfg.Worker.QueueGroup,
			DurableName:   cfg.Worker.DurableName,
			AckWait:       cfg.Worker.AckWait,
			MaxDeliver:    cfg.Worker.MaxDeliver,
			MaxAckPending: cfg.Worker.Concurrency * 2,
		},
		cfg.NATS,
		processor,
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	var scheduler *service.ReconciliationScheduler
	if cfg.Reconciler.Enabled {
		consistency := service.NewConsistencyService(
			fileRepo,
			embeddingRepo,
			tenantRepo,
			vectorIndex,
			cfg.Reconciler.TenantParallelism,
		)
		scheduler = service.NewReconciliationScheduler(service.ReconciliationSchedulerConfig{
			Interval:    cfg.Reconciler.Interval,
			AutoCleanup: cfg.Reconciler.AutoCleanup,
		}, consistency)
	}

	return consumer, publisher, scheduler, nil
}

// waitForShutdown blocks until an interrupt arrives, then stops the
// consumer, scheduler and publisher in order.
func waitForShutdown(
	ctx context.Context,
	consumer *inboundmessaging.NATSConsumer,
	publisher *outboundmessaging.NATSMessagePublisher,
	scheduler *service.ReconciliationScheduler,
) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slogger.Info(ctx, "Received shutdown signal", slogger.Fields{"signal": sig.String()})
	case <-ctx.Done():
		slogger.InfoNoCtx("Context cancelled, shutting down", nil)
	}

	if scheduler != nil {
		scheduler.Stop()
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := consumer.Stop(stopCtx); err != nil {
		slogger.ErrorNoCtx("Failed to stop consumer cleanly", slogger.Fields{"error": err.Error()})
	}

	if err := publisher.Disconnect(); err != nil {
		slogger.ErrorNoCtx("Failed to disconnect publisher", slogger.Fields{"error": err.Error()})
	}

	slogger.InfoNoCtx("Worker service stopped", nil)
}
