package cmd

import (
	"fmt"

	"docindex/internal/adapter/outbound/messaging"
	"docindex/internal/adapter/outbound/repository"
	"docindex/internal/application/common/slogger"
	"docindex/internal/application/service"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	retryTenantID  string
	retryFileID    string
	retryProjectID string
)

// retryCmd represents the retry command.
var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-enqueue indexing jobs for failed or stuck files",
}

var retryFileCmd = &cobra.Command{
	Use:   "file",
	Short: "Retry a single failed file",
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, err := uuid.Parse(retryTenantID)
		if err != nil {
			return fmt.Errorf("invalid tenant ID %q: %w", retryTenantID, err)
		}
		fileID, err := uuid.Parse(retryFileID)
		if err != nil {
			return fmt.Errorf("invalid file ID %q: %w", retryFileID, err)
		}
		return withRetryService(cmd, func(svc *service.RetryService) error {
			if err := svc.RetryFile(cmd.Context(), tenantID, fileID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued retry for file %s\n", fileID)
			return nil
		})
	},
}

var retryProjectCmd = &cobra.Command{
	Use:   "project",
	Short: "Retry every failed file in a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := uuid.Parse(retryProjectID)
		if err != nil {
			return fmt.Errorf("invalid project ID %q: %w", retryProjectID, err)
		}
		return withRetryService(cmd, func(svc *service.RetryService) error {
			result, err := svc.RetryFailedFiles(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		})
	},
}

var retryStuckCmd = &cobra.Command{
	Use:   "stuck",
	Short: "Force-retry files stuck in processing",
	Long: `Re-enqueue indexing jobs for files that have been in PROCESSING longer
than the configured stuck threshold, typically after a worker crash.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := uuid.Parse(retryProjectID)
		if err != nil {
			return fmt.Errorf("invalid project ID %q: %w", retryProjectID, err)
		}
		return withRetryService(cmd, func(svc *service.RetryService) error {
			result, err := svc.RetryStuckFiles(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		})
	},
}

func init() {
	retryFileCmd.Flags().StringVar(&retryTenantID, "tenant", "", "Tenant ID (required)")
	retryFileCmd.Flags().StringVar(&retryFileID, "file", "", "File ID (required)")
	_ = retryFileCmd.MarkFlagRequired("tenant")
	_ = retryFileCmd.MarkFlagRequired("file")

	retryProjectCmd.Flags().StringVar(&retryProjectID, "project", "", "Project ID (required)")
	_ = retryProjectCmd.MarkFlagRequired("project")

	retryStuckCmd.Flags().StringVar(&retryProjectID, "project", "", "Project ID (required)")
	_ = retryStuckCmd.MarkFlagRequired("project")

	retryCmd.AddCommand(retryFileCmd)
	retryCmd.AddCommand(retryProjectCmd)
	retryCmd.AddCommand(retryStuckCmd)
	rootCmd.AddCommand(retryCmd)
}

// withRetryService wires the database, publisher and retry service, runs fn,
// and tears the connections down.
func withRetryService(cmd *cobra.Command, fn func(*service.RetryService) error) error {
	cfg := GetConfig()
	slogger.Configure(cfg.Log.Level, cfg.Log.Format)

	pool, err := setupDatabaseConnection(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup database connection: %w", err)
	}
	defer pool.Close()

	publisher, err := messaging.NewNATSMessagePublisher(cfg.NATS)
	if err != nil {
		return fmt.Errorf("failed to create message publisher: %w", err)
	}
	if err := publisher.Connect(); err != nil {
		return fmt.Errorf("failed to connect message publisher: %w", err)
	}
	defer func() {
		if err := publisher.Disconnect(); err != nil {
			slogger.WarnNoCtx("Failed to disconnect publisher", slogger.Fields{"error": err.Error()})
		}
	}()
	if err := publisher.EnsureStream(); err != nil {
		return fmt.Errorf("failed to ensure stream: %w", err)
	}

	fileRepo := repository.NewPostgreSQLFileRepository(pool)
	svc := service.NewRetryService(fileRepo, publisher, cfg.Reconciler.StuckThreshold)
	return fn(svc)
}
