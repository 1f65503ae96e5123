package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"docindex/internal/adapter/outbound/qdrant"
	"docindex/internal/adapter/outbound/repository"
	"docindex/internal/application/common/slogger"
	"docindex/internal/application/service"
	"docindex/internal/config"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var reconcileTenantID string

// reconcileCmd represents the reconcile command.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Check and repair consistency between the database and the vector index",
}

var reconcileCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report discrepancies without modifying anything",
	Long: `Compare per-file chunk counts between the metadata store and the vector
index and report mismatches and orphaned vectors. With --tenant a single
tenant is checked; otherwise every known tenant is checked. Output is JSON,
one report per tenant.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReconcile(cmd, false)
	},
}

var reconcileCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete orphaned vectors from the vector index",
	Long: `Delete vector-index entries whose owning file no longer exists in the
metadata store. With --tenant a single tenant is cleaned; otherwise every
known tenant is cleaned. Output is JSON, one result per tenant.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReconcile(cmd, true)
	},
}

func init() {
	reconcileCmd.PersistentFlags().StringVar(&reconcileTenantID, "tenant", "", "Tenant ID (all tenants when omitted)")
	reconcileCmd.AddCommand(reconcileCheckCmd)
	reconcileCmd.AddCommand(reconcileCleanupCmd)
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, cleanup bool) error {
	cfg := GetConfig()
	slogger.Configure(cfg.Log.Level, cfg.Log.Format)
	ctx := cmd.Context()

	pool, err := setupDatabaseConnection(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup database connection: %w", err)
	}
	defer pool.Close()

	consistency, err := newConsistencyService(cfg, pool)
	if err != nil {
		return err
	}

	if reconcileTenantID != "" {
		tenantID, err := uuid.Parse(reconcileTenantID)
		if err != nil {
			return fmt.Errorf("invalid tenant ID %q: %w", reconcileTenantID, err)
		}
		if cleanup {
			result, err := consistency.CleanupOrphanedVectors(ctx, tenantID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		}
		report, err := consistency.CheckTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), report)
	}

	if cleanup {
		results, err := consistency.CleanupAllTenants(ctx)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), results)
	}
	reports, err := consistency.CheckAllTenants(ctx)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), reports)
}

func newConsistencyService(cfg *config.Config, pool *pgxpool.Pool) (*service.ConsistencyService, error) {
	vectorIndex, err := qdrant.NewClient(qdrant.Config{
		BaseURL:          cfg.Qdrant.URL,
		APIKey:           cfg.Qdrant.APIKey,
		CollectionPrefix: cfg.Qdrant.CollectionPrefix,
		Timeout:          cfg.Qdrant.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vector index client: %w", err)
	}

	return service.NewConsistencyService(
		repository.NewPostgreSQLFileRepository(pool),
		repository.NewPostgreSQLEmbeddingRepository(pool),
		repository.NewPostgreSQLTenantRepository(pool),
		vectorIndex,
		cfg.Reconciler.TenantParallelism,
	), nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
