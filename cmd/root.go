// Package cmd provides the command-line interface for the docindex service.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"docindex/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "docindex",
	Short: "Multi-tenant document indexing and reconciliation service",
	Long: `Docindex indexes uploaded documents for semantic search and keeps the
metadata store and the vector index consistent.

The service supports:
- Asynchronous file indexing via NATS JetStream work queues
- Text chunking with sentence-boundary aware overlap
- Embedding generation through an OpenAI-compatible provider
- Tenant-partitioned vector storage in Qdrant
- Consistency reconciliation and orphaned-vector cleanup`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format (json, text)")

	if err := viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-level flag: %v\n", err)
	}
	if err := viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-format flag: %v\n", err)
	}
}

func initConfig() {
	v := viper.New()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DOCINDEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
		// Config file not found; use defaults and environment.
	}

	cfg = config.New(v)
}

func setDefaults(v *viper.Viper) {
	// Worker defaults
	v.SetDefault("worker.concurrency", 5)
	v.SetDefault("worker.queue_group", "indexing-workers")
	v.SetDefault("worker.durable_name", "indexing-worker")
	v.SetDefault("worker.job_timeout", "10m")
	v.SetDefault("worker.ack_wait", "30s")
	v.SetDefault("worker.max_deliver", 5)
	v.SetDefault("worker.chunk_size", 1000)
	v.SetDefault("worker.chunk_overlap", 200)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "docindex")
	v.SetDefault("database.schema", "docindex")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.max_idle_connections", 5)

	// NATS defaults
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", 5)
	v.SetDefault("nats.reconnect_wait", "2s")

	// Qdrant defaults
	v.SetDefault("qdrant.url", "http://localhost:6333")
	v.SetDefault("qdrant.collection_prefix", "company_")
	v.SetDefault("qdrant.timeout", "15s")

	// Embedding defaults
	v.SetDefault("embedding.base_url", "http://localhost:5001/v1")
	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "all-MiniLM-L6-v2")
	v.SetDefault("embedding.dimensions", 384)
	v.SetDefault("embedding.batch_size", 100)
	v.SetDefault("embedding.timeout", "30s")
	v.SetDefault("embedding.requests_per_second", 2.0)
	v.SetDefault("embedding.max_retries", 3)
	v.SetDefault("embedding.retention", "720h")

	// Storage defaults
	v.SetDefault("storage.root", "/var/lib/docindex/blobs")

	// Reconciler defaults
	v.SetDefault("reconciler.enabled", true)
	v.SetDefault("reconciler.interval", "1h")
	v.SetDefault("reconciler.auto_cleanup", false)
	v.SetDefault("reconciler.tenant_parallelism", 4)
	v.SetDefault("reconciler.stuck_threshold", "30m")

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return cfg
}
