// Package config loads and validates application configuration.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration.
type Config struct {
	Worker     WorkerConfig     `mapstructure:"worker"`
	Database   DatabaseConfig   `mapstructure:"database"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Qdrant     QdrantConfig     `mapstructure:"qdrant"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
	Log        LogConfig        `mapstructure:"log"`
}

// WorkerConfig holds indexing worker configuration.
type WorkerConfig struct {
	Concurrency  int           `mapstructure:"concurrency"`
	QueueGroup   string        `mapstructure:"queue_group"`
	DurableName  string        `mapstructure:"durable_name"`
	JobTimeout   time.Duration `mapstructure:"job_timeout"`
	AckWait      time.Duration `mapstructure:"ack_wait"`
	MaxDeliver   int           `mapstructure:"max_deliver"`
	ChunkSize    int           `mapstructure:"chunk_size"`
	ChunkOverlap int           `mapstructure:"chunk_overlap"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	Name               string `mapstructure:"name"`
	Schema             string `mapstructure:"schema"`
	SSLMode            string `mapstructure:"sslmode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections"`
}

// DSN returns the database connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// QdrantConfig holds vector index configuration.
type QdrantConfig struct {
	URL              string        `mapstructure:"url"`
	APIKey           string        `mapstructure:"api_key"`
	CollectionPrefix string        `mapstructure:"collection_prefix"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Provider          string        `mapstructure:"provider"`
	Model             string        `mapstructure:"model"`
	Dimensions        int           `mapstructure:"dimensions"`
	BatchSize         int           `mapstructure:"batch_size"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxRetries        int           `mapstructure:"max_retries"`
	Retention         time.Duration `mapstructure:"retention"`
}

// StorageConfig holds blob storage configuration.
type StorageConfig struct {
	Root string `mapstructure:"root"`
}

// ReconcilerConfig holds the reconciliation scheduler configuration.
type ReconcilerConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Interval          time.Duration `mapstructure:"interval"`
	AutoCleanup       bool          `mapstructure:"auto_cleanup"`
	TenantParallelism int           `mapstructure:"tenant_parallelism"`
	StuckThreshold    time.Duration `mapstructure:"stuck_threshold"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// New creates a new Config instance from Viper.
func New(v *viper.Viper) *Config {
	var config Config

	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}

	if err := config.Validate(); err != nil {
		panic(fmt.Errorf("invalid configuration: %w", err))
	}

	return &config
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.Name == "" {
		return errors.New("database.name is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return errors.New("database.port must be between 1 and 65535")
	}

	if c.Worker.Concurrency < 1 {
		return errors.New("worker.concurrency must be at least 1")
	}
	if c.Worker.ChunkSize > 0 && c.Worker.ChunkOverlap >= c.Worker.ChunkSize {
		return errors.New("worker.chunk_overlap must be smaller than worker.chunk_size")
	}

	if c.Embedding.BaseURL == "" {
		return errors.New("embedding.base_url is required")
	}
	if c.Embedding.Model == "" {
		return errors.New("embedding.model is required")
	}
	if c.Embedding.Dimensions < 1 {
		return errors.New("embedding.dimensions must be positive")
	}

	if c.Qdrant.URL == "" {
		return errors.New("qdrant.url is required")
	}

	return nil
}
