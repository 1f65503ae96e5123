package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
database:
  host: localhost
  port: 5432
  user: docindex
  password: secret
  name: docindex
  schema: docindex
worker:
  concurrency: 4
  queue_group: indexing-workers
  durable_name: indexing-worker
  job_timeout: 10m
  chunk_size: 1000
  chunk_overlap: 200
nats:
  url: nats://localhost:4222
  max_reconnects: 10
  reconnect_wait: 2s
qdrant:
  url: http://localhost:6333
  collection_prefix: company_
embedding:
  base_url: http://localhost:5001/v1
  model: all-MiniLM-L6-v2
  dimensions: 384
  batch_size: 100
  retention: 720h
storage:
  root: /var/lib/docindex/blobs
reconciler:
  enabled: true
  interval: 1h
  auto_cleanup: false
log:
  level: info
  format: json
`

func loadYAML(t *testing.T, content string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(content)))
	return v
}

func TestNew_ValidConfig(t *testing.T) {
	cfg := New(loadYAML(t, validYAML))

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "docindex", cfg.Database.Schema)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, 10*time.Minute, cfg.Worker.JobTimeout)
	assert.Equal(t, 1000, cfg.Worker.ChunkSize)
	assert.Equal(t, 200, cfg.Worker.ChunkOverlap)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, 2*time.Second, cfg.NATS.ReconnectWait)
	assert.Equal(t, "company_", cfg.Qdrant.CollectionPrefix)
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
	assert.Equal(t, 720*time.Hour, cfg.Embedding.Retention)
	assert.True(t, cfg.Reconciler.Enabled)
	assert.Equal(t, time.Hour, cfg.Reconciler.Interval)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "db", Port: 5432, User: "u", Password: "p", Name: "docindex", SSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=docindex sslmode=disable", d.DSN())
}

func TestValidate_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing database user", func(c *Config) { c.Database.User = "" }},
		{"missing database name", func(c *Config) { c.Database.Name = "" }},
		{"bad database port", func(c *Config) { c.Database.Port = 0 }},
		{"zero concurrency", func(c *Config) { c.Worker.Concurrency = 0 }},
		{"overlap not below chunk size", func(c *Config) { c.Worker.ChunkOverlap = c.Worker.ChunkSize }},
		{"missing embedding base url", func(c *Config) { c.Embedding.BaseURL = "" }},
		{"missing embedding model", func(c *Config) { c.Embedding.Model = "" }},
		{"zero embedding dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }},
		{"missing qdrant url", func(c *Config) { c.Qdrant.URL = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New(loadYAML(t, validYAML))
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNew_PanicsOnInvalidConfig(t *testing.T) {
	v := loadYAML(t, validYAML)
	v.Set("worker.concurrency", 0)
	assert.Panics(t, func() { New(v) })
}
