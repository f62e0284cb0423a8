package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, "memory", cfg.Directory)
	assert.Equal(t, "none", cfg.Events)
	assert.Equal(t, 8, cfg.BatchConcurrency)
	assert.Equal(t, 3, cfg.RepairAttempts)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.NeedsRedis())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LEDGER_STORE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://ledger@localhost/fees?sslmode=disable")
	t.Setenv("EVENTS", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("DIRECTORY", "redis")
	t.Setenv("BATCH_CONCURRENCY", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 2, cfg.BatchConcurrency)
	assert.True(t, cfg.NeedsRedis())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("BATCH_CONCURRENCY", "many")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestValidate(t *testing.T) {
	base := Config{Store: "memory", Directory: "memory", Events: "none", BatchConcurrency: 1, RepairAttempts: 1}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "postgres without url", mutate: func(c *Config) { c.Store = "postgres" }, want: "DATABASE_URL"},
		{name: "unknown store", mutate: func(c *Config) { c.Store = "mongo" }, want: "LEDGER_STORE"},
		{name: "unknown directory", mutate: func(c *Config) { c.Directory = "ldap" }, want: "DIRECTORY"},
		{name: "unknown events", mutate: func(c *Config) { c.Events = "nats" }, want: "EVENTS"},
		{name: "kafka without brokers", mutate: func(c *Config) { c.Events = "kafka" }, want: "KAFKA_BROKERS"},
		{name: "zero concurrency", mutate: func(c *Config) { c.BatchConcurrency = 0 }, want: "BATCH_CONCURRENCY"},
		{name: "zero repair attempts", mutate: func(c *Config) { c.RepairAttempts = 0 }, want: "REPAIR_ATTEMPTS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
