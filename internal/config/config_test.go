package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, "gzip", cfg.Compression)
	assert.Equal(t, uint64(5), cfg.AppendMaxRetries)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("REVISION_DB_TYPE", "postgres")
	t.Setenv("REVISION_COMPRESSION", "lz4")
	t.Setenv("REVISION_STATS_CACHE_TTL", "30s")
	t.Setenv("REVISION_APPEND_MAX_RETRIES", "9")

	cfg := LoadConfig()

	assert.Equal(t, "postgres", cfg.DBType)
	assert.Equal(t, "lz4", cfg.Compression)
	assert.Equal(t, 30*time.Second, cfg.StatsCacheTTL)
	assert.Equal(t, uint64(9), cfg.AppendMaxRetries)
}
