package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"SERVER_ADDR", "CORS_ORIGINS", "REDIS_URL", "POSTGRES_DSN",
	"REQUEST_STREAM", "EVENT_STREAM", "CONSUMER_GROUP", "CONSUMER_ID",
	"OUTPUT_ROOT", "DEFAULT_ICON_DIR", "MAX_SCHEMA_BYTES", "LOG_LEVEL", "LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8086", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:3001"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "redis://localhost:6380", cfg.Redis.URL)
	assert.Empty(t, cfg.Postgres.DSN)
	assert.False(t, cfg.RunStoreEnabled())
	assert.Equal(t, StreamConfig{
		RequestStream: "schemas.raw",
		EventStream:   "schemas.compiled",
		ConsumerGroup: "schema-compiler",
		ConsumerID:    "compiler-1",
	}, cfg.Stream)
	assert.Equal(t, "./steam_settings", cfg.Compiler.OutputRoot)
	assert.Empty(t, cfg.Compiler.DefaultIconDir)
	assert.Equal(t, int64(16<<20), cfg.Compiler.MaxSchemaBytes)
	assert.Equal(t, LogConfig{Level: "info", Format: "json"}, cfg.Log)
}

func TestLoadConfig_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("POSTGRES_DSN", "postgres://u:p@localhost:5432/schemas?sslmode=disable")
	t.Setenv("CONSUMER_ID", "compiler-7")
	t.Setenv("OUTPUT_ROOT", "/srv/steam_settings")
	t.Setenv("DEFAULT_ICON_DIR", "/srv/icons")
	t.Setenv("MAX_SCHEMA_BYTES", "1024")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.RunStoreEnabled())
	assert.Equal(t, "compiler-7", cfg.Stream.ConsumerID)
	assert.Equal(t, "/srv/steam_settings", cfg.Compiler.OutputRoot)
	assert.Equal(t, "/srv/icons", cfg.Compiler.DefaultIconDir)
	assert.Equal(t, int64(1024), cfg.Compiler.MaxSchemaBytes)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non numeric size", "MAX_SCHEMA_BYTES", "lots"},
		{"zero size", "MAX_SCHEMA_BYTES", "0"},
		{"same streams", "EVENT_STREAM", "schemas.raw"},
		{"unknown log format", "LOG_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
