package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	URL string
}

// PostgresConfig holds the run log database configuration.
// An empty DSN disables the run log.
type PostgresConfig struct {
	DSN string
}

// StreamConfig defines which Redis streams carry compile requests and events
type StreamConfig struct {
	RequestStream string
	EventStream   string
	ConsumerGroup string
	ConsumerID    string
}

// CompilerConfig controls where compiled descriptors are written
type CompilerConfig struct {
	OutputRoot     string
	DefaultIconDir string // empty disables fallback icon copy
	MaxSchemaBytes int64
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string // json or console
}

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Stream   StreamConfig
	Compiler CompilerConfig
	Log      LogConfig
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	maxBytes, err := getEnvInt64("MAX_SCHEMA_BYTES", 16<<20)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:        getEnv("SERVER_ADDR", ":8086"),
			CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6380"),
		},
		Postgres: PostgresConfig{
			DSN: getEnv("POSTGRES_DSN", ""),
		},
		Stream: StreamConfig{
			RequestStream: getEnv("REQUEST_STREAM", "schemas.raw"),
			EventStream:   getEnv("EVENT_STREAM", "schemas.compiled"),
			ConsumerGroup: getEnv("CONSUMER_GROUP", "schema-compiler"),
			ConsumerID:    getEnv("CONSUMER_ID", "compiler-1"),
		},
		Compiler: CompilerConfig{
			OutputRoot:     getEnv("OUTPUT_ROOT", "./steam_settings"),
			DefaultIconDir: getEnv("DEFAULT_ICON_DIR", ""),
			MaxSchemaBytes: maxBytes,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that have no usable default
func (c *Config) Validate() error {
	if c.Compiler.MaxSchemaBytes <= 0 {
		return fmt.Errorf("MAX_SCHEMA_BYTES must be positive, got %d", c.Compiler.MaxSchemaBytes)
	}
	if c.Stream.RequestStream == c.Stream.EventStream {
		return fmt.Errorf("REQUEST_STREAM and EVENT_STREAM must differ (both %q)", c.Stream.RequestStream)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// RunStoreEnabled reports whether a run log database is configured
func (c *Config) RunStoreEnabled() bool {
	return c.Postgres.DSN != ""
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// splitList splits a comma-separated value, dropping empty items
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
