// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Database      DatabaseConfig      `mapstructure:"database"`
	APIs          APIsConfig          `mapstructure:"apis"`
	Vocabulary    VocabularyConfig    `mapstructure:"vocabulary"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Driver       string         `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	SQLite       SQLiteConfig   `mapstructure:"sqlite"`
	Postgres     PostgresConfig `mapstructure:"postgres"`
	Redis        RedisConfig    `mapstructure:"redis"`
	QueryTimeout int            `mapstructure:"query_timeout" validate:"gte=0"` // milliseconds
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// GetDSN returns a read-only modernc sqlite DSN.
func (s SQLiteConfig) GetDSN() string {
	return fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)&_pragma=query_only(true)", s.Path)
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	Completion CompletionConfig `mapstructure:"completion"`
}

// CompletionConfig describes the hosted text-completion service.
type CompletionConfig struct {
	BaseURL       string  `mapstructure:"base_url" validate:"required,url"`
	APIKey        string  `mapstructure:"api_key"`
	FolderID      string  `mapstructure:"folder_id" validate:"required_with=APIKey"`
	Model         string  `mapstructure:"model"`
	Temperature   float64 `mapstructure:"temperature" validate:"gte=0,lte=1"`
	MaxTokens     int     `mapstructure:"max_tokens" validate:"gte=0"`
	Timeout       int     `mapstructure:"timeout" validate:"gte=0"` // milliseconds
	MaxRetries    int     `mapstructure:"max_retries" validate:"gte=0,lte=5"`
	RatePerSecond float64 `mapstructure:"rate_per_second" validate:"gte=0"`
	Burst         int     `mapstructure:"burst" validate:"gte=0"`
}

// Enabled reports whether the model-assisted parser can be used.
func (c CompletionConfig) Enabled() bool {
	return c.APIKey != "" && c.FolderID != ""
}

// VocabularyConfig controls the distinct-value cache.
type VocabularyConfig struct {
	CacheTTL    int    `mapstructure:"cache_ttl" validate:"gte=0"` // milliseconds, redis tier only
	RedisPrefix string `mapstructure:"redis_prefix"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json console"`
	Output string `mapstructure:"output"`
}

// ObservabilityConfig holds metrics and tracing settings.
type ObservabilityConfig struct {
	MetricsAddress string `mapstructure:"metrics_address"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint" validate:"omitempty,url"`
}
