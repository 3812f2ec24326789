package parseuserintent

import (
	"time"

	"hr-assistant/internal/common/config"
)

const (
	DefaultBaseURL = "https://llm.api.cloud.yandex.net"
	DefaultModel   = "yandexgpt-lite"

	completionPath = "/foundationModels/v1/completion"
)

type Config struct {
	BaseURL     string
	APIKey      string
	FolderID    string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
	// RatePerSecond <= 0 disables client-side shedding.
	RatePerSecond float64
	Burst         int
}

func LoadConfig() *Config {
	return &Config{
		BaseURL:     DefaultBaseURL,
		Model:       DefaultModel,
		Temperature: 0.1,
		MaxTokens:   1000,
		Timeout:     30 * time.Second,
		Burst:       1,
	}
}

// FromSettings overlays the completion section of the application config on
// the defaults. Zero values keep the default.
func FromSettings(c config.CompletionConfig) *Config {
	cfg := LoadConfig()
	cfg.APIKey = c.APIKey
	cfg.FolderID = c.FolderID
	cfg.MaxRetries = c.MaxRetries
	cfg.RatePerSecond = c.RatePerSecond
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}
	if c.Model != "" {
		cfg.Model = c.Model
	}
	if c.Temperature > 0 {
		cfg.Temperature = c.Temperature
	}
	if c.MaxTokens > 0 {
		cfg.MaxTokens = c.MaxTokens
	}
	if c.Timeout > 0 {
		cfg.Timeout = config.GetDuration(c.Timeout)
	}
	if c.Burst > 0 {
		cfg.Burst = c.Burst
	}
	return cfg
}

// Enabled reports whether credentials for the completion service are set.
func (c *Config) Enabled() bool {
	return c.APIKey != "" && c.FolderID != ""
}

func (c *Config) modelURI() string {
	return "gpt://" + c.FolderID + "/" + c.Model
}
