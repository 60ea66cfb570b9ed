// Package config loads recall configuration from defaults, an optional YAML
// file and RECALL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the complete recall configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Memory     MemoryConfig     `koanf:"memory"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// MemoryConfig holds memory store and retrieval settings.
type MemoryConfig struct {
	// Dir holds one <user key>.jsonl log per user.
	Dir              string  `koanf:"dir"`
	TopK             int     `koanf:"top_k"`
	TagThreshold     float64 `koanf:"tag_threshold"`
	TagMinScore      float64 `koanf:"tag_min_score"`
	SummarySentences int     `koanf:"summary_sentences"`
	SummaryMinWords  int     `koanf:"summary_min_words"`
	ShortTermN       int     `koanf:"short_term_n"`
	LatestN          int     `koanf:"latest_n"`
}

// EmbeddingsConfig selects and tunes the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "fastembed", "tei" or "hash".
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	// BaseURL is the TEI server root, used by the tei provider.
	BaseURL string `koanf:"base_url"`
	APIKey  Secret `koanf:"api_key"`
	// CacheDir is where fastembed stores downloaded model files.
	CacheDir  string   `koanf:"cache_dir"`
	CacheSize int      `koanf:"cache_size"`
	Timeout   Duration `koanf:"timeout"`
	// RateLimit caps TEI requests per second. Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	// Dimension is only used by the hash provider.
	Dimension int `koanf:"dimension"`
}

// LoggingConfig holds log level and format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	Protocol       string   `koanf:"protocol"`
	Insecure       bool     `koanf:"insecure"`
	ServiceName    string   `koanf:"service_name"`
	ExportInterval Duration `koanf:"export_interval"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8000,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Memory: MemoryConfig{
			Dir:              "~/.local/share/recall/memory",
			TopK:             5,
			TagThreshold:     0.4,
			TagMinScore:      3,
			SummarySentences: 5,
			SummaryMinWords:  50,
			ShortTermN:       3,
			LatestN:          3,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "fastembed",
			Model:     "sentence-transformers/all-MiniLM-L6-v2",
			BaseURL:   "http://localhost:8080",
			CacheDir:  "~/.cache/recall/models",
			CacheSize: 4096,
			Timeout:   Duration(30 * time.Second),
			Dimension: 384,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			Endpoint:       "localhost:4317",
			Protocol:       "grpc",
			Insecure:       true,
			ServiceName:    "recall",
			ExportInterval: Duration(15 * time.Second),
		},
	}
}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("server.port %d out of range 1-65535", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return invalid("server.shutdown_timeout must be positive")
	}

	m := c.Memory
	if m.Dir == "" {
		return invalid("memory.dir is required")
	}
	if m.TopK < 0 {
		return invalid("memory.top_k must be >= 0, got %d", m.TopK)
	}
	if m.TagThreshold < 0 || m.TagThreshold > 1 {
		return invalid("memory.tag_threshold must be in [0,1], got %g", m.TagThreshold)
	}
	if m.TagMinScore < 0 {
		return invalid("memory.tag_min_score must be >= 0, got %g", m.TagMinScore)
	}
	if m.SummarySentences <= 0 {
		return invalid("memory.summary_sentences must be positive, got %d", m.SummarySentences)
	}
	if m.SummaryMinWords < 0 {
		return invalid("memory.summary_min_words must be >= 0, got %d", m.SummaryMinWords)
	}
	if m.ShortTermN < 0 || m.LatestN < 0 {
		return invalid("memory.short_term_n and memory.latest_n must be >= 0")
	}

	e := c.Embeddings
	switch e.Provider {
	case "fastembed", "hash":
	case "tei":
		if e.BaseURL == "" {
			return invalid("embeddings.base_url is required for the tei provider")
		}
	default:
		return invalid("unknown embeddings.provider %q (want fastembed, tei or hash)", e.Provider)
	}
	if e.CacheSize < 0 {
		return invalid("embeddings.cache_size must be >= 0, got %d", e.CacheSize)
	}
	if e.RateLimit < 0 {
		return invalid("embeddings.rate_limit must be >= 0, got %g", e.RateLimit)
	}
	if e.Provider == "hash" && e.Dimension <= 0 {
		return invalid("embeddings.dimension must be positive for the hash provider")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return invalid("logging.format must be json or console, got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return invalid("telemetry.endpoint is required when telemetry is enabled")
		}
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http/protobuf" {
			return invalid("telemetry.protocol must be grpc or http/protobuf, got %q", c.Telemetry.Protocol)
		}
	}
	return nil
}
