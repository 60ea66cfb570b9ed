// Package embeddings turns text into dense vectors for semantic retrieval.
//
// A single Provider is built at startup and shared by all requests; every
// implementation is safe for concurrent use.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid embeddings configuration")

	// ErrModelUnavailable indicates the embedding model could not be
	// loaded or failed while running.
	ErrModelUnavailable = errors.New("embedding model unavailable")
)

// Embedder embeds documents and queries.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Provider is an Embedder bound to one model.
type Provider interface {
	Embedder
	// Model identifies the model; equal text under equal Model embeds to
	// the same vector.
	Model() string
	// Dimension returns the embedding dimension.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig selects and configures a provider.
type ProviderConfig struct {
	// Provider is "fastembed", "tei" or "hash".
	Provider string
	Model    string
	// BaseURL and APIKey are used by the tei provider.
	BaseURL string
	APIKey  string
	// CacheDir is where fastembed keeps model files.
	CacheDir string
	// Timeout bounds each tei request.
	Timeout time.Duration
	// RateLimit caps tei requests per second; zero means unlimited.
	RateLimit float64
	// Dimension is used by the hash provider and overrides the tei default.
	Dimension int
	// CacheSize is the number of vectors kept in the LRU cache. Zero
	// disables caching.
	CacheSize int
}

// NewProvider builds the configured provider, wrapped in a cache when
// CacheSize is positive.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := NewMetrics(logger)

	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case "fastembed", "":
		p, err = NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case "tei":
		p, err = NewTEIProvider(TEIConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			Dimension: cfg.Dimension,
		})
	case "hash":
		p, err = NewHashProvider(cfg.Dimension)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("embedding provider ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", p.Model()),
		zap.Int("dimension", p.Dimension()),
	)

	p = Instrument(p, metrics)
	if cfg.CacheSize > 0 {
		return NewCachedProvider(p, cfg.CacheSize, metrics)
	}
	return p, nil
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
