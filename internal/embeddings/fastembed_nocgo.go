//go:build !cgo

package embeddings

import (
	"context"
	"fmt"
)

// FastEmbedConfig holds configuration for the FastEmbed provider.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// FastEmbedProvider is unavailable in binaries built without cgo.
type FastEmbedProvider struct{}

// NewFastEmbedProvider always fails without cgo; use the tei provider.
func NewFastEmbedProvider(_ FastEmbedConfig) (*FastEmbedProvider, error) {
	return nil, fmt.Errorf("%w: fastembed requires cgo, use the tei provider", ErrModelUnavailable)
}

func (p *FastEmbedProvider) EmbedDocuments(_ context.Context, _ []string) ([][]float32, error) {
	return nil, ErrModelUnavailable
}

func (p *FastEmbedProvider) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrModelUnavailable
}

func (p *FastEmbedProvider) Model() string  { return "" }
func (p *FastEmbedProvider) Dimension() int { return 0 }
func (p *FastEmbedProvider) Close() error   { return nil }
