package embeddings

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider counts texts passed to the wrapped provider.
type countingProvider struct {
	Provider
	docs    atomic.Int64
	queries atomic.Int64
}

func (c *countingProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	c.docs.Add(int64(len(texts)))
	return c.Provider.EmbedDocuments(ctx, texts)
}

func (c *countingProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	c.queries.Add(1)
	return c.Provider.EmbedQuery(ctx, text)
}

func newCounting(t *testing.T) *countingProvider {
	t.Helper()
	h, err := NewHashProvider(32)
	require.NoError(t, err)
	return &countingProvider{Provider: h}
}

func TestCachedProvider_Documents(t *testing.T) {
	inner := newCounting(t)
	c, err := NewCachedProvider(inner, 16, nil)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := c.EmbedDocuments(ctx, []string{"a b", "c d"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, inner.docs.Load())

	second, err := c.EmbedDocuments(ctx, []string{"c d", "e f", "a b"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, inner.docs.Load(), "only the miss is embedded")
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])
	assert.Equal(t, 3, c.Len())
}

func TestCachedProvider_QueryAndDocumentAreSeparate(t *testing.T) {
	inner := newCounting(t)
	c, err := NewCachedProvider(inner, 16, nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.EmbedDocuments(ctx, []string{"same text"})
	require.NoError(t, err)
	_, err = c.EmbedQuery(ctx, "same text")
	require.NoError(t, err)
	_, err = c.EmbedQuery(ctx, "same text")
	require.NoError(t, err)

	assert.EqualValues(t, 1, inner.docs.Load())
	assert.EqualValues(t, 1, inner.queries.Load())
}

func TestCachedProvider_Eviction(t *testing.T) {
	inner := newCounting(t)
	c, err := NewCachedProvider(inner, 1, nil)
	require.NoError(t, err)

	ctx := context.Background()
	for _, q := range []string{"one", "two", "one"} {
		_, err := c.EmbedQuery(ctx, q)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, inner.queries.Load())
}

func TestCachedProvider_InvalidSize(t *testing.T) {
	_, err := NewCachedProvider(newCounting(t), 0, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
