package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedProvider memoizes vectors in an LRU keyed by a hash of the model,
// the embedding kind and the text. Equal keys always map to equal vectors
// so entries never go stale.
type CachedProvider struct {
	Provider
	cache   *lru.Cache[string, []float32]
	metrics *Metrics
}

// NewCachedProvider wraps p with an LRU of the given size.
func NewCachedProvider(p Provider, size int, metrics *Metrics) (*CachedProvider, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("%w: cache: %v", ErrInvalidConfig, err)
	}
	return &CachedProvider{Provider: p, cache: cache, metrics: metrics}, nil
}

func (c *CachedProvider) key(kind, text string) string {
	sum := sha256.Sum256([]byte(c.Model() + "\x00" + kind + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// EmbedDocuments serves cached vectors and embeds only the misses, in a
// single batch.
func (c *CachedProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	out := make([][]float32, len(texts))
	var (
		missTexts []string
		missIdx   []int
	)
	for i, t := range texts {
		if v, ok := c.cache.Get(c.key("doc", t)); ok {
			out[i] = v
			continue
		}
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}
	c.metrics.RecordCache(ctx, len(texts)-len(missTexts), len(missTexts))

	if len(missTexts) == 0 {
		return out, nil
	}
	vecs, err := c.Provider.EmbedDocuments(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, v := range vecs {
		out[missIdx[j]] = v
		c.cache.Add(c.key("doc", missTexts[j]), v)
	}
	return out, nil
}

func (c *CachedProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	k := c.key("query", text)
	if v, ok := c.cache.Get(k); ok {
		c.metrics.RecordCache(ctx, 1, 0)
		return v, nil
	}
	c.metrics.RecordCache(ctx, 0, 1)
	v, err := c.Provider.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(k, v)
	return v, nil
}

// Len reports the number of cached vectors.
func (c *CachedProvider) Len() int { return c.cache.Len() }
