package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashProvider embeds text by hashing words and character trigrams into a
// fixed number of buckets. It needs no model files and is deterministic, so
// texts sharing vocabulary land near each other. It is meant for tests and
// offline use.
type HashProvider struct {
	dimension int
}

// NewHashProvider returns a HashProvider with the given dimension, 384 if
// dim is zero.
func NewHashProvider(dim int) (*HashProvider, error) {
	if dim == 0 {
		dim = 384
	}
	if dim < 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return &HashProvider{dimension: dim}, nil
}

func (h *HashProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *HashProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	return h.vector(text), nil
}

func (h *HashProvider) Model() string  { return fmt.Sprintf("hash-%d", h.dimension) }
func (h *HashProvider) Dimension() int { return h.dimension }
func (h *HashProvider) Close() error   { return nil }

func (h *HashProvider) vector(text string) []float32 {
	vec := make([]float32, h.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h.add(vec, "w:"+w, 1)
		padded := []rune("^" + w + "$")
		for i := 0; i+3 <= len(padded); i++ {
			h.add(vec, "g:"+string(padded[i:i+3]), 0.5)
		}
	}
	return normalize(vec)
}

func (h *HashProvider) add(vec []float32, feature string, weight float32) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()
	idx := int(sum % uint64(h.dimension))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

// normalize scales vec to unit length in place.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}
