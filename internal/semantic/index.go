// Package semantic ranks past exchanges by embedding similarity to a query.
package semantic

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recall/internal/embeddings"
	"github.com/fyrsmithlabs/recall/internal/memlog"
)

// Index embeds records on demand and returns the closest ones to a query.
// It keeps no state between calls; caching belongs to the embedder.
type Index struct {
	embedder embeddings.Embedder
	logger   *zap.Logger
	tracer   trace.Tracer
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(ix *Index) {
		if l != nil {
			ix.logger = l
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(ix *Index) {
		if t != nil {
			ix.tracer = t
		}
	}
}

// New returns an Index backed by embedder.
func New(embedder embeddings.Embedder, opts ...Option) *Index {
	ix := &Index{
		embedder: embedder,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("github.com/fyrsmithlabs/recall/internal/semantic"),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Match is one ranked record.
type Match struct {
	Index      int
	Text       string
	Similarity float32
}

// RetrieveSimilar returns the rendered text of the topK records most
// similar to query, most similar first. Empty records or a non-positive
// topK return an empty slice without touching the embedder.
func (ix *Index) RetrieveSimilar(ctx context.Context, query string, records []memlog.Record, topK int) ([]string, error) {
	matches, err := ix.Rank(ctx, query, records, topK)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Text
	}
	return out, nil
}

// Rank is RetrieveSimilar with scores. Ties keep log order.
func (ix *Index) Rank(ctx context.Context, query string, records []memlog.Record, topK int) ([]Match, error) {
	if len(records) == 0 || topK <= 0 {
		return []Match{}, nil
	}

	ctx, span := ix.tracer.Start(ctx, "semantic.Rank", trace.WithAttributes(
		attribute.Int("records", len(records)),
		attribute.Int("top_k", topK),
	))
	defer span.End()

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Render()
	}

	docVecs, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embed documents")
		return nil, fmt.Errorf("embed records: %w", err)
	}
	if len(docVecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d records", embeddings.ErrModelUnavailable, len(docVecs), len(texts))
	}

	queryVec, err := ix.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embed query")
		return nil, fmt.Errorf("embed query: %w", err)
	}

	k := min(topK, len(texts))
	if isZero(queryVec) {
		// Every record is equally (un)related to a featureless query.
		matches := make([]Match, k)
		for i := range matches {
			matches[i] = Match{Index: i, Text: texts[i]}
		}
		return matches, nil
	}

	results, err := rankAll(ctx, queryVec, texts, docVecs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query")
		return nil, err
	}

	matches := make([]Match, 0, len(results))
	for _, res := range results {
		idx, err := strconv.Atoi(res.ID)
		if err != nil {
			return nil, fmt.Errorf("unexpected document id %q: %w", res.ID, err)
		}
		matches = append(matches, Match{Index: idx, Text: texts[idx], Similarity: res.Similarity})
	}
	slices.SortStableFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
	matches = matches[:k]

	ix.logger.Debug("semantic ranking",
		zap.Int("records", len(records)),
		zap.Int("returned", len(matches)),
		zap.Float32("best", matches[0].Similarity),
	)
	return matches, nil
}

// rankAll loads the precomputed vectors into a throwaway collection and ranks
// all of them against queryVec. Every document is requested so that ties at
// the cut-off are broken by log order rather than by the collection.
func rankAll(ctx context.Context, queryVec []float32, texts []string, docVecs [][]float32) ([]chromem.Result, error) {
	db := chromem.NewDB()
	col, err := db.CreateCollection("records", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	docs := make([]chromem.Document, len(texts))
	for i := range texts {
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(i),
			Content:   texts[i],
			Embedding: docVecs[i],
		}
	}
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return nil, fmt.Errorf("add documents: %w", err)
	}

	results, err := col.QueryEmbedding(ctx, queryVec, len(docs), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}
	return results, nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
