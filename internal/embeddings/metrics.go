package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/recall/internal/embeddings"

// Metrics holds embedding instruments. A nil *Metrics records nothing.
type Metrics struct {
	logger    *zap.Logger
	duration  metric.Float64Histogram
	batchSize metric.Int64Histogram
	errors    metric.Int64Counter
	cacheHits metric.Int64Counter
	cacheMiss metric.Int64Counter
}

// NewMetrics creates instruments on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	return NewMetricsWithMeter(otel.Meter(instrumentationName), logger)
}

// NewMetricsWithMeter creates instruments on meter.
func NewMetricsWithMeter(meter metric.Meter, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{logger: logger}
	var err error

	m.duration, err = meter.Float64Histogram(
		"recall.embedding.duration_seconds",
		metric.WithDescription("Duration of embedding calls by model and operation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.batchSize, err = meter.Int64Histogram(
		"recall.embedding.batch_size",
		metric.WithDescription("Number of texts per embedding call"),
		metric.WithUnit("{text}"),
		metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 25, 50, 100, 250, 500),
	)
	if err != nil {
		logger.Warn("failed to create batch size histogram", zap.Error(err))
	}

	m.errors, err = meter.Int64Counter(
		"recall.embedding.errors_total",
		metric.WithDescription("Embedding failures by model and operation"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		logger.Warn("failed to create errors counter", zap.Error(err))
	}

	m.cacheHits, err = meter.Int64Counter(
		"recall.embedding.cache_hits_total",
		metric.WithDescription("Vectors served from the embedding cache"),
	)
	if err != nil {
		logger.Warn("failed to create cache hits counter", zap.Error(err))
	}

	m.cacheMiss, err = meter.Int64Counter(
		"recall.embedding.cache_misses_total",
		metric.WithDescription("Vectors computed after a cache miss"),
	)
	if err != nil {
		logger.Warn("failed to create cache misses counter", zap.Error(err))
	}
	return m
}

// RecordGeneration records one embedding call.
func (m *Metrics) RecordGeneration(ctx context.Context, model, operation string, d time.Duration, batch int, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("operation", operation),
	)
	if m.duration != nil {
		m.duration.Record(ctx, d.Seconds(), attrs)
	}
	if m.batchSize != nil {
		m.batchSize.Record(ctx, int64(batch), attrs)
	}
	if err != nil {
		if m.errors != nil {
			m.errors.Add(ctx, 1, attrs)
		}
		m.logger.Debug("embedding failed",
			zap.String("model", model),
			zap.String("operation", operation),
			zap.Error(err),
		)
	}
}

// RecordCache records cache hits and misses.
func (m *Metrics) RecordCache(ctx context.Context, hits, misses int) {
	if m == nil {
		return
	}
	if hits > 0 && m.cacheHits != nil {
		m.cacheHits.Add(ctx, int64(hits))
	}
	if misses > 0 && m.cacheMiss != nil {
		m.cacheMiss.Add(ctx, int64(misses))
	}
}

// instrumented records metrics around every call to the wrapped provider.
type instrumented struct {
	Provider
	metrics *Metrics
}

// Instrument wraps p so that its calls are recorded in metrics.
func Instrument(p Provider, metrics *Metrics) Provider {
	return &instrumented{Provider: p, metrics: metrics}
}

func (i *instrumented) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := i.Provider.EmbedDocuments(ctx, texts)
	i.metrics.RecordGeneration(ctx, i.Model(), "embed_documents", time.Since(start), len(texts), err)
	return vecs, err
}

func (i *instrumented) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := i.Provider.EmbedQuery(ctx, text)
	i.metrics.RecordGeneration(ctx, i.Model(), "embed_query", time.Since(start), 1, err)
	return vec, err
}
