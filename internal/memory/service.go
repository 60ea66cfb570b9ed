// Package memory composes the record log, tag extraction, semantic search
// and summarization into the operations a conversational agent calls before
// and after each generation.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/recall/internal/embeddings"
	"github.com/fyrsmithlabs/recall/internal/extraction"
	"github.com/fyrsmithlabs/recall/internal/logging"
	"github.com/fyrsmithlabs/recall/internal/memlog"
	"github.com/fyrsmithlabs/recall/internal/semantic"
	"github.com/fyrsmithlabs/recall/internal/summarize"
	"github.com/fyrsmithlabs/recall/internal/tagmatch"
)

const instrumentationName = "github.com/fyrsmithlabs/recall/internal/memory"

// ErrEmptyInput is returned for blank queries and for exchanges whose user
// side is blank.
var ErrEmptyInput = errors.New("empty input")

// Defaults for Service.
const (
	DefaultTopK       = 5
	DefaultShortTermN = 3
)

// Retrieval branches reported in Context.Degraded.
const (
	BranchSemantic  = "semantic"
	BranchTriggered = "triggered"
	BranchSummary   = "summary"
)

// Context is everything retrieved for one prompt.
type Context struct {
	Semantic      []string                   `json:"semantic"`
	Triggered     map[string][]memlog.Record `json:"triggered"`
	GlobalSummary string                     `json:"global_summary"`
	ShortTerm     string                     `json:"short_term"`
	// Degraded maps each failed branch to its error. The branch's field
	// holds its empty value.
	Degraded map[string]string `json:"degraded,omitempty"`
}

// Service is the memory facade. It is safe for concurrent use.
type Service struct {
	store      memlog.Store
	extractor  extraction.TagExtractor
	index      *semantic.Index
	summarizer summarize.Summarizer
	logger     *logging.Logger
	tracer     trace.Tracer
	meter      metric.Meter

	topK             int
	tagThreshold     float64
	summarySentences int
	summaryMinWords  int
	shortTermN       int

	appends  metric.Int64Counter
	builds   metric.Int64Counter
	degraded metric.Int64Counter
	duration metric.Float64Histogram
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracer sets the tracer used for spans, including the semantic index.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithMeter sets the meter the service instruments are created from.
func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		if m != nil {
			s.meter = m
		}
	}
}

// WithExtractor replaces the RAKE extractor.
func WithExtractor(e extraction.TagExtractor) Option {
	return func(s *Service) {
		if e != nil {
			s.extractor = e
		}
	}
}

// WithSummarizer replaces LexRank.
func WithSummarizer(sm summarize.Summarizer) Option {
	return func(s *Service) {
		if sm != nil {
			s.summarizer = sm
		}
	}
}

// WithTopK sets how many semantic matches BuildContext returns.
func WithTopK(k int) Option { return func(s *Service) { s.topK = k } }
// WithTagThreshold sets the fuzzy tag match cutoff.
func WithTagThreshold(t float64) Option { return func(s *Service) { s.tagThreshold = t } }
// WithSummarySentences sets the global summary length in sentences.
func WithSummarySentences(n int) Option { return func(s *Service) { s.summarySentences = n } }
// WithSummaryMinWords sets the history size below which no summary is made.
func WithSummaryMinWords(n int) Option { return func(s *Service) { s.summaryMinWords = n } }
// WithShortTermN sets the default number of short-term exchanges.
func WithShortTermN(n int) Option { return func(s *Service) { s.shortTermN = n } }

// NewService builds the facade over store, embedding with embedder.
func NewService(store memlog.Store, embedder embeddings.Embedder, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("memory: store is required")
	}
	if embedder == nil {
		return nil, errors.New("memory: embedder is required")
	}

	s := &Service{
		store:            store,
		extractor:        extraction.NewTagExtractor(),
		summarizer:       summarize.NewLexRank(),
		logger:           logging.NewNop(),
		tracer:           otel.Tracer(instrumentationName),
		meter:            otel.Meter(instrumentationName),
		topK:             DefaultTopK,
		tagThreshold:     tagmatch.DefaultThreshold,
		summarySentences: summarize.DefaultSentences,
		summaryMinWords:  summarize.DefaultMinWords,
		shortTermN:       DefaultShortTermN,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("memory")
	s.index = semantic.New(embedder,
		semantic.WithLogger(s.logger.Underlying()),
		semantic.WithTracer(s.tracer))

	if err := s.initMetrics(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) initMetrics() error {
	var err error
	s.appends, err = s.meter.Int64Counter("recall.memory.appends_total",
		metric.WithDescription("Exchanges appended to memory logs"))
	if err != nil {
		return fmt.Errorf("memory: appends counter: %w", err)
	}
	s.builds, err = s.meter.Int64Counter("recall.memory.context_builds_total",
		metric.WithDescription("Prompt contexts assembled"))
	if err != nil {
		return fmt.Errorf("memory: builds counter: %w", err)
	}
	s.degraded, err = s.meter.Int64Counter("recall.memory.degraded_total",
		metric.WithDescription("Retrieval branches that failed while building a context"))
	if err != nil {
		return fmt.Errorf("memory: degraded counter: %w", err)
	}
	s.duration, err = s.meter.Float64Histogram("recall.memory.context_build_duration_seconds",
		metric.WithDescription("Time to assemble a prompt context"),
		metric.WithUnit("s"))
	if err != nil {
		return fmt.Errorf("memory: duration histogram: %w", err)
	}
	return nil
}

// Append tags the exchange and stores it as key's newest record. The user
// side must not be blank. A blank assistant reply is stored as given.
func (s *Service) Append(ctx context.Context, key, userText, assistantText string) (memlog.Record, error) {
	ctx = logging.WithUserKey(ctx, key)
	ctx, span := s.tracer.Start(ctx, "memory.Append")
	defer span.End()

	if strings.TrimSpace(userText) == "" {
		return memlog.Record{}, ErrEmptyInput
	}

	rec := memlog.Record{
		User:      userText,
		Assistant: assistantText,
		Tags:      s.extractor.ExtractTags(userText + " " + assistantText),
	}
	span.SetAttributes(attribute.Int("tags", len(rec.Tags)))

	if err := s.store.Append(ctx, key, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		s.appends.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "error")))
		s.logger.Error(ctx, "append failed", zap.Error(err))
		return memlog.Record{}, err
	}

	s.appends.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
	s.logger.Info(ctx, "exchange stored",
		logging.TextLen("user", userText),
		logging.TextLen("assistant", assistantText),
		zap.Int("tags", len(rec.Tags)),
	)
	return rec, nil
}

// BuildContext gathers semantic matches, tag-triggered records, the global
// summary and short-term memory for query. The log is read once and every
// branch sees the same snapshot. A failing branch is reported in
// Context.Degraded and does not affect the others. BuildContext never
// changes stored records.
func (s *Service) BuildContext(ctx context.Context, key, query string) (*Context, error) {
	start := time.Now()
	ctx = logging.WithUserKey(ctx, key)
	ctx, span := s.tracer.Start(ctx, "memory.BuildContext")
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyInput
	}

	records, err := s.store.ReadAll(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("records", len(records)))
	snap := snapshot(records)

	out := &Context{
		Semantic:      []string{},
		Triggered:     map[string][]memlog.Record{},
		GlobalSummary: summarize.Sentinel,
	}
	failures := make([]error, 3)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := s.index.RetrieveSimilar(gctx, query, records, s.topK)
		if err != nil {
			failures[0] = err
			return nil
		}
		out.Semantic = res
		return nil
	})
	g.Go(func() error {
		m := tagmatch.New(snap, s.extractor, tagmatch.WithThreshold(s.tagThreshold))
		res, err := m.TriggerMemoryCheck(gctx, query, key)
		if err != nil {
			failures[1] = err
			return nil
		}
		out.Triggered = res
		return nil
	})
	g.Go(func() error {
		h := summarize.NewHistory(snap, s.summarizer,
			summarize.WithSentences(s.summarySentences),
			summarize.WithMinWords(s.summaryMinWords))
		res, err := h.SummarizeUserHistory(gctx, key)
		if err != nil {
			failures[2] = err
			return nil
		}
		out.GlobalSummary = res
		return nil
	})
	out.ShortTerm = shortTerm(records, s.shortTermN)
	_ = g.Wait()

	for i, branch := range []string{BranchSemantic, BranchTriggered, BranchSummary} {
		if failures[i] == nil {
			continue
		}
		if out.Degraded == nil {
			out.Degraded = make(map[string]string)
		}
		out.Degraded[branch] = failures[i].Error()
		s.degraded.Add(ctx, 1, metric.WithAttributes(attribute.String("branch", branch)))
		s.logger.Warn(ctx, "retrieval branch degraded",
			zap.String("branch", branch),
			zap.Error(failures[i]),
		)
		span.AddEvent("degraded", trace.WithAttributes(attribute.String("branch", branch)))
	}

	s.builds.Add(ctx, 1)
	s.duration.Record(ctx, time.Since(start).Seconds())
	s.logger.Debug(ctx, "context built",
		logging.TextLen("query", query),
		zap.Int("records", len(records)),
		zap.Int("semantic", len(out.Semantic)),
		zap.Int("triggered", len(out.Triggered)),
		zap.Int("degraded", len(out.Degraded)),
	)
	return out, nil
}

// Clear deletes every record for key.
func (s *Service) Clear(ctx context.Context, key string) error {
	ctx = logging.WithUserKey(ctx, key)
	ctx, span := s.tracer.Start(ctx, "memory.Clear")
	defer span.End()

	if err := s.store.Clear(ctx, key); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "clear failed")
		return err
	}
	return nil
}

// LatestN returns key's newest n records, oldest first.
func (s *Service) LatestN(ctx context.Context, key string, n int) ([]memlog.Record, error) {
	ctx = logging.WithUserKey(ctx, key)
	return s.store.Latest(ctx, key, n)
}

// ShortTerm renders key's newest n exchanges. n <= 0 uses the configured
// default.
func (s *Service) ShortTerm(ctx context.Context, key string, n int) (string, error) {
	if n <= 0 {
		n = s.shortTermN
	}
	records, err := s.store.ReadAll(logging.WithUserKey(ctx, key), key)
	if err != nil {
		return "", err
	}
	return shortTerm(records, n), nil
}

// SummarizeUserHistory summarizes key's whole log, returning
// summarize.Sentinel when the log is too small.
func (s *Service) SummarizeUserHistory(ctx context.Context, key string) (string, error) {
	ctx = logging.WithUserKey(ctx, key)
	ctx, span := s.tracer.Start(ctx, "memory.SummarizeUserHistory")
	defer span.End()

	h := summarize.NewHistory(s.store, s.summarizer,
		summarize.WithSentences(s.summarySentences),
		summarize.WithMinWords(s.summaryMinWords))
	return h.SummarizeUserHistory(ctx, key)
}

// ExtractTags exposes the configured extractor.
func (s *Service) ExtractTags(text string) []string {
	return s.extractor.ExtractTags(text)
}

// snapshot serves a fixed record slice to readers.
type snapshot []memlog.Record

func (s snapshot) ReadAll(context.Context, string) ([]memlog.Record, error) {
	return s, nil
}
