package main

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recall/internal/config"
	"github.com/fyrsmithlabs/recall/internal/embeddings"
	"github.com/fyrsmithlabs/recall/internal/extraction"
	"github.com/fyrsmithlabs/recall/internal/logging"
	"github.com/fyrsmithlabs/recall/internal/memlog"
	"github.com/fyrsmithlabs/recall/internal/memory"
	"github.com/fyrsmithlabs/recall/internal/telemetry"
)

// app holds everything a command needs.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	tel      *telemetry.Telemetry
	embedder *lazyEmbedder
	store    *memlog.FileStore
	svc      *memory.Service
}

// newApp loads configuration and wires the memory service. The embedding
// model is loaded on first use.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetryConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	logCfg, err := loggingConfig(cfg)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(logCfg, global.GetLoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	if derr := tel.Degraded(); derr != nil {
		logger.Warn(ctx, "telemetry degraded", zap.Error(derr))
	}

	store, err := memlog.NewFileStore(cfg.Memory.Dir, logger)
	if err != nil {
		return nil, err
	}

	embedder := &lazyEmbedder{
		cfg: embeddings.ProviderConfig{
			Provider:  cfg.Embeddings.Provider,
			Model:     cfg.Embeddings.Model,
			BaseURL:   cfg.Embeddings.BaseURL,
			APIKey:    cfg.Embeddings.APIKey.Value(),
			CacheDir:  cfg.Embeddings.CacheDir,
			Timeout:   cfg.Embeddings.Timeout.Duration(),
			RateLimit: cfg.Embeddings.RateLimit,
			Dimension: cfg.Embeddings.Dimension,
			CacheSize: cfg.Embeddings.CacheSize,
		},
		logger: logger.Named("embeddings").Underlying(),
	}

	svc, err := memory.NewService(store, embedder,
		memory.WithLogger(logger),
		memory.WithTracer(tel.Tracer("github.com/fyrsmithlabs/recall/internal/memory")),
		memory.WithMeter(tel.Meter("github.com/fyrsmithlabs/recall/internal/memory")),
		memory.WithExtractor(extraction.NewTagExtractor(extraction.WithMinScore(cfg.Memory.TagMinScore))),
		memory.WithTopK(cfg.Memory.TopK),
		memory.WithTagThreshold(cfg.Memory.TagThreshold),
		memory.WithSummarySentences(cfg.Memory.SummarySentences),
		memory.WithSummaryMinWords(cfg.Memory.SummaryMinWords),
		memory.WithShortTermN(cfg.Memory.ShortTermN),
	)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		tel:      tel,
		embedder: embedder,
		store:    store,
		svc:      svc,
	}, nil
}

// close releases the model and flushes telemetry and logs.
func (a *app) close(ctx context.Context) {
	if err := a.embedder.Close(); err != nil {
		a.logger.Warn(ctx, "closing embedder", zap.Error(err))
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := a.tel.Shutdown(sctx); err != nil {
		a.logger.Warn(ctx, "telemetry shutdown", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func telemetryConfig(cfg *config.Config) *telemetry.Config {
	tc := telemetry.NewDefaultConfig()
	tc.Enabled = cfg.Telemetry.Enabled
	tc.Endpoint = cfg.Telemetry.Endpoint
	tc.Protocol = cfg.Telemetry.Protocol
	tc.Insecure = cfg.Telemetry.Insecure
	tc.ServiceName = cfg.Telemetry.ServiceName
	tc.ServiceVersion = version
	tc.ExportInterval = cfg.Telemetry.ExportInterval.Duration()
	tc.ShutdownTimeout = cfg.Server.ShutdownTimeout.Duration()
	return tc
}

func loggingConfig(cfg *config.Config) (*logging.Config, error) {
	lc := logging.NewDefaultConfig()
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	lc.Level = level
	lc.Format = cfg.Logging.Format
	lc.Service = cfg.Telemetry.ServiceName
	lc.OTEL = cfg.Telemetry.Enabled
	return lc, nil
}

// lazyEmbedder builds the configured provider on first use so commands that
// never embed do not load a model.
type lazyEmbedder struct {
	cfg    embeddings.ProviderConfig
	logger *zap.Logger

	once     sync.Once
	provider embeddings.Provider
	err      error
}

func (l *lazyEmbedder) get() (embeddings.Provider, error) {
	l.once.Do(func() {
		l.provider, l.err = embeddings.NewProvider(l.cfg, l.logger)
	})
	return l.provider, l.err
}

func (l *lazyEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	p, err := l.get()
	if err != nil {
		return nil, err
	}
	return p.EmbedDocuments(ctx, texts)
}

func (l *lazyEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	p, err := l.get()
	if err != nil {
		return nil, err
	}
	return p.EmbedQuery(ctx, text)
}

// Close releases the provider if it was built.
func (l *lazyEmbedder) Close() error {
	l.once.Do(func() {})
	if l.provider == nil {
		return nil
	}
	return l.provider.Close()
}
