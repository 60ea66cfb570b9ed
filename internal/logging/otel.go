// internal/logging/otel.go
package logging

import (
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// buildCore assembles the stderr core and, when an OTEL provider is given,
// tees entries into it.
func buildCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	enc, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
	if err != nil {
		return nil, fmt.Errorf("redacting encoder: %w", err)
	}
	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stderr), cfg.Level),
	}

	if cfg.OTEL && otelProvider != nil {
		cores = append(cores, otelzap.NewCore(cfg.Service,
			otelzap.WithLoggerProvider(otelProvider),
		))
	}

	core := zapcore.NewTee(cores...)
	return newSampledCore(core, cfg.Sampling), nil
}
