// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the zap logger shared by the pipeline stages.
package logging

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field names so every stage logs the same keys.
const (
	FieldAttempt    = "attempt"
	FieldMaxAttempt = "max_attempts"
	FieldStatus     = "status"
	FieldQuery      = "query"
	FieldKey        = "key"
	FieldCount      = "count"
	FieldBatch      = "batch"
	FieldBatchSize  = "batch_size"
	FieldDurationMS = "duration_ms"
	FieldOperation  = "operation"
	FieldComponent  = "component"
	FieldRetryAfter = "retry_after"
)

// Options selects the encoder and level.
type Options struct {
	// JSON selects production JSON encoding; console encoding otherwise.
	JSON bool
	// Level is one of debug, info, warn, error (default info).
	Level string
}

// New builds a logger writing to stderr. Stdout is left to command output.
func New(opts Options) (*zap.Logger, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var enc zapcore.Encoder
	if opts.JSON {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		enc = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(os.Stderr), level)
	return zap.New(core), nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, errors.Newf("unknown log level %q", s)
	}
}
