// Package logging wraps zap with context-aware methods. Entries carry the
// trace and span ids of the active span plus the conversation, user and
// request ids stored in the context.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap with context-aware methods.
type Logger struct {
	zap *zap.Logger
}

// NewLogger builds a logger writing to stdout and, when enabled and a
// provider is given, to OpenTelemetry.
func NewLogger(cfg *Config, otelProvider log.LoggerProvider) (*Logger, error) {
	return newLogger(cfg, otelProvider, os.Stdout)
}

func newLogger(cfg *Config, otelProvider log.LoggerProvider, out io.Writer) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var cores []zapcore.Core
	if cfg.Stdout {
		enc, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.RedactKeys, cfg.RedactPatterns)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(out), cfg.Level))
	}
	if cfg.OTEL && otelProvider != nil {
		cores = append(cores, otelzap.NewCore("expertd", otelzap.WithLoggerProvider(otelProvider)))
	}
	if len(cores) == 0 {
		return nil, errors.New("no log output available")
	}

	core := newSampledCore(zapcore.NewTee(cores...), cfg.Sampling)
	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))

	if len(cfg.Fields) > 0 {
		fields := make([]zap.Field, 0, len(cfg.Fields))
		for k, v := range cfg.Fields {
			fields = append(fields, zap.String(k, v))
		}
		z = z.With(fields...)
	}
	return &Logger{zap: z}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// Wrap adapts an existing zap logger. A nil logger yields a no-op Logger.
func Wrap(z *zap.Logger) *Logger {
	if z == nil {
		return NewNop()
	}
	return &Logger{zap: z}
}

func newEncoder(format string) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "console" {
		return zapcore.NewConsoleEncoder(encCfg)
	}
	return zapcore.NewJSONEncoder(encCfg)
}

func (l *Logger) Trace(ctx context.Context, msg string, fields ...zap.Field) {
	if ce := l.zap.Check(TraceLevel, msg); ce != nil {
		ce.Write(append(ContextFields(ctx), fields...)...)
	}
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Debug(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Info(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Warn(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Error(msg, append(ContextFields(ctx), fields...)...)
}

// With returns a child logger with fields attached.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zap: l.zap.With(fields...)}
}

// Named returns a child logger with name appended.
func (l *Logger) Named(name string) *Logger {
	return &Logger{zap: l.zap.Named(name)}
}

// Enabled reports whether level is enabled.
func (l *Logger) Enabled(level zapcore.Level) bool {
	return l.zap.Core().Enabled(level)
}

// Underlying returns the zap logger for components that take *zap.Logger.
func (l *Logger) Underlying() *zap.Logger {
	return l.zap
}

// Sync flushes buffered entries. EINVAL and ENOTTY from syncing a terminal
// are ignored.
func (l *Logger) Sync() error {
	err := l.zap.Sync()
	var errno syscall.Errno
	if errors.As(err, &errno) && (errno == syscall.EINVAL || errno == syscall.ENOTTY) {
		return nil
	}
	return err
}
