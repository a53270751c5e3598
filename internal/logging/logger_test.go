package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dominicdesy/intelia-expert/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_JSONToWriter(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false
	var buf bytes.Buffer

	logger, err := newLogger(cfg, nil, &buf)
	require.NoError(t, err)

	ctx := WithConversationID(context.Background(), "conv-1")
	logger.Info(ctx, "answer generated", zap.Int("docs", 3))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "answer generated", entry["msg"])
	assert.Equal(t, "conv-1", entry["conversation.id"])
	assert.Equal(t, "expertd", entry["service"])
	assert.EqualValues(t, 3, entry["docs"])
}

func TestNewLogger_Redaction(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false
	var buf bytes.Buffer

	logger, err := newLogger(cfg, nil, &buf)
	require.NoError(t, err)

	logger.With(zap.String("api_key", "abc123")).Info(context.Background(), "calling llm",
		zap.String("authorization", "Bearer xyz"),
		zap.String("note", "key sk-abcdefghijklmnopqrstu used"),
		Secret("llm_key", config.Secret("sk-123")),
	)

	out := buf.String()
	assert.NotContains(t, out, "abc123")
	assert.NotContains(t, out, "xyz")
	assert.NotContains(t, out, "sk-abcdefghijklmnopqrstu")
	assert.NotContains(t, out, "sk-123")
	assert.Contains(t, out, "[REDACTED:6]")
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	_, err := NewLogger(cfg, nil)
	require.Error(t, err)

	cfg = NewDefaultConfig()
	cfg.Stdout = false
	_, err = NewLogger(cfg, nil)
	require.Error(t, err)
}

func TestLogger_Levels(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	tl.Trace(ctx, "prompt dump")
	tl.Debug(ctx, "cache hit")
	tl.Info(ctx, "request processed")
	tl.Warn(ctx, "tier failed")
	tl.Error(ctx, "all tiers failed")

	tl.AssertLogged(t, TraceLevel, "prompt dump")
	tl.AssertLogged(t, zapcore.DebugLevel, "cache hit")
	tl.AssertLogged(t, zapcore.InfoLevel, "request processed")
	tl.AssertLogged(t, zapcore.WarnLevel, "tier failed")
	tl.AssertLogged(t, zapcore.ErrorLevel, "all tiers failed")
	tl.AssertNotLogged(t, zapcore.ErrorLevel, "request processed")
	assert.Len(t, tl.All(), 5)
}

func TestContextFields(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})

	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = WithConversationID(ctx, "conv-9")
	ctx = WithUserID(ctx, "farmer-1")
	ctx = WithRequestID(ctx, strings.Repeat("r", 300))

	tl := NewTestLogger()
	tl.Info(ctx, "hello")

	tl.AssertField(t, "hello", "trace_id", traceID.String())
	tl.AssertField(t, "hello", "span_id", spanID.String())
	tl.AssertField(t, "hello", "conversation.id", "conv-9")
	tl.AssertField(t, "hello", "user.id", "farmer-1")
	assert.Len(t, RequestIDFromContext(ctx), maxIDLen)

	assert.Empty(t, ContextFields(context.Background()))
	assert.Equal(t, context.Background(), WithUserID(context.Background(), ""))
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	FromContext(ctx).Info(ctx, "via context")
	tl.AssertLogged(t, zapcore.InfoLevel, "via context")
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, l)

	l, err = ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings(config.LoggingConfig{Level: "debug", Format: "console", Sampling: false})
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.False(t, cfg.Sampling.Enabled)

	_, err = FromSettings(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestSampledCore_ErrorsNeverSampled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sampling.Initial = 1
	cfg.Sampling.Thereafter = 0
	var buf bytes.Buffer
	logger, err := newLogger(cfg, nil, &buf)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		logger.Info(context.Background(), "repeated")
		logger.Error(context.Background(), "failure")
	}
	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, `"repeated"`))
	assert.Equal(t, 5, strings.Count(out, `"failure"`))
}
