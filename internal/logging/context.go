package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type (
	conversationCtxKey struct{}
	userCtxKey         struct{}
	requestCtxKey      struct{}
	loggerCtxKey       struct{}
)

// maxIDLen caps ids copied into log entries.
const maxIDLen = 128

// ContextFields returns the correlation fields found in ctx.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 6)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := ConversationIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("conversation.id", id))
	}
	if id := UserIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("user.id", id))
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	return fields
}

func truncateID(id string) string {
	if len(id) > maxIDLen {
		return id[:maxIDLen]
	}
	return id
}

func stringValue(ctx context.Context, key any) string {
	s, _ := ctx.Value(key).(string)
	return s
}

// WithConversationID stores the conversation id for log correlation.
func WithConversationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, conversationCtxKey{}, truncateID(id))
}

// ConversationIDFromContext returns the stored conversation id, or "".
func ConversationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, conversationCtxKey{})
}

// WithUserID stores the user id for log correlation.
func WithUserID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, userCtxKey{}, truncateID(id))
}

// UserIDFromContext returns the stored user id, or "".
func UserIDFromContext(ctx context.Context) string {
	return stringValue(ctx, userCtxKey{})
}

// WithRequestID stores the request id for log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, truncateID(id))
}

// RequestIDFromContext returns the stored request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestCtxKey{})
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return NewNop()
}
