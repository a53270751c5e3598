package logging

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dominicdesy/intelia-expert/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const redacted = "[REDACTED]"

// Secret logs a config.Secret as its length only.
func Secret(key string, val config.Secret) zap.Field {
	return zap.String(key, fmt.Sprintf("[REDACTED:%d]", len(val.Value())))
}

// RedactingEncoder masks values whose key is sensitive or whose string value
// matches a sensitive pattern.
type RedactingEncoder struct {
	zapcore.Encoder
	keys     map[string]struct{}
	patterns []*regexp.Regexp
}

// NewRedactingEncoder wraps base. Keys match case-insensitively.
func NewRedactingEncoder(base zapcore.Encoder, keys, patterns []string) (*RedactingEncoder, error) {
	enc := &RedactingEncoder{Encoder: base, keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		enc.keys[strings.ToLower(k)] = struct{}{}
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		enc.patterns = append(enc.patterns, re)
	}
	return enc, nil
}

func (e *RedactingEncoder) sensitive(key string) bool {
	_, ok := e.keys[strings.ToLower(key)]
	return ok
}

func (e *RedactingEncoder) AddString(key, val string) {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return
	}
	for _, re := range e.patterns {
		if re.MatchString(val) {
			e.Encoder.AddString(key, re.ReplaceAllString(val, redacted))
			return
		}
	}
	e.Encoder.AddString(key, val)
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return
	}
	e.Encoder.AddByteString(key, val)
}

func (e *RedactingEncoder) AddReflected(key string, val any) error {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

// EncodeEntry routes per-entry fields through the redacting Add methods; the
// wrapped encoder would otherwise encode them directly.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	c := e.Clone().(*RedactingEncoder)
	for _, f := range fields {
		f.AddTo(c)
	}
	return c.Encoder.EncodeEntry(ent, nil)
}

func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{Encoder: e.Encoder.Clone(), keys: e.keys, patterns: e.patterns}
}
