// Package llm provides the text-generation capability used for entity
// extraction, sufficiency analysis and answer drafting.
//
// Backends implement Generator. Every error a backend returns is, or wraps,
// a *ServiceError whose Kind tells callers whether it was a timeout, a rate
// limit or any other API failure; callers fall back instead of retrying
// indefinitely. Resilient adds rate limiting, a per-call timeout and bounded
// retries around any Generator.
package llm

import (
	"context"
	"time"
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts ...Option) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, opts ...Option) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	return f(ctx, prompt, opts...)
}

// Options are the per-call settings a backend honours.
type Options struct {
	System      string
	Temperature float64
	MaxTokens   int
	JSON        bool
	Timeout     time.Duration
}

// Option sets a per-call setting.
type Option func(*Options)

// WithSystem sets the system instruction.
func WithSystem(s string) Option { return func(o *Options) { o.System = s } }

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option { return func(o *Options) { o.Temperature = t } }

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option { return func(o *Options) { o.MaxTokens = n } }

// WithJSON asks the backend for a JSON object answer.
func WithJSON() Option { return func(o *Options) { o.JSON = true } }

// WithTimeout bounds the call. Resilient applies it per attempt.
func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }

// Apply folds opts over defaults.
func Apply(defaults Options, opts ...Option) Options {
	o := defaults
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
