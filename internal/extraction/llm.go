package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dominicdesy/intelia-expert/internal/entities"
	"github.com/dominicdesy/intelia-expert/internal/llm"
)

// ErrNoGenerator is returned by an LLMExtractor built without a generator.
var ErrNoGenerator = errors.New("extraction: no generator configured")

const extractionSystemPrompt = `You extract structured facts from poultry farmers' messages.
Answer with a single JSON object and nothing else. Omit fields the message does not state.`

const extractionPrompt = `Message (language: %s):
"""
%s
"""

Return a JSON object with any of these keys:
breed, breed_type (broiler|layer|breeder), sex (male|female|mixed), age_days, age_weeks,
weight_grams, mortality_rate (percent), temperature (celsius), humidity (percent),
flock_size, growth_rate (g/day), feed_conversion, water_consumption, housing_type,
ventilation_level, feed_type, problem_severity, intervention_urgency,
symptoms (list of English labels), previous_treatments (list),
and "confidence": an object mapping breed, sex, age_days, weight_grams, mortality_rate to a
score between 0 and 1.`

// LLMExtractor implements Extractor by asking a Generator for JSON.
type LLMExtractor struct {
	gen    llm.Generator
	logger *zap.Logger
}

// NewLLMExtractor returns an extractor over gen. A nil logger is replaced
// with a no-op.
func NewLLMExtractor(gen llm.Generator, logger *zap.Logger) *LLMExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMExtractor{gen: gen, logger: logger}
}

// Extract implements Extractor.
func (x *LLMExtractor) Extract(ctx context.Context, text, language string) (*entities.EntitySet, error) {
	if x.gen == nil {
		return nil, ErrNoGenerator
	}
	if language == "" {
		language = "fr"
	}

	out, err := x.gen.Generate(ctx, fmt.Sprintf(extractionPrompt, language, strings.TrimSpace(text)),
		llm.WithSystem(extractionSystemPrompt),
		llm.WithTemperature(0),
		llm.WithJSON(),
	)
	if err != nil {
		return nil, fmt.Errorf("llm extraction: %w", err)
	}

	var raw map[string]any
	if err := llm.DecodeJSONObject(out, &raw); err != nil {
		return nil, fmt.Errorf("llm extraction: %w", err)
	}

	set, issues := entities.FromRaw(raw, entities.MethodLLM)
	for _, issue := range issues {
		x.logger.Debug("extraction issue", zap.Stringer("issue", issue))
	}
	return set, nil
}

var _ Extractor = (*LLMExtractor)(nil)
