package sufficiency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dominicdesy/intelia-expert/internal/entities"
	"github.com/dominicdesy/intelia-expert/internal/llm"
)

func answer(text string, err error) llm.Generator {
	return llm.GeneratorFunc(func(context.Context, string, ...llm.Option) (string, error) {
		return text, err
	})
}

func TestClassify_Heuristic(t *testing.T) {
	c := NewClassifier(nil, 0, nil)

	tests := []struct {
		name     string
		question string
		language string
		want     Status
	}{
		{"breed sex and age", "Weight for Ross 308 male at 21 days", "en", Sufficient},
		{"context free weight", "What's the normal weight?", "en", Insufficient},
		{"breed only", "Quel poids pour des Cobb 500 ?", "fr", Sufficient},
		{"age only", "Poids normal à 35 jours ?", "fr", Sufficient},
		{"disease", "How do I treat coccidiosis?", "en", Sufficient},
		{"symptom", "Mis pollos tienen diarrea", "es", Sufficient},
		{"context free fcr", "Quel est l'indice de consommation normal ?", "fr", Insufficient},
		{"general", "Hello there", "en", Sufficient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := c.Classify(context.Background(), tt.question, tt.language, nil)
			assert.Equal(t, tt.want, r.Status)
			assert.Equal(t, MethodHeuristic, r.Method)
			if tt.want == Insufficient {
				assert.NotEmpty(t, r.ClarificationQuestions)
			}
		})
	}
}

func TestClassify_InsufficientAsksForBreedAndAge(t *testing.T) {
	r := NewClassifier(nil, 0, nil).Classify(context.Background(), "What's the normal weight?", "en", nil)

	require.Equal(t, Insufficient, r.Status)
	assert.Equal(t, []entities.Field{entities.FieldBreed, entities.FieldAgeDays, entities.FieldSex}, r.MissingContext)
	require.Len(t, r.ClarificationQuestions, 3)
	assert.Contains(t, r.ClarificationQuestions[0], "breed")
	assert.Contains(t, r.ClarificationQuestions[1], "old")
}

func TestClassify_UsesConsolidatedEntities(t *testing.T) {
	consolidated := entities.New(entities.MethodHeuristic)
	consolidated.Breed = entities.Ptr("Ross 308")
	consolidated.BreedConfidence = 0.9
	consolidated.AgeDays = entities.Ptr(21)
	consolidated.AgeConfidence = 0.9

	r := NewClassifier(nil, 0, nil).Classify(context.Background(), "Quel est le poids normal ?", "fr", consolidated)
	assert.Equal(t, Sufficient, r.Status)
	assert.Equal(t, "Quel est le poids normal ? (Ross 308, 21 jours)", r.EnrichedQuery)
}

func TestClassify_LLM(t *testing.T) {
	t.Run("sufficient", func(t *testing.T) {
		c := NewClassifier(answer(`{"status": "SUFFICIENT", "reason": "breed given"}`, nil), time.Second, nil)
		r := c.Classify(context.Background(), "Ross 308 weight", "en", nil)
		assert.Equal(t, Sufficient, r.Status)
		assert.Equal(t, MethodLLM, r.Method)
		assert.Equal(t, "breed given", r.Reason)
	})

	t.Run("insufficient with model questions", func(t *testing.T) {
		c := NewClassifier(answer("Sure! ```json\n{\"status\": \"insufficient\", \"missing\": [\"race\", \"age\"],"+
			" \"questions\": [\"Quelle race ?\", \"Quel âge ?\"]}\n```", nil), time.Second, nil)
		r := c.Classify(context.Background(), "Quel est le poids normal ?", "fr", nil)
		assert.Equal(t, Insufficient, r.Status)
		assert.Equal(t, MethodLLM, r.Method)
		assert.Equal(t, []entities.Field{entities.FieldBreed, entities.FieldAgeDays}, r.MissingContext)
		assert.Equal(t, []string{"Quelle race ?", "Quel âge ?"}, r.ClarificationQuestions)
	})

	t.Run("insufficient without questions uses templates", func(t *testing.T) {
		c := NewClassifier(answer(`{"status": "INSUFFICIENT"}`, nil), time.Second, nil)
		r := c.Classify(context.Background(), "¿Cuál es el peso normal?", "es", nil)
		assert.Equal(t, Insufficient, r.Status)
		require.NotEmpty(t, r.ClarificationQuestions)
		assert.Contains(t, r.ClarificationQuestions[0], "raza")
	})

	t.Run("generous override", func(t *testing.T) {
		c := NewClassifier(answer(`{"status": "INSUFFICIENT", "missing": ["sex"]}`, nil), time.Second, nil)
		r := c.Classify(context.Background(), "Weight of Cobb 500 at 42 days", "en", nil)
		assert.Equal(t, Sufficient, r.Status)
		assert.Equal(t, MethodLLM, r.Method)
		assert.Empty(t, r.ClarificationQuestions)
	})
}

func TestClassify_LLMFailureFallsBack(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	tests := []struct {
		name string
		gen  llm.Generator
	}{
		{"service error", answer("", &llm.ServiceError{Kind: llm.KindTimeout, Backend: "test", Err: context.DeadlineExceeded})},
		{"garbage", answer("I cannot help with that", nil)},
		{"unknown status", answer(`{"status": "MAYBE"}`, nil)},
		{"plain error", answer("", errors.New("boom"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(tt.gen, time.Second, zap.New(core))
			r := c.Classify(context.Background(), "Weight for Ross 308 male at 21 days", "en", nil)
			assert.Equal(t, Sufficient, r.Status)
			assert.Equal(t, MethodHeuristic, r.Method)
		})
	}
	assert.Equal(t, len(tests), logs.FilterMessage("llm sufficiency analysis failed, using keywords").Len())
}

func TestClassify_LLMTimeout(t *testing.T) {
	slow := llm.GeneratorFunc(func(ctx context.Context, _ string, _ ...llm.Option) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	r := NewClassifier(slow, 10*time.Millisecond, nil).Classify(context.Background(), "What's the normal weight?", "en", nil)
	assert.Equal(t, Insufficient, r.Status)
	assert.Equal(t, MethodHeuristic, r.Method)
}
