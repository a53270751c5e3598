package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dominicdesy/intelia-expert/internal/entities"
)

func TestHeuristicExtractor_French(t *testing.T) {
	h := NewHeuristicExtractor(nil, nil, nil)

	e, err := h.Extract(context.Background(), "Mes Ross 308 de 21 jours pèsent 850 g, mortalité de 2,5 %", "fr")
	require.NoError(t, err)

	require.NotNil(t, e.Breed)
	assert.Equal(t, "Ross 308", *e.Breed)
	assert.Equal(t, "broiler", *e.BreedType)
	assert.InDelta(t, 0.95, e.BreedConfidence, 1e-9)
	require.NotNil(t, e.AgeDays)
	assert.Equal(t, 21, *e.AgeDays)
	assert.InDelta(t, 3.0, *e.AgeWeeks, 1e-9)
	require.NotNil(t, e.WeightGrams)
	assert.InDelta(t, 850.0, *e.WeightGrams, 1e-9)
	require.NotNil(t, e.MortalityRate)
	assert.InDelta(t, 2.5, *e.MortalityRate, 1e-9)
	assert.Nil(t, e.Sex)
	assert.Equal(t, entities.MethodHeuristic, e.ExtractionMethod)
	assert.True(t, e.DataValidated)
}

func TestHeuristicExtractor_English(t *testing.T) {
	h := NewHeuristicExtractor(nil, nil, nil)

	e, err := h.Extract(context.Background(), "My 35 day old Cobb 500 males weigh 2.1 kg, temperature 31°C", "en")
	require.NoError(t, err)

	assert.Equal(t, "Cobb 500", *e.Breed)
	require.NotNil(t, e.Sex)
	assert.Equal(t, entities.SexMale, *e.Sex)
	assert.Equal(t, 35, *e.AgeDays)
	assert.InDelta(t, 2100.0, *e.WeightGrams, 1e-9)
	require.NotNil(t, e.Temperature)
	assert.InDelta(t, 31.0, *e.Temperature, 1e-9)
}

func TestHeuristicExtractor_Spanish(t *testing.T) {
	h := NewHeuristicExtractor(nil, nil, nil)

	e, err := h.Extract(context.Background(),
		"Pollos de engorde de 3 semanas con diarrea y tos, 10.000 aves, mortalidad 4%", "es")
	require.NoError(t, err)

	assert.Nil(t, e.Breed)
	require.NotNil(t, e.BreedType)
	assert.Equal(t, "broiler", *e.BreedType)
	require.NotNil(t, e.AgeWeeks)
	assert.InDelta(t, 3.0, *e.AgeWeeks, 1e-9)
	assert.Equal(t, 21, *e.AgeDays)
	assert.Contains(t, e.Symptoms, "diarrhea")
	assert.Contains(t, e.Symptoms, "coughing")
	require.NotNil(t, e.FlockSize)
	assert.Equal(t, 10000, *e.FlockSize)
	assert.InDelta(t, 4.0, *e.MortalityRate, 1e-9)
}

func TestHeuristicExtractor_Sex(t *testing.T) {
	h := NewHeuristicExtractor(nil, nil, nil)

	tests := []struct {
		text string
		want entities.Sex
		conf float64
	}{
		{"a mixed flock", entities.SexMixed, 0.9},
		{"lot de femelles", entities.SexFemale, 0.9},
		{"machos de 20 días", entities.SexMale, 0.9},
		{"males and females together", entities.SexMixed, 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			e, err := h.Extract(context.Background(), tt.text, "")
			require.NoError(t, err)
			require.NotNil(t, e.Sex)
			assert.Equal(t, tt.want, *e.Sex)
			assert.InDelta(t, tt.conf, e.SexConfidence, 1e-9)
		})
	}
}

func TestHeuristicExtractor_Conversions(t *testing.T) {
	h := NewHeuristicExtractor(nil, nil, nil)

	t.Run("fahrenheit", func(t *testing.T) {
		e, err := h.Extract(context.Background(), "house at 88 °F", "en")
		require.NoError(t, err)
		require.NotNil(t, e.Temperature)
		assert.InDelta(t, 31.1, *e.Temperature, 0.1)
	})

	t.Run("growth rate is not a weight", func(t *testing.T) {
		e, err := h.Extract(context.Background(), "gaining 55 g/day, FCR 1.6, humidity 70%", "en")
		require.NoError(t, err)
		require.NotNil(t, e.GrowthRate)
		assert.InDelta(t, 55.0, *e.GrowthRate, 1e-9)
		assert.Nil(t, e.WeightGrams)
		require.NotNil(t, e.FeedConversion)
		assert.InDelta(t, 1.6, *e.FeedConversion, 1e-9)
		require.NotNil(t, e.Humidity)
		assert.InDelta(t, 70.0, *e.Humidity, 1e-9)
	})
}

func TestHeuristicExtractor_BreedWordBoundary(t *testing.T) {
	h := NewHeuristicExtractor(nil, nil, nil)

	e, err := h.Extract(context.Background(), "coughing across the house", "en")
	require.NoError(t, err)
	assert.Nil(t, e.Breed)
	assert.Equal(t, []string{"coughing"}, e.Symptoms)

	e, err = h.Extract(context.Background(), "my ross birds", "en")
	require.NoError(t, err)
	require.NotNil(t, e.Breed)
	assert.Equal(t, "Ross 308", *e.Breed)
	assert.InDelta(t, 0.6, e.BreedConfidence, 1e-9)
}

func TestHeuristicExtractor_NoFacts(t *testing.T) {
	h := NewHeuristicExtractor(nil, nil, nil)

	e, err := h.Extract(context.Background(), "Bonjour, j'ai un problème", "fr")
	require.NoError(t, err)
	assert.True(t, e.IsEmpty())
}

func TestHeuristicExtractor_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHeuristicExtractor(nil, nil, nil).Extract(ctx, "Ross 308", "en")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewHeuristicExtractor_SkipsInvalidPatterns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	h := NewHeuristicExtractor([]Breed{
		{Name: "broken", Regex: "("},
		{Name: "Sasso", Type: "broiler", Regex: "sasso", Confidence: 0.8},
	}, []Symptom{}, zap.New(core))

	skipped := logs.FilterMessage("skipping breed pattern").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, "broken", skipped[0].ContextMap()["breed"])

	assert.Len(t, h.breeds, 1)
	assert.Empty(t, h.symptoms)

	e, err := h.Extract(context.Background(), "Sasso chicks", "en")
	require.NoError(t, err)
	assert.Equal(t, "Sasso", *e.Breed)
}

func TestHeuristicExtractor_LogsIssues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := NewHeuristicExtractor(nil, nil, zap.New(core))

	e, err := h.Extract(context.Background(), "Ross 308, 150% mortality since yesterday", "en")
	require.NoError(t, err)
	require.NotNil(t, e.MortalityRate)
	assert.InDelta(t, 100.0, *e.MortalityRate, 1e-9)

	issues := logs.FilterMessage("extraction issue").All()
	require.NotEmpty(t, issues)
	assert.Contains(t, issues[0].ContextMap()["issue"], "mortality_rate")
}
