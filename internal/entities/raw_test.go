package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRaw(t *testing.T) {
	raw := map[string]any{
		"breed":          "Ross 308",
		"sex":            "mâles",
		"age_days":       "21 jours",
		"weight":         "0.8 kg",
		"mortality_rate": 150,
		"confidence": map[string]any{
			"breed": 0.95,
			"age":   "0.9",
		},
		"weight_confidence": 0.7,
		"symptoms":          []any{"Diarrhea", "coughing", 3},
		"flock_size":        "twelve thousand",
		"unknown_key":       "ignored",
	}

	e, issues := FromRaw(raw, MethodLLM)
	require.NotNil(t, e)

	assert.Equal(t, "Ross 308", *e.Breed)
	assert.Equal(t, 0.95, e.BreedConfidence)
	assert.Equal(t, SexMale, *e.Sex)
	assert.Equal(t, 0.5, e.SexConfidence)
	assert.Equal(t, 21, *e.AgeDays)
	assert.Equal(t, 3.0, *e.AgeWeeks)
	assert.Equal(t, 0.9, e.AgeConfidence)
	assert.Equal(t, 800.0, *e.WeightGrams)
	assert.Equal(t, 100.0, *e.MortalityRate)
	assert.Equal(t, []string{"3", "coughing", "diarrhea"}, e.Symptoms)
	assert.Nil(t, e.FlockSize)
	assert.True(t, e.DataValidated)
	assert.Equal(t, MethodLLM, e.ExtractionMethod)

	var dropped []Field
	for _, is := range issues {
		if is.Kind == CoercionFailure {
			dropped = append(dropped, is.Field)
		}
	}
	assert.Equal(t, []Field{FieldFlockSize}, dropped)
}

func TestFromRaw_Empty(t *testing.T) {
	e, issues := FromRaw(nil, MethodHeuristic)
	require.NotNil(t, e)
	assert.True(t, e.IsEmpty())
	assert.Empty(t, issues)
}

func TestFromRaw_UnknownSexDropped(t *testing.T) {
	e, issues := FromRaw(map[string]any{"sex": "unknown"}, MethodLLM)
	assert.Nil(t, e.Sex)
	require.Len(t, issues, 1)
	assert.Equal(t, FieldSex, issues[0].Field)
}

func TestEntitySet_Helpers(t *testing.T) {
	e := fullSet()
	assert.Equal(t, "Ross 308, male, 21 days, 850 g, 2.5% mortality, 31°C, 12000 birds, symptoms: coughing, diarrhea", e.Summary())

	hc := e.HighConfidence(0.75)
	assert.Equal(t, map[Field]string{
		FieldBreed:   "Ross 308",
		FieldSex:     "male",
		FieldAgeDays: "21",
	}, hc)

	snap := e.Snapshot()
	assert.Equal(t, "Ross 308", snap["breed"])
	assert.Equal(t, 850.0, snap["weight_grams"])
	assert.Equal(t, true, snap["data_validated"])

	assert.True(t, (&EntitySet{}).IsEmpty())
	assert.False(t, e.IsEmpty())
	assert.Equal(t, "", (*EntitySet)(nil).Summary())
}

func TestFromRaw_DuplicateKeysAreDeterministic(t *testing.T) {
	tests := []struct {
		name  string
		raw   map[string]any
		check func(t *testing.T, e *EntitySet)
	}{
		{
			name: "canonical weight beats alias",
			raw:  map[string]any{"weight": "2000", "weight_grams": "1500"},
			check: func(t *testing.T, e *EntitySet) {
				require.NotNil(t, e.WeightGrams)
				assert.Equal(t, 1500.0, *e.WeightGrams)
			},
		},
		{
			name: "canonical breed beats aliases",
			raw:  map[string]any{"race": "Cobb 500", "strain": "Hubbard", "breed": "Ross 308"},
			check: func(t *testing.T, e *EntitySet) {
				require.NotNil(t, e.Breed)
				assert.Equal(t, "Ross 308", *e.Breed)
			},
		},
		{
			name: "aliases resolve in name order",
			raw:  map[string]any{"race": "Cobb 500", "strain": "Hubbard"},
			check: func(t *testing.T, e *EntitySet) {
				require.NotNil(t, e.Breed)
				assert.Equal(t, "Cobb 500", *e.Breed)
			},
		},
		{
			name: "canonical age days beats bare age",
			raw:  map[string]any{"age": "35", "age_days": 21},
			check: func(t *testing.T, e *EntitySet) {
				require.NotNil(t, e.AgeDays)
				assert.Equal(t, 21, *e.AgeDays)
			},
		},
		{
			name: "canonical confidence beats alias confidence",
			raw:  map[string]any{"weight_grams": 1500, "weight_grams_confidence": 0.9, "weight_confidence": 0.2},
			check: func(t *testing.T, e *EntitySet) {
				assert.Equal(t, 0.9, e.WeightConfidence)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 100; i++ {
				e, _ := FromRaw(tt.raw, MethodLLM)
				tt.check(t, e)
			}
		})
	}
}

func TestFromRaw_AgeUnits(t *testing.T) {
	tests := []struct {
		value     any
		wantDays  int
		wantWeeks float64
	}{
		{value: "3 weeks", wantDays: 21, wantWeeks: 3},
		{value: "3 semaines", wantDays: 21, wantWeeks: 3},
		{value: "2 semanas", wantDays: 14, wantWeeks: 2},
		{value: "21 jours", wantDays: 21, wantWeeks: 3},
		{value: 14, wantDays: 14, wantWeeks: 2},
	}
	for _, tt := range tests {
		e, _ := FromRaw(map[string]any{"age": tt.value}, MethodLLM)
		require.NotNil(t, e.AgeDays, "%v", tt.value)
		require.NotNil(t, e.AgeWeeks, "%v", tt.value)
		assert.Equal(t, tt.wantDays, *e.AgeDays, "%v", tt.value)
		assert.InDelta(t, tt.wantWeeks, *e.AgeWeeks, 1e-9, "%v", tt.value)
	}
}
