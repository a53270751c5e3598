package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullSet() *EntitySet {
	sex := SexMale
	return &EntitySet{
		Breed:               Ptr("Ross 308"),
		BreedType:           Ptr("broiler"),
		BreedConfidence:     0.9,
		Sex:                 &sex,
		SexConfidence:       0.8,
		AgeDays:             Ptr(21),
		AgeWeeks:            Ptr(3.0),
		AgeConfidence:       0.85,
		WeightGrams:         Ptr(850.0),
		WeightConfidence:    0.7,
		MortalityRate:       Ptr(2.5),
		MortalityConfidence: 0.6,
		Temperature:         Ptr(31.0),
		FlockSize:           Ptr(12000),
		HousingType:         Ptr("closed"),
		Symptoms:            []string{"coughing", "diarrhea"},
		PreviousTreatments:  []string{"amoxicillin"},
		LastUpdated:         time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		ExtractionMethod:    MethodLLM,
		DataValidated:       true,
		OverallConfidence:   0.75,
	}
}

func TestMerge_SelfIsIdentity(t *testing.T) {
	e := fullSet()
	assert.Equal(t, e, Merge(e, e))
	assert.Equal(t, &EntitySet{}, Merge(&EntitySet{}, &EntitySet{}))
}

func TestMerge_WeightConfidencePrecedence(t *testing.T) {
	a := &EntitySet{WeightGrams: Ptr(850.0), WeightConfidence: 0.9}
	b := &EntitySet{WeightGrams: Ptr(1200.0), WeightConfidence: 0.3}

	assert.Equal(t, 850.0, *Merge(a, b).WeightGrams)
	assert.Equal(t, 850.0, *Merge(b, a).WeightGrams)
	assert.Equal(t, 0.9, Merge(b, a).WeightConfidence)
}

func TestMerge_TieGoesToIncoming(t *testing.T) {
	a := &EntitySet{Breed: Ptr("Ross 308"), BreedConfidence: 0.8}
	b := &EntitySet{Breed: Ptr("Cobb 500"), BreedConfidence: 0.8}

	assert.Equal(t, "Cobb 500", *Merge(a, b).Breed)
	assert.Equal(t, "Ross 308", *Merge(b, a).Breed)
}

func TestMerge_AgeMovesAsUnit(t *testing.T) {
	existing := &EntitySet{AgeDays: Ptr(21), AgeWeeks: Ptr(3.0), AgeConfidence: 0.6}
	incoming := &EntitySet{AgeWeeks: Ptr(5.0), AgeConfidence: 0.9}

	got := Merge(existing, incoming)
	assert.Nil(t, got.AgeDays)
	assert.Equal(t, 5.0, *got.AgeWeeks)
	assert.Equal(t, 0.9, got.AgeConfidence)
}

func TestMerge_FillsAbsentFields(t *testing.T) {
	existing := &EntitySet{Breed: Ptr("Ross 308"), BreedConfidence: 0.9}
	incoming := &EntitySet{AgeDays: Ptr(14), AgeConfidence: 0.4, Temperature: Ptr(29.0)}

	got := Merge(existing, incoming)
	assert.Equal(t, "Ross 308", *got.Breed)
	assert.Equal(t, 14, *got.AgeDays)
	assert.Equal(t, 29.0, *got.Temperature)
}

func TestMerge_UnconfidentFieldsPreferIncoming(t *testing.T) {
	existing := &EntitySet{Temperature: Ptr(31.0), HousingType: Ptr("open")}
	incoming := &EntitySet{Temperature: Ptr(33.0)}

	got := Merge(existing, incoming)
	assert.Equal(t, 33.0, *got.Temperature)
	assert.Equal(t, "open", *got.HousingType)
}

func TestMerge_SetsUnion(t *testing.T) {
	existing := &EntitySet{Symptoms: []string{"diarrhea", "coughing"}}
	incoming := &EntitySet{Symptoms: []string{"Coughing", "lethargy"}}

	assert.Equal(t, []string{"coughing", "diarrhea", "lethargy"}, Merge(existing, incoming).Symptoms)
}

func TestMerge_LaterTimestampWins(t *testing.T) {
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	assert.Equal(t, late, Merge(&EntitySet{LastUpdated: late}, &EntitySet{LastUpdated: early}).LastUpdated)
	assert.Equal(t, late, Merge(&EntitySet{LastUpdated: early}, &EntitySet{LastUpdated: late}).LastUpdated)
}

func TestMerge_InputsUntouched(t *testing.T) {
	a := fullSet()
	b := &EntitySet{Breed: Ptr("Cobb 500"), BreedConfidence: 0.95, Symptoms: []string{"lethargy"}}
	aCopy, bCopy := a.Clone(), b.Clone()

	got := Merge(a, b)
	got.Symptoms[0] = "mutated"
	*got.Breed = "mutated"

	assert.Equal(t, aCopy, a)
	assert.Equal(t, bCopy, b)
}

func TestMerge_Nil(t *testing.T) {
	e := fullSet()
	got := Merge(nil, e)
	require.NotNil(t, got)
	assert.Equal(t, e, got)
	assert.NotSame(t, e, got)

	assert.Equal(t, e, Merge(e, nil))
	assert.True(t, Merge(nil, nil).IsEmpty())
}

func TestMerge_MethodAndValidation(t *testing.T) {
	a := &EntitySet{ExtractionMethod: MethodHeuristic, DataValidated: true}
	b := &EntitySet{ExtractionMethod: MethodLLM, DataValidated: false}

	got := Merge(a, b)
	assert.Equal(t, MethodMerged, got.ExtractionMethod)
	assert.False(t, got.DataValidated)
}
