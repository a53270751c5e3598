package entities

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Sex is the sex of a flock.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
	SexMixed  Sex = "mixed"
)

// sexAliases maps the words farmers use (en/fr/es) to a Sex.
var sexAliases = map[string]Sex{
	"male":         SexMale,
	"males":        SexMale,
	"m":            SexMale,
	"cock":         SexMale,
	"cockerel":     SexMale,
	"cockerels":    SexMale,
	"rooster":      SexMale,
	"mâle":         SexMale,
	"mâles":        SexMale,
	"coq":          SexMale,
	"coqs":         SexMale,
	"macho":        SexMale,
	"machos":       SexMale,
	"female":       SexFemale,
	"females":      SexFemale,
	"f":            SexFemale,
	"hen":          SexFemale,
	"hens":         SexFemale,
	"pullet":       SexFemale,
	"pullets":      SexFemale,
	"femelle":      SexFemale,
	"femelles":     SexFemale,
	"poule":        SexFemale,
	"poules":       SexFemale,
	"hembra":       SexFemale,
	"hembras":      SexFemale,
	"mixed":        SexMixed,
	"mixte":        SexMixed,
	"mixtes":       SexMixed,
	"mixto":        SexMixed,
	"as hatched":   SexMixed,
	"as-hatched":   SexMixed,
	"straight run": SexMixed,
}

// ParseSex normalizes a free-text sex value.
func ParseSex(s string) (Sex, bool) {
	sex, ok := sexAliases[strings.ToLower(strings.TrimSpace(s))]
	return sex, ok
}

// Method records how an EntitySet was produced.
type Method string

const (
	MethodHeuristic Method = "heuristic"
	MethodLLM       Method = "llm"
	MethodMerged    Method = "merged"
	MethodManual    Method = "manual"
)

// Field names an EntitySet field. Values match the JSON keys.
type Field string

const (
	FieldBreed            Field = "breed"
	FieldBreedType        Field = "breed_type"
	FieldSex              Field = "sex"
	FieldAgeDays          Field = "age_days"
	FieldAgeWeeks         Field = "age_weeks"
	FieldWeight           Field = "weight_grams"
	FieldMortality        Field = "mortality_rate"
	FieldTemperature      Field = "temperature"
	FieldHumidity         Field = "humidity"
	FieldFlockSize        Field = "flock_size"
	FieldGrowthRate       Field = "growth_rate"
	FieldFeedConversion   Field = "feed_conversion"
	FieldWaterConsumption Field = "water_consumption"
	FieldHousingType      Field = "housing_type"
	FieldVentilation      Field = "ventilation_level"
	FieldFeedType         Field = "feed_type"
	FieldSeverity         Field = "problem_severity"
	FieldUrgency          Field = "intervention_urgency"
	FieldSymptoms         Field = "symptoms"
	FieldTreatments       Field = "previous_treatments"
)

// EntitySet is a partially populated record of domain facts. Nil pointers
// are absent values.
type EntitySet struct {
	Breed           *string `json:"breed,omitempty"`
	BreedType       *string `json:"breed_type,omitempty"`
	BreedConfidence float64 `json:"breed_confidence,omitempty"`

	Sex           *Sex    `json:"sex,omitempty"`
	SexConfidence float64 `json:"sex_confidence,omitempty"`

	// AgeDays and AgeWeeks share AgeConfidence and move together on merge.
	AgeDays       *int     `json:"age_days,omitempty"`
	AgeWeeks      *float64 `json:"age_weeks,omitempty"`
	AgeConfidence float64  `json:"age_confidence,omitempty"`

	WeightGrams      *float64 `json:"weight_grams,omitempty"`
	WeightConfidence float64  `json:"weight_confidence,omitempty"`

	MortalityRate       *float64 `json:"mortality_rate,omitempty"`
	MortalityConfidence float64  `json:"mortality_confidence,omitempty"`

	Temperature      *float64 `json:"temperature,omitempty"`
	Humidity         *float64 `json:"humidity,omitempty"`
	FlockSize        *int     `json:"flock_size,omitempty"`
	GrowthRate       *float64 `json:"growth_rate,omitempty"`
	FeedConversion   *float64 `json:"feed_conversion,omitempty"`
	WaterConsumption *float64 `json:"water_consumption,omitempty"`

	HousingType         *string `json:"housing_type,omitempty"`
	VentilationLevel    *string `json:"ventilation_level,omitempty"`
	FeedType            *string `json:"feed_type,omitempty"`
	ProblemSeverity     *string `json:"problem_severity,omitempty"`
	InterventionUrgency *string `json:"intervention_urgency,omitempty"`

	Symptoms           []string `json:"symptoms,omitempty"`
	PreviousTreatments []string `json:"previous_treatments,omitempty"`

	LastUpdated       time.Time `json:"last_updated"`
	ExtractionMethod  Method    `json:"extraction_method,omitempty"`
	DataValidated     bool      `json:"data_validated"`
	OverallConfidence float64   `json:"confidence_overall,omitempty"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// New returns an empty EntitySet stamped with the current time.
func New(method Method) *EntitySet {
	return &EntitySet{
		LastUpdated:      time.Now().UTC(),
		ExtractionMethod: method,
	}
}

// IsEmpty reports whether no fact is present.
func (e *EntitySet) IsEmpty() bool {
	if e == nil {
		return true
	}
	return e.Breed == nil && e.BreedType == nil && e.Sex == nil &&
		e.AgeDays == nil && e.AgeWeeks == nil && e.WeightGrams == nil &&
		e.MortalityRate == nil && e.Temperature == nil && e.Humidity == nil &&
		e.FlockSize == nil && e.GrowthRate == nil && e.FeedConversion == nil &&
		e.WaterConsumption == nil && e.HousingType == nil && e.VentilationLevel == nil &&
		e.FeedType == nil && e.ProblemSeverity == nil && e.InterventionUrgency == nil &&
		len(e.Symptoms) == 0 && len(e.PreviousTreatments) == 0
}

// Clone returns a deep copy.
func (e *EntitySet) Clone() *EntitySet {
	if e == nil {
		return nil
	}
	c := *e
	c.Breed = clonePtr(e.Breed)
	c.BreedType = clonePtr(e.BreedType)
	c.Sex = clonePtr(e.Sex)
	c.AgeDays = clonePtr(e.AgeDays)
	c.AgeWeeks = clonePtr(e.AgeWeeks)
	c.WeightGrams = clonePtr(e.WeightGrams)
	c.MortalityRate = clonePtr(e.MortalityRate)
	c.Temperature = clonePtr(e.Temperature)
	c.Humidity = clonePtr(e.Humidity)
	c.FlockSize = clonePtr(e.FlockSize)
	c.GrowthRate = clonePtr(e.GrowthRate)
	c.FeedConversion = clonePtr(e.FeedConversion)
	c.WaterConsumption = clonePtr(e.WaterConsumption)
	c.HousingType = clonePtr(e.HousingType)
	c.VentilationLevel = clonePtr(e.VentilationLevel)
	c.FeedType = clonePtr(e.FeedType)
	c.ProblemSeverity = clonePtr(e.ProblemSeverity)
	c.InterventionUrgency = clonePtr(e.InterventionUrgency)
	c.Symptoms = cloneStrings(e.Symptoms)
	c.PreviousTreatments = cloneStrings(e.PreviousTreatments)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// HasAge reports whether either age representation is present.
func (e *EntitySet) HasAge() bool {
	return e != nil && (e.AgeDays != nil || e.AgeWeeks != nil)
}

// Fact is one displayable field value.
type Fact struct {
	Field      Field
	Value      string
	Confidence float64
}

// Facts returns the confidence-paired facts whose confidence is at least
// minConfidence, followed by every present symptom. Order is stable.
func (e *EntitySet) Facts(minConfidence float64) []Fact {
	if e == nil {
		return nil
	}
	var facts []Fact
	add := func(f Field, present bool, value func() string, conf float64) {
		if present && conf >= minConfidence {
			facts = append(facts, Fact{Field: f, Value: value(), Confidence: conf})
		}
	}
	add(FieldBreed, e.Breed != nil, func() string { return *e.Breed }, e.BreedConfidence)
	add(FieldSex, e.Sex != nil, func() string { return string(*e.Sex) }, e.SexConfidence)
	add(FieldAgeDays, e.AgeDays != nil, func() string { return strconv.Itoa(*e.AgeDays) }, e.AgeConfidence)
	add(FieldWeight, e.WeightGrams != nil, func() string { return formatFloat(*e.WeightGrams) }, e.WeightConfidence)
	add(FieldMortality, e.MortalityRate != nil, func() string { return formatFloat(*e.MortalityRate) }, e.MortalityConfidence)
	if len(e.Symptoms) > 0 {
		facts = append(facts, Fact{Field: FieldSymptoms, Value: strings.Join(e.Symptoms, ", "), Confidence: 1})
	}
	return facts
}

// Summary renders the present facts as a compact phrase, e.g.
// "Ross 308, male, 21 days, 850 g".
func (e *EntitySet) Summary() string {
	if e.IsEmpty() {
		return ""
	}
	var parts []string
	if e.Breed != nil {
		parts = append(parts, *e.Breed)
	}
	if e.Sex != nil {
		parts = append(parts, string(*e.Sex))
	}
	if e.AgeDays != nil {
		parts = append(parts, fmt.Sprintf("%d days", *e.AgeDays))
	} else if e.AgeWeeks != nil {
		parts = append(parts, fmt.Sprintf("%s weeks", formatFloat(*e.AgeWeeks)))
	}
	if e.WeightGrams != nil {
		parts = append(parts, formatFloat(*e.WeightGrams)+" g")
	}
	if e.MortalityRate != nil {
		parts = append(parts, formatFloat(*e.MortalityRate)+"% mortality")
	}
	if e.Temperature != nil {
		parts = append(parts, formatFloat(*e.Temperature)+"°C")
	}
	if e.FlockSize != nil {
		parts = append(parts, fmt.Sprintf("%d birds", *e.FlockSize))
	}
	if len(e.Symptoms) > 0 {
		parts = append(parts, "symptoms: "+strings.Join(e.Symptoms, ", "))
	}
	return strings.Join(parts, ", ")
}

// Snapshot returns a flat map of present fields for diagnostics and
// logging. It never fails; values that cannot be represented are skipped.
func (e *EntitySet) Snapshot() map[string]any {
	out := map[string]any{}
	if e == nil {
		return out
	}
	putStr := func(f Field, p *string) {
		if p != nil {
			out[string(f)] = *p
		}
	}
	putFloat := func(f Field, p *float64) {
		if p != nil && isFinite(*p) {
			out[string(f)] = *p
		}
	}
	putInt := func(f Field, p *int) {
		if p != nil {
			out[string(f)] = *p
		}
	}
	putStr(FieldBreed, e.Breed)
	putStr(FieldBreedType, e.BreedType)
	if e.Sex != nil {
		out[string(FieldSex)] = string(*e.Sex)
	}
	putInt(FieldAgeDays, e.AgeDays)
	putFloat(FieldAgeWeeks, e.AgeWeeks)
	putFloat(FieldWeight, e.WeightGrams)
	putFloat(FieldMortality, e.MortalityRate)
	putFloat(FieldTemperature, e.Temperature)
	putFloat(FieldHumidity, e.Humidity)
	putInt(FieldFlockSize, e.FlockSize)
	putFloat(FieldGrowthRate, e.GrowthRate)
	putFloat(FieldFeedConversion, e.FeedConversion)
	putFloat(FieldWaterConsumption, e.WaterConsumption)
	putStr(FieldHousingType, e.HousingType)
	putStr(FieldVentilation, e.VentilationLevel)
	putStr(FieldFeedType, e.FeedType)
	putStr(FieldSeverity, e.ProblemSeverity)
	putStr(FieldUrgency, e.InterventionUrgency)
	if len(e.Symptoms) > 0 {
		out[string(FieldSymptoms)] = cloneStrings(e.Symptoms)
	}
	if len(e.PreviousTreatments) > 0 {
		out[string(FieldTreatments)] = cloneStrings(e.PreviousTreatments)
	}
	if e.ExtractionMethod != "" {
		out["extraction_method"] = string(e.ExtractionMethod)
	}
	out["data_validated"] = e.DataValidated
	return out
}

// normalizeSet lower-cases, trims, de-duplicates and sorts a string set.
// Insertion order is not preserved.
func normalizeSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		seen[v] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// HighConfidence returns display values for the confidence-paired fields at
// or above threshold, keyed by field.
func (e *EntitySet) HighConfidence(threshold float64) map[Field]string {
	out := map[Field]string{}
	for _, f := range e.Facts(threshold) {
		if f.Field == FieldSymptoms {
			continue
		}
		out[f.Field] = f.Value
	}
	return out
}
