package entities

import (
	"sort"
	"strings"
	"time"
)

// rawAliases maps alternate keys found in extractor output to field names.
var rawAliases = map[string]Field{
	"race":            FieldBreed,
	"souche":          FieldBreed,
	"strain":          FieldBreed,
	"raza":            FieldBreed,
	"type":            FieldBreedType,
	"bird_type":       FieldBreedType,
	"gender":          FieldSex,
	"sexe":            FieldSex,
	"sexo":            FieldSex,
	"age_in_days":     FieldAgeDays,
	"days":            FieldAgeDays,
	"age_in_weeks":    FieldAgeWeeks,
	"weeks":           FieldAgeWeeks,
	"weight":          FieldWeight,
	"poids":           FieldWeight,
	"peso":            FieldWeight,
	"weight_g":        FieldWeight,
	"mortality":       FieldMortality,
	"mortalite":       FieldMortality,
	"mortalidad":      FieldMortality,
	"temperature_c":   FieldTemperature,
	"flock":           FieldFlockSize,
	"number_of_birds": FieldFlockSize,
	"fcr":             FieldFeedConversion,
	"housing":         FieldHousingType,
	"ventilation":     FieldVentilation,
	"severity":        FieldSeverity,
	"urgency":         FieldUrgency,
	"treatments":      FieldTreatments,
	"symptom":         FieldSymptoms,
}

// confidenceFields lists the fields that carry a paired confidence.
var confidenceFields = map[Field]func(e *EntitySet) *float64{
	FieldBreed:     func(e *EntitySet) *float64 { return &e.BreedConfidence },
	FieldSex:       func(e *EntitySet) *float64 { return &e.SexConfidence },
	FieldAgeDays:   func(e *EntitySet) *float64 { return &e.AgeConfidence },
	FieldAgeWeeks:  func(e *EntitySet) *float64 { return &e.AgeConfidence },
	FieldWeight:    func(e *EntitySet) *float64 { return &e.WeightConfidence },
	FieldMortality: func(e *EntitySet) *float64 { return &e.MortalityConfidence },
}

// defaultRawConfidence is assigned to a confidence-paired field that arrives
// without an explicit confidence.
const defaultRawConfidence = 0.5

// FromRaw decodes loosely typed extractor output into a validated EntitySet.
// Values that cannot be coerced are dropped and reported; decoding never
// fails as a whole.
//
// Keys are applied in a fixed order: canonical field names first, then
// aliases sorted by name. A scalar field or a confidence set by an earlier
// key is not overwritten by a later one, so output naming the same field
// twice always decodes the same way.
func FromRaw(raw map[string]any, method Method) (*EntitySet, []Issue) {
	e := New(method)
	var issues []Issue
	assigned := map[Field]bool{}
	explicitConf := map[Field]bool{}
	confidence := func(name string, v any) {
		f, ok := resolveField(name, nil)
		if !ok || explicitConf[f] {
			return
		}
		if setConfidence(e, f, v) {
			explicitConf[f] = true
		}
	}

	for _, key := range rawKeys(raw) {
		v := raw[key]
		k := strings.ToLower(strings.TrimSpace(key))
		if v == nil {
			continue
		}
		if k == "confidence" {
			switch c := v.(type) {
			case map[string]any:
				for _, name := range rawKeys(c) {
					confidence(name, c[name])
				}
			default:
				if f, ok := CoerceFloat(c); ok {
					e.OverallConfidence = f
				}
			}
			continue
		}
		if name, ok := strings.CutSuffix(k, "_confidence"); ok {
			confidence(name, v)
			continue
		}
		f, ok := resolveField(k, v)
		if !ok {
			continue
		}
		scalar := f != FieldSymptoms && f != FieldTreatments
		if scalar && assigned[f] {
			continue
		}
		if issue, ok := assign(e, f, v); !ok {
			issues = append(issues, issue)
			continue
		}
		assigned[f] = true
	}

	for f, conf := range confidenceFields {
		if explicitConf[f] {
			continue
		}
		if present(e, f) && *conf(e) == 0 {
			*conf(e) = defaultRawConfidence
		}
	}

	issues = append(issues, Validate(e)...)
	return e, issues
}

// rawKeys returns the keys of raw, canonical field names first, then the
// rest, each group sorted.
func rawKeys(raw map[string]any) []string {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	rank := func(key string) int {
		k := strings.ToLower(strings.TrimSpace(key))
		k = strings.TrimSuffix(k, "_confidence")
		if _, ok := assigners[Field(k)]; ok {
			return 0
		}
		return 1
	}
	sort.Slice(keys, func(i, j int) bool {
		if ri, rj := rank(keys[i]), rank(keys[j]); ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// resolveField maps a raw key to its field. The bare "age" key resolves by
// the unit in its value: weeks when it says so, days otherwise.
func resolveField(name string, v any) (Field, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "age" {
		return ageField(v), true
	}
	if f, ok := rawAliases[name]; ok {
		return f, true
	}
	f := Field(name)
	if _, ok := assigners[f]; ok {
		return f, true
	}
	return "", false
}

var weekUnits = []string{"week", "wk", "sem"}

func ageField(v any) Field {
	s, ok := v.(string)
	if !ok {
		return FieldAgeDays
	}
	s = strings.ToLower(s)
	for _, unit := range weekUnits {
		if strings.Contains(s, unit) {
			return FieldAgeWeeks
		}
	}
	return FieldAgeDays
}

func setConfidence(e *EntitySet, f Field, v any) bool {
	get, ok := confidenceFields[f]
	if !ok {
		return false
	}
	c, ok := CoerceFloat(v)
	if !ok {
		return false
	}
	*get(e) = c
	return true
}

func present(e *EntitySet, f Field) bool {
	switch f {
	case FieldBreed:
		return e.Breed != nil
	case FieldSex:
		return e.Sex != nil
	case FieldAgeDays, FieldAgeWeeks:
		return e.HasAge()
	case FieldWeight:
		return e.WeightGrams != nil
	case FieldMortality:
		return e.MortalityRate != nil
	}
	return false
}

type assigner func(e *EntitySet, v any) bool

func floatInto(dst func(e *EntitySet) **float64) assigner {
	return func(e *EntitySet, v any) bool {
		f, ok := CoerceFloat(v)
		if ok {
			*dst(e) = &f
		}
		return ok
	}
}

func intInto(dst func(e *EntitySet) **int) assigner {
	return func(e *EntitySet, v any) bool {
		i, ok := CoerceInt(v)
		if ok {
			*dst(e) = &i
		}
		return ok
	}
}

func stringInto(dst func(e *EntitySet) **string) assigner {
	return func(e *EntitySet, v any) bool {
		s, ok := coerceString(v)
		if ok {
			*dst(e) = &s
		}
		return ok
	}
}

func listInto(dst func(e *EntitySet) *[]string) assigner {
	return func(e *EntitySet, v any) bool {
		var items []string
		switch l := v.(type) {
		case []string:
			items = l
		case []any:
			for _, it := range l {
				if s, ok := coerceString(it); ok {
					items = append(items, s)
				}
			}
		case string:
			items = strings.Split(l, ",")
		default:
			return false
		}
		*dst(e) = append(*dst(e), items...)
		return true
	}
}

var assigners = map[Field]assigner{
	FieldBreed:     stringInto(func(e *EntitySet) **string { return &e.Breed }),
	FieldBreedType: stringInto(func(e *EntitySet) **string { return &e.BreedType }),
	FieldSex: func(e *EntitySet, v any) bool {
		s, ok := coerceString(v)
		if !ok {
			return false
		}
		sex, ok := ParseSex(s)
		if ok {
			e.Sex = &sex
		}
		return ok
	},
	FieldAgeDays:          intInto(func(e *EntitySet) **int { return &e.AgeDays }),
	FieldAgeWeeks:         floatInto(func(e *EntitySet) **float64 { return &e.AgeWeeks }),
	FieldWeight:           floatInto(func(e *EntitySet) **float64 { return &e.WeightGrams }),
	FieldMortality:        floatInto(func(e *EntitySet) **float64 { return &e.MortalityRate }),
	FieldTemperature:      floatInto(func(e *EntitySet) **float64 { return &e.Temperature }),
	FieldHumidity:         floatInto(func(e *EntitySet) **float64 { return &e.Humidity }),
	FieldFlockSize:        intInto(func(e *EntitySet) **int { return &e.FlockSize }),
	FieldGrowthRate:       floatInto(func(e *EntitySet) **float64 { return &e.GrowthRate }),
	FieldFeedConversion:   floatInto(func(e *EntitySet) **float64 { return &e.FeedConversion }),
	FieldWaterConsumption: floatInto(func(e *EntitySet) **float64 { return &e.WaterConsumption }),
	FieldHousingType:      stringInto(func(e *EntitySet) **string { return &e.HousingType }),
	FieldVentilation:      stringInto(func(e *EntitySet) **string { return &e.VentilationLevel }),
	FieldFeedType:         stringInto(func(e *EntitySet) **string { return &e.FeedType }),
	FieldSeverity:         stringInto(func(e *EntitySet) **string { return &e.ProblemSeverity }),
	FieldUrgency:          stringInto(func(e *EntitySet) **string { return &e.InterventionUrgency }),
	FieldSymptoms:         listInto(func(e *EntitySet) *[]string { return &e.Symptoms }),
	FieldTreatments:       listInto(func(e *EntitySet) *[]string { return &e.PreviousTreatments }),
}

func assign(e *EntitySet, f Field, v any) (Issue, bool) {
	a, ok := assigners[f]
	if !ok || !a(e, v) {
		return coercionFailure(f, v), false
	}
	return Issue{}, true
}

// Touch stamps LastUpdated with the current time.
func (e *EntitySet) Touch() {
	e.LastUpdated = time.Now().UTC()
}
