package entities

import "math"

// Thresholds used by the correction rules.
const (
	maxPlausibleWeightGrams = 5000.0
	minKilogramWeight       = 0.1
	maxKilogramWeight       = 10.0
	maxCelsius              = 100.0
	ageWeekTolerance        = 0.5
	trustedAgeConfidence    = 0.7
)

// rule corrects one aspect of an EntitySet and reports what it changed.
type rule func(e *EntitySet) []Issue

// rules run in order but each inspects the set on its own; a rule that finds
// nothing to do returns nil.
var rules = []rule{
	dropNonFinite,
	clampConfidences,
	dropNegatives,
	correctWeightUnit,
	correctTemperatureUnit,
	clampMortality,
	clampHumidity,
	reconcileAge,
	normalizeSets,
}

// Validate coerces an EntitySet into range and returns the corrections made.
// It is idempotent: a set already marked DataValidated is returned untouched,
// so corrections such as the weight unit fix never run twice.
func Validate(e *EntitySet) []Issue {
	if e == nil || e.DataValidated {
		return nil
	}
	var issues []Issue
	for _, r := range rules {
		issues = append(issues, r(e)...)
	}
	e.DataValidated = true
	return issues
}

func dropNonFinite(e *EntitySet) []Issue {
	var issues []Issue
	check := func(f Field, p **float64) {
		if *p != nil && !isFinite(**p) {
			issues = append(issues, coercionFailure(f, **p))
			*p = nil
		}
	}
	check(FieldAgeWeeks, &e.AgeWeeks)
	check(FieldWeight, &e.WeightGrams)
	check(FieldMortality, &e.MortalityRate)
	check(FieldTemperature, &e.Temperature)
	check(FieldHumidity, &e.Humidity)
	check(FieldGrowthRate, &e.GrowthRate)
	check(FieldFeedConversion, &e.FeedConversion)
	check(FieldWaterConsumption, &e.WaterConsumption)
	return issues
}

func clampConfidences(e *EntitySet) []Issue {
	var issues []Issue
	clamp := func(f Field, c *float64) {
		v := *c
		switch {
		case !isFinite(v):
			*c = 0
		case v < 0:
			*c = 0
		case v > 1:
			*c = 1
		default:
			return
		}
		issues = append(issues, warning(f, "confidence clamped", v, *c))
	}
	clamp(FieldBreed, &e.BreedConfidence)
	clamp(FieldSex, &e.SexConfidence)
	clamp(FieldAgeDays, &e.AgeConfidence)
	clamp(FieldWeight, &e.WeightConfidence)
	clamp(FieldMortality, &e.MortalityConfidence)
	if !isFinite(e.OverallConfidence) || e.OverallConfidence < 0 {
		e.OverallConfidence = 0
	} else if e.OverallConfidence > 1 {
		e.OverallConfidence = 1
	}
	return issues
}

// dropNegatives removes quantities that cannot be negative.
func dropNegatives(e *EntitySet) []Issue {
	var issues []Issue
	if e.AgeDays != nil && *e.AgeDays < 0 {
		issues = append(issues, warning(FieldAgeDays, "negative age dropped", *e.AgeDays, nil))
		e.AgeDays = nil
	}
	if e.AgeWeeks != nil && *e.AgeWeeks < 0 {
		issues = append(issues, warning(FieldAgeWeeks, "negative age dropped", *e.AgeWeeks, nil))
		e.AgeWeeks = nil
	}
	if e.WeightGrams != nil && *e.WeightGrams <= 0 {
		issues = append(issues, warning(FieldWeight, "non-positive weight dropped", *e.WeightGrams, nil))
		e.WeightGrams = nil
	}
	if e.FlockSize != nil && *e.FlockSize < 0 {
		issues = append(issues, warning(FieldFlockSize, "negative flock size dropped", *e.FlockSize, nil))
		e.FlockSize = nil
	}
	return issues
}

// correctWeightUnit fixes kilogram/gram mix-ups. Values above 5000 g are
// read as a gram figure reported with three extra zeros; values between
// 0.1 and 10 are read as kilograms.
func correctWeightUnit(e *EntitySet) []Issue {
	if e.WeightGrams == nil {
		return nil
	}
	w := *e.WeightGrams
	var corrected float64
	switch {
	case w > maxPlausibleWeightGrams:
		corrected = w / 1000
	case w > minKilogramWeight && w < maxKilogramWeight:
		corrected = w * 1000
	default:
		return nil
	}
	e.WeightGrams = &corrected
	return []Issue{warning(FieldWeight, "weight unit corrected", w, corrected)}
}

func correctTemperatureUnit(e *EntitySet) []Issue {
	if e.Temperature == nil || *e.Temperature <= maxCelsius {
		return nil
	}
	t := *e.Temperature
	c := round1((t - 32) * 5 / 9)
	e.Temperature = &c
	return []Issue{warning(FieldTemperature, "fahrenheit converted to celsius", t, c)}
}

func clampMortality(e *EntitySet) []Issue {
	return clampPercent(FieldMortality, &e.MortalityRate)
}

func clampHumidity(e *EntitySet) []Issue {
	return clampPercent(FieldHumidity, &e.Humidity)
}

func clampPercent(f Field, p **float64) []Issue {
	if *p == nil {
		return nil
	}
	v := **p
	var c float64
	switch {
	case v < 0:
		c = 0
	case v > 100:
		c = 100
	default:
		return nil
	}
	*p = &c
	return []Issue{warning(f, "percentage clamped", v, c)}
}

// reconcileAge keeps days and weeks consistent. When both are present and
// disagree by more than half a week, days win if the age confidence is above
// 0.7; otherwise weeks win. A lone value derives its counterpart.
func reconcileAge(e *EntitySet) []Issue {
	switch {
	case e.AgeDays != nil && e.AgeWeeks != nil:
		days, weeks := *e.AgeDays, *e.AgeWeeks
		if math.Abs(float64(days)/7-weeks) <= ageWeekTolerance {
			return nil
		}
		if e.AgeConfidence > trustedAgeConfidence {
			w := round1(float64(days) / 7)
			e.AgeWeeks = &w
			return []Issue{warning(FieldAgeWeeks, "age weeks recomputed from days", weeks, w)}
		}
		d := int(math.Round(weeks * 7))
		e.AgeDays = &d
		return []Issue{warning(FieldAgeDays, "age days recomputed from weeks", days, d)}
	case e.AgeDays != nil:
		w := round1(float64(*e.AgeDays) / 7)
		e.AgeWeeks = &w
	case e.AgeWeeks != nil:
		d := int(math.Round(*e.AgeWeeks * 7))
		e.AgeDays = &d
	}
	return nil
}

func normalizeSets(e *EntitySet) []Issue {
	e.Symptoms = normalizeSet(e.Symptoms)
	e.PreviousTreatments = normalizeSet(e.PreviousTreatments)
	return nil
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
