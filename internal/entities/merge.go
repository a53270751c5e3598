package entities

// Merge fuses incoming into existing and returns a new EntitySet. Neither
// input is modified.
//
// Confidence-paired fields keep the value with the strictly greater
// confidence; ties go to incoming, so Merge is not commutative and callers
// must merge in arrival order. Age days and weeks move as one unit, and the
// breed type travels with the breed. Symptoms and treatments are unioned as
// sorted sets. The later LastUpdated wins. Every other field takes incoming
// when present.
func Merge(existing, incoming *EntitySet) *EntitySet {
	switch {
	case existing == nil && incoming == nil:
		return &EntitySet{}
	case existing == nil:
		return incoming.Clone()
	case incoming == nil:
		return existing.Clone()
	}

	out := existing.Clone()
	in := incoming.Clone()

	if pick(existing.Breed != nil, existing.BreedConfidence, incoming.Breed != nil, incoming.BreedConfidence) {
		out.Breed, out.BreedConfidence = in.Breed, in.BreedConfidence
		if in.BreedType != nil {
			out.BreedType = in.BreedType
		}
	} else if out.BreedType == nil {
		out.BreedType = in.BreedType
	}

	if pick(existing.Sex != nil, existing.SexConfidence, incoming.Sex != nil, incoming.SexConfidence) {
		out.Sex, out.SexConfidence = in.Sex, in.SexConfidence
	}

	if pick(existing.HasAge(), existing.AgeConfidence, incoming.HasAge(), incoming.AgeConfidence) {
		out.AgeDays, out.AgeWeeks, out.AgeConfidence = in.AgeDays, in.AgeWeeks, in.AgeConfidence
	}

	if pick(existing.WeightGrams != nil, existing.WeightConfidence, incoming.WeightGrams != nil, incoming.WeightConfidence) {
		out.WeightGrams, out.WeightConfidence = in.WeightGrams, in.WeightConfidence
	}

	if pick(existing.MortalityRate != nil, existing.MortalityConfidence, incoming.MortalityRate != nil, incoming.MortalityConfidence) {
		out.MortalityRate, out.MortalityConfidence = in.MortalityRate, in.MortalityConfidence
	}

	out.Temperature = prefer(in.Temperature, out.Temperature)
	out.Humidity = prefer(in.Humidity, out.Humidity)
	out.FlockSize = prefer(in.FlockSize, out.FlockSize)
	out.GrowthRate = prefer(in.GrowthRate, out.GrowthRate)
	out.FeedConversion = prefer(in.FeedConversion, out.FeedConversion)
	out.WaterConsumption = prefer(in.WaterConsumption, out.WaterConsumption)
	out.HousingType = prefer(in.HousingType, out.HousingType)
	out.VentilationLevel = prefer(in.VentilationLevel, out.VentilationLevel)
	out.FeedType = prefer(in.FeedType, out.FeedType)
	out.ProblemSeverity = prefer(in.ProblemSeverity, out.ProblemSeverity)
	out.InterventionUrgency = prefer(in.InterventionUrgency, out.InterventionUrgency)

	out.Symptoms = normalizeSet(append(out.Symptoms, in.Symptoms...))
	out.PreviousTreatments = normalizeSet(append(out.PreviousTreatments, in.PreviousTreatments...))

	if incoming.LastUpdated.After(existing.LastUpdated) {
		out.LastUpdated = incoming.LastUpdated
	}
	if existing.ExtractionMethod != incoming.ExtractionMethod && incoming.ExtractionMethod != "" {
		if existing.ExtractionMethod == "" {
			out.ExtractionMethod = incoming.ExtractionMethod
		} else {
			out.ExtractionMethod = MethodMerged
		}
	}
	if incoming.OverallConfidence > out.OverallConfidence {
		out.OverallConfidence = incoming.OverallConfidence
	}
	out.DataValidated = existing.DataValidated && incoming.DataValidated
	return out
}

// pick reports whether the incoming side of a confidence-paired field should
// replace the existing side.
func pick(hasExisting bool, confExisting float64, hasIncoming bool, confIncoming float64) bool {
	if !hasIncoming {
		return false
	}
	if !hasExisting {
		return true
	}
	return confIncoming >= confExisting
}

func prefer[T any](incoming, existing *T) *T {
	if incoming != nil {
		return incoming
	}
	return existing
}
