package extraction

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/dominicdesy/intelia-expert/internal/entities"
)

// word wraps alternatives so they only match whole words. RE2's \b is
// ASCII-only, which breaks on accented words like "mâles".
func word(alternatives string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\pL\pN])(?:` + alternatives + `)(?:[^\pL\pN]|$)`)
}

const number = `(\d+(?:[.,]\d+)?)`

var (
	reAgeDays     = regexp.MustCompile(`(?i)(\d{1,3})\s*-?\s*(?:days?|jours?|días?|dias?|j|d)(?:[^\pL]|$)`)
	reDayPrefix   = regexp.MustCompile(`(?i)(?:^|[^\pL])(?:day|jour|día|dia|j|d)\s*-?\s*(\d{1,3})(?:[^\pN]|$)`)
	reAgeWeeks    = regexp.MustCompile(`(?i)` + number + `\s*-?\s*(?:weeks?|semaines?|semanas?|wks?|sem)(?:[^\pL]|$)`)
	reGrowth      = regexp.MustCompile(`(?i)` + number + `\s*g\s*/\s*(?:day|jour|día|dia|j|d)(?:[^\pL]|$)`)
	reWeight      = regexp.MustCompile(`(?i)` + number + `\s*(kgs?|kilos?|kilogram(?:me)?s?|kilogramos?|g|gr|grams?|grammes?|gramos?)(?:[^\pL/]|$)`)
	reMortality   = regexp.MustCompile(`(?i)(?:^|[^\pL])(?:mortality|mortalit[ée]|mortalidad)[^\d%]{0,25}` + number + `\s*%`)
	reMortality2  = regexp.MustCompile(`(?i)` + number + `\s*%\s*(?:of\s+)?(?:mortality|de mortalit[ée]|mortalit[ée]|de mortalidad|mortalidad|dead|morts|muertos)`)
	reTemperature = regexp.MustCompile(`(?i)(-?\d+(?:[.,]\d+)?)\s*(?:°|º|degrees?|degr[ée]s|grados?)\s*(celsius|fahrenheit|c|f)?`)
	reHumidity    = regexp.MustCompile(`(?i)(?:^|[^\pL])(?:humidity|humidit[ée]|humedad|rh|hr)[^\d%]{0,15}` + number + `\s*%`)
	reHumidity2   = regexp.MustCompile(`(?i)` + number + `\s*%\s*(?:of\s+)?(?:humidity|d'humidit[ée]|humidit[ée]|de humedad|humedad|rh|hr)`)
	reFlockSize   = regexp.MustCompile(`(?i)(\d{1,3}(?:[\s.,]\d{3})+|\d+)\s*(?:birds|chickens|broilers|hens|layers|poulets|oiseaux|sujets|volailles|têtes|aves|pollos|gallinas)`)
	reFCR         = regexp.MustCompile(`(?i)(?:^|[^\pL])(?:fcr|ic|feed conversion(?: ratio)?|indice de consommation|conversion alimentaire|índice de conversión|conversión alimenticia)\s*(?:of|de|is|est|es|=|:)?\s*(\d(?:[.,]\d{1,3})?)`)

	reMale   = word(`males?|mâles?|machos?|cockerels?|roosters?|coqs?|coquelets?`)
	reFemale = word(`females?|femelles?|hembras?|hens?|poules?|pullets?|poulettes?|pollitas?`)
	reMixed  = word(`mixed|mixtes?|mixtos?|as[\s-]hatched|straight[\s-]run|sexes? mélangés`)

	breedTypeWords = []struct {
		kind string
		re   *regexp.Regexp
	}{
		{"broiler", word(`broilers?|poulets? de chair|pollos? de engorde|parrilleros?`)},
		{"layer", word(`layers?|laying hens|pondeuses?|ponedoras?`)},
		{"breeder", word(`breeders?|reproducteurs?|reproductrices?|reproductoras?|parent stock`)},
	}

	housingWords = []struct {
		kind string
		re   *regexp.Regexp
	}{
		{"cage", word(`cages?|caged|jaulas?`)},
		{"free-range", word(`free[\s-]range|plein air|aire libre|pastoreo`)},
		{"floor", word(`litter|floor|au sol|litière|piso|cama`)},
	}
)

type compiledBreed struct {
	Breed
	re *regexp.Regexp
}

type compiledSymptom struct {
	Symptom
	re *regexp.Regexp
}

// HeuristicExtractor implements Extractor using pattern matching. It never
// fails and needs no external service.
type HeuristicExtractor struct {
	breeds   []compiledBreed
	symptoms []compiledSymptom
	logger   *zap.Logger
}

// NewHeuristicExtractor compiles the catalogs. Nil catalogs use the
// defaults; invalid patterns are logged and skipped.
func NewHeuristicExtractor(breeds []Breed, symptoms []Symptom, logger *zap.Logger) *HeuristicExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if breeds == nil {
		breeds = DefaultBreeds()
	}
	if symptoms == nil {
		symptoms = DefaultSymptoms()
	}
	h := &HeuristicExtractor{logger: logger}
	for _, b := range breeds {
		re, err := regexp.Compile(`(?i)(?:^|[^\pL\pN])(?:` + b.Regex + `)(?:[^\pL\pN]|$)`)
		if err != nil {
			logger.Warn("skipping breed pattern", zap.String("breed", b.Name), zap.Error(err))
			continue
		}
		h.breeds = append(h.breeds, compiledBreed{Breed: b, re: re})
	}
	for _, s := range symptoms {
		re, err := regexp.Compile(`(?i)(?:^|[^\pL\pN])(?:` + s.Regex + `)`)
		if err != nil {
			logger.Warn("skipping symptom pattern", zap.String("symptom", s.Name), zap.Error(err))
			continue
		}
		h.symptoms = append(h.symptoms, compiledSymptom{Symptom: s, re: re})
	}
	return h
}

// Extract implements Extractor.
func (h *HeuristicExtractor) Extract(ctx context.Context, text, _ string) (*entities.EntitySet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	set, issues := entities.FromRaw(h.Raw(text), entities.MethodHeuristic)
	for _, issue := range issues {
		h.logger.Debug("extraction issue", zap.Stringer("issue", issue))
	}
	return set, nil
}

// Raw returns the loosely typed extraction, in the shape FromRaw decodes.
func (h *HeuristicExtractor) Raw(text string) map[string]any {
	raw := map[string]any{}
	conf := map[string]any{}

	for _, b := range h.breeds {
		if b.re.MatchString(text) {
			raw["breed"] = b.Name
			raw["breed_type"] = b.Type
			conf["breed"] = b.Confidence
			break
		}
	}
	if _, ok := raw["breed_type"]; !ok {
		for _, w := range breedTypeWords {
			if w.re.MatchString(text) {
				raw["breed_type"] = w.kind
				break
			}
		}
	}

	if sex, c, ok := matchSex(text); ok {
		raw["sex"] = string(sex)
		conf["sex"] = c
	}

	if m := reAgeDays.FindStringSubmatch(text); m != nil {
		raw["age_days"] = m[1]
		conf["age_days"] = 0.9
	} else if m := reDayPrefix.FindStringSubmatch(text); m != nil {
		raw["age_days"] = m[1]
		conf["age_days"] = 0.85
	}
	if m := reAgeWeeks.FindStringSubmatch(text); m != nil {
		raw["age_weeks"] = decimal(m[1])
		if _, ok := conf["age_days"]; !ok {
			conf["age_weeks"] = 0.85
		}
	}

	rest := text
	if m := reGrowth.FindStringSubmatch(rest); m != nil {
		raw["growth_rate"] = decimal(m[1])
		rest = reGrowth.ReplaceAllString(rest, " ")
	}
	if m := reWeight.FindStringSubmatch(rest); m != nil {
		if g, ok := grams(m[1], m[2]); ok {
			raw["weight_grams"] = g
			conf["weight_grams"] = 0.85
		}
	}

	if m := firstMatch(text, reMortality, reMortality2); m != nil {
		raw["mortality_rate"] = decimal(m[1])
		conf["mortality_rate"] = 0.85
	}
	if m := reTemperature.FindStringSubmatch(text); m != nil {
		if t, ok := celsius(m[1], m[2]); ok {
			raw["temperature"] = t
		}
	}
	if m := firstMatch(text, reHumidity, reHumidity2); m != nil {
		raw["humidity"] = decimal(m[1])
	}
	if m := reFlockSize.FindStringSubmatch(text); m != nil {
		raw["flock_size"] = strings.NewReplacer(" ", "", ".", "", ",", "").Replace(m[1])
	}
	if m := reFCR.FindStringSubmatch(text); m != nil {
		raw["feed_conversion"] = decimal(m[1])
	}

	for _, w := range housingWords {
		if w.re.MatchString(text) {
			raw["housing_type"] = w.kind
			break
		}
	}

	var symptoms []string
	for _, s := range h.symptoms {
		if s.re.MatchString(text) {
			symptoms = append(symptoms, s.Name)
		}
	}
	if len(symptoms) > 0 {
		raw["symptoms"] = symptoms
	}

	if len(conf) > 0 {
		raw["confidence"] = conf
	}
	return raw
}

func matchSex(text string) (entities.Sex, float64, bool) {
	if reMixed.MatchString(text) {
		return entities.SexMixed, 0.9, true
	}
	male, female := reMale.MatchString(text), reFemale.MatchString(text)
	switch {
	case male && female:
		return entities.SexMixed, 0.7, true
	case male:
		return entities.SexMale, 0.9, true
	case female:
		return entities.SexFemale, 0.9, true
	}
	return "", 0, false
}

func firstMatch(text string, res ...*regexp.Regexp) []string {
	for _, re := range res {
		if m := re.FindStringSubmatch(text); m != nil {
			return m
		}
	}
	return nil
}

// decimal normalizes a decimal comma.
func decimal(s string) string {
	return strings.Replace(s, ",", ".", 1)
}

func grams(value, unit string) (float64, bool) {
	v, err := strconv.ParseFloat(decimal(value), 64)
	if err != nil {
		return 0, false
	}
	if strings.HasPrefix(strings.ToLower(unit), "k") {
		v *= 1000
	}
	return v, true
}

func celsius(value, unit string) (float64, bool) {
	v, err := strconv.ParseFloat(decimal(value), 64)
	if err != nil {
		return 0, false
	}
	if strings.HasPrefix(strings.ToLower(unit), "f") {
		v = (v - 32) * 5 / 9
	}
	return v, true
}

var _ Extractor = (*HeuristicExtractor)(nil)
