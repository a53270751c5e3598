package sufficiency

import (
	"strings"

	"github.com/dominicdesy/intelia-expert/internal/entities"
)

// Supported languages. Anything else is answered in English.
const (
	LangFrench  = "fr"
	LangEnglish = "en"
	LangSpanish = "es"
)

// NormalizeLanguage maps a tag such as "fr-CA" or "ES" to a supported
// language, defaulting to fallback and then English.
func NormalizeLanguage(tag, fallback string) string {
	for _, candidate := range []string{tag, fallback} {
		c := strings.ToLower(strings.TrimSpace(candidate))
		if len(c) > 2 {
			c = c[:2]
		}
		switch c {
		case LangFrench, LangEnglish, LangSpanish:
			return c
		}
	}
	return LangEnglish
}

var clarificationTemplates = map[string]map[entities.Field]string{
	LangFrench: {
		entities.FieldBreed:   "Quelle est la race ou la souche de vos oiseaux (Ross 308, Cobb 500, ISA Brown...) ?",
		entities.FieldAgeDays: "Quel est l'âge de votre lot (en jours ou en semaines) ?",
		entities.FieldSex:     "S'agit-il de mâles, de femelles ou d'un lot mixte ?",
	},
	LangEnglish: {
		entities.FieldBreed:   "What breed or strain are your birds (Ross 308, Cobb 500, ISA Brown...)?",
		entities.FieldAgeDays: "How old is your flock (in days or weeks)?",
		entities.FieldSex:     "Are they males, females or a mixed flock?",
	},
	LangSpanish: {
		entities.FieldBreed:   "¿Qué raza o línea genética son sus aves (Ross 308, Cobb 500, ISA Brown...)?",
		entities.FieldAgeDays: "¿Qué edad tiene su lote (en días o semanas)?",
		entities.FieldSex:     "¿Son machos, hembras o un lote mixto?",
	},
}

// ClarificationQuestions returns one question per missing field, in order,
// in the given language. Fields without a template are skipped.
func ClarificationQuestions(missing []entities.Field, language string) []string {
	tmpl := clarificationTemplates[NormalizeLanguage(language, "")]
	var out []string
	for _, f := range missing {
		if f == entities.FieldAgeWeeks {
			f = entities.FieldAgeDays
		}
		if q, ok := tmpl[f]; ok {
			out = append(out, q)
		}
	}
	return out
}

// IntroMessage introduces a list of clarification questions.
func IntroMessage(language string) string {
	switch NormalizeLanguage(language, "") {
	case LangFrench:
		return "Pour vous donner une réponse précise, j'ai besoin de quelques informations supplémentaires :"
	case LangSpanish:
		return "Para darle una respuesta precisa, necesito algunos datos adicionales:"
	default:
		return "To give you an accurate answer, I need a few more details:"
	}
}

var ageUnits = map[string]string{
	LangFrench:  "jours",
	LangEnglish: "days",
	LangSpanish: "días",
}

var sexLabels = map[string]map[entities.Sex]string{
	LangFrench:  {entities.SexMale: "mâles", entities.SexFemale: "femelles", entities.SexMixed: "lot mixte"},
	LangEnglish: {entities.SexMale: "males", entities.SexFemale: "females", entities.SexMixed: "mixed flock"},
	LangSpanish: {entities.SexMale: "machos", entities.SexFemale: "hembras", entities.SexMixed: "lote mixto"},
}
