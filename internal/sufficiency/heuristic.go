package sufficiency

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dominicdesy/intelia-expert/internal/entities"
)

func words(alternatives string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\pL\pN])(?:` + alternatives + `)(?:[^\pL\pN]|$)`)
}

var (
	reBreed = words(`ross(?:[\s-]*[37]08)?|cobb(?:[\s-]*[57]00)?|hubbard|arbor[\s-]*acres?|isa(?:[\s-]*brown)?|` +
		`lohmann|hy[\s-]*line|dekalb|novogen|sasso|shaver|bovans|babcock`)
	reAge = regexp.MustCompile(`(?i)(?:\d{1,3}\s*-?\s*(?:days?|jours?|días?|dias?|weeks?|semaines?|semanas?|j|d|sem|wks?)(?:[^\pL]|$))|` +
		`(?:(?:^|[^\pL])(?:day|jour|día|dia|j|d)\s*-?\s*\d{1,3}(?:[^\pN]|$))`)
	reSex = words(`males?|mâles?|machos?|females?|femelles?|hembras?|hens?|poules?|mixed|mixtes?|mixtos?|` +
		`as[\s-]hatched|straight[\s-]run|cockerels?|pullets?`)
	reWeightQuestion = words(`weights?|weigh|poids|pèsent|pese|peso|pesan|body ?weight`)

	// Diseases, symptoms and environment parameters specific enough to
	// answer without breed or age.
	reTechnical = words(`coccidios[ie]s?|newcastle|gumboro|ibd|marek|bronchite infectieuse|infectious bronchitis|` +
		`bronquitis|influenza|avian flu|grippe aviaire|salmonell[ae]s?|e\.? ?coli|colibacillos[ie]s?|mycoplasm[ae]s?|` +
		`aspergillos[ie]s?|ascites|ascite|histomonos[ie]s?|clostridi[au]m?|necrotic enteritis|entérite nécrotique|` +
		`diarrh(?:ea|oea|ée)|diarrea|cough(?:ing)?|toux|tos|respiratory|respiratoires?|boiterie|lameness|cojera|` +
		`picage|pecking|cannibalism[e]?|ammonia|ammoniac|amoníaco|ventilation|ventilación|humidity|humidité|humedad|` +
		`litter|litière|cama|vaccin(?:e|es|ation|ación|o)?|vaccines?|vaccination|biosecurity|biosécurité|bioseguridad|` +
		`heat stress|stress thermique|estrés calórico|mortality|mortalité|mortalidad|dead birds|morts`)

	// Performance questions only make sense for a known breed and age.
	rePerformance = words(`weights?|weigh|poids|peso|growth|croissance|crecimiento|gain|fcr|ic|` +
		`feed conversion|indice de consommation|conversión|feed intake|consommation|consumo|water|eau|agua|` +
		`production|ponte|postura|uniformity|uniformité|uniformidad|normal|standard|objectifs?|target|objetivo`)
)

// signals summarizes what a question and the consolidated entities provide.
type signals struct {
	breed       bool
	age         bool
	sex         bool
	technical   bool
	performance bool
	weight      bool
}

func detect(question string, consolidated *entities.EntitySet) signals {
	s := signals{
		breed:       reBreed.MatchString(question),
		age:         reAge.MatchString(question),
		sex:         reSex.MatchString(question),
		technical:   reTechnical.MatchString(question),
		performance: rePerformance.MatchString(question),
		weight:      reWeightQuestion.MatchString(question),
	}
	if consolidated != nil {
		s.breed = s.breed || consolidated.Breed != nil
		s.age = s.age || consolidated.HasAge()
		s.sex = s.sex || consolidated.Sex != nil
	}
	return s
}

// generous reports whether the question carries enough context on its own.
func (s signals) generous() bool {
	return s.breed || s.age || s.technical
}

func (s signals) missing() []entities.Field {
	var out []entities.Field
	if !s.breed {
		out = append(out, entities.FieldBreed)
	}
	if !s.age {
		out = append(out, entities.FieldAgeDays)
	}
	if s.weight && !s.sex {
		out = append(out, entities.FieldSex)
	}
	return out
}

// classifyHeuristic is the deterministic keyword fallback. It only asks for
// clarification on performance questions that name neither breed nor age.
func classifyHeuristic(question, language string, consolidated *entities.EntitySet) Result {
	s := detect(question, consolidated)
	r := Result{
		Status:        Sufficient,
		EnrichedQuery: EnrichedQuery(question, language, consolidated),
		Method:        MethodHeuristic,
	}
	switch {
	case s.generous():
		r.Reason = "question names a breed, an age or a technical subject"
	case s.performance:
		r.Status = Insufficient
		r.MissingContext = s.missing()
		r.ClarificationQuestions = ClarificationQuestions(r.MissingContext, language)
		r.Reason = "performance question without breed or age"
	default:
		r.Reason = "general question"
	}
	return r
}

// EnrichedQuery appends the consolidated breed, age and sex that the
// question does not already state.
func EnrichedQuery(question, language string, consolidated *entities.EntitySet) string {
	question = strings.TrimSpace(question)
	if consolidated == nil {
		return question
	}
	lang := NormalizeLanguage(language, "")
	lower := strings.ToLower(question)

	var parts []string
	if consolidated.Breed != nil && !strings.Contains(lower, strings.ToLower(*consolidated.Breed)) {
		parts = append(parts, *consolidated.Breed)
	}
	if consolidated.Sex != nil && !reSex.MatchString(question) {
		if label, ok := sexLabels[lang][*consolidated.Sex]; ok {
			parts = append(parts, label)
		}
	}
	if consolidated.AgeDays != nil && !reAge.MatchString(question) {
		parts = append(parts, strconv.Itoa(*consolidated.AgeDays)+" "+ageUnits[lang])
	}
	if len(parts) == 0 {
		return question
	}
	return question + " (" + strings.Join(parts, ", ") + ")"
}
