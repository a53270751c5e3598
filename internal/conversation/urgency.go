package conversation

import "strings"

// Urgency grades how quickly a conversation needs attention.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// urgencyWindow is the number of recent user messages scanned.
const urgencyWindow = 5

var urgencyKeywords = []struct {
	level    Urgency
	keywords []string
}{
	{UrgencyCritical, []string{
		"mass mortality", "high mortality", "sudden death", "dying fast", "emergency",
		"mortalité massive", "forte mortalité", "mortalité élevée", "morts subites", "urgence",
		"mortalidad masiva", "mortalidad alta", "muerte súbita", "emergencia",
	}},
	{UrgencyHigh, []string{
		"mortality", "dead", "dying", "outbreak", "disease", "sick",
		"mortalité", "morts", "meurent", "maladie", "malades", "épidémie",
		"mortalidad", "muertos", "mueren", "enfermedad", "enfermos", "brote",
	}},
	{UrgencyMedium, []string{
		"problem", "drop", "diarrh", "cough", "lameness", "not eating",
		"problème", "baisse", "chute", "toux", "boiterie",
		"problema", "caída", "diarrea", "cojera",
	}},
}

// classifyUrgency returns the highest level whose keywords appear in texts.
func classifyUrgency(texts []string) Urgency {
	joined := strings.ToLower(strings.Join(texts, "\n"))
	for _, level := range urgencyKeywords {
		for _, kw := range level.keywords {
			if strings.Contains(joined, kw) {
				return level.level
			}
		}
	}
	return UrgencyLow
}
