// Package extraction turns a farmer's message into an EntitySet.
//
// Two extraction methods are supported: a heuristic extractor driven by a
// multilingual (fr/en/es) regex catalog, and an LLM extractor that asks the
// text-generation service for a JSON object. Tiered runs both and lets the
// LLM result override the heuristic one, falling back to heuristics alone
// when the LLM is unavailable or fails.
package extraction

import (
	"context"

	"github.com/dominicdesy/intelia-expert/internal/entities"
)

// Extractor extracts entities from one message.
type Extractor interface {
	Extract(ctx context.Context, text, language string) (*entities.EntitySet, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, text, language string) (*entities.EntitySet, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, text, language string) (*entities.EntitySet, error) {
	return f(ctx, text, language)
}

// Breed is a catalog entry.
type Breed struct {
	Name string
	// Type is broiler, layer or breeder.
	Type  string
	Regex string
	// Confidence given to a match.
	Confidence float64
}

// Symptom is a catalog entry; Name is the canonical English label stored
// in the EntitySet.
type Symptom struct {
	Name  string
	Regex string
}

// DefaultBreeds returns the built-in breed catalog. More specific entries
// come first; the first match wins.
func DefaultBreeds() []Breed {
	return []Breed{
		{Name: "Ross 308", Type: "broiler", Regex: `ross[\s-]*308`, Confidence: 0.95},
		{Name: "Ross 708", Type: "broiler", Regex: `ross[\s-]*708`, Confidence: 0.95},
		{Name: "Cobb 500", Type: "broiler", Regex: `cobb[\s-]*500`, Confidence: 0.95},
		{Name: "Cobb 700", Type: "broiler", Regex: `cobb[\s-]*700`, Confidence: 0.95},
		{Name: "Hubbard", Type: "broiler", Regex: `hubbard`, Confidence: 0.9},
		{Name: "Arbor Acres", Type: "broiler", Regex: `arbor[\s-]*acres?`, Confidence: 0.95},
		{Name: "ISA Brown", Type: "layer", Regex: `isa[\s-]*brown`, Confidence: 0.95},
		{Name: "Lohmann Brown", Type: "layer", Regex: `lohmann[\s-]*brown`, Confidence: 0.95},
		{Name: "Lohmann LSL", Type: "layer", Regex: `lohmann[\s-]*(?:lsl|white)`, Confidence: 0.95},
		{Name: "Hy-Line Brown", Type: "layer", Regex: `hy[\s-]*line[\s-]*brown`, Confidence: 0.95},
		{Name: "Hy-Line W-36", Type: "layer", Regex: `hy[\s-]*line[\s-]*w[\s-]*36`, Confidence: 0.95},
		{Name: "Hy-Line", Type: "layer", Regex: `hy[\s-]*line`, Confidence: 0.85},
		{Name: "Lohmann", Type: "layer", Regex: `lohmann`, Confidence: 0.85},
		{Name: "Dekalb White", Type: "layer", Regex: `dekalb[\s-]*white`, Confidence: 0.95},
		{Name: "Novogen Brown", Type: "layer", Regex: `novogen`, Confidence: 0.85},
		{Name: "Ross 308", Type: "broiler", Regex: `ross`, Confidence: 0.6},
		{Name: "Cobb 500", Type: "broiler", Regex: `cobb`, Confidence: 0.6},
	}
}

// DefaultSymptoms returns the built-in symptom catalog.
func DefaultSymptoms() []Symptom {
	return []Symptom{
		{Name: "diarrhea", Regex: `diarrh(?:ea|oea|ée|ee)s?|diarrea|wet droppings|fientes liquides|heces líquidas`},
		{Name: "bloody droppings", Regex: `bloody droppings|blood in (?:the )?droppings|fientes sanglantes|sang dans les fientes|heces con sangre`},
		{Name: "coughing", Regex: `cough(?:ing|s)?|toux|tos`},
		{Name: "respiratory distress", Regex: `respiratory|respiratoires?|respiratorios?|râles|rales|sneez(?:e|ing)|éternuements?|estornudos?`},
		{Name: "lameness", Regex: `lame(?:ness)?|boiterie|cojera|leg problems|problèmes de pattes`},
		{Name: "reduced feed intake", Regex: `(?:low|reduced|poor|decreased) (?:feed intake|appetite)|baisse de consommation|perte d'appétit|baja ingesta|inapetencia`},
		{Name: "lethargy", Regex: `letharg(?:y|ic)|abattement|prostration|apath(?:y|ie|ía)|letargia`},
		{Name: "poor growth", Regex: `poor growth|slow growth|stunt(?:ed|ing)|retard de croissance|croissance lente|bajo crecimiento`},
		{Name: "heat stress", Regex: `heat stress|panting|halètement|coup de chaleur|stress thermique|estrés calórico|jadeo`},
		{Name: "swollen head", Regex: `swollen head|tête enflée|cabeza hinchada`},
		{Name: "ruffled feathers", Regex: `ruffled feathers|plumes ébouriffées|plumas erizadas`},
		{Name: "drop in egg production", Regex: `drop in (?:egg )?production|chute de ponte|baisse de ponte|caída de (?:la )?postura`},
		{Name: "pecking", Regex: `pecking|picage|picaje|cannibalism|cannibalisme|canibalismo`},
		{Name: "high mortality", Regex: `mass mortality|high mortality|mortalité (?:massive|élevée)|forte mortalité|mortalidad (?:alta|masiva)`},
	}
}
