// Package sufficiency decides whether a question, together with what the
// conversation already established, carries enough context to be answered
// through retrieval, or whether the user must be asked for clarification.
//
// The decision leans toward Sufficient. A question naming a breed, an
// explicit age, or a specific disease, symptom or environment parameter is
// answerable even when other fields are unknown; only context-dependent
// performance questions such as "what's the normal weight?" trigger
// clarification. The LLM analysis is preferred; a deterministic keyword
// classifier with the same bias takes over when the generator is missing,
// fails or times out.
package sufficiency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dominicdesy/intelia-expert/internal/entities"
	"github.com/dominicdesy/intelia-expert/internal/llm"
)

// Status is the classifier verdict.
type Status string

const (
	Sufficient   Status = "SUFFICIENT"
	Insufficient Status = "INSUFFICIENT"
)

// Method records which classifier produced a Result.
type Method string

const (
	MethodLLM       Method = "llm"
	MethodHeuristic Method = "heuristic"
)

// Result is the outcome of Classify.
type Result struct {
	Status                 Status           `json:"status"`
	EnrichedQuery          string           `json:"enriched_query"`
	MissingContext         []entities.Field `json:"missing_context,omitempty"`
	ClarificationQuestions []string         `json:"clarification_questions,omitempty"`
	Method                 Method           `json:"method"`
	Reason                 string           `json:"reason,omitempty"`
}

// Sufficient reports whether the question can be answered.
func (r Result) Sufficient() bool { return r.Status == Sufficient }

// Classifier implements the sufficiency decision.
type Classifier struct {
	gen     llm.Generator
	timeout time.Duration
	logger  *zap.Logger
}

// NewClassifier returns a Classifier. gen may be nil; timeout bounds the LLM
// call when positive.
func NewClassifier(gen llm.Generator, timeout time.Duration, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{gen: gen, timeout: timeout, logger: logger.Named("sufficiency")}
}

// Classify never fails: LLM problems degrade to the keyword classifier.
func (c *Classifier) Classify(ctx context.Context, question, language string, consolidated *entities.EntitySet) Result {
	if c.gen == nil {
		return classifyHeuristic(question, language, consolidated)
	}
	r, err := c.classifyLLM(ctx, question, language, consolidated)
	if err != nil {
		c.logger.Info("llm sufficiency analysis failed, using keywords",
			zap.String("kind", string(llm.KindOf(err))),
			zap.Error(err),
		)
		return classifyHeuristic(question, language, consolidated)
	}
	return r
}

const analysisSystemPrompt = `You decide whether a poultry-farming question has enough context to be answered.
Be generous: a question that names a breed, an age, or a specific disease, symptom or
environment parameter is SUFFICIENT. Only context-free performance questions such as
"what is the normal weight?" are INSUFFICIENT. Answer with one JSON object only.`

const analysisPrompt = `Question (language: %s): %s
Known context: %s

Return {"status": "SUFFICIENT" or "INSUFFICIENT", "missing": [subset of "breed", "age", "sex"],
"questions": [clarification questions in the question's language], "reason": "short reason"}`

type analysis struct {
	Status    string   `json:"status"`
	Missing   []string `json:"missing"`
	Questions []string `json:"questions"`
	Reason    string   `json:"reason"`
}

func (c *Classifier) classifyLLM(ctx context.Context, question, language string, consolidated *entities.EntitySet) (Result, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	known := consolidated.Summary()
	if known == "" {
		known = "none"
	}
	lang := NormalizeLanguage(language, "")
	out, err := c.gen.Generate(ctx, fmt.Sprintf(analysisPrompt, lang, strings.TrimSpace(question), known),
		llm.WithSystem(analysisSystemPrompt),
		llm.WithTemperature(0),
		llm.WithJSON(),
	)
	if err != nil {
		return Result{}, err
	}

	var a analysis
	if err := llm.DecodeJSONObject(out, &a); err != nil {
		return Result{}, err
	}

	r := Result{
		Status:        Sufficient,
		EnrichedQuery: EnrichedQuery(question, language, consolidated),
		Method:        MethodLLM,
		Reason:        a.Reason,
	}
	switch Status(strings.ToUpper(strings.TrimSpace(a.Status))) {
	case Sufficient:
		return r, nil
	case Insufficient:
	default:
		return Result{}, fmt.Errorf("unexpected status %q", a.Status)
	}

	// Keep the bias: a question with a breed, age or technical subject is
	// never sent back for clarification.
	s := detect(question, consolidated)
	if s.generous() {
		r.Reason = "overridden: question names a breed, an age or a technical subject"
		return r, nil
	}

	r.Status = Insufficient
	r.MissingContext = parseMissing(a.Missing, s)
	r.ClarificationQuestions = a.Questions
	if len(r.ClarificationQuestions) == 0 {
		r.ClarificationQuestions = ClarificationQuestions(r.MissingContext, language)
	}
	return r, nil
}

func parseMissing(names []string, s signals) []entities.Field {
	var out []entities.Field
	seen := map[entities.Field]bool{}
	for _, n := range names {
		var f entities.Field
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "breed", "race", "raza":
			f = entities.FieldBreed
		case "age", "âge", "edad", "age_days", "age_weeks":
			f = entities.FieldAgeDays
		case "sex", "sexe", "sexo":
			f = entities.FieldSex
		default:
			continue
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return s.missing()
	}
	return out
}
