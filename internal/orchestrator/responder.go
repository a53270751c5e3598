package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/dominicdesy/intelia-expert/internal/entities"
	"github.com/dominicdesy/intelia-expert/internal/llm"
	"github.com/dominicdesy/intelia-expert/internal/sufficiency"
	"github.com/dominicdesy/intelia-expert/internal/vectorstore"
)

// ResponseRequest is the input of answer generation in the fallback tier.
type ResponseRequest struct {
	Question  string
	Query     string
	Language  string
	Entities  *entities.EntitySet
	Documents []vectorstore.Document
}

// Responder drafts the answer of the fallback tier.
type Responder interface {
	Respond(ctx context.Context, req ResponseRequest) (string, error)
}

// LLMResponder drafts answers with a text generator.
type LLMResponder struct {
	gen       llm.Generator
	maxTokens int
}

// NewLLMResponder returns a responder over gen. maxTokens <= 0 keeps the
// generator's default.
func NewLLMResponder(gen llm.Generator, maxTokens int) *LLMResponder {
	return &LLMResponder{gen: gen, maxTokens: maxTokens}
}

// Respond implements Responder.
func (r *LLMResponder) Respond(ctx context.Context, req ResponseRequest) (string, error) {
	if r.gen == nil {
		return "", llm.ErrUnavailable
	}
	opts := []llm.Option{
		llm.WithSystem(systemPrompt(req.Language)),
		llm.WithTemperature(0.3),
	}
	if r.maxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(r.maxTokens))
	}
	out, err := r.gen.Generate(ctx, responsePrompt(req), opts...)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", llm.ErrEmptyResponse
	}
	return out, nil
}

// TemplateResponder answers without a generator: it quotes the best
// retrieved passage, or says nothing specific was found.
type TemplateResponder struct{}

var (
	foundTemplates = map[string]string{
		sufficiency.LangFrench:  "D'après notre base de connaissances%s :\n\n%s\n\nSource : %s",
		sufficiency.LangEnglish: "From our knowledge base%s:\n\n%s\n\nSource: %s",
		sufficiency.LangSpanish: "Según nuestra base de conocimientos%s:\n\n%s\n\nFuente: %s",
	}
	notFoundTemplates = map[string]string{
		sufficiency.LangFrench:  "Je n'ai pas trouvé de référence précise pour votre question%s. Précisez si possible les symptômes observés et les conditions d'élevage, ou consultez votre vétérinaire.",
		sufficiency.LangEnglish: "I could not find a specific reference for your question%s. Please describe the symptoms and housing conditions you observe, or contact your veterinarian.",
		sufficiency.LangSpanish: "No encontré una referencia precisa para su pregunta%s. Describa si puede los síntomas y las condiciones de crianza, o consulte a su veterinario.",
	}
)

// Respond implements Responder. It never fails.
func (TemplateResponder) Respond(_ context.Context, req ResponseRequest) (string, error) {
	lang := sufficiency.NormalizeLanguage(req.Language, "")
	var about string
	if summary := req.Entities.Summary(); summary != "" {
		about = " (" + summary + ")"
	}
	if len(req.Documents) == 0 {
		return fmt.Sprintf(notFoundTemplates[lang], about), nil
	}
	best := req.Documents[0]
	source := best.Source
	if source == "" {
		source = best.ID
	}
	return fmt.Sprintf(foundTemplates[lang], about, truncate(best.Content, maxDocumentChars), source), nil
}

var (
	_ Responder = (*LLMResponder)(nil)
	_ Responder = TemplateResponder{}
)
