package orchestrator

import (
	"fmt"
	"strings"

	"github.com/dominicdesy/intelia-expert/internal/sufficiency"
	"github.com/dominicdesy/intelia-expert/internal/vectorstore"
)

// maxDocumentChars bounds each retrieved passage quoted in a prompt.
const maxDocumentChars = 1500

func languageName(language string) string {
	switch sufficiency.NormalizeLanguage(language, "") {
	case sufficiency.LangFrench:
		return "French"
	case sufficiency.LangSpanish:
		return "Spanish"
	default:
		return "English"
	}
}

func systemPrompt(language string) string {
	return fmt.Sprintf(`You are a poultry production expert advising farmers on broilers, layers and breeders.
Answer in %s. Be concrete: give target values, likely causes and practical actions.
Only use the reference documents and facts you are given; say so when they do not cover the question.`,
		languageName(language))
}

func pipelinePrompt(req PipelineRequest, docs []vectorstore.Document) string {
	var b strings.Builder
	if summary := req.Entities.Summary(); summary != "" {
		fmt.Fprintf(&b, "Known facts about the flock: %s\n\n", summary)
	}
	if len(req.PreviousAnswers) > 0 {
		b.WriteString("Your previous answers in this conversation:\n")
		for i, a := range req.PreviousAnswers {
			fmt.Fprintf(&b, "%d. %s\n", i+1, truncate(a, 400))
		}
		b.WriteString("\n")
	}
	writeDocuments(&b, docs)
	fmt.Fprintf(&b, "Question: %s\n\n", req.Question)
	b.WriteString(`Reply with a JSON object {"answer": string, "confidence": number between 0 and 1, "needs_clarification": boolean}.
Set needs_clarification to true, with an empty answer, only when the question cannot be answered without knowing the breed or the age of the birds.`)
	return b.String()
}

func responsePrompt(req ResponseRequest) string {
	var b strings.Builder
	if summary := req.Entities.Summary(); summary != "" {
		fmt.Fprintf(&b, "Known facts about the flock: %s\n\n", summary)
	}
	writeDocuments(&b, req.Documents)
	fmt.Fprintf(&b, "Question: %s\n", req.Question)
	if req.Query != "" && req.Query != req.Question {
		fmt.Fprintf(&b, "Question with context: %s\n", req.Query)
	}
	b.WriteString("\nAnswer the question for this flock.")
	return b.String()
}

func writeDocuments(b *strings.Builder, docs []vectorstore.Document) {
	if len(docs) == 0 {
		return
	}
	b.WriteString("Reference documents:\n")
	for i, d := range docs {
		fmt.Fprintf(b, "[%d] (%s) %s\n", i+1, d.Source, truncate(d.Content, maxDocumentChars))
	}
	b.WriteString("\n")
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
