package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominicdesy/intelia-expert/internal/entities"
	"github.com/dominicdesy/intelia-expert/internal/llm"
	"github.com/dominicdesy/intelia-expert/internal/vectorstore"
)

func rossEntities() *entities.EntitySet {
	e := entities.New(entities.MethodHeuristic)
	e.Breed = entities.Ptr("Ross 308")
	e.BreedConfidence = 0.95
	e.AgeDays = entities.Ptr(21)
	e.AgeConfidence = 0.9
	return e
}

func TestLLMPipeline_Run(t *testing.T) {
	var (
		prompt string
		opts   llm.Options
	)
	gen := llm.GeneratorFunc(func(_ context.Context, p string, o ...llm.Option) (string, error) {
		prompt = p
		opts = llm.Apply(llm.Options{}, o...)
		return "```json\n{\"answer\": \"About 1 kg.\", \"confidence\": 0.85}\n```", nil
	})
	retriever := &fakeRetriever{docs: rossDocs}
	p := NewLLMPipeline(gen, retriever, 1, nil)

	res, err := p.Run(context.Background(), PipelineRequest{
		Question:        "Normal weight?",
		Language:        "fr",
		PreviousAnswers: []string{"Earlier answer"},
		Entities:        rossEntities(),
	})
	require.NoError(t, err)

	assert.Equal(t, "About 1 kg.", res.Answer)
	assert.InDelta(t, 0.85, res.Confidence, 1e-9)
	assert.Equal(t, []string{"ross-308-objectives.md"}, res.Sources)

	assert.Equal(t, "Normal weight? (Ross 308, 21 days)", retriever.lastQuery())
	assert.Contains(t, prompt, "Known facts about the flock: Ross 308, 21 days")
	assert.Contains(t, prompt, "1. Earlier answer")
	assert.Contains(t, prompt, "[1] (ross-308-objectives.md)")
	assert.NotContains(t, prompt, "water.md")
	assert.True(t, opts.JSON)
	assert.Contains(t, opts.System, "Answer in French")
}

func TestLLMPipeline_Declines(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		want  error
	}{
		{"needs clarification", `{"answer": "", "needs_clarification": true}`, nil, ErrNeedsClarification},
		{"empty answer", `{"answer": "   "}`, nil, ErrEmptyAnswer},
		{"no json", "I think about 1 kg", nil, llm.ErrNoJSONObject},
		{"generator error", "", llm.ErrUnavailable, llm.ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := llm.GeneratorFunc(func(context.Context, string, ...llm.Option) (string, error) {
				return tt.reply, tt.err
			})
			_, err := NewLLMPipeline(gen, nil, 0, nil).Run(context.Background(), PipelineRequest{Question: "q"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLLMPipeline_ConfidenceBounds(t *testing.T) {
	for reply, want := range map[string]float64{
		`{"answer": "a"}`:                   0.7,
		`{"answer": "a", "confidence": 4}`:  1,
		`{"answer": "a", "confidence": -1}`: 0.7,
	} {
		gen := llm.GeneratorFunc(func(context.Context, string, ...llm.Option) (string, error) { return reply, nil })
		res, err := NewLLMPipeline(gen, nil, 0, nil).Run(context.Background(), PipelineRequest{Question: "q"})
		require.NoError(t, err)
		assert.InDelta(t, want, res.Confidence, 1e-9, reply)
	}
}

func TestLLMPipeline_NoGenerator(t *testing.T) {
	_, err := NewLLMPipeline(nil, nil, 0, nil).Run(context.Background(), PipelineRequest{Question: "q"})
	assert.ErrorIs(t, err, llm.ErrUnavailable)
}

func TestLLMPipeline_RetrievalErrorIsIgnored(t *testing.T) {
	gen := llm.GeneratorFunc(func(_ context.Context, p string, _ ...llm.Option) (string, error) {
		if strings.Contains(p, "Reference documents") {
			return "", errors.New("unexpected documents")
		}
		return `{"answer": "ok"}`, nil
	})
	p := NewLLMPipeline(gen, &fakeRetriever{err: errors.New("down")}, 3, nil)

	res, err := p.Run(context.Background(), PipelineRequest{Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Answer)
	assert.Nil(t, res.Sources)
}

func TestLLMResponder(t *testing.T) {
	var (
		prompt string
		opts   llm.Options
	)
	gen := llm.GeneratorFunc(func(_ context.Context, p string, o ...llm.Option) (string, error) {
		prompt = p
		opts = llm.Apply(llm.Options{}, o...)
		return "  Around 1 kg.  ", nil
	})

	out, err := NewLLMResponder(gen, 400).Respond(context.Background(), ResponseRequest{
		Question:  "Normal weight?",
		Query:     "Normal weight? (Ross 308, 21 days)",
		Language:  "es",
		Entities:  rossEntities(),
		Documents: rossDocs[:1],
	})
	require.NoError(t, err)
	assert.Equal(t, "Around 1 kg.", out)
	assert.Contains(t, prompt, "Question with context: Normal weight? (Ross 308, 21 days)")
	assert.Contains(t, prompt, "Ross 308 males reach about 1 kg")
	assert.Equal(t, 400, opts.MaxTokens)
	assert.Contains(t, opts.System, "Answer in Spanish")

	empty := llm.GeneratorFunc(func(context.Context, string, ...llm.Option) (string, error) { return " ", nil })
	_, err = NewLLMResponder(empty, 0).Respond(context.Background(), ResponseRequest{Question: "q"})
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)

	_, err = NewLLMResponder(nil, 0).Respond(context.Background(), ResponseRequest{Question: "q"})
	assert.ErrorIs(t, err, llm.ErrUnavailable)
}

func TestTemplateResponder(t *testing.T) {
	tests := []struct {
		name string
		req  ResponseRequest
		want string
	}{
		{
			name: "french with document",
			req:  ResponseRequest{Language: "fr", Entities: rossEntities(), Documents: rossDocs},
			want: "D'après notre base de connaissances (Ross 308, 21 days) :\n\nRoss 308 males reach about 1 kg at 21 days.\n\nSource : ross-308-objectives.md",
		},
		{
			name: "document without source",
			req:  ResponseRequest{Language: "en", Documents: []vectorstore.Document{{ID: "doc-7", Content: "text"}}},
			want: "From our knowledge base:\n\ntext\n\nSource: doc-7",
		},
		{
			name: "spanish without documents",
			req:  ResponseRequest{Language: "es"},
			want: notFoundTemplates["es"][:len("No encontré una referencia precisa para su pregunta")],
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := TemplateResponder{}.Respond(context.Background(), tt.req)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(out, tt.want), out)
		})
	}
}

func TestClarificationText(t *testing.T) {
	got := clarificationText("en", []string{"What breed?", "How old?"})
	assert.Equal(t, "To give you an accurate answer, I need a few more details:\n- What breed?\n- How old?", got)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("  abc ", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 2))
	assert.Equal(t, "éé…", truncate("ééé", 2))
}
