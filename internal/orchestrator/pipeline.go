package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dominicdesy/intelia-expert/internal/entities"
	"github.com/dominicdesy/intelia-expert/internal/llm"
	"github.com/dominicdesy/intelia-expert/internal/vectorstore"
)

var (
	// ErrEmptyAnswer is returned by a Pipeline that produced no text.
	ErrEmptyAnswer = errors.New("pipeline returned an empty answer")

	// ErrNeedsClarification is returned by a Pipeline that cannot answer
	// without more context. The fallback tier then decides what to ask.
	ErrNeedsClarification = errors.New("pipeline needs clarification")
)

// PipelineRequest is the input of the primary tier.
type PipelineRequest struct {
	Question       string
	ConversationID string
	Language       string
	// PreviousAnswers holds at most the configured window of assistant
	// answers, oldest first.
	PreviousAnswers []string
	Entities        *entities.EntitySet
}

// PipelineResult is a primary-tier answer.
type PipelineResult struct {
	Answer     string
	Confidence float64
	Sources    []string
}

// Pipeline is the primary answering tier.
type Pipeline interface {
	Run(ctx context.Context, req PipelineRequest) (PipelineResult, error)
}

// PipelineFunc adapts a function to Pipeline.
type PipelineFunc func(ctx context.Context, req PipelineRequest) (PipelineResult, error)

// Run calls f.
func (f PipelineFunc) Run(ctx context.Context, req PipelineRequest) (PipelineResult, error) {
	return f(ctx, req)
}

// LLMPipeline answers in one generation call grounded on retrieved
// documents. The model may decline when the question lacks context.
type LLMPipeline struct {
	gen       llm.Generator
	retriever vectorstore.Retriever
	limit     int
	logger    *zap.Logger
}

// NewLLMPipeline returns a pipeline over gen. retriever may be nil.
func NewLLMPipeline(gen llm.Generator, retriever vectorstore.Retriever, limit int, logger *zap.Logger) *LLMPipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit <= 0 {
		limit = defaultRetrievalLimit
	}
	return &LLMPipeline{gen: gen, retriever: retriever, limit: limit, logger: logger.Named("pipeline")}
}

type pipelineReply struct {
	Answer             string  `json:"answer"`
	Confidence         float64 `json:"confidence"`
	NeedsClarification bool    `json:"needs_clarification"`
}

// Run implements Pipeline.
func (p *LLMPipeline) Run(ctx context.Context, req PipelineRequest) (PipelineResult, error) {
	if p.gen == nil {
		return PipelineResult{}, llm.ErrUnavailable
	}

	var docs []vectorstore.Document
	if p.retriever != nil {
		query := req.Question
		if summary := req.Entities.Summary(); summary != "" {
			query += " (" + summary + ")"
		}
		found, err := p.retriever.Search(ctx, query, p.limit)
		if err != nil {
			p.logger.Debug("pipeline retrieval failed", zap.Error(err))
		} else {
			docs = found
		}
	}

	out, err := p.gen.Generate(ctx, pipelinePrompt(req, docs),
		llm.WithSystem(systemPrompt(req.Language)),
		llm.WithTemperature(0.2),
		llm.WithJSON(),
	)
	if err != nil {
		return PipelineResult{}, err
	}

	var reply pipelineReply
	if err := llm.DecodeJSONObject(out, &reply); err != nil {
		return PipelineResult{}, fmt.Errorf("decode pipeline answer: %w", err)
	}
	if reply.NeedsClarification {
		return PipelineResult{}, ErrNeedsClarification
	}
	text := strings.TrimSpace(reply.Answer)
	if text == "" {
		return PipelineResult{}, ErrEmptyAnswer
	}

	conf := reply.Confidence
	switch {
	case conf <= 0:
		conf = 0.7
	case conf > 1:
		conf = 1
	}
	return PipelineResult{Answer: text, Confidence: conf, Sources: sources(docs)}, nil
}

func sources(docs []vectorstore.Document) []string {
	if len(docs) == 0 {
		return nil
	}
	out := make([]string, 0, len(docs))
	seen := make(map[string]bool, len(docs))
	for _, d := range docs {
		s := d.Source
		if s == "" {
			s = d.ID
		}
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
