package extraction

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dominicdesy/intelia-expert/internal/entities"
	"github.com/dominicdesy/intelia-expert/internal/llm"
)

// Tiered runs the heuristic extractor and, when configured, an LLM
// extractor, and merges their results with the LLM output as the incoming
// side. Heuristic output alone is returned when the LLM step fails.
type Tiered struct {
	heuristic *HeuristicExtractor
	llm       Extractor
	timeout   time.Duration
	logger    *zap.Logger
}

// NewTiered builds a Tiered extractor. gen may be nil, in which case only
// heuristics run. timeout bounds the LLM step; zero means no extra bound.
func NewTiered(gen llm.Generator, timeout time.Duration, logger *zap.Logger) *Tiered {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("extraction")
	t := &Tiered{
		heuristic: NewHeuristicExtractor(nil, nil, logger),
		timeout:   timeout,
		logger:    logger,
	}
	if gen != nil {
		t.llm = NewLLMExtractor(gen, t.logger)
	}
	return t
}

// Extract implements Extractor. It only fails when ctx is done before the
// heuristic pass.
func (t *Tiered) Extract(ctx context.Context, text, language string) (*entities.EntitySet, error) {
	base, err := t.heuristic.Extract(ctx, text, language)
	if err != nil {
		return nil, err
	}
	if t.llm == nil {
		return base, nil
	}

	lctx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	fromLLM, err := t.llm.Extract(lctx, text, language)
	if err != nil {
		t.logger.Info("llm extraction failed, using heuristics",
			zap.String("kind", string(llm.KindOf(err))),
			zap.Error(err),
		)
		return base, nil
	}

	return entities.Merge(base, fromLLM), nil
}

var _ Extractor = (*Tiered)(nil)
