package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var retrieverTracer = otel.Tracer("expertd.vectorstore.retriever")

// Retriever answers knowledge-base queries.
type Retriever interface {
	Search(ctx context.Context, query string, limit int) ([]Document, error)
}

// Reranker re-orders merged hits for a query, keeping at most topK.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []Document, topK int) ([]Document, error)
}

// rerankCandidates is how many hits per requested result are fetched when a
// reranker is attached.
const rerankCandidates = 3

// CollectionRetriever searches one or more collections of a Store in
// parallel and merges the hits by score.
type CollectionRetriever struct {
	store       Store
	collections []string
	reranker    Reranker
	logger      *zap.Logger
}

// RetrieverOption configures NewRetriever.
type RetrieverOption func(*CollectionRetriever)

// WithReranker re-orders the merged hits before they are cut to the limit.
func WithReranker(r Reranker) RetrieverOption {
	return func(cr *CollectionRetriever) { cr.reranker = r }
}

// NewRetriever searches collections, or the store's default collection when
// none are given.
func NewRetriever(store Store, collections []string, logger *zap.Logger, opts ...RetrieverOption) *CollectionRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(collections) == 0 {
		collections = []string{store.DefaultCollection()}
	}
	r := &CollectionRetriever{store: store, collections: collections, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search returns at most limit documents ordered by descending score.
// A missing collection contributes nothing; any other failure fails the
// search.
func (r *CollectionRetriever) Search(ctx context.Context, query string, limit int) ([]Document, error) {
	ctx, span := retrieverTracer.Start(ctx, "Retriever.Search")
	defer span.End()
	span.SetAttributes(
		attribute.Int("limit", limit),
		attribute.Int("collections", len(r.collections)),
	)

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	k := limit
	if r.reranker != nil {
		k = limit * rerankCandidates
	}

	var (
		mu   sync.Mutex
		hits []Document
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range r.collections {
		g.Go(func() error {
			docs, err := r.store.SearchInCollection(gctx, name, query, k)
			if errors.Is(err, ErrCollectionNotFound) {
				r.logger.Debug("collection not found", zap.String("collection", name))
				return nil
			}
			if err != nil {
				return fmt.Errorf("collection %s: %w", name, err)
			}
			mu.Lock()
			hits = append(hits, docs...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	hits = dedupe(hits)
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if r.reranker != nil && len(hits) > 1 {
		reranked, err := r.reranker.Rerank(ctx, query, hits, limit)
		if err != nil {
			r.logger.Warn("rerank failed, keeping vector order", zap.Error(err))
		} else {
			hits = reranked
			span.SetAttributes(attribute.Bool("reranked", true))
		}
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	span.SetAttributes(attribute.Int("results_count", len(hits)))
	return hits, nil
}

// dedupe keeps the best-scored copy of passages with identical content.
func dedupe(docs []Document) []Document {
	best := make(map[string]int, len(docs))
	out := docs[:0]
	for _, d := range docs {
		if i, ok := best[d.Content]; ok {
			if d.Score > out[i].Score {
				out[i] = d
			}
			continue
		}
		best[d.Content] = len(out)
		out = append(out, d)
	}
	return out
}
