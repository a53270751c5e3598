package vectorstore

import (
	"context"
	"hash/fnv"
	"strings"
)

// hashEmbedder is a deterministic bag-of-words embedder: texts sharing words
// land close together.
type hashEmbedder struct {
	dim   int
	calls int
}

func (e *hashEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dim)
	v[0] = 0.01
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, ".,?!")))
		v[int(h.Sum32())%e.dim]++
	}
	return v
}

func (e *hashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *hashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}
