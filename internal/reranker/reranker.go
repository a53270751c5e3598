// Package reranker re-orders retrieved knowledge passages by lexical overlap
// with the question, to correct embedding hits that are semantically close but
// miss the breed, age or disease the user asked about.
package reranker

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode"

	"github.com/dominicdesy/intelia-expert/internal/vectorstore"
)

// ErrNilContext is returned when a nil context is passed to Rerank.
var ErrNilContext = errors.New("context cannot be nil")

const (
	originalWeight = 0.5
	overlapWeight  = 0.5
)

// TermOverlap combines the vector score with the share of query terms found
// in each passage. Stopwords of the three answer languages are ignored.
type TermOverlap struct{}

// New returns a TermOverlap reranker.
func New() *TermOverlap {
	return &TermOverlap{}
}

// Rerank returns at most topK docs by descending combined score. Scores on
// the returned documents are the original vector scores. topK <= 0 keeps all.
func (r *TermOverlap) Rerank(ctx context.Context, query string, docs []vectorstore.Document, topK int) ([]vectorstore.Document, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 || topK > len(docs) {
		topK = len(docs)
	}

	out := make([]vectorstore.Document, len(docs))
	copy(out, docs)

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
		return out[:topK], nil
	}

	combined := make([]float32, len(out))
	order := make([]int, len(out))
	for i, doc := range out {
		order[i] = i
		overlap := termOverlap(queryTokens, tokenize(doc.Content))
		combined[i] = originalWeight*doc.Score + overlapWeight*overlap
	}
	sort.SliceStable(order, func(a, b int) bool { return combined[order[a]] > combined[order[b]] })

	ranked := make([]vectorstore.Document, topK)
	for i := range ranked {
		ranked[i] = out[order[i]]
	}
	return ranked, nil
}

// tokenize lowercases text and splits it on anything that is not a letter or
// digit, dropping stopwords and tokens shorter than three runes. Numbers are
// kept whatever their length since "21" or "308" carry the age or the breed.
func tokenize(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	filtered := tokens[:0]
	for _, token := range tokens {
		if stopwords[token] {
			continue
		}
		if len([]rune(token)) > 2 || isNumber(token) {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

func isNumber(token string) bool {
	for _, r := range token {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return token != ""
}

// termOverlap is the share of distinct query tokens present in the document.
func termOverlap(queryTokens, docTokens []string) float32 {
	docSet := make(map[string]struct{}, len(docTokens))
	for _, t := range docTokens {
		docSet[t] = struct{}{}
	}
	unique := make(map[string]struct{}, len(queryTokens))
	matches := 0
	for _, t := range queryTokens {
		if _, seen := unique[t]; seen {
			continue
		}
		unique[t] = struct{}{}
		if _, ok := docSet[t]; ok {
			matches++
		}
	}
	if len(unique) == 0 {
		return 0
	}
	return float32(matches) / float32(len(unique))
}

var stopwords = func() map[string]bool {
	words := []string{
		// en
		"the", "and", "for", "with", "from", "are", "was", "have", "has", "what", "which", "when",
		"where", "why", "how", "this", "that", "these", "those", "should", "could", "would", "can",
		"does", "about", "there", "their", "they", "you", "your", "normal",
		// fr
		"les", "des", "une", "est", "que", "qui", "quoi", "quel", "quelle", "quels", "quelles",
		"pour", "avec", "dans", "sur", "par", "pas", "mes", "nos", "vos", "ses", "leur", "leurs",
		"comment", "combien", "pourquoi", "elle", "ils", "elles", "sont", "mon", "votre", "notre",
		// es
		"los", "las", "del", "una", "uno", "que", "cuál", "cual", "cómo", "como", "para", "con",
		"por", "sus", "mis", "son", "está", "están", "qué", "cuánto", "cuanto",
	}
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}()

var _ vectorstore.Reranker = (*TermOverlap)(nil)
