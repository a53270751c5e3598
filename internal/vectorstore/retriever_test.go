package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	results map[string][]Document
	errs    map[string]error
}

func (f *fakeStore) AddDocuments(context.Context, []Document) ([]string, error) { return nil, nil }

func (f *fakeStore) Search(ctx context.Context, query string, k int) ([]Document, error) {
	return f.SearchInCollection(ctx, f.DefaultCollection(), query, k)
}

func (f *fakeStore) SearchInCollection(_ context.Context, collection, _ string, k int) ([]Document, error) {
	if err := f.errs[collection]; err != nil {
		return nil, err
	}
	docs, ok := f.results[collection]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	if len(docs) > k {
		docs = docs[:k]
	}
	return docs, nil
}

func (f *fakeStore) CollectionExists(_ context.Context, c string) (bool, error) {
	_, ok := f.results[c]
	return ok, nil
}

func (f *fakeStore) DefaultCollection() string { return "main" }
func (f *fakeStore) Close() error              { return nil }

func TestRetriever_MergesCollections(t *testing.T) {
	store := &fakeStore{results: map[string][]Document{
		"broilers": {
			{Content: "ross growth", Score: 0.9},
			{Content: "shared passage", Score: 0.4},
		},
		"diseases": {
			{Content: "coccidiosis", Score: 0.7},
			{Content: "shared passage", Score: 0.6},
		},
	}}

	r := NewRetriever(store, []string{"broilers", "diseases", "absent"}, nil)
	docs, err := r.Search(context.Background(), "q", 3)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "ross growth", docs[0].Content)
	assert.Equal(t, "coccidiosis", docs[1].Content)
	assert.Equal(t, "shared passage", docs[2].Content)
	assert.InDelta(t, 0.6, docs[2].Score, 1e-6)
}

func TestRetriever_DefaultCollection(t *testing.T) {
	store := &fakeStore{results: map[string][]Document{"main": {{Content: "x", Score: 1}}}}
	docs, err := NewRetriever(store, nil, nil).Search(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestRetriever_PropagatesFailure(t *testing.T) {
	boom := errors.New("unavailable")
	store := &fakeStore{
		results: map[string][]Document{"a": {{Content: "x"}}},
		errs:    map[string]error{"b": boom},
	}
	_, err := NewRetriever(store, []string{"a", "b"}, nil).Search(context.Background(), "q", 5)
	assert.ErrorIs(t, err, boom)

	_, err = NewRetriever(store, []string{"a"}, nil).Search(context.Background(), "q", 0)
	assert.Error(t, err)
}

type reverseReranker struct {
	calls int
	err   error
}

func (r *reverseReranker) Rerank(_ context.Context, _ string, docs []Document, topK int) ([]Document, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	out := make([]Document, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		out = append(out, docs[i])
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func TestRetriever_Reranker(t *testing.T) {
	store := &fakeStore{results: map[string][]Document{
		"main": {
			{Content: "a", Score: 0.9},
			{Content: "b", Score: 0.8},
			{Content: "c", Score: 0.7},
			{Content: "d", Score: 0.6},
		},
	}}

	t.Run("reorders a wider candidate set", func(t *testing.T) {
		rr := &reverseReranker{}
		docs, err := NewRetriever(store, nil, nil, WithReranker(rr)).Search(context.Background(), "q", 2)
		require.NoError(t, err)
		assert.Equal(t, 1, rr.calls)
		require.Len(t, docs, 2)
		assert.Equal(t, "d", docs[0].Content)
		assert.Equal(t, "c", docs[1].Content)
	})

	t.Run("failure keeps vector order", func(t *testing.T) {
		rr := &reverseReranker{err: errors.New("boom")}
		docs, err := NewRetriever(store, nil, nil, WithReranker(rr)).Search(context.Background(), "q", 2)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "a", docs[0].Content)
		assert.Equal(t, "b", docs[1].Content)
	})
}
