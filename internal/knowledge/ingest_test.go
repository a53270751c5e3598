package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominicdesy/intelia-expert/internal/vectorstore"
)

type recordingStore struct {
	added []vectorstore.Document
}

func (s *recordingStore) AddDocuments(_ context.Context, docs []vectorstore.Document) ([]string, error) {
	s.added = append(s.added, docs...)
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

func (s *recordingStore) Search(context.Context, string, int) ([]vectorstore.Document, error) {
	return nil, nil
}

func (s *recordingStore) SearchInCollection(context.Context, string, string, int) ([]vectorstore.Document, error) {
	return nil, nil
}

func (s *recordingStore) CollectionExists(context.Context, string) (bool, error) { return true, nil }
func (s *recordingStore) DefaultCollection() string                              { return "poultry_knowledge" }
func (s *recordingStore) Close() error                                           { return nil }

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broilers/ross308.md", "# Ross 308\n\nMales reach 1 kg at 21 days.\n\nFeed conversion near 1.3.")
	writeFile(t, dir, "diseases.txt", "Coccidiosis causes bloody droppings.")
	writeFile(t, dir, "notes.pdf", "ignored")
	writeFile(t, dir, ".git/config.md", "ignored")
	writeFile(t, dir, "binary.md", string([]byte{0xff, 0xfe, 0x00}))

	store := &recordingStore{}
	res, err := NewIngester(store, nil).IngestDirectory(context.Background(), dir, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, res.FilesIndexed)
	assert.Equal(t, 1, res.FilesSkipped)
	assert.Equal(t, "poultry_knowledge", res.Collection)
	require.Len(t, store.added, res.Passages)

	sources := map[string]bool{}
	for _, d := range store.added {
		sources[d.Source] = true
		assert.True(t, strings.HasPrefix(d.ID, d.Source+"#"))
	}
	assert.True(t, sources["broilers/ross308.md"])
	assert.True(t, sources["diseases.txt"])
}

func TestIngestDirectoryExclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "drafts/a.md", "draft")
	writeFile(t, dir, "b.md", "final")

	store := &recordingStore{}
	res, err := NewIngester(store, nil).IngestDirectory(context.Background(), dir, Options{ExcludePatterns: []string{"drafts/**"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesIndexed)
}

func TestIngestDirectoryIgnoreFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, IgnoreFile, "# work in progress\ndrafts/\n/old.md\n!keep.md\n\nREADME.md\n")
	writeFile(t, dir, "drafts/a.md", "draft")
	writeFile(t, dir, "old.md", "outdated")
	writeFile(t, dir, "sub/README.md", "index")
	writeFile(t, dir, "cobb500.md", "Cobb 500 objectives")

	store := &recordingStore{}
	res, err := NewIngester(store, nil).IngestDirectory(context.Background(), dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesIndexed)
	require.NotEmpty(t, store.added)
	assert.Equal(t, "cobb500.md", store.added[0].Source)
}

func TestIgnorePattern(t *testing.T) {
	tests := map[string]string{
		"":             "",
		"# comment":    "",
		"!keep.md":     "",
		"drafts/":      filepath.FromSlash("drafts") + "/**",
		"/old.md  ":    "old.md",
		"README.md":    "README.md",
		"guides/x.txt": filepath.FromSlash("guides/x.txt"),
	}
	for line, want := range tests {
		assert.Equal(t, want, ignorePattern(line), line)
	}
}

func TestIngestDirectoryInvalid(t *testing.T) {
	ing := NewIngester(&recordingStore{}, nil)

	_, err := ing.IngestDirectory(context.Background(), "", Options{})
	assert.Error(t, err)

	_, err = ing.IngestDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"), Options{})
	assert.Error(t, err)

	_, err = ing.IngestDirectory(context.Background(), t.TempDir(), Options{MaxFileSize: 20 * 1024 * 1024})
	assert.Error(t, err)

	_, err = ing.IngestDirectory(context.Background(), t.TempDir(), Options{IncludePatterns: []string{"["}})
	assert.Error(t, err)
}

func TestSplitPassages(t *testing.T) {
	text := "first paragraph\n\nsecond paragraph\r\n\r\nthird"
	assert.Equal(t, []string{"first paragraph\n\nsecond paragraph\n\nthird"}, SplitPassages(text, 100))
	assert.Equal(t, []string{"first paragraph", "second paragraph", "third"}, SplitPassages(text, 20))

	long := strings.Repeat("word ", 50)
	for _, p := range SplitPassages(long, 30) {
		assert.LessOrEqual(t, len(p), 30)
	}
	assert.Empty(t, SplitPassages(" \n\n ", 10))
}
