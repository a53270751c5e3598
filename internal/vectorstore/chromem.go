package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("expertd.vectorstore.chromem")

// ChromemConfig holds configuration for chromem-go embedded vector database.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty keeps the
	// database in memory.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// DefaultCollection is the default collection name.
	// Default: "poultry_knowledge"
	DefaultCollection string
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.DefaultCollection == "" {
		c.DefaultCollection = "poultry_knowledge"
	}
}

// ChromemStore implements Store using chromem-go.
//
// chromem-go is an embeddable vector database: pure Go, no external
// service, exact nearest-neighbour search and optional gob persistence.
type ChromemStore struct {
	db       *chromem.DB
	embedder Embedder
	config   ChromemConfig
	logger   *zap.Logger
}

// NewChromemStore creates a new ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := ValidateCollectionName(config.DefaultCollection); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		expandedPath, err := expandPath(config.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(expandedPath, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
		}
		db, err = chromem.NewPersistentDB(expandedPath, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
		config.Path = expandedPath
	}

	logger.Info("chromem store initialized",
		zap.String("path", config.Path),
		zap.Bool("compress", config.Compress),
		zap.String("default_collection", config.DefaultCollection),
	)

	return &ChromemStore{db: db, embedder: embedder, config: config, logger: logger}, nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// DefaultCollection implements Store.
func (s *ChromemStore) DefaultCollection() string { return s.config.DefaultCollection }

// embeddingFunc must always be passed to chromem: given nil it falls back to
// its own OpenAI embedder.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// AddDocuments adds documents to the vector store.
func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.AddDocuments")
	defer span.End()

	span.SetAttributes(attribute.Int("document_count", len(docs)))

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	collectionName, err := batchCollection(docs, s.config.DefaultCollection)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("collection", collectionName))

	collection, err := s.db.GetOrCreateCollection(collectionName, nil, s.embeddingFunc())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("getting/creating collection %s: %w", collectionName, err)
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}
	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}

	ids := make([]string, len(docs))
	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
		if ids[i] == "" {
			ids[i] = uuid.NewString()
		}
		chromemDocs[i] = chromem.Document{
			ID:        ids[i],
			Content:   doc.Content,
			Metadata:  withSource(doc.Metadata, doc.Source),
			Embedding: embeddings[i],
		}
	}

	// Concurrency of 1 since embeddings are already computed.
	if err := collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding documents: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("added documents to chromem",
		zap.String("collection", collectionName),
		zap.Int("count", len(docs)),
	)
	return ids, nil
}

// Search performs similarity search in the default collection.
func (s *ChromemStore) Search(ctx context.Context, query string, k int) ([]Document, error) {
	return s.SearchInCollection(ctx, s.config.DefaultCollection, query, k)
}

// SearchInCollection performs similarity search in a specific collection.
func (s *ChromemStore) SearchInCollection(ctx context.Context, collectionName, query string, k int) ([]Document, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.SearchInCollection")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collectionName),
		attribute.Int("k", k),
	)

	if err := ValidateCollectionName(collectionName); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	collection := s.db.GetCollection(collectionName, s.embeddingFunc())
	if collection == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, ErrCollectionNotFound
	}

	// chromem requires nResults <= doc count
	count := collection.Count()
	if count == 0 {
		return []Document{}, nil
	}
	if k > count {
		k = count
	}

	results, err := collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", collectionName, err)
	}

	docs := make([]Document, len(results))
	for i, r := range results {
		docs[i] = Document{
			ID:         r.ID,
			Content:    r.Content,
			Source:     r.Metadata[sourceKey],
			Score:      r.Similarity,
			Metadata:   r.Metadata,
			Collection: collectionName,
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(docs)))
	span.SetStatus(codes.Ok, "success")
	return docs, nil
}

// CollectionExists checks if a collection exists.
func (s *ChromemStore) CollectionExists(ctx context.Context, collectionName string) (bool, error) {
	if err := ValidateCollectionName(collectionName); err != nil {
		return false, err
	}
	return s.db.GetCollection(collectionName, s.embeddingFunc()) != nil, nil
}

// Close is a no-op; chromem-go persists on every write.
func (s *ChromemStore) Close() error {
	s.logger.Debug("chromem store closed")
	return nil
}

func batchCollection(docs []Document, def string) (string, error) {
	name := def
	if docs[0].Collection != "" {
		name = docs[0].Collection
	}
	for i, doc := range docs {
		if doc.Collection != "" && doc.Collection != name {
			return "", fmt.Errorf("document at index %d has collection %q but batch targets %q", i, doc.Collection, name)
		}
	}
	if err := ValidateCollectionName(name); err != nil {
		return "", err
	}
	return name, nil
}

func withSource(metadata map[string]string, source string) map[string]string {
	out := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	if source != "" {
		out[sourceKey] = source
	}
	return out
}

var _ Store = (*ChromemStore)(nil)
