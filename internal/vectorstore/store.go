// Package vectorstore holds the poultry knowledge base: document storage and
// similarity search over an embedded chromem-go database or a Qdrant server.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to Qdrant")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrEmptyQuery is returned for blank search queries.
	ErrEmptyQuery = errors.New("query cannot be empty")
)

// collectionNamePattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name against ^[a-z0-9_]{1,64}$.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Document is a knowledge-base passage. Score is set on search results only.
type Document struct {
	ID      string
	Content string
	// Source names where the passage came from, e.g. a guide's file path.
	Source   string
	Score    float32
	Metadata map[string]string
	// Collection overrides the store's default collection on insert.
	Collection string
}

// Embedder generates vector embeddings from text.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the interface for vector storage operations.
//
// Implementations:
//   - ChromemStore: Embedded chromem-go (default)
//   - QdrantStore: External Qdrant gRPC client
type Store interface {
	// AddDocuments embeds and stores docs. All docs in one call must target
	// the same collection. Returns the stored IDs.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// Search returns up to k documents from the default collection, most
	// similar first.
	Search(ctx context.Context, query string, k int) ([]Document, error)

	// SearchInCollection searches a named collection.
	SearchInCollection(ctx context.Context, collection, query string, k int) ([]Document, error)

	// CollectionExists checks if a collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// DefaultCollection names the collection used when none is given.
	DefaultCollection() string

	Close() error
}

const (
	sourceKey  = "source"
	contentKey = "content"
	idKey      = "id"
)
