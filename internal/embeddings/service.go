// Package embeddings generates vectors for knowledge-base documents and
// queries through langchaingo's OpenAI-compatible embedder.
//
// Any server speaking the OpenAI embeddings API works (OpenAI, TEI, Ollama's
// /v1 endpoint):
//
//	svc, err := embeddings.NewService(embeddings.Config{
//	    BaseURL: "http://localhost:8080/v1",
//	    Model:   "BAAI/bge-small-en-v1.5",
//	}, logger)
//	vectors, err := svc.EmbedDocuments(ctx, []string{"text1", "text2"})
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/dominicdesy/intelia-expert/internal/config"
)

var (
	// ErrEmptyInput indicates empty or nil input texts
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates the provider returned no usable vectors
	ErrEmbeddingFailed = errors.New("embedding failed")
)

// Config holds configuration for the embedding service.
type Config struct {
	// BaseURL of an OpenAI-compatible API. Empty uses api.openai.com.
	BaseURL string

	// Model is the embedding model, e.g. text-embedding-3-small.
	Model string

	// APIKey is optional for self-hosted servers.
	APIKey string
}

// FromSettings converts the embeddings section of the expertd configuration.
func FromSettings(s config.EmbeddingsConfig) Config {
	return Config{BaseURL: s.BaseURL, Model: s.Model, APIKey: s.APIKey.Value()}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// Service provides embedding generation functionality.
type Service struct {
	embedder *embeddings.EmbedderImpl
	config   Config
	metrics  *Metrics
}

// NewService creates a new embedding service with the given configuration.
func NewService(cfg Config, logger *zap.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// langchaingo requires a token, use placeholder for self-hosted servers
		apiKey = "placeholder"
	}

	opts := []openai.Option{
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithToken(apiKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &Service{
		embedder: embedder,
		config:   cfg,
		metrics:  NewMetrics(logger),
	}, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		s.metrics.RecordGeneration(ctx, s.config.Model, "embed_documents", time.Since(start), len(texts), genErr)
	}()

	if len(texts) == 0 {
		genErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		genErr = fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
		return nil, genErr
	}
	if len(vectors) != len(texts) {
		genErr = fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vectors), len(texts))
		return nil, genErr
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		s.metrics.RecordGeneration(ctx, s.config.Model, "embed_query", time.Since(start), 1, genErr)
	}()

	if strings.TrimSpace(text) == "" {
		genErr = fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		genErr = fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
		return nil, genErr
	}
	if len(vector) == 0 {
		genErr = fmt.Errorf("%w: empty response", ErrEmbeddingFailed)
		return nil, genErr
	}
	return vector, nil
}

// Dimension returns the vector size of the configured model.
func (s *Service) Dimension() int {
	return DimensionForModel(s.config.Model)
}

// DimensionForModel returns the embedding dimension for a model name.
// Falls back to 1536 if the model is unknown.
func DimensionForModel(model string) int {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "text-embedding-3-large"):
		return 3072
	case strings.Contains(m, "text-embedding-3-small"), strings.Contains(m, "ada-002"):
		return 1536
	case strings.Contains(m, "nomic-embed"), strings.Contains(m, "base"):
		return 768
	case strings.Contains(m, "large"):
		return 1024
	case strings.Contains(m, "small"), strings.Contains(m, "mini"):
		return 384
	default:
		return 1536
	}
}
