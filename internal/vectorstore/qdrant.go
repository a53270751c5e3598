package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var qdrantTracer = otel.Tracer("expertd.vectorstore.qdrant")

const maxQueryLength = 10000

// QdrantConfig holds configuration for Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (NOT HTTP REST port).
	// Default: 6334 (gRPC), not 6333 (HTTP)
	Port int

	APIKey string

	// CollectionName is the default collection for operations.
	CollectionName string

	// VectorSize MUST match the embedder's output dimension.
	VectorSize uint64

	// Distance defaults to Cosine.
	Distance qdrant.Distance

	UseTLS bool

	// MaxRetries bounds retries of transient gRPC failures. Default: 3
	MaxRetries int

	// RetryBackoff doubles on each retry. Default: 500ms
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes. Default: 50MB
	MaxMessageSize int
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.CollectionName)
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.CollectionName == "" {
		c.CollectionName = "poultry_knowledge"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.Distance == 0 {
		c.Distance = qdrant.Distance_Cosine
	}
}

// IsTransientError reports whether a gRPC error is worth retrying.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantStore is a Store backed by Qdrant's native gRPC client.
type QdrantStore struct {
	client   *qdrant.Client
	embedder Embedder
	config   QdrantConfig
	logger   *zap.Logger

	// collections caches known-existing collection names.
	collections sync.Map
}

// NewQdrantStore connects to Qdrant and performs a health check.
func NewQdrantStore(ctx context.Context, config QdrantConfig, embedder Embedder, logger *zap.Logger) (*QdrantStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if !config.UseTLS {
		logger.Warn("qdrant gRPC using plaintext (TLS disabled)", zap.String("host", config.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	store := &QdrantStore{client: client, embedder: embedder, config: config, logger: logger}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(hctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %w", ErrConnectionFailed, err)
	}

	logger.Info("qdrant store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("default_collection", config.CollectionName),
		zap.Uint64("vector_size", config.VectorSize),
	)
	return store, nil
}

// DefaultCollection implements Store.
func (s *QdrantStore) DefaultCollection() string { return s.config.CollectionName }

// Close closes the Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// retryOperation retries transient failures with exponential backoff.
func (s *QdrantStore) retryOperation(ctx context.Context, name string, op func() error) error {
	backoff := s.config.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", name, err)
		}
		if attempt == s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", name, s.config.MaxRetries, err)
		}
		s.logger.Debug("retrying qdrant operation",
			zap.String("operation", name),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", name, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

// AddDocuments embeds docs and upserts them, creating the collection on
// first use.
func (s *QdrantStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.AddDocuments")
	defer span.End()

	span.SetAttributes(attribute.Int("document_count", len(docs)))

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}
	collectionName, err := batchCollection(docs, s.config.CollectionName)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("collection", collectionName))

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
	points := make([]*qdrant.PointStruct, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
		if ids[i] == "" {
			ids[i] = uuid.NewString()
		}
		points[i] = &qdrant.PointStruct{
			Id:      pointID(ids[i]),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: toPayload(ids[i], doc),
		}
	}

	if err := s.ensureCollection(ctx, collectionName); err != nil {
		span.RecordError(err)
		return nil, err
	}

	err = s.retryOperation(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collectionName,
			Points:         points,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("upserting points to collection %s: %w", collectionName, err)
	}

	span.SetStatus(codes.Ok, "success")
	return ids, nil
}

// Search performs similarity search in the default collection.
func (s *QdrantStore) Search(ctx context.Context, query string, k int) ([]Document, error) {
	return s.SearchInCollection(ctx, s.config.CollectionName, query, k)
}

// SearchInCollection performs similarity search in a specific collection.
func (s *QdrantStore) SearchInCollection(ctx context.Context, collectionName, query string, k int) ([]Document, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.SearchInCollection")
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
	if len(query) > maxQueryLength {
		return nil, fmt.Errorf("query exceeds maximum length of %d characters", maxQueryLength)
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}

	var points []*qdrant.ScoredPoint
	err = s.retryOperation(ctx, "search", func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: collectionName,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return err
		}
		points = res
		return nil
	})
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
			return nil, ErrCollectionNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching collection %s: %w", collectionName, err)
	}

	docs := make([]Document, len(points))
	for i, p := range points {
		docs[i] = fromPayload(p.GetPayload())
		docs[i].Score = p.GetScore()
		docs[i].Collection = collectionName
	}

	span.SetAttributes(attribute.Int("results_count", len(docs)))
	span.SetStatus(codes.Ok, "success")
	return docs, nil
}

// CollectionExists checks if a collection exists.
func (s *QdrantStore) CollectionExists(ctx context.Context, collectionName string) (bool, error) {
	if err := ValidateCollectionName(collectionName); err != nil {
		return false, err
	}
	if _, ok := s.collections.Load(collectionName); ok {
		return true, nil
	}
	var exists bool
	err := s.retryOperation(ctx, "collection_exists", func() error {
		ok, err := s.client.CollectionExists(ctx, collectionName)
		exists = ok
		return err
	})
	if err != nil {
		return false, fmt.Errorf("checking collection %s: %w", collectionName, err)
	}
	if exists {
		s.collections.Store(collectionName, true)
	}
	return exists, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context, name string) error {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil || exists {
		return err
	}
	err = s.retryOperation(ctx, "create_collection", func() error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.config.VectorSize,
				Distance: s.config.Distance,
			}),
		})
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	s.collections.Store(name, true)
	s.logger.Info("created qdrant collection", zap.String("collection", name))
	return nil
}

// pointID keeps UUID document ids; anything else is mapped to a stable
// name-based UUID. The original id is preserved in the payload.
func pointID(id string) *qdrant.PointId {
	if _, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(id)
	}
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String())
}

func toPayload(id string, doc Document) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(doc.Metadata)+3)
	for k, v := range doc.Metadata {
		payload[k] = qdrant.NewValueString(v)
	}
	payload[idKey] = qdrant.NewValueString(id)
	payload[contentKey] = qdrant.NewValueString(doc.Content)
	if doc.Source != "" {
		payload[sourceKey] = qdrant.NewValueString(doc.Source)
	}
	return payload
}

func fromPayload(payload map[string]*qdrant.Value) Document {
	doc := Document{Metadata: make(map[string]string, len(payload))}
	for k, v := range payload {
		var s string
		switch val := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			s = val.StringValue
		case *qdrant.Value_IntegerValue:
			s = fmt.Sprintf("%d", val.IntegerValue)
		case *qdrant.Value_DoubleValue:
			s = fmt.Sprintf("%g", val.DoubleValue)
		case *qdrant.Value_BoolValue:
			s = fmt.Sprintf("%t", val.BoolValue)
		default:
			continue
		}
		switch k {
		case idKey:
			doc.ID = s
		case contentKey:
			doc.Content = s
		case sourceKey:
			doc.Source = s
			doc.Metadata[k] = s
		default:
			doc.Metadata[k] = s
		}
	}
	return doc
}

var _ Store = (*QdrantStore)(nil)
