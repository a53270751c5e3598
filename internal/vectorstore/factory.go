package vectorstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dominicdesy/intelia-expert/internal/config"
)

// NewStore creates the configured Store.
//
// Supported providers:
//   - "chromem" (default): embedded, in memory or persisted to Chromem.Path
//   - "qdrant": external Qdrant server over gRPC
func NewStore(ctx context.Context, cfg config.VectorStoreConfig, embedder Embedder, logger *zap.Logger) (Store, error) {
	switch cfg.Provider {
	case "", "chromem":
		return NewChromemStore(ChromemConfig{
			Path:              cfg.Chromem.Path,
			Compress:          cfg.Chromem.Compress,
			DefaultCollection: cfg.Collection,
		}, embedder, logger)
	case "qdrant":
		return NewQdrantStore(ctx, QdrantConfig{
			Host:           cfg.Qdrant.Host,
			Port:           cfg.Qdrant.Port,
			APIKey:         cfg.Qdrant.APIKey.Value(),
			UseTLS:         cfg.Qdrant.UseTLS,
			VectorSize:     cfg.Qdrant.VectorSize,
			CollectionName: cfg.Collection,
		}, embedder, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider %q (supported: chromem, qdrant)", ErrInvalidConfig, cfg.Provider)
	}
}
