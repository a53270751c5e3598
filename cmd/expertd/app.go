package main

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/dominicdesy/intelia-expert/internal/config"
	"github.com/dominicdesy/intelia-expert/internal/conversation"
	"github.com/dominicdesy/intelia-expert/internal/embeddings"
	"github.com/dominicdesy/intelia-expert/internal/extraction"
	"github.com/dominicdesy/intelia-expert/internal/llm"
	"github.com/dominicdesy/intelia-expert/internal/logging"
	"github.com/dominicdesy/intelia-expert/internal/orchestrator"
	"github.com/dominicdesy/intelia-expert/internal/reranker"
	"github.com/dominicdesy/intelia-expert/internal/sufficiency"
	"github.com/dominicdesy/intelia-expert/internal/telemetry"
	"github.com/dominicdesy/intelia-expert/internal/vectorstore"
)

// app holds the dependencies shared by the commands. Components are built on
// first use so that, for example, ingest never opens the conversation store.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry

	store   vectorstore.Store
	manager *conversation.Manager
	closers []func() error
}

// newApp loads configuration and sets up logging and telemetry.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	tel := telemetry.New(ctx, cfg.Telemetry, telemetry.WithVersion(version))

	logCfg, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to configure logger: %w", err)
	}
	logger, err := logging.NewLogger(logCfg, global.GetLoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if degraded, cause := tel.Degraded(); degraded {
		logger.Warn(ctx, "telemetry degraded, continuing without export", zap.Error(cause))
	}

	return &app{cfg: cfg, logger: logger, telemetry: tel}, nil
}

// vectorStore opens the knowledge store, or returns nil when the provider is
// "none".
func (a *app) vectorStore(ctx context.Context) (vectorstore.Store, error) {
	if a.store != nil || a.cfg.VectorStore.Provider == "none" {
		return a.store, nil
	}
	embedder, err := embeddings.NewService(embeddings.FromSettings(a.cfg.Embeddings), a.logger.Underlying())
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding service: %w", err)
	}
	store, err := vectorstore.NewStore(ctx, a.cfg.VectorStore, embedder, a.logger.Underlying())
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	a.logger.Info(ctx, "vector store ready",
		zap.String("provider", a.cfg.VectorStore.Provider),
		zap.String("collection", store.DefaultCollection()),
	)
	a.store = store
	a.closers = append(a.closers, store.Close)
	return store, nil
}

// conversations returns the conversation manager over the configured store.
func (a *app) conversations() (*conversation.Manager, error) {
	if a.manager != nil {
		return a.manager, nil
	}
	var store conversation.Store
	switch a.cfg.Conversation.Store {
	case "sqlite":
		s, err := conversation.NewSQLiteStore(a.cfg.Conversation.SQLitePath, a.logger.Underlying())
		if err != nil {
			return nil, fmt.Errorf("failed to open conversation store: %w", err)
		}
		store = s
	default:
		store = conversation.NewMemoryStore()
	}
	a.manager = conversation.NewManager(store, a.cfg.Conversation.CacheMaxEntries, a.logger.Underlying())
	a.closers = append(a.closers, a.manager.Close)
	return a.manager, nil
}

// orchestrator wires every collaborator. Without an LLM the orchestrator
// runs on heuristics and answer templates.
func (a *app) orchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	manager, err := a.conversations()
	if err != nil {
		return nil, err
	}
	z := a.logger.Underlying()
	oc := a.cfg.Orchestrator

	gen, err := llm.New(a.cfg.LLM, z)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm: %w", err)
	}

	deps := orchestrator.Deps{
		Manager:    manager,
		Extractor:  extraction.NewTiered(gen, oc.ExtractionTimeout.Duration(), z),
		Classifier: sufficiency.NewClassifier(gen, oc.ClassificationTimeout.Duration(), z),
		Logger:     a.logger,
		Tracer:     a.telemetry.Tracer("expertd.orchestrator"),
	}

	store, err := a.vectorStore(ctx)
	if err != nil {
		return nil, err
	}
	if store != nil {
		deps.Retriever = vectorstore.NewRetriever(store, []string{a.cfg.VectorStore.Collection}, z,
			vectorstore.WithReranker(reranker.New()))
	}
	if gen != nil {
		deps.Pipeline = orchestrator.NewLLMPipeline(gen, deps.Retriever, oc.RetrievalLimit, z)
		deps.Responder = orchestrator.NewLLMResponder(gen, a.cfg.LLM.MaxTokens)
	}

	a.logger.Info(ctx, "orchestrator configured",
		zap.String("llm_provider", a.cfg.LLM.Provider),
		zap.Bool("primary_enabled", oc.EnablePrimary && gen != nil),
		zap.Bool("rag_enabled", oc.EnableRAG && store != nil),
		zap.String("conversation_store", a.cfg.Conversation.Store),
	)
	return orchestrator.New(oc, deps)
}

// Close releases resources in reverse order of acquisition and flushes
// telemetry.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
