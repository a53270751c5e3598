// Package config loads expertd configuration from a YAML file and EXPERT_
// environment variables.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the complete expertd configuration.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	LLM          LLMConfig          `koanf:"llm"`
	Embeddings   EmbeddingsConfig   `koanf:"embeddings"`
	VectorStore  VectorStoreConfig  `koanf:"vectorstore"`
	Conversation ConversationConfig `koanf:"conversation"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Logging      LoggingConfig      `koanf:"logging"`
	Telemetry    TelemetryConfig    `koanf:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LLMConfig selects and tunes the text-generation backend.
type LLMConfig struct {
	// Provider is one of "openai", "langchain-openai", "ollama" or "none".
	Provider    string   `koanf:"provider"`
	Model       string   `koanf:"model"`
	BaseURL     string   `koanf:"base_url"`
	APIKey      Secret   `koanf:"api_key"`
	Temperature float64  `koanf:"temperature"`
	MaxTokens   int      `koanf:"max_tokens"`
	Timeout     Duration `koanf:"timeout"`
	// RatePerSecond limits outbound calls; zero disables limiting.
	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`
	MaxRetries    int     `koanf:"max_retries"`
}

// EmbeddingsConfig configures the OpenAI-compatible embedding endpoint.
type EmbeddingsConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`
}

// VectorStoreConfig selects the knowledge-base store.
type VectorStoreConfig struct {
	Provider   string        `koanf:"provider"`
	Collection string        `koanf:"collection"`
	Chromem    ChromemConfig `koanf:"chromem"`
	Qdrant     QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig configures the embedded chromem-go store.
type ChromemConfig struct {
	// Path is the persistence directory; empty keeps the store in memory.
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// QdrantConfig configures the Qdrant gRPC client.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	UseTLS     bool   `koanf:"use_tls"`
	APIKey     Secret `koanf:"api_key"`
	VectorSize uint64 `koanf:"vector_size"`
}

// ConversationConfig configures conversation persistence.
type ConversationConfig struct {
	// Store is "memory" or "sqlite".
	Store           string `koanf:"store"`
	SQLitePath      string `koanf:"sqlite_path"`
	CacheMaxEntries int    `koanf:"cache_max_entries"`
}

// OrchestratorConfig tunes request processing.
type OrchestratorConfig struct {
	EnablePrimary         bool     `koanf:"enable_primary"`
	EnableRAG             bool     `koanf:"enable_rag"`
	PrimaryTimeout        Duration `koanf:"primary_timeout"`
	ExtractionTimeout     Duration `koanf:"extraction_timeout"`
	ClassificationTimeout Duration `koanf:"classification_timeout"`
	RetrievalTimeout      Duration `koanf:"retrieval_timeout"`
	GenerationTimeout     Duration `koanf:"generation_timeout"`
	RetrievalLimit        int      `koanf:"retrieval_limit"`
	PreviousAnswersWindow int      `koanf:"previous_answers_window"`
	DefaultLanguage       string   `koanf:"default_language"`
}

// LoggingConfig mirrors the settings exposed by the logging package.
type LoggingConfig struct {
	Level    string `koanf:"level"`
	Format   string `koanf:"format"`
	OTEL     bool   `koanf:"otel"`
	Sampling bool   `koanf:"sampling"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// Default returns a configuration that runs fully offline: in-memory
// conversations, an embedded vector store and no LLM.
func Default() *Config {
	cfg := &Config{
		Orchestrator: OrchestratorConfig{EnablePrimary: true, EnableRAG: true},
		Logging:      LoggingConfig{Sampling: true},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "none"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = Duration(30 * time.Second)
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 800
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 2
	}
	if cfg.LLM.Burst == 0 {
		cfg.LLM.Burst = 1
	}

	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "text-embedding-3-small"
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "poultry_knowledge"
	}
	if cfg.VectorStore.Qdrant.Host == "" {
		cfg.VectorStore.Qdrant.Host = "localhost"
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = 6334
	}
	if cfg.VectorStore.Qdrant.VectorSize == 0 {
		cfg.VectorStore.Qdrant.VectorSize = 1536 // text-embedding-3-small
	}

	if cfg.Conversation.Store == "" {
		cfg.Conversation.Store = "memory"
	}
	if cfg.Conversation.SQLitePath == "" {
		cfg.Conversation.SQLitePath = "expertd.db"
	}
	if cfg.Conversation.CacheMaxEntries == 0 {
		cfg.Conversation.CacheMaxEntries = 1000
	}

	o := &cfg.Orchestrator
	if o.PrimaryTimeout == 0 {
		o.PrimaryTimeout = Duration(20 * time.Second)
	}
	if o.ExtractionTimeout == 0 {
		o.ExtractionTimeout = Duration(10 * time.Second)
	}
	if o.ClassificationTimeout == 0 {
		o.ClassificationTimeout = Duration(8 * time.Second)
	}
	if o.RetrievalTimeout == 0 {
		o.RetrievalTimeout = Duration(5 * time.Second)
	}
	if o.GenerationTimeout == 0 {
		o.GenerationTimeout = Duration(20 * time.Second)
	}
	if o.RetrievalLimit == 0 {
		o.RetrievalLimit = 5
	}
	if o.PreviousAnswersWindow == 0 {
		o.PreviousAnswersWindow = 3
	}
	if o.DefaultLanguage == "" {
		o.DefaultLanguage = "fr"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "expertd"
	}
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	switch c.LLM.Provider {
	case "none", "openai", "langchain-openai", "ollama":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.LLM.Provider == "openai" || c.LLM.Provider == "langchain-openai" {
		if !c.LLM.APIKey.IsSet() && c.LLM.BaseURL == "" {
			return errors.New("llm api_key or base_url required for openai providers")
		}
	}
	if c.LLM.RatePerSecond < 0 {
		return errors.New("llm rate_per_second cannot be negative")
	}
	if c.LLM.MaxRetries < 0 {
		return errors.New("llm max_retries cannot be negative")
	}
	switch c.VectorStore.Provider {
	case "none", "chromem", "qdrant":
	default:
		return fmt.Errorf("unknown vectorstore provider %q", c.VectorStore.Provider)
	}
	switch c.Conversation.Store {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown conversation store %q", c.Conversation.Store)
	}
	if c.Conversation.CacheMaxEntries < 1 {
		return errors.New("conversation cache_max_entries must be positive")
	}
	if c.Orchestrator.PreviousAnswersWindow < 0 {
		return errors.New("orchestrator previous_answers_window cannot be negative")
	}
	switch c.Orchestrator.DefaultLanguage {
	case "fr", "en", "es":
	default:
		return fmt.Errorf("unsupported default language %q", c.Orchestrator.DefaultLanguage)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry sample_rate must be within [0,1], got %v", c.Telemetry.SampleRate)
	}
	return nil
}
