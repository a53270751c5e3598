package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "expertd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "none", cfg.LLM.Provider)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, "memory", cfg.Conversation.Store)
	assert.Equal(t, 1000, cfg.Conversation.CacheMaxEntries)
	assert.Equal(t, 3, cfg.Orchestrator.PreviousAnswersWindow)
	assert.Equal(t, 5*time.Second, cfg.Orchestrator.RetrievalTimeout.Duration())
	assert.True(t, cfg.Orchestrator.EnablePrimary)
	assert.True(t, cfg.Orchestrator.EnableRAG)
	assert.True(t, cfg.Logging.Sampling)
	assert.Equal(t, "fr", cfg.Orchestrator.DefaultLanguage)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
llm:
  provider: openai
  model: gpt-4o
  api_key: sk-file
  timeout: 12s
orchestrator:
  enable_rag: false
  previous_answers_window: 5
vectorstore:
  provider: qdrant
  qdrant:
    host: qdrant.internal
`)
	t.Setenv("EXPERT_LLM_MODEL", "gpt-4.1-mini")
	t.Setenv("EXPERT_VECTORSTORE_QDRANT_PORT", "7334")
	t.Setenv("EXPERT_CONVERSATION_CACHE_MAX_ENTRIES", "50")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "gpt-4.1-mini", cfg.LLM.Model)
	assert.Equal(t, "sk-file", cfg.LLM.APIKey.Value())
	assert.Equal(t, 12*time.Second, cfg.LLM.Timeout.Duration())
	assert.False(t, cfg.Orchestrator.EnableRAG)
	assert.True(t, cfg.Orchestrator.EnablePrimary)
	assert.Equal(t, 5, cfg.Orchestrator.PreviousAnswersWindow)
	assert.Equal(t, "qdrant.internal", cfg.VectorStore.Qdrant.Host)
	assert.Equal(t, 7334, cfg.VectorStore.Qdrant.Port)
	assert.Equal(t, 50, cfg.Conversation.CacheMaxEntries)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	bad := writeConfig(t, "llm:\n  provider: mystery\n")
	_, err = Load(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown llm provider")

	noKey := writeConfig(t, "llm:\n  provider: openai\n")
	_, err = Load(noKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"EXPERT_LLM_MODEL":                  "llm.model",
		"EXPERT_LLM_RATE_PER_SECOND":        "llm.rate_per_second",
		"EXPERT_ORCHESTRATOR_ENABLE_RAG":    "orchestrator.enable_rag",
		"EXPERT_VECTORSTORE_QDRANT_USE_TLS": "vectorstore.qdrant.use_tls",
		"EXPERT_VECTORSTORE_CHROMEM_PATH":   "vectorstore.chromem.path",
		"EXPERT_VECTORSTORE_COLLECTION":     "vectorstore.collection",
		"EXPERT_TELEMETRY_SERVICE_NAME":     "telemetry.service_name",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"bad store", func(c *Config) { c.Conversation.Store = "redis" }, "unknown conversation store"},
		{"bad vectorstore", func(c *Config) { c.VectorStore.Provider = "pinecone" }, "unknown vectorstore provider"},
		{"bad language", func(c *Config) { c.Orchestrator.DefaultLanguage = "de" }, "unsupported default language"},
		{"bad sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }, "sample_rate"},
		{"negative rate", func(c *Config) { c.LLM.RatePerSecond = -1 }, "rate_per_second"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSecret_NeverPrints(t *testing.T) {
	s := Secret("sk-live-123")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))

	b, err := json.Marshal(struct{ Key Secret }{s})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "sk-live")

	assert.Equal(t, "sk-live-123", s.Value())
	assert.False(t, Secret("").IsSet())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())
	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
