package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "EXPERT_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// defaultsYAML seeds values whose zero value is meaningful (booleans that
// default to true).
var defaultsYAML = []byte(`
orchestrator:
  enable_primary: true
  enable_rag: true
logging:
  sampling: true
`)

// nestedSections lists the second-level sections that environment keys may
// address, e.g. EXPERT_VECTORSTORE_QDRANT_HOST -> vectorstore.qdrant.host.
var nestedSections = map[string][]string{
	"vectorstore": {"chromem", "qdrant"},
}

// Load reads configuration with precedence env > file > defaults. An empty
// path skips the file. A path that does not exist is an error.
//
//	EXPERT_LLM_MODEL               -> llm.model
//	EXPERT_ORCHESTRATOR_ENABLE_RAG -> orchestrator.enable_rag
//	EXPERT_VECTORSTORE_QDRANT_HOST -> vectorstore.qdrant.host
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultsYAML), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps EXPERT_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	for _, sub := range nestedSections[section] {
		if rest, ok := strings.CutPrefix(field, sub+"_"); ok {
			return section + "." + sub + "." + rest
		}
	}
	return section + "." + field
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}
