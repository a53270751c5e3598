package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainGenerator adapts any langchaingo model.
type LangchainGenerator struct {
	model    llms.Model
	backend  string
	defaults Options
}

// NewLangchainGenerator wraps an existing model.
func NewLangchainGenerator(model llms.Model, backend string, defaults Options) *LangchainGenerator {
	return &LangchainGenerator{model: model, backend: backend, defaults: defaults}
}

// NewLangchainOpenAI builds an OpenAI-compatible langchaingo model.
func NewLangchainOpenAI(cfg OpenAIConfig) (*LangchainGenerator, error) {
	if cfg.Model == "" {
		return nil, errors.New("langchain-openai: model required")
	}
	token := cfg.APIKey
	if token == "" {
		// langchaingo refuses an empty token even for local servers.
		token = "placeholder"
	}
	opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithToken(token)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return NewLangchainGenerator(m, "langchain-openai", cfg.Defaults), nil
}

// NewOllama builds an Ollama-backed model.
func NewOllama(serverURL, model string, defaults Options) (*LangchainGenerator, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	m, err := ollama.New(opts...)
	if err != nil {
		return nil, err
	}
	return NewLangchainGenerator(m, "ollama", defaults), nil
}

// Generate implements Generator.
func (g *LangchainGenerator) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	o := Apply(g.defaults, opts...)
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	var msgs []llms.MessageContent
	if o.System != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, o.System))
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	var callOpts []llms.CallOption
	if o.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(o.Temperature))
	}
	if o.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(o.MaxTokens))
	}
	if o.JSON {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	resp, err := g.model.GenerateContent(ctx, msgs, callOpts...)
	if err != nil {
		return "", wrapError(g.backend, err, 0)
	}
	if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", wrapError(g.backend, ErrEmptyResponse, 0)
	}
	return resp.Choices[0].Content, nil
}
