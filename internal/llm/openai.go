package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures OpenAIGenerator.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Defaults apply when a call does not override them.
	Defaults Options
}

// OpenAIGenerator calls the Chat Completions API through go-openai.
type OpenAIGenerator struct {
	client   *openai.Client
	model    string
	defaults Options
}

// NewOpenAIGenerator builds a client. BaseURL targets OpenAI-compatible
// servers.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.Model == "" {
		return nil, errors.New("openai: model required")
	}
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("openai: api key required")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &OpenAIGenerator{
		client:   openai.NewClientWithConfig(oc),
		model:    cfg.Model,
		defaults: cfg.Defaults,
	}, nil
}

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	o := Apply(g.defaults, opts...)
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	var messages []openai.ChatCompletionMessage
	if o.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: o.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		MaxTokens:   o.MaxTokens,
		Temperature: float32(o.Temperature),
	}
	if o.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", wrapError("openai", err, openAIStatus(err))
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", wrapError("openai", ErrEmptyResponse, 0)
	}
	return resp.Choices[0].Message.Content, nil
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func (g *OpenAIGenerator) String() string {
	return fmt.Sprintf("openai(%s)", g.model)
}
