package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIGenerator(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"status\":\"SUFFICIENT\"}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	g, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1", Model: "gpt-4o-mini"})
	require.NoError(t, err)

	text, err := g.Generate(context.Background(), "classify", WithSystem("you are an analyst"), WithJSON(), WithMaxTokens(50))
	require.NoError(t, err)
	assert.Equal(t, `{"status":"SUFFICIENT"}`, text)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.EqualValues(t, 50, got["max_tokens"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	format, ok := got["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
}

func TestOpenAIGeneratorRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
	}))
	defer srv.Close()

	g, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1", Model: "gpt-4o-mini"})
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "hello")
	require.Error(t, err)
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindRateLimited, se.Kind)
	assert.Equal(t, http.StatusTooManyRequests, se.Status)
	assert.True(t, se.Retryable())
}

func TestOpenAIGeneratorEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	g, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "test", BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, KindAPIError, KindOf(err))
}

func TestNewOpenAIGeneratorValidation(t *testing.T) {
	_, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "k"})
	assert.Error(t, err)
	_, err = NewOpenAIGenerator(OpenAIConfig{Model: "m"})
	assert.Error(t, err)
}
