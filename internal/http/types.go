package http

import "github.com/dominicdesy/intelia-expert/internal/orchestrator"

// HeaderConversationID carries the conversation id when the body omits it,
// and is echoed on every answer.
const HeaderConversationID = "X-Conversation-ID"

// AskRequest is the request body for POST /v1/ask.
type AskRequest = orchestrator.Request

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the response body for GET /v1/status.
type StatusResponse struct {
	Status        string                     `json:"status"`
	Version       string                     `json:"version,omitempty"`
	Stats         orchestrator.StatsSnapshot `json:"stats"`
	Conversations int                        `json:"cached_conversations"`
	Knowledge     map[string]CollectionState `json:"knowledge,omitempty"`
}
