package orchestrator

import (
	"github.com/dominicdesy/intelia-expert/internal/entities"
)

// Tier names the path that produced a response.
type Tier string

const (
	TierPrimary   Tier = "primary"
	TierFallback  Tier = "fallback"
	TierReprocess Tier = "reprocess"
	TierTemplate  Tier = "template"
)

// Request is one farmer message.
type Request struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	Language       string `json:"language,omitempty"`

	// IsClarificationResponse marks an answer to clarification questions
	// asked on the previous turn.
	IsClarificationResponse bool `json:"is_clarification_response,omitempty"`
}

// Response is the answer to a Request.
type Response struct {
	ConversationID         string              `json:"conversation_id"`
	Response               string              `json:"response"`
	Confidence             float64             `json:"confidence"`
	Entities               *entities.EntitySet `json:"entities,omitempty"`
	ClarificationQuestions []string            `json:"clarification_questions,omitempty"`
	RAGUsed                bool                `json:"rag_used"`
	Diagnostics            map[string]any      `json:"diagnostics,omitempty"`
}

// NeedsClarification reports whether the response asks the user for more
// context.
func (r *Response) NeedsClarification() bool {
	return len(r.ClarificationQuestions) > 0
}

// answer is what a tier produces before it is written to the conversation.
type answer struct {
	tier          Tier
	text          string
	confidence    float64
	entities      *entities.EntitySet
	clarification []string
	missing       []entities.Field
	query         string
	sources       []string
	ragUsed       bool
	method        string
}

func (a *answer) clarifies() bool {
	return len(a.clarification) > 0
}
