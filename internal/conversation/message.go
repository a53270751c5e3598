package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/dominicdesy/intelia-expert/internal/entities"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of a conversation.
type Message struct {
	ID        string              `json:"id"`
	Role      Role                `json:"role"`
	Content   string              `json:"content"`
	Timestamp time.Time           `json:"timestamp"`
	Language  string              `json:"language,omitempty"`
	Entities  *entities.EntitySet `json:"entities,omitempty"`

	// IsOriginalQuestion marks a question that triggered clarification.
	IsOriginalQuestion      bool   `json:"is_original_question,omitempty"`
	// IsClarificationResponse marks a reply meant to resolve one.
	IsClarificationResponse bool   `json:"is_clarification_response,omitempty"`
	// OriginalQuestionID links a clarification response to its question.
	OriginalQuestionID      string `json:"original_question_id,omitempty"`
}

// NewMessage returns a message with a fresh id and the current time.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

func (m Message) clone() Message {
	m.Entities = m.Entities.Clone()
	return m
}
