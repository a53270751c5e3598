package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dominicdesy/intelia-expert/internal/entities"
)

// ClarificationState is the derived state of the clarification machine.
type ClarificationState string

const (
	StateNormal         ClarificationState = "NORMAL"
	StatePending        ClarificationState = "PENDING"
	StateCriticalActive ClarificationState = "CRITICAL_ACTIVE"
)

// Clarification holds the raw clarification flags. CallbackID refers to a
// CallbackRegistry entry; it never owns the callback.
type Clarification struct {
	PendingClarification        bool   `json:"pending_clarification"`
	LastOriginalQuestionID      string `json:"last_original_question_id,omitempty"`
	CriticalClarificationActive bool   `json:"critical_clarification_active"`
	OriginalQuestionPending     string `json:"original_question_pending,omitempty"`
	CallbackID                  string `json:"callback_id,omitempty"`
	ReprocessingScheduled       bool   `json:"reprocessing_scheduled"`
}

// highConfidence is the threshold for entities folded into a reprocessed
// question.
const highConfidence = 0.7

// Conversation is the memory of one conversation. All methods are
// synchronous and safe for concurrent use, but callers must still serialize
// whole requests per conversation to keep merges in arrival order.
type Conversation struct {
	mu sync.Mutex

	id           string
	userID       string
	language     string
	messages     []Message
	consolidated *entities.EntitySet
	urgency      Urgency
	createdAt    time.Time
	lastActivity time.Time
	clar         Clarification
}

// New returns an empty conversation. An empty id gets a fresh UUID.
func New(id, userID, language string) *Conversation {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	return &Conversation{
		id:           id,
		userID:       userID,
		language:     language,
		urgency:      UrgencyLow,
		createdAt:    now,
		lastActivity: now,
	}
}

// ID returns the conversation id.
func (c *Conversation) ID() string { return c.id }

// UserID returns the owner id.
func (c *Conversation) UserID() string { return c.userID }

// Language returns the conversation language.
func (c *Conversation) Language() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.language
}

// SetLanguage records the latest language used.
func (c *Conversation) SetLanguage(language string) {
	if language == "" {
		return
	}
	c.mu.Lock()
	c.language = language
	c.mu.Unlock()
}

// AddMessage appends m, merges its entities into the consolidated set and
// applies the clarification transitions. Missing id, timestamp and language
// are filled in; the stored message is returned.
func (c *Conversation) AddMessage(m Message) Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if m.Language == "" {
		m.Language = c.language
	}
	m = m.clone()
	c.messages = append(c.messages, m)

	if m.Entities != nil {
		c.consolidated = entities.Merge(c.consolidated, m.Entities)
	}

	if m.IsOriginalQuestion {
		c.clar.LastOriginalQuestionID = m.ID
		c.clar.PendingClarification = true
	}
	if m.IsClarificationResponse {
		if c.clar.PendingClarification && m.OriginalQuestionID == c.clar.LastOriginalQuestionID {
			c.clar.PendingClarification = false
		}
		// Fires after the merge so the reprocessed question sees the
		// clarified entities.
		if c.clar.CriticalClarificationActive {
			c.clar.CriticalClarificationActive = false
			c.clar.ReprocessingScheduled = true
		}
	}

	if m.Role == RoleUser {
		c.urgency = classifyUrgency(c.recentUserTextLocked(urgencyWindow))
	}
	if m.Timestamp.After(c.lastActivity) {
		c.lastActivity = m.Timestamp
	}
	return m.clone()
}

// MarkOriginalQuestion flags the stored message id as an original question
// once it is known to need clarification itself. It reports whether the
// message was found.
func (c *Conversation) MarkOriginalQuestion(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].ID == id {
			c.messages[i].IsOriginalQuestion = true
			c.clar.LastOriginalQuestionID = id
			c.clar.PendingClarification = true
			return true
		}
	}
	return false
}

// MarkPendingClarification queues question for automatic reprocessing once
// the user clarifies. Only the subscription id is kept. The previous
// subscription id, if any, is returned so the caller can invalidate it.
func (c *Conversation) MarkPendingClarification(question string, sub *Subscription) (previous string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	previous = c.clar.CallbackID
	c.clar.OriginalQuestionPending = question
	c.clar.CallbackID = sub.ID()
	c.clar.CriticalClarificationActive = true
	c.clar.PendingClarification = false
	c.clar.ReprocessingScheduled = false
	return previous
}

// CheckAndTriggerReprocessing reads and clears the reprocessing flag. It
// returns true at most once per scheduling.
func (c *Conversation) CheckAndTriggerReprocessing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	scheduled := c.clar.ReprocessingScheduled
	c.clar.ReprocessingScheduled = false
	return scheduled
}

// ReprocessStatus is the outcome of ReprocessOriginalQuestion.
type ReprocessStatus string

const (
	ReprocessOK            ReprocessStatus = "ok"
	ReprocessNoCallback    ReprocessStatus = "no_callback"
	ReprocessNoQuestion    ReprocessStatus = "no_question"
	ReprocessCallbackError ReprocessStatus = "callback_error"
)

// ReprocessResult reports what ReprocessOriginalQuestion did.
type ReprocessResult struct {
	Status   ReprocessStatus
	Question string
	Answer   string
	Err      error
}

// ReprocessOriginalQuestion resolves the queued callback and invokes it with
// the original question enriched by high-confidence consolidated entities.
// The pending question and callback id are cleared on every exit path, and
// the subscription is invalidated so it can never fire twice. The callback
// runs without the conversation lock held.
func (c *Conversation) ReprocessOriginalQuestion(ctx context.Context, registry *CallbackRegistry, logger *zap.Logger) ReprocessResult {
	if logger == nil {
		logger = zap.NewNop()
	}

	c.mu.Lock()
	question := c.clar.OriginalQuestionPending
	callbackID := c.clar.CallbackID
	consolidated := c.consolidated.Clone()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.clar.OriginalQuestionPending = ""
		c.clar.CallbackID = ""
		c.mu.Unlock()
		if registry != nil {
			registry.Invalidate(callbackID)
		}
	}()

	var fn ReprocessFunc
	ok := false
	if registry != nil {
		fn, ok = registry.Lookup(callbackID)
	}
	if !ok {
		logger.Info("reprocessing callback gone",
			zap.String("conversation.id", c.id),
			zap.String("callback_id", callbackID),
		)
		return ReprocessResult{Status: ReprocessNoCallback, Err: ErrNoCallback}
	}
	if strings.TrimSpace(question) == "" {
		logger.Warn("reprocessing requested without a pending question", zap.String("conversation.id", c.id))
		return ReprocessResult{Status: ReprocessNoQuestion, Err: ErrStateNoPendingQuestion}
	}

	enriched := EnrichQuestion(question, consolidated)
	answer, err := fn(ctx, enriched)
	if err != nil {
		return ReprocessResult{Status: ReprocessCallbackError, Question: enriched, Err: fmt.Errorf("reprocess: %w", err)}
	}
	return ReprocessResult{Status: ReprocessOK, Question: enriched, Answer: answer}
}

// enrichFields fixes the order facts are appended in.
var enrichFields = []entities.Field{
	entities.FieldBreed,
	entities.FieldSex,
	entities.FieldAgeDays,
	entities.FieldWeight,
	entities.FieldMortality,
}

// EnrichQuestion appends the high-confidence facts of e to question.
func EnrichQuestion(question string, e *entities.EntitySet) string {
	question = strings.TrimSpace(question)
	if e == nil {
		return question
	}
	facts := e.HighConfidence(highConfidence)
	var parts []string
	for _, f := range enrichFields {
		if v, ok := facts[f]; ok {
			parts = append(parts, string(f)+": "+v)
		}
	}
	if len(parts) == 0 {
		return question
	}
	return question + " [" + strings.Join(parts, ", ") + "]"
}

// State returns the clarification state.
func (c *Conversation) State() ClarificationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.clar.CriticalClarificationActive:
		return StateCriticalActive
	case c.clar.PendingClarification:
		return StatePending
	}
	return StateNormal
}

// Clarification returns a copy of the clarification flags.
func (c *Conversation) Clarification() Clarification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clar
}

// Consolidated returns a copy of the consolidated entities, or nil.
func (c *Conversation) Consolidated() *entities.EntitySet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consolidated.Clone()
}

// Urgency returns the current urgency.
func (c *Conversation) Urgency() Urgency {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.urgency
}

// LastActivity returns the time of the latest message.
func (c *Conversation) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// PreviousAnswers returns up to n assistant answers, oldest first.
func (c *Conversation) PreviousAnswers(n int) []string {
	if n <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, n)
	for i := len(c.messages) - 1; i >= 0 && len(out) < n; i-- {
		if c.messages[i].Role == RoleAssistant {
			out = append(out, c.messages[i].Content)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// RecentMessages returns copies of the last n messages, oldest first.
func (c *Conversation) RecentMessages(n int) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 || n > len(c.messages) {
		n = len(c.messages)
	}
	out := make([]Message, 0, n)
	for _, m := range c.messages[len(c.messages)-n:] {
		out = append(out, m.clone())
	}
	return out
}

func (c *Conversation) recentUserTextLocked(n int) []string {
	var texts []string
	for i := len(c.messages) - 1; i >= 0 && len(texts) < n; i-- {
		if c.messages[i].Role == RoleUser {
			texts = append(texts, c.messages[i].Content)
		}
	}
	return texts
}

// Record is the serializable form of a Conversation.
type Record struct {
	ID            string              `json:"id"`
	UserID        string              `json:"user_id,omitempty"`
	Language      string              `json:"language,omitempty"`
	Messages      []Message           `json:"messages"`
	Consolidated  *entities.EntitySet `json:"consolidated,omitempty"`
	Urgency       Urgency             `json:"urgency"`
	CreatedAt     time.Time           `json:"created_at"`
	LastActivity  time.Time           `json:"last_activity"`
	Clarification Clarification       `json:"clarification"`
}

// Snapshot returns a deep copy of the conversation.
func (c *Conversation) Snapshot() Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := make([]Message, 0, len(c.messages))
	for _, m := range c.messages {
		msgs = append(msgs, m.clone())
	}
	return Record{
		ID:            c.id,
		UserID:        c.userID,
		Language:      c.language,
		Messages:      msgs,
		Consolidated:  c.consolidated.Clone(),
		Urgency:       c.urgency,
		CreatedAt:     c.createdAt,
		LastActivity:  c.lastActivity,
		Clarification: c.clar,
	}
}

// FromRecord rebuilds a Conversation. The record is copied.
func FromRecord(r Record) *Conversation {
	c := &Conversation{
		id:           r.ID,
		userID:       r.UserID,
		language:     r.Language,
		messages:     make([]Message, 0, len(r.Messages)),
		consolidated: r.Consolidated.Clone(),
		urgency:      r.Urgency,
		createdAt:    r.CreatedAt,
		lastActivity: r.LastActivity,
		clar:         r.Clarification,
	}
	for _, m := range r.Messages {
		c.messages = append(c.messages, m.clone())
	}
	if c.urgency == "" {
		c.urgency = UrgencyLow
	}
	return c
}
