package conversation

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ReprocessFunc answers an enriched original question.
type ReprocessFunc func(ctx context.Context, question string) (string, error)

// CallbackRegistry owns reprocessing callbacks. Conversations refer to them
// by subscription id only; the registry also indexes them by the owning
// conversation so they can be dropped with it.
type CallbackRegistry struct {
	mu     sync.Mutex
	subs   map[string]subscriber
	owners map[string]map[string]struct{}
}

type subscriber struct {
	owner string
	fn    ReprocessFunc
}

// NewCallbackRegistry returns an empty registry.
func NewCallbackRegistry() *CallbackRegistry {
	return &CallbackRegistry{
		subs:   make(map[string]subscriber),
		owners: make(map[string]map[string]struct{}),
	}
}

// Subscription is the handle returned by Register.
type Subscription struct {
	id  string
	reg *CallbackRegistry
}

// Register stores fn on behalf of the conversation owner and returns its
// subscription.
func (r *CallbackRegistry) Register(owner string, fn ReprocessFunc) *Subscription {
	id := uuid.NewString()
	r.mu.Lock()
	r.subs[id] = subscriber{owner: owner, fn: fn}
	ids, ok := r.owners[owner]
	if !ok {
		ids = make(map[string]struct{})
		r.owners[owner] = ids
	}
	ids[id] = struct{}{}
	r.mu.Unlock()
	return &Subscription{id: id, reg: r}
}

// Lookup returns the callback for id, if still registered.
func (r *CallbackRegistry) Lookup(id string) (ReprocessFunc, bool) {
	if id == "" {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	return s.fn, ok
}

// Invalidate removes id. Unknown ids are ignored.
func (r *CallbackRegistry) Invalidate(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return
	}
	delete(r.subs, id)
	if ids := r.owners[s.owner]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(r.owners, s.owner)
		}
	}
}

// InvalidateOwner removes every callback registered for the conversation
// owner and returns how many there were.
func (r *CallbackRegistry) InvalidateOwner(owner string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.owners[owner]
	for id := range ids {
		delete(r.subs, id)
	}
	delete(r.owners, owner)
	return len(ids)
}

// Len returns the number of live subscriptions.
func (r *CallbackRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// ID returns the subscription id; empty for a nil subscription.
func (s *Subscription) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Invalidate unregisters the callback. It is safe to call more than once.
func (s *Subscription) Invalidate() {
	if s == nil || s.reg == nil {
		return
	}
	s.reg.Invalidate(s.id)
}
