package conversation

import (
	"context"
	"sync"
	"time"
)

// Store persists conversations.
type Store interface {
	// Load returns ErrNotFound for an unknown id.
	Load(ctx context.Context, id string) (*Conversation, error)
	Save(ctx context.Context, c *Conversation) error
	Delete(ctx context.Context, id string) error
	// PurgeInactive deletes conversations idle since before and returns
	// their ids.
	PurgeInactive(ctx context.Context, before time.Time) ([]string, error)
	Close() error
}

// MemoryStore is a Store backed by a map. It keeps snapshots, so later
// changes to a saved Conversation are not visible until the next Save.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, id string) (*Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	r, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return FromRecord(r), nil
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, c *Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.ID() == "" {
		return ErrEmptyID
	}
	r := c.Snapshot()
	s.mu.Lock()
	s.records[r.ID] = r
	s.mu.Unlock()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
	return nil
}

// PurgeInactive implements Store.
func (s *MemoryStore) PurgeInactive(ctx context.Context, before time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, r := range s.records {
		if r.LastActivity.Before(before) {
			delete(s.records, id)
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
