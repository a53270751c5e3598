package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager ties the cache, the store and the callback registry together and
// serializes work per conversation id.
type Manager struct {
	store     Store
	cache     *Cache
	callbacks *CallbackRegistry
	logger    *zap.Logger
	metrics   *Metrics

	mu    sync.Mutex
	locks map[string]*idLock
}

type idLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager returns a Manager over store with a cache of cacheSize
// entries. A nil store keeps conversations in memory.
func NewManager(store Store, cacheSize int, logger *zap.Logger) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:     store,
		cache:     NewCache(cacheSize),
		callbacks: NewCallbackRegistry(),
		logger:    logger.Named("conversation"),
		metrics:   NewMetrics(),
		locks:     make(map[string]*idLock),
	}
}

// Callbacks returns the reprocessing callback registry.
func (m *Manager) Callbacks() *CallbackRegistry { return m.callbacks }

// Cache returns the conversation cache.
func (m *Manager) Cache() *Cache { return m.cache }

// Lock serializes requests for id. The returned func releases the lock.
func (m *Manager) Lock(id string) (unlock func()) {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &idLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}

// Get returns the conversation for id from the cache, then the store, and
// otherwise a new one. An empty id starts a new conversation. A store
// failure is logged and also yields a new conversation.
func (m *Manager) Get(ctx context.Context, id, userID, language string) *Conversation {
	if id != "" {
		if c, ok := m.cache.Get(id); ok {
			c.SetLanguage(language)
			return c
		}
		c, err := m.store.Load(ctx, id)
		switch {
		case err == nil:
			c.SetLanguage(language)
			m.cache.Put(c)
			return c
		case !errors.Is(err, ErrNotFound):
			m.metrics.StoreErrors.WithLabelValues("load").Inc()
			m.logger.Warn("loading conversation failed, starting fresh",
				zap.String("conversation.id", id),
				zap.Error(err),
			)
		}
	}
	c := New(id, userID, language)
	m.cache.Put(c)
	return c
}

// Save persists c and refreshes its cache entry.
func (m *Manager) Save(ctx context.Context, c *Conversation) error {
	m.cache.Put(c)
	if err := m.store.Save(ctx, c); err != nil {
		m.metrics.StoreErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

// Lookup returns a stored or cached conversation without creating one.
func (m *Manager) Lookup(ctx context.Context, id string) (*Conversation, error) {
	if c, ok := m.cache.Get(id); ok {
		return c, nil
	}
	c, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	m.cache.Put(c)
	return c, nil
}

// Delete removes id everywhere and invalidates its callbacks. It waits for
// an in-flight request on id so that request cannot save it back.
func (m *Manager) Delete(ctx context.Context, id string) error {
	unlock := m.Lock(id)
	defer unlock()

	m.callbacks.InvalidateOwner(id)
	m.cache.Remove(id)
	if err := m.store.Delete(ctx, id); err != nil {
		m.metrics.StoreErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

// PurgeInactive removes conversations idle for longer than ttl from the
// store and the cache, and invalidates their callbacks whether or not they
// were cached. It is meant to be driven by an external sweep.
func (m *Manager) PurgeInactive(ctx context.Context, ttl time.Duration) (int, error) {
	before := time.Now().Add(-ttl)
	ids, err := m.store.PurgeInactive(ctx, before)
	if err != nil {
		m.metrics.StoreErrors.WithLabelValues("purge").Inc()
		return 0, fmt.Errorf("purge conversations: %w", err)
	}

	n := len(ids)
	for _, id := range ids {
		m.drop(id, before)
	}
	for _, id := range m.cache.lru.Keys() {
		if c, ok := m.cache.lru.Peek(id); ok && c.LastActivity().Before(before) {
			if m.drop(id, before) {
				n++
			}
		}
	}
	m.logger.Info("purged inactive conversations", zap.Int("count", n), zap.Duration("ttl", ttl))
	return n, nil
}

// drop forgets a purged id unless its cached copy has been active since
// before, which happens when a request completed during the purge.
func (m *Manager) drop(id string, before time.Time) bool {
	unlock := m.Lock(id)
	defer unlock()

	if c, ok := m.cache.lru.Peek(id); ok && !c.LastActivity().Before(before) {
		return false
	}
	m.cache.Remove(id)
	m.callbacks.InvalidateOwner(id)
	return true
}

// Close closes the store.
func (m *Manager) Close() error {
	return m.store.Close()
}
