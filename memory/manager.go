package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/ayushchhipa1509/OCI-COPILOT/core"
)

// Manager is the single façade the orchestration engine talks to for all
// memory concerns: the session-scoped short-term buffer, the cross-session
// long-term pattern store, a TTL read-through cache in front of both, and
// durable JSON-file persistence.
type Manager struct {
	ShortTerm *ShortTerm
	LongTerm  *LongTerm

	cache    Memory
	cacheTTL time.Duration
	store    *Store
	logger   core.Logger
}

// NewManager builds a Manager backed by cfg.Memory. When cfg.Memory.RedisURL
// is set the cache tier is Redis-backed; otherwise it falls back to an
// in-process store, matching the teacher's "Redis when configured, in-memory
// otherwise" convention.
func NewManager(cfg *core.Config) (*Manager, error) {
	logger := cfg.Logger()
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("agent/memory")
	}

	store, err := NewStore(cfg.Memory.Dir, logger)
	if err != nil {
		return nil, err
	}

	var cache Memory
	if cfg.Memory.RedisURL != "" {
		redisCache, err := NewRedisMemory(cfg.Memory.RedisURL, "agentmem")
		if err != nil {
			return nil, core.NewFrameworkError("memory.NewManager", "memory", fmt.Errorf("connect redis cache: %w", err))
		}
		cache = redisCache
	} else {
		cache = NewInMemoryStore()
	}

	ttl := cfg.Memory.CacheTTL
	if ttl <= 0 {
		ttl = core.DefaultCacheTTL
	}
	cache.SetTTL(ttl)

	m := &Manager{
		ShortTerm: NewShortTerm(),
		LongTerm:  NewLongTerm(),
		cache:     cache,
		cacheTTL:  ttl,
		store:     store,
		logger:    logger,
	}

	if err := store.LoadShortTerm(m.ShortTerm); err != nil {
		logger.Warn("failed to load short-term memory snapshot", map[string]interface{}{"error": err.Error()})
	}
	if err := store.LoadLongTerm(m.LongTerm); err != nil {
		logger.Warn("failed to load long-term memory snapshot", map[string]interface{}{"error": err.Error()})
	}

	return m, nil
}

// RecordTurn adds a turn to the short-term buffer, appends it to durable
// history, and persists the short-term snapshot.
func (m *Manager) RecordTurn(ctx context.Context, userInput, response string) error {
	t := Turn{UserInput: userInput, Response: response, Timestamp: time.Now()}
	m.ShortTerm.AddTurn(t)
	if err := m.store.AppendHistory(t); err != nil {
		m.logger.Warn("failed to append conversation history", map[string]interface{}{"error": err.Error()})
	}
	return m.store.SaveShortTerm(m.ShortTerm)
}

// RecordAction adds an executed action to the short-term buffer and learns
// a long-term pattern from it, then persists both.
func (m *Manager) RecordAction(ctx context.Context, resource, action string, params map[string]interface{}) error {
	m.ShortTerm.AddAction(Action{Name: action, Params: params, Timestamp: time.Now()})
	m.LongTerm.LearnPattern(resource, action, params)

	if err := m.store.SaveShortTerm(m.ShortTerm); err != nil {
		return err
	}
	return m.store.SaveLongTerm(m.LongTerm)
}

// ConversationContext returns the recent conversation window used to ground
// the Intent Analyzer and Planner prompts.
func (m *Manager) ConversationContext() []Turn {
	return m.ShortTerm.ConversationContext()
}

// SmartSuggestions surfaces proactive suggestions ranked by frequency and
// recency, for the Presentation Preparer to optionally surface to the user.
func (m *Manager) SmartSuggestions(limit int) []*Pattern {
	return m.LongTerm.SmartSuggestions(limit)
}

// CacheGet reads through the TTL cache layer. An absent or expired entry, or
// any cache error, is reported as a miss: (nil, false).
func (m *Manager) CacheGet(ctx context.Context, key string) (interface{}, bool) {
	v, err := m.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	return v, true
}

// CacheSet writes through the TTL cache layer using the manager's default TTL.
func (m *Manager) CacheSet(ctx context.Context, key string, value interface{}) error {
	return m.cache.Set(ctx, key, value, m.cacheTTL)
}

// CacheInvalidate removes a cached entry, e.g. after a mutating operation
// that makes a previously cached listing stale.
func (m *Manager) CacheInvalidate(ctx context.Context, key string) error {
	return m.cache.Delete(ctx, key)
}

// Cleanup clears the session-scoped short-term buffer and prunes memory
// files that have aged past maxAge.
func (m *Manager) Cleanup(maxAge time.Duration) error {
	m.ShortTerm.ClearSession()
	if err := m.store.SaveShortTerm(m.ShortTerm); err != nil {
		return err
	}
	return m.store.PruneOlderThan(maxAge)
}
