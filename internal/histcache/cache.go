// Package histcache keeps chart history bundles for a limited time so the
// individual stock view does not refetch the full series on every open.
package histcache

import (
	"context"
	"sync"
	"time"

	"StockTracker/internal/model"
)

// DefaultTTL is how long a history bundle is served from cache.
const DefaultTTL = 24 * time.Hour

// Cache stores history bundles per symbol.
type Cache interface {
	Get(ctx context.Context, symbol string) (*model.History, bool)
	Set(ctx context.Context, symbol string, h *model.History)
}

type entry struct {
	history *model.History
	expires time.Time
}

// Memory is an in-process Cache with an injectable clock.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
}

// NewMemory creates an in-memory cache. A nil now uses time.Now.
func NewMemory(ttl time.Duration, now func() time.Time) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Memory{ttl: ttl, now: now, entries: make(map[string]entry)}
}

func (m *Memory) Get(_ context.Context, symbol string) (*model.History, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[symbol]
	if !ok {
		return nil, false
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, symbol)
		return nil, false
	}
	return e.history, true
}

func (m *Memory) Set(_ context.Context, symbol string, h *model.History) {
	if h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[symbol] = entry{history: h, expires: m.now().Add(m.ttl)}
}

// Len returns the number of entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
