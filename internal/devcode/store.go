// Package devcode provides an in-memory store for phone verification codes,
// used when dev code mode is enabled (no SMS gateway configured).
package devcode

import (
	"context"
	"sync"
	"time"
)

// Store holds plain verification codes by phone for dev-only retrieval.
// Not used in production.
type Store interface {
	// Put stores code for phone until expiresAt.
	Put(ctx context.Context, phone, code string, expiresAt time.Time)
	// Get returns the code for phone if present and not expired. Returns ok false if missing or expired.
	Get(ctx context.Context, phone string) (code string, ok bool)
	// Consume returns the code for phone like Get, then removes it.
	Consume(ctx context.Context, phone string) (code string, ok bool)
}

type entry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory dev code store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: time.Now().UTC,
	}
}

// Put stores code for phone until expiresAt.
func (s *MemoryStore) Put(ctx context.Context, phone, code string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[phone] = entry{code: code, expiresAt: expiresAt}
}

// Get returns the code for phone if present and not expired.
func (s *MemoryStore) Get(ctx context.Context, phone string) (string, bool) {
	s.mu.RLock()
	e, ok := s.m[phone]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, phone)
		s.mu.Unlock()
		return "", false
	}
	return e.code, true
}

// Consume returns the code for phone and removes it so it cannot be replayed.
func (s *MemoryStore) Consume(ctx context.Context, phone string) (string, bool) {
	code, ok := s.Get(ctx, phone)
	if !ok {
		return "", false
	}
	s.mu.Lock()
	delete(s.m, phone)
	s.mu.Unlock()
	return code, true
}
