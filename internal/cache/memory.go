package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memEntry struct {
	val       []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store for single-instance deployments and
// local development. The LRU bounds memory; each entry also carries its own
// deadline so per-call TTLs shorter than maxTTL are honoured.
type MemoryStore struct {
	lru *expirable.LRU[string, memEntry]
	now func() time.Time
}

func NewMemoryStore(maxEntries int, maxTTL time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &MemoryStore{
		lru: expirable.NewLRU[string, memEntry](maxEntries, nil, maxTTL),
		now: time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		m.lru.Remove(key)
		return nil, false, nil
	}
	out := make([]byte, len(e.val))
	copy(out, e.val)
	return out, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	e := memEntry{val: make([]byte, len(val))}
	copy(e.val, val)
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.lru.Add(key, e)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}
