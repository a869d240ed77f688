// Package cache provides caching implementations for Bastion check
// results: a plain in-memory map, a ristretto-backed cache for hot
// single-process deployments, and a Redis-backed cache for sharing
// results across processes.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bastionhq/bastion"
)

// Compile-time interface check.
var _ bastion.Cache = (*Memory)(nil)

// Memory is an in-memory cache with TTL-based expiration.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	maxSize int
}

type entry struct {
	result    *bastion.CheckResult
	expiresAt time.Time
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithTTL sets the cache entry time-to-live.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithMaxSize sets the maximum number of cache entries.
func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) { m.maxSize = n }
}

// NewMemory creates a new in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]*entry),
		ttl:     5 * time.Minute,
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a cached check result.
func (m *Memory) Get(_ context.Context, req *bastion.CheckRequest) (*bastion.CheckResult, bool) {
	key := bastion.CacheKey(req)
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	return e.result, true
}

// Set stores a check result in the cache.
func (m *Memory) Set(_ context.Context, req *bastion.CheckRequest, result *bastion.CheckResult) {
	key := bastion.CacheKey(req)
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) >= m.maxSize {
		m.evictExpired()
		if len(m.entries) >= m.maxSize {
			m.evictOne()
		}
	}

	m.entries[key] = &entry{
		result:    result,
		expiresAt: time.Now().Add(m.ttl),
	}
}

// InvalidateDomain removes all cached results for a domain key.
func (m *Memory) InvalidateDomain(_ context.Context, domainKey string) {
	m.deletePrefix(domainKey + "|")
}

// InvalidateUser removes all cached results for a subject within a
// domain key.
func (m *Memory) InvalidateUser(_ context.Context, domainKey, userID string) {
	m.deletePrefix(domainKey + "|" + userID + "|")
}

// InvalidateApp removes all cached results for every domain of an
// application. Domain keys are "{appID}:{tenant-or-empty}", so the
// colon-terminated prefix covers tenant and global scopes alike.
func (m *Memory) InvalidateApp(_ context.Context, appID string) {
	m.deletePrefix(appID + ":")
}

func (m *Memory) deletePrefix(prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
}

// evictExpired removes all expired entries. Must hold write lock.
func (m *Memory) evictExpired() {
	now := time.Now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

// evictOne removes one arbitrary entry. Must hold write lock.
func (m *Memory) evictOne() {
	for k := range m.entries {
		delete(m.entries, k)
		return
	}
}
