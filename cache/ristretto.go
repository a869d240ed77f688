package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/bastionhq/bastion"
)

// Compile-time interface check.
var _ bastion.Cache = (*Ristretto)(nil)

// Ristretto is a check-result cache backed by a ristretto admission
// cache. Ristretto cannot enumerate keys, so domain and user
// invalidation use generation counters: each scope carries a counter
// that participates in the cache key, and bumping it orphans every
// entry written under the old generation (they age out via TTL).
type Ristretto struct {
	cache *ristretto.Cache
	ttl   time.Duration

	mu         sync.RWMutex
	appGens    map[string]uint64
	domainGens map[string]uint64
	userGens   map[string]uint64
}

// RistrettoConfig configures the ristretto-backed cache.
type RistrettoConfig struct {
	// NumCounters is the number of keys to track frequency for.
	// Defaults to 100,000 (10x a 10,000 entry working set).
	NumCounters int64

	// MaxCost caps the number of cached results. Defaults to 10,000.
	MaxCost int64

	// TTL bounds entry staleness. Defaults to 5 minutes.
	TTL time.Duration
}

// NewRistretto creates a ristretto-backed cache.
func NewRistretto(cfg RistrettoConfig) (*Ristretto, error) {
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = 100_000
	}
	if cfg.MaxCost <= 0 {
		cfg.MaxCost = 10_000
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	inner, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: ristretto: %w", err)
	}
	return &Ristretto{
		cache:      inner,
		ttl:        cfg.TTL,
		appGens:    make(map[string]uint64),
		domainGens: make(map[string]uint64),
		userGens:   make(map[string]uint64),
	}, nil
}

// Get returns a cached check result.
func (r *Ristretto) Get(_ context.Context, req *bastion.CheckRequest) (*bastion.CheckResult, bool) {
	v, ok := r.cache.Get(r.key(req))
	if !ok {
		return nil, false
	}
	result, ok := v.(*bastion.CheckResult)
	return result, ok
}

// Set stores a check result in the cache.
func (r *Ristretto) Set(_ context.Context, req *bastion.CheckRequest, result *bastion.CheckResult) {
	r.cache.SetWithTTL(r.key(req), result, 1, r.ttl)
}

// InvalidateDomain orphans all cached results for a domain key.
func (r *Ristretto) InvalidateDomain(_ context.Context, domainKey string) {
	r.mu.Lock()
	r.domainGens[domainKey]++
	r.mu.Unlock()
}

// InvalidateUser orphans all cached results for a subject within a
// domain key.
func (r *Ristretto) InvalidateUser(_ context.Context, domainKey, userID string) {
	r.mu.Lock()
	r.userGens[domainKey+"|"+userID]++
	r.mu.Unlock()
}

// InvalidateApp orphans all cached results for every domain of an
// application.
func (r *Ristretto) InvalidateApp(_ context.Context, appID string) {
	r.mu.Lock()
	r.appGens[appID]++
	r.mu.Unlock()
}

// Close releases the underlying cache's resources.
func (r *Ristretto) Close() { r.cache.Close() }

func (r *Ristretto) key(req *bastion.CheckRequest) string {
	domainKey := req.Domain.Key()
	r.mu.RLock()
	ag := r.appGens[req.Domain.AppID]
	dg := r.domainGens[domainKey]
	ug := r.userGens[domainKey+"|"+req.Subject]
	r.mu.RUnlock()
	return fmt.Sprintf("g%d:%d:%d|%s", ag, dg, ug, bastion.CacheKey(req))
}
