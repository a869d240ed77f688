package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bastionhq/bastion"
)

// Compile-time interface check.
var _ bastion.Cache = (*Redis)(nil)

const redisKeyPrefix = "bastion:check:"

// Redis is a check-result cache backed by a redis instance, for
// deployments where multiple engine instances must share cached
// decisions. Results are stored as JSON under a namespaced key and
// invalidated by prefix scan.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisOption configures the redis-backed cache.
type RedisOption func(*Redis)

// WithRedisTTL overrides the default 5 minute entry TTL.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// NewRedis creates a redis-backed cache over an existing client.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		ttl:    5 * time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns a cached check result. Transport and decode errors are
// treated as misses so the engine falls through to evaluation.
func (r *Redis) Get(ctx context.Context, req *bastion.CheckRequest) (*bastion.CheckResult, bool) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+bastion.CacheKey(req)).Bytes()
	if err != nil {
		return nil, false
	}
	var result bastion.CheckResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false
	}
	return &result, true
}

// Set stores a check result. Failures are ignored; the cache is an
// optimization, not a source of truth.
func (r *Redis) Set(ctx context.Context, req *bastion.CheckRequest, result *bastion.CheckResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	r.client.Set(ctx, redisKeyPrefix+bastion.CacheKey(req), raw, r.ttl)
}

// InvalidateDomain removes all cached results for a domain key.
func (r *Redis) InvalidateDomain(ctx context.Context, domainKey string) {
	r.deleteByPattern(ctx, redisKeyPrefix+domainKey+"|*")
}

// InvalidateUser removes all cached results for a subject within a
// domain key.
func (r *Redis) InvalidateUser(ctx context.Context, domainKey, userID string) {
	r.deleteByPattern(ctx, redisKeyPrefix+domainKey+"|"+userID+"|*")
}

// InvalidateApp removes all cached results for every domain of an
// application. Domain keys are "{appID}:{tenant-or-empty}", so the
// colon-terminated pattern covers tenant and global scopes alike.
func (r *Redis) InvalidateApp(ctx context.Context, appID string) {
	r.deleteByPattern(ctx, redisKeyPrefix+appID+":*")
}

func (r *Redis) deleteByPattern(ctx context.Context, pattern string) {
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		r.client.Del(ctx, keys...)
	}
}
