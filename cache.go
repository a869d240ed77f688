package bastion

import (
	"context"
	"strings"
)

// Cache provides caching for authorization check results. Implementations
// live in the cache subpackage.
type Cache interface {
	// Get returns a cached check result, if available.
	Get(ctx context.Context, req *CheckRequest) (*CheckResult, bool)

	// Set stores a check result in the cache.
	Set(ctx context.Context, req *CheckRequest, result *CheckResult)

	// InvalidateDomain removes all cached results for a domain key.
	InvalidateDomain(ctx context.Context, domainKey string)

	// InvalidateUser removes all cached results for a subject within a
	// domain key.
	InvalidateUser(ctx context.Context, domainKey, userID string)

	// InvalidateApp removes all cached results for every domain of an
	// application, the global scope included. Tenant-domain checks also
	// consult application-global rules, so a global mutation must flush
	// the whole application.
	InvalidateApp(ctx context.Context, appID string)
}

// CacheKey derives the cache key for a check request. The evaluation
// context participates in the key: the same subject/resource/action pair
// can resolve differently under different ownership facts, and those two
// outcomes must never share a cache slot.
func CacheKey(req *CheckRequest) string {
	var b strings.Builder
	b.WriteString(req.Domain.Key())
	b.WriteByte('|')
	b.WriteString(req.Subject)
	b.WriteByte('|')
	b.WriteString(req.Resource)
	b.WriteByte('|')
	b.WriteString(req.Action)
	if req.Context != nil {
		b.WriteByte('|')
		b.WriteString(req.Context.ResourceOwnerID)
		for _, s := range req.Context.SharedWith {
			b.WriteByte(',')
			b.WriteString(s)
		}
	}
	return b.String()
}
