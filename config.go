package bastion

import "time"

// Config holds configuration for the Bastion engine.
type Config struct {
	// ProjectGroupings maintains grouping rules in the rule store
	// alongside every assignment write, so enforcement can resolve roles
	// from the rule store instead of assignment rows. Defaults to false:
	// the database is the sole source of truth and drift cannot occur.
	ProjectGroupings bool `json:"project_groupings,omitempty"`

	// LogDecisions records a permission.granted / permission.denied audit
	// event for every check when an audit ledger is configured.
	// Decision records are best-effort; enforcement does not fail when
	// the ledger is unavailable.
	LogDecisions bool `json:"log_decisions,omitempty"`

	// CacheTTL is the time-to-live for cached check results.
	// Zero leaves the cache implementation's default in effect.
	// Mutations always invalidate the affected domain synchronously;
	// the TTL only bounds staleness for scopes a mutation missed.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`

	// DefaultPageSize is the audit query page size when the caller does
	// not specify one. Defaults to 50.
	DefaultPageSize int `json:"default_page_size,omitempty"`

	// MaxPageSize caps caller-supplied audit query page sizes.
	// Defaults to 1000.
	MaxPageSize int `json:"max_page_size,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultPageSize: 50,
		MaxPageSize:     1000,
	}
}

func (c Config) defaultPageSize() int {
	if c.DefaultPageSize > 0 {
		return c.DefaultPageSize
	}
	return 50
}

func (c Config) maxPageSize() int {
	if c.MaxPageSize > 0 {
		return c.MaxPageSize
	}
	return 1000
}
