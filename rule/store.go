package rule

import "context"

// Store defines persistence operations for the rule tuple store.
type Store interface {
	// AddRule persists a rule. Adding a rule identical in every column to
	// an existing one is a no-op; the call reports whether a row was
	// actually inserted.
	AddRule(ctx context.Context, r *Rule) (bool, error)

	// RemoveRules deletes every rule matching the filter and returns the
	// number of rows removed.
	RemoveRules(ctx context.Context, f *Filter) (int64, error)

	// ListRules returns rules matching the filter in insertion order.
	ListRules(ctx context.Context, f *Filter) ([]*Rule, error)

	// ReplaceGroupingRules atomically swaps all grouping rules for a user
	// within a domain with the given role set. Readers never observe the
	// user with zero roles mid-swap; backends run the delete+insert in a
	// single transaction (or under the store lock).
	ReplaceGroupingRules(ctx context.Context, user, domain string, roles []string) error
}
