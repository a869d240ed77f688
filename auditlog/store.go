package auditlog

import "context"

// Store defines persistence operations for audit entries. Entries are
// append-only; no update or delete operation exists.
//
// AppendEntry and LatestEntry are only called by the Ledger, inside its
// per-chain critical section; stores do not need their own append
// serialization beyond ordinary transactional writes.
type Store interface {
	// AppendEntry persists a fully computed entry (seq, hashes included).
	AppendEntry(ctx context.Context, e *Entry) error

	// LatestEntry returns the chain tail for a tenant, or nil when the
	// chain is empty.
	LatestEntry(ctx context.Context, tenantID string) (*Entry, error)

	// GetEntryBySeq returns the entry with the given chain sequence, or
	// nil when absent.
	GetEntryBySeq(ctx context.Context, tenantID string, seq int64) (*Entry, error)

	// ListEntries returns entries matching the filter ordered by seq
	// ascending.
	ListEntries(ctx context.Context, filter *QueryFilter) ([]*Entry, error)

	// CountEntries returns the number of entries matching the filter.
	CountEntries(ctx context.Context, filter *QueryFilter) (int64, error)
}
