// Package auditlog provides the append-only, hash-chained audit ledger
// recording every authorization-relevant event: role assignments,
// permission decisions, and policy changes.
//
// Entries form one chain per tenant (the empty tenant id is its own
// global chain). Each entry's RecordHash covers the previous entry's
// hash, so deleting, reordering, or editing any entry breaks
// verification from that point on.
package auditlog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Event types recorded by the engine.
const (
	EventRoleAssigned     = "role.assigned"
	EventRoleRemoved      = "role.removed"
	EventRolesResynced    = "role.resynced"
	EventPermissionGrant  = "permission.granted"
	EventPermissionDenied = "permission.denied"
	EventPolicyAdded      = "policy.added"
	EventPolicyRemoved    = "policy.removed"
)

// ActorSystem is the actor id recorded for automated actors.
const ActorSystem = "system"

// Entry is a single immutable audit record. Seq is the internal numeric
// id, contiguous from 1 within the entry's chain; the external identifier
// is the derived "evt_{seq}" form.
type Entry struct {
	Seq            int64          `json:"-" db:"seq"`
	EventID        string         `json:"event_id" db:"-"`
	Timestamp      time.Time      `json:"timestamp" db:"timestamp"`
	EventType      string         `json:"event_type" db:"event_type"`
	UserID         string         `json:"user_id,omitempty" db:"user_id"`
	TenantID       string         `json:"tenant_id,omitempty" db:"tenant_id"`
	Resource       string         `json:"resource,omitempty" db:"resource"`
	Action         string         `json:"action,omitempty" db:"action"`
	ActorID        string         `json:"actor_id" db:"actor_id"`
	ActorIP        string         `json:"actor_ip,omitempty" db:"actor_ip"`
	ActorUserAgent string         `json:"actor_user_agent,omitempty" db:"actor_user_agent"`
	Details        map[string]any `json:"details,omitempty" db:"details"`
	PreviousHash   string         `json:"previous_hash,omitempty" db:"previous_hash"`
	RecordHash     string         `json:"record_hash" db:"record_hash"`
}

// Event is the caller-supplied portion of an audit record. The ledger
// assigns Seq, Timestamp, PreviousHash, and RecordHash.
type Event struct {
	EventType      string
	UserID         string
	TenantID       string
	Resource       string
	Action         string
	ActorID        string
	ActorIP        string
	ActorUserAgent string
	Details        map[string]any
}

// FormatEventID renders the external identifier for a chain sequence.
func FormatEventID(seq int64) string {
	return fmt.Sprintf("evt_%d", seq)
}

// ParseEventID parses an external "evt_{n}" identifier. A malformed id
// yields ok=false; callers treat that as not-found, never as a parse
// error surfaced to the client.
func ParseEventID(eventID string) (int64, bool) {
	rest, found := strings.CutPrefix(eventID, "evt_")
	if !found || rest == "" {
		return 0, false
	}
	seq, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || seq < 1 {
		return 0, false
	}
	return seq, true
}

// QueryFilter contains filters for querying audit entries. TenantID
// selects the chain and is always required; entries from other tenants
// are excluded by the store's query predicate, not post-filtering.
type QueryFilter struct {
	TenantID        string
	EventType       string
	ActorID         string
	Resource        string
	ActorIP         string
	TimestampAfter  *time.Time // inclusive lower bound
	TimestampBefore *time.Time // inclusive upper bound
	Limit           int
	Offset          int
}

// Matches reports whether an entry satisfies the filter's non-paging
// constraints. Shared by the memory store and chain verification.
func (f *QueryFilter) Matches(e *Entry) bool {
	if e.TenantID != f.TenantID {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.Resource != "" && e.Resource != f.Resource {
		return false
	}
	if f.ActorIP != "" && e.ActorIP != f.ActorIP {
		return false
	}
	if f.TimestampAfter != nil && e.Timestamp.Before(*f.TimestampAfter) {
		return false
	}
	if f.TimestampBefore != nil && e.Timestamp.After(*f.TimestampBefore) {
		return false
	}
	return true
}

// Pagination reports the shape of one page of query results.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
	HasMore    bool  `json:"hasMore"`
}

// Page is one page of audit entries plus its pagination envelope.
type Page struct {
	Data       []*Entry   `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// QueryOptions is the caller-facing query surface of the ledger.
type QueryOptions struct {
	Page            int
	PageSize        int
	EventType       string
	ActorID         string
	Resource        string
	ActorIP         string
	TimestampAfter  *time.Time
	TimestampBefore *time.Time
}

// CountOptions narrows Count to the filters export strategy selection uses.
type CountOptions struct {
	EventType       string
	TimestampAfter  *time.Time
	TimestampBefore *time.Time
}
