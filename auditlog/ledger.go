package auditlog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotFound is returned when an entry cannot be located, including for
// malformed external event ids.
var ErrNotFound = errors.New("auditlog: entry not found")

// ErrChainIntegrity is returned when the stored chain tail fails hash
// verification. Appending to a corrupted chain would mask the tampering,
// so Record refuses and surfaces this instead.
var ErrChainIntegrity = errors.New("auditlog: chain integrity violation")

// DefaultPageSize is the query page size when the caller specifies none.
const DefaultPageSize = 50

// Ledger is the append/query/verify service over an audit Store.
//
// Chain scope is per tenant: one chain per tenant id, with the empty
// tenant id forming the global chain. Appends within a chain are strictly
// serialized: the read of the current tail hash and the insert of the new
// entry form one critical section under a per-chain mutex, so two
// concurrent writers can never both link to the same previous hash.
// This makes the ledger a single-writer-per-chain component; deployments
// running multiple processes against one database must route appends for
// a chain through one process.
type Ledger struct {
	store Store
	clock func() time.Time

	mu     sync.Mutex
	chains map[string]*sync.Mutex
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithClock overrides the ledger's time source.
func WithClock(clock func() time.Time) LedgerOption {
	return func(l *Ledger) { l.clock = clock }
}

// NewLedger creates a Ledger over the given store.
func NewLedger(store Store, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:  store,
		clock:  time.Now,
		chains: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// chainLock returns the append mutex for a tenant's chain.
func (l *Ledger) chainLock(tenantID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.chains[tenantID]
	if !ok {
		m = &sync.Mutex{}
		l.chains[tenantID] = m
	}
	return m
}

// Record appends an event to its tenant's chain and returns the stored
// entry. The entry is linked to the current chain tail and hashed before
// insert; the whole read-tail→compute→insert sequence runs under the
// chain's append lock.
func (l *Ledger) Record(ctx context.Context, ev Event) (*Entry, error) {
	if ev.EventType == "" {
		return nil, fmt.Errorf("auditlog: record: event type is required")
	}
	actor := ev.ActorID
	if actor == "" {
		actor = ActorSystem
	}

	lock := l.chainLock(ev.TenantID)
	lock.Lock()
	defer lock.Unlock()

	tail, err := l.store.LatestEntry(ctx, ev.TenantID)
	if err != nil {
		return nil, fmt.Errorf("auditlog: read chain tail: %w", err)
	}
	if tail != nil {
		got, err := computeRecordHash(tail)
		if err != nil {
			return nil, fmt.Errorf("auditlog: hash chain tail: %w", err)
		}
		if got != tail.RecordHash {
			return nil, fmt.Errorf("auditlog: record at seq %d: %w", tail.Seq, ErrChainIntegrity)
		}
	}

	e := &Entry{
		Seq:            1,
		Timestamp:      l.clock().UTC(),
		EventType:      ev.EventType,
		UserID:         ev.UserID,
		TenantID:       ev.TenantID,
		Resource:       ev.Resource,
		Action:         ev.Action,
		ActorID:        actor,
		ActorIP:        ev.ActorIP,
		ActorUserAgent: ev.ActorUserAgent,
		Details:        ev.Details,
	}
	if tail != nil {
		e.Seq = tail.Seq + 1
		e.PreviousHash = tail.RecordHash
	}
	e.EventID = FormatEventID(e.Seq)

	hash, err := computeRecordHash(e)
	if err != nil {
		return nil, fmt.Errorf("auditlog: hash entry: %w", err)
	}
	e.RecordHash = hash

	if err := l.store.AppendEntry(ctx, e); err != nil {
		return nil, fmt.Errorf("auditlog: append entry: %w", err)
	}
	return e, nil
}

// Query returns one page of entries for a tenant, newest-last (chain
// order). Page numbers are 1-based; a zero or negative page is treated
// as the first, and a non-positive page size falls back to
// DefaultPageSize.
func (l *Ledger) Query(ctx context.Context, tenantID string, opts QueryOptions) (*Page, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	size := opts.PageSize
	if size < 1 {
		size = DefaultPageSize
	}

	filter := &QueryFilter{
		TenantID:        tenantID,
		EventType:       opts.EventType,
		ActorID:         opts.ActorID,
		Resource:        opts.Resource,
		ActorIP:         opts.ActorIP,
		TimestampAfter:  opts.TimestampAfter,
		TimestampBefore: opts.TimestampBefore,
	}

	total, err := l.store.CountEntries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("auditlog: count entries: %w", err)
	}

	filter.Limit = size
	filter.Offset = (page - 1) * size
	entries, err := l.store.ListEntries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("auditlog: list entries: %w", err)
	}
	for _, e := range entries {
		e.EventID = FormatEventID(e.Seq)
	}

	totalPages := int((total + int64(size) - 1) / int64(size))
	return &Page{
		Data: entries,
		Pagination: Pagination{
			Page:       page,
			PageSize:   size,
			TotalItems: total,
			TotalPages: totalPages,
			HasMore:    page < totalPages,
		},
	}, nil
}

// GetByEventID returns the entry with the given external id. Ids that do
// not match the "evt_{n}" form resolve to ErrNotFound, not a parse error.
func (l *Ledger) GetByEventID(ctx context.Context, tenantID, eventID string) (*Entry, error) {
	seq, ok := ParseEventID(eventID)
	if !ok {
		return nil, fmt.Errorf("auditlog: event %q: %w", eventID, ErrNotFound)
	}
	e, err := l.store.GetEntryBySeq(ctx, tenantID, seq)
	if err != nil {
		return nil, fmt.Errorf("auditlog: get entry: %w", err)
	}
	if e == nil {
		return nil, fmt.Errorf("auditlog: event %q: %w", eventID, ErrNotFound)
	}
	e.EventID = FormatEventID(e.Seq)
	return e, nil
}

// Count returns the number of entries matching the options for a tenant.
func (l *Ledger) Count(ctx context.Context, tenantID string, opts CountOptions) (int64, error) {
	total, err := l.store.CountEntries(ctx, &QueryFilter{
		TenantID:        tenantID,
		EventType:       opts.EventType,
		TimestampAfter:  opts.TimestampAfter,
		TimestampBefore: opts.TimestampBefore,
	})
	if err != nil {
		return 0, fmt.Errorf("auditlog: count entries: %w", err)
	}
	return total, nil
}

// Violation describes the first broken link found during verification.
type Violation struct {
	Seq    int64  `json:"seq"`
	Reason string `json:"reason"`
}

// VerificationResult reports the outcome of a chain walk.
type VerificationResult struct {
	OK             bool       `json:"ok"`
	EntriesChecked int64      `json:"entries_checked"`
	Violation      *Violation `json:"violation,omitempty"`
}

// VerifyChain walks a tenant's chain from the first entry, recomputing
// every hash and checking sequence contiguity and previous-hash linkage.
// It detects tampered fields, deleted entries (sequence gaps), and
// reordered entries. Violations are reported, never repaired.
func (l *Ledger) VerifyChain(ctx context.Context, tenantID string) (*VerificationResult, error) {
	entries, err := l.store.ListEntries(ctx, &QueryFilter{TenantID: tenantID})
	if err != nil {
		return nil, fmt.Errorf("auditlog: verify chain: %w", err)
	}

	prevHash := ""
	expectedSeq := int64(1)
	for _, e := range entries {
		if e.Seq != expectedSeq {
			return violation(e.Seq, fmt.Sprintf("sequence gap: expected %d, found %d", expectedSeq, e.Seq), expectedSeq-1), nil
		}
		if e.PreviousHash != prevHash {
			return violation(e.Seq, "previous hash does not match prior entry", expectedSeq-1), nil
		}
		computed, err := computeRecordHash(e)
		if err != nil {
			return nil, fmt.Errorf("auditlog: verify chain at seq %d: %w", e.Seq, err)
		}
		if computed != e.RecordHash {
			return violation(e.Seq, "record hash does not match entry contents", expectedSeq-1), nil
		}
		prevHash = e.RecordHash
		expectedSeq++
	}

	return &VerificationResult{OK: true, EntriesChecked: expectedSeq - 1}, nil
}

func violation(seq int64, reason string, checked int64) *VerificationResult {
	return &VerificationResult{
		EntriesChecked: checked,
		Violation:      &Violation{Seq: seq, Reason: reason},
	}
}

// hashPayload is the canonical serialization input for RecordHash.
// Field order is fixed by struct declaration and map keys are sorted by
// encoding/json, so marshaling is deterministic.
type hashPayload struct {
	Seq            int64          `json:"seq"`
	Timestamp      string         `json:"ts"`
	EventType      string         `json:"event_type"`
	UserID         string         `json:"user_id"`
	TenantID       string         `json:"tenant_id"`
	Resource       string         `json:"resource"`
	Action         string         `json:"action"`
	ActorID        string         `json:"actor_id"`
	ActorIP        string         `json:"actor_ip"`
	ActorUserAgent string         `json:"actor_user_agent"`
	Details        map[string]any `json:"details"`
	PreviousHash   string         `json:"previous_hash"`
}

// computeRecordHash returns the hex sha256 of the entry's canonical
// serialization, previous hash included. An empty details map and a nil
// one canonicalize identically, so an entry hashes the same before and
// after a storage round trip that cannot tell the two apart.
func computeRecordHash(e *Entry) (string, error) {
	details := e.Details
	if len(details) == 0 {
		details = nil
	}
	payload := hashPayload{
		Seq:            e.Seq,
		Timestamp:      e.Timestamp.UTC().Format(time.RFC3339Nano),
		EventType:      e.EventType,
		UserID:         e.UserID,
		TenantID:       e.TenantID,
		Resource:       e.Resource,
		Action:         e.Action,
		ActorID:        e.ActorID,
		ActorIP:        e.ActorIP,
		ActorUserAgent: e.ActorUserAgent,
		Details:        details,
		PreviousHash:   e.PreviousHash,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
