package auditlog_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bastionhq/bastion/auditlog"
	"github.com/bastionhq/bastion/store/memory"
)

func seedChain(t *testing.T, l *auditlog.Ledger, tenantID string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		_, err := l.Record(ctx, auditlog.Event{
			EventType: auditlog.EventRoleAssigned,
			TenantID:  tenantID,
			UserID:    "user1",
			ActorID:   "admin1",
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestRecordLinksChain(t *testing.T) {
	ctx := context.Background()
	l := auditlog.NewLedger(memory.New())

	first, err := l.Record(ctx, auditlog.Event{
		EventType: auditlog.EventRoleAssigned,
		TenantID:  "org1",
		UserID:    "user1",
		ActorID:   "admin1",
		Details:   map[string]any{"role": "editor"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if first.Seq != 1 || first.EventID != "evt_1" {
		t.Fatalf("unexpected first entry: seq=%d id=%s", first.Seq, first.EventID)
	}
	if first.PreviousHash != "" {
		t.Fatalf("first entry must have empty previous hash, got %q", first.PreviousHash)
	}
	if first.RecordHash == "" {
		t.Fatal("first entry has no record hash")
	}

	second, err := l.Record(ctx, auditlog.Event{
		EventType: auditlog.EventRoleRemoved,
		TenantID:  "org1",
		UserID:    "user1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if second.Seq != 2 || second.EventID != "evt_2" {
		t.Fatalf("unexpected second entry: seq=%d id=%s", second.Seq, second.EventID)
	}
	if second.PreviousHash != first.RecordHash {
		t.Fatal("second entry does not link to the first")
	}
	if second.ActorID != auditlog.ActorSystem {
		t.Fatalf("missing actor should default to %q, got %q", auditlog.ActorSystem, second.ActorID)
	}
}

func TestChainsAreIndependentPerTenant(t *testing.T) {
	ctx := context.Background()
	l := auditlog.NewLedger(memory.New())

	seedChain(t, l, "org1", 3)
	e, err := l.Record(ctx, auditlog.Event{
		EventType: auditlog.EventRoleAssigned,
		TenantID:  "org2",
		UserID:    "user2",
	})
	if err != nil {
		t.Fatal(err)
	}
	if e.Seq != 1 || e.PreviousHash != "" {
		t.Fatalf("org2 chain should start fresh, got seq=%d prev=%q", e.Seq, e.PreviousHash)
	}

	// The empty tenant id is its own chain, not a wildcard.
	e, err = l.Record(ctx, auditlog.Event{
		EventType: auditlog.EventPolicyAdded,
		TenantID:  "",
	})
	if err != nil {
		t.Fatal(err)
	}
	if e.Seq != 1 {
		t.Fatalf("global chain should start fresh, got seq=%d", e.Seq)
	}
}

func TestVerifyChainClean(t *testing.T) {
	ctx := context.Background()
	l := auditlog.NewLedger(memory.New())
	seedChain(t, l, "org1", 5)

	res, err := l.VerifyChain(ctx, "org1")
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK {
		t.Fatalf("expected clean chain, got violation: %+v", res.Violation)
	}
	if res.EntriesChecked != 5 {
		t.Fatalf("expected 5 entries checked, got %d", res.EntriesChecked)
	}
}

func TestVerifyEmptyChain(t *testing.T) {
	l := auditlog.NewLedger(memory.New())
	res, err := l.VerifyChain(context.Background(), "org1")
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK || res.EntriesChecked != 0 {
		t.Fatalf("empty chain should verify clean: %+v", res)
	}
}

// tamperStore lets verification tests hand the ledger a corrupted view of
// an otherwise valid chain.
type tamperStore struct {
	auditlog.Store
	mutate func([]*auditlog.Entry) []*auditlog.Entry
}

func (s *tamperStore) ListEntries(ctx context.Context, f *auditlog.QueryFilter) ([]*auditlog.Entry, error) {
	entries, err := s.Store.ListEntries(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.mutate(entries), nil
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func([]*auditlog.Entry) []*auditlog.Entry
		wantSeq int64
	}{
		{
			name: "edited field",
			mutate: func(entries []*auditlog.Entry) []*auditlog.Entry {
				entries[2].UserID = "intruder"
				return entries
			},
			wantSeq: 3,
		},
		{
			name: "edited details",
			mutate: func(entries []*auditlog.Entry) []*auditlog.Entry {
				entries[0].Details = map[string]any{"role": "admin"}
				return entries
			},
			wantSeq: 1,
		},
		{
			name: "deleted entry",
			mutate: func(entries []*auditlog.Entry) []*auditlog.Entry {
				return append(entries[:1], entries[2:]...)
			},
			wantSeq: 3,
		},
		{
			name: "reordered entries",
			mutate: func(entries []*auditlog.Entry) []*auditlog.Entry {
				entries[1], entries[2] = entries[2], entries[1]
				return entries
			},
			wantSeq: 3,
		},
		{
			name: "rewritten hash",
			mutate: func(entries []*auditlog.Entry) []*auditlog.Entry {
				entries[3].RecordHash = strings.Repeat("ab", 32)
				return entries
			},
			wantSeq: 4,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			backing := memory.New()
			l := auditlog.NewLedger(backing)
			seedChain(t, l, "org1", 5)

			tampered := auditlog.NewLedger(&tamperStore{Store: backing, mutate: tc.mutate})
			res, err := tampered.VerifyChain(ctx, "org1")
			if err != nil {
				t.Fatal(err)
			}
			if res.OK {
				t.Fatal("expected verification to fail")
			}
			if res.Violation == nil || res.Violation.Seq != tc.wantSeq {
				t.Fatalf("expected violation at seq %d, got %+v", tc.wantSeq, res.Violation)
			}
		})
	}
}

func TestConcurrentRecordSerializes(t *testing.T) {
	ctx := context.Background()
	l := auditlog.NewLedger(memory.New())

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := l.Record(ctx, auditlog.Event{
				EventType: auditlog.EventPermissionDenied,
				TenantID:  "org1",
				UserID:    "user1",
			}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	res, err := l.VerifyChain(ctx, "org1")
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK {
		t.Fatalf("concurrent appends broke the chain: %+v", res.Violation)
	}
	if res.EntriesChecked != n {
		t.Fatalf("expected %d entries, got %d", n, res.EntriesChecked)
	}
}

func TestQueryPagination(t *testing.T) {
	ctx := context.Background()
	l := auditlog.NewLedger(memory.New())
	seedChain(t, l, "org1", 7)

	page, err := l.Query(ctx, "org1", auditlog.QueryOptions{Page: 1, PageSize: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Data) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(page.Data))
	}
	p := page.Pagination
	if p.Page != 1 || p.PageSize != 3 || p.TotalItems != 7 || p.TotalPages != 3 || !p.HasMore {
		t.Fatalf("unexpected pagination: %+v", p)
	}
	if page.Data[0].EventID != "evt_1" {
		t.Fatalf("expected chain order, first id %s", page.Data[0].EventID)
	}

	last, err := l.Query(ctx, "org1", auditlog.QueryOptions{Page: 3, PageSize: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(last.Data) != 1 {
		t.Fatalf("expected 1 entry on final page, got %d", len(last.Data))
	}
	if last.Pagination.HasMore {
		t.Fatal("final page must not report more results")
	}

	beyond, err := l.Query(ctx, "org1", auditlog.QueryOptions{Page: 9, PageSize: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(beyond.Data) != 0 || beyond.Pagination.HasMore {
		t.Fatalf("page past the end should be empty: %+v", beyond.Pagination)
	}
}

func TestQueryDefaultsPageSize(t *testing.T) {
	ctx := context.Background()
	l := auditlog.NewLedger(memory.New())
	seedChain(t, l, "org1", 2)

	page, err := l.Query(ctx, "org1", auditlog.QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Pagination.PageSize != auditlog.DefaultPageSize {
		t.Fatalf("expected default page size %d, got %d", auditlog.DefaultPageSize, page.Pagination.PageSize)
	}
	if page.Pagination.Page != 1 {
		t.Fatalf("expected page 1, got %d", page.Pagination.Page)
	}
}

func TestQueryFilters(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	l := auditlog.NewLedger(memory.New(), auditlog.WithClock(func() time.Time {
		now = now.Add(time.Minute)
		return now
	}))

	events := []auditlog.Event{
		{EventType: auditlog.EventRoleAssigned, TenantID: "org1", ActorID: "admin1"},
		{EventType: auditlog.EventPermissionDenied, TenantID: "org1", ActorID: "admin2"},
		{EventType: auditlog.EventRoleAssigned, TenantID: "org1", ActorID: "admin1"},
	}
	for _, ev := range events {
		if _, err := l.Record(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	page, err := l.Query(ctx, "org1", auditlog.QueryOptions{EventType: auditlog.EventRoleAssigned})
	if err != nil {
		t.Fatal(err)
	}
	if page.Pagination.TotalItems != 2 {
		t.Fatalf("expected 2 role.assigned entries, got %d", page.Pagination.TotalItems)
	}

	page, err = l.Query(ctx, "org1", auditlog.QueryOptions{ActorID: "admin2"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Pagination.TotalItems != 1 {
		t.Fatalf("expected 1 entry for admin2, got %d", page.Pagination.TotalItems)
	}

	// Timestamp bounds are inclusive.
	after := base.Add(2 * time.Minute)
	page, err = l.Query(ctx, "org1", auditlog.QueryOptions{TimestampAfter: &after})
	if err != nil {
		t.Fatal(err)
	}
	if page.Pagination.TotalItems != 2 {
		t.Fatalf("expected 2 entries at or after bound, got %d", page.Pagination.TotalItems)
	}
}

func TestGetByEventID(t *testing.T) {
	ctx := context.Background()
	l := auditlog.NewLedger(memory.New())
	seedChain(t, l, "org1", 2)

	e, err := l.GetByEventID(ctx, "org1", "evt_2")
	if err != nil {
		t.Fatal(err)
	}
	if e.Seq != 2 || e.EventID != "evt_2" {
		t.Fatalf("unexpected entry: %+v", e)
	}

	for _, eventID := range []string{"invalid-id", "evt_", "evt_0", "evt_abc", "evt_99"} {
		if _, err := l.GetByEventID(ctx, "org1", eventID); !errors.Is(err, auditlog.ErrNotFound) {
			t.Fatalf("id %q: expected ErrNotFound, got %v", eventID, err)
		}
	}

	// An id valid in one tenant does not resolve in another.
	if _, err := l.GetByEventID(ctx, "org2", "evt_1"); !errors.Is(err, auditlog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound across tenants, got %v", err)
	}
}

// A backend that stores details as JSON text cannot tell an empty map
// from an absent one, so both must hash identically.
func TestVerifyChainTreatsEmptyDetailsAsAbsent(t *testing.T) {
	ctx := context.Background()
	backing := memory.New()
	l := auditlog.NewLedger(backing)

	if _, err := l.Record(ctx, auditlog.Event{
		EventType: auditlog.EventRoleAssigned,
		TenantID:  "org1",
		Details:   map[string]any{},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Record(ctx, auditlog.Event{
		EventType: auditlog.EventRoleRemoved,
		TenantID:  "org1",
	}); err != nil {
		t.Fatal(err)
	}

	// Reading back flips empty maps to nil and nil to empty maps; the
	// hashes must survive both directions.
	swapped := auditlog.NewLedger(&tamperStore{Store: backing, mutate: func(entries []*auditlog.Entry) []*auditlog.Entry {
		for _, e := range entries {
			if e.Details == nil {
				e.Details = map[string]any{}
			} else if len(e.Details) == 0 {
				e.Details = nil
			}
		}
		return entries
	}})
	res, err := swapped.VerifyChain(ctx, "org1")
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK {
		t.Fatalf("empty details must verify like absent details: %+v", res.Violation)
	}
}

// corruptTailStore hands Record a tail whose contents no longer match its
// stored hash.
type corruptTailStore struct {
	auditlog.Store
}

func (s *corruptTailStore) LatestEntry(ctx context.Context, tenantID string) (*auditlog.Entry, error) {
	tail, err := s.Store.LatestEntry(ctx, tenantID)
	if err != nil || tail == nil {
		return tail, err
	}
	tail.UserID = "intruder"
	return tail, nil
}

func TestRecordRefusesCorruptedTail(t *testing.T) {
	ctx := context.Background()
	backing := memory.New()
	seedChain(t, auditlog.NewLedger(backing), "org1", 2)

	l := auditlog.NewLedger(&corruptTailStore{Store: backing})
	_, err := l.Record(ctx, auditlog.Event{
		EventType: auditlog.EventRoleAssigned,
		TenantID:  "org1",
	})
	if !errors.Is(err, auditlog.ErrChainIntegrity) {
		t.Fatalf("expected ErrChainIntegrity, got %v", err)
	}
}

func TestRecordRequiresEventType(t *testing.T) {
	l := auditlog.NewLedger(memory.New())
	if _, err := l.Record(context.Background(), auditlog.Event{TenantID: "org1"}); err == nil {
		t.Fatal("expected an error for missing event type")
	}
}
