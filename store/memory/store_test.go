package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bastionhq/bastion/assignment"
	"github.com/bastionhq/bastion/auditlog"
	"github.com/bastionhq/bastion/id"
	"github.com/bastionhq/bastion/role"
	"github.com/bastionhq/bastion/rule"
	"github.com/bastionhq/bastion/store"
)

// Compile-time check that *Store implements store.Store.
var _ store.Store = (*Store)(nil)

func strPtr(s string) *string { return &s }

func TestAddRuleIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()

	r := rule.Policy("editor", "app1:org1", "posts", "update", "allow", "")

	added, err := s.AddRule(ctx, r)
	if err != nil {
		t.Fatal(err)
	}
	if !added {
		t.Fatal("expected first add to insert")
	}

	added, err = s.AddRule(ctx, rule.Policy("editor", "app1:org1", "posts", "update", "allow", ""))
	if err != nil {
		t.Fatal(err)
	}
	if added {
		t.Fatal("expected duplicate add to be a no-op")
	}

	rules, err := s.ListRules(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
}

func TestRemoveRulesFiltered(t *testing.T) {
	ctx := context.Background()
	s := New()

	must := func(r *rule.Rule) {
		t.Helper()
		if _, err := s.AddRule(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	must(rule.Policy("editor", "app1:org1", "posts", "update", "allow", ""))
	must(rule.Policy("editor", "app1:org1", "posts", "delete", "allow", ""))
	must(rule.Policy("editor", "app1:org2", "posts", "update", "allow", ""))

	removed, err := s.RemoveRules(ctx, &rule.Filter{
		PType: rule.TypePolicy,
		V1:    rule.FieldValue("app1:org1"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}

	rest, err := s.ListRules(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 1 || rest[0].V1 != "app1:org2" {
		t.Fatalf("unexpected remaining rules: %+v", rest)
	}
}

func TestReplaceGroupingRules(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.ReplaceGroupingRules(ctx, "user1", "app1:org1", []string{"viewer", "editor"}); err != nil {
		t.Fatal(err)
	}
	if err := s.ReplaceGroupingRules(ctx, "user1", "app1:org1", []string{"admin"}); err != nil {
		t.Fatal(err)
	}
	// A different domain is untouched by the swap.
	if err := s.ReplaceGroupingRules(ctx, "user1", "app1:org2", []string{"viewer"}); err != nil {
		t.Fatal(err)
	}

	rules, err := s.ListRules(ctx, &rule.Filter{
		PType: rule.TypeGrouping,
		V0:    rule.FieldValue("user1"),
		V2:    rule.FieldValue("app1:org1"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 || rules[0].V1 != "admin" {
		t.Fatalf("unexpected grouping rules: %+v", rules)
	}
}

func TestRoleCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	r := &role.Role{
		ID:        id.NewRoleID(),
		Name:      "admin",
		AppID:     "app1",
		TenantID:  strPtr("org1"),
		CreatedAt: time.Now(),
	}
	if err := s.CreateRole(ctx, r); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetRole(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "admin" {
		t.Fatalf("expected name admin, got %s", got.Name)
	}

	byName, err := s.GetRoleByName(ctx, "app1", strPtr("org1"), "admin")
	if err != nil {
		t.Fatal(err)
	}
	if byName.ID.String() != r.ID.String() {
		t.Fatal("GetRoleByName returned a different role")
	}

	// Same name in a different tenant is a different role.
	if _, err := s.GetRoleByName(ctx, "app1", strPtr("org2"), "admin"); !errors.Is(err, role.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// Global lookup ignores tenant-scoped roles.
	if _, err := s.GetRoleByName(ctx, "app1", nil, "admin"); !errors.Is(err, role.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	got.Description = "administrators"
	if err := s.UpdateRole(ctx, got); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteRole(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetRole(ctx, r.ID); !errors.Is(err, role.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestFindAssignmentTenantScope(t *testing.T) {
	ctx := context.Background()
	s := New()

	roleID := id.NewRoleID()
	global := &assignment.Assignment{
		ID:        id.NewAssignmentID(),
		UserID:    "user1",
		RoleID:    roleID,
		AppID:     "app1",
		CreatedAt: time.Now(),
	}
	scoped := &assignment.Assignment{
		ID:        id.NewAssignmentID(),
		UserID:    "user1",
		RoleID:    roleID,
		AppID:     "app1",
		TenantID:  strPtr("org1"),
		CreatedAt: time.Now(),
	}
	if err := s.CreateAssignment(ctx, global); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateAssignment(ctx, scoped); err != nil {
		t.Fatal(err)
	}

	got, err := s.FindAssignment(ctx, "user1", roleID, "app1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID.String() != global.ID.String() {
		t.Fatal("nil tenant lookup returned the scoped assignment")
	}

	got, err = s.FindAssignment(ctx, "user1", roleID, "app1", strPtr("org1"))
	if err != nil {
		t.Fatal(err)
	}
	if got.ID.String() != scoped.ID.String() {
		t.Fatal("scoped lookup returned the global assignment")
	}

	if _, err := s.FindAssignment(ctx, "user1", roleID, "app1", strPtr("org2")); !errors.Is(err, assignment.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAssignmentsTenantFilter(t *testing.T) {
	ctx := context.Background()
	s := New()

	roleID := id.NewRoleID()
	for _, tenantID := range []*string{nil, strPtr("org1"), strPtr("org2")} {
		a := &assignment.Assignment{
			ID:        id.NewAssignmentID(),
			UserID:    "user1",
			RoleID:    roleID,
			AppID:     "app1",
			TenantID:  tenantID,
			CreatedAt: time.Now(),
		}
		if err := s.CreateAssignment(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	cases := []struct {
		name   string
		filter assignment.TenantFilter
		want   int
	}{
		{"any", assignment.AnyTenant(), 3},
		{"global only", assignment.GlobalOnly(), 1},
		{"org1", assignment.Tenant("org1"), 1},
		{"org3", assignment.Tenant("org3"), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			list, err := s.ListAssignments(ctx, &assignment.ListFilter{
				UserID: "user1",
				AppID:  "app1",
				Tenant: tc.filter,
			})
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != tc.want {
				t.Fatalf("expected %d assignments, got %d", tc.want, len(list))
			}
		})
	}
}

func TestDeleteAssignmentReportsRow(t *testing.T) {
	ctx := context.Background()
	s := New()

	a := &assignment.Assignment{
		ID:     id.NewAssignmentID(),
		UserID: "user1",
		RoleID: id.NewRoleID(),
		AppID:  "app1",
	}
	if err := s.CreateAssignment(ctx, a); err != nil {
		t.Fatal(err)
	}

	deleted, err := s.DeleteAssignment(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !deleted {
		t.Fatal("expected first delete to report a removed row")
	}

	deleted, err = s.DeleteAssignment(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if deleted {
		t.Fatal("expected second delete to report no row")
	}
}

func TestAuditEntriesPerTenant(t *testing.T) {
	ctx := context.Background()
	s := New()

	now := time.Now().UTC()
	for i := int64(1); i <= 3; i++ {
		e := &auditlog.Entry{
			Seq:       i,
			Timestamp: now.Add(time.Duration(i) * time.Second),
			EventType: auditlog.EventRoleAssigned,
			TenantID:  "org1",
			UserID:    "user1",
		}
		if err := s.AppendEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.AppendEntry(ctx, &auditlog.Entry{
		Seq:       1,
		Timestamp: now,
		EventType: auditlog.EventRoleAssigned,
		TenantID:  "org2",
	}); err != nil {
		t.Fatal(err)
	}

	latest, err := s.LatestEntry(ctx, "org1")
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil || latest.Seq != 3 {
		t.Fatalf("expected tail seq 3, got %+v", latest)
	}

	latest, err = s.LatestEntry(ctx, "org3")
	if err != nil {
		t.Fatal(err)
	}
	if latest != nil {
		t.Fatal("expected nil tail for empty chain")
	}

	got, err := s.GetEntryBySeq(ctx, "org1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Seq != 2 {
		t.Fatalf("expected seq 2, got %+v", got)
	}

	count, err := s.CountEntries(ctx, &auditlog.QueryFilter{TenantID: "org1"})
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("expected 3 entries for org1, got %d", count)
	}

	list, err := s.ListEntries(ctx, &auditlog.QueryFilter{TenantID: "org1", Limit: 2, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Seq != 2 || list[1].Seq != 3 {
		t.Fatalf("unexpected page: %+v", list)
	}
}
