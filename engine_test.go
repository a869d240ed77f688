package bastion

import (
	"context"
	"errors"
	"testing"

	"github.com/bastionhq/bastion/auditlog"
	"github.com/bastionhq/bastion/id"
	"github.com/bastionhq/bastion/rule"
	"github.com/bastionhq/bastion/store/memory"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	eng, err := NewEngine(append([]Option{WithStore(s)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return eng, s
}

// grantRole creates a role in the domain and assigns it to the user.
func grantRole(t *testing.T, eng *Engine, userID, roleName string, d Domain) id.RoleID {
	t.Helper()
	ctx := context.Background()
	r, err := eng.CreateRole(ctx, d, CreateRoleInput{Name: roleName})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.AssignRole(ctx, userID, r.ID, d, "admin1"); err != nil {
		t.Fatal(err)
	}
	return r.ID
}

func TestNewEngineRequiresStore(t *testing.T) {
	if _, err := NewEngine(); err == nil {
		t.Fatal("expected error when store is nil")
	}
}

func TestCheckAllow(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	d := NewDomain("app1", "org1")

	grantRole(t, eng, "user1", "editor", d)
	if _, err := eng.AddPolicy(ctx, "editor", d, "posts", "update", EffectAllow, ConditionNone); err != nil {
		t.Fatal(err)
	}

	result, err := eng.Check(ctx, &CheckRequest{
		Subject:  "user1",
		Domain:   d,
		Resource: "posts",
		Action:   "update",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Allowed || result.Decision != DecisionAllow {
		t.Fatalf("expected allow, got %s: %s", result.Decision, result.Reason)
	}
	if len(result.MatchedBy) != 1 || result.MatchedBy[0].Role != "editor" {
		t.Fatalf("unexpected match info: %+v", result.MatchedBy)
	}

	// Same role, different action: deny by default.
	result, err = eng.Check(ctx, &CheckRequest{
		Subject:  "user1",
		Domain:   d,
		Resource: "posts",
		Action:   "delete",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed || result.Decision != DecisionDenyDefault {
		t.Fatalf("expected default deny, got %s", result.Decision)
	}
}

func TestCheckDenyOverridesAllow(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	d := NewDomain("app1", "org1")

	grantRole(t, eng, "user1", "editor", d)
	if _, err := eng.AddPolicy(ctx, "editor", d, "posts", "update", EffectAllow, ConditionNone); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.AddPolicy(ctx, "editor", d, "posts", "update", EffectDeny, ConditionNone); err != nil {
		t.Fatal(err)
	}

	result, err := eng.Check(ctx, &CheckRequest{
		Subject:  "user1",
		Domain:   d,
		Resource: "posts",
		Action:   "update",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed || result.Decision != DecisionDenyExplicit {
		t.Fatalf("expected explicit deny, got %s", result.Decision)
	}
}

func TestCheckNoRoles(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	result, err := eng.Check(ctx, &CheckRequest{
		Subject:  "stranger",
		Domain:   NewDomain("app1", "org1"),
		Resource: "posts",
		Action:   "read",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed || result.Decision != DecisionDenyNoRoles {
		t.Fatalf("expected deny_no_roles, got %s", result.Decision)
	}
}

func TestCheckOwnerCondition(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	d := NewDomain("app1", "org1")

	grantRole(t, eng, "user1", "author", d)
	if _, err := eng.AddPolicy(ctx, "author", d, "posts", "update", EffectAllow, ConditionOwner); err != nil {
		t.Fatal(err)
	}

	// Owner: allowed.
	result, err := eng.Check(ctx, &CheckRequest{
		Subject:  "user1",
		Domain:   d,
		Resource: "posts",
		Action:   "update",
		Context:  &EvalContext{ResourceOwnerID: "user1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Allowed {
		t.Fatalf("expected owner to be allowed, got %s: %s", result.Decision, result.Reason)
	}

	// Not the owner: the base match alone does not grant.
	result, err = eng.Check(ctx, &CheckRequest{
		Subject:  "user1",
		Domain:   d,
		Resource: "posts",
		Action:   "update",
		Context:  &EvalContext{ResourceOwnerID: "user2"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed || result.Decision != DecisionDenyCondition {
		t.Fatalf("expected deny_condition, got %s", result.Decision)
	}

	// No evaluation context at all: same outcome.
	result, err = eng.Check(ctx, &CheckRequest{
		Subject:  "user1",
		Domain:   d,
		Resource: "posts",
		Action:   "update",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed || result.Decision != DecisionDenyCondition {
		t.Fatalf("expected deny_condition without context, got %s", result.Decision)
	}
}

func TestCheckSharedCondition(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	d := NewDomain("app1", "org1")

	grantRole(t, eng, "user1", "viewer", d)
	if _, err := eng.AddPolicy(ctx, "viewer", d, "docs", "read", EffectAllow, ConditionShared); err != nil {
		t.Fatal(err)
	}

	result, err := eng.Check(ctx, &CheckRequest{
		Subject:  "user1",
		Domain:   d,
		Resource: "docs",
		Action:   "read",
		Context:  &EvalContext{SharedWith: []string{"user9", "user1"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Allowed {
		t.Fatalf("expected shared access, got %s", result.Decision)
	}

	result, err = eng.Check(ctx, &CheckRequest{
		Subject:  "user1",
		Domain:   d,
		Resource: "docs",
		Action:   "read",
		Context:  &EvalContext{SharedWith: []string{"user9"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed {
		t.Fatal("expected deny when not shared with subject")
	}
}

func TestCheckGlobalRoleAppliesInTenant(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	global := NewGlobalDomain("app1")
	tenant := NewDomain("app1", "org1")

	grantRole(t, eng, "user1", "superadmin", global)
	if _, err := eng.AddPolicy(ctx, "superadmin", global, "*", "*", EffectAllow, ConditionNone); err != nil {
		t.Fatal(err)
	}

	result, err := eng.Check(ctx, &CheckRequest{
		Subject:  "user1",
		Domain:   tenant,
		Resource: "posts",
		Action:   "delete",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Allowed {
		t.Fatalf("global role should apply in tenant domains, got %s", result.Decision)
	}
}

func TestCheckTenantIsolation(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	org1 := NewDomain("app1", "org1")
	org2 := NewDomain("app1", "org2")

	grantRole(t, eng, "user1", "editor", org1)
	if _, err := eng.AddPolicy(ctx, "editor", org1, "posts", "update", EffectAllow, ConditionNone); err != nil {
		t.Fatal(err)
	}

	result, err := eng.Check(ctx, &CheckRequest{
		Subject:  "user1",
		Domain:   org2,
		Resource: "posts",
		Action:   "update",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed {
		t.Fatal("a role held in org1 must not grant access in org2")
	}
}

// failingRuleStore simulates a storage outage on the rule read path.
type failingRuleStore struct {
	*memory.Store
}

func (s *failingRuleStore) ListRules(context.Context, *rule.Filter) ([]*rule.Rule, error) {
	return nil, errors.New("connection refused")
}

func TestCheckFailsClosedOnStorageError(t *testing.T) {
	ctx := context.Background()
	backing := memory.New()
	eng, err := NewEngine(WithStore(&failingRuleStore{Store: backing}))
	if err != nil {
		t.Fatal(err)
	}
	d := NewDomain("app1", "org1")

	r, err := eng.CreateRole(ctx, d, CreateRoleInput{Name: "editor"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.AssignRole(ctx, "user1", r.ID, d, "admin1"); err != nil {
		t.Fatal(err)
	}

	if _, err := eng.Check(ctx, &CheckRequest{
		Subject:  "user1",
		Domain:   d,
		Resource: "posts",
		Action:   "update",
	}); err == nil {
		t.Fatal("storage failure must surface as an error, not a decision")
	}

	if err := eng.Enforce(ctx, &CheckRequest{
		Subject:  "user1",
		Domain:   d,
		Resource: "posts",
		Action:   "update",
	}); err == nil {
		t.Fatal("enforce must fail closed on storage errors")
	}
}

func TestEnforceDeniedReturnsErrAccessDenied(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	err := eng.Enforce(ctx, &CheckRequest{
		Subject:  "user1",
		Domain:   NewDomain("app1", "org1"),
		Resource: "posts",
		Action:   "update",
	})
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestCheckRecordsDecisions(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	ledger := auditlog.NewLedger(s)
	eng, err := NewEngine(
		WithStore(s),
		WithAuditLedger(ledger),
		WithConfig(Config{LogDecisions: true}),
	)
	if err != nil {
		t.Fatal(err)
	}
	d := NewDomain("app1", "org1")

	if _, err := eng.Check(ctx, &CheckRequest{
		Subject:  "user1",
		Domain:   d,
		Resource: "posts",
		Action:   "read",
	}); err != nil {
		t.Fatal(err)
	}

	page, err := ledger.Query(ctx, "org1", auditlog.QueryOptions{EventType: auditlog.EventPermissionDenied})
	if err != nil {
		t.Fatal(err)
	}
	if page.Pagination.TotalItems != 1 {
		t.Fatalf("expected 1 decision record, got %d", page.Pagination.TotalItems)
	}
}

func TestRequireAudit(t *testing.T) {
	eng, _ := newTestEngine(t)
	if _, err := eng.RequireAudit(); !errors.Is(err, ErrAuditUnavailable) {
		t.Fatalf("expected ErrAuditUnavailable, got %v", err)
	}

	s := memory.New()
	ledger := auditlog.NewLedger(s)
	eng, err := NewEngine(WithStore(s), WithAuditLedger(ledger))
	if err != nil {
		t.Fatal(err)
	}
	got, err := eng.RequireAudit()
	if err != nil {
		t.Fatal(err)
	}
	if got != ledger {
		t.Fatal("expected the configured ledger")
	}
}

func TestGroupingResolverStrategy(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	eng, err := NewEngine(WithStore(s), WithConfig(Config{ProjectGroupings: true}))
	if err != nil {
		t.Fatal(err)
	}
	d := NewDomain("app1", "org1")

	r, err := eng.CreateRole(ctx, d, CreateRoleInput{Name: "editor"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.AssignRole(ctx, "user1", r.ID, d, "admin1"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.AddPolicy(ctx, "editor", d, "posts", "update", EffectAllow, ConditionNone); err != nil {
		t.Fatal(err)
	}

	// Enforcement resolves through the projected grouping rules.
	result, err := eng.Check(ctx, &CheckRequest{
		Subject:  "user1",
		Domain:   d,
		Resource: "posts",
		Action:   "update",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Allowed {
		t.Fatalf("expected allow via grouping projection, got %s", result.Decision)
	}

	// Deleting the projected rule out from under the engine causes
	// drift: the DB still holds the assignment but checks deny.
	if _, err := s.RemoveRules(ctx, &rule.Filter{PType: rule.TypeGrouping}); err != nil {
		t.Fatal(err)
	}
	result, err = eng.Check(ctx, &CheckRequest{
		Subject:  "user1",
		Domain:   d,
		Resource: "posts",
		Action:   "update",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed {
		t.Fatal("expected drift to deny")
	}

	// Resync rebuilds the projection from the assignment records.
	names, err := eng.ResyncUser(ctx, "user1", d)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "editor" {
		t.Fatalf("unexpected resynced roles: %v", names)
	}
	result, err = eng.Check(ctx, &CheckRequest{
		Subject:  "user1",
		Domain:   d,
		Resource: "posts",
		Action:   "update",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Allowed {
		t.Fatalf("expected allow after resync, got %s", result.Decision)
	}
}
