package bastion_test

import (
	"context"
	"testing"

	"github.com/bastionhq/bastion"
	"github.com/bastionhq/bastion/cache"
	"github.com/bastionhq/bastion/store/memory"
)

func newCachedEngine(t *testing.T) *bastion.Engine {
	t.Helper()
	eng, err := bastion.NewEngine(
		bastion.WithStore(memory.New()),
		bastion.WithCache(cache.NewMemory()),
	)
	if err != nil {
		t.Fatal(err)
	}
	return eng
}

func checkAllowed(t *testing.T, eng *bastion.Engine, req *bastion.CheckRequest) bool {
	t.Helper()
	result, err := eng.Check(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	return result.Allowed
}

// A tenant-domain check also consults application-global rules, so
// removing a global policy must drop cached tenant-domain decisions.
func TestGlobalPolicyRemovalDropsTenantCache(t *testing.T) {
	ctx := context.Background()
	eng := newCachedEngine(t)
	global := bastion.NewGlobalDomain("app1")

	r, err := eng.CreateRole(ctx, global, bastion.CreateRoleInput{Name: "editor"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.AssignRole(ctx, "user1", r.ID, global, "admin1"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.AddPolicy(ctx, "editor", global, "posts", "update", bastion.EffectAllow, bastion.ConditionNone); err != nil {
		t.Fatal(err)
	}

	req := &bastion.CheckRequest{
		Subject:  "user1",
		Domain:   bastion.NewDomain("app1", "org1"),
		Resource: "posts",
		Action:   "update",
	}
	if !checkAllowed(t, eng, req) {
		t.Fatal("expected allow before global policy removal")
	}

	if _, err := eng.RemovePolicy(ctx, "editor", global, "posts", "update"); err != nil {
		t.Fatal(err)
	}
	if checkAllowed(t, eng, req) {
		t.Fatal("tenant-domain check served a stale allow after global policy removal")
	}
}

// Global assignments feed role resolution in every tenant domain, so
// revoking a global grant must drop cached tenant-domain decisions too.
func TestGlobalGrantRemovalDropsTenantCache(t *testing.T) {
	ctx := context.Background()
	eng := newCachedEngine(t)
	global := bastion.NewGlobalDomain("app1")

	r, err := eng.CreateRole(ctx, global, bastion.CreateRoleInput{Name: "auditor"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.AssignRole(ctx, "user1", r.ID, global, "admin1"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.AddPolicy(ctx, "auditor", global, "reports", "read", bastion.EffectAllow, bastion.ConditionNone); err != nil {
		t.Fatal(err)
	}

	req := &bastion.CheckRequest{
		Subject:  "user1",
		Domain:   bastion.NewDomain("app1", "org1"),
		Resource: "reports",
		Action:   "read",
	}
	if !checkAllowed(t, eng, req) {
		t.Fatal("expected allow before global grant removal")
	}

	removed, err := eng.RemoveRole(ctx, "user1", r.ID, global, "admin1")
	if err != nil {
		t.Fatal(err)
	}
	if !removed {
		t.Fatal("expected the global assignment to be removed")
	}
	if checkAllowed(t, eng, req) {
		t.Fatal("tenant-domain check served a stale allow after global grant removal")
	}
}

// RemoveFilteredPolicy can strip rules from any domain, so every domain
// the filter touched must be invalidated.
func TestRemoveFilteredPolicyDropsCache(t *testing.T) {
	ctx := context.Background()
	eng := newCachedEngine(t)
	d := bastion.NewDomain("app1", "org1")

	r, err := eng.CreateRole(ctx, d, bastion.CreateRoleInput{Name: "editor"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.AssignRole(ctx, "user1", r.ID, d, "admin1"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.AddPolicy(ctx, "editor", d, "posts", "update", bastion.EffectAllow, bastion.ConditionNone); err != nil {
		t.Fatal(err)
	}

	req := &bastion.CheckRequest{
		Subject:  "user1",
		Domain:   d,
		Resource: "posts",
		Action:   "update",
	}
	if !checkAllowed(t, eng, req) {
		t.Fatal("expected allow before filtered removal")
	}

	removed, err := eng.RemoveFilteredPolicy(ctx, 0, "editor")
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 rule removed, got %d", removed)
	}
	if checkAllowed(t, eng, req) {
		t.Fatal("check served a stale allow after filtered policy removal")
	}
}
