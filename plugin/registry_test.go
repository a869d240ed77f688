package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/bastionhq/bastion/assignment"
	"github.com/bastionhq/bastion/id"
	"github.com/bastionhq/bastion/rule"
)

type recordingPlugin struct {
	name     string
	events   []string
	hookErr  error
	assigned *assignment.Assignment
}

func (p *recordingPlugin) Name() string { return p.name }

func (p *recordingPlugin) OnBeforeCheck(_ context.Context, _ any) error {
	p.events = append(p.events, "before_check")
	return p.hookErr
}

func (p *recordingPlugin) OnRoleAssigned(_ context.Context, a *assignment.Assignment) error {
	p.events = append(p.events, "role_assigned")
	p.assigned = a
	return p.hookErr
}

func (p *recordingPlugin) OnPolicyAdded(_ context.Context, _ *rule.Rule) error {
	p.events = append(p.events, "policy_added")
	return p.hookErr
}

func TestRegistryDispatchesToImplementedHooks(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	p := &recordingPlugin{name: "recorder"}
	r.Register(p)

	r.EmitBeforeCheck(ctx, nil)
	r.EmitAfterCheck(ctx, nil, nil) // not implemented; must not panic
	a := &assignment.Assignment{ID: id.NewAssignmentID(), UserID: "user1"}
	r.EmitRoleAssigned(ctx, a)
	r.EmitPolicyAdded(ctx, rule.Policy("editor", "app1:org1", "posts", "update", "allow", ""))
	r.EmitShutdown(ctx)

	want := []string{"before_check", "role_assigned", "policy_added"}
	if len(p.events) != len(want) {
		t.Fatalf("expected events %v, got %v", want, p.events)
	}
	for i := range want {
		if p.events[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, p.events)
		}
	}
	if p.assigned == nil || p.assigned.UserID != "user1" {
		t.Fatalf("hook did not receive the assignment: %+v", p.assigned)
	}
}

func TestRegistryHookErrorsDoNotPropagate(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	failing := &recordingPlugin{name: "failing", hookErr: errors.New("boom")}
	second := &recordingPlugin{name: "second"}
	r.Register(failing)
	r.Register(second)

	r.EmitBeforeCheck(ctx, nil)

	// The failing hook must not stop delivery to later plugins.
	if len(second.events) != 1 || second.events[0] != "before_check" {
		t.Fatalf("second plugin was not notified: %v", second.events)
	}
}

func TestRegistryOrder(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&recordingPlugin{name: "a"})
	r.Register(&recordingPlugin{name: "b"})

	plugins := r.Plugins()
	if len(plugins) != 2 || plugins[0].Name() != "a" || plugins[1].Name() != "b" {
		t.Fatalf("unexpected plugin order: %v", plugins)
	}
}
