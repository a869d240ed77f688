package bastion

import (
	"context"
	"fmt"

	"github.com/bastionhq/bastion/auditlog"
	"github.com/bastionhq/bastion/rule"
)

// AddPolicy adds a policy rule granting or denying (resource, action) to
// a role within a domain. Adding an identical rule twice is a no-op; the
// call reports whether a rule was actually inserted. Only an actual
// insert produces an audit event.
func (e *Engine) AddPolicy(ctx context.Context, roleName string, d Domain, resource, action string, effect Effect, cond Condition) (bool, error) {
	if err := d.Validate(); err != nil {
		return false, err
	}
	if roleName == "" || resource == "" || action == "" {
		return false, fmt.Errorf("bastion: add policy: role, resource, and action are required")
	}
	if effect != EffectAllow && effect != EffectDeny {
		return false, fmt.Errorf("bastion: add policy: effect must be %q or %q", EffectAllow, EffectDeny)
	}
	switch cond {
	case ConditionNone, ConditionOwner, ConditionShared:
	default:
		return false, fmt.Errorf("bastion: add policy: unknown condition %q", cond)
	}

	r := rule.Policy(roleName, d.Key(), resource, action, string(effect), string(cond))
	added, err := e.store.AddRule(ctx, r)
	if err != nil {
		return false, fmt.Errorf("bastion: add policy: %w", err)
	}
	if !added {
		return false, nil
	}

	if err := e.recordEvent(ctx, auditlog.Event{
		EventType: auditlog.EventPolicyAdded,
		TenantID:  d.Tenant(),
		Resource:  resource,
		Action:    action,
		Details: map[string]any{
			"app_id":    d.AppID,
			"role":      roleName,
			"effect":    string(effect),
			"condition": string(cond),
		},
	}); err != nil {
		return true, err
	}

	e.invalidatePolicies(ctx, d)
	if e.plugins != nil {
		e.plugins.EmitPolicyAdded(ctx, r)
	}
	return true, nil
}

// RemovePolicy deletes the policy rules matching (role, resource, action)
// within a domain and returns the count removed. Empty arguments act as
// wildcards, so RemovePolicy(ctx, "", d, "posts", "") drops every rule
// touching the posts resource in the domain.
func (e *Engine) RemovePolicy(ctx context.Context, roleName string, d Domain, resource, action string) (int64, error) {
	if err := d.Validate(); err != nil {
		return 0, err
	}
	f := &rule.Filter{
		PType: rule.TypePolicy,
		V1:    rule.FieldValue(d.Key()),
	}
	if roleName != "" {
		f.V0 = rule.FieldValue(roleName)
	}
	if resource != "" {
		f.V2 = rule.FieldValue(resource)
	}
	if action != "" {
		f.V3 = rule.FieldValue(action)
	}

	removed, err := e.store.RemoveRules(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("bastion: remove policy: %w", err)
	}
	if removed == 0 {
		return 0, nil
	}

	if err := e.recordEvent(ctx, auditlog.Event{
		EventType: auditlog.EventPolicyRemoved,
		TenantID:  d.Tenant(),
		Resource:  resource,
		Action:    action,
		Details: map[string]any{
			"app_id":  d.AppID,
			"role":    roleName,
			"removed": removed,
		},
	}); err != nil {
		return removed, err
	}

	e.invalidatePolicies(ctx, d)
	if e.plugins != nil {
		e.plugins.EmitPolicyRemoved(ctx, f, removed)
	}
	return removed, nil
}

// GetPolicy returns all policy rules for a domain.
func (e *Engine) GetPolicy(ctx context.Context, d Domain) ([]*rule.Rule, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	rules, err := e.store.ListRules(ctx, &rule.Filter{
		PType: rule.TypePolicy,
		V1:    rule.FieldValue(d.Key()),
	})
	if err != nil {
		return nil, fmt.Errorf("bastion: get policy: %w", err)
	}
	return rules, nil
}

// GetFilteredPolicy returns the policy rules whose columns, starting at
// fieldIndex, equal the given values. An empty value skips its column.
// Column order matches the rule tuple: role, domain, resource, action,
// effect, condition.
func (e *Engine) GetFilteredPolicy(ctx context.Context, fieldIndex int, values ...string) ([]*rule.Rule, error) {
	f, err := filterAt(rule.TypePolicy, fieldIndex, values)
	if err != nil {
		return nil, err
	}
	rules, err := e.store.ListRules(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("bastion: get filtered policy: %w", err)
	}
	return rules, nil
}

// RemoveFilteredPolicy deletes the policy rules whose columns, starting
// at fieldIndex, equal the given values, and returns the count removed.
// The filter can span domains, so the affected domain keys are collected
// before deletion to invalidate each one's cached decisions.
func (e *Engine) RemoveFilteredPolicy(ctx context.Context, fieldIndex int, values ...string) (int64, error) {
	f, err := filterAt(rule.TypePolicy, fieldIndex, values)
	if err != nil {
		return 0, err
	}

	var affected []Domain
	if e.cache != nil {
		rules, err := e.store.ListRules(ctx, f)
		if err != nil {
			return 0, fmt.Errorf("bastion: remove filtered policy: %w", err)
		}
		seen := make(map[string]struct{}, len(rules))
		for _, r := range rules {
			if _, ok := seen[r.V1]; ok {
				continue
			}
			seen[r.V1] = struct{}{}
			if d, err := ParseDomainKey(r.V1); err == nil {
				affected = append(affected, d)
			}
		}
	}

	removed, err := e.store.RemoveRules(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("bastion: remove filtered policy: %w", err)
	}
	for _, d := range affected {
		e.invalidatePolicies(ctx, d)
	}
	return removed, nil
}

// filterAt builds a rule filter from a casbin-style positional value
// slice anchored at fieldIndex.
func filterAt(ptype rule.Type, fieldIndex int, values []string) (*rule.Filter, error) {
	if fieldIndex < 0 || fieldIndex+len(values) > 7 {
		return nil, fmt.Errorf("bastion: filter fields %d..%d out of range", fieldIndex, fieldIndex+len(values))
	}
	f := &rule.Filter{PType: ptype}
	fields := [7]**string{&f.V0, &f.V1, &f.V2, &f.V3, &f.V4, &f.V5, &f.V6}
	for i, v := range values {
		if v == "" {
			continue
		}
		*fields[fieldIndex+i] = rule.FieldValue(v)
	}
	return f, nil
}

// GetRolesForUser returns the role names the user resolves to within a
// domain, through the configured resolver.
func (e *Engine) GetRolesForUser(ctx context.Context, userID string, d Domain) ([]string, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return e.resolver.RolesForUser(ctx, userID, d)
}
