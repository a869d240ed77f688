package bastion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bastionhq/bastion/assignment"
	"github.com/bastionhq/bastion/auditlog"
	"github.com/bastionhq/bastion/id"
	"github.com/bastionhq/bastion/role"
	"github.com/bastionhq/bastion/rule"
)

// AssignRole grants a role to a user within a domain. The operation is
// idempotent: assigning an already-held role returns the existing record
// without a second audit event.
//
// The role must belong to the domain's application, and a tenant-scoped
// role can only be assigned within its own tenant; violations surface as
// ErrScopeMismatch before anything is written.
func (e *Engine) AssignRole(ctx context.Context, userID string, roleID id.RoleID, d Domain, assignedBy string) (*assignment.Assignment, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, fmt.Errorf("bastion: assign role: user id is required")
	}

	rl, err := e.store.GetRole(ctx, roleID)
	if err != nil {
		if errors.Is(err, role.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, roleID)
		}
		return nil, fmt.Errorf("bastion: assign role: %w", err)
	}
	if rl.AppID != d.AppID {
		return nil, fmt.Errorf("%w: role %s belongs to app %q, not %q", ErrScopeMismatch, rl.Name, rl.AppID, d.AppID)
	}
	if !d.Global() && rl.TenantID != nil && *rl.TenantID != d.Tenant() {
		return nil, fmt.Errorf("%w: role %s is scoped to tenant %q", ErrScopeMismatch, rl.Name, *rl.TenantID)
	}
	if d.Global() && rl.TenantID != nil {
		return nil, fmt.Errorf("%w: tenant-scoped role %s cannot be assigned globally", ErrScopeMismatch, rl.Name)
	}

	existing, err := e.store.FindAssignment(ctx, userID, roleID, d.AppID, d.TenantID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, assignment.ErrNotFound) {
		return nil, fmt.Errorf("bastion: assign role: %w", err)
	}

	a := &assignment.Assignment{
		ID:         id.NewAssignmentID(),
		UserID:     userID,
		RoleID:     roleID,
		AppID:      d.AppID,
		TenantID:   d.TenantID,
		AssignedBy: assignedBy,
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.store.CreateAssignment(ctx, a); err != nil {
		return nil, fmt.Errorf("bastion: assign role: %w", err)
	}

	if e.config.ProjectGroupings {
		if _, err := e.store.AddRule(ctx, rule.Grouping(userID, rl.Name, d.Key())); err != nil {
			return nil, fmt.Errorf("bastion: assign role: project grouping: %w", err)
		}
	}

	if err := e.recordEvent(ctx, auditlog.Event{
		EventType: auditlog.EventRoleAssigned,
		UserID:    userID,
		TenantID:  d.Tenant(),
		ActorID:   assignedBy,
		Details: map[string]any{
			"app_id":    d.AppID,
			"role_id":   roleID.String(),
			"role_name": rl.Name,
		},
	}); err != nil {
		return a, err
	}

	e.invalidateGrants(ctx, d, userID)
	if e.plugins != nil {
		e.plugins.EmitRoleAssigned(ctx, a)
	}
	return a, nil
}

// RemoveRole revokes a role from a user within a domain. All four key
// fields must match, with explicit null-vs-value tenant handling. Reports
// whether an assignment was actually deleted; removing an absent
// assignment is a no-op, not an error.
func (e *Engine) RemoveRole(ctx context.Context, userID string, roleID id.RoleID, d Domain, actorID string) (bool, error) {
	if err := d.Validate(); err != nil {
		return false, err
	}

	existing, err := e.store.FindAssignment(ctx, userID, roleID, d.AppID, d.TenantID)
	if err != nil {
		if errors.Is(err, assignment.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("bastion: remove role: %w", err)
	}

	deleted, err := e.store.DeleteAssignment(ctx, existing.ID)
	if err != nil {
		return false, fmt.Errorf("bastion: remove role: %w", err)
	}
	if !deleted {
		return false, nil
	}

	if e.config.ProjectGroupings {
		if err := e.unprojectGrouping(ctx, userID, roleID, d); err != nil {
			return true, err
		}
	}

	if err := e.recordEvent(ctx, auditlog.Event{
		EventType: auditlog.EventRoleRemoved,
		UserID:    userID,
		TenantID:  d.Tenant(),
		ActorID:   actorID,
		Details: map[string]any{
			"app_id":  d.AppID,
			"role_id": roleID.String(),
		},
	}); err != nil {
		return true, err
	}

	e.invalidateGrants(ctx, d, userID)
	if e.plugins != nil {
		e.plugins.EmitRoleUnassigned(ctx, existing)
	}
	return true, nil
}

// unprojectGrouping mirrors an assignment removal into the grouping
// rules. The grouping row only goes away when no other assignment still
// grants the same role name in the domain (two roles can share a name
// across scopes).
func (e *Engine) unprojectGrouping(ctx context.Context, userID string, roleID id.RoleID, d Domain) error {
	rl, err := e.store.GetRole(ctx, roleID)
	if err != nil {
		if errors.Is(err, role.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("bastion: remove role: unproject grouping: %w", err)
	}
	_, err = e.store.RemoveRules(ctx, &rule.Filter{
		PType: rule.TypeGrouping,
		V0:    rule.FieldValue(userID),
		V1:    rule.FieldValue(rl.Name),
		V2:    rule.FieldValue(d.Key()),
	})
	if err != nil {
		return fmt.Errorf("bastion: remove role: unproject grouping: %w", err)
	}
	return nil
}

// GetUserRoles returns the user's assignments within an application,
// narrowed by the three-valued tenant filter: AnyTenant for no filter,
// GlobalOnly for global assignments only, or Tenant for exactly one
// tenant (global assignments are not implicitly included).
func (e *Engine) GetUserRoles(ctx context.Context, userID, appID string, tf assignment.TenantFilter) ([]*assignment.Assignment, error) {
	list, err := e.store.ListAssignments(ctx, &assignment.ListFilter{
		UserID: userID,
		AppID:  appID,
		Tenant: tf,
	})
	if err != nil {
		return nil, fmt.Errorf("bastion: get user roles: %w", err)
	}
	return list, nil
}

// GetUserRoleNames returns the distinct role names behind the user's
// assignments, under the same tenant filter semantics as GetUserRoles.
func (e *Engine) GetUserRoleNames(ctx context.Context, userID, appID string, tf assignment.TenantFilter) ([]string, error) {
	list, err := e.GetUserRoles(ctx, userID, appID, tf)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(list))
	names := make([]string, 0, len(list))
	for _, a := range list {
		rl, err := e.store.GetRole(ctx, a.RoleID)
		if err != nil {
			if errors.Is(err, role.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("bastion: get user role names: %w", err)
		}
		if _, ok := seen[rl.Name]; ok {
			continue
		}
		seen[rl.Name] = struct{}{}
		names = append(names, rl.Name)
	}
	return names, nil
}

// GetUsersWithRole returns the distinct user ids holding a role within an
// application, narrowed by the tenant filter.
func (e *Engine) GetUsersWithRole(ctx context.Context, roleID id.RoleID, appID string, tf assignment.TenantFilter) ([]string, error) {
	list, err := e.store.ListAssignments(ctx, &assignment.ListFilter{
		RoleID: &roleID,
		AppID:  appID,
		Tenant: tf,
	})
	if err != nil {
		return nil, fmt.Errorf("bastion: get users with role: %w", err)
	}
	seen := make(map[string]struct{}, len(list))
	users := make([]string, 0, len(list))
	for _, a := range list {
		if _, ok := seen[a.UserID]; ok {
			continue
		}
		seen[a.UserID] = struct{}{}
		users = append(users, a.UserID)
	}
	return users, nil
}

// HasRole reports whether the user resolves to the named role within a
// domain (global roles count in tenant domains).
func (e *Engine) HasRole(ctx context.Context, userID, roleName string, d Domain) (bool, error) {
	names, err := e.GetRolesForUser(ctx, userID, d)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == roleName {
			return true, nil
		}
	}
	return false, nil
}

// RemoveAllUserRoles revokes the user's assignments within an application
// one at a time, so each removal is individually mirrored and audited.
// It returns the number of assignments removed; a partial failure stops
// at the failing assignment with the earlier removals already applied.
func (e *Engine) RemoveAllUserRoles(ctx context.Context, userID, appID string, tf assignment.TenantFilter, actorID string) (int, error) {
	list, err := e.store.ListAssignments(ctx, &assignment.ListFilter{
		UserID: userID,
		AppID:  appID,
		Tenant: tf,
	})
	if err != nil {
		return 0, fmt.Errorf("bastion: remove all user roles: %w", err)
	}

	removed := 0
	for _, a := range list {
		d := Domain{AppID: a.AppID, TenantID: a.TenantID}
		ok, err := e.RemoveRole(ctx, userID, a.RoleID, d, actorID)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// ResyncUser rebuilds the user's grouping rules in a domain from the
// assignment records, repairing any drift between the two. Only
// assignments with the domain's exact tenant scope project into its
// grouping rules; global assignments live under the global domain key
// and resync there. The swap is atomic: readers never observe the user
// with zero roles mid-resync. It returns the role names now projected.
func (e *Engine) ResyncUser(ctx context.Context, userID string, d Domain) ([]string, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	list, err := e.store.ListAssignments(ctx, &assignment.ListFilter{
		UserID: userID,
		AppID:  d.AppID,
		Tenant: assignment.TenantPtr(d.TenantID),
	})
	if err != nil {
		return nil, fmt.Errorf("bastion: resync user: %w", err)
	}
	seen := make(map[string]struct{}, len(list))
	names := make([]string, 0, len(list))
	for _, a := range list {
		rl, err := e.store.GetRole(ctx, a.RoleID)
		if err != nil {
			if errors.Is(err, role.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("bastion: resync user: %w", err)
		}
		if _, ok := seen[rl.Name]; ok {
			continue
		}
		seen[rl.Name] = struct{}{}
		names = append(names, rl.Name)
	}

	if err := e.store.ReplaceGroupingRules(ctx, userID, d.Key(), names); err != nil {
		return nil, fmt.Errorf("bastion: resync user: %w", err)
	}

	if err := e.recordEvent(ctx, auditlog.Event{
		EventType: auditlog.EventRolesResynced,
		UserID:    userID,
		TenantID:  d.Tenant(),
		Details: map[string]any{
			"app_id": d.AppID,
			"roles":  names,
		},
	}); err != nil {
		return names, err
	}

	e.invalidateGrants(ctx, d, userID)
	if e.plugins != nil {
		e.plugins.EmitUserResynced(ctx, userID, d.Key(), names)
	}
	return names, nil
}
