package bastion

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/bastionhq/bastion/assignment"
	"github.com/bastionhq/bastion/role"
	"github.com/bastionhq/bastion/rule"
)

// RoleResolver resolves the role names a user holds within a domain.
// Tenant-scoped domains include the application-global roles; a global
// domain resolves global roles only.
//
// Two strategies exist. The default reads assignment records directly, so
// the database is the sole source of truth and drift cannot occur. When
// Config.ProjectGroupings is set, resolution reads the projected grouping
// rules instead, trading an extra projection discipline (and ResyncUser
// repairs) for rule-store-local enforcement.
type RoleResolver interface {
	RolesForUser(ctx context.Context, userID string, d Domain) ([]string, error)
}

// assignmentResolver resolves roles from assignment rows, joining against
// the role store for names.
type assignmentResolver struct {
	assignments assignment.Store
	roles       role.Store
}

func (r *assignmentResolver) RolesForUser(ctx context.Context, userID string, d Domain) ([]string, error) {
	filters := []assignment.TenantFilter{assignment.GlobalOnly()}
	if !d.Global() {
		filters = append(filters, assignment.Tenant(d.Tenant()))
	}

	seen := make(map[string]struct{})
	var names []string
	for _, tf := range filters {
		list, err := r.assignments.ListAssignments(ctx, &assignment.ListFilter{
			UserID: userID,
			AppID:  d.AppID,
			Tenant: tf,
		})
		if err != nil {
			return nil, fmt.Errorf("list assignments: %w", err)
		}
		for _, a := range list {
			rl, err := r.roles.GetRole(ctx, a.RoleID)
			if err != nil {
				// A dangling assignment must not fail enforcement for the
				// user's remaining roles.
				if errors.Is(err, role.ErrNotFound) {
					continue
				}
				return nil, fmt.Errorf("resolve role %s: %w", a.RoleID, err)
			}
			if _, ok := seen[rl.Name]; ok {
				continue
			}
			seen[rl.Name] = struct{}{}
			names = append(names, rl.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// groupingResolver resolves roles from projected grouping rules in the
// rule store. Tenant-scoped grouping rules are matched first but both
// scopes contribute.
type groupingResolver struct {
	rules rule.Store
}

func (r *groupingResolver) RolesForUser(ctx context.Context, userID string, d Domain) ([]string, error) {
	keys := []string{d.Key()}
	if !d.Global() {
		keys = append(keys, d.GlobalDomain().Key())
	}

	seen := make(map[string]struct{})
	var names []string
	for _, key := range keys {
		list, err := r.rules.ListRules(ctx, &rule.Filter{
			PType: rule.TypeGrouping,
			V0:    rule.FieldValue(userID),
			V2:    rule.FieldValue(key),
		})
		if err != nil {
			return nil, fmt.Errorf("list grouping rules: %w", err)
		}
		for _, g := range list {
			if _, ok := seen[g.V1]; ok {
				continue
			}
			seen[g.V1] = struct{}{}
			names = append(names, g.V1)
		}
	}
	sort.Strings(names)
	return names, nil
}
