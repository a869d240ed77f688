package bastion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bastionhq/bastion/assignment"
	"github.com/bastionhq/bastion/id"
	"github.com/bastionhq/bastion/role"
)

// CreateRoleInput carries the caller-supplied fields for a new role.
type CreateRoleInput struct {
	Name        string
	Description string
	IsSystem    bool
}

// CreateRole creates a role within a domain. Role names are unique per
// (application, tenant) scope; creating a duplicate name fails.
func (e *Engine) CreateRole(ctx context.Context, d Domain, in CreateRoleInput) (*role.Role, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, fmt.Errorf("bastion: create role: name is required")
	}

	if _, err := e.store.GetRoleByName(ctx, d.AppID, d.TenantID, in.Name); err == nil {
		return nil, fmt.Errorf("bastion: create role: name %q already exists in %s", in.Name, d.Key())
	} else if !errors.Is(err, role.ErrNotFound) {
		return nil, fmt.Errorf("bastion: create role: %w", err)
	}

	now := time.Now().UTC()
	r := &role.Role{
		ID:          id.NewRoleID(),
		Name:        in.Name,
		Description: in.Description,
		AppID:       d.AppID,
		TenantID:    d.TenantID,
		IsSystem:    in.IsSystem,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.CreateRole(ctx, r); err != nil {
		return nil, fmt.Errorf("bastion: create role: %w", err)
	}
	if e.plugins != nil {
		e.plugins.EmitRoleCreated(ctx, r)
	}
	return r, nil
}

// GetRole retrieves a role by id.
func (e *Engine) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	r, err := e.store.GetRole(ctx, roleID)
	if err != nil {
		if errors.Is(err, role.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, roleID)
		}
		return nil, fmt.Errorf("bastion: get role: %w", err)
	}
	return r, nil
}

// GetRoleByName retrieves a role by name within a domain's exact scope;
// a global domain looks up the application-global role.
func (e *Engine) GetRoleByName(ctx context.Context, d Domain, name string) (*role.Role, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	r, err := e.store.GetRoleByName(ctx, d.AppID, d.TenantID, name)
	if err != nil {
		if errors.Is(err, role.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q in %s", ErrRoleNotFound, name, d.Key())
		}
		return nil, fmt.Errorf("bastion: get role by name: %w", err)
	}
	return r, nil
}

// UpdateRole updates a role's name and description. System roles are
// immutable.
func (e *Engine) UpdateRole(ctx context.Context, roleID id.RoleID, name, description string) (*role.Role, error) {
	r, err := e.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if r.IsSystem {
		return nil, fmt.Errorf("%w: %s", ErrSystemRoleImmutable, r.Name)
	}

	if name != "" {
		r.Name = name
	}
	if description != "" {
		r.Description = description
	}
	r.UpdatedAt = time.Now().UTC()

	if err := e.store.UpdateRole(ctx, r); err != nil {
		return nil, fmt.Errorf("bastion: update role: %w", err)
	}
	if e.plugins != nil {
		e.plugins.EmitRoleUpdated(ctx, r)
	}
	return r, nil
}

// DeleteRole removes a role. System roles cannot be deleted, and a role
// still held by any user must be released first.
func (e *Engine) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	r, err := e.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if r.IsSystem {
		return fmt.Errorf("%w: %s", ErrSystemRoleImmutable, r.Name)
	}

	count, err := e.store.CountAssignments(ctx, &assignment.ListFilter{
		RoleID: &roleID,
		AppID:  r.AppID,
	})
	if err != nil {
		return fmt.Errorf("bastion: delete role: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("bastion: delete role: %s is still assigned to %d user(s)", r.Name, count)
	}

	if err := e.store.DeleteRole(ctx, roleID); err != nil {
		return fmt.Errorf("bastion: delete role: %w", err)
	}
	if e.plugins != nil {
		e.plugins.EmitRoleDeleted(ctx, roleID)
	}
	return nil
}

// ListRoles returns roles matching the filter.
func (e *Engine) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	list, err := e.store.ListRoles(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("bastion: list roles: %w", err)
	}
	return list, nil
}
