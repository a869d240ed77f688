package role

import (
	"context"

	"github.com/bastionhq/bastion/id"
)

// Store defines persistence operations for roles.
type Store interface {
	// CreateRole persists a new role. Role names are unique within their
	// (app_id, tenant_id) scope.
	CreateRole(ctx context.Context, r *Role) error

	// GetRole retrieves a role by ID.
	GetRole(ctx context.Context, roleID id.RoleID) (*Role, error)

	// GetRoleByName retrieves a role by name within an app and tenant
	// scope. A nil tenantID looks up the application-global role.
	GetRoleByName(ctx context.Context, appID string, tenantID *string, name string) (*Role, error)

	// UpdateRole persists changes to a role.
	UpdateRole(ctx context.Context, r *Role) error

	// DeleteRole removes a role by ID.
	DeleteRole(ctx context.Context, roleID id.RoleID) error

	// ListRoles returns roles matching the filter.
	ListRoles(ctx context.Context, filter *ListFilter) ([]*Role, error)

	// CountRoles returns the number of roles matching the filter.
	CountRoles(ctx context.Context, filter *ListFilter) (int64, error)
}
