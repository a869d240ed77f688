package assignment

import (
	"context"

	"github.com/bastionhq/bastion/id"
)

// Store defines persistence operations for role assignments.
type Store interface {
	// CreateAssignment persists a new assignment. The store enforces the
	// unique (user_id, role_id, app_id, tenant_id) composite.
	CreateAssignment(ctx context.Context, a *Assignment) error

	// GetAssignment retrieves an assignment by ID.
	GetAssignment(ctx context.Context, assID id.AssignmentID) (*Assignment, error)

	// FindAssignment retrieves the assignment matching the full unique
	// combination, with explicit nil-vs-value tenant handling.
	FindAssignment(ctx context.Context, userID string, roleID id.RoleID, appID string, tenantID *string) (*Assignment, error)

	// DeleteAssignment removes an assignment by ID. Reports whether a row
	// was deleted.
	DeleteAssignment(ctx context.Context, assID id.AssignmentID) (bool, error)

	// ListAssignments returns assignments matching the filter.
	ListAssignments(ctx context.Context, filter *ListFilter) ([]*Assignment, error)

	// CountAssignments returns the number of assignments matching the filter.
	CountAssignments(ctx context.Context, filter *ListFilter) (int64, error)
}
