// Package assignment defines the Assignment entity, the audit-grade
// record of a user holding a role within an application and tenant.
package assignment

import (
	"errors"
	"time"

	"github.com/bastionhq/bastion/id"
)

// ErrNotFound is returned by stores when no assignment matches.
var ErrNotFound = errors.New("assignment: not found")

// Assignment binds a role to a user within an application and tenant.
// A nil TenantID marks a global assignment, distinct from any concrete
// tenant. The combination (user, role, app, tenant) is unique; repeated
// assignment of the same combination returns the existing record.
type Assignment struct {
	ID         id.AssignmentID `json:"id" db:"id"`
	UserID     string          `json:"user_id" db:"user_id"`
	RoleID     id.RoleID       `json:"role_id" db:"role_id"`
	AppID      string          `json:"app_id" db:"app_id"`
	TenantID   *string         `json:"tenant_id,omitempty" db:"tenant_id"`
	AssignedBy string          `json:"assigned_by,omitempty" db:"assigned_by"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// Global reports whether the assignment is global to its application.
func (a *Assignment) Global() bool { return a.TenantID == nil }

// TenantFilter is the three-valued tenant predicate used by assignment
// queries: match any tenant, match only global (nil-tenant) rows, or
// match exactly one concrete tenant. A concrete match does not implicitly
// include global rows.
type TenantFilter struct {
	set bool
	id  *string
}

// AnyTenant matches assignments in every tenant, global included.
func AnyTenant() TenantFilter { return TenantFilter{} }

// GlobalOnly matches only global (nil-tenant) assignments.
func GlobalOnly() TenantFilter { return TenantFilter{set: true} }

// Tenant matches only assignments scoped to exactly tenantID.
func Tenant(tenantID string) TenantFilter { return TenantFilter{set: true, id: &tenantID} }

// TenantPtr builds the filter from an optional tenant pointer: nil means
// global-only, non-nil means that exact tenant.
func TenantPtr(tenantID *string) TenantFilter {
	if tenantID == nil {
		return GlobalOnly()
	}
	return Tenant(*tenantID)
}

// Constrained reports whether the filter restricts the tenant column at all.
func (f TenantFilter) Constrained() bool { return f.set }

// Value returns the constrained tenant pointer; only meaningful when
// Constrained reports true.
func (f TenantFilter) Value() *string { return f.id }

// Matches applies the predicate to an assignment's tenant column.
func (f TenantFilter) Matches(tenantID *string) bool {
	if !f.set {
		return true
	}
	if f.id == nil {
		return tenantID == nil
	}
	return tenantID != nil && *tenantID == *f.id
}

// ListFilter contains filters for listing assignments.
type ListFilter struct {
	UserID string
	RoleID *id.RoleID
	AppID  string
	Tenant TenantFilter
	Limit  int
	Offset int
}
