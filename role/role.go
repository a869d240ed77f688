// Package role defines the Role entity and its store interface.
package role

import (
	"errors"
	"time"

	"github.com/bastionhq/bastion/id"
)

// ErrNotFound is returned by stores when no role matches.
var ErrNotFound = errors.New("role: not found")

// Role is a named permission bundle scoped to an application and,
// optionally, a tenant. A nil TenantID marks a global role assignable in
// any tenant of the application.
type Role struct {
	ID          id.RoleID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	AppID       string    `json:"app_id" db:"app_id"`
	TenantID    *string   `json:"tenant_id,omitempty" db:"tenant_id"`
	IsSystem    bool      `json:"is_system" db:"is_system"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Global reports whether the role is global to its application.
func (r *Role) Global() bool { return r.TenantID == nil }

// ListFilter contains filters for listing roles.
type ListFilter struct {
	AppID    string  `json:"app_id,omitempty"`
	TenantID *string `json:"tenant_id,omitempty"`
	IsSystem *bool   `json:"is_system,omitempty"`
	Search   string  `json:"search,omitempty"`
	Limit    int     `json:"limit,omitempty"`
	Offset   int     `json:"offset,omitempty"`
}
