package api

import (
	"github.com/bastionhq/bastion"
)

// ──────────────────────────────────────────────────
// Check requests
// ──────────────────────────────────────────────────

// CheckRequest is the request body for an authorization check.
type CheckRequest struct {
	Subject  string               `json:"subject" description:"Subject identifier (e.g. user id)"`
	AppID    string               `json:"app_id" description:"Application scope"`
	TenantID string               `json:"tenant_id,omitempty" description:"Tenant scope (empty for application-global)"`
	Resource string               `json:"resource" description:"Resource type"`
	Action   string               `json:"action" description:"Action name"`
	Context  *bastion.EvalContext `json:"context,omitempty" description:"Runtime facts for conditional rules"`
}

// ──────────────────────────────────────────────────
// Role requests
// ──────────────────────────────────────────────────

// CreateRoleRequest is the body for creating a role.
type CreateRoleRequest struct {
	AppID       string `json:"app_id" description:"Application scope"`
	TenantID    string `json:"tenant_id,omitempty" description:"Tenant scope (empty for application-global)"`
	Name        string `json:"name" description:"Role name, unique within its scope"`
	Description string `json:"description,omitempty" description:"Human-readable description"`
	IsSystem    bool   `json:"is_system,omitempty" description:"System role flag (immutable once set)"`
}

// UpdateRoleRequest is the body for updating a role.
type UpdateRoleRequest struct {
	Name        string `json:"name,omitempty" description:"Role name"`
	Description string `json:"description,omitempty" description:"Human-readable description"`
}

// GetRoleRequest is the path parameter for getting a role.
type GetRoleRequest struct {
	RoleID string `path:"roleId" description:"Role ID"`
}

// ListRolesRequest holds query parameters for listing roles.
type ListRolesRequest struct {
	AppID    string `query:"appId" description:"Application scope"`
	TenantID string `query:"tenantId" description:"Exact tenant scope (omit for all scopes)"`
	Search   string `query:"search" description:"Search by name"`
	Limit    int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset   int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Assignment requests
// ──────────────────────────────────────────────────

// AssignRoleRequest is the body for granting a role to a user.
type AssignRoleRequest struct {
	UserID     string `path:"userId" description:"User identifier"`
	RoleID     string `json:"role_id" description:"Role ID to assign"`
	AppID      string `json:"app_id" description:"Application scope"`
	TenantID   string `json:"tenant_id,omitempty" description:"Tenant scope (empty for application-global)"`
	AssignedBy string `json:"assigned_by,omitempty" description:"Actor performing the grant"`
}

// RemoveRoleRequest identifies an assignment to revoke.
type RemoveRoleRequest struct {
	UserID   string `path:"userId" description:"User identifier"`
	RoleID   string `path:"roleId" description:"Role ID to revoke"`
	AppID    string `query:"appId" description:"Application scope"`
	TenantID string `query:"tenantId" description:"Tenant scope (empty for application-global)"`
	ActorID  string `query:"actorId" description:"Actor performing the revocation"`
}

// ListUserRolesRequest holds the tenant-scoping query surface for a
// user's assignments. Omitting both tenantId and globalOnly spans all
// scopes; they are mutually exclusive otherwise.
type ListUserRolesRequest struct {
	UserID     string `path:"userId" description:"User identifier"`
	AppID      string `query:"appId" description:"Application scope"`
	TenantID   string `query:"tenantId" description:"Exact tenant scope"`
	GlobalOnly bool   `query:"globalOnly" description:"Only application-global assignments"`
}

// ListRoleUsersRequest holds query parameters for listing a role's holders.
type ListRoleUsersRequest struct {
	RoleID     string `path:"roleId" description:"Role ID"`
	AppID      string `query:"appId" description:"Application scope"`
	TenantID   string `query:"tenantId" description:"Exact tenant scope"`
	GlobalOnly bool   `query:"globalOnly" description:"Only application-global assignments"`
}

// RemoveAllUserRolesRequest identifies the assignments to strip from a user.
type RemoveAllUserRolesRequest struct {
	UserID     string `path:"userId" description:"User identifier"`
	AppID      string `query:"appId" description:"Application scope"`
	TenantID   string `query:"tenantId" description:"Exact tenant scope"`
	GlobalOnly bool   `query:"globalOnly" description:"Only application-global assignments"`
	ActorID    string `query:"actorId" description:"Actor performing the removal"`
}

// ResyncUserRequest is the body for re-deriving a user's grouping rules
// from the assignment database.
type ResyncUserRequest struct {
	UserID   string `path:"userId" description:"User identifier"`
	AppID    string `json:"app_id" description:"Application scope"`
	TenantID string `json:"tenant_id,omitempty" description:"Tenant scope (empty for application-global)"`
}

// ──────────────────────────────────────────────────
// Policy requests
// ──────────────────────────────────────────────────

// AddPolicyRequest is the body for adding a policy rule.
type AddPolicyRequest struct {
	Role      string `json:"role" description:"Role name the rule applies to"`
	AppID     string `json:"app_id" description:"Application scope"`
	TenantID  string `json:"tenant_id,omitempty" description:"Tenant scope (empty for application-global)"`
	Resource  string `json:"resource" description:"Resource type"`
	Action    string `json:"action" description:"Action name"`
	Effect    string `json:"effect,omitempty" description:"allow or deny (default: allow)"`
	Condition string `json:"condition,omitempty" description:"Optional condition: owner or shared"`
}

// RemovePolicyRequest is the body for removing matching policy rules.
type RemovePolicyRequest struct {
	Role     string `json:"role" description:"Role name the rule applies to"`
	AppID    string `json:"app_id" description:"Application scope"`
	TenantID string `json:"tenant_id,omitempty" description:"Tenant scope (empty for application-global)"`
	Resource string `json:"resource" description:"Resource type"`
	Action   string `json:"action" description:"Action name"`
}

// ListPoliciesRequest holds query parameters for listing policy rules.
type ListPoliciesRequest struct {
	AppID    string `query:"appId" description:"Application scope"`
	TenantID string `query:"tenantId" description:"Tenant scope (empty for application-global)"`
}

// FilterPoliciesRequest selects policy rules by one tuple field.
type FilterPoliciesRequest struct {
	FieldIndex int      `json:"field_index" description:"Tuple field to match (0 = role, 1 = domain, 2 = resource, 3 = action)"`
	Values     []string `json:"values" description:"Values required from field_index onward (empty string matches any)"`
}

// ──────────────────────────────────────────────────
// Audit requests
// ──────────────────────────────────────────────────

// ListAuditLogsRequest holds the audit query surface for one tenant chain.
type ListAuditLogsRequest struct {
	TenantID        string `path:"tenantId" description:"Tenant chain to query"`
	EventType       string `query:"eventType" description:"Filter by event type"`
	ActorID         string `query:"actorId" description:"Filter by acting principal"`
	ResourceType    string `query:"resourceType" description:"Filter by resource"`
	IPAddress       string `query:"ipAddress" description:"Filter by actor IP"`
	TimestampAfter  string `query:"timestampAfter" description:"Inclusive RFC 3339 lower bound"`
	TimestampBefore string `query:"timestampBefore" description:"Inclusive RFC 3339 upper bound"`
	Page            int    `query:"page" description:"1-based page number"`
	PageSize        int    `query:"pageSize" description:"Page size (default: 50)"`
}

// GetAuditLogRequest identifies one audit entry by its external id.
type GetAuditLogRequest struct {
	TenantID string `path:"tenantId" description:"Tenant chain"`
	EventID  string `path:"eventId" description:"External event id (evt_{n})"`
}

// ExportAuditLogsRequest is the body for requesting an audit export.
type ExportAuditLogsRequest struct {
	TenantID        string `path:"tenantId" description:"Tenant chain to export"`
	Format          string `json:"format" description:"json or csv"`
	EventType       string `json:"eventType,omitempty" description:"Filter by event type"`
	TimestampAfter  string `json:"timestampAfter,omitempty" description:"Inclusive RFC 3339 lower bound"`
	TimestampBefore string `json:"timestampBefore,omitempty" description:"Inclusive RFC 3339 upper bound"`
}

// VerifyAuditChainRequest identifies the tenant chain to verify.
type VerifyAuditChainRequest struct {
	TenantID string `path:"tenantId" description:"Tenant chain to verify"`
}
