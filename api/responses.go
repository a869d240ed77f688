package api

import (
	"time"

	"github.com/bastionhq/bastion/auditlog"
)

// CheckResponse is the response for an authorization check. Denials are
// indistinguishable from "no matching rule": callers get only the
// boolean, and denial reasons live in the audit trail.
type CheckResponse struct {
	Allowed bool `json:"allowed" description:"Whether the request is allowed"`
}

// ErrorBody is the stable error payload shape.
type ErrorBody struct {
	Code    string `json:"code" description:"Stable machine-readable error code"`
	Message string `json:"message,omitempty" description:"Human-readable detail"`
}

// ErrorEnvelope wraps an error payload.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// ListResponse wraps a list of items with pagination metadata.
type ListResponse[T any] struct {
	Items  []T   `json:"items" description:"List of items"`
	Total  int64 `json:"total" description:"Total count"`
	Limit  int   `json:"limit" description:"Page size"`
	Offset int   `json:"offset" description:"Page offset"`
}

// UserRolesResponse lists the role names a user holds.
type UserRolesResponse struct {
	UserID string   `json:"user_id" description:"User identifier"`
	Roles  []string `json:"roles" description:"Role names"`
}

// RoleUsersResponse lists the users holding a role.
type RoleUsersResponse struct {
	RoleID string   `json:"role_id" description:"Role ID"`
	Users  []string `json:"users" description:"User identifiers"`
}

// RemovedResponse reports how many records a bulk removal affected.
type RemovedResponse struct {
	Removed int64 `json:"removed" description:"Number of records removed"`
}

// AddedResponse reports whether a write created a new record.
type AddedResponse struct {
	Added bool `json:"added" description:"Whether a new record was created"`
}

// AuditMeta accompanies audit responses.
type AuditMeta struct {
	TenantID string `json:"tenantId" description:"Tenant chain the response is scoped to"`
}

// AuditLogListResponse is one page of a tenant's audit chain.
type AuditLogListResponse struct {
	Data       []*auditlog.Entry   `json:"data" description:"Audit entries in chain order"`
	Pagination auditlog.Pagination `json:"pagination" description:"Pagination envelope"`
	Meta       AuditMeta           `json:"meta"`
}

// AuditLogResponse is a single audit entry.
type AuditLogResponse struct {
	Data *auditlog.Entry `json:"data"`
	Meta AuditMeta       `json:"meta"`
}

// ExportDownload is the synchronous export shape.
type ExportDownload struct {
	DownloadURL string    `json:"downloadUrl" description:"Base64 data URL with the serialized export"`
	EventCount  int64     `json:"eventCount" description:"Number of exported entries"`
	ExpiresAt   time.Time `json:"expiresAt" description:"Link expiry"`
}

// ExportDownloadResponse wraps a synchronous export.
type ExportDownloadResponse struct {
	Data ExportDownload `json:"data"`
}

// ExportJobHandle is the asynchronous export shape.
type ExportJobHandle struct {
	JobID  string `json:"jobId" description:"Export job identifier"`
	Status string `json:"status" description:"Job status (pending)"`
}

// ExportJobResponse wraps an asynchronous export handoff.
type ExportJobResponse struct {
	Data ExportJobHandle `json:"data"`
}

// VerifyChainResponse reports the outcome of a hash-chain verification.
type VerifyChainResponse struct {
	Data *auditlog.VerificationResult `json:"data"`
	Meta AuditMeta                    `json:"meta"`
}
