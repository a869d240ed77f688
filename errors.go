package bastion

import (
	"errors"

	"github.com/bastionhq/bastion/auditlog"
)

var (
	// ErrAccessDenied is returned when an authorization check fails.
	ErrAccessDenied = errors.New("bastion: access denied")

	// ErrRoleNotFound is returned when a role cannot be found.
	ErrRoleNotFound = errors.New("bastion: role not found")

	// ErrAssignmentNotFound is returned when a role assignment cannot be found.
	ErrAssignmentNotFound = errors.New("bastion: assignment not found")

	// ErrAuditEntryNotFound is returned when an audit log entry cannot be
	// found, including for malformed external event ids. It is the
	// auditlog sentinel re-exported at the module root.
	ErrAuditEntryNotFound = auditlog.ErrNotFound

	// ErrScopeMismatch is returned when a role, application, and tenant do
	// not align (caller bug; never retried).
	ErrScopeMismatch = errors.New("bastion: role scope mismatch")

	// ErrStorage wraps database-level failures. Reads may be retried;
	// writes only where the operation is itself idempotent.
	ErrStorage = errors.New("bastion: storage error")

	// ErrChainIntegrity marks an audit hash-chain violation. It is never
	// auto-recovered and is surfaced distinctly from ErrStorage so
	// operators can tell "tampered" from "unavailable". It is the
	// auditlog sentinel re-exported at the module root.
	ErrChainIntegrity = auditlog.ErrChainIntegrity

	// ErrAuditUnavailable is returned when the audit ledger collaborator
	// was not configured for this deployment.
	ErrAuditUnavailable = errors.New("bastion: audit ledger not configured")

	// ErrSystemRoleImmutable is returned when trying to modify or delete a
	// system role.
	ErrSystemRoleImmutable = errors.New("bastion: system role cannot be modified")
)
