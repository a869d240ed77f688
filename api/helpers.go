package api

import (
	"errors"
	"net/http"

	"github.com/xraph/forge"

	"github.com/bastionhq/bastion"
	"github.com/bastionhq/bastion/assignment"
)

// mapError maps domain errors to Forge HTTP errors. Storage failures
// deliberately lose their database detail here; callers get a stable
// message while the wrapped error stays available to server-side logs.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return forge.NotFound(err.Error())
	}
	if errors.Is(err, bastion.ErrScopeMismatch) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, bastion.ErrSystemRoleImmutable) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, bastion.ErrAccessDenied) {
		return forge.Forbidden(err.Error())
	}
	if errors.Is(err, bastion.ErrStorage) {
		return errors.New("storage backend unavailable")
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, bastion.ErrRoleNotFound) ||
		errors.Is(err, bastion.ErrAssignmentNotFound) ||
		errors.Is(err, bastion.ErrAuditEntryNotFound)
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

// reqDomain builds the scope from an app id plus an optional tenant id.
// An absent tenant id means the application-global scope, not a tenant
// whose id is the empty string.
func reqDomain(appID, tenantID string) (bastion.Domain, error) {
	d := bastion.NewGlobalDomain(appID)
	if tenantID != "" {
		d = bastion.NewDomain(appID, tenantID)
	}
	if err := d.Validate(); err != nil {
		return bastion.Domain{}, forge.BadRequest(err.Error())
	}
	return d, nil
}

// tenantFilter translates the three-valued tenant query surface:
// tenantId set selects that tenant, globalOnly selects application-global
// assignments, neither spans both.
func tenantFilter(tenantID string, globalOnly bool) assignment.TenantFilter {
	switch {
	case tenantID != "":
		return assignment.Tenant(tenantID)
	case globalOnly:
		return assignment.GlobalOnly()
	default:
		return assignment.AnyTenant()
	}
}

// serviceUnavailable writes the fixed 503 envelope used when the audit
// ledger collaborator is not configured for this deployment.
func serviceUnavailable(ctx forge.Context) error {
	return ctx.JSON(http.StatusServiceUnavailable, ErrorEnvelope{
		Error: ErrorBody{
			Code:    "serviceUnavailable",
			Message: "audit log service is not configured",
		},
	})
}

// auditNotFound writes the fixed 404 envelope for audit lookups,
// covering both missing and malformed event ids.
func auditNotFound(ctx forge.Context) error {
	return ctx.JSON(http.StatusNotFound, ErrorEnvelope{
		Error: ErrorBody{Code: "notFound", Message: "audit log entry not found"},
	})
}
