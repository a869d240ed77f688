package bastion

import (
	"fmt"
	"strings"
)

// Domain is the (applicationID, tenantID) pair that scopes both role
// grouping and policy rules. A nil tenant means the domain is global to
// the application.
//
// The rule store flattens the pair into a single key so the tuple schema
// stays uniform; Key is the only serialization function and ParseDomainKey
// the only parser, so the separator never leaks into call sites.
type Domain struct {
	AppID    string
	TenantID *string
}

// NewDomain creates a tenant-scoped domain.
func NewDomain(appID, tenantID string) Domain {
	return Domain{AppID: appID, TenantID: &tenantID}
}

// NewGlobalDomain creates an application-global domain (no tenant).
func NewGlobalDomain(appID string) Domain {
	return Domain{AppID: appID}
}

// Global reports whether the domain has no tenant scope.
func (d Domain) Global() bool { return d.TenantID == nil }

// Tenant returns the tenant id, or the empty string for a global domain.
func (d Domain) Tenant() string {
	if d.TenantID == nil {
		return ""
	}
	return *d.TenantID
}

// GlobalDomain returns the application-global counterpart of d.
func (d Domain) GlobalDomain() Domain { return Domain{AppID: d.AppID} }

// Key returns the flattened "{appID}:{tenantID-or-empty}" domain key used
// by the rule store.
func (d Domain) Key() string {
	return d.AppID + ":" + d.Tenant()
}

// String implements fmt.Stringer.
func (d Domain) String() string { return d.Key() }

// Validate reports whether the domain is well formed. Colons inside the
// app or tenant id would corrupt the flattened key, so they are rejected
// here instead of at every call site.
func (d Domain) Validate() error {
	if d.AppID == "" {
		return fmt.Errorf("bastion: domain: app id is required")
	}
	if strings.Contains(d.AppID, ":") {
		return fmt.Errorf("bastion: domain: app id %q must not contain ':'", d.AppID)
	}
	if d.TenantID != nil && strings.Contains(*d.TenantID, ":") {
		return fmt.Errorf("bastion: domain: tenant id %q must not contain ':'", *d.TenantID)
	}
	return nil
}

// ParseDomainKey parses a flattened domain key back into a Domain.
// An empty tenant segment yields a global domain.
func ParseDomainKey(key string) (Domain, error) {
	i := strings.IndexByte(key, ':')
	if i <= 0 {
		return Domain{}, fmt.Errorf("bastion: parse domain key %q: want \"app:tenant\"", key)
	}
	app, tenant := key[:i], key[i+1:]
	if strings.Contains(tenant, ":") {
		return Domain{}, fmt.Errorf("bastion: parse domain key %q: too many segments", key)
	}
	if tenant == "" {
		return NewGlobalDomain(app), nil
	}
	return NewDomain(app, tenant), nil
}
