// Package api provides HTTP handlers for the Bastion authorization engine.
package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/bastionhq/bastion"
	"github.com/bastionhq/bastion/auditlog"
)

// API wires all Bastion HTTP handlers together.
type API struct {
	eng      *bastion.Engine
	router   forge.Router
	exporter *auditlog.Exporter
}

// Option customizes the API.
type Option func(*API)

// WithExporter supplies a pre-configured audit exporter. Without it the
// API builds one over the engine's ledger with default settings, which
// means large exports fail until a dispatcher is attached.
func WithExporter(x *auditlog.Exporter) Option {
	return func(a *API) { a.exporter = x }
}

// New creates an API from an Engine and a Forge router.
func New(eng *bastion.Engine, router forge.Router, opts ...Option) *API {
	a := &API{eng: eng, router: router}
	for _, opt := range opts {
		opt(a)
	}
	if a.exporter == nil && eng.Audit() != nil {
		a.exporter = auditlog.NewExporter(eng.Audit())
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	if a.router == nil {
		a.router = forge.NewRouter()
	}
	if err := a.RegisterRoutes(a.router); err != nil {
		panic("bastion: register routes: " + err.Error())
	}
	return a.router.Handler()
}

// RegisterRoutes registers all API routes into the given Forge router.
func (a *API) RegisterRoutes(router forge.Router) error {
	registerers := []func(forge.Router) error{
		a.registerCheckRoutes,
		a.registerRoleRoutes,
		a.registerAssignmentRoutes,
		a.registerPolicyRoutes,
		a.registerAuditRoutes,
	}
	for _, fn := range registerers {
		if err := fn(router); err != nil {
			return err
		}
	}
	return nil
}
