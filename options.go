package bastion

import (
	"log/slog"

	"github.com/bastionhq/bastion/auditlog"
	"github.com/bastionhq/bastion/plugin"
	"github.com/bastionhq/bastion/store"
)

// Option is a functional option for the Engine.
type Option func(*Engine)

// WithStore sets the composite store.
func WithStore(s store.Store) Option { return func(e *Engine) { e.store = s } }

// WithCache sets the check result cache.
func WithCache(c Cache) Option { return func(e *Engine) { e.cache = c } }

// WithAuditLedger sets the audit ledger. Without one, mutation events are
// not recorded and audit queries return ErrAuditUnavailable.
func WithAuditLedger(l *auditlog.Ledger) Option { return func(e *Engine) { e.audit = l } }

// WithRoleResolver overrides how roles are resolved at enforcement time.
func WithRoleResolver(r RoleResolver) Option { return func(e *Engine) { e.resolver = r } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithConfig sets the engine configuration.
func WithConfig(c Config) Option { return func(e *Engine) { e.config = c } }

// WithPlugin registers a plugin with the engine.
func WithPlugin(x plugin.Plugin) Option {
	return func(e *Engine) {
		if e.plugins == nil {
			e.plugins = plugin.NewRegistry(e.logger)
		}
		e.plugins.Register(x)
	}
}
