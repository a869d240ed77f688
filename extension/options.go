package extension

import (
	"log/slog"

	"github.com/bastionhq/bastion"
	"github.com/bastionhq/bastion/auditlog"
	"github.com/bastionhq/bastion/plugin"
	"github.com/bastionhq/bastion/store"
)

// ExtOption configures the Bastion Forge extension.
type ExtOption func(*Extension)

// WithStore sets the persistence backend.
func WithStore(s store.Store) ExtOption {
	return func(e *Extension) {
		e.bastionOpts = append(e.bastionOpts, bastion.WithStore(s))
	}
}

// WithConfig sets the extension configuration.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithLogger sets the structured logger used by the engine.
func WithLogger(l *slog.Logger) ExtOption {
	return func(e *Extension) {
		e.logger = l
	}
}

// WithEngineOptions adds engine-level options.
func WithEngineOptions(opts ...bastion.Option) ExtOption {
	return func(e *Extension) {
		e.bastionOpts = append(e.bastionOpts, opts...)
	}
}

// WithPlugin registers a plugin with the engine.
func WithPlugin(p plugin.Plugin) ExtOption {
	return func(e *Extension) {
		e.plugins = append(e.plugins, p)
	}
}

// WithJobDispatcher sets the background worker large audit exports are
// handed to. Without one, exports past the size threshold fail.
func WithJobDispatcher(d auditlog.JobDispatcher) ExtOption {
	return func(e *Extension) {
		e.dispatcher = d
	}
}
