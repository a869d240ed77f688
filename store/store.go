// Package store defines the persistence contract for the authorization
// engine. A Store combines the per-entity stores with lifecycle
// operations; backends live in the subpackages (memory, sqlite,
// postgres).
package store

import (
	"context"

	"github.com/bastionhq/bastion/assignment"
	"github.com/bastionhq/bastion/auditlog"
	"github.com/bastionhq/bastion/role"
	"github.com/bastionhq/bastion/rule"
)

// Store is the composite persistence interface the engine runs against.
type Store interface {
	rule.Store
	role.Store
	assignment.Store
	auditlog.Store

	// Migrate brings the backend schema up to date. In-memory backends
	// treat this as a no-op.
	Migrate(ctx context.Context) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
