package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Bastion store (PostgreSQL).
var Migrations = migrate.NewGroup("bastion")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_rules",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bastion_rules (
    id      TEXT PRIMARY KEY,
    ptype   TEXT NOT NULL,
    v0      TEXT NOT NULL DEFAULT '',
    v1      TEXT NOT NULL DEFAULT '',
    v2      TEXT NOT NULL DEFAULT '',
    v3      TEXT NOT NULL DEFAULT '',
    v4      TEXT NOT NULL DEFAULT '',
    v5      TEXT NOT NULL DEFAULT '',
    v6      TEXT NOT NULL DEFAULT '',

    UNIQUE(ptype, v0, v1, v2, v3, v4, v5, v6)
);

CREATE INDEX IF NOT EXISTS idx_bastion_rules_policy ON bastion_rules (ptype, v1);
CREATE INDEX IF NOT EXISTS idx_bastion_rules_grouping ON bastion_rules (ptype, v0, v2);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_rules`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_roles",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bastion_roles (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    app_id          TEXT NOT NULL,
    tenant_id       TEXT,
    is_system       BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_bastion_roles_name
    ON bastion_roles (app_id, tenant_id, name) WHERE tenant_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_bastion_roles_name_global
    ON bastion_roles (app_id, name) WHERE tenant_id IS NULL;
CREATE INDEX IF NOT EXISTS idx_bastion_roles_tenant ON bastion_roles (app_id, tenant_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_roles`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_assignments",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bastion_assignments (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    role_id         TEXT NOT NULL REFERENCES bastion_roles(id) ON DELETE CASCADE,
    app_id          TEXT NOT NULL,
    tenant_id       TEXT,
    assigned_by     TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_bastion_assign_unique
    ON bastion_assignments (user_id, role_id, app_id, tenant_id) WHERE tenant_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_bastion_assign_unique_global
    ON bastion_assignments (user_id, role_id, app_id) WHERE tenant_id IS NULL;
CREATE INDEX IF NOT EXISTS idx_bastion_assign_user ON bastion_assignments (app_id, user_id);
CREATE INDEX IF NOT EXISTS idx_bastion_assign_role ON bastion_assignments (role_id);
CREATE INDEX IF NOT EXISTS idx_bastion_assign_tenant ON bastion_assignments (app_id, tenant_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_assignments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_audit_entries",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bastion_audit_entries (
    tenant_id        TEXT NOT NULL,
    seq              BIGINT NOT NULL,
    timestamp        TIMESTAMPTZ NOT NULL,
    event_type       TEXT NOT NULL,
    user_id          TEXT NOT NULL DEFAULT '',
    resource         TEXT NOT NULL DEFAULT '',
    action           TEXT NOT NULL DEFAULT '',
    actor_id         TEXT NOT NULL,
    actor_ip         TEXT NOT NULL DEFAULT '',
    actor_user_agent TEXT NOT NULL DEFAULT '',
    details          JSONB NOT NULL DEFAULT '{}',
    previous_hash    TEXT NOT NULL DEFAULT '',
    record_hash      TEXT NOT NULL,

    PRIMARY KEY (tenant_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_bastion_audit_ts ON bastion_audit_entries (tenant_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_bastion_audit_type ON bastion_audit_entries (tenant_id, event_type);
CREATE INDEX IF NOT EXISTS idx_bastion_audit_actor ON bastion_audit_entries (tenant_id, actor_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_audit_entries`)
				return err
			},
		},
	)
}
