// Package sqlite provides a SQLite implementation of the Bastion
// composite store using grove ORM with Go-based migrations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate"
	"github.com/xraph/grove/migrate"

	"github.com/bastionhq/bastion"
	"github.com/bastionhq/bastion/assignment"
	"github.com/bastionhq/bastion/auditlog"
	"github.com/bastionhq/bastion/id"
	"github.com/bastionhq/bastion/role"
	"github.com/bastionhq/bastion/rule"
	"github.com/bastionhq/bastion/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a SQLite implementation of the composite Bastion store.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("bastion/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// storageErr tags a backend failure with bastion.ErrStorage so callers
// can recognize infrastructure errors without inspecting driver text.
func storageErr(op string, err error) error {
	return fmt.Errorf("bastion/sqlite: %s: %w: %w", op, bastion.ErrStorage, err)
}

// ruleColumns maps Filter field indexes to column names.
var ruleColumns = [7]string{"v0", "v1", "v2", "v3", "v4", "v5", "v6"}

// ──────────────────────────────────────────────────
// Rule operations
// ──────────────────────────────────────────────────

func (s *Store) AddRule(ctx context.Context, r *rule.Rule) (bool, error) {
	m := ruleToModel(r)
	res, err := s.sdb.NewInsert(m).
		OnConflict("(ptype, v0, v1, v2, v3, v4, v5, v6) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, storageErr("add rule", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("add rule rows", err)
	}
	return n > 0, nil
}

func (s *Store) RemoveRules(ctx context.Context, f *rule.Filter) (int64, error) {
	q := s.sdb.NewDelete((*ruleModel)(nil))
	if f.PType != "" {
		q = q.Where("ptype = ?", string(f.PType))
	}
	for i, want := range f.Fields() {
		if want != nil {
			q = q.Where(ruleColumns[i]+" = ?", *want)
		}
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, storageErr("remove rules", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("remove rules rows", err)
	}
	return n, nil
}

func (s *Store) ListRules(ctx context.Context, f *rule.Filter) ([]*rule.Rule, error) {
	var models []ruleModel
	// Rule ids are UUIDv7-suffixed, so id order is insertion order.
	q := s.sdb.NewSelect(&models).OrderExpr("id ASC")
	if f != nil {
		if f.PType != "" {
			q = q.Where("ptype = ?", string(f.PType))
		}
		for i, want := range f.Fields() {
			if want != nil {
				q = q.Where(ruleColumns[i]+" = ?", *want)
			}
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, storageErr("list rules", err)
	}
	result := make([]*rule.Rule, len(models))
	for i := range models {
		result[i] = ruleFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ReplaceGroupingRules(ctx context.Context, user, domain string, roles []string) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return storageErr("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	_, err = tx.NewDelete((*ruleModel)(nil)).
		Where("ptype = ?", string(rule.TypeGrouping)).
		Where("v0 = ?", user).
		Where("v2 = ?", domain).
		Exec(ctx)
	if err != nil {
		return storageErr("clear grouping rules", err)
	}

	if len(roles) > 0 {
		models := make([]ruleModel, len(roles))
		for i, roleName := range roles {
			models[i] = *ruleToModel(rule.Grouping(user, roleName, domain))
		}
		if _, err := tx.NewInsert(&models).Exec(ctx); err != nil {
			return storageErr("replace grouping rules", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit tx", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Role operations
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(ctx context.Context, r *role.Role) error {
	m := roleToModel(r)
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return storageErr("create role", err)
	}
	return nil
}

func (s *Store) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	m := new(roleModel)
	err := s.sdb.NewSelect(m).Where("id = ?", roleID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("role %s: %w", roleID, role.ErrNotFound)
		}
		return nil, storageErr("get role", err)
	}
	return roleFromModel(m)
}

func (s *Store) GetRoleByName(ctx context.Context, appID string, tenantID *string, name string) (*role.Role, error) {
	m := new(roleModel)
	q := s.sdb.NewSelect(m).
		Where("app_id = ?", appID).
		Where("name = ?", name)
	if tenantID == nil {
		q = q.Where("tenant_id IS NULL")
	} else {
		q = q.Where("tenant_id = ?", *tenantID)
	}
	if err := q.Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("role %q: %w", name, role.ErrNotFound)
		}
		return nil, storageErr("get role by name", err)
	}
	return roleFromModel(m)
}

func (s *Store) UpdateRole(ctx context.Context, r *role.Role) error {
	m := roleToModel(r)
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return storageErr("update role", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("update role rows", err)
	}
	if n == 0 {
		return fmt.Errorf("role %s: %w", r.ID, role.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	_, err := s.sdb.NewDelete((*roleModel)(nil)).
		Where("id = ?", roleID.String()).Exec(ctx)
	if err != nil {
		return storageErr("delete role", err)
	}
	return nil
}

func (s *Store) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	var models []roleModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at ASC")
	if filter != nil {
		if filter.AppID != "" {
			q = q.Where("app_id = ?", filter.AppID)
		}
		if filter.TenantID != nil {
			q = q.Where("tenant_id = ?", *filter.TenantID)
		}
		if filter.IsSystem != nil {
			q = q.Where("is_system = ?", *filter.IsSystem)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, storageErr("list roles", err)
	}
	result := make([]*role.Role, len(models))
	for i := range models {
		r, err := roleFromModel(&models[i])
		if err != nil {
			return nil, storageErr("list roles", err)
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	q := s.sdb.NewSelect((*roleModel)(nil))
	if filter != nil {
		if filter.AppID != "" {
			q = q.Where("app_id = ?", filter.AppID)
		}
		if filter.TenantID != nil {
			q = q.Where("tenant_id = ?", *filter.TenantID)
		}
		if filter.IsSystem != nil {
			q = q.Where("is_system = ?", *filter.IsSystem)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, storageErr("count roles", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Assignment operations
// ──────────────────────────────────────────────────

func (s *Store) CreateAssignment(ctx context.Context, a *assignment.Assignment) error {
	m := assignmentToModel(a)
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return storageErr("create assignment", err)
	}
	return nil
}

func (s *Store) GetAssignment(ctx context.Context, assID id.AssignmentID) (*assignment.Assignment, error) {
	m := new(assignmentModel)
	err := s.sdb.NewSelect(m).Where("id = ?", assID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("assignment %s: %w", assID, assignment.ErrNotFound)
		}
		return nil, storageErr("get assignment", err)
	}
	return assignmentFromModel(m)
}

func (s *Store) FindAssignment(ctx context.Context, userID string, roleID id.RoleID, appID string, tenantID *string) (*assignment.Assignment, error) {
	m := new(assignmentModel)
	q := s.sdb.NewSelect(m).
		Where("user_id = ?", userID).
		Where("role_id = ?", roleID.String()).
		Where("app_id = ?", appID)
	if tenantID == nil {
		q = q.Where("tenant_id IS NULL")
	} else {
		q = q.Where("tenant_id = ?", *tenantID)
	}
	if err := q.Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("assignment for user %s: %w", userID, assignment.ErrNotFound)
		}
		return nil, storageErr("find assignment", err)
	}
	return assignmentFromModel(m)
}

func (s *Store) DeleteAssignment(ctx context.Context, assID id.AssignmentID) (bool, error) {
	res, err := s.sdb.NewDelete((*assignmentModel)(nil)).
		Where("id = ?", assID.String()).Exec(ctx)
	if err != nil {
		return false, storageErr("delete assignment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("delete assignment rows", err)
	}
	return n > 0, nil
}

func (s *Store) ListAssignments(ctx context.Context, filter *assignment.ListFilter) ([]*assignment.Assignment, error) {
	var models []assignmentModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at ASC")
	if filter != nil {
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.RoleID != nil {
			q = q.Where("role_id = ?", filter.RoleID.String())
		}
		if filter.AppID != "" {
			q = q.Where("app_id = ?", filter.AppID)
		}
		if filter.Tenant.Constrained() {
			if v := filter.Tenant.Value(); v == nil {
				q = q.Where("tenant_id IS NULL")
			} else {
				q = q.Where("tenant_id = ?", *v)
			}
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, storageErr("list assignments", err)
	}
	result := make([]*assignment.Assignment, len(models))
	for i := range models {
		a, err := assignmentFromModel(&models[i])
		if err != nil {
			return nil, storageErr("list assignments", err)
		}
		result[i] = a
	}
	return result, nil
}

func (s *Store) CountAssignments(ctx context.Context, filter *assignment.ListFilter) (int64, error) {
	q := s.sdb.NewSelect((*assignmentModel)(nil))
	if filter != nil {
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.RoleID != nil {
			q = q.Where("role_id = ?", filter.RoleID.String())
		}
		if filter.AppID != "" {
			q = q.Where("app_id = ?", filter.AppID)
		}
		if filter.Tenant.Constrained() {
			if v := filter.Tenant.Value(); v == nil {
				q = q.Where("tenant_id IS NULL")
			} else {
				q = q.Where("tenant_id = ?", *v)
			}
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, storageErr("count assignments", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Audit entry operations
// ──────────────────────────────────────────────────

func (s *Store) AppendEntry(ctx context.Context, e *auditlog.Entry) error {
	m, err := auditEntryToModel(e)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: encode audit entry: %w", err)
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return storageErr("append audit entry", err)
	}
	return nil
}

func (s *Store) LatestEntry(ctx context.Context, tenantID string) (*auditlog.Entry, error) {
	m := new(auditEntryModel)
	err := s.sdb.NewSelect(m).
		Where("tenant_id = ?", tenantID).
		OrderExpr("seq DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, storageErr("latest audit entry", err)
	}
	return auditEntryFromModel(m)
}

func (s *Store) GetEntryBySeq(ctx context.Context, tenantID string, seq int64) (*auditlog.Entry, error) {
	m := new(auditEntryModel)
	err := s.sdb.NewSelect(m).
		Where("tenant_id = ?", tenantID).
		Where("seq = ?", seq).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, storageErr("get audit entry", err)
	}
	return auditEntryFromModel(m)
}

func (s *Store) ListEntries(ctx context.Context, filter *auditlog.QueryFilter) ([]*auditlog.Entry, error) {
	var models []auditEntryModel
	q := s.sdb.NewSelect(&models).
		Where("tenant_id = ?", filter.TenantID).
		OrderExpr("seq ASC")
	if filter.EventType != "" {
		q = q.Where("event_type = ?", filter.EventType)
	}
	if filter.ActorID != "" {
		q = q.Where("actor_id = ?", filter.ActorID)
	}
	if filter.Resource != "" {
		q = q.Where("resource = ?", filter.Resource)
	}
	if filter.ActorIP != "" {
		q = q.Where("actor_ip = ?", filter.ActorIP)
	}
	if filter.TimestampAfter != nil {
		q = q.Where("timestamp >= ?", formatTime(*filter.TimestampAfter))
	}
	if filter.TimestampBefore != nil {
		q = q.Where("timestamp <= ?", formatTime(*filter.TimestampBefore))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, storageErr("list audit entries", err)
	}
	result := make([]*auditlog.Entry, len(models))
	for i := range models {
		e, err := auditEntryFromModel(&models[i])
		if err != nil {
			return nil, storageErr("list audit entries", err)
		}
		result[i] = e
	}
	return result, nil
}

func (s *Store) CountEntries(ctx context.Context, filter *auditlog.QueryFilter) (int64, error) {
	q := s.sdb.NewSelect((*auditEntryModel)(nil)).
		Where("tenant_id = ?", filter.TenantID)
	if filter.EventType != "" {
		q = q.Where("event_type = ?", filter.EventType)
	}
	if filter.ActorID != "" {
		q = q.Where("actor_id = ?", filter.ActorID)
	}
	if filter.Resource != "" {
		q = q.Where("resource = ?", filter.Resource)
	}
	if filter.ActorIP != "" {
		q = q.Where("actor_ip = ?", filter.ActorIP)
	}
	if filter.TimestampAfter != nil {
		q = q.Where("timestamp >= ?", formatTime(*filter.TimestampAfter))
	}
	if filter.TimestampBefore != nil {
		q = q.Where("timestamp <= ?", formatTime(*filter.TimestampBefore))
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, storageErr("count audit entries", err)
	}
	return count, nil
}
