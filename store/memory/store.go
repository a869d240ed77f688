// Package memory provides an in-memory implementation of the composite
// store. It is intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bastionhq/bastion/assignment"
	"github.com/bastionhq/bastion/auditlog"
	"github.com/bastionhq/bastion/id"
	"github.com/bastionhq/bastion/role"
	"github.com/bastionhq/bastion/rule"
)

// Compile-time interface checks.
var (
	_ rule.Store       = (*Store)(nil)
	_ role.Store       = (*Store)(nil)
	_ assignment.Store = (*Store)(nil)
	_ auditlog.Store   = (*Store)(nil)
)

// Store is a thread-safe in-memory store for all entities.
type Store struct {
	mu sync.RWMutex

	rules       []*rule.Rule
	roles       map[string]*role.Role
	assignments map[string]*assignment.Assignment
	entries     map[string][]*auditlog.Entry // tenantID -> entries in seq order
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		roles:       make(map[string]*role.Role),
		assignments: make(map[string]*assignment.Assignment),
		entries:     make(map[string][]*auditlog.Entry),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Rule Store
// ──────────────────────────────────────────────────

func (s *Store) AddRule(_ context.Context, r *rule.Rule) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rules {
		if existing.Equal(r) {
			return false, nil
		}
	}
	cp := *r
	s.rules = append(s.rules, &cp)
	return true, nil
}

func (s *Store) RemoveRules(_ context.Context, f *rule.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeRulesLocked(f), nil
}

func (s *Store) removeRulesLocked(f *rule.Filter) int64 {
	kept := s.rules[:0]
	var removed int64
	for _, r := range s.rules {
		if f.Matches(r) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.rules = kept
	return removed
}

func (s *Store) ListRules(_ context.Context, f *rule.Filter) ([]*rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*rule.Rule
	for _, r := range s.rules {
		if f != nil && !f.Matches(r) {
			continue
		}
		cp := *r
		result = append(result, &cp)
	}
	return result, nil
}

func (s *Store) ReplaceGroupingRules(_ context.Context, user, domain string, roles []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeRulesLocked(&rule.Filter{
		PType: rule.TypeGrouping,
		V0:    rule.FieldValue(user),
		V2:    rule.FieldValue(domain),
	})
	for _, name := range roles {
		s.rules = append(s.rules, rule.Grouping(user, name, domain))
	}
	return nil
}

// ──────────────────────────────────────────────────
// Role Store
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(_ context.Context, r *role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[r.ID.String()] = copyRole(r)
	return nil
}

func (s *Store) GetRole(_ context.Context, roleID id.RoleID) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[roleID.String()]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", roleID, role.ErrNotFound)
	}
	return copyRole(r), nil
}

func (s *Store) GetRoleByName(_ context.Context, appID string, tenantID *string, name string) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.roles {
		if r.AppID == appID && r.Name == name && tenantEqual(r.TenantID, tenantID) {
			return copyRole(r), nil
		}
	}
	return nil, fmt.Errorf("role %q: %w", name, role.ErrNotFound)
}

func (s *Store) UpdateRole(_ context.Context, r *role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[r.ID.String()]; !ok {
		return fmt.Errorf("role %s: %w", r.ID, role.ErrNotFound)
	}
	s.roles[r.ID.String()] = copyRole(r)
	return nil
}

func (s *Store) DeleteRole(_ context.Context, roleID id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, roleID.String())
	return nil
}

func (s *Store) ListRoles(_ context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*role.Role, 0, len(s.roles))
	for _, r := range s.roles {
		if filter != nil {
			if filter.AppID != "" && r.AppID != filter.AppID {
				continue
			}
			if filter.TenantID != nil && !tenantEqual(r.TenantID, filter.TenantID) {
				continue
			}
			if filter.IsSystem != nil && r.IsSystem != *filter.IsSystem {
				continue
			}
			if filter.Search != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(filter.Search)) {
				continue
			}
		}
		result = append(result, copyRole(r))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	limit, offset := 0, 0
	if filter != nil {
		limit, offset = filter.Limit, filter.Offset
	}
	return applyPagination(result, limit, offset), nil
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	var f role.ListFilter
	if filter != nil {
		f = *filter
	}
	f.Limit, f.Offset = 0, 0
	list, err := s.ListRoles(ctx, &f)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

// ──────────────────────────────────────────────────
// Assignment Store
// ──────────────────────────────────────────────────

func (s *Store) CreateAssignment(_ context.Context, a *assignment.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[a.ID.String()] = copyAssignment(a)
	return nil
}

func (s *Store) GetAssignment(_ context.Context, assID id.AssignmentID) (*assignment.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[assID.String()]
	if !ok {
		return nil, fmt.Errorf("assignment %s: %w", assID, assignment.ErrNotFound)
	}
	return copyAssignment(a), nil
}

func (s *Store) FindAssignment(_ context.Context, userID string, roleID id.RoleID, appID string, tenantID *string) (*assignment.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.assignments {
		if a.UserID == userID && a.RoleID.String() == roleID.String() && a.AppID == appID && tenantEqual(a.TenantID, tenantID) {
			return copyAssignment(a), nil
		}
	}
	return nil, fmt.Errorf("assignment for user %s: %w", userID, assignment.ErrNotFound)
}

func (s *Store) DeleteAssignment(_ context.Context, assID id.AssignmentID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[assID.String()]; !ok {
		return false, nil
	}
	delete(s.assignments, assID.String())
	return true, nil
}

func (s *Store) ListAssignments(_ context.Context, filter *assignment.ListFilter) ([]*assignment.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*assignment.Assignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		if filter != nil {
			if filter.UserID != "" && a.UserID != filter.UserID {
				continue
			}
			if filter.RoleID != nil && a.RoleID.String() != filter.RoleID.String() {
				continue
			}
			if filter.AppID != "" && a.AppID != filter.AppID {
				continue
			}
			if !filter.Tenant.Matches(a.TenantID) {
				continue
			}
		}
		result = append(result, copyAssignment(a))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	limit, offset := 0, 0
	if filter != nil {
		limit, offset = filter.Limit, filter.Offset
	}
	return applyPagination(result, limit, offset), nil
}

func (s *Store) CountAssignments(ctx context.Context, filter *assignment.ListFilter) (int64, error) {
	var f assignment.ListFilter
	if filter != nil {
		f = *filter
	}
	f.Limit, f.Offset = 0, 0
	list, err := s.ListAssignments(ctx, &f)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

// ──────────────────────────────────────────────────
// Audit Store
// ──────────────────────────────────────────────────

func (s *Store) AppendEntry(_ context.Context, e *auditlog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.TenantID] = append(s.entries[e.TenantID], copyEntry(e))
	return nil
}

func (s *Store) LatestEntry(_ context.Context, tenantID string) (*auditlog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.entries[tenantID]
	if len(chain) == 0 {
		return nil, nil
	}
	return copyEntry(chain[len(chain)-1]), nil
}

func (s *Store) GetEntryBySeq(_ context.Context, tenantID string, seq int64) (*auditlog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries[tenantID] {
		if e.Seq == seq {
			return copyEntry(e), nil
		}
	}
	return nil, nil
}

func (s *Store) ListEntries(_ context.Context, filter *auditlog.QueryFilter) ([]*auditlog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*auditlog.Entry
	for _, tenantID := range s.tenantKeys(filter) {
		for _, e := range s.entries[tenantID] {
			if filter != nil && !filter.Matches(e) {
				continue
			}
			result = append(result, copyEntry(e))
		}
	}
	limit, offset := 0, 0
	if filter != nil {
		limit, offset = filter.Limit, filter.Offset
	}
	return applyPagination(result, limit, offset), nil
}

func (s *Store) CountEntries(_ context.Context, filter *auditlog.QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, tenantID := range s.tenantKeys(filter) {
		for _, e := range s.entries[tenantID] {
			if filter != nil && !filter.Matches(e) {
				continue
			}
			count++
		}
	}
	return count, nil
}

// tenantKeys returns the chains a filter touches, in stable order.
func (s *Store) tenantKeys(filter *auditlog.QueryFilter) []string {
	if filter != nil && filter.TenantID != "" {
		return []string{filter.TenantID}
	}
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func tenantEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyRole(r *role.Role) *role.Role {
	cp := *r
	if r.TenantID != nil {
		t := *r.TenantID
		cp.TenantID = &t
	}
	return &cp
}

func copyAssignment(a *assignment.Assignment) *assignment.Assignment {
	cp := *a
	if a.TenantID != nil {
		t := *a.TenantID
		cp.TenantID = &t
	}
	return &cp
}

func copyEntry(e *auditlog.Entry) *auditlog.Entry {
	cp := *e
	if e.Details != nil {
		cp.Details = make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			cp.Details[k] = v
		}
	}
	return &cp
}

func applyPagination[T any](items []*T, limit, offset int) []*T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
