package postgres

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/bastionhq/bastion/assignment"
	"github.com/bastionhq/bastion/auditlog"
	"github.com/bastionhq/bastion/id"
	"github.com/bastionhq/bastion/role"
	"github.com/bastionhq/bastion/rule"
)

// ──────────────────────────────────────────────────
// Rule model
// ──────────────────────────────────────────────────

type ruleModel struct {
	grove.BaseModel `grove:"table:bastion_rules"`
	ID              string `grove:"id,pk"`
	PType           string `grove:"ptype,notnull"`
	V0              string `grove:"v0,notnull"`
	V1              string `grove:"v1,notnull"`
	V2              string `grove:"v2,notnull"`
	V3              string `grove:"v3,notnull"`
	V4              string `grove:"v4,notnull"`
	V5              string `grove:"v5,notnull"`
	V6              string `grove:"v6,notnull"`
}

func ruleToModel(r *rule.Rule) *ruleModel {
	return &ruleModel{
		ID:    id.NewRuleID().String(),
		PType: string(r.PType),
		V0:    r.V0,
		V1:    r.V1,
		V2:    r.V2,
		V3:    r.V3,
		V4:    r.V4,
		V5:    r.V5,
		V6:    r.V6,
	}
}

func ruleFromModel(m *ruleModel) *rule.Rule {
	return &rule.Rule{
		PType: rule.Type(m.PType),
		V0:    m.V0,
		V1:    m.V1,
		V2:    m.V2,
		V3:    m.V3,
		V4:    m.V4,
		V5:    m.V5,
		V6:    m.V6,
	}
}

// ──────────────────────────────────────────────────
// Role model
// ──────────────────────────────────────────────────

type roleModel struct {
	grove.BaseModel `grove:"table:bastion_roles"`
	ID              string    `grove:"id,pk"`
	Name            string    `grove:"name,notnull"`
	Description     string    `grove:"description"`
	AppID           string    `grove:"app_id,notnull"`
	TenantID        *string   `grove:"tenant_id"`
	IsSystem        bool      `grove:"is_system,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func roleToModel(r *role.Role) *roleModel {
	m := &roleModel{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		AppID:       r.AppID,
		IsSystem:    r.IsSystem,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.TenantID != nil {
		s := *r.TenantID
		m.TenantID = &s
	}
	return m
}

func roleFromModel(m *roleModel) (*role.Role, error) {
	rid, err := id.ParseRoleID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse role id: %w", err)
	}
	r := &role.Role{
		ID:          rid,
		Name:        m.Name,
		Description: m.Description,
		AppID:       m.AppID,
		IsSystem:    m.IsSystem,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.TenantID != nil {
		s := *m.TenantID
		r.TenantID = &s
	}
	return r, nil
}

// ──────────────────────────────────────────────────
// Assignment model
// ──────────────────────────────────────────────────

type assignmentModel struct {
	grove.BaseModel `grove:"table:bastion_assignments"`
	ID              string    `grove:"id,pk"`
	UserID          string    `grove:"user_id,notnull"`
	RoleID          string    `grove:"role_id,notnull"`
	AppID           string    `grove:"app_id,notnull"`
	TenantID        *string   `grove:"tenant_id"`
	AssignedBy      string    `grove:"assigned_by"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
}

func assignmentToModel(a *assignment.Assignment) *assignmentModel {
	m := &assignmentModel{
		ID:         a.ID.String(),
		UserID:     a.UserID,
		RoleID:     a.RoleID.String(),
		AppID:      a.AppID,
		AssignedBy: a.AssignedBy,
		CreatedAt:  a.CreatedAt,
	}
	if a.TenantID != nil {
		s := *a.TenantID
		m.TenantID = &s
	}
	return m
}

func assignmentFromModel(m *assignmentModel) (*assignment.Assignment, error) {
	aid, err := id.ParseAssignmentID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse assignment id: %w", err)
	}
	rid, err := id.ParseRoleID(m.RoleID)
	if err != nil {
		return nil, fmt.Errorf("parse assignment role id: %w", err)
	}
	a := &assignment.Assignment{
		ID:         aid,
		UserID:     m.UserID,
		RoleID:     rid,
		AppID:      m.AppID,
		AssignedBy: m.AssignedBy,
		CreatedAt:  m.CreatedAt,
	}
	if m.TenantID != nil {
		s := *m.TenantID
		a.TenantID = &s
	}
	return a, nil
}

// ──────────────────────────────────────────────────
// Audit entry model
// ──────────────────────────────────────────────────

type auditEntryModel struct {
	grove.BaseModel `grove:"table:bastion_audit_entries"`
	TenantID        string         `grove:"tenant_id,pk"`
	Seq             int64          `grove:"seq,pk"`
	Timestamp       time.Time      `grove:"timestamp,notnull"`
	EventType       string         `grove:"event_type,notnull"`
	UserID          string         `grove:"user_id"`
	Resource        string         `grove:"resource"`
	Action          string         `grove:"action"`
	ActorID         string         `grove:"actor_id,notnull"`
	ActorIP         string         `grove:"actor_ip"`
	ActorUserAgent  string         `grove:"actor_user_agent"`
	Details         map[string]any `grove:"details,type:jsonb"`
	PreviousHash    string         `grove:"previous_hash"`
	RecordHash      string         `grove:"record_hash,notnull"`
}

func auditEntryToModel(e *auditlog.Entry) *auditEntryModel {
	details := e.Details
	if details == nil {
		// The column is NOT NULL; an absent map stores as {}.
		details = map[string]any{}
	}
	return &auditEntryModel{
		TenantID:       e.TenantID,
		Seq:            e.Seq,
		Timestamp:      e.Timestamp,
		EventType:      e.EventType,
		UserID:         e.UserID,
		Resource:       e.Resource,
		Action:         e.Action,
		ActorID:        e.ActorID,
		ActorIP:        e.ActorIP,
		ActorUserAgent: e.ActorUserAgent,
		Details:        details,
		PreviousHash:   e.PreviousHash,
		RecordHash:     e.RecordHash,
	}
}

func auditEntryFromModel(m *auditEntryModel) *auditlog.Entry {
	return &auditlog.Entry{
		TenantID:       m.TenantID,
		Seq:            m.Seq,
		EventID:        auditlog.FormatEventID(m.Seq),
		Timestamp:      m.Timestamp,
		EventType:      m.EventType,
		UserID:         m.UserID,
		Resource:       m.Resource,
		Action:         m.Action,
		ActorID:        m.ActorID,
		ActorIP:        m.ActorIP,
		ActorUserAgent: m.ActorUserAgent,
		Details:        m.Details,
		PreviousHash:   m.PreviousHash,
		RecordHash:     m.RecordHash,
	}
}
