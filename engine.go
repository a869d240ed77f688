package bastion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bastionhq/bastion/auditlog"
	"github.com/bastionhq/bastion/plugin"
	"github.com/bastionhq/bastion/rule"
	"github.com/bastionhq/bastion/store"
)

// Engine is the central authorization engine. It evaluates checks against
// the rule store, manages roles and assignments, and records every
// authorization-relevant event to the audit ledger.
type Engine struct {
	store    store.Store
	resolver RoleResolver
	cache    Cache
	audit    *auditlog.Ledger
	plugins  *plugin.Registry
	logger   *slog.Logger
	config   Config
}

// NewEngine creates a new Bastion engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, errors.New("bastion: store is required")
	}
	if e.resolver == nil {
		if e.config.ProjectGroupings {
			e.resolver = &groupingResolver{rules: e.store}
		} else {
			e.resolver = &assignmentResolver{assignments: e.store, roles: e.store}
		}
	}
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Audit returns the audit ledger, or nil when none is configured.
func (e *Engine) Audit() *auditlog.Ledger { return e.audit }

// RequireAudit returns the audit ledger, or ErrAuditUnavailable when the
// engine was built without one.
func (e *Engine) RequireAudit() (*auditlog.Ledger, error) {
	if e.audit == nil {
		return nil, ErrAuditUnavailable
	}
	return e.audit, nil
}

// Plugins returns the plugin registry (may be nil).
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Start performs any startup initialization.
func (e *Engine) Start(_ context.Context) error { return nil }

// Stop performs graceful shutdown.
func (e *Engine) Stop(ctx context.Context) error {
	if e.plugins != nil {
		e.plugins.EmitShutdown(ctx)
	}
	return nil
}

// Check performs an authorization check. This is the hot path.
//
// Evaluation is fail-closed: any storage failure surfaces as an error and
// callers must treat it as a denial, never as a grant.
func (e *Engine) Check(ctx context.Context, req *CheckRequest) (*CheckResult, error) {
	start := time.Now()
	if err := req.Domain.Validate(); err != nil {
		return nil, err
	}

	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, req); ok {
			cached.EvalTimeNs = time.Since(start).Nanoseconds()
			return cached, nil
		}
	}

	if e.plugins != nil {
		e.plugins.EmitBeforeCheck(ctx, req)
	}

	result, err := e.evaluate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bastion check: %w", err)
	}
	result.EvalTimeNs = time.Since(start).Nanoseconds()

	if e.cache != nil {
		e.cache.Set(ctx, req, result)
	}
	if e.plugins != nil {
		e.plugins.EmitAfterCheck(ctx, req, result)
	}
	if e.config.LogDecisions {
		e.recordDecision(ctx, req, result)
	}

	return result, nil
}

// invalidatePolicies drops cached decisions affected by a policy change
// in d. Tenant-domain evaluation also consults the application-global
// scope, so a global mutation flushes the whole application, not only
// the global domain's slots.
func (e *Engine) invalidatePolicies(ctx context.Context, d Domain) {
	if e.cache == nil {
		return
	}
	if d.Global() {
		e.cache.InvalidateApp(ctx, d.AppID)
		return
	}
	e.cache.InvalidateDomain(ctx, d.Key())
}

// invalidateGrants is the per-subject counterpart. Global assignments
// feed role resolution in every tenant domain of the application, so a
// global grant change flushes the whole application too.
func (e *Engine) invalidateGrants(ctx context.Context, d Domain, userID string) {
	if e.cache == nil {
		return
	}
	if d.Global() {
		e.cache.InvalidateApp(ctx, d.AppID)
		return
	}
	e.cache.InvalidateUser(ctx, d.Key(), userID)
}

// evaluate resolves the subject's roles and walks the matching policy
// rules. Order: resolve roles, match rules for the tenant and global
// domain, deny-overrides among condition-satisfied matches, deny by
// default.
func (e *Engine) evaluate(ctx context.Context, req *CheckRequest) (*CheckResult, error) {
	roles, err := e.resolver.RolesForUser(ctx, req.Subject, req.Domain)
	if err != nil {
		return nil, fmt.Errorf("resolve roles: %w", err)
	}
	if len(roles) == 0 {
		return &CheckResult{Decision: DecisionDenyNoRoles, Reason: "subject has no roles in domain"}, nil
	}
	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	keys := []string{req.Domain.Key()}
	if !req.Domain.Global() {
		keys = append(keys, req.Domain.GlobalDomain().Key())
	}

	var matched []MatchInfo
	var conditionFailed bool
	for _, key := range keys {
		rules, err := e.store.ListRules(ctx, &rule.Filter{
			PType: rule.TypePolicy,
			V1:    rule.FieldValue(key),
		})
		if err != nil {
			return nil, fmt.Errorf("list policy rules: %w", err)
		}
		for _, p := range rules {
			if _, ok := roleSet[p.V0]; !ok {
				continue
			}
			if !matchPattern(p.V2, req.Resource) || !matchPattern(p.V3, req.Action) {
				continue
			}
			if !conditionSatisfied(Condition(p.V5), req) {
				conditionFailed = true
				continue
			}
			matched = append(matched, MatchInfo{
				Role:      p.V0,
				Resource:  p.V2,
				Action:    p.V3,
				Effect:    Effect(p.V4),
				Condition: Condition(p.V5),
			})
		}
	}

	// Deny-overrides: one explicit deny outweighs any number of allows.
	var allows []MatchInfo
	for _, m := range matched {
		if m.Effect == EffectDeny {
			return &CheckResult{
				Decision:  DecisionDenyExplicit,
				Reason:    "explicit deny rule matched",
				MatchedBy: []MatchInfo{m},
			}, nil
		}
		allows = append(allows, m)
	}
	if len(allows) > 0 {
		return &CheckResult{
			Allowed:   true,
			Decision:  DecisionAllow,
			MatchedBy: allows,
		}, nil
	}
	if conditionFailed {
		return &CheckResult{
			Decision: DecisionDenyCondition,
			Reason:   "matching rule condition not satisfied",
		}, nil
	}
	return &CheckResult{Decision: DecisionDenyDefault, Reason: "no matching rule"}, nil
}

// conditionSatisfied evaluates a rule's condition against the request's
// evaluation context. An unknown condition never grants.
func conditionSatisfied(c Condition, req *CheckRequest) bool {
	switch c {
	case ConditionNone:
		return true
	case ConditionOwner:
		return req.Context.isOwner(req.Subject)
	case ConditionShared:
		return req.Context.isShared(req.Subject)
	default:
		return false
	}
}

// Enforce returns an error if the authorization check is denied.
func (e *Engine) Enforce(ctx context.Context, req *CheckRequest) error {
	result, err := e.Check(ctx, req)
	if err != nil {
		return fmt.Errorf("bastion check: %w", err)
	}
	if !result.Allowed {
		return fmt.Errorf("%w: %s: %s", ErrAccessDenied, result.Decision, result.Reason)
	}
	return nil
}

// CanI is a shorthand for a simple authorization check.
func (e *Engine) CanI(ctx context.Context, subject string, d Domain, resource, action string) (bool, error) {
	result, err := e.Check(ctx, &CheckRequest{
		Subject:  subject,
		Domain:   d,
		Resource: resource,
		Action:   action,
	})
	if err != nil {
		return false, err
	}
	return result.Allowed, nil
}

// recordDecision writes a permission.granted / permission.denied audit
// event. Decision records are best-effort on the check path; a ledger
// failure is logged, never returned, so an audit outage cannot take
// enforcement down with it.
func (e *Engine) recordDecision(ctx context.Context, req *CheckRequest, result *CheckResult) {
	if e.audit == nil {
		return
	}
	eventType := auditlog.EventPermissionDenied
	if result.Allowed {
		eventType = auditlog.EventPermissionGrant
	}
	_, err := e.audit.Record(ctx, auditlog.Event{
		EventType: eventType,
		UserID:    req.Subject,
		TenantID:  req.Domain.Tenant(),
		Resource:  req.Resource,
		Action:    req.Action,
		Details: map[string]any{
			"decision": string(result.Decision),
			"app_id":   req.Domain.AppID,
		},
	})
	if err != nil {
		e.logger.Warn("audit decision record failed",
			slog.String("subject", req.Subject),
			slog.String("domain", req.Domain.Key()),
			slog.String("error", err.Error()),
		)
	}
}

// recordEvent writes a mutation-path audit event. Unlike decision
// records, mutation events are part of the operation's contract: a
// ledger failure propagates to the caller.
func (e *Engine) recordEvent(ctx context.Context, ev auditlog.Event) error {
	if e.audit == nil {
		return nil
	}
	if _, err := e.audit.Record(ctx, ev); err != nil {
		return fmt.Errorf("bastion: record audit event %s: %w", ev.EventType, err)
	}
	return nil
}
