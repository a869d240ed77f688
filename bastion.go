// Package bastion provides multi-tenant, role-based authorization for Go.
//
// Bastion evaluates "can subject S perform action A on resource R in
// application P, tenant T" against a durable rule store, keeps an
// authoritative database record of role assignments, and writes every
// authorization-relevant event to a tamper-evident, hash-chained audit
// ledger. It is tenant-scoped by default and integrates with the Forge
// ecosystem for HTTP routing and dependency injection.
//
//	eng, err := bastion.NewEngine(
//	    bastion.WithStore(memStore),
//	)
//	result, err := eng.Check(ctx, &bastion.CheckRequest{
//	    Subject:  "user_123",
//	    Domain:   bastion.NewDomain("app1", "org1"),
//	    Resource: "posts",
//	    Action:   "update",
//	})
package bastion

// Effect is the outcome a policy rule associates with a match.
type Effect string

const (
	// EffectAllow permits matching requests.
	EffectAllow Effect = "allow"

	// EffectDeny blocks matching requests. Deny overrides allow.
	EffectDeny Effect = "deny"
)

// Condition is a dynamic predicate attached to a policy rule, evaluated
// against runtime context in addition to the static role/resource/action
// match.
type Condition string

const (
	// ConditionNone marks an unconditional rule.
	ConditionNone Condition = ""

	// ConditionOwner requires the subject to own the resource.
	ConditionOwner Condition = "owner"

	// ConditionShared requires the resource to be shared with the subject.
	ConditionShared Condition = "shared"
)

// EvalContext carries the runtime facts conditional rules are evaluated
// against. Callers that enforce ownership- or sharing-conditioned rules
// must populate it; unconditional rules ignore it.
type EvalContext struct {
	// ResourceOwnerID is the subject that owns the resource under check.
	ResourceOwnerID string `json:"resource_owner_id,omitempty"`

	// SharedWith lists the subjects the resource has been shared with.
	SharedWith []string `json:"shared_with,omitempty"`
}

// isOwner reports whether subject owns the resource.
func (c *EvalContext) isOwner(subject string) bool {
	return c != nil && c.ResourceOwnerID != "" && c.ResourceOwnerID == subject
}

// isShared reports whether the resource is shared with subject.
func (c *EvalContext) isShared(subject string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.SharedWith {
		if s == subject {
			return true
		}
	}
	return false
}

// CheckRequest is the input to an authorization check.
type CheckRequest struct {
	Subject  string       `json:"subject"`
	Domain   Domain       `json:"domain"`
	Resource string       `json:"resource"`
	Action   string       `json:"action"`
	Context  *EvalContext `json:"context,omitempty"`
}

// CheckResult is the outcome of an authorization check.
type CheckResult struct {
	Allowed    bool        `json:"allowed"`
	Decision   Decision    `json:"decision"`
	Reason     string      `json:"reason,omitempty"`
	MatchedBy  []MatchInfo `json:"matched_by,omitempty"`
	EvalTimeNs int64       `json:"eval_time_ns"`
}

// Decision is the authorization outcome discriminant.
type Decision string

const (
	// DecisionAllow means the request is permitted.
	DecisionAllow Decision = "allow"

	// DecisionDenyExplicit means an explicit deny rule matched.
	DecisionDenyExplicit Decision = "deny_explicit"

	// DecisionDenyDefault means no matching allow rule was found.
	DecisionDenyDefault Decision = "deny_default"

	// DecisionDenyNoRoles means the subject holds no roles in the domain.
	DecisionDenyNoRoles Decision = "deny_no_roles"

	// DecisionDenyCondition means a rule matched but its owner/shared
	// condition was not satisfied by the evaluation context.
	DecisionDenyCondition Decision = "deny_condition"
)

// MatchInfo describes what rule matched during evaluation.
type MatchInfo struct {
	Role      string    `json:"role"`
	Resource  string    `json:"resource"`
	Action    string    `json:"action"`
	Effect    Effect    `json:"effect"`
	Condition Condition `json:"condition,omitempty"`
}
