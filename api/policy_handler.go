package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/bastionhq/bastion"
	"github.com/bastionhq/bastion/rule"
)

func (a *API) registerPolicyRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("policies"))

	if err := g.POST("/policies", a.addPolicy,
		forge.WithSummary("Add policy rule"),
		forge.WithDescription("Adds a role-resource-action rule to a domain. Duplicate rules are not re-added."),
		forge.WithOperationID("addPolicy"),
		forge.WithRequestSchema(AddPolicyRequest{}),
		forge.WithCreatedResponse(&AddedResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/policies/remove", a.removePolicy,
		forge.WithSummary("Remove policy rules"),
		forge.WithOperationID("removePolicy"),
		forge.WithRequestSchema(RemovePolicyRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Removal count", RemovedResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/policies/filter", a.filterPolicies,
		forge.WithSummary("Filter policy rules"),
		forge.WithDescription("Returns policy rules matching values at a tuple field index, across all domains."),
		forge.WithOperationID("filterPolicies"),
		forge.WithRequestSchema(FilterPoliciesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Matching rules", []*rule.Rule{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/policies/filter/remove", a.removeFilteredPolicies,
		forge.WithSummary("Remove filtered policy rules"),
		forge.WithOperationID("removeFilteredPolicies"),
		forge.WithRequestSchema(FilterPoliciesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Removal count", RemovedResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/policies", a.listPolicies,
		forge.WithSummary("List policy rules"),
		forge.WithDescription("Returns the policy rules of one domain scope."),
		forge.WithOperationID("listPolicies"),
		forge.WithRequestSchema(ListPoliciesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Policy rules", []*rule.Rule{}),
		forge.WithErrorResponses(),
	)
}

func parseEffect(s string) (bastion.Effect, error) {
	switch s {
	case "", string(bastion.EffectAllow):
		return bastion.EffectAllow, nil
	case string(bastion.EffectDeny):
		return bastion.EffectDeny, nil
	default:
		return "", forge.BadRequest(fmt.Sprintf("invalid effect %q", s))
	}
}

func parseCondition(s string) (bastion.Condition, error) {
	switch bastion.Condition(s) {
	case bastion.ConditionNone, bastion.ConditionOwner, bastion.ConditionShared:
		return bastion.Condition(s), nil
	default:
		return "", forge.BadRequest(fmt.Sprintf("invalid condition %q", s))
	}
}

func (a *API) addPolicy(ctx forge.Context, req *AddPolicyRequest) (*AddedResponse, error) {
	if req.Role == "" || req.Resource == "" || req.Action == "" {
		return nil, forge.BadRequest("role, resource, and action are required")
	}
	d, err := reqDomain(req.AppID, req.TenantID)
	if err != nil {
		return nil, err
	}
	effect, err := parseEffect(req.Effect)
	if err != nil {
		return nil, err
	}
	cond, err := parseCondition(req.Condition)
	if err != nil {
		return nil, err
	}

	added, err := a.eng.AddPolicy(ctx.Context(), req.Role, d, req.Resource, req.Action, effect, cond)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &AddedResponse{Added: added}
	return resp, ctx.JSON(http.StatusCreated, resp)
}

func (a *API) removePolicy(ctx forge.Context, req *RemovePolicyRequest) (*RemovedResponse, error) {
	if req.Role == "" || req.Resource == "" || req.Action == "" {
		return nil, forge.BadRequest("role, resource, and action are required")
	}
	d, err := reqDomain(req.AppID, req.TenantID)
	if err != nil {
		return nil, err
	}

	n, err := a.eng.RemovePolicy(ctx.Context(), req.Role, d, req.Resource, req.Action)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &RemovedResponse{Removed: n}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) filterPolicies(ctx forge.Context, req *FilterPoliciesRequest) ([]*rule.Rule, error) {
	if req.FieldIndex < 0 || req.FieldIndex > 6 {
		return nil, forge.BadRequest("field_index must be between 0 and 6")
	}

	rules, err := a.eng.GetFilteredPolicy(ctx.Context(), req.FieldIndex, req.Values...)
	if err != nil {
		return nil, mapError(err)
	}

	return rules, ctx.JSON(http.StatusOK, rules)
}

func (a *API) removeFilteredPolicies(ctx forge.Context, req *FilterPoliciesRequest) (*RemovedResponse, error) {
	if req.FieldIndex < 0 || req.FieldIndex > 6 {
		return nil, forge.BadRequest("field_index must be between 0 and 6")
	}

	n, err := a.eng.RemoveFilteredPolicy(ctx.Context(), req.FieldIndex, req.Values...)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &RemovedResponse{Removed: n}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) listPolicies(ctx forge.Context, req *ListPoliciesRequest) ([]*rule.Rule, error) {
	d, err := reqDomain(req.AppID, req.TenantID)
	if err != nil {
		return nil, err
	}

	rules, err := a.eng.GetPolicy(ctx.Context(), d)
	if err != nil {
		return nil, mapError(err)
	}

	return rules, ctx.JSON(http.StatusOK, rules)
}
