package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/bastionhq/bastion"
)

func (a *API) registerCheckRoutes(router forge.Router) error {
	g := router.Group("/v1/authz", forge.WithGroupTags("authorization"))

	if err := g.POST("/check", a.check,
		forge.WithSummary("Authorization check"),
		forge.WithDescription("Evaluates whether the subject can perform the action on the resource."),
		forge.WithOperationID("authzCheck"),
		forge.WithRequestSchema(CheckRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Check result", CheckResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/enforce", a.enforce,
		forge.WithSummary("Enforce authorization"),
		forge.WithDescription("Returns 200 if allowed, 403 if denied."),
		forge.WithOperationID("authzEnforce"),
		forge.WithRequestSchema(CheckRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Allowed", CheckResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) check(ctx forge.Context, req *CheckRequest) (*CheckResponse, error) {
	if req.Subject == "" || req.Resource == "" || req.Action == "" {
		return nil, forge.BadRequest("subject, resource, and action are required")
	}
	d, err := reqDomain(req.AppID, req.TenantID)
	if err != nil {
		return nil, err
	}

	result, err := a.eng.Check(ctx.Context(), &bastion.CheckRequest{
		Subject:  req.Subject,
		Domain:   d,
		Resource: req.Resource,
		Action:   req.Action,
		Context:  req.Context,
	})
	if err != nil {
		return nil, mapError(err)
	}

	resp := &CheckResponse{Allowed: result.Allowed}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) enforce(ctx forge.Context, req *CheckRequest) (*CheckResponse, error) {
	if req.Subject == "" || req.Resource == "" || req.Action == "" {
		return nil, forge.BadRequest("subject, resource, and action are required")
	}
	d, err := reqDomain(req.AppID, req.TenantID)
	if err != nil {
		return nil, err
	}

	if err := a.eng.Enforce(ctx.Context(), &bastion.CheckRequest{
		Subject:  req.Subject,
		Domain:   d,
		Resource: req.Resource,
		Action:   req.Action,
		Context:  req.Context,
	}); err != nil {
		return nil, mapError(err)
	}

	resp := &CheckResponse{Allowed: true}
	return resp, ctx.JSON(http.StatusOK, resp)
}
