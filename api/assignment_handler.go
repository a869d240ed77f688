package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/bastionhq/bastion"
	"github.com/bastionhq/bastion/assignment"
	"github.com/bastionhq/bastion/id"
)

func (a *API) registerAssignmentRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("assignments"))

	if err := g.POST("/users/:userId/roles", a.assignRole,
		forge.WithSummary("Assign role to user"),
		forge.WithDescription("Grants a role to a user. Re-granting an existing assignment is a no-op."),
		forge.WithOperationID("assignRole"),
		forge.WithRequestSchema(AssignRoleRequest{}),
		forge.WithCreatedResponse(&assignment.Assignment{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/users/:userId/roles/:roleId", a.removeRole,
		forge.WithSummary("Remove role from user"),
		forge.WithOperationID("removeRole"),
		forge.WithRequestSchema(RemoveRoleRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/users/:userId/roles", a.listUserRoles,
		forge.WithSummary("List user roles"),
		forge.WithDescription("Returns the role names a user holds, optionally narrowed to one tenant or to global assignments."),
		forge.WithOperationID("listUserRoles"),
		forge.WithRequestSchema(ListUserRolesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "User roles", UserRolesResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/users/:userId/roles", a.removeAllUserRoles,
		forge.WithSummary("Remove all user roles"),
		forge.WithDescription("Strips every matching assignment from a user, one at a time, each with its own audit record."),
		forge.WithOperationID("removeAllUserRoles"),
		forge.WithRequestSchema(RemoveAllUserRolesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Removal count", RemovedResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/users/:userId/resync", a.resyncUser,
		forge.WithSummary("Resync user grouping rules"),
		forge.WithDescription("Rebuilds a user's grouping rules in the rule store from the assignment database."),
		forge.WithOperationID("resyncUser"),
		forge.WithRequestSchema(ResyncUserRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Roles after resync", UserRolesResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/roles/:roleId/users", a.listRoleUsers,
		forge.WithSummary("List users with role"),
		forge.WithOperationID("listRoleUsers"),
		forge.WithRequestSchema(ListRoleUsersRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Role holders", RoleUsersResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) assignRole(ctx forge.Context, req *AssignRoleRequest) (*assignment.Assignment, error) {
	userID := ctx.Param("userId")
	roleID, err := id.ParseRoleID(req.RoleID)
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role_id: %v", err))
	}
	d, err := reqDomain(req.AppID, req.TenantID)
	if err != nil {
		return nil, err
	}

	asg, err := a.eng.AssignRole(ctx.Context(), userID, roleID, d, req.AssignedBy)
	if err != nil {
		return nil, mapError(err)
	}

	return asg, ctx.JSON(http.StatusCreated, asg)
}

func (a *API) removeRole(ctx forge.Context, req *RemoveRoleRequest) (*struct{}, error) {
	userID := ctx.Param("userId")
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}
	d, err := reqDomain(req.AppID, req.TenantID)
	if err != nil {
		return nil, err
	}

	removed, err := a.eng.RemoveRole(ctx.Context(), userID, roleID, d, req.ActorID)
	if err != nil {
		return nil, mapError(err)
	}
	if !removed {
		return nil, mapError(fmt.Errorf("%w: user %s role %s in %s", bastion.ErrAssignmentNotFound, userID, roleID, d.Key()))
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listUserRoles(ctx forge.Context, req *ListUserRolesRequest) (*UserRolesResponse, error) {
	userID := ctx.Param("userId")
	if req.AppID == "" {
		return nil, forge.BadRequest("appId is required")
	}

	names, err := a.eng.GetUserRoleNames(ctx.Context(), userID, req.AppID, tenantFilter(req.TenantID, req.GlobalOnly))
	if err != nil {
		return nil, mapError(err)
	}

	resp := &UserRolesResponse{UserID: userID, Roles: names}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) removeAllUserRoles(ctx forge.Context, req *RemoveAllUserRolesRequest) (*RemovedResponse, error) {
	userID := ctx.Param("userId")
	if req.AppID == "" {
		return nil, forge.BadRequest("appId is required")
	}

	n, err := a.eng.RemoveAllUserRoles(ctx.Context(), userID, req.AppID, tenantFilter(req.TenantID, req.GlobalOnly), req.ActorID)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &RemovedResponse{Removed: int64(n)}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) resyncUser(ctx forge.Context, req *ResyncUserRequest) (*UserRolesResponse, error) {
	userID := ctx.Param("userId")
	d, err := reqDomain(req.AppID, req.TenantID)
	if err != nil {
		return nil, err
	}

	names, err := a.eng.ResyncUser(ctx.Context(), userID, d)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &UserRolesResponse{UserID: userID, Roles: names}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) listRoleUsers(ctx forge.Context, req *ListRoleUsersRequest) (*RoleUsersResponse, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}
	if req.AppID == "" {
		return nil, forge.BadRequest("appId is required")
	}

	users, err := a.eng.GetUsersWithRole(ctx.Context(), roleID, req.AppID, tenantFilter(req.TenantID, req.GlobalOnly))
	if err != nil {
		return nil, mapError(err)
	}

	resp := &RoleUsersResponse{RoleID: roleID.String(), Users: users}
	return resp, ctx.JSON(http.StatusOK, resp)
}
