// Package middleware provides HTTP authorization middleware for Bastion.
package middleware

import (
	"encoding/json"

	"github.com/xraph/forge"

	"github.com/bastionhq/bastion"
)

// Require enforces authorization for a route. The subject is resolved
// from the request context (Authsome user > anonymous) and the domain
// from the appId/tenantId path parameters, falling back to a domain
// carried via bastion.WithDomain.
func Require(eng *bastion.Engine, action, resource string) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			err := eng.Enforce(ctx.Context(), &bastion.CheckRequest{
				Subject:  resolveSubject(ctx),
				Domain:   resolveDomain(ctx),
				Resource: resource,
				Action:   action,
			})
			if err != nil {
				return denyResponse(ctx)
			}
			return next(ctx)
		}
	}
}

// RequireAny allows the request if ANY of the checks pass. Zero-valued
// Subject and Domain fields are filled from the request.
func RequireAny(eng *bastion.Engine, checks ...bastion.CheckRequest) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			for i := range checks {
				c := fillCheck(ctx, checks[i])
				result, err := eng.Check(ctx.Context(), &c)
				if err == nil && result.Allowed {
					return next(ctx)
				}
			}
			return denyResponse(ctx)
		}
	}
}

// RequireAll allows the request only if ALL checks pass.
func RequireAll(eng *bastion.Engine, checks ...bastion.CheckRequest) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			for i := range checks {
				c := fillCheck(ctx, checks[i])
				if err := eng.Enforce(ctx.Context(), &c); err != nil {
					return denyResponse(ctx)
				}
			}
			return next(ctx)
		}
	}
}

func fillCheck(ctx forge.Context, c bastion.CheckRequest) bastion.CheckRequest {
	if c.Subject == "" {
		c.Subject = resolveSubject(ctx)
	}
	if c.Domain.AppID == "" {
		c.Domain = resolveDomain(ctx)
	}
	return c
}

// resolveSubject extracts the subject from context.
// Priority: Forge user ID (from Authsome) → anonymous.
func resolveSubject(ctx forge.Context) string {
	if userID := forge.UserIDFromContext(ctx.Context()); userID != "" {
		return userID
	}
	return "anonymous"
}

// resolveDomain builds the scope from path parameters, falling back to
// a domain placed on the context by the caller.
func resolveDomain(ctx forge.Context) bastion.Domain {
	if appID := ctx.Param("appId"); appID != "" {
		return bastion.NewDomain(appID, ctx.Param("tenantId"))
	}
	if d, ok := bastion.DomainFromContext(ctx.Context()); ok {
		return d
	}
	return bastion.Domain{}
}

func denyResponse(ctx forge.Context) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(403)
	return json.NewEncoder(ctx.Response()).Encode(map[string]string{"error": "access denied"})
}
