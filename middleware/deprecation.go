package middleware

import (
	"time"

	"github.com/xraph/forge"
)

// DeprecatedRoute describes one route scheduled for removal.
type DeprecatedRoute struct {
	// Method and Path identify the route as registered.
	Method string
	Path   string

	// Sunset is when the route stops working. Zero means undecided.
	Sunset time.Time

	// Link points to migration documentation.
	Link string

	// Message is sent in the Warning header.
	Message string
}

// DeprecationConfig is an immutable set of deprecated routes, built once
// at startup and passed to Deprecation per route. It has no mutation
// surface after construction, so concurrent request handling needs no
// locking.
type DeprecationConfig struct {
	routes map[string]DeprecatedRoute
}

// NewDeprecationConfig builds the config from a fixed route list.
func NewDeprecationConfig(routes ...DeprecatedRoute) *DeprecationConfig {
	m := make(map[string]DeprecatedRoute, len(routes))
	for _, r := range routes {
		m[r.Method+" "+r.Path] = r
	}
	return &DeprecationConfig{routes: m}
}

// Lookup returns the deprecation record for a route, if any.
func (c *DeprecationConfig) Lookup(method, path string) (DeprecatedRoute, bool) {
	if c == nil {
		return DeprecatedRoute{}, false
	}
	r, ok := c.routes[method+" "+path]
	return r, ok
}

// Deprecation emits deprecation headers for the named route on every
// response. Attach it at route registration; routes absent from the
// config pass through untouched.
func Deprecation(cfg *DeprecationConfig, method, path string) forge.Middleware {
	route, deprecated := cfg.Lookup(method, path)
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			if deprecated {
				ctx.SetHeader("Deprecation", "true")
				if !route.Sunset.IsZero() {
					ctx.SetHeader("Sunset", route.Sunset.UTC().Format(http1DateFormat))
				}
				if route.Link != "" {
					ctx.SetHeader("Link", "<"+route.Link+`>; rel="deprecation"`)
				}
				if route.Message != "" {
					ctx.SetHeader("Warning", `299 - "`+route.Message+`"`)
				}
			}
			return next(ctx)
		}
	}
}

// http1DateFormat is the RFC 7231 date layout used by the Sunset header.
const http1DateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"
