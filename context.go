package bastion

import "context"

type contextKey int

const ctxKeyDomain contextKey = iota

// WithDomain returns a context carrying the given domain. Use this in
// standalone mode (without Forge) so handlers below the middleware can
// recover the request's scope.
func WithDomain(ctx context.Context, d Domain) context.Context {
	return context.WithValue(ctx, ctxKeyDomain, d)
}

// DomainFromContext returns the domain carried by the context, if any.
func DomainFromContext(ctx context.Context) (Domain, bool) {
	d, ok := ctx.Value(ctxKeyDomain).(Domain)
	return d, ok
}
