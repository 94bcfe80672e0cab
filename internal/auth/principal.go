package auth

import "context"

// Roles carried in tokens
const (
	RoleCustomer  = "customer"
	RoleModerator = "moderator"
)

// Principal is the authenticated caller of a request
type Principal struct {
	Subject string
	Role    string
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal attached to ctx, if any
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
