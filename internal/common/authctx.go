package common

import "context"

type principalKey struct{}

// Principal is the authenticated caller as seen by cross-cutting middleware
// (rate limits, idempotency scoping, request logs). Pricing decisions use the
// richer identity carried by the identity package.
type Principal struct {
	UserID    string
	BuyerKind string
}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// WithUserID stores an authenticated user id with no buyer kind.
func WithUserID(ctx context.Context, id string) context.Context {
	return WithPrincipal(ctx, Principal{UserID: id})
}

// UserID reports the authenticated user id, if any.
func UserID(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	if !ok || p.UserID == "" {
		return "", false
	}
	return p.UserID, true
}
