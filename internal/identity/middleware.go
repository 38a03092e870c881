package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/pricing"
)

type ctxKey struct{}

// WithIdentity stores who on ctx.
func WithIdentity(ctx context.Context, who pricing.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, who)
}

// FromContext returns the buyer attached by Middleware, or an anonymous identity.
func FromContext(ctx context.Context) pricing.Identity {
	if ctx == nil {
		return pricing.Identity{}
	}
	if who, ok := ctx.Value(ctxKey{}).(pricing.Identity); ok {
		return who
	}
	return pricing.Identity{}
}

// Middleware resolves the caller identity from a bearer token or access cookie.
type Middleware struct {
	Verifier     *Verifier
	AccessCookie string
	Logger       zerolog.Logger
}

// Authenticate attaches the caller identity to the request context. Requests
// without a usable token continue as anonymous buyers.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.extractToken(r)
		if token == "" || m.Verifier == nil {
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), pricing.Identity{})))
			return
		}
		who, err := m.Verifier.Parse(token)
		if err != nil {
			m.Logger.Debug().Err(err).Msg("identity_token_rejected")
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), pricing.Identity{})))
			return
		}
		ctx := WithIdentity(r.Context(), who)
		ctx = common.WithPrincipal(ctx, common.Principal{UserID: who.UserID, BuyerKind: who.Kind.String()})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if m.AccessCookie != "" {
		if cookie, err := r.Cookie(m.AccessCookie); err == nil {
			if value := strings.TrimSpace(cookie.Value); value != "" {
				return value
			}
		}
	}
	return ""
}
