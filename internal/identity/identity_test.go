package identity_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/identity"
	"github.com/noah-isme/toko-checkout/internal/pricing"
)

const secret = "test-secret"

func signToken(t *testing.T, key string, exp time.Time, claims map[string]string) string {
	t.Helper()
	builder := jwt.NewBuilder().
		Issuer("toko-auth").
		Subject("user-1").
		IssuedAt(time.Now().Add(-time.Minute)).
		Expiration(exp)
	for k, v := range claims {
		builder = builder.Claim(k, v)
	}
	tok, err := builder.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(key)))
	require.NoError(t, err)
	return string(signed)
}

func TestVerifierMapsApprovedWholesaler(t *testing.T) {
	v := identity.NewVerifier(secret, "toko-auth", "")
	token := signToken(t, secret, time.Now().Add(time.Hour), map[string]string{
		identity.ClaimUserType:         "WHOLESALER",
		identity.ClaimWholesalerStatus: "APPROVED",
	})

	who, err := v.Parse(token)
	require.NoError(t, err)
	require.Equal(t, pricing.WholesalerApproved, who.Kind)
	require.Equal(t, "user-1", who.UserID)
}

func TestVerifierRejectsWrongSecret(t *testing.T) {
	v := identity.NewVerifier(secret, "", "")
	token := signToken(t, "other", time.Now().Add(time.Hour), nil)

	_, err := v.Parse(token)
	require.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestVerifierRejectsExpiredToken(t *testing.T) {
	v := identity.NewVerifier(secret, "", "")
	token := signToken(t, secret, time.Now().Add(-time.Hour), nil)

	_, err := v.Parse(token)
	require.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestFromClaims(t *testing.T) {
	cases := []struct {
		subject, userType, status string
		want                      pricing.Kind
	}{
		{"", "wholesaler", "approved", pricing.Anonymous},
		{"u", "", "", pricing.Customer},
		{"u", "customer", "approved", pricing.Customer},
		{"u", "wholesaler", "pending", pricing.WholesalerPending},
		{"u", "wholesaler", "rejected", pricing.WholesalerPending},
		{"u", "Wholesaler", "Approved", pricing.WholesalerApproved},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, identity.FromClaims(tc.subject, tc.userType, tc.status).Kind, "%+v", tc)
	}
}

func TestMiddlewareAttachesIdentity(t *testing.T) {
	mw := identity.Middleware{Verifier: identity.NewVerifier(secret, "", ""), AccessCookie: "access_token"}
	token := signToken(t, secret, time.Now().Add(time.Hour), map[string]string{identity.ClaimUserType: "customer"})

	var (
		got    pricing.Identity
		userID string
	)
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = identity.FromContext(r.Context())
		userID, _ = common.UserID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, pricing.Customer, got.Kind)
	require.Equal(t, "user-1", userID)
}

func TestMiddlewareInvalidTokenFallsBackToAnonymous(t *testing.T) {
	mw := identity.Middleware{Verifier: identity.NewVerifier(secret, "", "")}
	called := false
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		require.Equal(t, pricing.Anonymous, identity.FromContext(r.Context()).Kind)
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.True(t, called)
	require.Equal(t, http.StatusNoContent, rr.Code)
}
