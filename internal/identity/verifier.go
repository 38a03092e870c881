package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/toko-checkout/internal/pricing"
)

// Claim names issued by the storefront auth service.
const (
	ClaimUserType         = "user_type"
	ClaimWholesalerStatus = "wholesaler_status"
)

// ErrInvalidToken is returned for tokens that fail parsing or validation.
var ErrInvalidToken = errors.New("identity: invalid token")

// Verifier checks HMAC-signed access tokens and maps their claims to a pricing identity.
type Verifier struct {
	Secret    []byte
	Validator TokenValidator
	Now       func() time.Time
}

// NewVerifier builds a verifier for HS256 tokens signed with secret.
func NewVerifier(secret string, issuer, audience string) *Verifier {
	return &Verifier{
		Secret: []byte(secret),
		Validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: 30 * time.Second,
			Algorithm: jwa.HS256,
		},
	}
}

// Parse validates token and returns the buyer it identifies.
func (v *Verifier) Parse(token string) (pricing.Identity, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return pricing.Identity{}, ErrInvalidToken
	}
	algorithm, err := tokenAlgorithm(trimmed)
	if err != nil {
		return pricing.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if v.Validator.Algorithm != "" && algorithm != v.Validator.Algorithm {
		return pricing.Identity{}, fmt.Errorf("%w: unexpected algorithm %s", ErrInvalidToken, algorithm)
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, v.Secret), jwt.WithValidate(false))
	if err != nil {
		return pricing.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := v.Validator.Validate(parsed, algorithm, v.now()); err != nil {
		return pricing.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return FromClaims(parsed.Subject(), stringClaim(parsed, ClaimUserType), stringClaim(parsed, ClaimWholesalerStatus)), nil
}

// FromClaims maps auth claims to an identity. Only wholesalers whose status is
// approved receive WholesalerApproved; any other wholesaler is pending.
func FromClaims(subject, userType, wholesalerStatus string) pricing.Identity {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return pricing.Identity{Kind: pricing.Anonymous}
	}
	who := pricing.Identity{Kind: pricing.Customer, UserID: subject}
	if strings.EqualFold(strings.TrimSpace(userType), "wholesaler") {
		who.Kind = pricing.WholesalerPending
		if strings.EqualFold(strings.TrimSpace(wholesalerStatus), "approved") {
			who.Kind = pricing.WholesalerApproved
		}
	}
	return who
}

func stringClaim(tok jwt.Token, name string) string {
	raw, ok := tok.Get(name)
	if !ok {
		return ""
	}
	s, _ := raw.(string)
	return s
}

func tokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("token contains no signatures")
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil || headers.Algorithm() == "" {
		return "", errors.New("token missing algorithm")
	}
	return headers.Algorithm(), nil
}

func (v *Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}
