package jwt

import (
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Claims of a wallet-issued token. Issuer is the signing wallet address.
type Claims struct {
	gojwt.RegisteredClaims
}

// NewClaims issues claims valid from now for ttl.
func NewClaims(issuer, subject, audience string, now time.Time, ttl time.Duration) Claims {
	return Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  gojwt.ClaimStrings{audience},
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
		},
	}
}
