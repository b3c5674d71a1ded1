package jwt

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/pinjaman/hybrid"
)

const Algorithm = "EIP191"

// MaxLifetime bounds exp - iat of an accepted token.
const MaxLifetime = time.Hour

// signingMethodEIP191 signs "header.payload" with personal_sign, so any
// wallet can issue a token. The verification key is the issuer address.
type signingMethodEIP191 struct{}

var SigningMethodEIP191 = &signingMethodEIP191{}

func init() {
	gojwt.RegisterSigningMethod(Algorithm, func() gojwt.SigningMethod {
		return SigningMethodEIP191
	})
}

func (m *signingMethodEIP191) Alg() string {
	return Algorithm
}

func (m *signingMethodEIP191) Sign(signingString string, key any) ([]byte, error) {
	privateKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, gojwt.ErrInvalidKeyType
	}
	signatureHex, err := pinjaman.SignMessage(signingString, privateKey)
	if err != nil {
		return nil, err
	}
	return hexutil.Decode(signatureHex)
}

func (m *signingMethodEIP191) Verify(signingString string, sig []byte, key any) error {
	address, ok := key.(string)
	if !ok {
		return gojwt.ErrInvalidKeyType
	}
	valid, err := pinjaman.VerifyMessage(address, signingString, hexutil.Encode(sig))
	if err != nil || !valid {
		return gojwt.ErrSignatureInvalid
	}
	return nil
}

// Create creates a wallet signed JWT.
func Create(claims Claims, key *ecdsa.PrivateKey) (string, error) {
	return gojwt.NewWithClaims(SigningMethodEIP191, claims).SignedString(key)
}

// Validate checks the signature against the issuer, the audience and subject,
// and requires exp and iat with a lifetime of at most MaxLifetime.
func Validate(token, audience, subject string) (*Claims, error) {
	var claims Claims
	_, err := gojwt.ParseWithClaims(
		token,
		&claims,
		func(t *gojwt.Token) (any, error) {
			c, ok := t.Claims.(*Claims)
			if !ok || !pinjaman.IsAddress(c.Issuer) {
				return nil, fmt.Errorf("jwt issuer is not a wallet address")
			}
			return c.Issuer, nil
		},
		gojwt.WithValidMethods([]string{Algorithm}),
		gojwt.WithAudience(audience),
		gojwt.WithSubject(subject),
		gojwt.WithExpirationRequired(),
		gojwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, err
	}

	if claims.IssuedAt == nil {
		return nil, fmt.Errorf("jwt has no issued at")
	}
	if claims.ExpiresAt.Sub(claims.IssuedAt.Time) > MaxLifetime {
		return nil, fmt.Errorf("jwt lifetime exceeds %s", MaxLifetime)
	}

	return &claims, nil
}
