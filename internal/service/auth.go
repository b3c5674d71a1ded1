package service

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/pinjaman/hybrid/jwt"
)

var tracer = otel.Tracer("auth")

const ViewerSubject = "pinjaman-viewer"

type AuthService struct {
	audience string
}

// NewAuthService accepts viewer tokens issued for audience.
func NewAuthService(audience string) *AuthService {
	return &AuthService{
		audience: audience,
	}
}

type AuthResult struct {
	Wallet string
}

func (s *AuthService) AuthJwt(ctx context.Context, token string) (*AuthResult, error) {
	_, span := tracer.Start(ctx, "Auth.Service.AuthJwt")
	defer span.End()

	claims, err := jwt.Validate(token, s.audience, ViewerSubject)
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt validation failed"))
		return nil, err
	}

	return &AuthResult{Wallet: claims.Issuer}, nil
}
