package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pinjaman/hybrid"
	"github.com/pinjaman/hybrid/internal/domain"
	"github.com/pinjaman/hybrid/internal/service"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct {
	auth *service.AuthService
}

func NewAuthMiddleware(auth *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		auth: auth,
	}
}

// IdentifyViewer resolves who is looking. A valid wallet-signed bearer token
// marks the viewer verified; otherwise the X-Wallet-Address header is taken
// as an unverified display hint.
func (s *AuthMiddleware) IdentifyViewer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.IdentifyViewer")
		defer span.End()

		requestID := c.Request().Header.Get(domain.RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Response().Header().Set(domain.RequestIDHeader, requestID)
		ctx = context.WithValue(ctx, domain.RequestIDCtxKey, requestID)

		viewer, verified := s.bearerViewer(ctx, c.Request().Header.Get("authorization"))
		if viewer == "" {
			hint := c.Request().Header.Get(domain.ViewerAddressHeader)
			if pinjaman.IsAddress(hint) {
				viewer = hint
			}
		}

		if viewer != "" {
			ctx = context.WithValue(ctx, domain.ViewerAddressCtxKey, viewer)
			ctx = context.WithValue(ctx, domain.ViewerVerifiedCtxKey, verified)
			span.SetAttributes(
				attribute.String("Viewer", viewer),
				attribute.Bool("ViewerVerified", verified),
			)
		}

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func (s *AuthMiddleware) bearerViewer(ctx context.Context, authHeader string) (string, bool) {
	span := trace.SpanFromContext(ctx)
	if authHeader == "" || s.auth == nil {
		return "", false
	}

	split := strings.Split(authHeader, " ")
	if len(split) != 2 {
		span.RecordError(fmt.Errorf("invalid authentication header"))
		return "", false
	}

	authType, token := split[0], split[1]
	if authType != "Bearer" {
		span.RecordError(fmt.Errorf("only Bearer is acceptable"))
		return "", false
	}

	result, err := s.auth.AuthJwt(ctx, token)
	if err != nil {
		span.RecordError(errors.Wrap(err, "AuthMiddleware.IdentifyViewer: s.auth.AuthJwt failed"))
		return "", false
	}
	return result.Wallet, true
}

// Viewer returns the viewer address stored by IdentifyViewer and whether it
// was proven by a signature.
func Viewer(ctx context.Context) (string, bool) {
	viewer, _ := ctx.Value(domain.ViewerAddressCtxKey).(string)
	verified, _ := ctx.Value(domain.ViewerVerifiedCtxKey).(bool)
	return viewer, verified
}
