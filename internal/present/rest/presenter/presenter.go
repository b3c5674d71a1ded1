package presenter

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pinjaman/hybrid"
	"github.com/pinjaman/hybrid/internal/domain"
)

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func BadRequestMessage(c echo.Context, msg string) error {
	slog.DebugContext(c.Request().Context(), "bad request", slog.String("reason", msg), slog.String("module", "rest"))
	return c.JSON(http.StatusBadRequest, pinjaman.SubmitResponse{Error: msg, Kind: "validation"})
}

// StatusOf maps a domain error to its HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrBindingMismatch):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSignatureInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrOwnershipMismatch):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrStaleData):
		return http.StatusConflict
	case errors.Is(err, domain.ErrExceedsMaxBorrow), errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInsufficientData):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrGatewayUnavailable):
		var gw domain.GatewayUnavailableError
		if errors.As(err, &gw) && gw.Ambiguous {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err with its status and wire kind. Internal failures keep
// their detail in the log only.
func Error(c echo.Context, err error) error {
	status := StatusOf(err)
	body := pinjaman.SubmitResponse{Error: err.Error()}

	var kinded domain.KindedError
	if errors.As(err, &kinded) {
		body.Kind = kinded.Kind()
	}

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(
			c.Request().Context(), "request failed",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
			slog.String("module", "rest"),
		)
		if status == http.StatusInternalServerError {
			// keep the outermost wrap message, drop driver detail
			if i := strings.Index(body.Error, ": "); i > 0 {
				body.Error = body.Error[:i]
			}
		}
	}

	return c.JSON(status, body)
}
