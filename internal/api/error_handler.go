package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/exposehub/expose-gateway/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors: a stable
// machine-readable code plus a human-readable message. Raw internal error
// text never leaks to the caller.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<code>", "message": "<text>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, resp := resolveError(err, log, c)
		_ = c.JSON(status, resp)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: "request_error", Message: fmt.Sprintf("%v", he.Message)}
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, errorResponse{Error: "validation_error", Message: "missing required fields"}
	case errors.Is(err, domain.ErrUnknownSnapshotKind):
		return http.StatusBadRequest, errorResponse{Error: "validation_error", Message: "unknown snapshot kind"}
	case errors.Is(err, domain.ErrInstanceNotFound):
		return http.StatusNotFound, errorResponse{Error: "not_found", Message: "instance not found"}
	case errors.Is(err, domain.ErrInstanceOffline):
		return http.StatusServiceUnavailable, errorResponse{Error: "offline", Message: "instance not responding"}
	case errors.Is(err, domain.ErrUpstreamUnreachable):
		return http.StatusBadGateway, errorResponse{Error: "unreachable", Message: "instance unreachable"}
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout, errorResponse{Error: "timeout", Message: "instance timed out"}
	case errors.Is(err, domain.ErrAccessDenied):
		return http.StatusForbidden, errorResponse{Error: "forbidden", Message: "access denied"}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: "invalid credentials"}
	case errors.Is(err, domain.ErrOperatorExists):
		return http.StatusConflict, errorResponse{Error: "conflict", Message: "operator already exists"}
	case errors.Is(err, domain.ErrOperatorNotFound):
		return http.StatusNotFound, errorResponse{Error: "not_found", Message: "operator not found"}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal_error", Message: "internal server error"}
}
