package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/exposehub/expose-gateway/internal/core/domain"
)

func TestHTTPErrorHandler_DomainErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", domain.ErrValidation, http.StatusBadRequest, "validation_error"},
		{"unknown kind", domain.ErrUnknownSnapshotKind, http.StatusBadRequest, "validation_error"},
		{"not found", domain.ErrInstanceNotFound, http.StatusNotFound, "not_found"},
		{"offline", domain.ErrInstanceOffline, http.StatusServiceUnavailable, "offline"},
		{"unreachable", domain.ErrUpstreamUnreachable, http.StatusBadGateway, "unreachable"},
		{"timeout", domain.ErrUpstreamTimeout, http.StatusGatewayTimeout, "timeout"},
		{"denied", domain.ErrAccessDenied, http.StatusForbidden, "forbidden"},
		{"bad credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized"},
		{"operator exists", domain.ErrOperatorExists, http.StatusConflict, "conflict"},
		// Wrapped errors must still resolve through errors.Is.
		{"wrapped offline", fmt.Errorf("proxy alice: %w", domain.ErrInstanceOffline), http.StatusServiceUnavailable, "offline"},
		{"unexpected", errors.New("mongo exploded"), http.StatusInternalServerError, "internal_error"},
	}

	e := echo.New()
	handle := NewHTTPErrorHandler(zerolog.Nop())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/alice/api", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			handle(tt.err, c)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var resp map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid json envelope: %v", err)
			}
			if resp["error"] != tt.wantCode {
				t.Fatalf("error code = %q, want %q", resp["error"], tt.wantCode)
			}
		})
	}
}

func TestHTTPErrorHandler_InternalErrorDoesNotLeak(t *testing.T) {
	e := echo.New()
	handle := NewHTTPErrorHandler(zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handle(errors.New("connection string mongodb://secret@db failed"), c)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if len(body) == 0 {
		t.Fatal("expected an error envelope")
	}
	if strings.Contains(body, "mongodb://") {
		t.Fatal("internal error detail leaked to the client")
	}
}

func TestHTTPErrorHandler_EchoErrorPassthrough(t *testing.T) {
	e := echo.New()
	handle := NewHTTPErrorHandler(zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handle(echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large"), c)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", rec.Code)
	}
}
