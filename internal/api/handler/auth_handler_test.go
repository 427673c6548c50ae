package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/exposehub/expose-gateway/internal/core/domain"
)

type stubAuthService struct {
	registerFn func(ctx context.Context, username, password, email string) (*domain.Operator, error)
	loginFn    func(ctx context.Context, username, password string) (string, *domain.Operator, error)
}

func (s *stubAuthService) Register(ctx context.Context, username, password, email string) (*domain.Operator, error) {
	return s.registerFn(ctx, username, password, email)
}

func (s *stubAuthService) Login(ctx context.Context, username, password string) (string, *domain.Operator, error) {
	return s.loginFn(ctx, username, password)
}

func TestAuthHandler_Register_Success(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(_ context.Context, username, password, email string) (*domain.Operator, error) {
			if username != "alice" || email != "alice@example.com" {
				t.Fatalf("unexpected args: %s %s", username, email)
			}
			return &domain.Operator{ID: "op_1", Username: username, Email: email}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := newTestContext(t, http.MethodPost, "/auth/register",
		`{"username":"alice","password":"s3cretpass","email":"alice@example.com"}`)

	if err := h.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	op, ok := resp["operator"].(map[string]any)
	if !ok || op["username"] != "alice" {
		t.Fatalf("unexpected payload: %v", resp)
	}
	if _, leaked := op["password_hash"]; leaked {
		t.Fatal("password hash leaked in response")
	}
}

func TestAuthHandler_Register_ShortPassword(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})

	c, _ := newTestContext(t, http.MethodPost, "/auth/register",
		`{"username":"alice","password":"short"}`)

	err := h.Register(c)
	var he *echo.HTTPError
	if err == nil || !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestAuthHandler_Login(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(_ context.Context, username, password string) (string, *domain.Operator, error) {
			if password != "s3cretpass" {
				return "", nil, domain.ErrInvalidCredentials
			}
			return "signed.jwt.token", &domain.Operator{ID: "op_1", Username: username}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := newTestContext(t, http.MethodPost, "/auth/login",
		`{"username":"alice","password":"s3cretpass"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["token"] != "signed.jwt.token" {
		t.Fatalf("token missing: %v", resp)
	}

	c, _ = newTestContext(t, http.MethodPost, "/auth/login",
		`{"username":"alice","password":"wrong-pass"}`)
	if err := h.Login(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
