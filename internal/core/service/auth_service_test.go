package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/exposehub/expose-gateway/internal/core/domain"
)

type stubOperatorRepo struct {
	byUsername map[string]*domain.Operator
	nextID     int
}

func newStubOperatorRepo() *stubOperatorRepo {
	return &stubOperatorRepo{byUsername: make(map[string]*domain.Operator)}
}

func (r *stubOperatorRepo) FindByUsername(_ context.Context, username string) (*domain.Operator, error) {
	op, ok := r.byUsername[username]
	if !ok {
		return nil, domain.ErrOperatorNotFound
	}
	clone := *op
	return &clone, nil
}

func (r *stubOperatorRepo) Create(_ context.Context, op *domain.Operator) (*domain.Operator, error) {
	if _, exists := r.byUsername[op.Username]; exists {
		return nil, domain.ErrOperatorExists
	}
	r.nextID++
	clone := *op
	clone.ID = string(rune('a' + r.nextID))
	r.byUsername[op.Username] = &clone
	return &clone, nil
}

const testSecret = "test-secret"

func TestAuthService_Register_HashesPassword(t *testing.T) {
	repo := newStubOperatorRepo()
	svc := NewAuthService(repo, testSecret, time.Hour)

	op, err := svc.Register(context.Background(), "alice", "s3cretpass", "alice@example.com")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if op.PasswordHash == "s3cretpass" {
		t.Fatal("password stored in plaintext")
	}
	if bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte("s3cretpass")) != nil {
		t.Fatal("stored hash does not verify against the original password")
	}
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	repo := newStubOperatorRepo()
	svc := NewAuthService(repo, testSecret, time.Hour)

	if _, err := svc.Register(context.Background(), "alice", "s3cretpass", ""); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(context.Background(), "alice", "other-pass", ""); !errors.Is(err, domain.ErrOperatorExists) {
		t.Fatalf("expected ErrOperatorExists, got %v", err)
	}
}

func TestAuthService_Login(t *testing.T) {
	repo := newStubOperatorRepo()
	svc := NewAuthService(repo, testSecret, time.Hour)

	if _, err := svc.Register(context.Background(), "alice", "s3cretpass", ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	token, op, err := svc.Login(context.Background(), "alice", "s3cretpass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if op.Username != "alice" {
		t.Fatalf("unexpected operator %+v", op)
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims["username"] != "alice" {
		t.Fatalf("token missing username claim: %v", claims)
	}
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	repo := newStubOperatorRepo()
	svc := NewAuthService(repo, testSecret, time.Hour)

	if _, err := svc.Register(context.Background(), "alice", "s3cretpass", ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := svc.Login(context.Background(), "alice", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "nobody", "s3cretpass"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}
