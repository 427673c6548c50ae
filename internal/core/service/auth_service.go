package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/exposehub/expose-gateway/internal/core/domain"
	"github.com/exposehub/expose-gateway/internal/core/ports"
)

// AuthService implements operator registration and login.
type AuthService struct {
	repo      ports.OperatorRepository
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthService(repo ports.OperatorRepository, jwtSecret string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{repo: repo, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

func (s *AuthService) Register(ctx context.Context, username, password, email string) (*domain.Operator, error) {
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	op := &domain.Operator{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.repo.Create(ctx, op)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (string, *domain.Operator, error) {
	if username == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	op, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		// Unknown usernames read the same as wrong passwords.
		if errors.Is(err, domain.ErrOperatorNotFound) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.generateToken(op)
	if err != nil {
		return "", nil, err
	}

	return token, op, nil
}

// generateToken issues the HS256 JWT whose username claim doubles as the
// requester identity consumed by the access gate.
func (s *AuthService) generateToken(op *domain.Operator) (string, error) {
	claims := jwt.MapClaims{
		"sub":      op.ID,
		"username": op.Username,
		"exp":      time.Now().Add(s.tokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}
