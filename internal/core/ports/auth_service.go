package ports

import (
	"context"

	"github.com/exposehub/expose-gateway/internal/core/domain"
)

// AuthService manages operator accounts and issues the JWTs that carry the
// requester identity consumed by the access gate.
type AuthService interface {
	Register(ctx context.Context, username, password, email string) (*domain.Operator, error)
	Login(ctx context.Context, username, password string) (string, *domain.Operator, error)
}
