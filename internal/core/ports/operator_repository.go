package ports

import (
	"context"

	"github.com/exposehub/expose-gateway/internal/core/domain"
)

// OperatorRepository defines the interface for operator account persistence.
type OperatorRepository interface {
	FindByUsername(ctx context.Context, username string) (*domain.Operator, error)
	Create(ctx context.Context, op *domain.Operator) (*domain.Operator, error)
}
