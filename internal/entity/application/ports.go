package application

import (
	"context"

	"github.com/agentpay/agentpay-backend/internal/entity/domain"
)

type EntityRepository interface {
	CreateEntity(ctx context.Context, e domain.Entity) error
	GetByUserID(ctx context.Context, userID string) (domain.Entity, error)
	CreateAccount(ctx context.Context, a domain.Account) error
	ListAccounts(ctx context.Context, entityID string) ([]domain.Account, error)
}

// ProviderClient creates the entity with the real payments provider; when
// absent the service falls back to locally generated ids (demo mode).
type ProviderClient interface {
	CreateEntity(ctx context.Context, firstName, lastName, email, phone string) (string, error)
}
