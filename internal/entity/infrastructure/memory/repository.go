package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/agentpay/agentpay-backend/internal/entity/domain"
)

type Repository struct {
	mu       sync.Mutex
	byUser   map[string]domain.Entity
	accounts map[string][]domain.Account
}

func New() *Repository {
	return &Repository{
		byUser:   make(map[string]domain.Entity),
		accounts: make(map[string][]domain.Account),
	}
}

func (r *Repository) CreateEntity(_ context.Context, e domain.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUser[e.UserID]; ok {
		return errors.New("entity already exists for user " + e.UserID)
	}
	r.byUser[e.UserID] = e
	return nil
}

func (r *Repository) GetByUserID(_ context.Context, userID string) (domain.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byUser[userID]
	if !ok {
		return domain.Entity{}, &domain.NotFoundError{What: "entity"}
	}
	return e, nil
}

func (r *Repository) CreateAccount(_ context.Context, a domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.EntityID] = append(r.accounts[a.EntityID], a)
	return nil
}

func (r *Repository) ListAccounts(_ context.Context, entityID string) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]domain.Account(nil), r.accounts[entityID]...)
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
