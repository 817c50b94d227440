package application

import (
	"context"
	"errors"

	"github.com/agentpay/agentpay-backend/internal/entity/domain"
)

type Service struct {
	repo     EntityRepository
	provider ProviderClient
}

func NewService(repo EntityRepository, provider ProviderClient) *Service {
	return &Service{repo: repo, provider: provider}
}

func (s *Service) CreateEntity(ctx context.Context, userID, fullName, email, phone string) (domain.Entity, error) {
	if _, err := s.repo.GetByUserID(ctx, userID); err == nil {
		return domain.Entity{}, &domain.AlreadyExistsError{UserID: userID}
	} else {
		var notFound *domain.NotFoundError
		if !errors.As(err, &notFound) {
			return domain.Entity{}, err
		}
	}

	e, err := domain.NewEntity(userID, fullName, email, phone)
	if err != nil {
		return domain.Entity{}, err
	}

	if s.provider != nil {
		providerID, err := s.provider.CreateEntity(ctx, e.FirstName, e.LastName, e.Email, e.Phone)
		if err != nil {
			return domain.Entity{}, err
		}
		e.ID = providerID
	}

	if err := s.repo.CreateEntity(ctx, e); err != nil {
		return domain.Entity{}, err
	}
	return e, nil
}

func (s *Service) GetEntity(ctx context.Context, userID string) (domain.Entity, error) {
	return s.repo.GetByUserID(ctx, userID)
}

func (s *Service) ConnectSimulatedCard(ctx context.Context, userID, brand string) (domain.Account, error) {
	e, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return domain.Account{}, err
	}
	a := domain.SimulateCreditCard(e.ID, brand)
	if err := s.repo.CreateAccount(ctx, a); err != nil {
		return domain.Account{}, err
	}
	return a, nil
}

// ConnectSimulatedCards links one card per brand, three in total.
func (s *Service) ConnectSimulatedCards(ctx context.Context, userID string) ([]domain.Account, error) {
	accounts := make([]domain.Account, 0, 3)
	for _, brand := range domain.CardBrands[:3] {
		a, err := s.ConnectSimulatedCard(ctx, userID, brand)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func (s *Service) ConnectSimulatedBank(ctx context.Context, userID, subtype string) (domain.Account, error) {
	e, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return domain.Account{}, err
	}
	a := domain.SimulateBankAccount(e.ID, subtype)
	if err := s.repo.CreateAccount(ctx, a); err != nil {
		return domain.Account{}, err
	}
	return a, nil
}

func (s *Service) ListAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	e, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAccounts(ctx, e.ID)
}
