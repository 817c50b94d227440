package application

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/agentpay/agentpay-backend/internal/payment/domain"
	"github.com/agentpay/agentpay-backend/pkg/keylock"
)

const (
	EventPaymentCreated       = "PaymentCreated"
	EventPaymentStatusChanged = "PaymentStatusChanged"
)

type Service struct {
	repo     PaymentRepository
	idem     IdempotencyStore
	locks    TransitionLocker
	lockWait time.Duration
}

func NewService(repo PaymentRepository, idem IdempotencyStore, locks TransitionLocker) *Service {
	return &Service{
		repo:     repo,
		idem:     idem,
		locks:    locks,
		lockWait: 5 * time.Second,
	}
}

type CreateRequest struct {
	OwnerID        string
	AmountCents    int64
	Source         string
	Destination    string
	Description    string
	IdempotencyKey string
}

// TransitionMeta carries optional data a transition may attach. Settlement
// dates default to the completion time when the target is completed.
type TransitionMeta struct {
	ErrorCode                 string
	SourceSettlementDate      *time.Time
	DestinationSettlementDate *time.Time
}

func (s *Service) CreatePayment(ctx context.Context, req CreateRequest) (domain.Payment, error) {
	p, err := domain.NewPayment(req.OwnerID, req.AmountCents, req.Source, req.Destination, req.Description)
	if err != nil {
		return domain.Payment{}, err
	}

	idemKey := ""
	if req.IdempotencyKey != "" {
		idemKey = req.OwnerID + ":" + req.IdempotencyKey
		winner, claimed, err := s.idem.Claim(ctx, idemKey, p.ID)
		if err != nil {
			return domain.Payment{}, err
		}
		if !claimed {
			return s.repo.Get(ctx, winner)
		}
	}

	payload, err := json.Marshal(domain.PaymentCreated{
		PaymentID:   p.ID,
		OwnerID:     p.OwnerID,
		AmountCents: p.AmountCents,
		Source:      p.Source,
		Destination: p.Destination,
	})
	if err != nil {
		return domain.Payment{}, err
	}

	if err := s.repo.CreateWithOutbox(ctx, p, EventPaymentCreated, payload); err != nil {
		if idemKey != "" {
			_ = s.idem.Release(ctx, idemKey)
		}
		return domain.Payment{}, err
	}
	return p, nil
}

func (s *Service) GetPayment(ctx context.Context, id string) (domain.Payment, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListPayments(ctx context.Context, filter ListFilter) ([]domain.Payment, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

// RequestTransition moves a payment along the lifecycle. The read-validate-
// write sequence runs under the per-payment lock; a compare-and-set that
// still loses a race (external writer) is re-validated once against the
// fresh state before giving up.
func (s *Service) RequestTransition(ctx context.Context, id string, target domain.Status, meta TransitionMeta) (domain.Payment, error) {
	release, err := s.locks.Acquire(ctx, id, s.lockWait)
	if err != nil {
		if errors.Is(err, keylock.ErrTimeout) {
			return domain.Payment{}, &domain.TimeoutError{ID: id}
		}
		return domain.Payment{}, err
	}
	defer release()

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Payment{}, err
	}
	base := p.Status

	for attempt := 0; attempt < 2; attempt++ {
		if err := domain.ValidateTransition(p.Status, target); err != nil {
			if attempt > 0 {
				return domain.Payment{}, &domain.ConflictError{ID: id, Expected: base, Actual: p.Status}
			}
			return domain.Payment{}, err
		}

		change := domain.StatusChange{
			Status:    target,
			ErrorCode: meta.ErrorCode,
			UpdatedAt: time.Now().UTC(),
		}
		if target == domain.StatusCompleted {
			settled := change.UpdatedAt
			change.SourceSettlementDate = &settled
			change.DestinationSettlementDate = &settled
			if meta.SourceSettlementDate != nil {
				change.SourceSettlementDate = meta.SourceSettlementDate
			}
			if meta.DestinationSettlementDate != nil {
				change.DestinationSettlementDate = meta.DestinationSettlementDate
			}
		}

		payload, err := json.Marshal(domain.PaymentStatusChanged{
			PaymentID:                 id,
			OldStatus:                 p.Status,
			NewStatus:                 target,
			ErrorCode:                 meta.ErrorCode,
			SourceSettlementDate:      change.SourceSettlementDate,
			DestinationSettlementDate: change.DestinationSettlementDate,
		})
		if err != nil {
			return domain.Payment{}, err
		}

		updated, err := s.repo.CompareAndSetStatus(ctx, id, p.Status, change, EventPaymentStatusChanged, payload)
		if err == nil {
			return updated, nil
		}
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) && attempt == 0 {
			p, err = s.repo.Get(ctx, id)
			if err != nil {
				return domain.Payment{}, err
			}
			continue
		}
		return domain.Payment{}, err
	}
	return domain.Payment{}, &domain.ConflictError{ID: id, Expected: base, Actual: p.Status}
}

// Simulate stands in for the provider's asynchronous status callback. The
// webhook handler calls this same method with identical arguments.
func (s *Service) Simulate(ctx context.Context, id string, target domain.Status, meta TransitionMeta) (domain.Payment, error) {
	return s.RequestTransition(ctx, id, target, meta)
}
