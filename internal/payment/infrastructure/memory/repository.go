package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/agentpay/agentpay-backend/internal/payment/application"
	"github.com/agentpay/agentpay-backend/internal/payment/domain"
)

// Repository is the demo-mode and test store. Events that the postgres
// adapter would write to the outbox are recorded in memory instead.
type Repository struct {
	mu       sync.Mutex
	payments map[string]domain.Payment
	events   []RecordedEvent
}

type RecordedEvent struct {
	AggregateID string
	Type        string
	Payload     []byte
}

func New() *Repository {
	return &Repository{payments: make(map[string]domain.Payment)}
}

func (r *Repository) CreateWithOutbox(_ context.Context, p domain.Payment, eventType string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[p.ID]; ok {
		return errors.New("duplicate payment id " + p.ID)
	}
	r.payments[p.ID] = p
	r.events = append(r.events, RecordedEvent{AggregateID: p.ID, Type: eventType, Payload: payload})
	return nil
}

func (r *Repository) Get(_ context.Context, id string) (domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return domain.Payment{}, &domain.NotFoundError{ID: id}
	}
	return p, nil
}

func (r *Repository) CompareAndSetStatus(_ context.Context, id string, expected domain.Status, change domain.StatusChange, eventType string, payload []byte) (domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return domain.Payment{}, &domain.NotFoundError{ID: id}
	}
	if p.Status != expected {
		return domain.Payment{}, &domain.ConflictError{ID: id, Expected: expected, Actual: p.Status}
	}
	p.Status = change.Status
	p.ErrorCode = change.ErrorCode
	p.SourceSettlementDate = change.SourceSettlementDate
	p.DestinationSettlementDate = change.DestinationSettlementDate
	p.UpdatedAt = change.UpdatedAt
	r.payments[id] = p
	r.events = append(r.events, RecordedEvent{AggregateID: id, Type: eventType, Payload: payload})
	return p, nil
}

func (r *Repository) List(_ context.Context, filter application.ListFilter) ([]domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Payment, 0, len(r.payments))
	for _, p := range r.payments {
		if filter.OwnerID != "" && p.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Events returns a copy of everything recorded so far, oldest first.
func (r *Repository) Events() []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedEvent(nil), r.events...)
}
