package application

import (
	"context"
	"time"

	"github.com/agentpay/agentpay-backend/internal/payment/domain"
)

// PaymentRepository owns persisted payment state. CompareAndSetStatus is the
// only mutation path after creation; both write methods record the event in
// the same transaction (outbox).
type PaymentRepository interface {
	CreateWithOutbox(ctx context.Context, p domain.Payment, eventType string, payload []byte) error
	Get(ctx context.Context, id string) (domain.Payment, error)
	CompareAndSetStatus(ctx context.Context, id string, expected domain.Status, change domain.StatusChange, eventType string, payload []byte) (domain.Payment, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Payment, error)
}

type ListFilter struct {
	OwnerID string
	Status  domain.Status
	Limit   int
	Offset  int
}

// IdempotencyStore maps a caller-supplied key to the payment id it first
// produced. Claim returns the winning id and whether this call won the claim.
type IdempotencyStore interface {
	Claim(ctx context.Context, key, paymentID string) (string, bool, error)
	Release(ctx context.Context, key string) error
}

// TransitionLocker serializes transitions per payment id within a bounded
// wait. The returned release func must be called exactly once.
type TransitionLocker interface {
	Acquire(ctx context.Context, key string, wait time.Duration) (func(), error)
}
