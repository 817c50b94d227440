package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/agentpay/agentpay-backend/internal/payment/application"
	"github.com/agentpay/agentpay-backend/internal/payment/domain"
	"github.com/agentpay/agentpay-backend/internal/payment/infrastructure/memory"
	"github.com/agentpay/agentpay-backend/pkg/idempotency"
	"github.com/agentpay/agentpay-backend/pkg/keylock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(repo application.PaymentRepository) *application.Service {
	return application.NewService(repo, idempotency.NewMemoryStore(), keylock.New())
}

func createReq() application.CreateRequest {
	return application.CreateRequest{
		OwnerID:     "user_1",
		AmountCents: 10_000,
		Source:      "acc_bank_1",
		Destination: "acc_card_1",
		Description: "card payoff",
	}
}

func TestLifecycle_PendingProcessingCompleted(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	svc := newService(repo)

	p, err := svc.CreatePayment(ctx, createReq())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, p.Status)

	p, err = svc.Simulate(ctx, p.ID, domain.StatusProcessing, application.TransitionMeta{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, p.Status)
	assert.Nil(t, p.SourceSettlementDate)

	p, err = svc.Simulate(ctx, p.ID, domain.StatusCompleted, application.TransitionMeta{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, p.Status)
	require.NotNil(t, p.SourceSettlementDate)
	require.NotNil(t, p.DestinationSettlementDate)

	// Terminal: any further transition fails and the record stays untouched.
	before, err := svc.GetPayment(ctx, p.ID)
	require.NoError(t, err)

	_, err = svc.Simulate(ctx, p.ID, domain.StatusProcessing, application.TransitionMeta{})
	var illegal *domain.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)

	after, err := svc.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLifecycle_FailureAndCancellation(t *testing.T) {
	ctx := context.Background()
	svc := newService(memory.New())

	p, err := svc.CreatePayment(ctx, createReq())
	require.NoError(t, err)
	p, err = svc.Simulate(ctx, p.ID, domain.StatusFailed, application.TransitionMeta{ErrorCode: "insufficient_funds"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, p.Status)
	assert.Equal(t, "insufficient_funds", p.ErrorCode)
	assert.Nil(t, p.SourceSettlementDate)

	p2, err := svc.CreatePayment(ctx, createReq())
	require.NoError(t, err)
	p2, err = svc.Simulate(ctx, p2.ID, domain.StatusCancelled, application.TransitionMeta{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, p2.Status)

	// cancelled is only reachable from pending
	p3, err := svc.CreatePayment(ctx, createReq())
	require.NoError(t, err)
	_, err = svc.Simulate(ctx, p3.ID, domain.StatusProcessing, application.TransitionMeta{})
	require.NoError(t, err)
	_, err = svc.Simulate(ctx, p3.ID, domain.StatusCancelled, application.TransitionMeta{})
	var illegal *domain.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
}

func TestCreatePayment_ValidationPersistsNothing(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	svc := newService(repo)

	req := createReq()
	req.AmountCents = 0
	_, err := svc.CreatePayment(ctx, req)
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)

	req = createReq()
	req.Destination = req.Source
	_, err = svc.CreatePayment(ctx, req)
	require.ErrorAs(t, err, &validation)

	payments, err := svc.ListPayments(ctx, application.ListFilter{OwnerID: "user_1"})
	require.NoError(t, err)
	assert.Empty(t, payments)
	assert.Empty(t, repo.Events())
}

func TestCreatePayment_Idempotency(t *testing.T) {
	ctx := context.Background()
	svc := newService(memory.New())

	req := createReq()
	req.IdempotencyKey = "retry-abc"

	first, err := svc.CreatePayment(ctx, req)
	require.NoError(t, err)
	second, err := svc.CreatePayment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	req.IdempotencyKey = "retry-def"
	third, err := svc.CreatePayment(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)

	payments, err := svc.ListPayments(ctx, application.ListFilter{OwnerID: "user_1"})
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}

func TestGetPayment_NotFound(t *testing.T) {
	svc := newService(memory.New())
	_, err := svc.GetPayment(context.Background(), "pmt_missing")
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)

	_, err = svc.Simulate(context.Background(), "pmt_missing", domain.StatusProcessing, application.TransitionMeta{})
	require.ErrorAs(t, err, &notFound)
}

func TestConcurrentTransitions_ExactlyOneApplies(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	svc := newService(repo)

	p, err := svc.CreatePayment(ctx, createReq())
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RequestTransition(ctx, p.ID, domain.StatusProcessing, application.TransitionMeta{})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		}
	}
	assert.Equal(t, 1, successes, "exactly one transition may apply")

	got, err := svc.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.Status)
	// one creation event plus exactly one status change
	assert.Len(t, repo.Events(), 2)
}

// conflictOnceRepo forces one ConflictError on the first compare-and-set to
// exercise the validator's single retry against fresh state.
type conflictOnceRepo struct {
	application.PaymentRepository
	mu    sync.Mutex
	fired bool
}

func (r *conflictOnceRepo) CompareAndSetStatus(ctx context.Context, id string, expected domain.Status, change domain.StatusChange, eventType string, payload []byte) (domain.Payment, error) {
	r.mu.Lock()
	fired := r.fired
	r.fired = true
	r.mu.Unlock()
	if !fired {
		return domain.Payment{}, &domain.ConflictError{ID: id, Expected: expected, Actual: expected}
	}
	return r.PaymentRepository.CompareAndSetStatus(ctx, id, expected, change, eventType, payload)
}

func TestRequestTransition_RetriesOnceAfterConflict(t *testing.T) {
	ctx := context.Background()
	repo := &conflictOnceRepo{PaymentRepository: memory.New()}
	svc := newService(repo)

	p, err := svc.CreatePayment(ctx, createReq())
	require.NoError(t, err)

	got, err := svc.RequestTransition(ctx, p.ID, domain.StatusProcessing, application.TransitionMeta{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.Status)
}

// alwaysConflictRepo never lets a compare-and-set through.
type alwaysConflictRepo struct {
	application.PaymentRepository
}

func (r *alwaysConflictRepo) CompareAndSetStatus(_ context.Context, id string, expected domain.Status, _ domain.StatusChange, _ string, _ []byte) (domain.Payment, error) {
	return domain.Payment{}, &domain.ConflictError{ID: id, Expected: expected, Actual: expected}
}

func TestRequestTransition_SurfacesConflictAfterRetry(t *testing.T) {
	ctx := context.Background()
	repo := &alwaysConflictRepo{PaymentRepository: memory.New()}
	svc := newService(repo)

	p, err := svc.CreatePayment(ctx, createReq())
	require.NoError(t, err)

	_, err = svc.RequestTransition(ctx, p.ID, domain.StatusProcessing, application.TransitionMeta{})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestListPayments_FilterAndOrder(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	svc := newService(repo)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"pmt_a", "pmt_b", "pmt_c"} {
		p := domain.Payment{
			ID:          id,
			OwnerID:     "user_1",
			AmountCents: 100,
			Source:      "acc_bank_1",
			Destination: "acc_card_1",
			Status:      domain.StatusPending,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
			UpdatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.CreateWithOutbox(ctx, p, "PaymentCreated", nil))
	}

	got, err := svc.ListPayments(ctx, application.ListFilter{OwnerID: "user_1"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "pmt_c", got[0].ID, "newest first")
	assert.Equal(t, "pmt_a", got[2].ID)

	got, err = svc.ListPayments(ctx, application.ListFilter{OwnerID: "user_1", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pmt_b", got[0].ID)

	got, err = svc.ListPayments(ctx, application.ListFilter{OwnerID: "user_2"})
	require.NoError(t, err)
	assert.Empty(t, got)
}
