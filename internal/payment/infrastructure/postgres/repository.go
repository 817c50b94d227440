package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agentpay/agentpay-backend/internal/payment/application"
	"github.com/agentpay/agentpay-backend/internal/payment/domain"
	"github.com/agentpay/agentpay-backend/pkg/tracing"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
			source TEXT NOT NULL,
			destination TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			error_code TEXT NOT NULL DEFAULT '',
			source_settlement_date TIMESTAMPTZ,
			destination_settlement_date TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			CHECK (source <> destination)
		);
		CREATE INDEX IF NOT EXISTS payments_owner_created_idx ON payments (owner_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS outbox (
			id BIGSERIAL PRIMARY KEY,
			aggregate_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			type TEXT NOT NULL,
			payload JSONB NOT NULL,
			traceparent TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			relay_id TEXT,
			lease_until TIMESTAMPTZ,
			retry_count INT NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (status, id);
	`)
	return err
}

const paymentColumns = `id, owner_id, amount_cents, source, destination, description, status, error_code,
	source_settlement_date, destination_settlement_date, created_at, updated_at`

func (r *Repository) CreateWithOutbox(ctx context.Context, p domain.Payment, eventType string, payload []byte) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		p.ID, p.OwnerID, p.AmountCents, p.Source, p.Destination, p.Description, p.Status, p.ErrorCode,
		p.SourceSettlementDate, p.DestinationSettlementDate, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return err
	}

	if err := insertOutbox(ctx, tx, p.ID, eventType, payload, tracing.Traceparent(ctx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id)
	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Payment{}, &domain.NotFoundError{ID: id}
	}
	return p, err
}

func (r *Repository) CompareAndSetStatus(ctx context.Context, id string, expected domain.Status, change domain.StatusChange, eventType string, payload []byte) (domain.Payment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Payment{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx, `UPDATE payments
		SET status=$3, error_code=$4, source_settlement_date=$5, destination_settlement_date=$6, updated_at=$7
		WHERE id=$1 AND status=$2
		RETURNING `+paymentColumns,
		id, expected, change.Status, change.ErrorCode,
		change.SourceSettlementDate, change.DestinationSettlementDate, change.UpdatedAt)

	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// No row matched: either the payment is gone or the status moved.
		var actual domain.Status
		err := tx.QueryRow(ctx, `SELECT status FROM payments WHERE id=$1`, id).Scan(&actual)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Payment{}, &domain.NotFoundError{ID: id}
		}
		if err != nil {
			return domain.Payment{}, err
		}
		return domain.Payment{}, &domain.ConflictError{ID: id, Expected: expected, Actual: actual}
	}
	if err != nil {
		return domain.Payment{}, err
	}

	if err := insertOutbox(ctx, tx, id, eventType, payload, tracing.Traceparent(ctx)); err != nil {
		return domain.Payment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Payment{}, err
	}
	return p, nil
}

func (r *Repository) List(ctx context.Context, filter application.ListFilter) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE 1=1`
	args := []any{}
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		query += fmt.Sprintf(" AND owner_id=$%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateID, eventType string, payload []byte, traceparent string) error {
	_, err := tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,'pending')`,
		"payment", aggregateID, eventType, payload, traceparent)
	return err
}

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(&p.ID, &p.OwnerID, &p.AmountCents, &p.Source, &p.Destination, &p.Description,
		&p.Status, &p.ErrorCode, &p.SourceSettlementDate, &p.DestinationSettlementDate,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}
