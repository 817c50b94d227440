package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/agentpay/agentpay-backend/internal/entity/domain"
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
		CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			entity_id TEXT NOT NULL REFERENCES entities(id),
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			name TEXT NOT NULL,
			brand TEXT NOT NULL DEFAULT '',
			last_four TEXT NOT NULL DEFAULT '',
			balance_cents BIGINT NOT NULL DEFAULT 0,
			exp_month INT NOT NULL DEFAULT 0,
			exp_year INT NOT NULL DEFAULT 0,
			liability JSONB,
			bank_name TEXT NOT NULL DEFAULT '',
			routing_number TEXT NOT NULL DEFAULT '',
			account_subtype TEXT NOT NULL DEFAULT '',
			simulated BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS accounts_entity_idx ON accounts (entity_id, created_at DESC);
	`)
	return err
}

func (r *Repository) CreateEntity(ctx context.Context, e domain.Entity) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO entities
		(id, user_id, type, first_name, last_name, email, phone, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		e.ID, e.UserID, e.Type, e.FirstName, e.LastName, e.Email, e.Phone, e.Status, e.CreatedAt, e.UpdatedAt)
	return err
}

func (r *Repository) GetByUserID(ctx context.Context, userID string) (domain.Entity, error) {
	var e domain.Entity
	err := r.pool.QueryRow(ctx, `SELECT id, user_id, type, first_name, last_name, email, phone, status, created_at, updated_at
		FROM entities WHERE user_id=$1`, userID).
		Scan(&e.ID, &e.UserID, &e.Type, &e.FirstName, &e.LastName, &e.Email, &e.Phone, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Entity{}, &domain.NotFoundError{What: "entity"}
	}
	return e, err
}

func (r *Repository) CreateAccount(ctx context.Context, a domain.Account) error {
	var liability []byte
	if a.Liability != nil {
		var err error
		liability, err = json.Marshal(a.Liability)
		if err != nil {
			return err
		}
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO accounts
		(id, entity_id, type, status, name, brand, last_four, balance_cents, exp_month, exp_year,
		liability, bank_name, routing_number, account_subtype, simulated, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		a.ID, a.EntityID, a.Type, a.Status, a.Name, a.Brand, a.LastFour, a.BalanceCents, a.ExpMonth, a.ExpYear,
		liability, a.BankName, a.RoutingNumber, a.AccountSubtype, a.Simulated, a.CreatedAt, a.UpdatedAt)
	return err
}

func (r *Repository) ListAccounts(ctx context.Context, entityID string) ([]domain.Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, entity_id, type, status, name, brand, last_four, balance_cents,
		exp_month, exp_year, liability, bank_name, routing_number, account_subtype, simulated, created_at, updated_at
		FROM accounts WHERE entity_id=$1 ORDER BY created_at DESC`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		var a domain.Account
		var liability []byte
		if err := rows.Scan(&a.ID, &a.EntityID, &a.Type, &a.Status, &a.Name, &a.Brand, &a.LastFour, &a.BalanceCents,
			&a.ExpMonth, &a.ExpYear, &liability, &a.BankName, &a.RoutingNumber, &a.AccountSubtype, &a.Simulated,
			&a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		if len(liability) > 0 {
			a.Liability = &domain.Liability{}
			if err := json.Unmarshal(liability, a.Liability); err != nil {
				return nil, err
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
