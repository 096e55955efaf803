package exchangerate

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type StoreAPI interface {
	Latest(ctx context.Context) (Rate, error)
	Upsert(ctx context.Context, rate decimal.Decimal, source string) (Rate, error)
}

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) Latest(ctx context.Context) (Rate, error) {
	var r Rate
	err := s.DB.QueryRow(ctx, "SELECT usd_to_ves, source, updated_at FROM exchange_rate_latest WHERE id = 1").
		Scan(&r.USDToVES, &r.Source, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rate{}, ErrNotFound
	}
	return r, err
}

// Upsert replaces the single latest-rate row.
func (s *Store) Upsert(ctx context.Context, rate decimal.Decimal, source string) (Rate, error) {
	var r Rate
	err := s.DB.QueryRow(ctx, `
    INSERT INTO exchange_rate_latest (id, usd_to_ves, source, updated_at)
    VALUES (1, $1, $2, now())
    ON CONFLICT (id) DO UPDATE SET usd_to_ves = EXCLUDED.usd_to_ves, source = EXCLUDED.source, updated_at = now()
    RETURNING usd_to_ves, source, updated_at
  `, rate, source).Scan(&r.USDToVES, &r.Source, &r.UpdatedAt)
	return r, err
}
