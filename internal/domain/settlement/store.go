package settlement

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"wageadvance/internal/domain/auth"
)

type StoreAPI interface {
	ApprovedCompanyIDs(ctx context.Context) ([]string, error)
	Settle(ctx context.Context, companyID string, billingDate, cutoff time.Time) (Settlement, bool, error)
	ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]Settlement, error)
	CompanyUserIDs(ctx context.Context, companyID string) ([]string, error)
}

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) ApprovedCompanyIDs(ctx context.Context) ([]string, error) {
	return s.ids(ctx, "SELECT id FROM companies WHERE is_approved ORDER BY created_at")
}

func (s *Store) CompanyUserIDs(ctx context.Context, companyID string) ([]string, error) {
	return s.ids(ctx, "SELECT id FROM users WHERE company_id = $1 AND role = $2", companyID, auth.RoleCompany)
}

func (s *Store) ids(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Settle groups the company's unsettled live advances created before cutoff
// into the settlement for billingDate, adding to the existing row when the
// date was already settled. It reports false when nothing new was grouped.
func (s *Store) Settle(ctx context.Context, companyID string, billingDate, cutoff time.Time) (Settlement, bool, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Settlement{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
    SELECT id, requested_amount
    FROM advance_transactions
    WHERE company_id = $1
      AND settlement_id IS NULL
      AND status IN ('approved', 'processing', 'completed')
      AND created_at < $2
    FOR UPDATE
  `, companyID, cutoff)
	if err != nil {
		return Settlement{}, false, err
	}
	var ids []string
	total := decimal.Zero
	for rows.Next() {
		var id string
		var amount decimal.Decimal
		if err := rows.Scan(&id, &amount); err != nil {
			rows.Close()
			return Settlement{}, false, err
		}
		ids = append(ids, id)
		total = total.Add(amount)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Settlement{}, false, err
	}
	if len(ids) == 0 {
		return Settlement{}, false, nil
	}

	var out Settlement
	err = tx.QueryRow(ctx, `
    INSERT INTO settlements (company_id, billing_date, total_amount, advance_count)
    VALUES ($1,$2,$3,$4)
    ON CONFLICT (company_id, billing_date) DO UPDATE
      SET total_amount = settlements.total_amount + EXCLUDED.total_amount,
          advance_count = settlements.advance_count + EXCLUDED.advance_count
    RETURNING id, company_id, billing_date, total_amount, advance_count, created_at
  `, companyID, billingDate, total, len(ids)).Scan(&out.ID, &out.CompanyID, &out.BillingDate, &out.TotalAmount, &out.AdvanceCount, &out.CreatedAt)
	if err != nil {
		return Settlement{}, false, err
	}

	if _, err := tx.Exec(ctx, "UPDATE advance_transactions SET settlement_id = $1 WHERE id = ANY($2::uuid[])", out.ID, ids); err != nil {
		return Settlement{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Settlement{}, false, err
	}
	out.AddedCount = len(ids)
	return out, true, nil
}

func (s *Store) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]Settlement, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, company_id, billing_date, total_amount, advance_count, created_at
    FROM settlements
    WHERE company_id = $1
    ORDER BY billing_date DESC
    LIMIT $2 OFFSET $3
  `, companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Settlement
	for rows.Next() {
		var st Settlement
		if err := rows.Scan(&st.ID, &st.CompanyID, &st.BillingDate, &st.TotalAmount, &st.AdvanceCount, &st.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
