package company

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"wageadvance/internal/domain/auth"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const companyColumns = "id, name, rif, email, phone, address, is_approved, approved_at, created_at"

func scanCompany(row pgx.Row) (Company, error) {
	var c Company
	err := row.Scan(&c.ID, &c.Name, &c.RIF, &c.Email, &c.Phone, &c.Address, &c.IsApproved, &c.ApprovedAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Company{}, ErrNotFound
	}
	return c, err
}

// CreateWithUser inserts the company and its first login atomically.
func (s *Store) CreateWithUser(ctx context.Context, reg Registration, passwordHash string) (Company, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Company{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created, err := scanCompany(tx.QueryRow(ctx, `
    INSERT INTO companies (name, rif, email, phone, address)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING `+companyColumns, reg.Name, reg.RIF, reg.Email, reg.Phone, reg.Address))
	if err != nil {
		return Company{}, translateUnique(err)
	}
	if _, err := tx.Exec(ctx, `
    INSERT INTO users (email, password_hash, role, company_id)
    VALUES ($1,$2,$3,$4)
  `, reg.Email, passwordHash, auth.RoleCompany, created.ID); err != nil {
		return Company{}, translateUnique(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Company{}, err
	}
	return created, nil
}

func translateUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func (s *Store) Get(ctx context.Context, companyID string) (Company, error) {
	return scanCompany(s.DB.QueryRow(ctx, "SELECT "+companyColumns+" FROM companies WHERE id = $1", companyID))
}

func (s *Store) List(ctx context.Context, filter ListFilter) ([]Company, int, error) {
	where := "WHERE true"
	var args []any
	if filter.Approved != nil {
		args = append(args, *filter.Approved)
		where += fmt.Sprintf(" AND is_approved = $%d", len(args))
	}

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM companies "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + companyColumns + " FROM companies " + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (s *Store) SetApproved(ctx context.Context, companyID string, approved bool) (Company, error) {
	return scanCompany(s.DB.QueryRow(ctx, `
    UPDATE companies
    SET is_approved = $2, approved_at = CASE WHEN $2 THEN now() ELSE NULL END
    WHERE id = $1
    RETURNING `+companyColumns, companyID, approved))
}

func (s *Store) UserIDs(ctx context.Context, companyID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT id FROM users WHERE company_id = $1 AND role = $2", companyID, auth.RoleCompany)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
