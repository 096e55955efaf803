package advance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const advanceColumns = `
    a.id, a.employee_id, a.company_id, e.first_name || ' ' || e.last_name, e.cedula,
    a.requested_amount, a.fee_amount, a.net_amount, a.status, a.status_note, a.created_at, a.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAdvance(row rowScanner) (Advance, error) {
	var out Advance
	var rawStatus string
	if err := row.Scan(&out.ID, &out.EmployeeID, &out.CompanyID, &out.EmployeeName, &out.EmployeeCedula,
		&out.RequestedAmount, &out.FeeAmount, &out.NetAmount, &rawStatus, &out.StatusNote, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return Advance{}, err
	}
	status, err := ParseStatus(rawStatus)
	if err != nil {
		return Advance{}, fmt.Errorf("advance %s: %w", out.ID, err)
	}
	out.Status = status
	return out, nil
}

func (s *Store) ProfileByUserID(ctx context.Context, userID string) (Profile, error) {
	return s.profile(ctx, "e.user_id = $1", userID)
}

func (s *Store) ProfileByEmployeeID(ctx context.Context, employeeID string) (Profile, error) {
	return s.profile(ctx, "e.id = $1", employeeID)
}

func (s *Store) profile(ctx context.Context, where string, arg string) (Profile, error) {
	var out Profile
	err := s.DB.QueryRow(ctx, `
    SELECT e.id, e.user_id, e.company_id, e.first_name || ' ' || e.last_name, e.cedula, e.monthly_salary, e.is_active
    FROM employees e
    WHERE `+where, arg).Scan(&out.EmployeeID, &out.UserID, &out.CompanyID, &out.FullName, &out.Cedula, &out.MonthlySalary, &out.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrEmployeeNotFound
	}
	return out, err
}

func (s *Store) History(ctx context.Context, employeeID string, from, to time.Time) ([]HistoryEntry, error) {
	return queryHistory(ctx, s.DB, employeeID, from, to)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryHistory(ctx context.Context, q querier, employeeID string, from, to time.Time) ([]HistoryEntry, error) {
	rows, err := q.Query(ctx, `
    SELECT requested_amount, status
    FROM advance_transactions
    WHERE employee_id = $1 AND created_at >= $2 AND created_at < $3
  `, employeeID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		var rawStatus string
		if err := rows.Scan(&entry.RequestedAmount, &rawStatus); err != nil {
			return nil, err
		}
		entry.Status = Status(rawStatus)
		out = append(out, entry)
	}
	return out, rows.Err()
}

// CreateWithinCap locks the employee row so concurrent requests from the same
// employee are evaluated against each other's inserts.
func (s *Store) CreateWithinCap(ctx context.Context, employeeID string, from, to time.Time, build BuildFunc) (Advance, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Advance{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked string
	if err := tx.QueryRow(ctx, "SELECT id FROM employees WHERE id = $1 FOR UPDATE", employeeID).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Advance{}, ErrEmployeeNotFound
		}
		return Advance{}, err
	}

	history, err := queryHistory(ctx, tx, employeeID, from, to)
	if err != nil {
		return Advance{}, err
	}
	next, err := build(history)
	if err != nil {
		return Advance{}, err
	}

	var id string
	if err := tx.QueryRow(ctx, `
    INSERT INTO advance_transactions (employee_id, company_id, requested_amount, fee_amount, net_amount, status)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id
  `, next.EmployeeID, next.CompanyID, next.Quote.RequestedAmount, next.Quote.FeeAmount, next.Quote.NetAmount, StatusPending).Scan(&id); err != nil {
		return Advance{}, err
	}

	created, err := scanAdvance(tx.QueryRow(ctx, `SELECT `+advanceColumns+`
    FROM advance_transactions a
    JOIN employees e ON e.id = a.employee_id
    WHERE a.id = $1`, id))
	if err != nil {
		return Advance{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Advance{}, err
	}
	return created, nil
}

func (s *Store) Get(ctx context.Context, advanceID string) (Advance, error) {
	out, err := scanAdvance(s.DB.QueryRow(ctx, `SELECT `+advanceColumns+`
    FROM advance_transactions a
    JOIN employees e ON e.id = a.employee_id
    WHERE a.id = $1`, advanceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Advance{}, ErrNotFound
	}
	return out, err
}

// UpdateStatus only applies when the row still carries from, so two
// reviewers racing on the same advance cannot both win.
func (s *Store) UpdateStatus(ctx context.Context, advanceID string, from, to Status, note string) (Advance, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE advance_transactions
    SET status = $1, status_note = $2, updated_at = now()
    WHERE id = $3 AND status = $4
  `, to, note, advanceID, from)
	if err != nil {
		return Advance{}, err
	}
	if tag.RowsAffected() == 0 {
		return Advance{}, ErrStatusConflict
	}
	return s.Get(ctx, advanceID)
}

func (s *Store) ListByEmployee(ctx context.Context, employeeID string, limit, offset int) ([]Advance, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM advance_transactions WHERE employee_id = $1", employeeID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.DB.Query(ctx, `SELECT `+advanceColumns+`
    FROM advance_transactions a
    JOIN employees e ON e.id = a.employee_id
    WHERE a.employee_id = $1
    ORDER BY a.created_at DESC
    LIMIT $2 OFFSET $3`, employeeID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out, err := collectAdvances(rows)
	return out, total, err
}

func (s *Store) List(ctx context.Context, filter ListFilter) ([]Advance, int, error) {
	where, args := buildListWhere(filter)
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM advance_transactions a"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + advanceColumns + `
    FROM advance_transactions a
    JOIN employees e ON e.id = a.employee_id` + where + " ORDER BY a.created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, filter.Limit, filter.Offset)
	}
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	out, err := collectAdvances(rows)
	return out, total, err
}

func buildListWhere(filter ListFilter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.CompanyID != "" {
		add("a.company_id = $%d", filter.CompanyID)
	}
	if filter.Status != "" {
		add("a.status = $%d", filter.Status)
	}
	if !filter.From.IsZero() {
		add("a.created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("a.created_at < $%d", filter.To.AddDate(0, 0, 1))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func collectAdvances(rows pgx.Rows) ([]Advance, error) {
	defer rows.Close()
	var out []Advance
	for rows.Next() {
		adv, err := scanAdvance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, adv)
	}
	return out, rows.Err()
}

func (s *Store) CompanyUserIDs(ctx context.Context, companyID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT id FROM users WHERE company_id = $1 AND role = 'company'", companyID)
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

func (s *Store) CompanyName(ctx context.Context, companyID string) (string, error) {
	var name string
	err := s.DB.QueryRow(ctx, "SELECT name FROM companies WHERE id = $1", companyID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return name, err
}
