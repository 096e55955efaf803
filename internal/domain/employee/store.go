package employee

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

const employeeColumns = `
    id, user_id, company_id, first_name, last_name, email, cedula, phone, monthly_salary,
    is_active, is_verified, is_approved, self_registered, must_upload_cedula, kyc_submitted_at,
    COALESCE(bank_code, ''), created_at, updated_at`

func scanEmployee(row pgx.Row) (Employee, error) {
	var out Employee
	err := row.Scan(&out.ID, &out.UserID, &out.CompanyID, &out.FirstName, &out.LastName, &out.Email, &out.Cedula,
		&out.Phone, &out.MonthlySalary, &out.IsActive, &out.IsVerified, &out.IsApproved, &out.SelfRegistered,
		&out.MustUploadCedula, &out.KYCSubmittedAt, &out.BankCode, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrNotFound
	}
	return out, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateWithUser inserts the login and the employee row in one transaction.
func (s *Store) CreateWithUser(ctx context.Context, emp NewEmployee, account Account) (Employee, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Employee{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var userID string
	if err := tx.QueryRow(ctx, `
    INSERT INTO users (email, password_hash, role, must_change_password)
    VALUES ($1,$2,$3,$4)
    RETURNING id
  `, strings.ToLower(emp.Email), account.PasswordHash, auth.RoleEmployee, account.MustChangePassword).Scan(&userID); err != nil {
		if isUniqueViolation(err) {
			return Employee{}, ErrDuplicate
		}
		return Employee{}, err
	}

	created, err := scanEmployee(tx.QueryRow(ctx, `
    INSERT INTO employees (user_id, company_id, first_name, last_name, email, cedula, phone, monthly_salary, self_registered)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    RETURNING `+employeeColumns,
		userID, emp.CompanyID, emp.FirstName, emp.LastName, strings.ToLower(emp.Email), emp.Cedula, emp.Phone, emp.MonthlySalary, account.SelfRegistered))
	if err != nil {
		if isUniqueViolation(err) {
			return Employee{}, ErrDuplicate
		}
		return Employee{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Employee{}, err
	}
	return created, nil
}

func (s *Store) CompanyIDByRIF(ctx context.Context, rif string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, "SELECT id FROM companies WHERE rif = $1", rif).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrCompanyNotFound
	}
	return id, err
}

func (s *Store) Get(ctx context.Context, employeeID string) (Employee, error) {
	return scanEmployee(s.DB.QueryRow(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = $1", employeeID))
}

func (s *Store) GetByUserID(ctx context.Context, userID string) (Employee, error) {
	return scanEmployee(s.DB.QueryRow(ctx, "SELECT "+employeeColumns+" FROM employees WHERE user_id = $1", userID))
}

func buildListWhere(companyID string, filter ListFilter) (string, []any) {
	where := "company_id = $1"
	args := []any{companyID}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		where += fmt.Sprintf(" AND (lower(first_name || ' ' || last_name) LIKE $%d OR lower(email) LIKE $%d OR lower(cedula) LIKE $%d)", len(args), len(args), len(args))
	}
	if filter.Approved != nil {
		args = append(args, *filter.Approved)
		where += fmt.Sprintf(" AND is_approved = $%d", len(args))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		where += fmt.Sprintf(" AND is_active = $%d", len(args))
	}
	return where, args
}

func (s *Store) List(ctx context.Context, companyID string, filter ListFilter) ([]Employee, int, error) {
	where, args := buildListWhere(companyID, filter)

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM employees WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + employeeColumns + " FROM employees WHERE " + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, emp)
	}
	return out, total, rows.Err()
}

func (s *Store) SetApproved(ctx context.Context, employeeID string, approved bool) (Employee, error) {
	return scanEmployee(s.DB.QueryRow(ctx, `
    UPDATE employees SET is_approved = $2, is_verified = $2, updated_at = now()
    WHERE id = $1
    RETURNING `+employeeColumns, employeeID, approved))
}

func (s *Store) SetActive(ctx context.Context, employeeID string, active bool) (Employee, error) {
	return scanEmployee(s.DB.QueryRow(ctx, `
    UPDATE employees SET is_active = $2, updated_at = now()
    WHERE id = $1
    RETURNING `+employeeColumns, employeeID, active))
}

func (s *Store) UpdateProfile(ctx context.Context, employeeID string, upd ProfileUpdate) (Employee, error) {
	return scanEmployee(s.DB.QueryRow(ctx, `
    UPDATE employees
    SET phone = COALESCE($2, phone),
        monthly_salary = COALESCE($3, monthly_salary),
        updated_at = now()
    WHERE id = $1
    RETURNING `+employeeColumns, employeeID, upd.Phone, upd.MonthlySalary))
}

// Delete removes an employee without advances together with their login.
func (s *Store) Delete(ctx context.Context, employeeID string) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var hasAdvances bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM advance_transactions WHERE employee_id = $1)", employeeID).Scan(&hasAdvances); err != nil {
		return err
	}
	if hasAdvances {
		return ErrHasAdvances
	}

	var userID string
	err = tx.QueryRow(ctx, "DELETE FROM employees WHERE id = $1 RETURNING user_id", employeeID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM notifications WHERE user_id = $1", userID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM idempotency_keys WHERE user_id = $1", userID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM users WHERE id = $1", userID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) PaymentInfo(ctx context.Context, employeeID string) (SealedPaymentInfo, error) {
	var out SealedPaymentInfo
	err := s.DB.QueryRow(ctx, `
    SELECT COALESCE(bank_code, ''), bank_account_enc, pagomovil_phone_enc, pagomovil_cedula
    FROM employees WHERE id = $1
  `, employeeID).Scan(&out.BankCode, &out.BankAccount, &out.PagoMovilPhone, &out.PagoMovilCedula)
	if errors.Is(err, pgx.ErrNoRows) {
		return SealedPaymentInfo{}, ErrNotFound
	}
	return out, err
}

func (s *Store) UpdatePaymentInfo(ctx context.Context, employeeID string, info SealedPaymentInfo) (Employee, error) {
	return scanEmployee(s.DB.QueryRow(ctx, `
    UPDATE employees
    SET bank_code = NULLIF($2, ''), bank_account_enc = $3, pagomovil_phone_enc = $4, pagomovil_cedula = $5,
        updated_at = now()
    WHERE id = $1
    RETURNING `+employeeColumns, employeeID, info.BankCode, info.BankAccount, info.PagoMovilPhone, info.PagoMovilCedula))
}

func (s *Store) BankExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM banks WHERE code = $1)", code).Scan(&exists)
	return exists, err
}

// MarkKYCSubmitted stores the document key and clears must_upload_cedula.
func (s *Store) MarkKYCSubmitted(ctx context.Context, employeeID, documentKey string) (Employee, error) {
	return scanEmployee(s.DB.QueryRow(ctx, `
    UPDATE employees
    SET kyc_document_key = $2, kyc_submitted_at = now(), must_upload_cedula = false, updated_at = now()
    WHERE id = $1
    RETURNING `+employeeColumns, employeeID, documentKey))
}

func (s *Store) KYCDocumentKey(ctx context.Context, employeeID string) (string, error) {
	var key *string
	err := s.DB.QueryRow(ctx, "SELECT kyc_document_key FROM employees WHERE id = $1", employeeID).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if key == nil {
		return "", ErrNoDocument
	}
	return *key, nil
}

func (s *Store) CompanyUserIDs(ctx context.Context, companyID string) ([]string, error) {
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
