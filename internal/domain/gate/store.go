package gate

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) LoadSubject(ctx context.Context, userID string) (Subject, error) {
	var out Subject
	err := s.DB.QueryRow(ctx, `
    SELECT u.id, e.id, e.company_id, u.must_change_password, e.must_upload_cedula,
           e.kyc_submitted_at, c.is_approved, e.is_approved, e.is_active
    FROM users u
    JOIN employees e ON e.user_id = u.id
    JOIN companies c ON c.id = e.company_id
    WHERE u.id = $1
  `, userID).Scan(&out.UserID, &out.EmployeeID, &out.CompanyID, &out.MustChangePassword, &out.MustUploadCedula,
		&out.KYCSubmittedAt, &out.CompanyApproved, &out.EmployeeApproved, &out.EmployeeActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return Subject{}, ErrNotEmployee
	}
	return out, err
}
