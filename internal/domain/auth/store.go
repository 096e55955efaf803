package auth

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

// employees.company_id covers employee users, whose users row has none.
const userSelect = `
    SELECT u.id, u.email, u.role, COALESCE(u.company_id::text, e.company_id::text, ''),
           u.must_change_password, u.last_login, u.password_hash
    FROM users u
    LEFT JOIN employees e ON e.user_id = u.id
`

func scanUser(row pgx.Row) (User, error) {
	var out User
	err := row.Scan(&out.ID, &out.Email, &out.Role, &out.CompanyID, &out.MustChangePassword, &out.LastLogin, &out.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return out, err
}

func (s *Store) UserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(s.DB.QueryRow(ctx, userSelect+" WHERE lower(u.email) = lower($1)", email))
}

func (s *Store) UserByID(ctx context.Context, userID string) (User, error) {
	return scanUser(s.DB.QueryRow(ctx, userSelect+" WHERE u.id = $1", userID))
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login = now() WHERE id = $1", userID)
	return err
}

// UpdatePassword also clears the forced-change flag.
func (s *Store) UpdatePassword(ctx context.Context, userID, hash string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE users SET password_hash = $1, must_change_password = false WHERE id = $2
  `, hash, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
