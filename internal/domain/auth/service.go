package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"
)

type Service struct {
	store  StoreAPI
	secret string
	ttl    time.Duration
	Now    func() time.Time
}

func NewService(store StoreAPI, secret string, ttl time.Duration) *Service {
	return &Service{store: store, secret: secret, ttl: ttl, Now: time.Now}
}

// Login checks credentials and issues an access token. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.store.UserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	session, err := s.issue(user)
	if err != nil {
		return Session{}, err
	}
	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("last login update failed", "userId", user.ID, "err", err)
	}
	return session, nil
}

func (s *Service) issue(user User) (Session, error) {
	token, err := GenerateToken(s.secret, Claims{UserID: user.ID, Role: user.Role, CompanyID: user.CompanyID}, s.ttl)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: s.Now().Add(s.ttl), User: user}, nil
}

func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	return s.store.UserByID(ctx, userID)
}

// ChangePassword verifies the current password, stores the new hash and
// clears must_change_password. The returned session reflects the cleared flag.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) (Session, error) {
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if err := CheckPassword(user.PasswordHash, current); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	if current == next {
		return Session{}, ErrSamePassword
	}
	if err := ValidatePassword(next); err != nil {
		return Session{}, err
	}
	hash, err := HashPassword(next)
	if err != nil {
		return Session{}, err
	}
	if err := s.store.UpdatePassword(ctx, userID, hash); err != nil {
		return Session{}, err
	}
	user.MustChangePassword = false
	user.PasswordHash = hash
	return s.issue(user)
}

// MaxPasswordBytes is the longest input bcrypt will hash.
const MaxPasswordBytes = 72

// ValidatePassword requires 8 to MaxPasswordBytes bytes mixing letters and digits.
func ValidatePassword(password string) error {
	if len(password) < 8 || len(password) > MaxPasswordBytes {
		return ErrWeakPassword
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return ErrWeakPassword
	}
	return nil
}
