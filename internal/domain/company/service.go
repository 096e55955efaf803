package company

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"wageadvance/internal/domain/auth"
	"wageadvance/internal/domain/notifications"
)

var rifPattern = regexp.MustCompile(`^([JGVEP])-?(\d{8})-?(\d)$`)

// NormalizeRIF returns the canonical "J-12345678-9" form of a tax id.
func NormalizeRIF(raw string) (string, error) {
	value := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), ".", ""))
	m := rifPattern.FindStringSubmatch(value)
	if m == nil {
		return "", ErrInvalidRIF
	}
	return m[1] + "-" + m[2] + "-" + m[3], nil
}

type Notifier interface {
	Create(ctx context.Context, userID, ntype, title, body string) error
}

type Service struct {
	store    StoreAPI
	notifier Notifier
}

func NewService(store StoreAPI, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// Register creates an unapproved company with its first login. The company
// cannot act on advances until an operator approves it.
func (s *Service) Register(ctx context.Context, reg Registration) (Company, error) {
	rif, err := NormalizeRIF(reg.RIF)
	if err != nil {
		return Company{}, err
	}
	if err := auth.ValidatePassword(reg.Password); err != nil {
		return Company{}, err
	}
	reg.RIF = rif
	reg.Name = strings.TrimSpace(reg.Name)
	reg.Email = strings.ToLower(strings.TrimSpace(reg.Email))
	reg.Phone = strings.TrimSpace(reg.Phone)
	reg.Address = strings.TrimSpace(reg.Address)

	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return Company{}, err
	}
	return s.store.CreateWithUser(ctx, reg, hash)
}

func (s *Service) Get(ctx context.Context, companyID string) (Company, error) {
	return s.store.Get(ctx, companyID)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Company, int, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.store.List(ctx, filter)
}

func (s *Service) SetApproved(ctx context.Context, companyID string, approved bool) (Company, error) {
	updated, err := s.store.SetApproved(ctx, companyID, approved)
	if err != nil {
		return Company{}, err
	}
	if approved {
		s.notifyUsers(ctx, updated)
	}
	return updated, nil
}

func (s *Service) notifyUsers(ctx context.Context, c Company) {
	if s.notifier == nil {
		return
	}
	userIDs, err := s.store.UserIDs(ctx, c.ID)
	if err != nil {
		slog.Warn("company users lookup failed", "companyId", c.ID, "err", err)
		return
	}
	for _, userID := range userIDs {
		if err := s.notifier.Create(ctx, userID, notifications.TypeCompanyApproved,
			"Company approved", c.Name+" was approved. Your employees can now request advances."); err != nil {
			slog.Warn("company approval notification failed", "companyId", c.ID, "err", err)
		}
	}
}
