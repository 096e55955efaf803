package advance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"wageadvance/internal/domain/auth"
	"wageadvance/internal/domain/gate"
	"wageadvance/internal/domain/notifications"
)

type Gatekeeper interface {
	Evaluate(ctx context.Context, userID string, now time.Time, justSubmitted bool) (gate.Result, error)
}

type Notifier interface {
	Create(ctx context.Context, userID, ntype, title, body string) error
}

type Service struct {
	store    StoreAPI
	gate     Gatekeeper
	calc     Calculator
	fees     FeePolicy
	notifier Notifier
	Now      func() time.Time
}

func NewService(store StoreAPI, gatekeeper Gatekeeper, calc Calculator, fees FeePolicy, notifier Notifier) *Service {
	return &Service{
		store:    store,
		gate:     gatekeeper,
		calc:     calc,
		fees:     fees,
		notifier: notifier,
		Now:      time.Now,
	}
}

// Overview returns what the employee could request right now. UsedAmount
// counts only live advances created between MonthStart and MonthEnd of the
// reference month, not the employee's whole history.
func (s *Service) Overview(ctx context.Context, userID string) (Overview, error) {
	now := s.Now()
	profile, err := s.store.ProfileByUserID(ctx, userID)
	if err != nil {
		return Overview{}, err
	}
	history, err := s.store.History(ctx, profile.EmployeeID, MonthStart(now), MonthEnd(now))
	if err != nil {
		return Overview{}, err
	}
	elig, err := s.calc.Compute(now, profile.MonthlySalary, history)
	if err != nil {
		return Overview{}, err
	}
	return Overview{
		Eligibility: elig,
		FeeRate:     s.fees.Rate.String(),
		MinAmount:   s.fees.Minimum.StringFixed(2),
	}, nil
}

func (s *Service) Quote(amount decimal.Decimal) Quote {
	return s.fees.Quote(amount)
}

func (s *Service) Request(ctx context.Context, userID string, amount decimal.Decimal) (Advance, error) {
	now := s.Now()
	res, err := s.gate.Evaluate(ctx, userID, now, false)
	if err != nil {
		return Advance{}, err
	}
	if res.State.Screen != gate.ScreenDashboard {
		return Advance{}, fmt.Errorf("%w: %s", ErrGateClosed, res.State.Screen)
	}
	if !res.State.RequestFormEnabled {
		return Advance{}, ErrBillingDate
	}

	profile, err := s.store.ProfileByUserID(ctx, userID)
	if err != nil {
		return Advance{}, err
	}
	if !profile.Active {
		return Advance{}, ErrInactiveEmployee
	}
	if !amount.IsPositive() {
		return Advance{}, ErrInvalidAmount
	}
	if amount.LessThan(s.fees.Minimum) {
		return Advance{}, ErrBelowMinimum
	}

	created, err := s.store.CreateWithinCap(ctx, profile.EmployeeID, MonthStart(now), MonthEnd(now), func(history []HistoryEntry) (NewAdvance, error) {
		elig, err := s.calc.Compute(now, profile.MonthlySalary, history)
		if err != nil {
			return NewAdvance{}, err
		}
		if round2(amount).GreaterThan(elig.AvailableAmount) {
			return NewAdvance{}, fmt.Errorf("%w: available %s", ErrExceedsAvailable, elig.AvailableAmount.StringFixed(2))
		}
		return NewAdvance{
			EmployeeID: profile.EmployeeID,
			CompanyID:  profile.CompanyID,
			Quote:      s.fees.Quote(amount),
		}, nil
	})
	if err != nil {
		return Advance{}, err
	}

	s.notifyCompany(ctx, created)
	return created, nil
}

// Transition moves an advance along its lifecycle on behalf of actor.
func (s *Service) Transition(ctx context.Context, actor Actor, advanceID string, to Status, note string) (Advance, error) {
	if !to.Valid() {
		return Advance{}, ErrUnknownStatus
	}
	current, err := s.store.Get(ctx, advanceID)
	if err != nil {
		return Advance{}, err
	}
	if err := s.authorize(ctx, actor, current, to); err != nil {
		return Advance{}, err
	}
	if !CanTransition(current.Status, to) {
		return Advance{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
	}

	updated, err := s.store.UpdateStatus(ctx, advanceID, current.Status, to, note)
	if err != nil {
		return Advance{}, err
	}
	s.notifyEmployee(ctx, updated)
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, actor Actor, advanceID string) (Advance, error) {
	return s.Transition(ctx, actor, advanceID, StatusCancelled, "cancelled by requester")
}

func (s *Service) authorize(ctx context.Context, actor Actor, adv Advance, to Status) error {
	switch actor.Role {
	case auth.RoleOperator:
		return nil
	case auth.RoleCompany:
		if actor.CompanyID == "" || actor.CompanyID != adv.CompanyID {
			return ErrForbidden
		}
		switch to {
		case StatusApproved, StatusRejected, StatusCancelled:
			return nil
		}
		return ErrForbidden
	case auth.RoleEmployee:
		if to != StatusCancelled {
			return ErrForbidden
		}
		if err := s.ownAdvance(ctx, actor, adv); err != nil {
			return err
		}
		if adv.Status != StatusPending {
			return fmt.Errorf("%w: employees may only cancel pending advances", ErrInvalidTransition)
		}
		return nil
	}
	return ErrForbidden
}

func (s *Service) ownAdvance(ctx context.Context, actor Actor, adv Advance) error {
	profile, err := s.store.ProfileByUserID(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if profile.EmployeeID != adv.EmployeeID {
		return ErrForbidden
	}
	return nil
}

// Get returns an advance if actor may see it.
func (s *Service) Get(ctx context.Context, actor Actor, advanceID string) (Advance, error) {
	adv, err := s.store.Get(ctx, advanceID)
	if err != nil {
		return Advance{}, err
	}
	switch actor.Role {
	case auth.RoleOperator:
		return adv, nil
	case auth.RoleCompany:
		if actor.CompanyID != adv.CompanyID {
			return Advance{}, ErrForbidden
		}
		return adv, nil
	case auth.RoleEmployee:
		if err := s.ownAdvance(ctx, actor, adv); err != nil {
			return Advance{}, err
		}
		return adv, nil
	}
	return Advance{}, ErrForbidden
}

func (s *Service) ListForEmployee(ctx context.Context, userID string, limit, offset int) ([]Advance, int, error) {
	profile, err := s.store.ProfileByUserID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return s.store.ListByEmployee(ctx, profile.EmployeeID, limit, offset)
}

// List scopes the filter to the actor: company users only ever see their
// own company; operators see everything unless they filter.
func (s *Service) List(ctx context.Context, actor Actor, filter ListFilter) ([]Advance, int, error) {
	switch actor.Role {
	case auth.RoleOperator:
	case auth.RoleCompany:
		filter.CompanyID = actor.CompanyID
	default:
		return nil, 0, ErrForbidden
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, ErrUnknownStatus
	}
	return s.store.List(ctx, filter)
}

// ReceiptPDF renders the receipt of an advance actor may see.
func (s *Service) ReceiptPDF(ctx context.Context, actor Actor, advanceID string) ([]byte, error) {
	adv, err := s.Get(ctx, actor, advanceID)
	if err != nil {
		return nil, err
	}
	companyName, err := s.store.CompanyName(ctx, adv.CompanyID)
	if err != nil {
		return nil, err
	}
	return Receipt(adv, companyName)
}

// Report exports the advances matching filter, scoped like List and capped
// at reportLimit rows.
func (s *Service) Report(ctx context.Context, actor Actor, filter ListFilter, format string) (Report, error) {
	if format != "" && format != FormatCSV && format != FormatXLSX {
		return Report{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	filter.Limit = reportLimit
	filter.Offset = 0
	advances, _, err := s.List(ctx, actor, filter)
	if err != nil {
		return Report{}, err
	}
	return BuildReport(advances, format)
}

const reportLimit = 10000

func (s *Service) notifyCompany(ctx context.Context, adv Advance) {
	if s.notifier == nil {
		return
	}
	userIDs, err := s.store.CompanyUserIDs(ctx, adv.CompanyID)
	if err != nil {
		slog.Warn("advance company users lookup failed", "advanceId", adv.ID, "err", err)
		return
	}
	title := "New advance request"
	body := fmt.Sprintf("%s requested an advance of %s.", adv.EmployeeName, adv.RequestedAmount.StringFixed(2))
	for _, userID := range userIDs {
		if err := s.notifier.Create(ctx, userID, notifications.TypeAdvanceRequested, title, body); err != nil {
			slog.Warn("advance request notification failed", "advanceId", adv.ID, "userId", userID, "err", err)
		}
	}
}

func (s *Service) notifyEmployee(ctx context.Context, adv Advance) {
	if s.notifier == nil {
		return
	}
	profile, err := s.store.ProfileByEmployeeID(ctx, adv.EmployeeID)
	if err != nil {
		slog.Warn("advance employee lookup failed", "advanceId", adv.ID, "err", err)
		return
	}
	title := fmt.Sprintf("Advance %s", adv.Status)
	body := fmt.Sprintf("Your advance of %s is now %s.", adv.RequestedAmount.StringFixed(2), adv.Status)
	if adv.StatusNote != "" {
		body += " " + adv.StatusNote
	}
	if err := s.notifier.Create(ctx, profile.UserID, notifications.TypeAdvanceStatusChanged, title, body); err != nil {
		slog.Warn("advance status notification failed", "advanceId", adv.ID, "err", err)
	}
}
