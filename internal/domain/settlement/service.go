package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wageadvance/internal/domain/advance"
	"wageadvance/internal/domain/notifications"
)

type Notifier interface {
	Create(ctx context.Context, userID, ntype, title, body string) error
}

type Service struct {
	store    StoreAPI
	notifier Notifier
	Now      func() time.Time
}

func NewService(store StoreAPI, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier, Now: time.Now}
}

// Run settles every approved company when today is a billing date. Running
// it again on the same date adds advances not already grouped to that
// date's settlement.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	now := s.Now()
	billingDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	summary := Summary{BillingDate: billingDate.Format(time.DateOnly), Settled: []Settlement{}}
	if !advance.IsBillingDate(now) {
		summary.Skipped = true
		return summary, nil
	}

	companyIDs, err := s.store.ApprovedCompanyIDs(ctx)
	if err != nil {
		return summary, err
	}
	summary.Companies = len(companyIDs)
	cutoff := billingDate.AddDate(0, 0, 1)

	for _, companyID := range companyIDs {
		st, grouped, err := s.store.Settle(ctx, companyID, billingDate, cutoff)
		if err != nil {
			slog.Warn("settlement failed", "companyId", companyID, "err", err)
			summary.Failed = append(summary.Failed, companyID)
			continue
		}
		if !grouped {
			continue
		}
		summary.Settled = append(summary.Settled, st)
		s.notify(ctx, st)
	}
	if len(summary.Failed) > 0 {
		return summary, fmt.Errorf("settlement failed for %d companies", len(summary.Failed))
	}
	return summary, nil
}

func (s *Service) List(ctx context.Context, companyID string, limit, offset int) ([]Settlement, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListByCompany(ctx, companyID, limit, offset)
}

func (s *Service) notify(ctx context.Context, st Settlement) {
	if s.notifier == nil {
		return
	}
	userIDs, err := s.store.CompanyUserIDs(ctx, st.CompanyID)
	if err != nil {
		slog.Warn("settlement users lookup failed", "companyId", st.CompanyID, "err", err)
		return
	}
	title := "Payroll deduction due"
	body := fmt.Sprintf("%d advances totalling %s are due for deduction on %s.",
		st.AdvanceCount, st.TotalAmount.StringFixed(2), st.BillingDate.Format(time.DateOnly))
	for _, userID := range userIDs {
		if err := s.notifier.Create(ctx, userID, notifications.TypeSettlementDue, title, body); err != nil {
			slog.Warn("settlement notification failed", "companyId", st.CompanyID, "userId", userID, "err", err)
		}
	}
}
