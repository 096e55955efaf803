package gate

import (
	"context"
	"time"
)

// BillingCalendar decides whether a date is closed for new requests.
type BillingCalendar func(time.Time) bool

type Service struct {
	store   StoreAPI
	billing BillingCalendar
}

func NewService(store StoreAPI, billing BillingCalendar) *Service {
	return &Service{store: store, billing: billing}
}

type Result struct {
	Subject Subject `json:"-"`
	Flags   Flags   `json:"flags"`
	State   State   `json:"state"`
}

// Evaluate loads the employee behind userID and runs the gate for now.
// justSubmitted is true only on the response to a KYC submission.
func (s *Service) Evaluate(ctx context.Context, userID string, now time.Time, justSubmitted bool) (Result, error) {
	subject, err := s.store.LoadSubject(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	flags := Flags{
		MustChangePassword: subject.MustChangePassword,
		MustUploadCedula:   subject.MustUploadCedula,
		JustSubmittedKYC:   justSubmitted,
		CompanyApproved:    subject.CompanyApproved,
		EmployeeApproved:   subject.EmployeeApproved,
		BillingDate:        s.billing != nil && s.billing(now),
	}
	return Result{Subject: subject, Flags: flags, State: ComputeGateState(flags)}, nil
}
