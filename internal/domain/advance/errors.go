package advance

import "errors"

var (
	ErrNotFound           = errors.New("advance not found")
	ErrEmployeeNotFound   = errors.New("employee not found")
	ErrUnknownStatus      = errors.New("unknown advance status")
	ErrNoWeekdays         = errors.New("reference month has no weekdays")
	ErrNegativeSalary     = errors.New("monthly salary must not be negative")
	ErrInvalidAmount      = errors.New("requested amount must be positive")
	ErrBelowMinimum       = errors.New("requested amount is below the minimum advance")
	ErrExceedsAvailable   = errors.New("requested amount exceeds available amount")
	ErrBillingDate        = errors.New("advance requests are closed on billing dates")
	ErrGateClosed         = errors.New("employee is not cleared to request advances")
	ErrInactiveEmployee   = errors.New("employee is not active")
	ErrInvalidTransition  = errors.New("advance status transition not allowed")
	ErrStatusConflict     = errors.New("advance status changed concurrently")
	ErrForbidden          = errors.New("actor may not act on this advance")
	ErrUnsupportedFormat  = errors.New("unsupported report format")
)
