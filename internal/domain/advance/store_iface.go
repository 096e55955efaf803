package advance

import (
	"context"
	"time"
)

// BuildFunc receives the employee's history inside the creation transaction
// and returns the advance to insert, or an error to abort.
type BuildFunc func(history []HistoryEntry) (NewAdvance, error)

type StoreAPI interface {
	ProfileByUserID(ctx context.Context, userID string) (Profile, error)
	ProfileByEmployeeID(ctx context.Context, employeeID string) (Profile, error)
	History(ctx context.Context, employeeID string, from, to time.Time) ([]HistoryEntry, error)
	CreateWithinCap(ctx context.Context, employeeID string, from, to time.Time, build BuildFunc) (Advance, error)
	Get(ctx context.Context, advanceID string) (Advance, error)
	UpdateStatus(ctx context.Context, advanceID string, from, to Status, note string) (Advance, error)
	ListByEmployee(ctx context.Context, employeeID string, limit, offset int) ([]Advance, int, error)
	List(ctx context.Context, filter ListFilter) ([]Advance, int, error)
	CompanyUserIDs(ctx context.Context, companyID string) ([]string, error)
	CompanyName(ctx context.Context, companyID string) (string, error)
}
