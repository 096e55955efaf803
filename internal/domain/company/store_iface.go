package company

import "context"

type StoreAPI interface {
	CreateWithUser(ctx context.Context, reg Registration, passwordHash string) (Company, error)
	Get(ctx context.Context, companyID string) (Company, error)
	List(ctx context.Context, filter ListFilter) ([]Company, int, error)
	SetApproved(ctx context.Context, companyID string, approved bool) (Company, error)
	UserIDs(ctx context.Context, companyID string) ([]string, error)
}
