package gate

import "context"

type StoreAPI interface {
	LoadSubject(ctx context.Context, userID string) (Subject, error)
}
