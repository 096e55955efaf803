package banks

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Bank struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type StoreAPI interface {
	List(ctx context.Context) ([]Bank, error)
}

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) List(ctx context.Context) ([]Bank, error) {
	rows, err := s.DB.Query(ctx, "SELECT code, name FROM banks ORDER BY code")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Bank
	for rows.Next() {
		var b Bank
		if err := rows.Scan(&b.Code, &b.Name); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Service serves the bank list. The list only changes through migrations
// and seeds, so it is loaded once and kept.
type Service struct {
	store StoreAPI

	mu    sync.Mutex
	banks []Bank
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context) ([]Bank, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.banks != nil {
		return s.banks, nil
	}
	banks, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if banks == nil {
		banks = []Bank{}
	}
	s.banks = banks
	return banks, nil
}
