package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrIdempotencyConflict = errors.New("idempotency key conflicts with existing request")

// IdempotencyWindow bounds how long a key replays its stored response. After
// it elapses the key may be reused for a new request.
const IdempotencyWindow = 24 * time.Hour

// IdempotencyStore keeps the first response for each (user, endpoint, key)
// so retried advance requests replay instead of booking twice.
type IdempotencyStore struct {
	db     *pgxpool.Pool
	window time.Duration
}

func NewIdempotencyStore(db *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{db: db, window: IdempotencyWindow}
}

// RequestHash fingerprints a request body. A key replayed with a different
// body is a conflict.
func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (s *IdempotencyStore) Check(ctx context.Context, userID, endpoint, key, requestHash string) (json.RawMessage, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, nil
	}
	var (
		hash     string
		response json.RawMessage
	)
	err := s.db.QueryRow(ctx, `
    SELECT request_hash, response_json
    FROM idempotency_keys
    WHERE user_id = $1 AND endpoint = $2 AND key = $3
      AND created_at > now() - make_interval(secs => $4)
  `, userID, endpoint, key, s.window.Seconds()).Scan(&hash, &response)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	case hash != requestHash:
		return nil, false, ErrIdempotencyConflict
	}
	return response, true, nil
}

// Save records response under key. An expired row is replaced; a live row
// with another hash is a conflict.
func (s *IdempotencyStore) Save(ctx context.Context, userID, endpoint, key, requestHash string, response json.RawMessage) error {
	if s == nil || s.db == nil {
		return nil
	}
	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (user_id, endpoint, key, request_hash, response_json)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT (user_id, key, endpoint) DO UPDATE
      SET request_hash = EXCLUDED.request_hash,
          response_json = EXCLUDED.response_json,
          created_at = now()
      WHERE idempotency_keys.request_hash = EXCLUDED.request_hash
         OR idempotency_keys.created_at <= now() - make_interval(secs => $6)
  `, userID, endpoint, key, requestHash, response, s.window.Seconds())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}
