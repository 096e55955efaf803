package exchangerate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const cacheKey = "exchange_rate:latest"

// Service serves the latest USD to VES rate. Reads go through Redis when a
// client is configured; a Redis failure falls back to the database.
type Service struct {
	store StoreAPI
	cache *redis.Client
	ttl   time.Duration
}

func NewService(store StoreAPI, cache *redis.Client, ttl time.Duration) *Service {
	return &Service{store: store, cache: cache, ttl: ttl}
}

func (s *Service) Latest(ctx context.Context) (Rate, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, cacheKey).Bytes()
		switch {
		case err == nil:
			var r Rate
			if err := json.Unmarshal(raw, &r); err == nil {
				return r, nil
			}
			slog.Warn("exchange rate cache entry unreadable", "err", err)
		case !errors.Is(err, redis.Nil):
			slog.Warn("exchange rate cache read failed", "err", err)
		}
	}

	r, err := s.store.Latest(ctx)
	if err != nil {
		return Rate{}, err
	}
	s.remember(ctx, r)
	return r, nil
}

// Publish stores a new rate and drops the cached one.
func (s *Service) Publish(ctx context.Context, rate decimal.Decimal, source string) (Rate, error) {
	if !rate.IsPositive() {
		return Rate{}, ErrInvalidRate
	}
	r, err := s.store.Upsert(ctx, rate.Round(4), strings.TrimSpace(source))
	if err != nil {
		return Rate{}, err
	}
	if s.cache != nil {
		if err := s.cache.Del(ctx, cacheKey).Err(); err != nil {
			slog.Warn("exchange rate cache invalidation failed", "err", err)
		}
	}
	return r, nil
}

// Convert returns usd in bolivares at the latest rate, rounded to cents.
func (s *Service) Convert(ctx context.Context, usd decimal.Decimal) (Conversion, error) {
	if usd.IsNegative() {
		return Conversion{}, ErrInvalidUSD
	}
	r, err := s.Latest(ctx)
	if err != nil {
		return Conversion{}, err
	}
	return Conversion{USD: usd, VES: usd.Mul(r.USDToVES).Round(2), Rate: r}, nil
}

func (s *Service) remember(ctx context.Context, r Rate) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey, raw, s.ttl).Err(); err != nil {
		slog.Warn("exchange rate cache write failed", "err", err)
	}
}
