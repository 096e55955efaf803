package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"wageadvance/internal/transport/http/api"
	"wageadvance/internal/transport/http/shared"
)

type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*limiter)

// limiter enforces one limit per key. Counter failures fall back to the
// in-process counter.
type limiter struct {
	name     string
	limit    int
	window   time.Duration
	keyFn    RateLimitKeyFunc
	counter  WindowCounter
	fallback *MemoryCounter
}

func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(l *limiter) {
		if fn != nil {
			l.keyFn = fn
		}
	}
}

// WithCounter stores windows in counter, typically a RedisCounter.
func WithCounter(counter WindowCounter) RateLimitOption {
	return func(l *limiter) {
		if counter != nil {
			l.counter = counter
		}
	}
}

func newLimiter(name string, limit int, window time.Duration, keyFn RateLimitKeyFunc, opts ...RateLimitOption) *limiter {
	fallback := NewMemoryCounter()
	l := &limiter{name: name, limit: limit, window: window, keyFn: keyFn, counter: fallback, fallback: fallback}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RateLimit applies a general per-actor (or per-IP) limit to every request.
func RateLimit(limit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	l := newLimiter("all", limit, window, actorOrIPKey, opts...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.allow(w, r) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// SensitiveMutationRateLimit adds tighter limits on credential endpoints
// (a quarter of base, by IP and by submitted email) and on money or approval
// mutations (half of base, by actor). Reads pass untouched.
func SensitiveMutationRateLimit(baseLimit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	credentialLimit := max(baseLimit/4, 1)
	byIP := newLimiter("credentials-ip", credentialLimit, window, clientIPKey, opts...)
	byEmail := newLimiter("credentials-email", credentialLimit, window, AuthEmailOrIPKey("email"), opts...)
	byActor := newLimiter("mutations", max(baseLimit/2, 1), window, actorOrIPKey, opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch classifyMutation(r) {
			case mutationCredentials:
				if !byIP.allow(w, r) || !byEmail.allow(w, r) {
					return
				}
			case mutationMoneyOrApproval:
				if !byActor.allow(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *limiter) allow(w http.ResponseWriter, r *http.Request) bool {
	if l.limit <= 0 {
		return true
	}
	key := l.keyFn(r)
	if key == "" {
		key = clientIPKey(r)
	}
	key = l.name + ":" + key

	count, resetIn, err := l.counter.Hit(r.Context(), key, l.window)
	if err != nil {
		slog.Warn("rate limit counter unavailable, counting locally", "limiter", l.name, "err", err)
		count, resetIn, _ = l.fallback.Hit(r.Context(), key, l.window)
	}
	resetSec := ceilSeconds(resetIn)

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(l.limit-count, 0)))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetSec))
	if count <= l.limit {
		return true
	}

	w.Header().Set("Retry-After", strconv.Itoa(max(resetSec, 1)))
	slog.Warn("rate limit exceeded", "limiter", l.name, "key", key, "method", r.Method, "path", r.URL.Path, "limit", l.limit)
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// AuthEmailOrIPKey keys credential attempts by a JSON body field, or by IP
// when the field is absent.
func AuthEmailOrIPKey(field string) RateLimitKeyFunc {
	return func(r *http.Request) string {
		email := peekJSONString(r, field)
		if email == "" {
			return clientIPKey(r)
		}
		return "email:" + strings.ToLower(email)
	}
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	return clientIPKey(r)
}

func clientIPKey(r *http.Request) string {
	return "ip:" + shared.ClientIP(r)
}

// peekJSONString reads one string field and restores the body for the handler.
func peekJSONString(r *http.Request, field string) string {
	if r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload map[string]any
	if json.Unmarshal(raw, &payload) != nil {
		return ""
	}
	value, _ := payload[field].(string)
	return strings.TrimSpace(value)
}

type mutationClass int

const (
	mutationOther mutationClass = iota
	mutationCredentials
	mutationMoneyOrApproval
)

var credentialPaths = map[string]bool{
	"/auth/login":         true,
	"/auth/password":      true,
	"/companies/register": true,
	"/employees/register": true,
}

var moneyPaths = map[string]bool{
	"/advances":                 true,
	"/me/kyc":                   true,
	"/me/payment-info":          true,
	"/exchange-rate":            true,
	"/operator/settlements/run": true,
}

func classifyMutation(r *http.Request) mutationClass {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return mutationOther
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	switch {
	case credentialPaths[path]:
		return mutationCredentials
	case moneyPaths[path]:
		return mutationMoneyOrApproval
	case strings.HasPrefix(path, "/advances/") && (strings.HasSuffix(path, "/status") || strings.HasSuffix(path, "/cancel")):
		return mutationMoneyOrApproval
	case strings.HasSuffix(path, "/approve") || strings.HasSuffix(path, "/active"):
		return mutationMoneyOrApproval
	}
	return mutationOther
}
