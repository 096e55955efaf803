package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wageadvance/internal/domain/auth"
)

var noContent = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func hit(t *testing.T, h http.Handler, method, path, remoteAddr string, user *auth.UserContext, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = remoteAddr
	if user != nil {
		req = req.WithContext(WithUser(req.Context(), *user))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitKeysByUserAcrossAddresses(t *testing.T) {
	h := RateLimit(1, time.Minute)(noContent)
	company := &auth.UserContext{UserID: "user-1", Role: auth.RoleCompany, CompanyID: "c1"}

	require.Equal(t, http.StatusNoContent, hit(t, h, http.MethodPost, "/api/v1/advances/a1/status", "198.51.100.11:2222", company, "").Code)
	require.Equal(t, http.StatusTooManyRequests, hit(t, h, http.MethodPost, "/api/v1/advances/a1/status", "198.51.100.12:3333", company, "").Code)
}

func TestRateLimitAnonymousFallsBackToIP(t *testing.T) {
	h := RateLimit(1, time.Minute)(noContent)

	require.Equal(t, http.StatusNoContent, hit(t, h, http.MethodPost, "/api/v1/companies/register", "203.0.113.10:4444", nil, `{"email":"a@example.com"}`).Code)
	require.Equal(t, http.StatusTooManyRequests, hit(t, h, http.MethodPost, "/api/v1/companies/register", "203.0.113.10:5555", nil, `{"email":"b@example.com"}`).Code)
	require.Equal(t, http.StatusNoContent, hit(t, h, http.MethodPost, "/api/v1/companies/register", "203.0.113.99:5555", nil, `{"email":"b@example.com"}`).Code)
}

func TestRateLimitWindowResets(t *testing.T) {
	h := RateLimit(1, 40*time.Millisecond)(noContent)

	require.Equal(t, http.StatusNoContent, hit(t, h, http.MethodGet, "/api/v1/banks", "192.0.2.20:1111", nil, "").Code)
	require.Equal(t, http.StatusTooManyRequests, hit(t, h, http.MethodGet, "/api/v1/banks", "192.0.2.20:1111", nil, "").Code)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, http.StatusNoContent, hit(t, h, http.MethodGet, "/api/v1/banks", "192.0.2.20:1111", nil, "").Code)
}

func TestRateLimitHeaders(t *testing.T) {
	h := RateLimit(2, time.Minute)(noContent)

	first := hit(t, h, http.MethodGet, "/api/v1/banks", "192.0.2.30:1234", nil, "")
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", first.Header().Get("X-RateLimit-Reset"))
	assert.Empty(t, first.Header().Get("Retry-After"))

	hit(t, h, http.MethodGet, "/api/v1/banks", "192.0.2.30:1234", nil, "")
	limited := hit(t, h, http.MethodGet, "/api/v1/banks", "192.0.2.30:1234", nil, "")
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "0", limited.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), `"rate_limited"`)
}

func TestRateLimitDisabledWithZeroLimit(t *testing.T) {
	h := RateLimit(0, time.Minute)(noContent)
	for range 5 {
		require.Equal(t, http.StatusNoContent, hit(t, h, http.MethodGet, "/api/v1/banks", "192.0.2.31:1", nil, "").Code)
	}
}

func TestSensitiveMutationRateLimitIgnoresReads(t *testing.T) {
	h := SensitiveMutationRateLimit(4, time.Minute)(noContent)
	for range 6 {
		require.Equal(t, http.StatusNoContent, hit(t, h, http.MethodGet, "/api/v1/advances/report", "198.51.100.40:8888", nil, "").Code)
	}
}

func TestSensitiveMutationRateLimitOnApprovals(t *testing.T) {
	h := SensitiveMutationRateLimit(4, time.Minute)(noContent)
	company := &auth.UserContext{UserID: "company-1", Role: auth.RoleCompany, CompanyID: "c1"}

	paths := []string{"/api/v1/advances/a1/status", "/api/v1/company/employees/e1/approve", "/api/v1/advances/a2/status"}
	codes := make([]int, 0, len(paths))
	for _, p := range paths {
		codes = append(codes, hit(t, h, http.MethodPost, p, "198.51.100.41:9999", company, "").Code)
	}
	require.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestSensitiveMutationRateLimitKeysLoginByEmail(t *testing.T) {
	h := SensitiveMutationRateLimit(4, time.Minute)(noContent)

	require.Equal(t, http.StatusNoContent, hit(t, h, http.MethodPost, "/api/v1/auth/login", "203.0.113.1:1", nil, `{"email":"Ana@Example.com"}`).Code)
	require.Equal(t, http.StatusTooManyRequests, hit(t, h, http.MethodPost, "/api/v1/auth/login", "203.0.113.2:1", nil, `{"email":"ana@example.com"}`).Code)
}

func TestAuthEmailKeyLeavesBodyReadable(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":" ana@example.com "}`))
	req.Header.Set("Content-Type", "application/json")

	require.Equal(t, "email:ana@example.com", AuthEmailOrIPKey("email")(req))
	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	require.Equal(t, `{"email":" ana@example.com "}`, string(body))
}

func TestRedisCounterSharesWindowsBetweenReplicas(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	counter := NewRedisCounter(client)

	replicaA := RateLimit(2, time.Minute, WithCounter(counter))(noContent)
	replicaB := RateLimit(2, time.Minute, WithCounter(counter))(noContent)

	require.Equal(t, http.StatusNoContent, hit(t, replicaA, http.MethodGet, "/api/v1/banks", "192.0.2.50:1", nil, "").Code)
	require.Equal(t, http.StatusNoContent, hit(t, replicaB, http.MethodGet, "/api/v1/banks", "192.0.2.50:1", nil, "").Code)
	require.Equal(t, http.StatusTooManyRequests, hit(t, replicaA, http.MethodGet, "/api/v1/banks", "192.0.2.50:1", nil, "").Code)

	assert.Equal(t, time.Minute, mr.TTL("ratelimit:all:ip:192.0.2.50"))
	mr.FastForward(time.Minute)
	require.Equal(t, http.StatusNoContent, hit(t, replicaB, http.MethodGet, "/api/v1/banks", "192.0.2.50:1", nil, "").Code)
}

func TestRedisCounterRestoresMissingExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, mr.Set("ratelimit:k", "3"))

	count, ttl, err := NewRedisCounter(client).Hit(context.Background(), "k", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Equal(t, 30*time.Second, ttl)
	assert.Equal(t, 30*time.Second, mr.TTL("ratelimit:k"))
}

func TestRateLimitFallsBackWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	h := RateLimit(1, time.Minute, WithCounter(NewRedisCounter(client)))(noContent)
	require.Equal(t, http.StatusNoContent, hit(t, h, http.MethodGet, "/api/v1/banks", "192.0.2.60:1", nil, "").Code)
	require.Equal(t, http.StatusTooManyRequests, hit(t, h, http.MethodGet, "/api/v1/banks", "192.0.2.60:1", nil, "").Code)
}

func TestMemoryCounterUsesClock(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	c := NewMemoryCounter()
	c.now = func() time.Time { return now }

	n, left, _ := c.Hit(context.Background(), "k", time.Minute)
	assert.Equal(t, 1, n)
	assert.Equal(t, time.Minute, left)

	now = now.Add(59 * time.Second)
	n, left, _ = c.Hit(context.Background(), "k", time.Minute)
	assert.Equal(t, 2, n)
	assert.Equal(t, time.Second, left)

	now = now.Add(time.Second)
	n, _, _ = c.Hit(context.Background(), "k", time.Minute)
	assert.Equal(t, 1, n)
}

func TestMemoryCounterSweepsExpiredWindows(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	c := NewMemoryCounter()
	c.now = func() time.Time { return now }

	for i := range 50_000 {
		_, _, err := c.Hit(context.Background(), fmt.Sprintf("credentials-email:email:user%d@example.com", i), time.Minute)
		require.NoError(t, err)
	}
	require.LessOrEqual(t, c.Len(), 50_000)

	now = now.Add(time.Hour)
	for i := range sweepEvery {
		_, _, err := c.Hit(context.Background(), fmt.Sprintf("late-%d", i%3), time.Minute)
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, c.Len(), 3)
}

func TestMemoryCounterSweepKeepsLiveWindows(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	c := NewMemoryCounter()
	c.now = func() time.Time { return now }

	_, _, _ = c.Hit(context.Background(), "live", time.Hour)
	_, _, _ = c.Hit(context.Background(), "stale", time.Second)
	now = now.Add(time.Minute)
	c.mu.Lock()
	c.sweep(now)
	c.mu.Unlock()

	n, _, _ := c.Hit(context.Background(), "live", time.Hour)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, c.Len())
}
