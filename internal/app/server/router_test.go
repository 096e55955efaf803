package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wageadvance/internal/domain/auth"
	"wageadvance/internal/platform/config"
	"wageadvance/internal/platform/metrics"
	"wageadvance/internal/transport/http/api"
	"wageadvance/internal/transport/http/middleware"
)

type whoami struct{}

func (whoami) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireRole()).Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		user, _ := middleware.GetUser(r.Context())
		api.Success(w, user, middleware.GetRequestID(r.Context()))
	})
}

func testConfig() config.Config {
	cfg := config.Load()
	cfg.JWTSecret = "router-test-secret"
	cfg.CORSAllowedOrigins = []string{"https://app.example.com"}
	cfg.MetricsEnabled = true
	return cfg
}

func TestHealthAndReadiness(t *testing.T) {
	readyErr := errors.New("database: connection refused")
	router := NewRouter(testConfig(), metrics.New(), nil, func(context.Context) error { return readyErr })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	readyErr = nil
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIRoutesAuthenticateAndCountRequests(t *testing.T) {
	cfg := testConfig()
	collector := metrics.New()
	router := NewRouter(cfg, collector, nil, nil, whoami{})

	token, err := auth.GenerateToken(cfg.JWTSecret, auth.Claims{UserID: "u-1", Role: auth.RoleCompany, CompanyID: "co-1"}, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"co-1"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nothing-here", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	var env api.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"requestsTotal":3`)
}

func TestCORSPreflight(t *testing.T) {
	router := NewRouter(testConfig(), metrics.New(), nil, nil, whoami{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/whoami", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/whoami", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsCanBeDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.MetricsEnabled = false
	router := NewRouter(cfg, metrics.New(), nil, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
