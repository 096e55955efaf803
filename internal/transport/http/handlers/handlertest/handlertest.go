// Package handlertest builds authenticated requests against a chi router
// for handler tests.
package handlertest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"wageadvance/internal/domain/auth"
	"wageadvance/internal/transport/http/middleware"
)

const Secret = "handler-test-secret"

type Routes interface {
	RegisterRoutes(r chi.Router)
}

// Router mounts routes behind the request id and auth middleware.
func Router(routes ...Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Auth(Secret))
	for _, rt := range routes {
		rt.RegisterRoutes(r)
	}
	return r
}

func Token(t *testing.T, user auth.UserContext) string {
	t.Helper()
	token, err := auth.GenerateToken(Secret, auth.Claims{UserID: user.UserID, Role: user.Role, CompanyID: user.CompanyID}, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return token
}

// Do sends body (marshalled unless it is already a []byte or io.Reader) as
// user. A zero user sends no token.
func Do(t *testing.T, h http.Handler, method, path string, user auth.UserContext, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
	case []byte:
		reader = bytes.NewReader(b)
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user.UserID != "" {
		req.Header.Set("Authorization", "Bearer "+Token(t, user))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func Decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope %q: %v", rec.Body.String(), err)
	}
	return env
}

// ErrorCode returns the envelope error code, or "" on success.
func ErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	env := Decode(t, rec)
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}
