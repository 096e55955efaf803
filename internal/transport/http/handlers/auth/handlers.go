package authhandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wageadvance/internal/domain/audit"
	"wageadvance/internal/domain/auth"
	"wageadvance/internal/transport/http/api"
	"wageadvance/internal/transport/http/middleware"
	"wageadvance/internal/transport/http/shared"
)

type Service interface {
	Login(ctx context.Context, email, password string) (auth.Session, error)
	Me(ctx context.Context, userID string) (auth.User, error)
	ChangePassword(ctx context.Context, userID, current, next string) (auth.Session, error)
}

type Handler struct {
	Service Service
	Audit   shared.Auditor
}

func NewHandler(service Service, auditor shared.Auditor) *Handler {
	return &Handler{Service: service, Audit: auditor}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
	r.With(middleware.RequireRole()).Get("/auth/me", h.HandleMe)
	r.With(middleware.RequireRole()).Post("/auth/password", h.HandleChangePassword)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	v := shared.NewValidator()
	v.Required("email", payload.Email, "is required")
	v.Required("password", payload.Password, "is required")
	if v.Reject(w, requestID) {
		return
	}

	session, err := h.Service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, session, requestID)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	me, err := h.Service.Me(r.Context(), user.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, me, middleware.GetRequestID(r.Context()))
}

// HandleChangePassword returns a fresh session so the client drops the
// token that still carried the forced-change flag.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	var payload changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	v := shared.NewValidator()
	v.Required("currentPassword", payload.CurrentPassword, "is required")
	v.Required("newPassword", payload.NewPassword, "is required")
	if v.Reject(w, requestID) {
		return
	}

	session, err := h.Service.ChangePassword(r.Context(), user.UserID, payload.CurrentPassword, payload.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, user.UserID, audit.Entry{
		Action: audit.ActionPasswordChanged, EntityType: "user", EntityID: user.UserID,
	})
	api.Success(w, session, requestID)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", requestID)
	case errors.Is(err, auth.ErrUserNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "user not found", requestID)
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrSamePassword):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "newPassword", Reason: err.Error()}})
	default:
		slog.Error("auth handler failed", "path", r.URL.Path, "err", err)
		api.Fail(w, http.StatusInternalServerError, "auth_failed", "failed to process request", requestID)
	}
}
