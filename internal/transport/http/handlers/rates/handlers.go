package rateshandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"wageadvance/internal/domain/audit"
	"wageadvance/internal/domain/auth"
	"wageadvance/internal/domain/exchangerate"
	"wageadvance/internal/transport/http/api"
	"wageadvance/internal/transport/http/middleware"
	"wageadvance/internal/transport/http/shared"
)

type Service interface {
	Latest(ctx context.Context) (exchangerate.Rate, error)
	Publish(ctx context.Context, rate decimal.Decimal, source string) (exchangerate.Rate, error)
	Convert(ctx context.Context, usd decimal.Decimal) (exchangerate.Conversion, error)
}

type Handler struct {
	Service Service
	Audit   shared.Auditor
}

func NewHandler(service Service, auditor shared.Auditor) *Handler {
	return &Handler{Service: service, Audit: auditor}
}

// RegisterRoutes exposes the rate to any authenticated caller; only
// operators publish.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/exchange-rate", func(r chi.Router) {
		r.Use(middleware.RequireRole())
		r.Get("/", h.handleLatest)
		r.Get("/convert", h.handleConvert)
		r.With(middleware.RequireRole(auth.RoleOperator)).Post("/", h.handlePublish)
	})
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	rate, err := h.Service.Latest(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, rate, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleConvert(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	v := shared.NewValidator()
	usd, ok := v.Money("usd", r.URL.Query().Get("usd"))
	if !ok {
		v.Reject(w, requestID)
		return
	}
	conv, err := h.Service.Convert(r.Context(), usd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, conv, requestID)
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	var payload struct {
		USDToVES json.Number `json:"usdToVes"`
		Source   string      `json:"source"`
	}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(payload.USDToVES.String()))
	if err != nil {
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "usdToVes", Reason: "must be a decimal number"}})
		return
	}

	var before any
	if prev, err := h.Service.Latest(r.Context()); err == nil {
		before = prev
	}
	published, err := h.Service.Publish(r.Context(), rate, payload.Source)
	if err != nil {
		writeError(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, user.UserID, audit.Entry{
		Action: audit.ActionRatePublished, EntityType: "exchange_rate", EntityID: "latest",
		Before: before, After: published,
	})
	api.Created(w, published, requestID)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, exchangerate.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "rate_not_published", err.Error(), requestID)
	case errors.Is(err, exchangerate.ErrInvalidRate):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "usdToVes", Reason: err.Error()}})
	case errors.Is(err, exchangerate.ErrInvalidUSD):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "usd", Reason: err.Error()}})
	default:
		slog.Error("exchange rate handler failed", "path", r.URL.Path, "err", err)
		api.Fail(w, http.StatusInternalServerError, "exchange_rate_failed", "failed to process exchange rate request", requestID)
	}
}
