package advanceshandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"wageadvance/internal/domain/advance"
	"wageadvance/internal/domain/audit"
	"wageadvance/internal/domain/auth"
	"wageadvance/internal/platform/metrics"
	"wageadvance/internal/transport/http/api"
	"wageadvance/internal/transport/http/middleware"
	"wageadvance/internal/transport/http/shared"
)

const requestEndpoint = "advances.request"

type Service interface {
	Overview(ctx context.Context, userID string) (advance.Overview, error)
	Quote(amount decimal.Decimal) advance.Quote
	Request(ctx context.Context, userID string, amount decimal.Decimal) (advance.Advance, error)
	Transition(ctx context.Context, actor advance.Actor, advanceID string, to advance.Status, note string) (advance.Advance, error)
	Cancel(ctx context.Context, actor advance.Actor, advanceID string) (advance.Advance, error)
	Get(ctx context.Context, actor advance.Actor, advanceID string) (advance.Advance, error)
	ListForEmployee(ctx context.Context, userID string, limit, offset int) ([]advance.Advance, int, error)
	List(ctx context.Context, actor advance.Actor, filter advance.ListFilter) ([]advance.Advance, int, error)
	ReceiptPDF(ctx context.Context, actor advance.Actor, advanceID string) ([]byte, error)
	Report(ctx context.Context, actor advance.Actor, filter advance.ListFilter, format string) (advance.Report, error)
}

type Idempotency interface {
	Check(ctx context.Context, userID, endpoint, key, requestHash string) (json.RawMessage, bool, error)
	Save(ctx context.Context, userID, endpoint, key, requestHash string, response json.RawMessage) error
}

type Handler struct {
	Service     Service
	Audit       shared.Auditor
	Idempotency Idempotency
	Metrics     *metrics.Collector
}

func NewHandler(service Service, auditor shared.Auditor, idem Idempotency, collector *metrics.Collector) *Handler {
	return &Handler{Service: service, Audit: auditor, Idempotency: idem, Metrics: collector}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/advances", func(r chi.Router) {
		employee := middleware.RequireRole(auth.RoleEmployee)
		managers := middleware.RequireRole(auth.RoleCompany, auth.RoleOperator)
		anyone := middleware.RequireRole()

		r.With(employee).Get("/overview", h.handleOverview)
		r.With(employee).Post("/quote", h.handleQuote)
		r.With(employee).Post("/", h.handleRequest)
		r.With(anyone).Get("/", h.handleList)
		r.With(managers).Get("/report", h.handleReport)
		r.With(anyone).Get("/{advanceID}", h.handleGet)
		r.With(anyone).Get("/{advanceID}/receipt", h.handleReceipt)
		r.With(anyone).Post("/{advanceID}/cancel", h.handleCancel)
		r.With(managers).Post("/{advanceID}/status", h.handleTransition)
	})
}

type amountRequest struct {
	Amount json.Number `json:"amount"`
}

type transitionRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

func actorOf(user auth.UserContext) advance.Actor {
	return advance.Actor{UserID: user.UserID, Role: user.Role, CompanyID: user.CompanyID}
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	overview, err := h.Service.Overview(r.Context(), user.UserID)
	if err != nil {
		writeError(w, r, err, "overview_failed")
		return
	}
	api.Success(w, overview, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	var payload amountRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	amount, ok := v.Money("amount", string(payload.Amount))
	if ok && !amount.IsPositive() {
		v.Add("amount", "must be positive")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	api.Success(w, h.Service.Quote(amount), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	var payload amountRequest
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	v := shared.NewValidator()
	amount, _ := v.Money("amount", string(payload.Amount))
	if v.Reject(w, requestID) {
		h.Metrics.AdvanceRefused("validation_error")
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	requestHash := middleware.RequestHash(body)
	if idempotencyKey != "" && h.Idempotency != nil {
		stored, found, err := h.Idempotency.Check(r.Context(), user.UserID, requestEndpoint, idempotencyKey, requestHash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different request", requestID)
			return
		}
		if err != nil {
			slog.Warn("idempotency check failed", "err", err)
		}
		if found {
			api.Created(w, stored, requestID)
			return
		}
	}

	created, err := h.Service.Request(r.Context(), user.UserID, amount)
	if err != nil {
		status, code, _ := classify(err)
		if status < http.StatusInternalServerError {
			h.Metrics.AdvanceRefused(code)
		}
		writeError(w, r, err, "advance_request_failed")
		return
	}
	h.Metrics.AdvanceStatus(string(created.Status))
	shared.RecordAudit(r, h.Audit, user.UserID, audit.Entry{
		Action:     audit.ActionAdvanceRequested,
		EntityType: "advance",
		EntityID:   created.ID,
		After:      created,
	})

	if idempotencyKey != "" && h.Idempotency != nil {
		encoded, err := json.Marshal(created)
		if err != nil {
			slog.Warn("idempotency response marshal failed", "err", err)
		} else if err := h.Idempotency.Save(r.Context(), user.UserID, requestEndpoint, idempotencyKey, requestHash, encoded); err != nil {
			slog.Warn("idempotency save failed", "err", err)
		}
	}
	api.Created(w, created, requestID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	page := shared.ParsePagination(r, 50, 200)

	if user.Role == auth.RoleEmployee {
		items, total, err := h.Service.ListForEmployee(r.Context(), user.UserID, page.Limit, page.Offset)
		if err != nil {
			writeError(w, r, err, "advance_list_failed")
			return
		}
		w.Header().Set("X-Total-Count", strconv.Itoa(total))
		api.Success(w, nonNil(items), middleware.GetRequestID(r.Context()))
		return
	}

	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	filter.Limit, filter.Offset = page.Limit, page.Offset
	items, total, err := h.Service.List(r.Context(), actorOf(user), filter)
	if err != nil {
		writeError(w, r, err, "advance_list_failed")
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, nonNil(items), middleware.GetRequestID(r.Context()))
}

func parseFilter(w http.ResponseWriter, r *http.Request) (advance.ListFilter, bool) {
	q := r.URL.Query()
	v := shared.NewValidator()
	filter := advance.ListFilter{CompanyID: q.Get("companyId")}
	if raw := q.Get("status"); raw != "" {
		status, err := advance.ParseStatus(raw)
		if err != nil {
			v.Add("status", "must be a known advance status")
		}
		filter.Status = status
	}
	if raw := q.Get("from"); raw != "" {
		filter.From, _ = v.Date("from", raw)
	}
	if raw := q.Get("to"); raw != "" {
		filter.To, _ = v.Date("to", raw)
	}
	v.DateOrder("from", filter.From, "to", filter.To)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return advance.ListFilter{}, false
	}
	return filter, true
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	report, err := h.Service.Report(r.Context(), actorOf(user), filter, r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, err, "advance_report_failed")
		return
	}
	api.File(w, report.ContentType, report.Filename, report.Body)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	adv, err := h.Service.Get(r.Context(), actorOf(user), chi.URLParam(r, "advanceID"))
	if err != nil {
		writeError(w, r, err, "advance_get_failed")
		return
	}
	api.Success(w, adv, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	advanceID := chi.URLParam(r, "advanceID")
	body, err := h.Service.ReceiptPDF(r.Context(), actorOf(user), advanceID)
	if err != nil {
		writeError(w, r, err, "advance_receipt_failed")
		return
	}
	api.File(w, "application/pdf", "advance-"+advanceID+".pdf", body)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	before, err := h.Service.Get(r.Context(), actorOf(user), chi.URLParam(r, "advanceID"))
	if err != nil {
		writeError(w, r, err, "advance_cancel_failed")
		return
	}
	updated, err := h.Service.Cancel(r.Context(), actorOf(user), before.ID)
	if err != nil {
		writeError(w, r, err, "advance_cancel_failed")
		return
	}
	h.recordTransition(r, user, before, updated)
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	v.Required("status", payload.Status, "is required")
	to, err := advance.ParseStatus(payload.Status)
	if payload.Status != "" && err != nil {
		v.Add("status", "must be a known advance status")
	}
	if len(payload.Note) > 500 {
		v.Add("note", "must be at most 500 characters")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	before, err := h.Service.Get(r.Context(), actorOf(user), chi.URLParam(r, "advanceID"))
	if err != nil {
		writeError(w, r, err, "advance_transition_failed")
		return
	}
	updated, err := h.Service.Transition(r.Context(), actorOf(user), before.ID, to, payload.Note)
	if err != nil {
		writeError(w, r, err, "advance_transition_failed")
		return
	}
	h.recordTransition(r, user, before, updated)
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func (h *Handler) recordTransition(r *http.Request, user auth.UserContext, before, after advance.Advance) {
	h.Metrics.AdvanceStatus(string(after.Status))
	shared.RecordAudit(r, h.Audit, user.UserID, audit.Entry{
		Action:     audit.ActionAdvanceTransition,
		EntityType: "advance",
		EntityID:   after.ID,
		Before:     map[string]any{"status": before.Status},
		After:      map[string]any{"status": after.Status, "note": after.StatusNote},
	})
}

func nonNil(items []advance.Advance) []advance.Advance {
	if items == nil {
		return []advance.Advance{}
	}
	return items
}

// classify maps domain errors to an HTTP status and a stable error code.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, advance.ErrNotFound):
		return http.StatusNotFound, "not_found", "advance not found"
	case errors.Is(err, advance.ErrEmployeeNotFound):
		return http.StatusNotFound, "employee_not_found", "employee profile not found"
	case errors.Is(err, advance.ErrForbidden):
		return http.StatusForbidden, "forbidden", "not allowed to act on this advance"
	case errors.Is(err, advance.ErrGateClosed):
		return http.StatusForbidden, "gate_closed", err.Error()
	case errors.Is(err, advance.ErrInactiveEmployee):
		return http.StatusForbidden, "employee_inactive", err.Error()
	case errors.Is(err, advance.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount", err.Error()
	case errors.Is(err, advance.ErrBelowMinimum):
		return http.StatusBadRequest, "below_minimum", err.Error()
	case errors.Is(err, advance.ErrUnsupportedFormat):
		return http.StatusBadRequest, "unsupported_format", err.Error()
	case errors.Is(err, advance.ErrExceedsAvailable):
		return http.StatusUnprocessableEntity, "exceeds_available", err.Error()
	case errors.Is(err, advance.ErrBillingDate):
		return http.StatusUnprocessableEntity, "billing_date", err.Error()
	case errors.Is(err, advance.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition", err.Error()
	case errors.Is(err, advance.ErrStatusConflict):
		return http.StatusConflict, "status_conflict", err.Error()
	}
	return http.StatusInternalServerError, "", ""
}

func writeError(w http.ResponseWriter, r *http.Request, err error, fallbackCode string) {
	status, code, message := classify(err)
	if status == http.StatusInternalServerError {
		slog.Error("advance handler failed", "path", r.URL.Path, "err", err)
		api.Fail(w, status, fallbackCode, "failed to process advance", middleware.GetRequestID(r.Context()))
		return
	}
	api.Fail(w, status, code, message, middleware.GetRequestID(r.Context()))
}
