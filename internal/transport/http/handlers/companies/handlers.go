package companieshandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"wageadvance/internal/domain/audit"
	"wageadvance/internal/domain/auth"
	"wageadvance/internal/domain/company"
	"wageadvance/internal/domain/settlement"
	"wageadvance/internal/transport/http/api"
	"wageadvance/internal/transport/http/middleware"
	"wageadvance/internal/transport/http/shared"
)

type Service interface {
	Register(ctx context.Context, reg company.Registration) (company.Company, error)
	Get(ctx context.Context, companyID string) (company.Company, error)
	List(ctx context.Context, filter company.ListFilter) ([]company.Company, int, error)
	SetApproved(ctx context.Context, companyID string, approved bool) (company.Company, error)
}

type Settlements interface {
	List(ctx context.Context, companyID string, limit, offset int) ([]settlement.Settlement, error)
}

// RunFunc triggers a settlement run outside the schedule and returns its
// summary.
type RunFunc func(ctx context.Context) (any, error)

type Handler struct {
	Service       Service
	Settlements   Settlements
	RunSettlement RunFunc
	Audit         shared.Auditor
}

func NewHandler(service Service, settlements Settlements, run RunFunc, auditor shared.Auditor) *Handler {
	return &Handler{Service: service, Settlements: settlements, RunSettlement: run, Audit: auditor}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/companies/register", h.handleRegister)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(auth.RoleCompany))
		r.Get("/company", h.handleOwnCompany)
		r.Get("/company/settlements", h.handleOwnSettlements)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(auth.RoleOperator))
		r.Get("/operator/companies", h.handleList)
		r.Get("/operator/companies/{companyID}", h.handleGet)
		r.Post("/operator/companies/{companyID}/approve", h.handleApprove)
		r.Get("/operator/companies/{companyID}/settlements", h.handleCompanySettlements)
		r.Post("/operator/settlements/run", h.handleRunSettlement)
	})
}

type registerRequest struct {
	Name     string `json:"name"`
	RIF      string `json:"rif"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Password string `json:"password"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload registerRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	v := shared.NewValidator()
	v.Required("name", payload.Name, "is required")
	v.Required("rif", payload.RIF, "is required")
	v.Required("email", payload.Email, "is required")
	v.Required("password", payload.Password, "is required")
	if v.Reject(w, requestID) {
		return
	}

	created, err := h.Service.Register(r.Context(), company.Registration{
		Name:     payload.Name,
		RIF:      payload.RIF,
		Email:    payload.Email,
		Phone:    payload.Phone,
		Address:  payload.Address,
		Password: payload.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, "", audit.Entry{
		Action: audit.ActionCompanyRegistered, EntityType: "company", EntityID: created.ID, After: created,
	})
	api.Created(w, created, requestID)
}

func (h *Handler) handleOwnCompany(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	c, err := h.Service.Get(r.Context(), user.CompanyID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, c, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleOwnSettlements(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	h.writeSettlements(w, r, user.CompanyID)
}

func (h *Handler) handleCompanySettlements(w http.ResponseWriter, r *http.Request) {
	h.writeSettlements(w, r, chi.URLParam(r, "companyID"))
}

func (h *Handler) writeSettlements(w http.ResponseWriter, r *http.Request, companyID string) {
	page := shared.ParsePagination(r, 24, 200)
	items, err := h.Settlements.List(r.Context(), companyID, page.Limit, page.Offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []settlement.Settlement{}
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 50, 200)
	filter := company.ListFilter{Limit: page.Limit, Offset: page.Offset}
	if raw := r.URL.Query().Get("approved"); raw != "" {
		approved, err := strconv.ParseBool(raw)
		if err != nil {
			shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "approved", Reason: "must be true or false"}})
			return
		}
		filter.Approved = &approved
	}

	items, total, err := h.Service.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []company.Company{}
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, items, requestID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.Service.Get(r.Context(), chi.URLParam(r, "companyID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, c, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	var payload struct {
		Approved *bool `json:"approved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	if payload.Approved == nil {
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "approved", Reason: "is required"}})
		return
	}

	companyID := chi.URLParam(r, "companyID")
	before, err := h.Service.Get(r.Context(), companyID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.Service.SetApproved(r.Context(), companyID, *payload.Approved)
	if err != nil {
		writeError(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, user.UserID, audit.Entry{
		Action: audit.ActionCompanyApproval, EntityType: "company", EntityID: companyID,
		Before: map[string]bool{"approved": before.IsApproved},
		After:  map[string]bool{"approved": updated.IsApproved},
	})
	api.Success(w, updated, requestID)
}

func (h *Handler) handleRunSettlement(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	if h.RunSettlement == nil {
		api.Fail(w, http.StatusServiceUnavailable, "settlement_unavailable", "settlement runs are not configured", requestID)
		return
	}
	summary, err := h.RunSettlement(r.Context())
	if err != nil {
		slog.Error("manual settlement run failed", "err", err)
		api.FailWithDetails(w, http.StatusInternalServerError, "settlement_failed", "settlement run failed", summary, requestID)
		return
	}
	api.Success(w, summary, requestID)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, company.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "company not found", requestID)
	case errors.Is(err, company.ErrDuplicate):
		api.Fail(w, http.StatusConflict, "duplicate_company", err.Error(), requestID)
	case errors.Is(err, company.ErrInvalidRIF):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "rif", Reason: err.Error()}})
	case errors.Is(err, auth.ErrWeakPassword):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "password", Reason: err.Error()}})
	default:
		slog.Error("company handler failed", "path", r.URL.Path, "err", err)
		api.Fail(w, http.StatusInternalServerError, "company_request_failed", "failed to process company request", requestID)
	}
}
