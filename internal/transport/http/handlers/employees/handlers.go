package employeeshandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"wageadvance/internal/domain/audit"
	"wageadvance/internal/domain/auth"
	"wageadvance/internal/domain/company"
	"wageadvance/internal/domain/employee"
	"wageadvance/internal/domain/gate"
	"wageadvance/internal/platform/metrics"
	"wageadvance/internal/platform/storage"
	"wageadvance/internal/transport/http/api"
	"wageadvance/internal/transport/http/middleware"
	"wageadvance/internal/transport/http/shared"
)

type Service interface {
	Provision(ctx context.Context, companyID string, emp employee.NewEmployee) (employee.Employee, string, error)
	SelfRegister(ctx context.Context, reg employee.Registration) (employee.Employee, error)
	Me(ctx context.Context, userID string) (employee.Employee, error)
	Get(ctx context.Context, companyID, employeeID string) (employee.Employee, error)
	List(ctx context.Context, companyID string, filter employee.ListFilter) ([]employee.Employee, int, error)
	SetApproved(ctx context.Context, companyID, employeeID string, approved bool) (employee.Employee, error)
	SetActive(ctx context.Context, companyID, employeeID string, active bool) (employee.Employee, error)
	UpdateProfile(ctx context.Context, companyID, employeeID string, upd employee.ProfileUpdate) (employee.Employee, error)
	Remove(ctx context.Context, companyID, employeeID string) error
	PaymentInfo(ctx context.Context, userID string) (employee.PaymentInfo, error)
	UpdatePaymentInfo(ctx context.Context, userID string, info employee.PaymentInfo) (employee.Employee, error)
	SubmitKYC(ctx context.Context, userID string, content []byte) (employee.Employee, error)
	KYCDocument(ctx context.Context, companyID, employeeID string) (employee.Document, error)
}

type Gatekeeper interface {
	Evaluate(ctx context.Context, userID string, now time.Time, justSubmitted bool) (gate.Result, error)
}

// Subscriber hands out a company's roster change feed.
type Subscriber interface {
	Subscribe(topic string) (<-chan employee.Event, func())
}

type Handler struct {
	Service        Service
	Gate           Gatekeeper
	Feed           Subscriber
	Audit          shared.Auditor
	Metrics        *metrics.Collector
	MaxUploadBytes int64
	Heartbeat      time.Duration
	Now            func() time.Time
}

func NewHandler(service Service, gatekeeper Gatekeeper, feed Subscriber, auditor shared.Auditor, collector *metrics.Collector, maxUploadBytes int64) *Handler {
	return &Handler{
		Service:        service,
		Gate:           gatekeeper,
		Feed:           feed,
		Audit:          auditor,
		Metrics:        collector,
		MaxUploadBytes: maxUploadBytes,
		Heartbeat:      25 * time.Second,
		Now:            time.Now,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/employees/register", h.handleSelfRegister)

	r.Route("/me", func(r chi.Router) {
		r.Use(middleware.RequireRole(auth.RoleEmployee))
		r.Get("/profile", h.handleMe)
		r.Get("/gate", h.handleGate)
		r.Post("/kyc", h.handleSubmitKYC)
		r.Get("/payment-info", h.handleGetPaymentInfo)
		r.Put("/payment-info", h.handleUpdatePaymentInfo)
	})

	r.Route("/company/employees", func(r chi.Router) {
		r.Use(middleware.RequireRole(auth.RoleCompany))
		r.Get("/", h.handleList)
		r.Post("/", h.handleProvision)
		r.Get("/stream", h.handleStream)
		r.Get("/{employeeID}", h.handleGet)
		r.Patch("/{employeeID}", h.handleUpdateProfile)
		r.Delete("/{employeeID}", h.handleRemove)
		r.Post("/{employeeID}/approve", h.handleApprove)
		r.Post("/{employeeID}/active", h.handleActive)
		r.Get("/{employeeID}/kyc", h.handleKYCDocument)
	})
}

type employeeRequest struct {
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Email         string `json:"email"`
	Cedula        string `json:"cedula"`
	Phone         string `json:"phone"`
	MonthlySalary string `json:"monthlySalary"`
}

func (p employeeRequest) validate(v *shared.Validator) employee.NewEmployee {
	v.Required("firstName", p.FirstName, "is required")
	v.Required("lastName", p.LastName, "is required")
	v.Required("email", p.Email, "is required")
	v.Required("cedula", p.Cedula, "is required")
	salary, ok := v.Money("monthlySalary", p.MonthlySalary)
	if ok && salary.IsNegative() {
		v.Add("monthlySalary", "must not be negative")
	}
	return employee.NewEmployee{
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		Email:         p.Email,
		Cedula:        p.Cedula,
		Phone:         p.Phone,
		MonthlySalary: salary,
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return false
	}
	return true
}

func (h *Handler) handleSelfRegister(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		employeeRequest
		CompanyRIF string `json:"companyRif"`
		Password   string `json:"password"`
	}
	if !decode(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	emp := payload.employeeRequest.validate(v)
	v.Required("companyRif", payload.CompanyRIF, "is required")
	v.Required("password", payload.Password, "is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	created, err := h.Service.SelfRegister(r.Context(), employee.Registration{
		CompanyRIF:  payload.CompanyRIF,
		Password:    payload.Password,
		NewEmployee: emp,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, created.UserID, audit.Entry{
		Action: audit.ActionEmployeeCreated, EntityType: "employee", EntityID: created.ID, After: created,
	})
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	emp, err := h.Service.Me(r.Context(), user.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, emp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	res, err := h.Gate.Evaluate(r.Context(), user.UserID, h.Now(), false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, res, middleware.GetRequestID(r.Context()))
}

// handleSubmitKYC accepts the identity document as the "document" field of
// a multipart form and answers with the refreshed gate, which holds the
// employee on the awaiting-approval screen.
func (h *Handler) handleSubmitKYC(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	if h.MaxUploadBytes > 0 {
		// multipart framing needs headroom beyond the file itself
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes+64<<10)
	}
	file, _, err := r.FormFile("document")
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			api.Fail(w, http.StatusRequestEntityTooLarge, "document_too_large", employee.ErrDocumentTooLarge.Error(), requestID)
		case errors.Is(err, http.ErrMissingFile):
			shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "document", Reason: "is required"}})
		default:
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "expected a multipart form with a document field", requestID)
		}
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		api.Fail(w, http.StatusRequestEntityTooLarge, "document_too_large", employee.ErrDocumentTooLarge.Error(), requestID)
		return
	}

	updated, err := h.Service.SubmitKYC(r.Context(), user.UserID, content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, user.UserID, audit.Entry{
		Action: audit.ActionKYCSubmitted, EntityType: "employee", EntityID: updated.ID,
	})

	res, err := h.Gate.Evaluate(r.Context(), user.UserID, h.Now(), true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, map[string]any{"employee": updated, "gate": res}, requestID)
}

func (h *Handler) handleGetPaymentInfo(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	info, err := h.Service.PaymentInfo(r.Context(), user.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, info, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdatePaymentInfo(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload employee.PaymentInfo
	if !decode(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Required("bankCode", payload.BankCode, "is required")
	v.Required("bankAccount", payload.BankAccount, "is required")
	v.Required("pagoMovilPhone", payload.PagoMovilPhone, "is required")
	v.Required("pagoMovilCedula", payload.PagoMovilCedula, "is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	updated, err := h.Service.UpdatePaymentInfo(r.Context(), user.UserID, payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, user.UserID, audit.Entry{
		Action: audit.ActionPaymentInfo, EntityType: "employee", EntityID: updated.ID,
		After: map[string]string{"bankCode": updated.BankCode},
	})
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	page := shared.ParsePagination(r, 50, 200)
	q := r.URL.Query()
	filter := employee.ListFilter{Search: q.Get("search"), Limit: page.Limit, Offset: page.Offset}
	v := shared.NewValidator()
	filter.Approved = optionalBool(v, "approved", q.Get("approved"))
	filter.Active = optionalBool(v, "active", q.Get("active"))
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	items, total, err := h.Service.List(r.Context(), user.CompanyID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []employee.Employee{}
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func optionalBool(v *shared.Validator, field, raw string) *bool {
	if raw == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		v.Add(field, "must be true or false")
		return nil
	}
	return &parsed
}

func (h *Handler) handleProvision(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload employeeRequest
	if !decode(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	emp := payload.validate(v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	created, tempPassword, err := h.Service.Provision(r.Context(), user.CompanyID, emp)
	if err != nil {
		writeError(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, user.UserID, audit.Entry{
		Action: audit.ActionEmployeeCreated, EntityType: "employee", EntityID: created.ID, After: created,
	})
	api.Created(w, map[string]any{"employee": created, "temporaryPassword": tempPassword}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	emp, err := h.Service.Get(r.Context(), user.CompanyID, chi.URLParam(r, "employeeID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, emp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload struct {
		Phone         *string `json:"phone"`
		MonthlySalary *string `json:"monthlySalary"`
	}
	if !decode(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	var upd employee.ProfileUpdate
	upd.Phone = payload.Phone
	if payload.MonthlySalary != nil {
		salary, ok := v.Money("monthlySalary", *payload.MonthlySalary)
		if ok {
			upd.MonthlySalary = &salary
		}
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	updated, err := h.Service.UpdateProfile(r.Context(), user.CompanyID, chi.URLParam(r, "employeeID"), upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	if err := h.Service.Remove(r.Context(), user.CompanyID, chi.URLParam(r, "employeeID")); err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

type flagRequest struct {
	Approved *bool `json:"approved"`
	Active   *bool `json:"active"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload flagRequest
	if !decode(w, r, &payload) {
		return
	}
	if payload.Approved == nil {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "approved", Reason: "is required"}})
		return
	}
	updated, err := h.Service.SetApproved(r.Context(), user.CompanyID, chi.URLParam(r, "employeeID"), *payload.Approved)
	if err != nil {
		writeError(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, user.UserID, audit.Entry{
		Action: audit.ActionEmployeeApproval, EntityType: "employee", EntityID: updated.ID,
		After: map[string]bool{"approved": updated.IsApproved},
	})
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleActive(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload flagRequest
	if !decode(w, r, &payload) {
		return
	}
	if payload.Active == nil {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "active", Reason: "is required"}})
		return
	}
	updated, err := h.Service.SetActive(r.Context(), user.CompanyID, chi.URLParam(r, "employeeID"), *payload.Active)
	if err != nil {
		writeError(w, r, err)
		return
	}
	shared.RecordAudit(r, h.Audit, user.UserID, audit.Entry{
		Action: audit.ActionEmployeeActivation, EntityType: "employee", EntityID: updated.ID,
		After: map[string]bool{"active": updated.IsActive},
	})
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleKYCDocument(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	employeeID := chi.URLParam(r, "employeeID")
	doc, err := h.Service.KYCDocument(r.Context(), user.CompanyID, employeeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ext := map[string]string{"image/jpeg": ".jpg", "image/png": ".png", "application/pdf": ".pdf"}[doc.ContentType]
	api.File(w, doc.ContentType, "kyc-"+employeeID+ext, doc.Body)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, employee.ErrNotFound), errors.Is(err, gate.ErrNotEmployee):
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", requestID)
	case errors.Is(err, employee.ErrCompanyNotFound):
		api.Fail(w, http.StatusNotFound, "company_not_found", err.Error(), requestID)
	case errors.Is(err, employee.ErrNoDocument), errors.Is(err, storage.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "no_document", employee.ErrNoDocument.Error(), requestID)
	case errors.Is(err, employee.ErrDuplicate):
		api.Fail(w, http.StatusConflict, "duplicate_employee", err.Error(), requestID)
	case errors.Is(err, employee.ErrHasAdvances):
		api.Fail(w, http.StatusConflict, "employee_has_advances", err.Error(), requestID)
	case errors.Is(err, employee.ErrDocumentTooLarge):
		api.Fail(w, http.StatusRequestEntityTooLarge, "document_too_large", err.Error(), requestID)
	case errors.Is(err, employee.ErrUnsupportedDocument):
		api.Fail(w, http.StatusUnsupportedMediaType, "unsupported_document", err.Error(), requestID)
	case errors.Is(err, employee.ErrInvalidCedula):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "cedula", Reason: err.Error()}})
	case errors.Is(err, employee.ErrInvalidPhone):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "phone", Reason: err.Error()}})
	case errors.Is(err, employee.ErrInvalidAccount):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "bankAccount", Reason: err.Error()}})
	case errors.Is(err, employee.ErrUnknownBank):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "bankCode", Reason: err.Error()}})
	case errors.Is(err, employee.ErrNegativeSalary):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "monthlySalary", Reason: err.Error()}})
	case errors.Is(err, company.ErrInvalidRIF):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "companyRif", Reason: err.Error()}})
	case errors.Is(err, auth.ErrWeakPassword):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "password", Reason: err.Error()}})
	default:
		slog.Error("employee handler failed", "path", r.URL.Path, "err", err)
		api.Fail(w, http.StatusInternalServerError, "employee_request_failed", "failed to process employee request", requestID)
	}
}
