package bankshandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wageadvance/internal/domain/banks"
	"wageadvance/internal/transport/http/api"
	"wageadvance/internal/transport/http/middleware"
)

type Service interface {
	List(ctx context.Context) ([]banks.Bank, error)
}

type Handler struct {
	Service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{Service: service}
}

// RegisterRoutes leaves the catalog public so registration forms can load it.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/banks", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.List(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "bank_list_failed", "failed to list banks", middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}
