package employeeshandler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"wageadvance/internal/domain/employee"
	"wageadvance/internal/transport/http/api"
	"wageadvance/internal/transport/http/middleware"
)

const snapshotLimit = 200

// handleStream serves the company's employee list as server-sent events: a
// snapshot first, then one "employee" event per change that actually alters
// the roster.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	flusher, ok := w.(http.Flusher)
	if !ok || h.Feed == nil {
		api.Fail(w, http.StatusInternalServerError, "stream_unsupported", "streaming is not supported", middleware.GetRequestID(r.Context()))
		return
	}

	// subscribe before loading the snapshot so no change falls in between
	events, cancel := h.Feed.Subscribe(user.CompanyID)
	defer cancel()

	initial, _, err := h.Service.List(r.Context(), user.CompanyID, employee.ListFilter{Limit: snapshotLimit})
	if err != nil {
		writeError(w, r, err)
		return
	}
	roster := employee.NewRoster(initial)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	h.Metrics.StreamOpened()
	defer h.Metrics.StreamClosed()

	if err := writeEvent(w, "snapshot", roster.List()); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if !roster.Apply(ev) {
				continue
			}
			if err := writeEvent(w, "employee", ev); err != nil {
				slog.Warn("employee stream write failed", "companyId", user.CompanyID, "err", err)
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
