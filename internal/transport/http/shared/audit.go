package shared

import (
	"context"
	"log/slog"
	"net/http"

	"wageadvance/internal/domain/audit"
	"wageadvance/internal/platform/requestctx"
)

type Auditor interface {
	Record(ctx context.Context, e audit.Entry) error
}

// RecordAudit stamps entry with the request id and client IP and writes it.
// Failures are logged; the request has already succeeded.
func RecordAudit(r *http.Request, auditor Auditor, actorID string, entry audit.Entry) {
	if auditor == nil {
		return
	}
	entry.ActorID = actorID
	entry.RequestID = requestctx.GetRequestID(r.Context())
	entry.IP = ClientIP(r)
	if err := auditor.Record(r.Context(), entry); err != nil {
		slog.Warn("audit record failed", "action", entry.Action, "entityId", entry.EntityID, "err", err)
	}
}
