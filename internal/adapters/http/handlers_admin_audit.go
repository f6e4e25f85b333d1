package web

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"gymdesk/internal/adapters/http/middleware"
	auditStore "gymdesk/internal/adapters/storage/audit"
	auditDomain "gymdesk/internal/domain/audit"
)

// auditEvent starts an audit event for the caller of r.
func auditEvent(r *http.Request, sess middleware.Session, category auditDomain.Category, action auditDomain.Action) auditDomain.Event {
	return auditDomain.NewEvent(generateID(), timeNow(), sess.AccountID, sess.Role, category, action).
		WithIP(middleware.ClientIP(r))
}

// recordAudit appends e to the audit trail. A failed write is logged and
// never fails the request that caused it.
// INVARIANT: a nil AuditStore disables the trail
func recordAudit(ctx context.Context, e auditDomain.Event) {
	if stores.AuditStore == nil {
		return
	}
	if err := e.Validate(); err != nil {
		slog.Warn("audit_event_invalid", "action", e.Action, "error", err)
		return
	}
	if err := stores.AuditStore.Save(context.WithoutCancel(ctx), e); err != nil {
		slog.Error("audit_write_failed", "category", e.Category, "action", e.Action, "error", err)
	}
}

// handleAdminAudit handles GET /api/admin/audit
// Filters: category, action, actorId, resourceId, from and to (YYYY-MM-DD, gym time, to inclusive), limit.
func handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok || !requireMethod(w, r, http.MethodGet) {
		return
	}
	if stores.AuditStore == nil {
		http.Error(w, "audit trail is disabled", http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	filter := auditStore.Filter{
		Category:   auditDomain.Category(q.Get("category")),
		Action:     auditDomain.Action(q.Get("action")),
		ActorID:    q.Get("actorId"),
		ResourceID: q.Get("resourceId"),
	}
	from, err := parseDay(q.Get("from"))
	if err != nil {
		http.Error(w, "from must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	to, err := parseDay(q.Get("to"))
	if err != nil {
		http.Error(w, "to must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	filter.From = from
	if !to.IsZero() {
		filter.To = to.AddDate(0, 0, 1)
	}

	limit := 100
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 1000 {
		limit = l
	}

	list, err := stores.AuditStore.List(r.Context(), filter, limit)
	if err != nil {
		internalError(w, err)
		return
	}
	if list == nil {
		list = []auditDomain.Event{}
	}
	writeJSON(w, http.StatusOK, list)
}
