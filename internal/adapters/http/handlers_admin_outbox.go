package web

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"gymdesk/internal/adapters/http/middleware"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/domain/audit"
	"gymdesk/internal/domain/outbox"
)

var outboxStatuses = []string{
	outbox.StatusPending, outbox.StatusRetrying, outbox.StatusDone, outbox.StatusFailed, outbox.StatusAbandoned,
}

// processor returns the installed outbox processor, or one without
// executors that can still abandon and purge.
func processor() *orchestrators.OutboxProcessor {
	if outboxProcessor != nil {
		return outboxProcessor
	}
	return orchestrators.NewOutboxProcessor(stores.OutboxStore, nil)
}

// handleAdminOutbox handles
// GET  /api/admin/outbox?status=&limit=  (status defaults to failed; pending lists every open entry)
// POST /api/admin/outbox/purge
// POST /api/admin/outbox/{id}/retry
// POST /api/admin/outbox/{id}/abandon
func handleAdminOutbox(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		listOutbox(w, r)
	case http.MethodPost:
		actOnOutbox(w, r, sess)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func listOutbox(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	if status == "" {
		status = outbox.StatusFailed
	}
	if !slices.Contains(outboxStatuses, status) {
		http.Error(w, "unknown status", http.StatusBadRequest)
		return
	}
	limit := 50
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 && n <= 100 {
		limit = n
	}

	var entries []outbox.Entry
	var err error
	if status == outbox.StatusPending {
		entries, err = stores.OutboxStore.ListPending(r.Context(), limit)
	} else {
		entries, err = stores.OutboxStore.ListByStatus(r.Context(), status, limit)
	}
	if err != nil {
		internalError(w, err)
		return
	}
	if entries == nil {
		entries = []outbox.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func actOnOutbox(w http.ResponseWriter, r *http.Request, sess middleware.Session) {
	ctx := r.Context()
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/admin/outbox"), "/")

	if rest == "purge" {
		n, err := processor().Purge(ctx)
		if err != nil {
			internalError(w, err)
			return
		}
		recordAudit(ctx, auditEvent(r, sess, audit.CategoryOutbox, audit.ActionPurge).
			WithDescription(strconv.FormatInt(n, 10)+" settled entries"))
		writeJSON(w, http.StatusOK, map[string]int64{"purged": n})
		return
	}

	entryID, action, found := strings.Cut(rest, "/")
	if !found || entryID == "" || strings.Contains(action, "/") {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}

	var err error
	var auditAction audit.Action
	switch action {
	case "retry":
		err, auditAction = processor().ProcessSingle(ctx, entryID), audit.ActionRetry
	case "abandon":
		err, auditAction = processor().AbandonEntry(ctx, entryID), audit.ActionAbandon
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	switch {
	case errors.Is(err, orchestrators.ErrTerminalEntry), errors.Is(err, orchestrators.ErrNoExecutor):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		writeAdminError(w, err)
		return
	}
	recordAudit(ctx, auditEvent(r, sess, audit.CategoryOutbox, auditAction).WithResource("outbox", entryID))

	entry, err := stores.OutboxStore.GetByID(ctx, entryID)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
