package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gymdesk/internal/application/events"
)

// sseKeepAlive is how often an idle stream gets a comment line.
var sseKeepAlive = 25 * time.Second

// handleEvents handles GET /api/events?courseId=&all=
// Streams registration changes as server-sent events. Members receive their own
// changes plus anonymised changes on the courses they name; staff may ask for all.
func handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok || !requireMethod(w, r, http.MethodGet) {
		return
	}
	if stores.Hub == nil {
		http.Error(w, "live updates are disabled", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	topics := []string{events.UserTopic(sess.AccountID)}
	for _, id := range r.URL.Query()["courseId"] {
		topics = append(topics, events.CourseTopic(id))
	}
	if sess.IsStaff() && queryBool(r, "all") {
		topics = []string{events.Wildcard}
	}
	changes, unsubscribe := stores.Hub.Subscribe(topics...)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	slog.Debug("event_stream_opened", "account_id", sess.AccountID, "topics", len(topics))
	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			slog.Debug("event_stream_closed", "account_id", sess.AccountID)
			return
		case c, open := <-changes:
			if !open {
				return
			}
			if !sess.IsStaff() && c.UserID != sess.AccountID {
				c.UserID, c.RegistrationID = "", ""
			}
			data, err := json.Marshal(c)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", c.Kind, data)
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
