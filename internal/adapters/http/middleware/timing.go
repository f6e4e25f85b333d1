package middleware

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gymdesk/internal/adapters/http/perf"
)

const defaultSlowRequest = 200 * time.Millisecond

// slowRequestThreshold reads GYMDESK_SLOW_REQUEST_MS, falling back to 200ms.
func slowRequestThreshold() time.Duration {
	if n, err := strconv.Atoi(os.Getenv("GYMDESK_SLOW_REQUEST_MS")); err == nil && n > 0 {
		return time.Duration(n) * time.Millisecond
	}
	return defaultSlowRequest
}

var requestSeq atomic.Uint64

// statusWriter remembers the status a handler answered with.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming handlers push partial responses through the wrapper.
func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// untimed reports paths whose duration says nothing about server speed:
// static assets and the long-lived event stream.
func untimed(path string) bool {
	return strings.HasPrefix(path, "/static/") || path == "/api/events"
}

// routeKey groups requests for the perf snapshot. Outbox entry ids are
// folded so every retry lands under one key.
func routeKey(r *http.Request) string {
	path := r.URL.Path
	if rest, ok := strings.CutPrefix(path, "/api/admin/outbox/"); ok && rest != "" {
		if _, action, found := strings.Cut(rest, "/"); found {
			path = "/api/admin/outbox/{id}/" + action
		} else {
			path = "/api/admin/outbox/{id}"
		}
	}
	return r.Method + " " + path
}

// Timing logs every request's duration: DEBUG normally, WARN past the slow
// threshold. A non-nil collector also receives one entry per request,
// including requests whose handler panicked.
func Timing(collector *perf.Collector) func(http.Handler) http.Handler {
	threshold := slowRequestThreshold()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if untimed(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				elapsed := time.Since(start)
				key := routeKey(r)
				level := slog.LevelDebug
				event := "request"
				if elapsed >= threshold {
					level, event = slog.LevelWarn, "slow_request"
				}
				slog.Log(r.Context(), level, event,
					"request_id", requestSeq.Add(1),
					"route", key,
					"status", sw.status,
					"duration_ms", float64(elapsed.Microseconds())/1000.0,
				)
				if collector != nil {
					collector.Record(perf.Entry{
						Kind:     perf.KindRequest,
						Key:      key,
						Status:   sw.status,
						Duration: elapsed,
						At:       start,
					})
				}
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
