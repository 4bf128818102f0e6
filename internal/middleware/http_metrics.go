// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Static routes that pass through normalizePath unchanged.
var staticRoutes = map[string]bool{
	"/":         true,
	"/checkout": true,
	"/refunds":  true,
	"/health":   true,
	"/ready":    true,
	"/metrics":  true,
}

// normalizePath collapses dynamic path segments into route patterns so
// attempt and order IDs do not blow up label cardinality. /checkout/abc123
// becomes /checkout/{id}, and the subroutes under it keep their suffix.
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}

	if strings.HasPrefix(path, "/checkout/") {
		parts := strings.Split(path, "/")
		if len(parts) >= 3 && parts[2] != "" {
			switch len(parts) {
			case 3:
				return "/checkout/{id}"
			case 4:
				switch parts[3] {
				case "cancel", "reset", "events":
					return "/checkout/{id}/" + parts[3]
				}
			case 5:
				if parts[3] == "handoff" && (parts[4] == "closed" || parts[4] == "navigated") {
					return "/checkout/{id}/handoff/" + parts[4]
				}
			}
		}
	}

	if strings.HasPrefix(path, "/orders/") {
		parts := strings.Split(path, "/")
		if len(parts) == 3 && parts[2] != "" {
			return "/orders/{id}"
		}
	}

	// Unknown routes keep their literal path so new endpoints still show up.
	return path
}

// metricsResponseWriter captures the status code and cumulative body size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader records the first status code; later calls are ignored, matching
// net/http behavior.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// HTTPMetrics records duration, size, and count metrics for every request.
// /health and /ready are skipped so readiness probes do not dominate the
// series.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)

			// Content-Length is good enough for request size; checkout
			// submissions always carry it.
			var requestSize int64
			if cl := r.Header.Get("Content-Length"); cl != "" {
				if size, err := strconv.ParseInt(cl, 10, 64); err == nil {
					requestSize = size
				}
			}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
