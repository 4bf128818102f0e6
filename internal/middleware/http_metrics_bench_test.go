package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func benchMetricsHandler(b *testing.B) http.Handler {
	b.Helper()

	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		b.Fatalf("Register() failed: %v", err)
	}

	return HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"attempt_id":"attempt-1"}`))
	}))
}

// BenchmarkHTTPMetrics_Overhead compares a bare handler against the same
// handler behind the metrics middleware.
func BenchmarkHTTPMetrics_Overhead(b *testing.B) {
	b.Run("without_middleware", func(b *testing.B) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"attempt_id":"attempt-1"}`))
		})
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
		}
	})

	b.Run("with_middleware", func(b *testing.B) {
		wrapped := benchMetricsHandler(b)
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, req)
		}
	})
}

// BenchmarkHTTPMetrics_HealthCheckExclusion measures the excluded-path
// short circuit, which liveness probes hit constantly.
func BenchmarkHTTPMetrics_HealthCheckExclusion(b *testing.B) {
	wrapped := benchMetricsHandler(b)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
	}
}

// BenchmarkHTTPMetrics_PathNormalization cycles through the storefront
// routes so every normalizePath branch is on the hot path.
func BenchmarkHTTPMetrics_PathNormalization(b *testing.B) {
	wrapped := benchMetricsHandler(b)

	paths := []string{
		"/checkout",
		"/checkout/attempt-1",
		"/checkout/attempt-1/cancel",
		"/checkout/attempt-1/events",
		"/orders/order-1",
	}
	reqs := make([]*http.Request, len(paths))
	for i, path := range paths {
		reqs[i] = httptest.NewRequest(http.MethodGet, path, nil)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, reqs[i%len(reqs)])
	}
}
