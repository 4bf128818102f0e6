package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// The storefront stack wires RequestID outside CORS, so even rejected
// cross-origin requests carry a request ID for log correlation.
func TestCORS_IntegrationWithMiddlewareStack(t *testing.T) {
	corsConfig := CORSConfig{
		AllowedOrigins:   []string{shopOrigin},
		AllowCredentials: true,
		MaxAge:           600,
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	wrapped := RequestID(CORS(corsConfig)(handler))

	t.Run("preflight carries request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/checkout", nil)
		req.Header.Set("Origin", shopOrigin)
		req.Header.Set("Access-Control-Request-Method", "POST")
		rr := httptest.NewRecorder()

		wrapped.ServeHTTP(rr, req)

		if rr.Code != http.StatusNoContent {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusNoContent)
		}
		if origin := rr.Header().Get("Access-Control-Allow-Origin"); origin != shopOrigin {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", origin, shopOrigin)
		}
		if reqID := rr.Header().Get("X-Request-ID"); reqID == "" {
			t.Error("X-Request-ID missing on preflight response")
		}
	})

	t.Run("actual request passes both layers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders/order-1", nil)
		req.Header.Set("Origin", shopOrigin)
		rr := httptest.NewRecorder()

		wrapped.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
		}
		if origin := rr.Header().Get("Access-Control-Allow-Origin"); origin != shopOrigin {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", origin, shopOrigin)
		}
		if reqID := rr.Header().Get("X-Request-ID"); reqID == "" {
			t.Error("X-Request-ID missing")
		}
		if body := rr.Body.String(); body != "OK" {
			t.Errorf("body = %q, want OK", body)
		}
	})

	t.Run("rejected origin still gets request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/checkout", nil)
		req.Header.Set("Origin", "https://evil.example.net")
		rr := httptest.NewRecorder()

		wrapped.ServeHTTP(rr, req)

		if rr.Code != http.StatusForbidden {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusForbidden)
		}
		if reqID := rr.Header().Get("X-Request-ID"); reqID == "" {
			t.Error("X-Request-ID missing on rejected request")
		}
		if origin := rr.Header().Get("Access-Control-Allow-Origin"); origin != "" {
			t.Errorf("Access-Control-Allow-Origin = %q for rejected origin, want none", origin)
		}
	})
}
