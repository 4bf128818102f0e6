// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strings"
)

// pprofEndpoints is the surface exposed when profiling is on. Heap and
// goroutine profiles are the ones that matter when a checkout poller leaks.
var pprofEndpoints = []string{
	"/debug/pprof/",
	"/debug/pprof/profile",
	"/debug/pprof/heap",
	"/debug/pprof/goroutine",
	"/debug/pprof/block",
	"/debug/pprof/mutex",
	"/debug/pprof/threadcreate",
	"/debug/pprof/allocs",
	"/debug/pprof/cmdline",
	"/debug/pprof/symbol",
	"/debug/pprof/trace",
}

// ProfilingConfig configures the profiling middleware.
type ProfilingConfig struct {
	// Enabled exposes /debug/pprof/*. Development only: profiles can leak
	// customer and payment data held in memory.
	Enabled bool

	// Environment gates a second check; "production"/"prod" always refuse.
	Environment string
}

// Profiling exposes the net/http/pprof handlers under /debug/pprof/ when
// enabled. The production environment refuses activation outright and logs
// the attempt, so a misconfigured deploy fails loud instead of leaking
// runtime internals.
func Profiling(config ProfilingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !config.Enabled {
			return next
		}

		if config.Environment == "production" || config.Environment == "prod" {
			slog.Error("refusing to enable profiling in production",
				"environment", config.Environment,
			)
			return next
		}

		slog.Warn("profiling endpoints enabled",
			"environment", config.Environment,
			"endpoints", "/debug/pprof/*",
		)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/debug/pprof") {
				next.ServeHTTP(w, r)
				return
			}

			switch r.URL.Path {
			case "/debug/pprof/cmdline":
				pprof.Cmdline(w, r)
			case "/debug/pprof/profile":
				pprof.Profile(w, r)
			case "/debug/pprof/symbol":
				pprof.Symbol(w, r)
			case "/debug/pprof/trace":
				pprof.Trace(w, r)
			default:
				// Index serves /debug/pprof/ and the named runtime profiles.
				pprof.Index(w, r)
			}
		})
	}
}

// ProfilingStatus reports the profiling configuration as JSON, for checking
// what a running instance actually has enabled.
func ProfilingStatus(config ProfilingConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "disabled"
		if config.Enabled {
			status = "enabled"
		}

		body, err := json.MarshalIndent(struct {
			ProfilingEnabled bool     `json:"profiling_enabled"`
			Environment      string   `json:"environment"`
			Status           string   `json:"status"`
			Endpoints        []string `json:"endpoints"`
		}{
			ProfilingEnabled: config.Enabled,
			Environment:      config.Environment,
			Status:           status,
			Endpoints:        pprofEndpoints,
		}, "", "  ")
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(body); err != nil {
			slog.Error("failed to write profiling status response", "error", err)
		}
	}
}
