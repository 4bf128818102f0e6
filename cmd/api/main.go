// Package main is the entry point for the storefront API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/storefront/internal/api"
	"github.com/onnwee/storefront/internal/cart"
	"github.com/onnwee/storefront/internal/checkout"
	"github.com/onnwee/storefront/internal/config"
	"github.com/onnwee/storefront/internal/gateway"
	"github.com/onnwee/storefront/internal/health"
	"github.com/onnwee/storefront/internal/idempotency"
	"github.com/onnwee/storefront/internal/middleware"
	"github.com/onnwee/storefront/internal/notify"
	"github.com/onnwee/storefront/internal/order"
	"github.com/onnwee/storefront/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Storefront API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	summaryArgs := make([]any, 0, 32)
	for key, value := range cfg.LogSummary() {
		summaryArgs = append(summaryArgs, key, value)
	}
	logger.Info("configuration loaded", summaryArgs...)

	// Distributed tracing
	tracingProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "storefront-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Order repository: Postgres when configured, in-memory otherwise
	var orders order.Repository
	var dbChecker api.HealthChecker
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		orders = order.NewPostgresRepository(db)
		dbChecker = health.NewDBChecker(db)
		logger.Info("using postgres order repository")
	} else {
		orders = order.NewInMemoryRepository()
		logger.Info("using in-memory order repository")
	}

	// Cart store: Redis when configured, in-memory otherwise
	var carts cart.Store
	var redisChecker api.HealthChecker
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		carts = cart.NewRedisStore(rdb)
		redisChecker = health.NewRedisChecker(rdb)
		logger.Info("using redis cart store", "addr", cfg.RedisAddr)
	} else {
		carts = cart.NewInMemoryStore()
		logger.Info("using in-memory cart store")
	}

	// Payment gateway client
	var client gateway.Client
	var gatewayChecker api.HealthChecker
	switch cfg.GatewayProvider {
	case config.ProviderStripe:
		client = gateway.NewStripeClient(cfg.StripeAPIKey, cfg.StripeSuccessURL, cfg.StripeCancelURL)
		logger.Info("using stripe payment gateway")
	default:
		httpClient := gateway.NewHTTPClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey, 0)
		client = httpClient
		gatewayChecker = httpClient
		logger.Info("using http payment gateway", "base_url", cfg.GatewayBaseURL)
	}

	reg := prometheus.NewRegistry()
	checkoutMetrics := checkout.NewMetrics()
	if err := checkoutMetrics.Register(reg); err != nil {
		logger.Error("failed to register checkout metrics", "error", err)
		os.Exit(1)
	}
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(reg); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}

	broadcaster := checkout.NewEventBroadcaster()
	launcher := checkout.NewRemoteLauncher()
	notifier := notify.NewSlogNotifier(logger)

	svc := checkout.NewService(
		checkout.Config{
			DefaultCurrency:  cfg.DefaultCurrency,
			AllowedMethods:   cfg.AllowedMethodList(),
			PollInterval:     time.Duration(cfg.PollIntervalSeconds) * time.Second,
			MaxPollDuration:  time.Duration(cfg.MaxPollMinutes) * time.Minute,
			RedirectDelay:    time.Duration(cfg.RedirectDelayMS) * time.Millisecond,
			FormCleanupDelay: time.Duration(cfg.FormCleanupDelayMS) * time.Millisecond,
			TaxRateBps:       int64(cfg.TaxRateBps),
		},
		orders,
		carts,
		client,
		launcher,
		notifier,
		broadcaster,
		checkoutMetrics,
		logger,
	)

	// Idempotency key store with periodic cleanup
	idemRepo := idempotency.NewInMemoryRepository()
	cleanupStop := make(chan struct{})
	go idempotency.RunPeriodicCleanup(idemRepo, 10*time.Minute, 24*time.Hour, cleanupStop)

	// Concluded attempts stay queryable for an hour, then get dropped.
	go svc.RunAttemptEviction(10*time.Minute, checkout.DefaultAttemptRetention, cleanupStop)

	eventsHandlers := api.NewAttemptEventsHandlers(svc, broadcaster)
	checkoutHandlers := api.NewCheckoutHandlers(svc, eventsHandlers)
	refundHandlers := api.NewRefundHandlers(svc)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:      dbChecker,
		RedisChecker:   redisChecker,
		GatewayChecker: gatewayChecker,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/checkout", checkoutHandlers.SubmitCheckout)
	mux.HandleFunc("/checkout/", checkoutHandlers.AttemptRoutes)
	mux.HandleFunc("/orders/", checkoutHandlers.GetOrder)
	mux.HandleFunc("/refunds", refundHandlers.CreateRefund)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"storefront-api","version":"0.0.1"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Apply middleware, innermost first:
	// RequestID -> Tracing -> Logging -> CORS -> RateLimiter -> HTTPMetrics -> Idempotency
	idempotentRoutes := map[string]bool{
		"/checkout": true,
		"/refunds":  true,
	}
	var handler http.Handler = middleware.Idempotency(idemRepo, idempotentRoutes)(mux)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)

	rateLimitStore := middleware.NewInMemoryRateLimitStore()
	handler = middleware.RateLimiter(rateLimitStore, middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimitRPM,
		WindowDuration:    time.Minute,
	}, middleware.IPKeyFunc(), httpMetrics)(handler)

	if origins := cfg.AllowedOriginList(); len(origins) > 0 {
		// Method and header lists come from the middleware's storefront
		// defaults, which include Idempotency-Key for checkout submissions.
		handler = middleware.CORS(middleware.CORSConfig{
			AllowedOrigins: origins,
			MaxAge:         600,
		})(handler)
	}

	handler = middleware.Logging(logger)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing("storefront-api")(handler)
	}
	handler = middleware.RequestID(handler)

	if cfg.ProfilingEnable && cfg.Env == "development" {
		handler = middleware.Profiling(middleware.ProfilingConfig{
			Enabled:     true,
			Environment: cfg.Env,
		})(handler)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	close(cleanupStop)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tracingProvider.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown tracer provider", "error", err)
	}

	logger.Info("server stopped")
}
