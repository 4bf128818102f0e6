// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database. Empty falls back to the in-memory order store.
	DatabaseURL string `koanf:"database_url"`

	// Redis. Empty falls back to the in-memory cart store.
	RedisAddr string `koanf:"redis_addr"`

	// Payment gateway
	GatewayProvider string `koanf:"gateway_provider"` // "http" or "stripe"
	GatewayBaseURL  string `koanf:"gateway_base_url"`
	GatewayAPIKey   string `koanf:"gateway_api_key"`

	// Stripe (used when gateway_provider == "stripe")
	StripeAPIKey     string `koanf:"stripe_api_key"`
	StripeSuccessURL string `koanf:"stripe_success_url"`
	StripeCancelURL  string `koanf:"stripe_cancel_url"`

	// HTTP surface
	AllowedOrigins  string `koanf:"allowed_origins"` // Comma-separated CORS origins; empty disables CORS
	RateLimitRPM    int    `koanf:"rate_limit_rpm"`  // Global per-IP requests per minute
	ProfilingEnable bool   `koanf:"profiling_enable"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporter     string  `koanf:"tracing_exporter"` // "otlp-http" or "otlp-grpc"
	TracingOTLPEndpoint string  `koanf:"tracing_otlp_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
	TracingInsecure     bool    `koanf:"tracing_insecure"`

	// Checkout behavior
	DefaultCurrency      string `koanf:"default_currency"`
	AllowedMethods       string `koanf:"allowed_methods"` // Comma-separated
	PollIntervalSeconds  int    `koanf:"poll_interval_seconds"`
	MaxPollMinutes       int    `koanf:"max_poll_minutes"` // 0 disables the client-side poll deadline
	SessionExpiryMinutes int    `koanf:"session_expiry_minutes"`
	RedirectDelayMS      int    `koanf:"redirect_delay_ms"`
	FormCleanupDelayMS   int    `koanf:"form_cleanup_delay_ms"`
	TaxRateBps           int    `koanf:"tax_rate_bps"` // Basis points; 1700 = 17%
}

// Gateway provider values.
const (
	ProviderHTTP   = "http"
	ProviderStripe = "stripe"
)

// Configuration validation errors.
var (
	ErrMissingGatewayBaseURL  = errors.New("GATEWAY_BASE_URL is required for the http gateway provider")
	ErrMissingGatewayAPIKey   = errors.New("GATEWAY_API_KEY is required for the http gateway provider")
	ErrMissingStripeAPIKey    = errors.New("STRIPE_API_KEY is required for the stripe gateway provider")
	ErrMissingStripeURLs      = errors.New("STRIPE_SUCCESS_URL and STRIPE_CANCEL_URL are required for the stripe gateway provider")
	ErrUnknownGatewayProvider = errors.New("GATEWAY_PROVIDER must be \"http\" or \"stripe\"")
	ErrInvalidPort            = errors.New("PORT must be a valid integer")
	ErrInvalidSamplingRate    = errors.New("TRACING_SAMPLING_RATE must be between 0.0 and 1.0")
)

// Default values for non-secret configuration.
const (
	DefaultPort                 = 8080
	DefaultEnv                  = "development"
	DefaultGatewayProvider      = ProviderHTTP
	DefaultCurrency             = "ILS"
	DefaultAllowedMethods       = "credit_card"
	DefaultPollIntervalSeconds  = 3
	DefaultSessionExpiryMinutes = 30
	DefaultRedirectDelayMS      = 2000
	DefaultFormCleanupDelayMS   = 1000
	DefaultTaxRateBps           = 1700
	DefaultRateLimitRPM         = 100
	DefaultTracingExporter      = "otlp-http"
	DefaultTracingSamplingRate  = 0.1
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefault("PORT", k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	intSetting := func(envKey, koanfKey string, def int) int {
		v, err := getEnvIntOrDefault(envKey, k.Int(koanfKey), def)
		if err != nil {
			loadErrs = append(loadErrs, err)
		}
		return v
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:        port,
		Env:         getEnvOrDefault("ENV", k.String("env"), DefaultEnv),
		DatabaseURL: getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisAddr:   getEnvOrKoanf("REDIS_ADDR", k, "redis_addr"),

		GatewayProvider: getEnvOrDefault("GATEWAY_PROVIDER", k.String("gateway_provider"), DefaultGatewayProvider),
		GatewayBaseURL:  getEnvOrKoanf("GATEWAY_BASE_URL", k, "gateway_base_url"),
		GatewayAPIKey:   getEnvOrKoanf("GATEWAY_API_KEY", k, "gateway_api_key"),

		StripeAPIKey:     getEnvOrKoanf("STRIPE_API_KEY", k, "stripe_api_key"),
		StripeSuccessURL: getEnvOrKoanf("STRIPE_SUCCESS_URL", k, "stripe_success_url"),
		StripeCancelURL:  getEnvOrKoanf("STRIPE_CANCEL_URL", k, "stripe_cancel_url"),

		AllowedOrigins:  getEnvOrKoanf("ALLOWED_ORIGINS", k, "allowed_origins"),
		RateLimitRPM:    intSetting("RATE_LIMIT_RPM", "rate_limit_rpm", DefaultRateLimitRPM),
		ProfilingEnable: getEnvBoolOrKoanf("PROFILING_ENABLE", k, "profiling_enable"),

		TracingEnabled:      getEnvBoolOrKoanf("TRACING_ENABLED", k, "tracing_enabled"),
		TracingExporter:     getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter),
		TracingOTLPEndpoint: getEnvOrKoanf("TRACING_OTLP_ENDPOINT", k, "tracing_otlp_endpoint"),
		TracingSamplingRate: getEnvFloatOrDefault("TRACING_SAMPLING_RATE", k.Float64("tracing_sampling_rate"), DefaultTracingSamplingRate),
		TracingInsecure:     getEnvBoolOrKoanf("TRACING_INSECURE", k, "tracing_insecure"),

		DefaultCurrency:      getEnvOrDefault("DEFAULT_CURRENCY", k.String("default_currency"), DefaultCurrency),
		AllowedMethods:       getEnvOrDefault("ALLOWED_METHODS", k.String("allowed_methods"), DefaultAllowedMethods),
		PollIntervalSeconds:  intSetting("POLL_INTERVAL_SECONDS", "poll_interval_seconds", DefaultPollIntervalSeconds),
		MaxPollMinutes:       intSetting("MAX_POLL_MINUTES", "max_poll_minutes", 0),
		SessionExpiryMinutes: intSetting("SESSION_EXPIRY_MINUTES", "session_expiry_minutes", DefaultSessionExpiryMinutes),
		RedirectDelayMS:      intSetting("REDIRECT_DELAY_MS", "redirect_delay_ms", DefaultRedirectDelayMS),
		FormCleanupDelayMS:   intSetting("FORM_CLEANUP_DELAY_MS", "form_cleanup_delay_ms", DefaultFormCleanupDelayMS),
		TaxRateBps:           intSetting("TAX_RATE_BPS", "tax_rate_bps", DefaultTaxRateBps),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// AllowedMethodList splits the comma-separated allowed methods setting.
func (c *Config) AllowedMethodList() []string {
	var methods []string
	for _, m := range strings.Split(c.AllowedMethods, ",") {
		if m = strings.TrimSpace(m); m != "" {
			methods = append(methods, m)
		}
	}
	return methods
}

// AllowedOriginList splits the comma-separated CORS origins setting.
func (c *Config) AllowedOriginList() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
// Note: a zero value in a YAML file falls back to the default; explicit zeroes must come from env.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvBoolOrKoanf returns the environment variable as bool if set, otherwise the koanf value.
func getEnvBoolOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) bool {
	if val := os.Getenv(envKey); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return k.Bool(koanfKey)
}

// getEnvFloatOrDefault returns the environment variable as float if set, otherwise the koanf value, or default.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) float64 {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	if koanfVal != 0 {
		return koanfVal
	}
	return defaultVal
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	switch c.GatewayProvider {
	case ProviderHTTP:
		if c.GatewayBaseURL == "" {
			errs = append(errs, ErrMissingGatewayBaseURL)
		}
		if c.GatewayAPIKey == "" {
			errs = append(errs, ErrMissingGatewayAPIKey)
		}
	case ProviderStripe:
		if c.StripeAPIKey == "" {
			errs = append(errs, ErrMissingStripeAPIKey)
		}
		if c.StripeSuccessURL == "" || c.StripeCancelURL == "" {
			errs = append(errs, ErrMissingStripeURLs)
		}
	default:
		errs = append(errs, ErrUnknownGatewayProvider)
	}

	if c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1 {
		errs = append(errs, ErrInvalidSamplingRate)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                   fmt.Sprintf("%d", c.Port),
		"env":                    c.Env,
		"database_url":           maskDatabaseURL(c.DatabaseURL),
		"redis_addr":             c.RedisAddr,
		"gateway_provider":       c.GatewayProvider,
		"gateway_base_url":       c.GatewayBaseURL,
		"gateway_api_key":        maskSecret(c.GatewayAPIKey),
		"stripe_api_key":         maskStripeKey(c.StripeAPIKey),
		"stripe_success_url":     c.StripeSuccessURL,
		"stripe_cancel_url":      c.StripeCancelURL,
		"allowed_origins":        c.AllowedOrigins,
		"rate_limit_rpm":         fmt.Sprintf("%d", c.RateLimitRPM),
		"profiling_enable":       fmt.Sprintf("%t", c.ProfilingEnable),
		"tracing_enabled":        fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_exporter":       c.TracingExporter,
		"tracing_otlp_endpoint":  c.TracingOTLPEndpoint,
		"default_currency":       c.DefaultCurrency,
		"allowed_methods":        c.AllowedMethods,
		"poll_interval_seconds":  fmt.Sprintf("%d", c.PollIntervalSeconds),
		"max_poll_minutes":       fmt.Sprintf("%d", c.MaxPollMinutes),
		"session_expiry_minutes": fmt.Sprintf("%d", c.SessionExpiryMinutes),
		"redirect_delay_ms":      fmt.Sprintf("%d", c.RedirectDelayMS),
		"form_cleanup_delay_ms":  fmt.Sprintf("%d", c.FormCleanupDelayMS),
		"tax_rate_bps":           fmt.Sprintf("%d", c.TaxRateBps),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskStripeKey masks a Stripe API key, preserving the prefix (sk_live_, sk_test_, etc.)
func maskStripeKey(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Stripe keys have format like sk_live_..., sk_test_..., pk_live_..., etc.
	parts := strings.SplitN(s, "_", 3)
	if len(parts) == 3 {
		return parts[0] + "_" + parts[1] + "_****"
	}

	// Fallback to generic masking
	return maskSecret(s)
}

// maskDatabaseURL masks the password in a database URL.
// Supports both postgres:// and postgresql:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Look for password pattern: user:password@host
	// Simple approach: find :// and then mask between : and @
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	// Reconstruct URL with masked password
	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
