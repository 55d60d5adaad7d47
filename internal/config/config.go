// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, database selection, session verification, vendor credentials
// (Gemini, PayPal, SMTP, S3), rate limiting, retention and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects the GORM dialect and its connection string.
type DBConfig struct {
	Driver       string // sqlite|postgres|mysql
	DSN          string // file path for sqlite, DSN otherwise
	MaxOpenConns int
}

// AuthConfig configures session token verification.
type AuthConfig struct {
	JWTSecret   string
	Issuer      string   // optional; enforced when set
	CookieName  string   // session cookie checked when no bearer token is sent
	PublicPaths []string // exact paths, or prefixes ending in "/*"
}

// GeminiConfig configures the text-completion collaborator.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// MediaConfig configures the placeholder image and video providers.
type MediaConfig struct {
	ImageBaseURL   string
	VideoBaseURL   string
	ImageMaxAmount int
}

// S3Config configures the optional asset mirror.
type S3Config struct {
	Enabled       bool
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
	UsePathStyle  bool
	Prefix        string
}

// PayPalConfig configures the payment-provider collaborator.
type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	Currency     string
	ReturnURL    string
	CancelURL    string
	Timeout      time.Duration
}

// SMTPConfig configures contact-form delivery. An empty Host disables SMTP
// and contact messages are only logged.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	Recipient string
}

// RetentionConfig configures the scheduled deletion of old generations.
type RetentionConfig struct {
	Enabled  bool
	Days     int
	Interval time.Duration
}

// CacheConfig bounds the in-process subject -> user cache.
type CacheConfig struct {
	MaxBytes int64
	TTL      time.Duration
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	DB     DBConfig
	Auth   AuthConfig
	Gemini GeminiConfig
	Media  MediaConfig
	S3     S3Config
	PayPal PayPalConfig
	SMTP   SMTPConfig

	// Rate limiting
	RateRPS   float64
	RateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	IdempotencyTTL time.Duration
	Retention      RetentionConfig
	UserCache      CacheConfig

	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadDotEnv merges variables from the given .env files into the process
// environment without overriding values that are already set. Missing files
// are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", p, err)
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	apiBase := normalizeBasePath(getenv("API_BASE_PATH", "/api"))

	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 15*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    apiBase,

		DB: DBConfig{
			Driver:       strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			DSN:          getenv("DB_DSN", "app.db"),
			MaxOpenConns: getint("DB_MAX_OPEN_CONNS", 10),
		},
		Auth: AuthConfig{
			JWTSecret:   os.Getenv("AUTH_JWT_SECRET"),
			Issuer:      getenv("AUTH_JWT_ISSUER", ""),
			CookieName:  getenv("AUTH_COOKIE_NAME", "__session"),
			PublicPaths: splitCSV(getenv("AUTH_PUBLIC_PATHS", defaultPublicPaths(apiBase))),
		},
		Gemini: GeminiConfig{
			APIKey:  os.Getenv("GEMINI_API_KEY"),
			Model:   getenv("GEMINI_MODEL", "gemini-1.5-flash"),
			BaseURL: getenv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
			Timeout: getdur("GEMINI_TIMEOUT", 45*time.Second),
		},
		Media: MediaConfig{
			ImageBaseURL:   getenv("IMAGE_PROVIDER_BASE_URL", "https://picsum.photos"),
			VideoBaseURL:   getenv("VIDEO_PROVIDER_BASE_URL", "https://videos.example.com"),
			ImageMaxAmount: getint("IMAGE_MAX_AMOUNT", 4),
		},
		S3: S3Config{
			Enabled:       getbool("S3_ENABLED", false),
			Endpoint:      getenv("S3_ENDPOINT", ""),
			Region:        getenv("S3_REGION", ""),
			AccessKey:     getenv("S3_ACCESS_KEY", ""),
			SecretKey:     getenv("S3_SECRET_KEY", ""),
			Bucket:        getenv("S3_BUCKET", ""),
			PublicBaseURL: getenv("S3_PUBLIC_BASE_URL", ""),
			UsePathStyle:  getbool("S3_USE_PATH_STYLE", false),
			Prefix:        getenv("S3_PREFIX", "generations"),
		},
		PayPal: PayPalConfig{
			ClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
			ClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
			BaseURL:      getenv("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
			Currency:     strings.ToUpper(getenv("PAYPAL_CURRENCY", "USD")),
			ReturnURL:    getenv("PAYPAL_RETURN_URL", "http://localhost:3000/settings?payment=success"),
			CancelURL:    getenv("PAYPAL_CANCEL_URL", "http://localhost:3000/settings?payment=cancelled"),
			Timeout:      getdur("PAYPAL_TIMEOUT", 30*time.Second),
		},
		SMTP: SMTPConfig{
			Host:      getenv("SMTP_HOST", ""),
			Port:      getint("SMTP_PORT", 587),
			Username:  getenv("SMTP_USERNAME", ""),
			Password:  getenv("SMTP_PASSWORD", ""),
			From:      getenv("SMTP_FROM", "no-reply@localhost"),
			Recipient: getenv("CONTACT_RECIPIENT", ""),
		},

		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),
		Retention: RetentionConfig{
			Enabled:  getbool("RETENTION_ENABLED", true),
			Days:     getint("RETENTION_DAYS", 30),
			Interval: getdur("RETENTION_INTERVAL", 24*time.Hour),
		},
		UserCache: CacheConfig{
			MaxBytes: int64(getint("USER_CACHE_MAX_BYTES", 1<<20)),
			TTL:      getdur("USER_CACHE_TTL", 10*time.Minute),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "genai-studio"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DB.Driver == "postgresql" {
		cfg.DB.Driver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres, mysql")
	}
	if strings.TrimSpace(cfg.DB.DSN) == "" {
		return cfg, errors.New("DB_DSN must not be empty")
	}
	if cfg.DB.MaxOpenConns < 1 {
		return cfg, errors.New("DB_MAX_OPEN_CONNS must be >= 1")
	}
	if len(cfg.Auth.JWTSecret) < 16 {
		return cfg, errors.New("AUTH_JWT_SECRET must be at least 16 bytes")
	}
	if cfg.Media.ImageMaxAmount < 1 {
		return cfg, errors.New("IMAGE_MAX_AMOUNT must be >= 1")
	}
	if cfg.S3.Enabled && (cfg.S3.Bucket == "" || cfg.S3.Region == "" || cfg.S3.PublicBaseURL == "") {
		return cfg, errors.New("S3_BUCKET, S3_REGION and S3_PUBLIC_BASE_URL are required when S3_ENABLED")
	}
	if len(cfg.PayPal.Currency) != 3 {
		return cfg, errors.New("PAYPAL_CURRENCY must be a 3-letter ISO code")
	}
	if cfg.SMTP.Host != "" && (cfg.SMTP.Port <= 0 || cfg.SMTP.Recipient == "") {
		return cfg, errors.New("SMTP_PORT and CONTACT_RECIPIENT are required when SMTP_HOST is set")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.Retention.Enabled && (cfg.Retention.Days < 1 || cfg.Retention.Interval <= 0) {
		return cfg, errors.New("RETENTION_DAYS must be >= 1 and RETENTION_INTERVAL > 0")
	}
	if cfg.UserCache.MaxBytes < 0 {
		return cfg, errors.New("USER_CACHE_MAX_BYTES must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// defaultPublicPaths lists the routes reachable without a session.
func defaultPublicPaths(apiBase string) string {
	prefix := apiBase
	if prefix == "/" {
		prefix = ""
	}
	return strings.Join([]string{
		"/health",
		"/metrics",
		"/swagger/*",
		prefix + "/email/contact",
	}, ",")
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
