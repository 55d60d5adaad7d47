package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123"

func withSecret(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_JWT_SECRET", testSecret)
}

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	withSecret(t)
	t.Setenv("LOG_LEVEL", "verbose")
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	withSecret(t)
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.APIBasePath != "/api" {
		t.Fatalf("API_BASE_PATH default expected '/api', got %q", cfg.APIBasePath)
	}
}

func TestLoad_Defaults(t *testing.T) {
	withSecret(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.DSN != "app.db" {
		t.Fatalf("db defaults unexpected: %+v", cfg.DB)
	}
	if cfg.Auth.CookieName != "__session" {
		t.Fatalf("cookie default unexpected: %q", cfg.Auth.CookieName)
	}
	wantPublic := []string{"/health", "/metrics", "/swagger/*", "/api/email/contact"}
	if !reflect.DeepEqual(cfg.Auth.PublicPaths, wantPublic) {
		t.Fatalf("public paths: got %#v want %#v", cfg.Auth.PublicPaths, wantPublic)
	}
	if cfg.Gemini.Model != "gemini-1.5-flash" || cfg.Gemini.APIKey != "" {
		t.Fatalf("gemini defaults unexpected: %+v", cfg.Gemini)
	}
	if cfg.Media.ImageMaxAmount != 4 {
		t.Fatalf("image max amount default unexpected: %d", cfg.Media.ImageMaxAmount)
	}
	if cfg.PayPal.Currency != "USD" {
		t.Fatalf("currency default unexpected: %q", cfg.PayPal.Currency)
	}
	if !cfg.Retention.Enabled || cfg.Retention.Days != 30 || cfg.Retention.Interval != 24*time.Hour {
		t.Fatalf("retention defaults unexpected: %+v", cfg.Retention)
	}
	if cfg.S3.Enabled || cfg.SMTP.Host != "" {
		t.Fatalf("optional integrations should be off by default")
	}
}

func TestLoad_Success_Overrides(t *testing.T) {
	withSecret(t)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird")

	t.Setenv("LOG_LEVEL", "warning")
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("API_BASE_PATH", "v1/")

	t.Setenv("DB_DRIVER", "PostgreSQL")
	t.Setenv("DB_DSN", "host=db user=app")
	t.Setenv("AUTH_PUBLIC_PATHS", "/health, /open/* ")
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("PAYPAL_CURRENCY", "eur")
	t.Setenv("IMAGE_MAX_AMOUNT", "8")

	t.Setenv("RATE_RPS", "x")
	t.Setenv("RATE_BURST", "nope")

	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")
	t.Setenv("IDEMPOTENCY_TTL", "48h")

	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/v1" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}
	if cfg.DB.Driver != "postgres" || cfg.DB.DSN != "host=db user=app" {
		t.Fatalf("db unexpected: %+v", cfg.DB)
	}
	if !reflect.DeepEqual(cfg.Auth.PublicPaths, []string{"/health", "/open/*"}) {
		t.Fatalf("public paths unexpected: %#v", cfg.Auth.PublicPaths)
	}
	if cfg.Gemini.APIKey != "k" || cfg.PayPal.Currency != "EUR" || cfg.Media.ImageMaxAmount != 8 {
		t.Fatalf("vendor settings unexpected: %+v %+v %+v", cfg.Gemini, cfg.PayPal, cfg.Media)
	}
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}
	if cfg.IdempotencyTTL != 48*time.Hour {
		t.Fatalf("idempotency ttl unexpected: %v", cfg.IdempotencyTTL)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_PublicPathsFollowBasePath(t *testing.T) {
	withSecret(t)
	t.Setenv("API_BASE_PATH", "/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	last := cfg.Auth.PublicPaths[len(cfg.Auth.PublicPaths)-1]
	if last != "/email/contact" {
		t.Fatalf("contact path with root base: got %q", last)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"invalid LOG_LEVEL", "LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"empty PORT", "PORT", "   ", "PORT must not be empty"},
		{"non-positive timeouts", "READ_TIMEOUT", "0s", "timeouts must be positive"},
		{"max header bytes", "MAX_HEADER_BYTES", "0", "MAX_HEADER_BYTES"},
		{"unknown driver", "DB_DRIVER", "oracle", "DB_DRIVER"},
		{"empty dsn", "DB_DSN", "   ", "DB_DSN must not be empty"},
		{"short secret", "AUTH_JWT_SECRET", "short", "AUTH_JWT_SECRET"},
		{"image max amount", "IMAGE_MAX_AMOUNT", "0", "IMAGE_MAX_AMOUNT"},
		{"bad currency", "PAYPAL_CURRENCY", "DOLLARS", "PAYPAL_CURRENCY"},
		{"rate rps negative", "RATE_RPS", "-1", "RATE_RPS"},
		{"rate burst < 1", "RATE_BURST", "0", "RATE_BURST"},
		{"hsts max age negative", "HSTS_MAX_AGE", "-1s", "HSTS_MAX_AGE"},
		{"idempotency ttl", "IDEMPOTENCY_TTL", "0s", "IDEMPOTENCY_TTL"},
		{"retention days", "RETENTION_DAYS", "0", "RETENTION_DAYS"},
		{"otel sample ratio", "OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			withSecret(t)
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil || !containsErr(err, tc.want) {
				t.Fatalf("expected %s validation error, got: %v", tc.want, err)
			}
		})
	}

	t.Run("s3 enabled without bucket", func(t *testing.T) {
		withSecret(t)
		t.Setenv("S3_ENABLED", "true")
		t.Setenv("S3_REGION", "eu-west-1")
		if _, err := Load(); err == nil || !containsErr(err, "S3_BUCKET") {
			t.Fatalf("expected S3 validation error, got: %v", err)
		}
	})
	t.Run("smtp host without recipient", func(t *testing.T) {
		withSecret(t)
		t.Setenv("SMTP_HOST", "smtp.local")
		if _, err := Load(); err == nil || !containsErr(err, "CONTACT_RECIPIENT") {
			t.Fatalf("expected SMTP validation error, got: %v", err)
		}
	})
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	if err := os.WriteFile(p, []byte("GENAI_TEST_FROM_FILE=file\nGENAI_TEST_PRESET=file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GENAI_TEST_PRESET", "env")
	t.Cleanup(func() { os.Unsetenv("GENAI_TEST_FROM_FILE") })

	if err := LoadDotEnv("", filepath.Join(dir, "missing.env"), p); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("GENAI_TEST_FROM_FILE"); got != "file" {
		t.Fatalf("value from file not loaded: %q", got)
	}
	if got := os.Getenv("GENAI_TEST_PRESET"); got != "env" {
		t.Fatalf("existing env must win, got %q", got)
	}
}

func TestHelpers_getenv(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatalf("getenv should fall back to default on empty var")
	}
	t.Setenv("X_SET", "val")
	if getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv should read set value")
	}
}

func TestHelpers_getfloat_getint_getdur(t *testing.T) {
	t.Setenv("F_VALID", "3.14")
	if getfloat("F_VALID", 0) != 3.14 {
		t.Fatalf("getfloat parse failed")
	}
	t.Setenv("F_BAD", "nope")
	if getfloat("F_BAD", 1.23) != 1.23 {
		t.Fatalf("getfloat default on bad parse failed")
	}
	t.Setenv("I_BAD", "x")
	if getint("I_BAD", 7) != 7 {
		t.Fatalf("getint default on bad parse failed")
	}
	t.Setenv("D_VALID", "150ms")
	if getdur("D_VALID", time.Second) != 150*time.Millisecond {
		t.Fatalf("getdur parse failed")
	}
}

func TestHelpers_getbool(t *testing.T) {
	for i, v := range []string{"1", "TRUE", " yes ", "Y", "On"} {
		k := "B_T_" + string(rune('a'+i))
		t.Setenv(k, v)
		if !getbool(k, false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	for i, v := range []string{"0", "FALSE", " no ", "N", "Off"} {
		k := "B_F_" + string(rune('a'+i))
		t.Setenv(k, v)
		if getbool(k, true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
}

func TestHelpers_splitCSV_and_normalizeBasePath(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	if got := splitCSV(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitCSV mismatch: %#v", got)
	}
	for in, want := range map[string]string{"": "/", "v1": "/v1", "/v1/": "/v1", " / ": "/"} {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q want %q", in, got, want)
		}
	}
}

func TestMain(m *testing.M) {
	os.Unsetenv("PORT")
	os.Exit(m.Run())
}

func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}
