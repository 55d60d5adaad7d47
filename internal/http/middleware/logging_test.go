package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/genai-studio/internal/auth"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func serve(r http.Handler, method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID_GenerateAndPropagate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/rid", func(c *gin.Context) {
		if v, ok := c.Get(requestIDKey); !ok || v == "" {
			t.Fatalf("requestID not set in context")
		}
		c.Status(http.StatusNoContent)
	})

	if w := serve(r, http.MethodGet, "/rid", nil); w.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected generated request id")
	}
	if w := serve(r, http.MethodGet, "/rid", map[string]string{"x-request-id": "abc-123"}); w.Header().Get(requestIDHeader) != "abc-123" {
		t.Fatalf("got %q", w.Header().Get(requestIDHeader))
	}
	long := strings.Repeat("a", maxRequestIDLength+1)
	if w := serve(r, http.MethodGet, "/rid", map[string]string{requestIDHeader: long}); w.Header().Get(requestIDHeader) == long {
		t.Fatal("oversized request id was echoed")
	}
}

func TestLogger_LevelsSubjectAndPathFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger())
	r.GET("/ok", func(c *gin.Context) {
		SetIdentity(c, auth.Identity{Subject: "sub-1"})
		c.String(http.StatusOK, "hello")
	})
	r.GET("/err", func(c *gin.Context) {
		_ = c.Error(errSentinel{})
		c.Status(http.StatusBadRequest)
	})

	serve(r, http.MethodGet, "/ok", nil)
	serve(r, http.MethodGet, "/missing", nil)
	serve(r, http.MethodGet, "/err", nil)

	logs := buf.String()
	if !strings.Contains(logs, `"level":"info"`) || !strings.Contains(logs, `"path":"/ok"`) || !strings.Contains(logs, `"subject":"sub-1"`) {
		t.Fatalf("expected info log with route path and subject, got:\n%s", logs)
	}
	if !strings.Contains(logs, `"level":"warn"`) || !strings.Contains(logs, `"path":"/missing"`) {
		t.Fatalf("expected warn log with raw path, got:\n%s", logs)
	}
	if !strings.Contains(logs, `"level":"error"`) {
		t.Fatalf("expected error log, got:\n%s", logs)
	}
}

type errSentinel struct{}

func (errSentinel) Error() string { return "boom" }

func TestLogger_AttachesToRequestContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger())
	r.GET("/svc", func(c *gin.Context) {
		zerolog.Ctx(c.Request.Context()).Info().Msg("from service")
		c.Status(http.StatusOK)
	})
	serve(r, http.MethodGet, "/svc", map[string]string{requestIDHeader: "rid-ctx"})

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if strings.Contains(line, "from service") {
			if !strings.Contains(line, `"request_id":"rid-ctx"`) {
				t.Fatalf("service log missing request id: %s", line)
			}
			return
		}
	}
	t.Fatalf("service log not found:\n%s", buf.String())
}

func TestRecovery_PanicsToJSON500AndLogs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger(), Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	w := serve(r, http.MethodGet, "/panic", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json body: %v", err)
	}
	if body["code"] != "internal_error" || body["request_id"] == "" {
		t.Fatalf("unexpected body: %v", body)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Fatalf("expected panic log, got:\n%s", buf.String())
	}
}

func TestRecovery_PanicAfterWrite_NoJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/late", func(c *gin.Context) {
		c.String(http.StatusOK, "partial-body")
		panic("late kaboom")
	})

	w := serve(r, http.MethodGet, "/late", nil)
	if strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("unexpected JSON error body: %q", w.Body.String())
	}
}

func TestLoggerFrom_Fallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.GET("/use", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("custom")
		c.Status(http.StatusOK)
	})
	serve(r, http.MethodGet, "/use", nil)
	if !strings.Contains(buf.String(), `"message":"custom"`) || strings.Contains(buf.String(), `"request_id"`) {
		t.Fatalf("fallback logger output:\n%s", buf.String())
	}
}

func TestHelpers_asString_and_truncate(t *testing.T) {
	if asString("x") != "x" || asString(123) != "" {
		t.Fatal("asString")
	}
	if truncate("hello", 10) != "hello" || truncate("abcdefgh", 5) != "abcde…" || truncate("abc", 0) != "abc" {
		t.Fatal("truncate")
	}
}
