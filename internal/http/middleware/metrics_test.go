package middleware

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountersRoutesAndSkip(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics("/health"))
	r.GET("/video/:id", func(c *gin.Context) { c.String(http.StatusOK, "hello") })
	r.GET("/empty", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	baseRoute := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/video/:id", "200"))
	baseMiss := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedRoute, "404"))
	baseHealth := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/health", "200"))

	serve(r, http.MethodGet, "/video/1", nil)
	serve(r, http.MethodGet, "/video/2", nil)
	serve(r, http.MethodGet, "/nope/abc", nil)
	serve(r, http.MethodGet, "/empty", nil)
	serve(r, http.MethodGet, "/health", nil)

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/video/:id", "200")); got != baseRoute+2 {
		t.Fatalf("route counter=%v want %v", got, baseRoute+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedRoute, "404")); got != baseMiss+1 {
		t.Fatalf("unmatched counter=%v want %v", got, baseMiss+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/health", "200")); got != baseHealth {
		t.Fatalf("skipped path was counted: %v", got)
	}
	if v := testutil.ToFloat64(httpInflight); v != 0 {
		t.Fatalf("inflight=%v", v)
	}
}
