package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	// Generated when absent.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected generated X-Request-ID")
	}

	// Reused when supplied.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Fatalf("expected propagated ID, got %q", got)
	}
}

func TestTenant_HeaderAndDefault(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen string
	r := gin.New()
	r.Use(Tenant("demo"))
	r.GET("/", func(c *gin.Context) {
		seen = TenantFrom(c)
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if seen != "demo" {
		t.Fatalf("expected default tenant, got %q", seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Tenant-ID", "acme")
	r.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "acme" {
		t.Fatalf("expected header tenant, got %q", seen)
	}
}

func TestTenantFrom_MissingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := TenantFrom(c); got != "" {
		t.Fatalf("expected empty tenant, got %q", got)
	}
}

func TestLogger_AttachesRequestScopedLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestID(), Tenant("demo"), Logger())
	r.GET("/ok", func(c *gin.Context) {
		if LoggerFrom(c) == nil {
			t.Fatalf("expected request-scoped logger")
		}
		c.String(http.StatusOK, "done")
	})
	r.GET("/warn", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/err", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/warn", "/err"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}
}

func TestLoggerFrom_Fallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if LoggerFrom(c) == nil {
		t.Fatalf("expected fallback logger")
	}
	c.Set("logger", "not-a-logger")
	if LoggerFrom(c) == nil {
		t.Fatalf("expected fallback for wrong type")
	}
}

func TestRecovery_PanicBecomesJSON500(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("kaput") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("panic -> %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("request id lost across panic")
	}
}

func TestAsStringAndTruncate(t *testing.T) {
	if asString("x") != "x" || asString(42) != "" || asString(nil) != "" {
		t.Fatalf("asString misbehaves")
	}
	if got := truncate("abcdef", 3); got != "abc…" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abc", 10); got != "abc" {
		t.Fatalf("no-op truncate = %q", got)
	}
	if got := truncate("abc", 0); got != "abc" {
		t.Fatalf("disabled truncate = %q", got)
	}
}
