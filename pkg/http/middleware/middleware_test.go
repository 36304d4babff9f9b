package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestHttpMetricsMiddleware verifies requests are counted by route and status class.
func TestHttpMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	if err := RegisterHttpMetrics(registry); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	app := fiber.New()
	app.Use(HttpMetricsMiddleware(), AccessLogMiddleware())
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/health", "2xx"))
	if _, err := app.Test(httptest.NewRequest("GET", "/health", nil)); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/health", "2xx"))
	if after-before != 1 {
		t.Fatalf("expected one counted request, got %v", after-before)
	}
}

// TestCorsMiddleware verifies only configured origins are echoed back.
func TestCorsMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(CorsMiddleware([]string{"https://dash.example.com"}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://dash.example.com" {
		t.Fatalf("expected origin echoed, got %q", got)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow-origin header, got %q", got)
	}
}

// TestResponseMiddleware verifies handler details are wrapped in the envelope.
func TestResponseMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(ResponseMiddleware())
	app.Get("/detail", func(c *fiber.Ctx) error {
		c.Locals(DETAIL, map[string]any{"total": 3})
		return nil
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/detail", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || !strings.Contains(string(body), `"detail":{"total":3}`) {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, body)
	}
}
