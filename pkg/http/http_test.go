package http

import (
	"io"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
)

// TestSetDefaults verifies zero values are filled in.
func TestSetDefaults(t *testing.T) {
	h := &Http{Port: 9090}
	h.SetDefaults()
	if h.Addr() != "127.0.0.1:9090" {
		t.Fatalf("unexpected addr %q", h.Addr())
	}
	if h.ShutdownTimeout != 10 || h.BodyLimit == 0 {
		t.Fatalf("defaults not applied: %+v", h)
	}
}

// TestQueryInt verifies parsing and fallback of integer query parameters.
func TestQueryInt(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(
			strconv.Itoa(QueryInt(c, "days", 7)) + "," +
				strconv.Itoa(QueryInt(c, "bad", 3)) + "," +
				strconv.Itoa(QueryInt(c, "missing", 5)))
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/?days=30&bad=x", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "30,3,5" {
		t.Fatalf("unexpected body %q", body)
	}
}
