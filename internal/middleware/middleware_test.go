package middleware

import (
	"bytes"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/benbeisheim/gridpuzzle-backend/internal/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func networkIDApp() *fiber.App {
	app := fiber.New()
	app.Use(RequestedNetworkID())
	app.Get("/id", func(c *fiber.Ctx) error {
		id, _ := c.Locals(NetworkIDKey).(string)
		return c.SendString(id)
	})
	return app
}

func get(t *testing.T, app *fiber.App, target string, header map[string]string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("GET %s: %v", target, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestRequestedNetworkID(t *testing.T) {
	app := networkIDApp()
	const id = "6f1d2a4e-1b8c-4f3e-9a57-2d7c0e3b9f10"

	if status, body := get(t, app, "/id", map[string]string{"X-Network-ID": id}); status != fiber.StatusOK || body != id {
		t.Fatalf("header id: %d %q", status, body)
	}
	if status, body := get(t, app, "/id?networkId="+id, nil); status != fiber.StatusOK || body != id {
		t.Fatalf("query id: %d %q", status, body)
	}
	if status, body := get(t, app, "/id", nil); status != fiber.StatusOK || body != "" {
		t.Fatalf("no id should pass through empty: %d %q", status, body)
	}
	if status, _ := get(t, app, "/id?networkId=abc", nil); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed id, got %d", status)
	}
}

func TestRequestLogger(t *testing.T) {
	var out bytes.Buffer
	log := logger.NewWithOutput("debug", "text", &out)

	app := fiber.New()
	app.Use(RequestLogger(logrus.NewEntry(log)))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/teapot", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusTeapot, "short and stout") })

	get(t, app, "/ok", nil)
	get(t, app, "/teapot", nil)

	text := out.String()
	if !strings.Contains(text, "request handled") || !strings.Contains(text, "path=/ok") {
		t.Fatalf("missing success line:\n%s", text)
	}
	if !strings.Contains(text, "request failed") || !strings.Contains(text, "status=418") {
		t.Fatalf("missing failure line:\n%s", text)
	}
}
