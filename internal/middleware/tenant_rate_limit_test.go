package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func TestTenantRateLimitCapsMutations(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New()
	app.Use(TenantRateLimit(cache, 2))
	app.Post("/charges", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusCreated) })
	app.Get("/wallets", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	post := func(tenant string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/charges", strings.NewReader("{}"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(tenantIDHeader, tenant)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if got := post("acme"); got != fiber.StatusCreated {
		t.Fatalf("first request: expected 201, got %d", got)
	}
	if got := post("acme"); got != fiber.StatusCreated {
		t.Fatalf("second request: expected 201, got %d", got)
	}
	if got := post("acme"); got != fiber.StatusTooManyRequests {
		t.Fatalf("third request: expected 429, got %d", got)
	}

	// Other tenants have their own budget.
	if got := post("globex"); got != fiber.StatusCreated {
		t.Fatalf("other tenant: expected 201, got %d", got)
	}

	// Reads are never limited.
	req := httptest.NewRequest(fiber.MethodGet, "/wallets", nil)
	req.Header.Set(tenantIDHeader, "acme")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("read: expected 200, got %d", resp.StatusCode)
	}
}
