package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/dumu-tech/restaurant-ops/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(auth *service.Authenticator) *fiber.App {
	app := fiber.New()
	api := app.Group("/api", AuthMiddleware(auth))
	api.Get("/me", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": Actor(c).UserID})
	})
	api.Get("/events", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	api.Get("/managers", RequireRoles(service.RoleManager, service.RoleOwner), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	auth := service.NewAuthenticator("secret", time.Hour)
	app := newApp(auth)
	waiterToken, err := auth.Issue(core.Actor{UserID: "w-1", Role: service.RoleWaiter})
	require.NoError(t, err)
	managerToken, err := auth.Issue(core.Actor{UserID: "m-1", Role: service.RoleManager})
	require.NoError(t, err)

	cases := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"no token", "/api/me", "", fiber.StatusUnauthorized},
		{"garbage token", "/api/me", "Bearer nope", fiber.StatusUnauthorized},
		{"valid bearer", "/api/me", "Bearer " + waiterToken, fiber.StatusOK},
		{"query token only for events", "/api/me?token=" + waiterToken, "", fiber.StatusUnauthorized},
		{"query token on events", "/api/events?token=" + waiterToken, "", fiber.StatusNoContent},
		{"waiter on manager route", "/api/managers", "Bearer " + waiterToken, fiber.StatusForbidden},
		{"manager on manager route", "/api/managers", "Bearer " + managerToken, fiber.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}
