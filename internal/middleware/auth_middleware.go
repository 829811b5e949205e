package middleware

import (
	"strings"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/dumu-tech/restaurant-ops/internal/service"
	"github.com/gofiber/fiber/v2"
)

const actorKey = "actor"

// AuthMiddleware validates the bearer token and stores the actor for handlers
func AuthMiddleware(auth *service.Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies("auth_token")

		if token == "" {
			parts := strings.Split(c.Get("Authorization"), " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}

		// EventSource cannot set headers, so the SSE stream may pass the token as a query param
		if token == "" && strings.HasSuffix(c.Path(), "/events") {
			token = strings.TrimSpace(c.Query("token"))
		}

		if token == "" {
			return unauthorized(c, "no token provided")
		}

		actor, err := auth.Validate(token)
		if err != nil {
			return unauthorized(c, "invalid token")
		}
		c.Locals(actorKey, actor)
		return c.Next()
	}
}

// Actor returns the authenticated actor of the request
func Actor(c *fiber.Ctx) core.Actor {
	actor, _ := c.Locals(actorKey).(core.Actor)
	return actor
}

// RequireRoles enforces role-based access control after AuthMiddleware
func RequireRoles(allowedRoles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		if r := strings.ToUpper(strings.TrimSpace(role)); r != "" {
			allowed[r] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		role := Actor(c).Role
		if role == "" {
			return forbidden(c, "role not found in token")
		}
		if _, ok := allowed[role]; !ok {
			return forbidden(c, "insufficient permissions")
		}
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": fiber.Map{"kind": "unauthorized", "message": msg},
	})
}

func forbidden(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"error": fiber.Map{"kind": "forbidden", "message": msg},
	})
}
