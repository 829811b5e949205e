package http

import (
	"github.com/dumu-tech/restaurant-ops/internal/middleware"
	"github.com/dumu-tech/restaurant-ops/internal/service"
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the public, webhook and staff routes on app
func RegisterRoutes(app *fiber.App, h *Handler, dh *DashboardHandler, auth *service.Authenticator) {
	// Public routes
	app.Get("/api/menu/:restaurantId", h.ListMenu)
	app.Post("/api/public/orders", h.CreateGuestOrder)
	app.Post("/api/webhooks/payment/:method", h.HandlePaymentWebhook)

	staff := []string{service.RoleOwner, service.RoleManager, service.RoleWaiter, service.RoleKitchen, service.RoleCashier}
	front := []string{service.RoleOwner, service.RoleManager, service.RoleWaiter, service.RoleCashier}
	till := []string{service.RoleOwner, service.RoleManager, service.RoleCashier}
	managers := []string{service.RoleOwner, service.RoleManager}

	api := app.Group("/api", middleware.AuthMiddleware(auth))
	api.Get("/auth/me", dh.GetMe)
	api.Post("/auth/logout", dh.Logout)
	api.Get("/events", middleware.RequireRoles(staff...), dh.SSEEvents)

	orders := api.Group("/orders")
	orders.Post("/", middleware.RequireRoles(front...), h.CreateOrder)
	orders.Get("/:id", middleware.RequireRoles(staff...), h.GetOrder)
	orders.Post("/:id/items", middleware.RequireRoles(front...), h.AddItem)
	orders.Patch("/:id/items/:itemId", middleware.RequireRoles(front...), h.UpdateItem)
	orders.Delete("/:id/items/:itemId", middleware.RequireRoles(front...), h.RemoveItem)
	orders.Post("/:id/transition", middleware.RequireRoles(staff...), h.Transition)
	orders.Post("/:id/deduct", middleware.RequireRoles(managers...), h.RetryDeduction)
	orders.Post("/:id/payments", middleware.RequireRoles(till...), h.CreatePayment)
	orders.Get("/:id/payments", middleware.RequireRoles(till...), h.ListPayments)

	payments := api.Group("/payments", middleware.RequireRoles(till...))
	payments.Post("/:id/process", h.ProcessPayment)
	payments.Post("/:id/verify", h.VerifyPayment)
	payments.Post("/:id/complete", h.CompletePayment)
	payments.Post("/:id/refund", middleware.RequireRoles(managers...), h.RefundPayment)

	api.Post("/tables/:id/token", middleware.RequireRoles(front...), h.IssueTableToken)

	waste := api.Group("/waste")
	waste.Post("/", middleware.RequireRoles(staff...), h.RecordWaste)
	waste.Get("/", middleware.RequireRoles(managers...), h.ListWaste)
	waste.Get("/alerts", middleware.RequireRoles(managers...), h.ListWasteAlerts)
	waste.Get("/:id", middleware.RequireRoles(managers...), h.GetWaste)
	waste.Post("/:id/:action", middleware.RequireRoles(managers...), h.ReviewWaste)

	catalog := api.Group("/catalog", middleware.RequireRoles(managers...))
	catalog.Post("/menu-items/:id/price", h.ChangePrice)
	catalog.Post("/menu-items/:id/recipe", h.ChangeRecipe)

	inventory := api.Group("/inventory", middleware.RequireRoles(managers...))
	inventory.Get("/alerts", h.ListInventoryAlerts)
	inventory.Post("/transactions/:id/void", h.VoidTransaction)
	inventory.Post("/:id/receive", h.ReceiveStock)
	inventory.Post("/:id/adjust", h.AdjustStock)
	inventory.Get("/:id/transactions", h.ListTransactions)

	profit := api.Group("/profit", middleware.RequireRoles(managers...))
	profit.Get("/daily", dh.GetDailyProfit)
	profit.Get("/trend", dh.GetProfitTrend)
	profit.Get("/performance", dh.GetMenuItemPerformance)
	profit.Get("/issues", dh.ListProfitIssues)
	profit.Get("/alerts", dh.ListProfitAlerts)
	profit.Get("/report.pdf", dh.DownloadDailyReport)
	profit.Post("/rebuild", dh.RebuildProfit)

	api.Get("/admin/handler-failures", middleware.RequireRoles(managers...), dh.ListHandlerFailures)
}
