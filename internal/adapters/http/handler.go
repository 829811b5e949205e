package http

import (
	"errors"
	"strings"

	"github.com/dumu-tech/restaurant-ops/internal/adapters/payment"
	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/dumu-tech/restaurant-ops/internal/middleware"
	"github.com/dumu-tech/restaurant-ops/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// guest is the actor of customers ordering through a QR table token
var guest = core.Actor{UserID: "guest", Name: "guest", Role: "GUEST"}

// WebhookVerifier checks and decodes gateway callbacks
type WebhookVerifier interface {
	VerifyWebhook(signature string, payload []byte) bool
	ParseWebhook(payload []byte) (*payment.WebhookEvent, error)
}

// Handler handles the order, payment, waste, catalog and inventory operations
type Handler struct {
	orders    *service.OrderService
	payments  *service.PaymentService
	waste     *service.WasteLedger
	ledger    *service.InventoryLedger
	catalog   *service.CatalogService
	deduction *service.DeductionCoordinator
	webhooks  map[core.PaymentMethod]WebhookVerifier
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orders *service.OrderService,
	payments *service.PaymentService,
	waste *service.WasteLedger,
	ledger *service.InventoryLedger,
	catalog *service.CatalogService,
	deduction *service.DeductionCoordinator,
	processors []core.PaymentProcessor,
	logger *zap.Logger,
) *Handler {
	webhooks := make(map[core.PaymentMethod]WebhookVerifier)
	for _, p := range processors {
		if v, ok := p.(WebhookVerifier); ok {
			webhooks[p.Method()] = v
		}
	}
	return &Handler{
		orders:    orders,
		payments:  payments,
		waste:     waste,
		ledger:    ledger,
		catalog:   catalog,
		deduction: deduction,
		webhooks:  webhooks,
		logger:    logger,
	}
}

var errorStatus = map[core.ErrorKind]int{
	core.KindNotFound:             fiber.StatusNotFound,
	core.KindInvalidTransition:    fiber.StatusConflict,
	core.KindInsufficientStock:    fiber.StatusConflict,
	core.KindDuplicatePayment:     fiber.StatusConflict,
	core.KindValidationFailed:     fiber.StatusUnprocessableEntity,
	core.KindPreconditionFailed:   fiber.StatusPreconditionFailed,
	core.KindExternalGatewayError: fiber.StatusBadGateway,
	core.KindConflict:             fiber.StatusConflict,
}

// respondError maps an engine error onto its HTTP status and error body
func respondError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	var e *core.Error
	if !errors.As(err, &e) {
		logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fiber.Map{"kind": core.KindInternal, "message": "internal server error"},
		})
	}
	status, ok := errorStatus[e.Kind]
	if !ok {
		status = fiber.StatusInternalServerError
	}
	body := fiber.Map{"kind": e.Kind, "message": e.Message}
	if len(e.Fields) > 0 {
		body["fields"] = e.Fields
	}
	return c.Status(status).JSON(fiber.Map{"error": body})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": fiber.Map{"kind": "bad_request", "message": msg},
	})
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	return respondError(c, h.logger, err)
}

// CreateOrder places an order for staff
// POST /api/orders
func (h *Handler) CreateOrder(c *fiber.Ctx) error {
	var req service.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	actor := middleware.Actor(c)
	if req.Type == core.OrderTypeWaiter && req.WaiterID == "" {
		req.WaiterID = actor.UserID
	}
	order, err := h.orders.CreateOrder(c.UserContext(), actor, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// CreateGuestOrder places a QR order. The table token is mandatory.
// POST /api/public/orders
func (h *Handler) CreateGuestOrder(c *fiber.Ctx) error {
	var req service.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.TableToken) == "" {
		return h.fail(c, core.Validation("table_token", "scan the table QR code to order"))
	}
	req.Type = core.OrderTypeQR
	req.WaiterID = ""
	req.DiscountAmount = decimal.Zero
	order, err := h.orders.CreateOrder(c.UserContext(), guest, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// GetOrder returns an order with its items
// GET /api/orders/:id
func (h *Handler) GetOrder(c *fiber.Ctx) error {
	order, err := h.orders.GetOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(order)
}

// AddItem adds a line to an open order
// POST /api/orders/:id/items
func (h *Handler) AddItem(c *fiber.Ctx) error {
	var in service.OrderItemInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	order, err := h.orders.AddItem(c.UserContext(), middleware.Actor(c), c.Params("id"), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(order)
}

// UpdateItem changes the quantity or instructions of a line
// PATCH /api/orders/:id/items/:itemId
func (h *Handler) UpdateItem(c *fiber.Ctx) error {
	var req struct {
		Quantity            int     `json:"quantity"`
		SpecialInstructions *string `json:"special_instructions"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	order, err := h.orders.UpdateItem(c.UserContext(), middleware.Actor(c), c.Params("id"), c.Params("itemId"), req.Quantity, req.SpecialInstructions)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(order)
}

// RemoveItem deletes a line
// DELETE /api/orders/:id/items/:itemId
func (h *Handler) RemoveItem(c *fiber.Ctx) error {
	order, err := h.orders.RemoveItem(c.UserContext(), middleware.Actor(c), c.Params("id"), c.Params("itemId"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(order)
}

// Transition moves an order through its lifecycle
// POST /api/orders/:id/transition
func (h *Handler) Transition(c *fiber.Ctx) error {
	var req struct {
		Status core.OrderStatus `json:"status"`
		Reason string           `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Status == "" {
		return h.fail(c, core.Validation("status", "target status is required"))
	}
	order, err := h.orders.Transition(c.UserContext(), middleware.Actor(c), c.Params("id"), req.Status, service.TransitionOptions{Reason: req.Reason})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(order)
}

// RetryDeduction re-runs inventory deduction for a completed order
// POST /api/orders/:id/deduct
func (h *Handler) RetryDeduction(c *fiber.Ctx) error {
	result, err := h.deduction.RetryDeduction(c.UserContext(), middleware.Actor(c), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(result)
}

// IssueTableToken creates a QR token for a table
// POST /api/tables/:id/token
func (h *Handler) IssueTableToken(c *fiber.Ctx) error {
	token, err := h.orders.IssueTableToken(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(token)
}

// ListMenu returns the menu of a restaurant grouped by category
// GET /api/menu/:restaurantId
func (h *Handler) ListMenu(c *fiber.Ctx) error {
	includeUnavailable := c.QueryBool("include_unavailable", false)
	menu, err := h.catalog.ListRestaurantMenu(c.UserContext(), c.Params("restaurantId"), includeUnavailable)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(menu)
}

// CreatePayment takes a payment for an order
// POST /api/orders/:id/payments
func (h *Handler) CreatePayment(c *fiber.Ctx) error {
	var req struct {
		Method core.PaymentMethod `json:"method"`
		Amount decimal.Decimal    `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	p, err := h.payments.CreatePayment(c.UserContext(), middleware.Actor(c), c.Params("id"), req.Method, req.Amount)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// ListPayments returns the payments of an order
// GET /api/orders/:id/payments
func (h *Handler) ListPayments(c *fiber.Ctx) error {
	payments, err := h.payments.ListPayments(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(payments)
}

// ProcessPayment sends a pending payment to its gateway
// POST /api/payments/:id/process
func (h *Handler) ProcessPayment(c *fiber.Ctx) error {
	p, err := h.payments.Process(c.UserContext(), middleware.Actor(c), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(p)
}

// VerifyPayment polls the gateway for a pending payment
// POST /api/payments/:id/verify
func (h *Handler) VerifyPayment(c *fiber.Ctx) error {
	p, err := h.payments.Verify(c.UserContext(), middleware.Actor(c), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(p)
}

// CompletePayment records a confirmation reported out of band
// POST /api/payments/:id/complete
func (h *Handler) CompletePayment(c *fiber.Ctx) error {
	var req struct {
		TransactionID   string `json:"transaction_id"`
		GatewayResponse string `json:"gateway_response"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	p, err := h.payments.MarkCompleted(c.UserContext(), middleware.Actor(c), c.Params("id"), req.TransactionID, req.GatewayResponse)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(p)
}

// RefundPayment returns money for a completed payment
// POST /api/payments/:id/refund
func (h *Handler) RefundPayment(c *fiber.Ctx) error {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
		Reason string          `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	p, err := h.payments.Refund(c.UserContext(), middleware.Actor(c), c.Params("id"), req.Amount, req.Reason)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(p)
}

// HandlePaymentWebhook processes gateway callbacks
// POST /api/webhooks/payment/:method
func (h *Handler) HandlePaymentWebhook(c *fiber.Ctx) error {
	method := core.PaymentMethod(c.Params("method"))
	verifier, ok := h.webhooks[method]
	if !ok {
		return c.SendStatus(fiber.StatusNotFound)
	}

	body := c.Body()
	if !verifier.VerifyWebhook(c.Get("X-Signature"), body) {
		h.logger.Warn("rejected payment webhook", zap.String("method", string(method)))
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	event, err := verifier.ParseWebhook(body)
	if err != nil {
		return h.fail(c, err)
	}

	ctx := c.UserContext()
	switch {
	case event.Success:
		_, err = h.payments.MarkCompleted(ctx, core.SystemActor, event.PaymentID, event.TransactionID, event.Raw)
	case event.Pending:
		err = nil
	default:
		_, err = h.payments.MarkFailed(ctx, core.SystemActor, event.PaymentID, event.Message)
	}
	if err != nil {
		// gateways retry anything but 2xx; a lost race with the poller is not worth a retry
		if kind := core.KindOf(err); kind == core.KindInvalidTransition || kind == core.KindNotFound {
			h.logger.Info("payment webhook ignored",
				zap.String("payment_id", event.PaymentID),
				zap.String("status", event.Status),
				zap.Error(err))
			return c.SendStatus(fiber.StatusOK)
		}
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

// RecordWaste logs wasted stock
// POST /api/waste
func (h *Handler) RecordWaste(c *fiber.Ctx) error {
	var req service.RecordWasteRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	record, err := h.waste.RecordWaste(c.UserContext(), middleware.Actor(c), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(record)
}

type reviewRequest struct {
	Notes string `json:"notes"`
}

// ReviewWaste approves, rejects or escalates a waste record
// POST /api/waste/:id/approve|reject|investigate
func (h *Handler) ReviewWaste(c *fiber.Ctx) error {
	var req reviewRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	var (
		record *core.WasteRecord
		err    error
	)
	actor, id, ctx := middleware.Actor(c), c.Params("id"), c.UserContext()
	switch c.Params("action") {
	case "approve":
		record, err = h.waste.Approve(ctx, actor, id, req.Notes)
	case "reject":
		record, err = h.waste.Reject(ctx, actor, id, req.Notes)
	case "investigate":
		record, err = h.waste.Investigate(ctx, actor, id, req.Notes)
	default:
		return c.SendStatus(fiber.StatusNotFound)
	}
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(record)
}

// ChangePrice sets a menu item's price
// POST /api/catalog/menu-items/:id/price
func (h *Handler) ChangePrice(c *fiber.Ctx) error {
	var req struct {
		Price decimal.Decimal `json:"price"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	item, err := h.catalog.ChangePrice(c.UserContext(), middleware.Actor(c), c.Params("id"), req.Price)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(item)
}

// ChangeRecipe replaces a menu item's recipe
// POST /api/catalog/menu-items/:id/recipe
func (h *Handler) ChangeRecipe(c *fiber.Ctx) error {
	var req struct {
		Lines []core.RecipeLine `json:"lines"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	lines, err := h.catalog.ChangeRecipe(c.UserContext(), middleware.Actor(c), c.Params("id"), req.Lines)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(lines)
}

// ReceiveStock books a purchase
// POST /api/inventory/:id/receive
func (h *Handler) ReceiveStock(c *fiber.Ctx) error {
	var req struct {
		Quantity decimal.Decimal `json:"quantity"`
		UnitCost decimal.Decimal `json:"unit_cost"`
		Reason   string          `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	entry, err := h.ledger.Receive(c.UserContext(), c.Params("id"), req.Quantity, req.UnitCost, req.Reason, middleware.Actor(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

// AdjustStock books a manual correction
// POST /api/inventory/:id/adjust
func (h *Handler) AdjustStock(c *fiber.Ctx) error {
	var req struct {
		Quantity  decimal.Decimal `json:"quantity"`
		Direction core.Direction  `json:"direction"`
		Reason    string          `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	entry, err := h.ledger.Adjust(c.UserContext(), c.Params("id"), req.Quantity, req.Direction, req.Reason, middleware.Actor(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

// VoidTransaction reverses a ledger entry
// POST /api/inventory/transactions/:id/void
func (h *Handler) VoidTransaction(c *fiber.Ctx) error {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	entry, err := h.ledger.Void(c.UserContext(), c.Params("id"), middleware.Actor(c), req.Reason)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

// ListTransactions returns ledger entries of a stock item
// GET /api/inventory/:id/transactions
func (h *Handler) ListTransactions(c *fiber.Ctx) error {
	entries, err := h.ledger.ListTransactions(c.UserContext(), core.TransactionFilter{StockItemID: c.Params("id")})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(entries)
}

// ListWaste returns waste records of a restaurant, optionally narrowed by status
// GET /api/waste?restaurant_id=&status=
func (h *Handler) ListWaste(c *fiber.Ctx) error {
	filter := core.WasteFilter{
		RestaurantID: c.Query("restaurant_id"),
		BranchID:     c.Query("branch_id"),
		StockItemID:  c.Query("stock_item_id"),
	}
	if status := c.Query("status"); status != "" {
		for _, s := range strings.Split(status, ",") {
			filter.Statuses = append(filter.Statuses, core.WasteStatus(strings.TrimSpace(s)))
		}
	}
	records, err := h.waste.ListWaste(c.UserContext(), filter)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(records)
}

// GetWaste returns one waste record
// GET /api/waste/:id
func (h *Handler) GetWaste(c *fiber.Ctx) error {
	record, err := h.waste.GetWasteRecord(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(record)
}

// ListWasteAlerts returns recurrence alerts
// GET /api/waste/alerts?restaurant_id=
func (h *Handler) ListWasteAlerts(c *fiber.Ctx) error {
	alerts, err := h.waste.ListAlerts(c.UserContext(), c.Query("restaurant_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(alerts)
}

// ListInventoryAlerts returns low stock and shortfall alerts
// GET /api/inventory/alerts?restaurant_id=&open=true
func (h *Handler) ListInventoryAlerts(c *fiber.Ctx) error {
	alerts, err := h.ledger.ListAlerts(c.UserContext(), core.AlertFilter{
		RestaurantID:   c.Query("restaurant_id"),
		BranchID:       c.Query("branch_id"),
		StockItemID:    c.Query("stock_item_id"),
		UnresolvedOnly: c.QueryBool("open", true),
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(alerts)
}
