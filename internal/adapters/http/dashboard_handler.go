package http

import (
	"bufio"
	"context"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/dumu-tech/restaurant-ops/internal/events"
	"github.com/dumu-tech/restaurant-ops/internal/middleware"
	"github.com/dumu-tech/restaurant-ops/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// DashboardHandler serves the profit reads, the PDF report and the live event stream
type DashboardHandler struct {
	profit   *service.ProfitAggregator
	reports  *service.ProfitReportExporter
	store    core.Store
	bus      *events.EventBus
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
	interval time.Duration
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(
	profit *service.ProfitAggregator,
	reports *service.ProfitReportExporter,
	store core.Store,
	bus *events.EventBus,
	loc *time.Location,
	logger *zap.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		profit:   profit,
		reports:  reports,
		store:    store,
		bus:      bus,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
		interval: 30 * time.Second,
	}
}

func (h *DashboardHandler) fail(c *fiber.Ctx, err error) error {
	return respondError(c, h.logger, err)
}

// date reads a YYYY-MM-DD query param in the restaurant timezone, defaulting to today
func (h *DashboardHandler) date(c *fiber.Ctx, key string) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return h.now().In(h.loc), nil
	}
	day, err := time.ParseInLocation(dateLayout, raw, h.loc)
	if err != nil {
		return time.Time{}, core.Validation(key, "expected a date like 2006-01-02")
	}
	return day, nil
}

func restaurantOf(c *fiber.Ctx) (string, error) {
	id := c.Query("restaurant_id")
	if id == "" {
		return "", core.Validation("restaurant_id", "restaurant is required")
	}
	return id, nil
}

// GetMe returns the actor behind the access token
// GET /api/auth/me
func (h *DashboardHandler) GetMe(c *fiber.Ctx) error {
	return c.JSON(middleware.Actor(c))
}

// Logout clears the auth cookie
// POST /api/auth/logout
func (h *DashboardHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     "auth_token",
		Value:    "",
		Expires:  h.now().Add(-1 * time.Hour),
		HTTPOnly: true,
	})

	return c.JSON(fiber.Map{
		"message": "logged out successfully",
	})
}

// GetDailyProfit returns one day of profit
// GET /api/profit/daily?restaurant_id=&branch_id=&date=2026-03-10
func (h *DashboardHandler) GetDailyProfit(c *fiber.Ctx) error {
	restaurantID, err := restaurantOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	day, err := h.date(c, "date")
	if err != nil {
		return h.fail(c, err)
	}
	agg, err := h.profit.GetDailyProfit(c.UserContext(), restaurantID, c.Query("branch_id"), day)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(agg)
}

// GetProfitTrend compares recent profit with the period before it
// GET /api/profit/trend?restaurant_id=&days=30&end=2026-03-10
func (h *DashboardHandler) GetProfitTrend(c *fiber.Ctx) error {
	restaurantID, err := restaurantOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	end, err := h.date(c, "end")
	if err != nil {
		return h.fail(c, err)
	}
	trend, err := h.profit.GetProfitTrend(c.UserContext(), restaurantID, c.Query("branch_id"), c.QueryInt("days", 30), end)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(trend)
}

// GetMenuItemPerformance returns per-item daily performance rows
// GET /api/profit/performance?restaurant_id=&from=&to=&menu_item_id=&all_branches=true
func (h *DashboardHandler) GetMenuItemPerformance(c *fiber.Ctx) error {
	restaurantID, err := restaurantOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	to, err := h.date(c, "to")
	if err != nil {
		return h.fail(c, err)
	}
	from := to.AddDate(0, 0, -6)
	if c.Query("from") != "" {
		if from, err = h.date(c, "from"); err != nil {
			return h.fail(c, err)
		}
	}
	rows, err := h.profit.GetMenuItemPerformance(c.UserContext(), core.PerformanceFilter{
		RestaurantID: restaurantID,
		BranchID:     c.Query("branch_id"),
		AllBranches:  c.QueryBool("all_branches", false),
		MenuItemID:   c.Query("menu_item_id"),
		From:         core.Day(from, h.loc),
		To:           core.Day(to, h.loc),
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(rows)
}

// ListProfitIssues highlights loss makers and weak sellers
// GET /api/profit/issues?restaurant_id=&days=7
func (h *DashboardHandler) ListProfitIssues(c *fiber.Ctx) error {
	restaurantID, err := restaurantOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	end, err := h.date(c, "end")
	if err != nil {
		return h.fail(c, err)
	}
	issues, err := h.profit.ListProfitIssues(c.UserContext(), restaurantID, c.Query("branch_id"), c.QueryInt("days", 7), end)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(issues)
}

// ListProfitAlerts returns profit alerts raised in a date range
// GET /api/profit/alerts?restaurant_id=&from=&to=
func (h *DashboardHandler) ListProfitAlerts(c *fiber.Ctx) error {
	restaurantID, err := restaurantOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	to, err := h.date(c, "to")
	if err != nil {
		return h.fail(c, err)
	}
	from := to.AddDate(0, 0, -30)
	if c.Query("from") != "" {
		if from, err = h.date(c, "from"); err != nil {
			return h.fail(c, err)
		}
	}
	alerts, err := h.profit.ListProfitAlerts(c.UserContext(), restaurantID, from, to)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(alerts)
}

// DownloadDailyReport streams the daily profit report as a PDF
// GET /api/profit/report.pdf?restaurant_id=&date=
func (h *DashboardHandler) DownloadDailyReport(c *fiber.Ctx) error {
	restaurantID, err := restaurantOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	pdfBytes, filename, err := h.reports.GenerateDailyProfitReportPDF(c.UserContext(), restaurantID, c.Query("branch_id"), c.Query("date"))
	if err != nil {
		return h.fail(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(pdfBytes)
}

// RebuildProfit recomputes the profit projections for a date range
// POST /api/profit/rebuild?restaurant_id=&from=&to=
func (h *DashboardHandler) RebuildProfit(c *fiber.Ctx) error {
	restaurantID, err := restaurantOf(c)
	if err != nil {
		return h.fail(c, err)
	}
	from, err := h.date(c, "from")
	if err != nil {
		return h.fail(c, err)
	}
	to, err := h.date(c, "to")
	if err != nil {
		return h.fail(c, err)
	}
	summary, err := h.profit.RebuildRange(c.UserContext(), restaurantID, c.Query("branch_id"), from, to)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(summary)
}

// ListHandlerFailures returns event handlers that gave up after retries
// GET /api/admin/handler-failures?limit=50
func (h *DashboardHandler) ListHandlerFailures(c *fiber.Ctx) error {
	failures, err := h.store.Alerts().ListHandlerFailures(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(failures)
}

// SSEEvents handles Server-Sent Events for real-time updates
// GET /api/events
func (h *DashboardHandler) SSEEvents(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	// the stream outlives the handler, so it cannot hang off the request context
	ctx, cancel := context.WithCancel(context.Background())
	subscriberID := uuid.New().String()
	eventChan := h.bus.Subscribe(ctx, subscriberID)
	logger := h.logger.With(zap.String("subscriber", subscriberID))
	logger.Debug("sse client connected")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		if _, err := w.WriteString("event: connected\ndata: {\"message\":\"connected\"}\n\n"); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case event, ok := <-eventChan:
				if !ok {
					return
				}

				sseData, err := events.FormatSSE(event)
				if err != nil {
					logger.Warn("failed to format sse event", zap.String("type", string(event.Type)), zap.Error(err))
					continue
				}

				if _, err := w.WriteString(sseData); err != nil {
					logger.Debug("sse client disconnected")
					return
				}
				if err := w.Flush(); err != nil {
					logger.Debug("sse client disconnected")
					return
				}

			case <-ticker.C:
				if _, err := w.WriteString(": heartbeat\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})

	return nil
}
