package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

// DailyProfitReport is everything printed on the daily profit PDF
type DailyProfitReport struct {
	RestaurantName string
	BranchName     string
	Day            time.Time
	GeneratedAt    time.Time
	Profit         *core.ProfitAggregation
	Items          []*core.MenuItemPerformance
	Alerts         []*core.ProfitAlert
	LowStock       []*core.InventoryAlert
}

// ProfitReportExporter renders profit projections as PDF
type ProfitReportExporter struct {
	store    core.Store
	profit   *ProfitAggregator
	loc      *time.Location
	currency string
	now      func() time.Time
}

// NewProfitReportExporter creates a new report exporter
func NewProfitReportExporter(store core.Store, profit *ProfitAggregator, loc *time.Location) *ProfitReportExporter {
	return &ProfitReportExporter{store: store, profit: profit, loc: loc, currency: "ETB", now: time.Now}
}

// GenerateDailyProfitReportPDF renders the daily report. An empty date means today.
func (e *ProfitReportExporter) GenerateDailyProfitReportPDF(ctx context.Context, restaurantID, branchID, date string) ([]byte, string, error) {
	day, err := resolveReportDate(date, e.now(), e.loc)
	if err != nil {
		return nil, "", err
	}
	report, err := e.buildDailyReport(ctx, restaurantID, branchID, day)
	if err != nil {
		return nil, "", err
	}
	pdfBytes, err := e.render(report)
	if err != nil {
		return nil, "", err
	}
	return pdfBytes, fmt.Sprintf("daily-profit-%s.pdf", day.Format("2006-01-02")), nil
}

func (e *ProfitReportExporter) buildDailyReport(ctx context.Context, restaurantID, branchID string, day time.Time) (*DailyProfitReport, error) {
	restaurant, err := e.store.Catalog().GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	report := &DailyProfitReport{RestaurantName: restaurant.Name, Day: day, GeneratedAt: e.now().In(e.loc)}
	if branchID != "" {
		branch, err := e.store.Catalog().GetBranch(ctx, branchID)
		if err != nil {
			return nil, err
		}
		report.BranchName = branch.Name
	}

	if report.Profit, err = e.profit.GetDailyProfit(ctx, restaurantID, branchID, day); err != nil {
		return nil, fmt.Errorf("failed to fetch daily profit: %w", err)
	}
	if report.Items, err = e.profit.GetMenuItemPerformance(ctx, core.PerformanceFilter{
		RestaurantID: restaurantID,
		BranchID:     branchID,
		From:         day,
		To:           day,
	}); err != nil {
		return nil, fmt.Errorf("failed to fetch menu item performance: %w", err)
	}
	if report.Alerts, err = e.profit.ListProfitAlerts(ctx, restaurantID, day, day); err != nil {
		return nil, fmt.Errorf("failed to fetch profit alerts: %w", err)
	}
	if report.LowStock, err = e.store.Alerts().ListInventoryAlerts(ctx, core.AlertFilter{
		RestaurantID:   restaurantID,
		BranchID:       branchID,
		UnresolvedOnly: true,
	}); err != nil {
		return nil, fmt.Errorf("failed to fetch inventory alerts: %w", err)
	}
	return report, nil
}

func resolveReportDate(date string, now time.Time, loc *time.Location) (time.Time, error) {
	if strings.TrimSpace(date) == "" {
		return core.Day(now, loc), nil
	}
	parsed, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, core.Validation("date", "invalid date format, expected YYYY-MM-DD")
	}
	return parsed, nil
}

func (e *ProfitReportExporter) render(report *DailyProfitReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	scope := "All branches"
	if report.BranchName != "" {
		scope = report.BranchName
	}
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 8, report.RestaurantName, "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 7, "Daily Profit Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Date: %s | Scope: %s", report.Day.Format("2006-01-02"), scope), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated At: %s", report.GeneratedAt.Format("02 Jan 2006 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	p := report.Profit
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Summary", "1", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(95, 7, "Revenue: "+e.money(p.Revenue), "1", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Orders: %d", p.OrderCount), "1", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Cost of Goods: "+e.money(p.CostOfGoods), "1", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Average Order: "+e.money(p.AverageOrderValue), "1", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Waste: "+e.money(p.WasteCost), "1", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Waste %% of COGS: %s%%", p.WastePercentage.StringFixed(2)), "1", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Net Profit: "+e.money(p.NetProfit), "1", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Margin: %s%%", p.ProfitMargin.StringFixed(2)), "1", 1, "L", false, 0, "")
	if p.EstimatedCostItems > 0 {
		pdf.SetFont("Arial", "I", 9)
		pdf.MultiCell(0, 5, fmt.Sprintf("%d item lines had no recipe or cost price; their cost is estimated at 40%% of the sale price.", p.EstimatedCostItems), "", "L", false)
	}
	pdf.Ln(3)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Menu Items", "", 1, "L", false, 0, "")
	if len(report.Items) == 0 {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, "No sales recorded for this day.", "", 1, "L", false, 0, "")
	} else {
		widths := []float64{60, 18, 30, 30, 30, 22}
		pdf.SetFont("Arial", "B", 9)
		for i, h := range []string{"Item", "Qty", "Revenue", "Total Cost", "Net Profit", "Trend"} {
			pdf.CellFormat(widths[i], 6, h, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
		for _, it := range report.Items {
			ensurePageSpace(pdf, 8)
			pdf.CellFormat(widths[0], 6, it.MenuItemName, "1", 0, "L", false, 0, "")
			pdf.CellFormat(widths[1], 6, fmt.Sprintf("%d", it.QuantitySold), "1", 0, "R", false, 0, "")
			pdf.CellFormat(widths[2], 6, it.Revenue.StringFixed(2), "1", 0, "R", false, 0, "")
			pdf.CellFormat(widths[3], 6, it.TotalCost.StringFixed(2), "1", 0, "R", false, 0, "")
			pdf.CellFormat(widths[4], 6, it.NetProfit.StringFixed(2), "1", 0, "R", false, 0, "")
			pdf.CellFormat(widths[5], 6, string(it.Trend), "1", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(3)

	if len(report.Alerts) > 0 || len(report.LowStock) > 0 {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 7, "Alerts", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		for _, a := range report.Alerts {
			pdf.MultiCell(0, 5, fmt.Sprintf("- [%s] %s", a.Kind, a.Message), "", "L", false)
		}
		for _, a := range report.LowStock {
			pdf.MultiCell(0, 5, fmt.Sprintf("- [%s] %s", a.Kind, a.Message), "", "L", false)
		}
	}

	var buffer bytes.Buffer
	if err := pdf.Output(&buffer); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buffer.Bytes(), nil
}

func ensurePageSpace(pdf *gofpdf.Fpdf, minSpace float64) {
	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottomMargin := pdf.GetMargins()
	if pdf.GetY()+minSpace > pageHeight-bottomMargin {
		pdf.AddPage()
	}
}

func (e *ProfitReportExporter) money(amount decimal.Decimal) string {
	return e.currency + " " + amount.StringFixed(2)
}
