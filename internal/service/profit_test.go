package service

import (
	"bytes"
	"testing"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/dumu-tech/restaurant-ops/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) completeOrder(t *testing.T, tableID string, items ...OrderItemInput) *core.Order {
	t.Helper()
	order, err := f.orders.CreateOrder(f.ctx, waiter, CreateOrderRequest{TableID: tableID, Type: core.OrderTypeWaiter, Items: items})
	require.NoError(t, err)
	f.serve(t, order.ID)
	_, err = f.payments.CreatePayment(f.ctx, waiter, order.ID, core.PaymentMethodCash, order.TotalAmount)
	require.NoError(t, err)
	return order
}

func (f *fixture) performance(t *testing.T, branchID string) map[string]*core.MenuItemPerformance {
	t.Helper()
	rows, err := f.profit.GetMenuItemPerformance(f.ctx, core.PerformanceFilter{
		RestaurantID: seed.RestaurantID,
		BranchID:     branchID,
		From:         f.today(),
		To:           f.today(),
	})
	require.NoError(t, err)
	out := make(map[string]*core.MenuItemPerformance, len(rows))
	for _, r := range rows {
		out[r.MenuItemID] = r
	}
	return out
}

func TestDailyProfitAfterCompletion(t *testing.T) {
	f := newFixture(t)
	f.completeWithCash(t)

	for _, branch := range []string{seed.BranchID, ""} {
		daily := f.daily(t, branch)
		assertDecimal(t, "675", daily.Revenue)
		assertDecimal(t, "25.18", daily.CostOfGoods)
		assertDecimal(t, "0", daily.WasteCost)
		assertDecimal(t, "649.82", daily.NetProfit)
		assertDecimal(t, "96.27", daily.ProfitMargin)
		assertDecimal(t, "675", daily.AverageOrderValue)
		assert.Equal(t, 1, daily.OrderCount)
		assert.Equal(t, 0, daily.EstimatedCostItems)
	}

	week, err := f.store.Profit().GetAggregation(f.ctx, core.ProfitKey{
		Level: core.LevelWeekly, Date: core.WeekStart(f.today()), RestaurantID: seed.RestaurantID, BranchID: seed.BranchID,
	})
	require.NoError(t, err)
	assertDecimal(t, "649.82", week.NetProfit)

	month, err := f.store.Profit().GetAggregation(f.ctx, core.ProfitKey{
		Level: core.LevelMonthly, Date: core.MonthStart(f.today()), RestaurantID: seed.RestaurantID,
	})
	require.NoError(t, err)
	assertDecimal(t, "675", month.Revenue)

	alerts, err := f.profit.ListProfitAlerts(f.ctx, seed.RestaurantID, f.today(), f.today())
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestMenuItemPerformanceRows(t *testing.T) {
	f := newFixture(t)
	f.completeWithCash(t)

	rows := f.performance(t, seed.BranchID)
	require.Len(t, rows, 2)

	doro := rows[seed.DoroWatID]
	require.NotNil(t, doro)
	assert.Equal(t, "Doro Wat", doro.MenuItemName)
	assert.Equal(t, 2, doro.QuantitySold)
	assertDecimal(t, "500", doro.Revenue)
	assertDecimal(t, "13.18", doro.IngredientCost)
	assertDecimal(t, "2.64", doro.LaborCostShare)
	assertDecimal(t, "15.82", doro.TotalCost)
	assertDecimal(t, "486.82", doro.GrossProfit)
	assertDecimal(t, "484.18", doro.NetProfit)
	assertDecimal(t, "96.84", doro.ProfitMargin)
	assert.Equal(t, core.TrendNew, doro.Trend)

	coffee := rows[seed.CoffeeID]
	require.NotNil(t, coffee)
	assert.Equal(t, 1, coffee.QuantitySold)
	assertDecimal(t, "40", coffee.Revenue)
	assertDecimal(t, "12", coffee.IngredientCost)
	assertDecimal(t, "2.4", coffee.LaborCostShare)
	assertDecimal(t, "14.4", coffee.TotalCost)
	assertDecimal(t, "25.6", coffee.NetProfit)
	assertDecimal(t, "64", coffee.ProfitMargin)

	assert.Len(t, f.performance(t, ""), 2)

	_, err := f.profit.GetMenuItemPerformance(f.ctx, core.PerformanceFilter{})
	assert.Equal(t, core.KindValidationFailed, core.KindOf(err))
}

func TestProfitTrendAcrossDays(t *testing.T) {
	f := newFixture(t)
	f.completeWithCash(t)

	f.clock.Advance(24 * time.Hour)
	f.completeOrder(t, seed.TableT2ID, OrderItemInput{MenuItemID: seed.DoroWatID, Quantity: 6})
	assertDecimal(t, "1835.46", f.daily(t, seed.BranchID).NetProfit)

	doro := f.performance(t, seed.BranchID)[seed.DoroWatID]
	require.NotNil(t, doro)
	assert.Equal(t, core.TrendUp, doro.Trend)

	trend, err := f.profit.GetProfitTrend(f.ctx, seed.RestaurantID, seed.BranchID, 2, f.today())
	require.NoError(t, err)
	require.Len(t, trend.Days, 2)
	assertDecimal(t, "649.82", trend.EarlierProfit)
	assertDecimal(t, "1835.46", trend.LaterProfit)
	assert.Equal(t, core.TrendUp, trend.Direction)
	assertDecimal(t, "182.46", trend.TrendPercentage)

	week, err := f.profit.GetProfitTrend(f.ctx, seed.RestaurantID, seed.BranchID, 7, f.today())
	require.NoError(t, err)
	require.Len(t, week.Days, 7)
	assertDecimal(t, "0", week.Days[0].NetProfit)
	assert.Equal(t, f.today(), week.Days[6].Date)

	_, err = f.profit.GetProfitTrend(f.ctx, seed.RestaurantID, seed.BranchID, 1, f.today())
	assert.Equal(t, core.KindValidationFailed, core.KindOf(err))
}

func TestEmptyTrendIsStable(t *testing.T) {
	f := newFixture(t)
	trend, err := f.profit.GetProfitTrend(f.ctx, seed.RestaurantID, "", 4, f.today())
	require.NoError(t, err)
	assert.Equal(t, core.TrendStable, trend.Direction)
	assertDecimal(t, "0", trend.TrendPercentage)
}

func TestPriceChangeRepricesRecentPerformance(t *testing.T) {
	f := newFixture(t)
	f.completeWithCash(t)

	_, err := f.catalog.ChangePrice(f.ctx, manager, seed.DoroWatID, dec("300"))
	require.NoError(t, err)

	for _, branch := range []string{seed.BranchID, ""} {
		doro := f.performance(t, branch)[seed.DoroWatID]
		require.NotNil(t, doro)
		assertDecimal(t, "600", doro.Revenue)
		assertDecimal(t, "13.18", doro.IngredientCost)
		assertDecimal(t, "584.18", doro.NetProfit)
		assertDecimal(t, "97.36", doro.ProfitMargin)
	}

	// order snapshots keep the daily revenue
	assertDecimal(t, "675", f.daily(t, seed.BranchID).Revenue)

	_, err = f.catalog.ChangePrice(f.ctx, manager, seed.DoroWatID, dec("-1"))
	assert.Equal(t, core.KindValidationFailed, core.KindOf(err))
}

func TestOrderAfterPriceChangeKeepsRestatedRevenue(t *testing.T) {
	f := newFixture(t)
	f.completeWithCash(t)

	_, err := f.catalog.ChangePrice(f.ctx, manager, seed.DoroWatID, dec("300"))
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	f.completeOrder(t, seed.TableT2ID, OrderItemInput{MenuItemID: seed.DoroWatID, Quantity: 1})

	for _, branch := range []string{seed.BranchID, ""} {
		doro := f.performance(t, branch)[seed.DoroWatID]
		require.NotNil(t, doro)
		assert.Equal(t, 3, doro.QuantitySold)
		assertDecimal(t, "900", doro.Revenue)
	}

	// 675 from the first order plus 300 × 1.25
	assertDecimal(t, "1050", f.daily(t, seed.BranchID).Revenue)
}

func TestTrendComparesWithLastSellingDay(t *testing.T) {
	f := newFixture(t)
	day1 := f.clock.Now()
	f.completeWithCash(t)

	f.clock.Set(day1.Add(48 * time.Hour))
	f.completeOrder(t, seed.TableT2ID, OrderItemInput{MenuItemID: seed.DoroWatID, Quantity: 3})
	doro := f.performance(t, seed.BranchID)[seed.DoroWatID]
	require.NotNil(t, doro)
	assert.Equal(t, core.TrendStable, doro.Trend)

	f.clock.Set(day1.Add(72 * time.Hour))
	f.completeOrder(t, seed.TableT2ID, OrderItemInput{MenuItemID: seed.DoroWatID, Quantity: 9})
	assert.Equal(t, core.TrendUp, f.performance(t, seed.BranchID)[seed.DoroWatID].Trend)
}

func TestRecomputingEarlierDayRefreshesNextTrend(t *testing.T) {
	f := newFixture(t)
	day1 := f.clock.Now()
	f.completeOrder(t, seed.TableT1ID, OrderItemInput{MenuItemID: seed.CoffeeID, Quantity: 1})

	f.clock.Set(day1.Add(24 * time.Hour))
	f.completeOrder(t, seed.TableT2ID, OrderItemInput{MenuItemID: seed.DoroWatID, Quantity: 6})
	require.Equal(t, core.TrendNew, f.performance(t, seed.BranchID)[seed.DoroWatID].Trend)

	// a late completion lands on the earlier day
	f.clock.Set(day1.Add(2 * time.Hour))
	f.completeOrder(t, seed.TableT1ID, OrderItemInput{MenuItemID: seed.DoroWatID, Quantity: 5})

	f.clock.Set(day1.Add(24 * time.Hour))
	for _, branch := range []string{seed.BranchID, ""} {
		doro := f.performance(t, branch)[seed.DoroWatID]
		require.NotNil(t, doro)
		assert.Equal(t, 6, doro.QuantitySold)
		assert.Equal(t, core.TrendStable, doro.Trend)
	}
}

func TestRecipeChangeRecostsProjections(t *testing.T) {
	f := newFixture(t)
	f.completeWithCash(t)

	_, err := f.catalog.ChangeRecipe(f.ctx, manager, seed.DoroWatID, []core.RecipeLine{
		{StockItemID: seed.ChickenID, QuantityRequired: dec("0.30")},
	})
	require.NoError(t, err)

	item, err := f.catalog.GetMenuItem(f.ctx, seed.DoroWatID)
	require.NoError(t, err)
	assertDecimal(t, "6.75", item.CostPrice)

	doro := f.performance(t, seed.BranchID)[seed.DoroWatID]
	require.NotNil(t, doro)
	assertDecimal(t, "13.5", doro.IngredientCost)
	assertDecimal(t, "16.2", doro.TotalCost)
	assertDecimal(t, "483.8", doro.NetProfit)
	assertDecimal(t, "96.76", doro.ProfitMargin)

	for _, branch := range []string{seed.BranchID, ""} {
		daily := f.daily(t, branch)
		assertDecimal(t, "25.5", daily.CostOfGoods)
		assertDecimal(t, "649.5", daily.NetProfit)
	}

	_, err = f.catalog.ChangeRecipe(f.ctx, manager, seed.DoroWatID, []core.RecipeLine{
		{StockItemID: seed.ChickenID, QuantityRequired: dec("0.1")},
		{StockItemID: seed.ChickenID, QuantityRequired: dec("0.1")},
	})
	assert.Equal(t, core.KindValidationFailed, core.KindOf(err))
}

func TestRebuildRangeMatchesLiveProjections(t *testing.T) {
	f := newFixture(t)
	f.completeWithCash(t)
	live := f.daily(t, seed.BranchID)

	summary, err := f.profit.RebuildRange(f.ctx, seed.RestaurantID, seed.BranchID, f.today().AddDate(0, 0, -2), f.today())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Days)
	assert.Equal(t, 1, summary.CompletedOrders)
	assert.Equal(t, 2, summary.PerformanceRows)

	rebuilt := f.daily(t, seed.BranchID)
	assert.True(t, live.NetProfit.Equal(rebuilt.NetProfit))
	assert.True(t, live.CostOfGoods.Equal(rebuilt.CostOfGoods))
	assert.Equal(t, live.OrderCount, rebuilt.OrderCount)

	_, err = f.profit.RebuildRange(f.ctx, seed.RestaurantID, seed.BranchID, f.today(), f.today().AddDate(0, 0, -1))
	assert.Equal(t, core.KindValidationFailed, core.KindOf(err))
}

func TestRestaurantRebuildRewritesEveryBranch(t *testing.T) {
	f := newFixture(t)
	const branch2, table2 = "branch-2", "table-b2-1"
	f.store.PutBranch(core.Branch{ID: branch2, RestaurantID: seed.RestaurantID, Name: "B2"})
	f.store.PutTable(core.Table{ID: table2, RestaurantID: seed.RestaurantID, BranchID: branch2, Number: "T1", Status: core.TableAvailable})

	f.completeWithCash(t)
	f.completeOrder(t, table2, OrderItemInput{MenuItemID: seed.CoffeeID, Quantity: 3})
	first, second := f.daily(t, seed.BranchID), f.daily(t, branch2)
	require.Equal(t, 1, second.OrderCount)

	// leave stale branch rows behind
	for _, branchID := range []string{seed.BranchID, branch2} {
		require.NoError(t, f.store.Profit().UpsertAggregation(f.ctx, &core.ProfitAggregation{
			ProfitKey: core.ProfitKey{Level: core.LevelDaily, Date: f.today(), RestaurantID: seed.RestaurantID, BranchID: branchID},
		}))
	}

	summary, err := f.profit.RebuildRange(f.ctx, seed.RestaurantID, "", f.today(), f.today())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.CompletedOrders)

	rebuilt1, rebuilt2, all := f.daily(t, seed.BranchID), f.daily(t, branch2), f.daily(t, "")
	assert.Equal(t, 1, rebuilt1.OrderCount)
	assert.Equal(t, 1, rebuilt2.OrderCount)
	assertDecimal(t, first.Revenue.String(), rebuilt1.Revenue)
	assertDecimal(t, second.Revenue.String(), rebuilt2.Revenue)
	assertDecimal(t, rebuilt1.Revenue.Add(rebuilt2.Revenue).String(), all.Revenue)
	assertDecimal(t, rebuilt1.NetProfit.Add(rebuilt2.NetProfit).String(), all.NetProfit)
	assert.Equal(t, 2, all.OrderCount)

	week, err := f.store.Profit().GetAggregation(f.ctx, core.ProfitKey{
		Level: core.LevelWeekly, Date: core.WeekStart(f.today()), RestaurantID: seed.RestaurantID, BranchID: branch2,
	})
	require.NoError(t, err)
	assertDecimal(t, second.Revenue.String(), week.Revenue)
}

func TestProfitIssues(t *testing.T) {
	f := newFixture(t)
	_, err := f.catalog.ChangePrice(f.ctx, manager, seed.CoffeeID, dec("15"))
	require.NoError(t, err)
	_, err = f.catalog.ChangePrice(f.ctx, manager, seed.TibsID, dec("50"))
	require.NoError(t, err)
	f.completeOrder(t, seed.TableT1ID,
		OrderItemInput{MenuItemID: seed.CoffeeID, Quantity: 1},
		OrderItemInput{MenuItemID: seed.TibsID, Quantity: 1},
	)

	issues, err := f.profit.ListProfitIssues(f.ctx, seed.RestaurantID, seed.BranchID, 7, f.today())
	require.NoError(t, err)

	require.Len(t, issues.LossMakers, 1)
	assert.Equal(t, seed.TibsID, issues.LossMakers[0].MenuItemID)
	assertDecimal(t, "-26", issues.LossMakers[0].AverageMargin)
	assertDecimal(t, "-13", issues.LossMakers[0].RevenueImpact)

	require.Len(t, issues.LowMarginItems, 1)
	assert.Equal(t, seed.CoffeeID, issues.LowMarginItems[0].MenuItemID)
	assertDecimal(t, "4", issues.LowMarginItems[0].AverageMargin)
	assertDecimal(t, "1.65", issues.LowMarginItems[0].RevenueImpact)

	require.Len(t, issues.PriceSuggestions, 2)
	assert.Equal(t, seed.TibsID, issues.PriceSuggestions[0].MenuItemID)
	assertDecimal(t, "87.68", issues.PriceSuggestions[0].SuggestedPrice)
	assertDecimal(t, "37.68", issues.PriceSuggestions[0].RevenueImpact)
	assert.Equal(t, seed.CoffeeID, issues.PriceSuggestions[1].MenuItemID)
	assertDecimal(t, "20.04", issues.PriceSuggestions[1].SuggestedPrice)
	assertDecimal(t, "5.04", issues.PriceSuggestions[1].RevenueImpact)

	_, err = f.profit.ListProfitIssues(f.ctx, seed.RestaurantID, seed.BranchID, 0, f.today())
	assert.Equal(t, core.KindValidationFailed, core.KindOf(err))
}

func TestDailyProfitReportPDF(t *testing.T) {
	f := newFixture(t)
	f.completeWithCash(t)

	pdf, filename, err := f.report.GenerateDailyProfitReportPDF(f.ctx, seed.RestaurantID, seed.BranchID, "")
	require.NoError(t, err)
	assert.Equal(t, "daily-profit-2026-03-10.pdf", filename)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	_, filename, err = f.report.GenerateDailyProfitReportPDF(f.ctx, seed.RestaurantID, "", "2026-03-09")
	require.NoError(t, err)
	assert.Equal(t, "daily-profit-2026-03-09.pdf", filename)

	_, _, err = f.report.GenerateDailyProfitReportPDF(f.ctx, seed.RestaurantID, "", "10/03/2026")
	assert.Equal(t, core.KindValidationFailed, core.KindOf(err))

	_, _, err = f.report.GenerateDailyProfitReportPDF(f.ctx, "missing", "", "")
	assert.Equal(t, core.KindNotFound, core.KindOf(err))
}
