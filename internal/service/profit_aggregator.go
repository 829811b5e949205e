package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/dumu-tech/restaurant-ops/internal/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	laborCostShare     = decimal.RequireFromString("0.20")
	fallbackCostRatio  = decimal.RequireFromString("0.40")
	lowMarginThreshold = decimal.NewFromInt(15)
	highWasteThreshold = decimal.NewFromInt(10)
)

const (
	trendDeadBand = 2
	// days of performance rows re-priced by a price or recipe change, today included
	retroactiveDays = 7
)

// ProfitAggregator maintains the daily/weekly/monthly profit rows and the per-item
// performance rows. Every write is a full recompute from orders and the ledger, so
// replaying an event leaves the projections unchanged.
type ProfitAggregator struct {
	store    core.Store
	resolver *RecipeResolver
	logger   *zap.Logger
	loc      *time.Location
	now      func() time.Time
	workers  int
}

// NewProfitAggregator creates a new profit aggregator. workers bounds RebuildRange.
func NewProfitAggregator(store core.Store, resolver *RecipeResolver, loc *time.Location, workers int, logger *zap.Logger) *ProfitAggregator {
	if workers < 1 {
		workers = 1
	}
	return &ProfitAggregator{
		store:    store,
		resolver: resolver,
		logger:   logger,
		loc:      loc,
		now:      time.Now,
		workers:  workers,
	}
}

// Register subscribes the aggregator to every event that moves profit
func (p *ProfitAggregator) Register(bus *events.EventBus) {
	bus.On(events.EventOrderCompleted, "profit.order_completed", p.handleOrderCompleted)
	bus.On(events.EventWasteApproved, "profit.waste_approved", p.handleWasteApproved)
	bus.On(events.EventPriceChanged, "profit.price_changed", p.handlePriceChanged)
	bus.On(events.EventRecipeChanged, "profit.recipe_changed", p.handleRecipeChanged)
}

func (p *ProfitAggregator) handleOrderCompleted(ctx context.Context, evt events.Event) error {
	payload, ok := evt.Data.(events.OrderCompleted)
	if !ok {
		return fmt.Errorf("unexpected payload %T", evt.Data)
	}
	order, err := p.store.Orders().GetOrder(ctx, payload.OrderID)
	if err != nil {
		return err
	}
	day := core.Day(payload.CompletedAt, p.loc)
	if err := p.RecomputeDay(ctx, order.RestaurantID, order.BranchID, day); err != nil {
		return err
	}

	seen := make(map[string]bool, len(order.Items))
	for _, it := range order.Items {
		if seen[it.MenuItemID] {
			continue
		}
		seen[it.MenuItemID] = true
		if err := p.RecomputeItemDay(ctx, order.RestaurantID, order.BranchID, it.MenuItemID, day); err != nil {
			return err
		}
	}
	return nil
}

func (p *ProfitAggregator) handleWasteApproved(ctx context.Context, evt events.Event) error {
	payload, ok := evt.Data.(events.WasteEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", evt.Data)
	}
	return p.RecomputeDay(ctx, payload.RestaurantID, payload.BranchID, core.Day(payload.CreatedAt, p.loc))
}

func (p *ProfitAggregator) handlePriceChanged(ctx context.Context, evt events.Event) error {
	payload, ok := evt.Data.(events.PriceChanged)
	if !ok {
		return fmt.Errorf("unexpected payload %T", evt.Data)
	}
	_, err := p.ApplyPriceChange(ctx, payload.RestaurantID, payload.MenuItemID, payload.NewPrice)
	return err
}

func (p *ProfitAggregator) handleRecipeChanged(ctx context.Context, evt events.Event) error {
	payload, ok := evt.Data.(events.RecipeChanged)
	if !ok {
		return fmt.Errorf("unexpected payload %T", evt.Data)
	}
	_, err := p.ApplyRecipeChange(ctx, payload.RestaurantID, payload.MenuItemID)
	return err
}

// scopesOf returns the branch scope followed by the restaurant-wide scope
func scopesOf(branchID string) []string {
	if branchID == "" {
		return []string{""}
	}
	return []string{branchID, ""}
}

// RecomputeDay rebuilds the daily rows of a branch and its restaurant for day, then the
// weekly and monthly rows that contain it.
func (p *ProfitAggregator) RecomputeDay(ctx context.Context, restaurantID, branchID string, day time.Time) error {
	day = core.Day(day, p.loc)
	if err := p.recomputeDaily(ctx, restaurantID, branchID, day); err != nil {
		return err
	}
	return p.rollUp(ctx, restaurantID, branchID, day)
}

func (p *ProfitAggregator) recomputeDaily(ctx context.Context, restaurantID, branchID string, day time.Time) error {
	return p.recomputeDailyScopes(ctx, restaurantID, scopesOf(branchID), day)
}

func (p *ProfitAggregator) recomputeDailyScopes(ctx context.Context, restaurantID string, scopes []string, day time.Time) error {
	for _, scope := range scopes {
		agg, err := p.computeDaily(ctx, restaurantID, scope, day)
		if err != nil {
			return err
		}
		if err := p.store.Profit().UpsertAggregation(ctx, agg); err != nil {
			return fmt.Errorf("failed to upsert daily profit: %w", err)
		}
		p.raiseAlerts(ctx, agg)
	}
	return nil
}

func (p *ProfitAggregator) rollUp(ctx context.Context, restaurantID, branchID string, day time.Time) error {
	return p.rollUpScopes(ctx, restaurantID, scopesOf(branchID), day)
}

func (p *ProfitAggregator) rollUpScopes(ctx context.Context, restaurantID string, scopes []string, day time.Time) error {
	week := core.WeekStart(day)
	month := core.MonthStart(day)
	periods := []struct {
		level    core.AggregationLevel
		from, to time.Time
	}{
		{core.LevelWeekly, week, week.AddDate(0, 0, 6)},
		{core.LevelMonthly, month, month.AddDate(0, 1, -1)},
	}

	for _, scope := range scopes {
		for _, period := range periods {
			rows, err := p.store.Profit().ListAggregations(ctx, core.LevelDaily, restaurantID, scope, period.from, period.to)
			if err != nil {
				return fmt.Errorf("failed to list daily profit: %w", err)
			}
			agg := &core.ProfitAggregation{
				ProfitKey: core.ProfitKey{Level: period.level, Date: period.from, RestaurantID: restaurantID, BranchID: scope},
			}
			revenue, cogs, waste := decimal.Zero, decimal.Zero, decimal.Zero
			for _, r := range rows {
				revenue = revenue.Add(r.Revenue)
				cogs = cogs.Add(r.CostOfGoods)
				waste = waste.Add(r.WasteCost)
				agg.OrderCount += r.OrderCount
				agg.EstimatedCostItems += r.EstimatedCostItems
			}
			fillAggregation(agg, revenue, cogs, waste)
			agg.UpdatedAt = p.now()
			if err := p.store.Profit().UpsertAggregation(ctx, agg); err != nil {
				return fmt.Errorf("failed to upsert %s profit: %w", period.level, err)
			}
		}
	}
	return nil
}

// computeDaily derives one daily row from completed orders and approved waste
func (p *ProfitAggregator) computeDaily(ctx context.Context, restaurantID, branchID string, day time.Time) (*core.ProfitAggregation, error) {
	next := day.AddDate(0, 0, 1)
	orders, err := p.store.Orders().ListCompletedOrders(ctx, restaurantID, branchID, day, next)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed orders: %w", err)
	}

	costs := newUnitCosts(p.store, p.resolver)
	revenue, cogs := decimal.Zero, decimal.Zero
	estimated := 0
	for _, o := range orders {
		revenue = revenue.Add(o.TotalAmount)
		for _, it := range o.Items {
			unit, isEstimate, err := costs.of(ctx, it.MenuItemID, it.UnitPrice)
			if err != nil {
				return nil, err
			}
			if isEstimate {
				estimated++
			}
			cogs = cogs.Add(unit.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
	}

	wasteRecords, err := p.store.Waste().ListWasteRecords(ctx, core.WasteFilter{
		RestaurantID: restaurantID,
		BranchID:     branchID,
		Statuses:     []core.WasteStatus{core.WasteApproved},
		From:         day,
		To:           next,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list waste: %w", err)
	}
	waste := decimal.Zero
	for _, w := range wasteRecords {
		waste = waste.Add(w.TotalCost)
	}

	agg := &core.ProfitAggregation{
		ProfitKey:          core.ProfitKey{Level: core.LevelDaily, Date: day, RestaurantID: restaurantID, BranchID: branchID},
		OrderCount:         len(orders),
		EstimatedCostItems: estimated,
		UpdatedAt:          p.now(),
	}
	fillAggregation(agg, revenue, cogs, waste)
	return agg, nil
}

// fillAggregation rounds the summed components and derives the dependent figures from the
// rounded values, so net_profit equals revenue − cost_of_goods − waste_cost exactly.
func fillAggregation(agg *core.ProfitAggregation, revenue, cogs, waste decimal.Decimal) {
	agg.Revenue = core.Round2(revenue)
	agg.CostOfGoods = core.Round2(cogs)
	agg.WasteCost = core.Round2(waste)
	agg.NetProfit = agg.Revenue.Sub(agg.CostOfGoods).Sub(agg.WasteCost)
	agg.ProfitMargin = core.Percent(agg.NetProfit, agg.Revenue)
	agg.WastePercentage = core.Percent(agg.WasteCost, agg.CostOfGoods)
	agg.AverageOrderValue = decimal.Zero
	if agg.OrderCount > 0 {
		agg.AverageOrderValue = core.Round2(agg.Revenue.Div(decimal.NewFromInt(int64(agg.OrderCount))))
	}
}

func (p *ProfitAggregator) raiseAlerts(ctx context.Context, agg *core.ProfitAggregation) {
	type candidate struct {
		kind    core.ProfitAlertKind
		value   decimal.Decimal
		message string
	}
	var found []candidate
	if agg.NetProfit.IsNegative() {
		found = append(found, candidate{core.ProfitAlertNegative, agg.NetProfit,
			fmt.Sprintf("net profit is %s", agg.NetProfit.StringFixed(2))})
	} else if agg.Revenue.IsPositive() && agg.ProfitMargin.LessThan(lowMarginThreshold) {
		found = append(found, candidate{core.ProfitAlertLowMargin, agg.ProfitMargin,
			fmt.Sprintf("profit margin is %s%%", agg.ProfitMargin.StringFixed(2))})
	}
	if agg.WastePercentage.GreaterThan(highWasteThreshold) {
		found = append(found, candidate{core.ProfitAlertHighWaste, agg.WastePercentage,
			fmt.Sprintf("waste is %s%% of cost of goods", agg.WastePercentage.StringFixed(2))})
	}

	for _, c := range found {
		alert := &core.ProfitAlert{
			ID:           uuid.New().String(),
			RestaurantID: agg.RestaurantID,
			BranchID:     agg.BranchID,
			Kind:         c.kind,
			Subject:      string(agg.Level),
			Day:          agg.Date,
			Message:      c.message,
			Value:        c.value,
			CreatedAt:    p.now(),
		}
		created, err := p.store.Alerts().CreateProfitAlert(ctx, alert)
		if err != nil {
			p.logger.Warn("failed to create profit alert", zap.String("kind", string(c.kind)), zap.Error(err))
			continue
		}
		if created {
			p.logger.Warn("profit alert",
				zap.String("restaurant_id", agg.RestaurantID),
				zap.String("branch_id", agg.BranchID),
				zap.String("kind", string(c.kind)),
				zap.String("message", c.message))
		}
	}
}

// RecomputeItemDay rebuilds a menu item's performance rows for day in the branch and
// restaurant-wide scopes. Days inside the re-pricing window are valued at the current menu
// price, the same way ApplyPriceChange restates them; older days keep the order snapshots.
func (p *ProfitAggregator) RecomputeItemDay(ctx context.Context, restaurantID, branchID, menuItemID string, day time.Time) error {
	day = core.Day(day, p.loc)
	menuItem, err := p.store.Catalog().GetMenuItem(ctx, menuItemID)
	if err != nil {
		return err
	}
	costs := newUnitCosts(p.store, p.resolver)
	repriced := !day.Before(p.windowStart())

	for _, scope := range scopesOf(branchID) {
		orders, err := p.store.Orders().ListCompletedOrders(ctx, restaurantID, scope, day, day.AddDate(0, 0, 1))
		if err != nil {
			return fmt.Errorf("failed to list completed orders: %w", err)
		}
		qty := 0
		revenue, ingredients := decimal.Zero, decimal.Zero
		for _, o := range orders {
			for _, it := range o.Items {
				if it.MenuItemID != menuItemID {
					continue
				}
				unit, _, err := costs.of(ctx, it.MenuItemID, it.UnitPrice)
				if err != nil {
					return err
				}
				qty += it.Quantity
				if repriced {
					revenue = revenue.Add(menuItem.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
				} else {
					revenue = revenue.Add(it.LineTotal())
				}
				ingredients = ingredients.Add(unit.Mul(decimal.NewFromInt(int64(it.Quantity))))
			}
		}

		key := core.PerformanceKey{Date: day, MenuItemID: menuItemID, RestaurantID: restaurantID, BranchID: scope}
		if qty == 0 {
			if _, err := p.store.Profit().GetPerformance(ctx, key); core.KindOf(err) == core.KindNotFound {
				continue
			}
		}

		perf := &core.MenuItemPerformance{PerformanceKey: key, MenuItemName: menuItem.Name, QuantitySold: qty}
		fillPerformance(perf, revenue, ingredients)
		trend, err := p.trendFor(ctx, key, qty)
		if err != nil {
			return err
		}
		perf.Trend = trend
		perf.UpdatedAt = p.now()
		if err := p.store.Profit().UpsertPerformance(ctx, perf); err != nil {
			return fmt.Errorf("failed to upsert menu item performance: %w", err)
		}
		if err := p.refreshNextTrend(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// trendFor compares qty with the item's most recent earlier row in the same scope using
// a ±2 dead-band. An item with no earlier row is new.
func (p *ProfitAggregator) trendFor(ctx context.Context, key core.PerformanceKey, qty int) (core.Trend, error) {
	earlier, err := p.store.Profit().ListPerformance(ctx, core.PerformanceFilter{
		RestaurantID: key.RestaurantID,
		BranchID:     key.BranchID,
		MenuItemID:   key.MenuItemID,
		To:           key.Date.AddDate(0, 0, -1),
	})
	if err != nil {
		return "", fmt.Errorf("failed to read previous performance: %w", err)
	}
	if len(earlier) == 0 {
		return core.TrendNew, nil
	}
	prev := earlier[len(earlier)-1]
	switch diff := qty - prev.QuantitySold; {
	case diff > trendDeadBand:
		return core.TrendUp, nil
	case diff < -trendDeadBand:
		return core.TrendDown, nil
	}
	return core.TrendStable, nil
}

// refreshNextTrend re-labels the first later row of the item, whose trend reads key's row
func (p *ProfitAggregator) refreshNextTrend(ctx context.Context, key core.PerformanceKey) error {
	later, err := p.store.Profit().ListPerformance(ctx, core.PerformanceFilter{
		RestaurantID: key.RestaurantID,
		BranchID:     key.BranchID,
		MenuItemID:   key.MenuItemID,
		From:         key.Date.AddDate(0, 0, 1),
	})
	if err != nil {
		return fmt.Errorf("failed to read later performance: %w", err)
	}
	if len(later) == 0 {
		return nil
	}
	next := later[0]
	trend, err := p.trendFor(ctx, next.PerformanceKey, next.QuantitySold)
	if err != nil {
		return err
	}
	if trend == next.Trend {
		return nil
	}
	next.Trend = trend
	next.UpdatedAt = p.now()
	if err := p.store.Profit().UpsertPerformance(ctx, next); err != nil {
		return fmt.Errorf("failed to upsert menu item performance: %w", err)
	}
	return nil
}

func fillPerformance(perf *core.MenuItemPerformance, revenue, ingredients decimal.Decimal) {
	labor := ingredients.Mul(laborCostShare)
	total := ingredients.Add(labor)
	perf.Revenue = core.Round2(revenue)
	perf.IngredientCost = core.Round2(ingredients)
	perf.LaborCostShare = core.Round2(labor)
	perf.TotalCost = core.Round2(total)
	perf.GrossProfit = core.Round2(revenue.Sub(ingredients))
	perf.NetProfit = core.Round2(revenue.Sub(total))
	perf.ProfitMargin = core.Percent(revenue.Sub(total), revenue)
}

// windowStart is the first day re-priced and re-costed by catalog changes
func (p *ProfitAggregator) windowStart() time.Time {
	return core.Day(p.now(), p.loc).AddDate(0, 0, -(retroactiveDays - 1))
}

func (p *ProfitAggregator) retroactiveRows(ctx context.Context, restaurantID, menuItemID string) ([]*core.MenuItemPerformance, error) {
	rows, err := p.store.Profit().ListPerformance(ctx, core.PerformanceFilter{
		RestaurantID: restaurantID,
		AllBranches:  true,
		MenuItemID:   menuItemID,
		From:         p.windowStart(),
		To:           core.Day(p.now(), p.loc),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list menu item performance: %w", err)
	}
	return rows, nil
}

// ApplyPriceChange re-prices the last 7 days of a menu item's performance rows at newPrice.
// Later recomputes of those days keep the new price. Daily aggregates keep the snapshot
// revenue of the orders.
func (p *ProfitAggregator) ApplyPriceChange(ctx context.Context, restaurantID, menuItemID string, newPrice decimal.Decimal) (int, error) {
	rows, err := p.retroactiveRows(ctx, restaurantID, menuItemID)
	if err != nil {
		return 0, err
	}
	for _, row := range rows {
		revenue := newPrice.Mul(decimal.NewFromInt(int64(row.QuantitySold)))
		fillPerformance(row, revenue, row.IngredientCost)
		row.UpdatedAt = p.now()
		if err := p.store.Profit().UpsertPerformance(ctx, row); err != nil {
			return 0, fmt.Errorf("failed to upsert menu item performance: %w", err)
		}
	}
	if len(rows) > 0 {
		p.logger.Info("performance re-priced",
			zap.String("menu_item_id", menuItemID),
			zap.String("new_price", newPrice.String()),
			zap.Int("rows", len(rows)))
	}
	return len(rows), nil
}

// ApplyRecipeChange re-costs the last 7 days of a menu item's performance rows with its
// current recipe and recomputes the daily aggregates those rows belong to.
func (p *ProfitAggregator) ApplyRecipeChange(ctx context.Context, restaurantID, menuItemID string) (int, error) {
	rows, err := p.retroactiveRows(ctx, restaurantID, menuItemID)
	if err != nil {
		return 0, err
	}
	menuItem, err := p.store.Catalog().GetMenuItem(ctx, menuItemID)
	if err != nil {
		return 0, err
	}
	unit, _, err := newUnitCosts(p.store, p.resolver).of(ctx, menuItemID, menuItem.Price)
	if err != nil {
		return 0, err
	}

	days := make(map[string]time.Time)
	branches := make(map[string][]string)
	for _, row := range rows {
		ingredients := unit.Mul(decimal.NewFromInt(int64(row.QuantitySold)))
		fillPerformance(row, row.Revenue, ingredients)
		row.UpdatedAt = p.now()
		if err := p.store.Profit().UpsertPerformance(ctx, row); err != nil {
			return 0, fmt.Errorf("failed to upsert menu item performance: %w", err)
		}
		key := row.Date.Format("2006-01-02")
		days[key] = row.Date
		if row.BranchID != "" {
			branches[key] = append(branches[key], row.BranchID)
		}
	}

	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		// a branch recompute also rewrites the restaurant-wide row
		scopes := branches[k]
		if len(scopes) == 0 {
			scopes = []string{""}
		}
		for _, branchID := range scopes {
			if err := p.RecomputeDay(ctx, restaurantID, branchID, days[k]); err != nil {
				return 0, err
			}
		}
	}
	return len(rows), nil
}

// unitCosts memoises per-portion cost: recipe cost, then cost_price, then 0.40 × unit price
type unitCosts struct {
	store    core.Store
	resolver *RecipeResolver
	cache    map[string]unitCost
}

type unitCost struct {
	known bool
	value decimal.Decimal
}

func newUnitCosts(store core.Store, resolver *RecipeResolver) *unitCosts {
	return &unitCosts{store: store, resolver: resolver, cache: make(map[string]unitCost)}
}

// of returns the cost of one portion and whether it is the price-based estimate
func (c *unitCosts) of(ctx context.Context, menuItemID string, unitPrice decimal.Decimal) (decimal.Decimal, bool, error) {
	uc, ok := c.cache[menuItemID]
	if !ok {
		cost, hasRecipe, err := c.resolver.CostOf(ctx, menuItemID, 1)
		if err != nil {
			return decimal.Zero, false, err
		}
		if hasRecipe {
			uc = unitCost{known: true, value: cost}
		} else {
			item, err := c.store.Catalog().GetMenuItem(ctx, menuItemID)
			if err != nil {
				return decimal.Zero, false, err
			}
			uc = unitCost{known: item.CostPrice.IsPositive(), value: item.CostPrice}
		}
		c.cache[menuItemID] = uc
	}
	if uc.known {
		return uc.value, false, nil
	}
	return unitPrice.Mul(fallbackCostRatio), true, nil
}
