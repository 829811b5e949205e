package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/shopspring/decimal"
)

var (
	targetMarkup    = decimal.RequireFromString("1.67")
	suggestionFloor = decimal.RequireFromString("0.9")
)

// GetDailyProfit returns the daily row for day. A day without activity reads as zeros.
func (p *ProfitAggregator) GetDailyProfit(ctx context.Context, restaurantID, branchID string, day time.Time) (*core.ProfitAggregation, error) {
	key := core.ProfitKey{Level: core.LevelDaily, Date: core.Day(day, p.loc), RestaurantID: restaurantID, BranchID: branchID}
	agg, err := p.store.Profit().GetAggregation(ctx, key)
	if core.KindOf(err) == core.KindNotFound {
		return &core.ProfitAggregation{
			ProfitKey:         key,
			Revenue:           decimal.Zero,
			CostOfGoods:       decimal.Zero,
			WasteCost:         decimal.Zero,
			NetProfit:         decimal.Zero,
			ProfitMargin:      decimal.Zero,
			AverageOrderValue: decimal.Zero,
			WastePercentage:   decimal.Zero,
		}, nil
	}
	return agg, err
}

// GetProfitTrend returns days daily points ending at end, zero-filled, and compares the
// profit of the later half with the earlier half.
func (p *ProfitAggregator) GetProfitTrend(ctx context.Context, restaurantID, branchID string, days int, end time.Time) (*core.ProfitTrend, error) {
	if days < 2 {
		return nil, core.Validation("days", "a trend needs at least 2 days")
	}
	last := core.Day(end, p.loc)
	first := last.AddDate(0, 0, -(days - 1))
	rows, err := p.store.Profit().ListAggregations(ctx, core.LevelDaily, restaurantID, branchID, first, last)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily profit: %w", err)
	}
	byDay := make(map[string]*core.ProfitAggregation, len(rows))
	for _, r := range rows {
		byDay[r.Date.Format("2006-01-02")] = r
	}

	trend := &core.ProfitTrend{
		Days:          make([]core.DailyProfitPoint, 0, days),
		EarlierProfit: decimal.Zero,
		LaterProfit:   decimal.Zero,
	}
	half := days / 2
	for i := 0; i < days; i++ {
		day := first.AddDate(0, 0, i)
		point := core.DailyProfitPoint{
			Date:        day,
			Revenue:     decimal.Zero,
			CostOfGoods: decimal.Zero,
			WasteCost:   decimal.Zero,
			NetProfit:   decimal.Zero,
		}
		if r, ok := byDay[day.Format("2006-01-02")]; ok {
			point.Revenue = r.Revenue
			point.CostOfGoods = r.CostOfGoods
			point.WasteCost = r.WasteCost
			point.NetProfit = r.NetProfit
			point.OrderCount = r.OrderCount
		}
		if i < half {
			trend.EarlierProfit = trend.EarlierProfit.Add(point.NetProfit)
		} else {
			trend.LaterProfit = trend.LaterProfit.Add(point.NetProfit)
		}
		trend.Days = append(trend.Days, point)
	}

	switch trend.LaterProfit.Cmp(trend.EarlierProfit) {
	case 1:
		trend.Direction = core.TrendUp
	case -1:
		trend.Direction = core.TrendDown
	default:
		trend.Direction = core.TrendStable
	}
	change := trend.LaterProfit.Sub(trend.EarlierProfit).Abs()
	trend.TrendPercentage = core.Percent(change, trend.EarlierProfit.Abs())
	return trend, nil
}

// GetMenuItemPerformance returns performance rows matching filter, oldest first
func (p *ProfitAggregator) GetMenuItemPerformance(ctx context.Context, filter core.PerformanceFilter) ([]*core.MenuItemPerformance, error) {
	if filter.RestaurantID == "" {
		return nil, core.Validation("restaurant_id", "restaurant is required")
	}
	return p.store.Profit().ListPerformance(ctx, filter)
}

// ListProfitAlerts returns profit alerts raised between from and to
func (p *ProfitAggregator) ListProfitAlerts(ctx context.Context, restaurantID string, from, to time.Time) ([]*core.ProfitAlert, error) {
	return p.store.Alerts().ListProfitAlerts(ctx, restaurantID, core.Day(from, p.loc), core.Day(to, p.loc))
}

type itemSummary struct {
	menuItemID string
	name       string
	qty        int
	revenue    decimal.Decimal
	net        decimal.Decimal
	marginSum  decimal.Decimal
	rows       int
}

func (s *itemSummary) averageMargin() decimal.Decimal {
	return core.Round2(s.marginSum.Div(decimal.NewFromInt(int64(s.rows))))
}

// ListProfitIssues analyses the performance rows of the last days ending at end
func (p *ProfitAggregator) ListProfitIssues(ctx context.Context, restaurantID, branchID string, days int, end time.Time) (*core.ProfitIssues, error) {
	if days < 1 {
		return nil, core.Validation("days", "days must be at least 1")
	}
	last := core.Day(end, p.loc)
	rows, err := p.store.Profit().ListPerformance(ctx, core.PerformanceFilter{
		RestaurantID: restaurantID,
		BranchID:     branchID,
		From:         last.AddDate(0, 0, -(days - 1)),
		To:           last,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list menu item performance: %w", err)
	}

	summaries := make(map[string]*itemSummary)
	for _, r := range rows {
		s, ok := summaries[r.MenuItemID]
		if !ok {
			s = &itemSummary{menuItemID: r.MenuItemID, name: r.MenuItemName, revenue: decimal.Zero, net: decimal.Zero, marginSum: decimal.Zero}
			summaries[r.MenuItemID] = s
		}
		s.qty += r.QuantitySold
		s.revenue = s.revenue.Add(r.Revenue)
		s.net = s.net.Add(r.NetProfit)
		s.marginSum = s.marginSum.Add(r.ProfitMargin)
		s.rows++
	}

	issues := &core.ProfitIssues{
		LossMakers:       []core.ItemProfitIssue{},
		LowMarginItems:   []core.ItemProfitIssue{},
		PriceSuggestions: []core.ItemProfitIssue{},
	}
	costs := newUnitCosts(p.store, p.resolver)
	for _, s := range summaries {
		avg := s.averageMargin()
		base := core.ItemProfitIssue{
			MenuItemID:    s.menuItemID,
			MenuItemName:  s.name,
			AverageMargin: avg,
			QuantitySold:  s.qty,
			Revenue:       s.revenue,
			NetProfit:     s.net,
		}
		switch {
		case avg.IsNegative():
			issue := base
			issue.RevenueImpact = s.net
			issues.LossMakers = append(issues.LossMakers, issue)
		case avg.LessThan(lowMarginThreshold):
			issue := base
			issue.RevenueImpact = core.Round2(s.revenue.Mul(lowMarginThreshold.Sub(avg)).Div(decimal.NewFromInt(100)))
			issues.LowMarginItems = append(issues.LowMarginItems, issue)
		}

		item, err := p.store.Catalog().GetMenuItem(ctx, s.menuItemID)
		if err != nil {
			if core.KindOf(err) == core.KindNotFound {
				continue
			}
			return nil, err
		}
		cost, estimated, err := costs.of(ctx, item.ID, item.Price)
		if err != nil {
			return nil, err
		}
		if estimated {
			continue
		}
		target := core.Round2(cost.Mul(targetMarkup))
		if item.Price.LessThan(target.Mul(suggestionFloor)) {
			issue := base
			issue.CurrentPrice = item.Price
			issue.CostPrice = core.Round2(cost)
			issue.SuggestedPrice = target
			issue.RevenueImpact = core.Round2(target.Sub(item.Price).Mul(decimal.NewFromInt(int64(s.qty))))
			issues.PriceSuggestions = append(issues.PriceSuggestions, issue)
		}
	}

	byMargin := func(list []core.ItemProfitIssue) func(i, j int) bool {
		return func(i, j int) bool {
			if c := list[i].AverageMargin.Cmp(list[j].AverageMargin); c != 0 {
				return c < 0
			}
			return byImpactThenName(list[i], list[j])
		}
	}
	sort.Slice(issues.LossMakers, byMargin(issues.LossMakers))
	sort.Slice(issues.LowMarginItems, byMargin(issues.LowMarginItems))
	sort.Slice(issues.PriceSuggestions, func(i, j int) bool {
		return byImpactThenName(issues.PriceSuggestions[i], issues.PriceSuggestions[j])
	})
	return issues, nil
}

// byImpactThenName orders by descending |revenue impact|, then name
func byImpactThenName(a, b core.ItemProfitIssue) bool {
	if c := a.RevenueImpact.Abs().Cmp(b.RevenueImpact.Abs()); c != 0 {
		return c > 0
	}
	return a.MenuItemName < b.MenuItemName
}
