package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"gorm.io/gorm/clause"
)

// ProfitRepository implementation

var aggregationKey = []clause.Column{{Name: "level"}, {Name: "date"}, {Name: "restaurant_id"}, {Name: "branch_id"}}

var performanceKey = []clause.Column{{Name: "date"}, {Name: "menu_item_id"}, {Name: "restaurant_id"}, {Name: "branch_id"}}

func (s *Store) aggregationFromModel(m *ProfitAggregationModel) *core.ProfitAggregation {
	return &core.ProfitAggregation{
		ProfitKey: core.ProfitKey{
			Level:        core.AggregationLevel(m.Level),
			Date:         s.day(m.Date),
			RestaurantID: m.RestaurantID,
			BranchID:     m.BranchID,
		},
		Revenue:            m.Revenue,
		CostOfGoods:        m.CostOfGoods,
		WasteCost:          m.WasteCost,
		NetProfit:          m.NetProfit,
		ProfitMargin:       m.ProfitMargin,
		OrderCount:         m.OrderCount,
		AverageOrderValue:  m.AverageOrderValue,
		WastePercentage:    m.WastePercentage,
		EstimatedCostItems: m.EstimatedCostItems,
		UpdatedAt:          m.UpdatedAt,
	}
}

func (s *Store) performanceFromModel(m *MenuItemPerformanceModel) *core.MenuItemPerformance {
	return &core.MenuItemPerformance{
		PerformanceKey: core.PerformanceKey{
			Date:         s.day(m.Date),
			MenuItemID:   m.MenuItemID,
			RestaurantID: m.RestaurantID,
			BranchID:     m.BranchID,
		},
		MenuItemName:   m.MenuItemName,
		QuantitySold:   m.QuantitySold,
		Revenue:        m.Revenue,
		IngredientCost: m.IngredientCost,
		LaborCostShare: m.LaborCostShare,
		TotalCost:      m.TotalCost,
		GrossProfit:    m.GrossProfit,
		NetProfit:      m.NetProfit,
		ProfitMargin:   m.ProfitMargin,
		Trend:          core.Trend(m.Trend),
		UpdatedAt:      m.UpdatedAt,
	}
}

// dateOnly strips the zone so DATE columns store the business day as written
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// UpsertAggregation inserts or replaces the row with the same key
func (r *profitRepository) UpsertAggregation(ctx context.Context, agg *core.ProfitAggregation) error {
	m := &ProfitAggregationModel{
		Level:              string(agg.Level),
		Date:               dateOnly(agg.Date),
		RestaurantID:       agg.RestaurantID,
		BranchID:           agg.BranchID,
		Revenue:            agg.Revenue,
		CostOfGoods:        agg.CostOfGoods,
		WasteCost:          agg.WasteCost,
		NetProfit:          agg.NetProfit,
		ProfitMargin:       agg.ProfitMargin,
		OrderCount:         agg.OrderCount,
		AverageOrderValue:  agg.AverageOrderValue,
		WastePercentage:    agg.WastePercentage,
		EstimatedCostItems: agg.EstimatedCostItems,
		UpdatedAt:          agg.UpdatedAt,
	}
	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   aggregationKey,
		UpdateAll: true,
	}).Create(m).Error
	if err != nil {
		return fmt.Errorf("failed to upsert profit aggregation: %w", err)
	}
	return nil
}

func (r *profitRepository) GetAggregation(ctx context.Context, key core.ProfitKey) (*core.ProfitAggregation, error) {
	var m ProfitAggregationModel
	err := r.conn(ctx).
		Where("level = ? AND date = ? AND restaurant_id = ? AND branch_id = ?",
			string(key.Level), dateParam(key.Date), key.RestaurantID, key.BranchID).
		First(&m).Error
	if err != nil {
		return nil, translate(err, "profit_aggregation", dateParam(key.Date))
	}
	return r.aggregationFromModel(&m), nil
}

// ListAggregations returns rows of one level and scope with date in [from, to]
func (r *profitRepository) ListAggregations(ctx context.Context, level core.AggregationLevel, restaurantID, branchID string, from, to time.Time) ([]*core.ProfitAggregation, error) {
	var models []ProfitAggregationModel
	if err := r.conn(ctx).
		Where("level = ? AND restaurant_id = ? AND branch_id = ?", string(level), restaurantID, branchID).
		Where("date BETWEEN ? AND ?", dateParam(from), dateParam(to)).
		Order("date").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list profit aggregations: %w", err)
	}
	rows := make([]*core.ProfitAggregation, len(models))
	for i := range models {
		rows[i] = r.aggregationFromModel(&models[i])
	}
	return rows, nil
}

func (r *profitRepository) UpsertPerformance(ctx context.Context, p *core.MenuItemPerformance) error {
	m := &MenuItemPerformanceModel{
		Date:           dateOnly(p.Date),
		MenuItemID:     p.MenuItemID,
		RestaurantID:   p.RestaurantID,
		BranchID:       p.BranchID,
		MenuItemName:   p.MenuItemName,
		QuantitySold:   p.QuantitySold,
		Revenue:        p.Revenue,
		IngredientCost: p.IngredientCost,
		LaborCostShare: p.LaborCostShare,
		TotalCost:      p.TotalCost,
		GrossProfit:    p.GrossProfit,
		NetProfit:      p.NetProfit,
		ProfitMargin:   p.ProfitMargin,
		Trend:          string(p.Trend),
		UpdatedAt:      p.UpdatedAt,
	}
	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   performanceKey,
		UpdateAll: true,
	}).Create(m).Error
	if err != nil {
		return fmt.Errorf("failed to upsert menu item performance: %w", err)
	}
	return nil
}

func (r *profitRepository) GetPerformance(ctx context.Context, key core.PerformanceKey) (*core.MenuItemPerformance, error) {
	var m MenuItemPerformanceModel
	err := r.conn(ctx).
		Where("date = ? AND menu_item_id = ? AND restaurant_id = ? AND branch_id = ?",
			dateParam(key.Date), key.MenuItemID, key.RestaurantID, key.BranchID).
		First(&m).Error
	if err != nil {
		return nil, translate(err, "menu_item_performance", key.MenuItemID)
	}
	return r.performanceFromModel(&m), nil
}

// ListPerformance returns rows ordered by date then menu item name
func (r *profitRepository) ListPerformance(ctx context.Context, f core.PerformanceFilter) ([]*core.MenuItemPerformance, error) {
	query := r.conn(ctx).Model(&MenuItemPerformanceModel{}).Where("restaurant_id = ?", f.RestaurantID)
	if !f.AllBranches {
		query = query.Where("branch_id = ?", f.BranchID)
	}
	if f.MenuItemID != "" {
		query = query.Where("menu_item_id = ?", f.MenuItemID)
	}
	if !f.From.IsZero() {
		query = query.Where("date >= ?", dateParam(f.From))
	}
	if !f.To.IsZero() {
		query = query.Where("date <= ?", dateParam(f.To))
	}

	var models []MenuItemPerformanceModel
	if err := query.Order("date, menu_item_name").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list menu item performance: %w", err)
	}
	rows := make([]*core.MenuItemPerformance, len(models))
	for i := range models {
		rows[i] = r.performanceFromModel(&models[i])
	}
	return rows, nil
}
