package service

import (
	"context"
	"fmt"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/shopspring/decimal"
)

// ResolvedIngredient is one stock requirement of a menu item for a given quantity
type ResolvedIngredient struct {
	StockItemID      string          `json:"stock_item_id"`
	Name             string          `json:"name"`
	Unit             core.Unit       `json:"unit"`
	AdjustedQuantity decimal.Decimal `json:"adjusted_quantity"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	Cost             decimal.Decimal `json:"cost"`
}

// RecipeResolver turns menu items into stock requirements
type RecipeResolver struct {
	catalog core.CatalogRepository
}

// NewRecipeResolver creates a new recipe resolver
func NewRecipeResolver(catalog core.CatalogRepository) *RecipeResolver {
	return &RecipeResolver{catalog: catalog}
}

// Resolve returns the stock needed for quantity portions of a menu item.
// Items without a recipe resolve to an empty list.
func (r *RecipeResolver) Resolve(ctx context.Context, menuItemID string, quantity int) ([]ResolvedIngredient, error) {
	lines, err := r.catalog.GetRecipeOf(ctx, menuItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}

	stock := make(map[string]*core.StockItem, len(lines))
	for _, line := range lines {
		if _, ok := stock[line.StockItemID]; ok {
			continue
		}
		item, err := r.catalog.GetStockItem(ctx, line.StockItemID)
		if err != nil {
			return nil, err
		}
		stock[line.StockItemID] = item
	}
	return ResolveLines(lines, stock, quantity), nil
}

// ResolveLines is the pure part of Resolve: it applies waste factors and unit costs
// from a catalog snapshot. Lines whose stock item is missing from the snapshot are skipped.
func ResolveLines(lines []core.RecipeLine, stock map[string]*core.StockItem, quantity int) []ResolvedIngredient {
	qty := decimal.NewFromInt(int64(quantity))
	out := make([]ResolvedIngredient, 0, len(lines))
	for _, line := range lines {
		item, ok := stock[line.StockItemID]
		if !ok {
			continue
		}
		adjusted := line.AdjustedQuantity().Mul(qty)
		out = append(out, ResolvedIngredient{
			StockItemID:      item.ID,
			Name:             item.Name,
			Unit:             item.Unit,
			AdjustedQuantity: adjusted,
			UnitCost:         item.CostPerUnit,
			Cost:             adjusted.Mul(item.CostPerUnit),
		})
	}
	return out
}

// CostOf returns the ingredient cost of quantity portions and whether the item has a recipe
func (r *RecipeResolver) CostOf(ctx context.Context, menuItemID string, quantity int) (decimal.Decimal, bool, error) {
	ingredients, err := r.Resolve(ctx, menuItemID, quantity)
	if err != nil {
		return decimal.Zero, false, err
	}
	total := decimal.Zero
	for _, ing := range ingredients {
		total = total.Add(ing.Cost)
	}
	return total, len(ingredients) > 0, nil
}
