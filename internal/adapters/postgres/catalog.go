package postgres

import (
	"context"
	"fmt"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CatalogRepository implementation

// GetRestaurant retrieves a restaurant by its ID
func (r *catalogRepository) GetRestaurant(ctx context.Context, id string) (*core.Restaurant, error) {
	var m RestaurantModel
	if err := r.conn(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err, "restaurant", id)
	}
	return m.ToDomain(), nil
}

func (r *catalogRepository) GetBranch(ctx context.Context, id string) (*core.Branch, error) {
	var m BranchModel
	if err := r.conn(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err, "branch", id)
	}
	return &core.Branch{ID: m.ID, RestaurantID: m.RestaurantID, Name: m.Name}, nil
}

// ListBranches returns a restaurant's branches ordered by name
func (r *catalogRepository) ListBranches(ctx context.Context, restaurantID string) ([]*core.Branch, error) {
	var models []BranchModel
	if err := r.conn(ctx).Where("restaurant_id = ?", restaurantID).Order("name ASC, id ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	out := make([]*core.Branch, 0, len(models))
	for _, m := range models {
		out = append(out, &core.Branch{ID: m.ID, RestaurantID: m.RestaurantID, Name: m.Name})
	}
	return out, nil
}

func (r *catalogRepository) GetTable(ctx context.Context, id string) (*core.Table, error) {
	var m TableModel
	if err := r.conn(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err, "table", id)
	}
	return &core.Table{
		ID:           m.ID,
		RestaurantID: m.RestaurantID,
		BranchID:     m.BranchID,
		Number:       m.Number,
		Status:       core.TableStatus(m.Status),
	}, nil
}

func (r *catalogRepository) UpdateTableStatus(ctx context.Context, id string, status core.TableStatus) error {
	result := r.conn(ctx).Model(&TableModel{}).Where("id = ?", id).Update("status", string(status))
	return requireRow(result, "table", id)
}

// GetMenuItem retrieves a menu item by its ID
func (r *catalogRepository) GetMenuItem(ctx context.Context, id string) (*core.MenuItem, error) {
	var m MenuItemModel
	if err := r.conn(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err, "menu_item", id)
	}
	return m.ToDomain(), nil
}

// ListCategories returns a restaurant's categories in menu order
func (r *catalogRepository) ListCategories(ctx context.Context, restaurantID string) ([]*core.Category, error) {
	var models []CategoryModel
	if err := r.conn(ctx).
		Where("restaurant_id = ?", restaurantID).
		Order("order_index, name").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	categories := make([]*core.Category, len(models))
	for i, m := range models {
		categories[i] = &core.Category{
			ID:           m.ID,
			RestaurantID: m.RestaurantID,
			Name:         m.Name,
			OrderIndex:   m.OrderIndex,
			IsActive:     m.IsActive,
		}
	}
	return categories, nil
}

func (r *catalogRepository) ListMenuItems(ctx context.Context, restaurantID string) ([]*core.MenuItem, error) {
	var models []MenuItemModel
	if err := r.conn(ctx).
		Where("restaurant_id = ?", restaurantID).
		Order("name").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list menu items: %w", err)
	}

	items := make([]*core.MenuItem, len(models))
	for i := range models {
		items[i] = models[i].ToDomain()
	}
	return items, nil
}

// UpdateMenuItemPrice updates the selling price of a menu item
func (r *catalogRepository) UpdateMenuItemPrice(ctx context.Context, id string, price decimal.Decimal) error {
	result := r.conn(ctx).Model(&MenuItemModel{}).Where("id = ?", id).Update("price", price)
	return requireRow(result, "menu_item", id)
}

func (r *catalogRepository) UpdateMenuItemCost(ctx context.Context, id string, cost decimal.Decimal) error {
	result := r.conn(ctx).Model(&MenuItemModel{}).Where("id = ?", id).Update("cost_price", cost)
	return requireRow(result, "menu_item", id)
}

func (r *catalogRepository) IncrementSoldCount(ctx context.Context, id string, quantity int) error {
	result := r.conn(ctx).Model(&MenuItemModel{}).
		Where("id = ?", id).
		Update("sold_count", gorm.Expr("sold_count + ?", quantity))
	return requireRow(result, "menu_item", id)
}

func (r *catalogRepository) GetRecipeOf(ctx context.Context, menuItemID string) ([]core.RecipeLine, error) {
	var models []RecipeLineModel
	if err := r.conn(ctx).
		Where("menu_item_id = ?", menuItemID).
		Order("stock_item_id").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}

	lines := make([]core.RecipeLine, len(models))
	for i, m := range models {
		lines[i] = core.RecipeLine{
			MenuItemID:       m.MenuItemID,
			StockItemID:      m.StockItemID,
			QuantityRequired: m.QuantityRequired,
			WasteFactor:      m.WasteFactor,
		}
	}
	return lines, nil
}

// ReplaceRecipe swaps the whole recipe of a menu item
func (r *catalogRepository) ReplaceRecipe(ctx context.Context, menuItemID string, lines []core.RecipeLine) error {
	return r.Atomic(ctx, func(ctx context.Context) error {
		if _, err := r.GetMenuItem(ctx, menuItemID); err != nil {
			return err
		}
		db := r.conn(ctx)
		if err := db.Where("menu_item_id = ?", menuItemID).Delete(&RecipeLineModel{}).Error; err != nil {
			return fmt.Errorf("failed to clear recipe: %w", err)
		}
		if len(lines) == 0 {
			return nil
		}
		models := make([]RecipeLineModel, len(lines))
		for i, l := range lines {
			models[i] = RecipeLineModel{
				MenuItemID:       menuItemID,
				StockItemID:      l.StockItemID,
				QuantityRequired: l.QuantityRequired,
				WasteFactor:      l.WasteFactor,
			}
		}
		if err := db.Create(&models).Error; err != nil {
			return translate(err, "recipe_line", menuItemID)
		}
		return nil
	})
}

func (r *catalogRepository) GetStockItem(ctx context.Context, id string) (*core.StockItem, error) {
	var m StockItemModel
	if err := r.conn(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err, "stock_item", id)
	}
	return m.ToDomain(), nil
}

func (r *catalogRepository) GetWasteReason(ctx context.Context, id string) (*core.WasteReason, error) {
	var m WasteReasonModel
	if err := r.conn(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err, "waste_reason", id)
	}
	return &core.WasteReason{
		ID:                  m.ID,
		RestaurantID:        m.RestaurantID,
		CategoryID:          m.CategoryID,
		Name:                m.Name,
		RequiresExplanation: m.RequiresExplanation,
		RequiresPhoto:       m.RequiresPhoto,
		IsActive:            m.IsActive,
	}, nil
}

func (r *catalogRepository) GetWasteCategory(ctx context.Context, id string) (*core.WasteCategory, error) {
	var m WasteCategoryModel
	if err := r.conn(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err, "waste_category", id)
	}
	return &core.WasteCategory{
		ID:               m.ID,
		RestaurantID:     m.RestaurantID,
		Name:             m.Name,
		RequiresApproval: m.RequiresApproval,
	}, nil
}
