package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/seed"
	"gorm.io/gorm/clause"
)

// Seed upserts a catalog dataset. Existing rows keep their ids and are overwritten.
func (s *Store) Seed(ctx context.Context, ds seed.Dataset) error {
	return s.Atomic(ctx, func(ctx context.Context) error {
		db := s.conn(ctx).Clauses(clause.OnConflict{UpdateAll: true})

		for i := range ds.Restaurants {
			if err := db.Create(RestaurantModelFromDomain(&ds.Restaurants[i])).Error; err != nil {
				return fmt.Errorf("failed to seed restaurant: %w", err)
			}
		}
		for _, b := range ds.Branches {
			m := BranchModel{ID: b.ID, RestaurantID: b.RestaurantID, Name: b.Name}
			if err := db.Create(&m).Error; err != nil {
				return fmt.Errorf("failed to seed branch: %w", err)
			}
		}
		for _, t := range ds.Tables {
			m := TableModel{ID: t.ID, RestaurantID: t.RestaurantID, BranchID: t.BranchID, Number: t.Number, Status: string(t.Status)}
			if err := db.Create(&m).Error; err != nil {
				return fmt.Errorf("failed to seed table: %w", err)
			}
		}
		for _, c := range ds.Categories {
			m := CategoryModel{ID: c.ID, RestaurantID: c.RestaurantID, Name: c.Name, OrderIndex: c.OrderIndex, IsActive: c.IsActive}
			if err := db.Create(&m).Error; err != nil {
				return fmt.Errorf("failed to seed category: %w", err)
			}
		}
		for _, item := range ds.MenuItems {
			m := MenuItemModel{
				ID:                 item.ID,
				RestaurantID:       item.RestaurantID,
				CategoryID:         item.CategoryID,
				Name:               item.Name,
				Price:              item.Price,
				CostPrice:          item.CostPrice,
				IsAvailable:        item.IsAvailable,
				PreparationMinutes: item.PreparationMinutes,
				SoldCount:          item.SoldCount,
			}
			if err := db.Create(&m).Error; err != nil {
				return fmt.Errorf("failed to seed menu item %s: %w", item.Name, err)
			}
		}
		for _, item := range ds.StockItems {
			m := StockItemModel{
				ID:              item.ID,
				RestaurantID:    item.RestaurantID,
				BranchID:        item.BranchID,
				Name:            item.Name,
				Unit:            string(item.Unit),
				CurrentQuantity: item.CurrentQuantity,
				MinimumQuantity: item.MinimumQuantity,
				ReorderQuantity: item.ReorderQuantity,
				CostPerUnit:     item.CostPerUnit,
				UpdatedAt:       time.Now(),
			}
			if err := db.Create(&m).Error; err != nil {
				return fmt.Errorf("failed to seed stock item %s: %w", item.Name, err)
			}
		}
		for menuItemID, lines := range ds.Recipes {
			if err := s.catalog.ReplaceRecipe(ctx, menuItemID, lines); err != nil {
				return fmt.Errorf("failed to seed recipe: %w", err)
			}
		}
		for _, c := range ds.WasteCategories {
			m := WasteCategoryModel{ID: c.ID, RestaurantID: c.RestaurantID, Name: c.Name, RequiresApproval: c.RequiresApproval}
			if err := db.Create(&m).Error; err != nil {
				return fmt.Errorf("failed to seed waste category: %w", err)
			}
		}
		for _, r := range ds.WasteReasons {
			m := WasteReasonModel{
				ID:                  r.ID,
				RestaurantID:        r.RestaurantID,
				CategoryID:          r.CategoryID,
				Name:                r.Name,
				RequiresExplanation: r.RequiresExplanation,
				RequiresPhoto:       r.RequiresPhoto,
				IsActive:            r.IsActive,
			}
			if err := db.Create(&m).Error; err != nil {
				return fmt.Errorf("failed to seed waste reason: %w", err)
			}
		}
		return nil
	})
}
