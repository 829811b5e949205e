package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/dumu-tech/restaurant-ops/internal/events"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService is the read side of the catalog plus the entry points external
// CRUD uses to announce price and recipe changes.
type CatalogService struct {
	store    core.Store
	resolver *RecipeResolver
	bus      *events.EventBus
	logger   *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store core.Store, resolver *RecipeResolver, bus *events.EventBus, logger *zap.Logger) *CatalogService {
	return &CatalogService{store: store, resolver: resolver, bus: bus, logger: logger}
}

// Register subscribes cost-price maintenance to recipe changes
func (s *CatalogService) Register(bus *events.EventBus) {
	bus.On(events.EventRecipeChanged, "catalog.refresh_cost_price", s.handleRecipeChanged)
}

func (s *CatalogService) GetMenuItem(ctx context.Context, id string) (*core.MenuItem, error) {
	return s.store.Catalog().GetMenuItem(ctx, id)
}

func (s *CatalogService) GetRecipeOf(ctx context.Context, menuItemID string) ([]core.RecipeLine, error) {
	return s.store.Catalog().GetRecipeOf(ctx, menuItemID)
}

func (s *CatalogService) GetStockItem(ctx context.Context, id string) (*core.StockItem, error) {
	return s.store.Catalog().GetStockItem(ctx, id)
}

// ListRestaurantMenu returns active categories ordered by (order_index, name), each with
// its items ordered by name. Unavailable items are dropped unless includeUnavailable is set.
func (s *CatalogService) ListRestaurantMenu(ctx context.Context, restaurantID string, includeUnavailable bool) ([]core.MenuSection, error) {
	if _, err := s.store.Catalog().GetRestaurant(ctx, restaurantID); err != nil {
		return nil, err
	}
	categories, err := s.store.Catalog().ListCategories(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	items, err := s.store.Catalog().ListMenuItems(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu items: %w", err)
	}

	byCategory := make(map[string][]*core.MenuItem)
	for _, item := range items {
		if !item.IsAvailable && !includeUnavailable {
			continue
		}
		byCategory[item.CategoryID] = append(byCategory[item.CategoryID], item)
	}

	sort.Slice(categories, func(i, j int) bool {
		if categories[i].OrderIndex != categories[j].OrderIndex {
			return categories[i].OrderIndex < categories[j].OrderIndex
		}
		return categories[i].Name < categories[j].Name
	})

	sections := make([]core.MenuSection, 0, len(categories))
	for _, c := range categories {
		if !c.IsActive {
			continue
		}
		list := byCategory[c.ID]
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
		if list == nil {
			list = []*core.MenuItem{}
		}
		sections = append(sections, core.MenuSection{Category: *c, Items: list})
	}
	return sections, nil
}

// ChangePrice stores a new sale price and announces it. Existing order items keep their snapshots.
func (s *CatalogService) ChangePrice(ctx context.Context, actor core.Actor, menuItemID string, price decimal.Decimal) (*core.MenuItem, error) {
	if price.IsNegative() {
		return nil, core.Validation("price", "price cannot be negative")
	}

	var before, after *core.MenuItem
	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		var err error
		before, err = s.store.Catalog().GetMenuItem(ctx, menuItemID)
		if err != nil {
			return err
		}
		if err := s.store.Catalog().UpdateMenuItemPrice(ctx, menuItemID, price); err != nil {
			return fmt.Errorf("failed to update price: %w", err)
		}
		after, err = s.store.Catalog().GetMenuItem(ctx, menuItemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if before.Price.Equal(price) {
		return after, nil
	}

	s.logger.Info("menu price changed",
		zap.String("menu_item_id", menuItemID),
		zap.String("old_price", before.Price.String()),
		zap.String("new_price", price.String()),
		zap.String("actor", actor.UserID))
	if err := s.bus.Publish(ctx, events.Event{
		Type:        events.EventPriceChanged,
		AggregateID: menuItemID,
		Data: events.PriceChanged{
			MenuItemID:   menuItemID,
			RestaurantID: before.RestaurantID,
			OldPrice:     before.Price,
			NewPrice:     price,
		},
	}); err != nil {
		s.logger.Warn("price change handlers failed", zap.String("menu_item_id", menuItemID), zap.Error(err))
	}
	return after, nil
}

// ChangeRecipe replaces a menu item's recipe and announces it
func (s *CatalogService) ChangeRecipe(ctx context.Context, actor core.Actor, menuItemID string, lines []core.RecipeLine) ([]core.RecipeLine, error) {
	item, err := s.store.Catalog().GetMenuItem(ctx, menuItemID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(lines))
	for i := range lines {
		line := &lines[i]
		line.MenuItemID = menuItemID
		if !line.QuantityRequired.IsPositive() {
			return nil, core.Validation("quantity_required", "recipe quantities must be greater than zero")
		}
		if line.WasteFactor.IsNegative() || line.WasteFactor.GreaterThan(decimal.NewFromInt(100)) {
			return nil, core.Validation("waste_factor", "waste factor must be between 0 and 100")
		}
		if seen[line.StockItemID] {
			return nil, core.Validation("stock_item_id", "a stock item may appear once per recipe")
		}
		seen[line.StockItemID] = true
		stock, err := s.store.Catalog().GetStockItem(ctx, line.StockItemID)
		if err != nil {
			return nil, err
		}
		if stock.RestaurantID != item.RestaurantID {
			return nil, core.Validation("stock_item_id", "stock item belongs to another restaurant")
		}
	}

	if err := s.store.Atomic(ctx, func(ctx context.Context) error {
		return s.store.Catalog().ReplaceRecipe(ctx, menuItemID, lines)
	}); err != nil {
		return nil, fmt.Errorf("failed to replace recipe: %w", err)
	}

	s.logger.Info("recipe changed",
		zap.String("menu_item_id", menuItemID),
		zap.Int("lines", len(lines)),
		zap.String("actor", actor.UserID))
	if err := s.bus.Publish(ctx, events.Event{
		Type:        events.EventRecipeChanged,
		AggregateID: menuItemID,
		Data:        events.RecipeChanged{MenuItemID: menuItemID, RestaurantID: item.RestaurantID},
	}); err != nil {
		s.logger.Warn("recipe change handlers failed", zap.String("menu_item_id", menuItemID), zap.Error(err))
	}
	return lines, nil
}

// RefreshCostPrice sets cost_price to the recipe-derived cost. Items without a recipe keep theirs.
func (s *CatalogService) RefreshCostPrice(ctx context.Context, menuItemID string) error {
	cost, hasRecipe, err := s.resolver.CostOf(ctx, menuItemID, 1)
	if err != nil {
		return err
	}
	if !hasRecipe {
		return nil
	}
	return s.store.Atomic(ctx, func(ctx context.Context) error {
		return s.store.Catalog().UpdateMenuItemCost(ctx, menuItemID, core.Round2(cost))
	})
}

func (s *CatalogService) handleRecipeChanged(ctx context.Context, evt events.Event) error {
	payload, ok := evt.Data.(events.RecipeChanged)
	if !ok {
		return fmt.Errorf("unexpected payload %T", evt.Data)
	}
	return s.RefreshCostPrice(ctx, payload.MenuItemID)
}
