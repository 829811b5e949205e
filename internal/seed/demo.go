// Package seed holds the demo catalog used by the seeder and the in-memory store.
package seed

import (
	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/shopspring/decimal"
)

// Fixed ids so that demo data and tokens survive reseeding
const (
	RestaurantID = "6f1c2a7e-1d0b-4c55-9a41-0e2d7c1b5a01"
	BranchID     = "6f1c2a7e-1d0b-4c55-9a41-0e2d7c1b5b01"
	TableT1ID    = "6f1c2a7e-1d0b-4c55-9a41-0e2d7c1b5c01"
	TableT2ID    = "6f1c2a7e-1d0b-4c55-9a41-0e2d7c1b5c02"

	CategoryMainsID  = "6f1c2a7e-1d0b-4c55-9a41-0e2d7c1b5d01"
	CategoryDrinksID = "6f1c2a7e-1d0b-4c55-9a41-0e2d7c1b5d02"

	DoroWatID = "6f1c2a7e-1d0b-4c55-9a41-0e2d7c1b5e01"
	CoffeeID  = "6f1c2a7e-1d0b-4c55-9a41-0e2d7c1b5e02"
	TibsID    = "6f1c2a7e-1d0b-4c55-9a41-0e2d7c1b5e03"

	ChickenID = "6f1c2a7e-1d0b-4c55-9a41-0e2d7c1b5f01"
	OnionsID  = "6f1c2a7e-1d0b-4c55-9a41-0e2d7c1b5f02"
	CheeseID  = "6f1c2a7e-1d0b-4c55-9a41-0e2d7c1b5f03"
	BeefID    = "6f1c2a7e-1d0b-4c55-9a41-0e2d7c1b5f04"

	SpoilageCategoryID = "6f1c2a7e-1d0b-4c55-9a41-0e2d7c1b6a01"
	HandlingCategoryID = "6f1c2a7e-1d0b-4c55-9a41-0e2d7c1b6a02"
	SpoilageReasonID   = "6f1c2a7e-1d0b-4c55-9a41-0e2d7c1b6b01"
	DroppedReasonID    = "6f1c2a7e-1d0b-4c55-9a41-0e2d7c1b6b02"
	TheftReasonID      = "6f1c2a7e-1d0b-4c55-9a41-0e2d7c1b6b03"
)

// Dataset is a complete catalog for one restaurant
type Dataset struct {
	Restaurants     []core.Restaurant
	Branches        []core.Branch
	Tables          []core.Table
	Categories      []core.Category
	MenuItems       []core.MenuItem
	StockItems      []core.StockItem
	Recipes         map[string][]core.RecipeLine
	WasteCategories []core.WasteCategory
	WasteReasons    []core.WasteReason
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Demo returns the demo restaurant R1 with branch B1
func Demo() Dataset {
	return Dataset{
		Restaurants: []core.Restaurant{
			{ID: RestaurantID, Name: "R1", Timezone: "Africa/Addis_Ababa"},
		},
		Branches: []core.Branch{
			{ID: BranchID, RestaurantID: RestaurantID, Name: "B1"},
		},
		Tables: []core.Table{
			{ID: TableT1ID, RestaurantID: RestaurantID, BranchID: BranchID, Number: "T1", Status: core.TableAvailable},
			{ID: TableT2ID, RestaurantID: RestaurantID, BranchID: BranchID, Number: "T2", Status: core.TableAvailable},
		},
		Categories: []core.Category{
			{ID: CategoryMainsID, RestaurantID: RestaurantID, Name: "Mains", OrderIndex: 1, IsActive: true},
			{ID: CategoryDrinksID, RestaurantID: RestaurantID, Name: "Drinks", OrderIndex: 2, IsActive: true},
		},
		MenuItems: []core.MenuItem{
			{ID: DoroWatID, RestaurantID: RestaurantID, CategoryID: CategoryMainsID, Name: "Doro Wat",
				Price: d("250.00"), CostPrice: d("6.59"), IsAvailable: true, PreparationMinutes: 25},
			{ID: TibsID, RestaurantID: RestaurantID, CategoryID: CategoryMainsID, Name: "Tibs",
				Price: d("220.00"), CostPrice: d("52.50"), IsAvailable: true, PreparationMinutes: 15},
			{ID: CoffeeID, RestaurantID: RestaurantID, CategoryID: CategoryDrinksID, Name: "Coffee",
				Price: d("40.00"), CostPrice: d("12.00"), IsAvailable: true, PreparationMinutes: 5},
		},
		StockItems: []core.StockItem{
			{ID: ChickenID, RestaurantID: RestaurantID, BranchID: BranchID, Name: "Chicken", Unit: core.UnitKilogram,
				CurrentQuantity: d("10"), MinimumQuantity: d("2"), ReorderQuantity: d("10"), CostPerUnit: d("22.50")},
			{ID: OnionsID, RestaurantID: RestaurantID, BranchID: BranchID, Name: "Onions", Unit: core.UnitKilogram,
				CurrentQuantity: d("5"), MinimumQuantity: d("1"), ReorderQuantity: d("5"), CostPerUnit: d("3.00")},
			{ID: CheeseID, RestaurantID: RestaurantID, BranchID: BranchID, Name: "Cheese", Unit: core.UnitKilogram,
				CurrentQuantity: d("2"), MinimumQuantity: d("0.5"), ReorderQuantity: d("2"), CostPerUnit: d("40.00")},
			{ID: BeefID, RestaurantID: RestaurantID, BranchID: BranchID, Name: "Beef", Unit: core.UnitKilogram,
				CurrentQuantity: d("8"), MinimumQuantity: d("2"), ReorderQuantity: d("8"), CostPerUnit: d("175.00")},
		},
		Recipes: map[string][]core.RecipeLine{
			DoroWatID: {
				{MenuItemID: DoroWatID, StockItemID: ChickenID, QuantityRequired: d("0.20"), WasteFactor: decimal.Zero},
				{MenuItemID: DoroWatID, StockItemID: OnionsID, QuantityRequired: d("0.03"), WasteFactor: decimal.Zero},
				{MenuItemID: DoroWatID, StockItemID: CheeseID, QuantityRequired: d("0.05"), WasteFactor: decimal.Zero},
			},
			TibsID: {
				{MenuItemID: TibsID, StockItemID: BeefID, QuantityRequired: d("0.25"), WasteFactor: d("20")},
			},
		},
		WasteCategories: []core.WasteCategory{
			{ID: SpoilageCategoryID, RestaurantID: RestaurantID, Name: "Spoilage", RequiresApproval: true},
			{ID: HandlingCategoryID, RestaurantID: RestaurantID, Name: "Handling", RequiresApproval: false},
		},
		WasteReasons: []core.WasteReason{
			{ID: SpoilageReasonID, RestaurantID: RestaurantID, CategoryID: SpoilageCategoryID, Name: "Spoilage", IsActive: true},
			{ID: DroppedReasonID, RestaurantID: RestaurantID, CategoryID: HandlingCategoryID, Name: "Dropped", IsActive: true},
			{ID: TheftReasonID, RestaurantID: RestaurantID, CategoryID: SpoilageCategoryID, Name: "Suspected theft",
				RequiresExplanation: true, RequiresPhoto: true, IsActive: true},
		},
	}
}
