package memory

import (
	"github.com/dumu-tech/restaurant-ops/internal/core"
)

type aggKey struct {
	level      core.AggregationLevel
	date       string
	restaurant string
	branch     string
}

type perfKey struct {
	date       string
	menuItem   string
	restaurant string
	branch     string
}

type state struct {
	restaurants     map[string]core.Restaurant
	branches        map[string]core.Branch
	tables          map[string]core.Table
	categories      map[string]core.Category
	menuItems       map[string]core.MenuItem
	recipes         map[string][]core.RecipeLine
	stockItems      map[string]core.StockItem
	wasteCategories map[string]core.WasteCategory
	wasteReasons    map[string]core.WasteReason

	transactions []core.StockTransaction
	orders       map[string]core.Order
	payments     map[string]core.Payment
	waste        map[string]core.WasteRecord

	aggregations map[aggKey]core.ProfitAggregation
	performance  map[perfKey]core.MenuItemPerformance

	inventoryAlerts []core.InventoryAlert
	profitAlerts    []core.ProfitAlert
	wasteAlerts     []core.WasteAlert
	failures        []core.HandlerFailure
}

func newState() *state {
	return &state{
		restaurants:     make(map[string]core.Restaurant),
		branches:        make(map[string]core.Branch),
		tables:          make(map[string]core.Table),
		categories:      make(map[string]core.Category),
		menuItems:       make(map[string]core.MenuItem),
		recipes:         make(map[string][]core.RecipeLine),
		stockItems:      make(map[string]core.StockItem),
		wasteCategories: make(map[string]core.WasteCategory),
		wasteReasons:    make(map[string]core.WasteReason),
		orders:          make(map[string]core.Order),
		payments:        make(map[string]core.Payment),
		waste:           make(map[string]core.WasteRecord),
		aggregations:    make(map[aggKey]core.ProfitAggregation),
		performance:     make(map[perfKey]core.MenuItemPerformance),
	}
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (s *state) clone() *state {
	c := &state{
		restaurants:     copyMap(s.restaurants),
		branches:        copyMap(s.branches),
		tables:          copyMap(s.tables),
		categories:      copyMap(s.categories),
		menuItems:       copyMap(s.menuItems),
		recipes:         make(map[string][]core.RecipeLine, len(s.recipes)),
		stockItems:      copyMap(s.stockItems),
		wasteCategories: copyMap(s.wasteCategories),
		wasteReasons:    copyMap(s.wasteReasons),
		transactions:    append([]core.StockTransaction(nil), s.transactions...),
		orders:          make(map[string]core.Order, len(s.orders)),
		payments:        copyMap(s.payments),
		waste:           copyMap(s.waste),
		aggregations:    copyMap(s.aggregations),
		performance:     copyMap(s.performance),
		inventoryAlerts: append([]core.InventoryAlert(nil), s.inventoryAlerts...),
		profitAlerts:    append([]core.ProfitAlert(nil), s.profitAlerts...),
		wasteAlerts:     append([]core.WasteAlert(nil), s.wasteAlerts...),
		failures:        append([]core.HandlerFailure(nil), s.failures...),
	}
	for k, v := range s.recipes {
		c.recipes[k] = append([]core.RecipeLine(nil), v...)
	}
	for k, o := range s.orders {
		o.Items = append([]core.OrderItem(nil), o.Items...)
		c.orders[k] = o
	}
	return c
}

func dayKey(o interface{ Format(string) string }) string {
	return o.Format("2006-01-02")
}
