package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/shopspring/decimal"
)

type catalogRepository struct{ s *Store }

func (r *catalogRepository) GetRestaurant(_ context.Context, id string) (*core.Restaurant, error) {
	var out *core.Restaurant
	err := r.s.read(func(st *state) error {
		v, ok := st.restaurants[id]
		if !ok {
			return core.NotFound("restaurant", id)
		}
		out = &v
		return nil
	})
	return out, err
}

func (r *catalogRepository) GetBranch(_ context.Context, id string) (*core.Branch, error) {
	var out *core.Branch
	err := r.s.read(func(st *state) error {
		v, ok := st.branches[id]
		if !ok {
			return core.NotFound("branch", id)
		}
		out = &v
		return nil
	})
	return out, err
}

func (r *catalogRepository) ListBranches(_ context.Context, restaurantID string) ([]*core.Branch, error) {
	var out []*core.Branch
	err := r.s.read(func(st *state) error {
		for _, b := range st.branches {
			if b.RestaurantID == restaurantID {
				b := b
				out = append(out, &b)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (r *catalogRepository) GetTable(_ context.Context, id string) (*core.Table, error) {
	var out *core.Table
	err := r.s.read(func(st *state) error {
		v, ok := st.tables[id]
		if !ok {
			return core.NotFound("table", id)
		}
		out = &v
		return nil
	})
	return out, err
}

func (r *catalogRepository) UpdateTableStatus(ctx context.Context, id string, status core.TableStatus) error {
	return r.s.write(ctx, func(st *state) error {
		v, ok := st.tables[id]
		if !ok {
			return core.NotFound("table", id)
		}
		v.Status = status
		st.tables[id] = v
		return nil
	})
}

func (r *catalogRepository) GetMenuItem(_ context.Context, id string) (*core.MenuItem, error) {
	var out *core.MenuItem
	err := r.s.read(func(st *state) error {
		v, ok := st.menuItems[id]
		if !ok {
			return core.NotFound("menu_item", id)
		}
		out = &v
		return nil
	})
	return out, err
}

func (r *catalogRepository) ListCategories(_ context.Context, restaurantID string) ([]*core.Category, error) {
	var out []*core.Category
	err := r.s.read(func(st *state) error {
		for _, c := range st.categories {
			if c.RestaurantID == restaurantID {
				c := c
				out = append(out, &c)
			}
		}
		return nil
	})
	return out, err
}

func (r *catalogRepository) ListMenuItems(_ context.Context, restaurantID string) ([]*core.MenuItem, error) {
	var out []*core.MenuItem
	err := r.s.read(func(st *state) error {
		for _, m := range st.menuItems {
			if m.RestaurantID == restaurantID {
				m := m
				out = append(out, &m)
			}
		}
		return nil
	})
	return out, err
}

func (r *catalogRepository) updateMenuItem(ctx context.Context, id string, fn func(m *core.MenuItem)) error {
	return r.s.write(ctx, func(st *state) error {
		v, ok := st.menuItems[id]
		if !ok {
			return core.NotFound("menu_item", id)
		}
		fn(&v)
		st.menuItems[id] = v
		return nil
	})
}

func (r *catalogRepository) UpdateMenuItemPrice(ctx context.Context, id string, price decimal.Decimal) error {
	return r.updateMenuItem(ctx, id, func(m *core.MenuItem) { m.Price = price })
}

func (r *catalogRepository) UpdateMenuItemCost(ctx context.Context, id string, cost decimal.Decimal) error {
	return r.updateMenuItem(ctx, id, func(m *core.MenuItem) { m.CostPrice = cost })
}

func (r *catalogRepository) IncrementSoldCount(ctx context.Context, id string, quantity int) error {
	return r.updateMenuItem(ctx, id, func(m *core.MenuItem) { m.SoldCount += int64(quantity) })
}

func (r *catalogRepository) GetRecipeOf(_ context.Context, menuItemID string) ([]core.RecipeLine, error) {
	var out []core.RecipeLine
	err := r.s.read(func(st *state) error {
		out = append(out, st.recipes[menuItemID]...)
		return nil
	})
	return out, err
}

func (r *catalogRepository) ReplaceRecipe(ctx context.Context, menuItemID string, lines []core.RecipeLine) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.menuItems[menuItemID]; !ok {
			return core.NotFound("menu_item", menuItemID)
		}
		st.recipes[menuItemID] = append([]core.RecipeLine(nil), lines...)
		return nil
	})
}

func (r *catalogRepository) GetStockItem(_ context.Context, id string) (*core.StockItem, error) {
	var out *core.StockItem
	err := r.s.read(func(st *state) error {
		v, ok := st.stockItems[id]
		if !ok {
			return core.NotFound("stock_item", id)
		}
		out = &v
		return nil
	})
	return out, err
}

func (r *catalogRepository) GetWasteReason(_ context.Context, id string) (*core.WasteReason, error) {
	var out *core.WasteReason
	err := r.s.read(func(st *state) error {
		v, ok := st.wasteReasons[id]
		if !ok {
			return core.NotFound("waste_reason", id)
		}
		out = &v
		return nil
	})
	return out, err
}

func (r *catalogRepository) GetWasteCategory(_ context.Context, id string) (*core.WasteCategory, error) {
	var out *core.WasteCategory
	err := r.s.read(func(st *state) error {
		v, ok := st.wasteCategories[id]
		if !ok {
			return core.NotFound("waste_category", id)
		}
		out = &v
		return nil
	})
	return out, err
}

type ledgerRepository struct{ s *Store }

// LockStockItem is a plain read: units of work are already serialised by the store.
func (r *ledgerRepository) LockStockItem(ctx context.Context, id string) (*core.StockItem, error) {
	return r.s.catalog.GetStockItem(ctx, id)
}

func (r *ledgerRepository) SetStockQuantity(ctx context.Context, id string, quantity decimal.Decimal, at time.Time) error {
	return r.s.write(ctx, func(st *state) error {
		v, ok := st.stockItems[id]
		if !ok {
			return core.NotFound("stock_item", id)
		}
		v.CurrentQuantity = quantity
		v.UpdatedAt = at
		st.stockItems[id] = v
		return nil
	})
}

func (r *ledgerRepository) AppendTransaction(ctx context.Context, tx *core.StockTransaction) error {
	return r.s.write(ctx, func(st *state) error {
		st.transactions = append(st.transactions, *tx)
		return nil
	})
}

func (r *ledgerRepository) GetTransaction(_ context.Context, id string) (*core.StockTransaction, error) {
	var out *core.StockTransaction
	err := r.s.read(func(st *state) error {
		for _, t := range st.transactions {
			if t.ID == id {
				t := t
				out = &t
				return nil
			}
		}
		return core.NotFound("stock_transaction", id)
	})
	return out, err
}

func (r *ledgerRepository) FindReversal(_ context.Context, transactionID string) (*core.StockTransaction, error) {
	var out *core.StockTransaction
	err := r.s.read(func(st *state) error {
		for _, t := range st.transactions {
			if t.ReversalOf == transactionID {
				t := t
				out = &t
				return nil
			}
		}
		return core.NotFound("stock_transaction_reversal", transactionID)
	})
	return out, err
}

func (r *ledgerRepository) ListTransactions(_ context.Context, f core.TransactionFilter) ([]*core.StockTransaction, error) {
	var out []*core.StockTransaction
	err := r.s.read(func(st *state) error {
		for _, t := range st.transactions {
			switch {
			case f.RestaurantID != "" && t.RestaurantID != f.RestaurantID,
				f.BranchID != "" && t.BranchID != f.BranchID,
				f.StockItemID != "" && t.StockItemID != f.StockItemID,
				f.OrderRef != "" && t.OrderRef != f.OrderRef,
				f.Type != "" && t.Type != f.Type,
				!f.From.IsZero() && t.TransactionDate.Before(f.From),
				!f.To.IsZero() && !t.TransactionDate.Before(f.To):
				continue
			}
			t := t
			out = append(out, &t)
		}
		return nil
	})
	return out, err
}

type orderRepository struct{ s *Store }

func cloneOrder(o core.Order) *core.Order {
	o.Items = append([]core.OrderItem(nil), o.Items...)
	return &o
}

func (r *orderRepository) CreateOrder(ctx context.Context, order *core.Order) error {
	return r.s.write(ctx, func(st *state) error {
		if _, exists := st.orders[order.ID]; exists {
			return core.Conflict("order already exists", nil)
		}
		for _, o := range st.orders {
			if o.RestaurantID == order.RestaurantID && o.OrderNumber == order.OrderNumber {
				return core.Conflict("order number already used", nil)
			}
		}
		st.orders[order.ID] = *cloneOrder(*order)
		return nil
	})
}

func (r *orderRepository) GetOrder(_ context.Context, id string) (*core.Order, error) {
	var out *core.Order
	err := r.s.read(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return core.NotFound("order", id)
		}
		out = cloneOrder(o)
		return nil
	})
	return out, err
}

func (r *orderRepository) LockOrder(ctx context.Context, id string) (*core.Order, error) {
	return r.GetOrder(ctx, id)
}

// UpdateOrder stores header fields. Items are managed through the item methods.
func (r *orderRepository) UpdateOrder(ctx context.Context, order *core.Order) error {
	return r.s.write(ctx, func(st *state) error {
		existing, ok := st.orders[order.ID]
		if !ok {
			return core.NotFound("order", order.ID)
		}
		updated := *order
		updated.Items = existing.Items
		st.orders[order.ID] = updated
		return nil
	})
}

func (r *orderRepository) AddItem(ctx context.Context, item *core.OrderItem) error {
	return r.s.write(ctx, func(st *state) error {
		o, ok := st.orders[item.OrderID]
		if !ok {
			return core.NotFound("order", item.OrderID)
		}
		o.Items = append(append([]core.OrderItem(nil), o.Items...), *item)
		st.orders[o.ID] = o
		return nil
	})
}

func (r *orderRepository) UpdateItem(ctx context.Context, item *core.OrderItem) error {
	return r.s.write(ctx, func(st *state) error {
		o, ok := st.orders[item.OrderID]
		if !ok {
			return core.NotFound("order", item.OrderID)
		}
		items := append([]core.OrderItem(nil), o.Items...)
		for i := range items {
			if items[i].ID == item.ID {
				items[i] = *item
				o.Items = items
				st.orders[o.ID] = o
				return nil
			}
		}
		return core.NotFound("order_item", item.ID)
	})
}

func (r *orderRepository) DeleteItem(ctx context.Context, orderID, itemID string) error {
	return r.s.write(ctx, func(st *state) error {
		o, ok := st.orders[orderID]
		if !ok {
			return core.NotFound("order", orderID)
		}
		items := make([]core.OrderItem, 0, len(o.Items))
		found := false
		for _, it := range o.Items {
			if it.ID == itemID {
				found = true
				continue
			}
			items = append(items, it)
		}
		if !found {
			return core.NotFound("order_item", itemID)
		}
		o.Items = items
		st.orders[orderID] = o
		return nil
	})
}

func (r *orderRepository) CountOpenOrdersForTable(_ context.Context, tableID, excludeOrderID string) (int, error) {
	count := 0
	err := r.s.read(func(st *state) error {
		for _, o := range st.orders {
			if o.TableID == tableID && o.ID != excludeOrderID && !o.Status.IsTerminal() {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *orderRepository) ListCompletedOrders(_ context.Context, restaurantID, branchID string, from, to time.Time) ([]*core.Order, error) {
	var out []*core.Order
	err := r.s.read(func(st *state) error {
		for _, o := range st.orders {
			if o.Status != core.OrderStatusCompleted || !o.IsPaid || o.CompletedAt == nil {
				continue
			}
			if o.RestaurantID != restaurantID || (branchID != "" && o.BranchID != branchID) {
				continue
			}
			if o.CompletedAt.Before(from) || !o.CompletedAt.Before(to) {
				continue
			}
			out = append(out, cloneOrder(o))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(*out[j].CompletedAt) })
	return out, err
}

type paymentRepository struct{ s *Store }

func (r *paymentRepository) CreatePayment(ctx context.Context, p *core.Payment) error {
	return r.s.write(ctx, func(st *state) error {
		if _, exists := st.payments[p.ID]; exists {
			return core.Conflict("payment already exists", nil)
		}
		st.payments[p.ID] = *p
		return nil
	})
}

func (r *paymentRepository) GetPayment(_ context.Context, id string) (*core.Payment, error) {
	var out *core.Payment
	err := r.s.read(func(st *state) error {
		p, ok := st.payments[id]
		if !ok {
			return core.NotFound("payment", id)
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *paymentRepository) LockPayment(ctx context.Context, id string) (*core.Payment, error) {
	return r.GetPayment(ctx, id)
}

func (r *paymentRepository) UpdatePayment(ctx context.Context, p *core.Payment) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.payments[p.ID]; !ok {
			return core.NotFound("payment", p.ID)
		}
		st.payments[p.ID] = *p
		return nil
	})
}

func (r *paymentRepository) ListPaymentsForOrder(_ context.Context, orderID string) ([]*core.Payment, error) {
	var out []*core.Payment
	err := r.s.read(func(st *state) error {
		for _, p := range st.payments {
			if p.OrderID == orderID {
				p := p
				out = append(out, &p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

type wasteRepository struct{ s *Store }

func (r *wasteRepository) CreateWasteRecord(ctx context.Context, w *core.WasteRecord) error {
	return r.s.write(ctx, func(st *state) error {
		st.waste[w.ID] = *w
		return nil
	})
}

func (r *wasteRepository) GetWasteRecord(_ context.Context, id string) (*core.WasteRecord, error) {
	var out *core.WasteRecord
	err := r.s.read(func(st *state) error {
		w, ok := st.waste[id]
		if !ok {
			return core.NotFound("waste_record", id)
		}
		out = &w
		return nil
	})
	return out, err
}

func (r *wasteRepository) LockWasteRecord(ctx context.Context, id string) (*core.WasteRecord, error) {
	return r.GetWasteRecord(ctx, id)
}

func (r *wasteRepository) UpdateWasteRecord(ctx context.Context, w *core.WasteRecord) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.waste[w.ID]; !ok {
			return core.NotFound("waste_record", w.ID)
		}
		st.waste[w.ID] = *w
		return nil
	})
}

func (r *wasteRepository) ListWasteRecords(_ context.Context, f core.WasteFilter) ([]*core.WasteRecord, error) {
	var out []*core.WasteRecord
	err := r.s.read(func(st *state) error {
		for _, w := range st.waste {
			switch {
			case f.RestaurantID != "" && w.RestaurantID != f.RestaurantID,
				f.BranchID != "" && w.BranchID != f.BranchID,
				f.StockItemID != "" && w.StockItemID != f.StockItemID,
				f.ReasonID != "" && w.ReasonID != f.ReasonID,
				len(f.Statuses) > 0 && !hasStatus(f.Statuses, w.Status),
				!f.From.IsZero() && w.CreatedAt.Before(f.From),
				!f.To.IsZero() && !w.CreatedAt.Before(f.To):
				continue
			}
			w := w
			out = append(out, &w)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func hasStatus(statuses []core.WasteStatus, s core.WasteStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

type profitRepository struct{ s *Store }

func keyOfAggregation(k core.ProfitKey) aggKey {
	return aggKey{level: k.Level, date: dayKey(k.Date), restaurant: k.RestaurantID, branch: k.BranchID}
}

func keyOfPerformance(k core.PerformanceKey) perfKey {
	return perfKey{date: dayKey(k.Date), menuItem: k.MenuItemID, restaurant: k.RestaurantID, branch: k.BranchID}
}

func (r *profitRepository) UpsertAggregation(ctx context.Context, agg *core.ProfitAggregation) error {
	return r.s.write(ctx, func(st *state) error {
		st.aggregations[keyOfAggregation(agg.ProfitKey)] = *agg
		return nil
	})
}

func (r *profitRepository) GetAggregation(_ context.Context, key core.ProfitKey) (*core.ProfitAggregation, error) {
	var out *core.ProfitAggregation
	err := r.s.read(func(st *state) error {
		a, ok := st.aggregations[keyOfAggregation(key)]
		if !ok {
			return core.NotFound("profit_aggregation", dayKey(key.Date))
		}
		out = &a
		return nil
	})
	return out, err
}

func (r *profitRepository) ListAggregations(_ context.Context, level core.AggregationLevel, restaurantID, branchID string, from, to time.Time) ([]*core.ProfitAggregation, error) {
	lo, hi := dayKey(from), dayKey(to)
	var out []*core.ProfitAggregation
	err := r.s.read(func(st *state) error {
		for k, a := range st.aggregations {
			if k.level != level || k.restaurant != restaurantID || k.branch != branchID || k.date < lo || k.date > hi {
				continue
			}
			a := a
			out = append(out, &a)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, err
}

func (r *profitRepository) UpsertPerformance(ctx context.Context, perf *core.MenuItemPerformance) error {
	return r.s.write(ctx, func(st *state) error {
		st.performance[keyOfPerformance(perf.PerformanceKey)] = *perf
		return nil
	})
}

func (r *profitRepository) GetPerformance(_ context.Context, key core.PerformanceKey) (*core.MenuItemPerformance, error) {
	var out *core.MenuItemPerformance
	err := r.s.read(func(st *state) error {
		p, ok := st.performance[keyOfPerformance(key)]
		if !ok {
			return core.NotFound("menu_item_performance", key.MenuItemID)
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *profitRepository) ListPerformance(_ context.Context, f core.PerformanceFilter) ([]*core.MenuItemPerformance, error) {
	var out []*core.MenuItemPerformance
	err := r.s.read(func(st *state) error {
		for k, p := range st.performance {
			switch {
			case k.restaurant != f.RestaurantID,
				!f.AllBranches && k.branch != f.BranchID,
				f.MenuItemID != "" && k.menuItem != f.MenuItemID,
				!f.From.IsZero() && k.date < dayKey(f.From),
				!f.To.IsZero() && k.date > dayKey(f.To):
				continue
			}
			p := p
			out = append(out, &p)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].MenuItemName < out[j].MenuItemName
	})
	return out, err
}

type alertRepository struct{ s *Store }

func (r *alertRepository) OpenInventoryAlert(ctx context.Context, alert *core.InventoryAlert) (bool, error) {
	created := false
	err := r.s.write(ctx, func(st *state) error {
		for _, a := range st.inventoryAlerts {
			if !a.Resolved && a.StockItemID == alert.StockItemID && a.Kind == alert.Kind && a.OrderRef == alert.OrderRef {
				return nil
			}
		}
		st.inventoryAlerts = append(st.inventoryAlerts, *alert)
		created = true
		return nil
	})
	return created, err
}

func (r *alertRepository) ResolveInventoryAlerts(ctx context.Context, stockItemID string, kind core.InventoryAlertKind, at time.Time) (int, error) {
	resolved := 0
	err := r.s.write(ctx, func(st *state) error {
		alerts := append([]core.InventoryAlert(nil), st.inventoryAlerts...)
		for i := range alerts {
			if !alerts[i].Resolved && alerts[i].StockItemID == stockItemID && alerts[i].Kind == kind {
				alerts[i].Resolved = true
				resolvedAt := at
				alerts[i].ResolvedAt = &resolvedAt
				resolved++
			}
		}
		st.inventoryAlerts = alerts
		return nil
	})
	return resolved, err
}

func (r *alertRepository) ListInventoryAlerts(_ context.Context, f core.AlertFilter) ([]*core.InventoryAlert, error) {
	var out []*core.InventoryAlert
	err := r.s.read(func(st *state) error {
		for _, a := range st.inventoryAlerts {
			switch {
			case f.RestaurantID != "" && a.RestaurantID != f.RestaurantID,
				f.BranchID != "" && a.BranchID != f.BranchID,
				f.StockItemID != "" && a.StockItemID != f.StockItemID,
				f.Kind != "" && a.Kind != f.Kind,
				f.UnresolvedOnly && a.Resolved:
				continue
			}
			a := a
			out = append(out, &a)
		}
		return nil
	})
	return out, err
}

func (r *alertRepository) CreateProfitAlert(ctx context.Context, alert *core.ProfitAlert) (bool, error) {
	created := false
	err := r.s.write(ctx, func(st *state) error {
		for _, a := range st.profitAlerts {
			if a.RestaurantID == alert.RestaurantID && a.BranchID == alert.BranchID && a.Kind == alert.Kind &&
				a.Subject == alert.Subject && dayKey(a.Day) == dayKey(alert.Day) {
				return nil
			}
		}
		st.profitAlerts = append(st.profitAlerts, *alert)
		created = true
		return nil
	})
	return created, err
}

func (r *alertRepository) ListProfitAlerts(_ context.Context, restaurantID string, from, to time.Time) ([]*core.ProfitAlert, error) {
	var out []*core.ProfitAlert
	err := r.s.read(func(st *state) error {
		for _, a := range st.profitAlerts {
			if a.RestaurantID != restaurantID || a.Day.Before(from) || a.Day.After(to) {
				continue
			}
			a := a
			out = append(out, &a)
		}
		return nil
	})
	return out, err
}

func (r *alertRepository) CreateWasteAlert(ctx context.Context, alert *core.WasteAlert) (bool, error) {
	created := false
	err := r.s.write(ctx, func(st *state) error {
		for _, a := range st.wasteAlerts {
			if a.RestaurantID == alert.RestaurantID && a.BranchID == alert.BranchID && a.Kind == alert.Kind &&
				a.RecurrenceID == alert.RecurrenceID && dayKey(a.Day) == dayKey(alert.Day) {
				return nil
			}
		}
		st.wasteAlerts = append(st.wasteAlerts, *alert)
		created = true
		return nil
	})
	return created, err
}

func (r *alertRepository) ListWasteAlerts(_ context.Context, restaurantID string) ([]*core.WasteAlert, error) {
	var out []*core.WasteAlert
	err := r.s.read(func(st *state) error {
		for _, a := range st.wasteAlerts {
			if a.RestaurantID == restaurantID {
				a := a
				out = append(out, &a)
			}
		}
		return nil
	})
	return out, err
}

func (r *alertRepository) RecordHandlerFailure(ctx context.Context, f *core.HandlerFailure) error {
	return r.s.write(ctx, func(st *state) error {
		st.failures = append(st.failures, *f)
		return nil
	})
}

func (r *alertRepository) ListHandlerFailures(_ context.Context, limit int) ([]*core.HandlerFailure, error) {
	var out []*core.HandlerFailure
	err := r.s.read(func(st *state) error {
		for i := len(st.failures) - 1; i >= 0; i-- {
			if limit > 0 && len(out) >= limit {
				break
			}
			f := st.failures[i]
			out = append(out, &f)
		}
		return nil
	})
	return out, err
}
