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

// Shortfall is a deduction that could not be made for lack of stock
type Shortfall struct {
	StockItemID string          `json:"stock_item_id"`
	MenuItemID  string          `json:"menu_item_id"`
	Required    decimal.Decimal `json:"required"`
	Available   decimal.Decimal `json:"available"`
}

// DeductionResult summarises one pass over an order's ingredients
type DeductionResult struct {
	OrderID    string                   `json:"order_id"`
	Entries    []*core.StockTransaction `json:"entries"`
	Shortfalls []Shortfall              `json:"shortfalls"`
	Complete   bool                     `json:"complete"`
}

type deductionGroup struct {
	stockItemID string
	menuItemID  string
	quantity    decimal.Decimal
}

// DeductionCoordinator turns completed orders into usage ledger entries exactly once
type DeductionCoordinator struct {
	store    core.Store
	ledger   *InventoryLedger
	resolver *RecipeResolver
	logger   *zap.Logger
}

// NewDeductionCoordinator creates a new deduction coordinator
func NewDeductionCoordinator(store core.Store, ledger *InventoryLedger, resolver *RecipeResolver, logger *zap.Logger) *DeductionCoordinator {
	return &DeductionCoordinator{store: store, ledger: ledger, resolver: resolver, logger: logger}
}

// Register subscribes the coordinator to order completion and cancellation
func (d *DeductionCoordinator) Register(bus *events.EventBus) {
	bus.On(events.EventOrderCompleted, "inventory.deduct", d.handleOrderCompleted)
	bus.On(events.EventOrderCancelled, "inventory.reverse", d.handleOrderCancelled)
}

func (d *DeductionCoordinator) handleOrderCompleted(ctx context.Context, evt events.Event) error {
	payload, ok := evt.Data.(events.OrderCompleted)
	if !ok {
		return fmt.Errorf("unexpected payload %T", evt.Data)
	}
	_, err := d.Deduct(ctx, payload.OrderID)
	return err
}

func (d *DeductionCoordinator) handleOrderCancelled(ctx context.Context, evt events.Event) error {
	payload, ok := evt.Data.(events.OrderCancelled)
	if !ok {
		return fmt.Errorf("unexpected payload %T", evt.Data)
	}
	// orders are deducted on completion and completed orders cannot be cancelled, so this
	// only fires for events published by an outside cancellation flow
	if !payload.InventoryDeducted {
		return nil
	}
	_, err := d.Reverse(ctx, payload.OrderID, core.SystemActor, "order cancelled")
	return err
}

// Deduct records the usage entries an order still owes. Groups already in the ledger are
// skipped, so a shortfall can be retried after restocking. Each group is checked and written
// under the order lock, and the inventory_deducted flag is set with the last group once
// nothing is outstanding.
func (d *DeductionCoordinator) Deduct(ctx context.Context, orderID string) (*DeductionResult, error) {
	order, err := d.store.Orders().GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	result := &DeductionResult{OrderID: orderID}
	if order.InventoryDeducted {
		result.Complete = true
		return result, nil
	}
	if order.Status != core.OrderStatusCompleted {
		return nil, core.Precondition("inventory is deducted only for completed orders")
	}

	groups, err := d.groupsFor(ctx, order)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		if err := d.store.Atomic(ctx, func(ctx context.Context) error {
			return d.markDeducted(ctx, orderID, true)
		}); err != nil {
			return nil, err
		}
		result.Complete = true
		return result, nil
	}

	for i, g := range groups {
		last := i == len(groups)-1
		var (
			entry    *core.StockTransaction
			finished bool
		)
		err := d.store.Atomic(ctx, func(ctx context.Context) error {
			entry, finished = nil, false
			locked, err := d.store.Orders().LockOrder(ctx, orderID)
			if err != nil {
				return err
			}
			if locked.InventoryDeducted {
				finished = true
				return nil
			}
			done, err := d.deductedGroups(ctx, orderID)
			if err != nil {
				return err
			}
			if !done[groupKey(g.stockItemID, g.menuItemID)] {
				entry, err = d.ledger.RecordTransaction(ctx, RecordRequest{
					StockItemID: g.stockItemID,
					Type:        core.TransactionUsage,
					Quantity:    g.quantity,
					Reason:      "order " + order.OrderNumber,
					Actor:       core.SystemActor,
					OrderRef:    orderID,
					MenuItemRef: g.menuItemID,
				})
				if err != nil {
					return err
				}
			}
			if last && len(result.Shortfalls) == 0 {
				return d.markDeducted(ctx, orderID, true)
			}
			return nil
		})
		if err == nil && finished {
			// a concurrent pass owns the rest of the order
			result.Shortfalls = nil
			break
		}

		if core.KindOf(err) == core.KindInsufficientStock {
			available := decimal.Zero
			if item, getErr := d.store.Catalog().GetStockItem(ctx, g.stockItemID); getErr == nil {
				available = item.CurrentQuantity
			}
			result.Shortfalls = append(result.Shortfalls, Shortfall{
				StockItemID: g.stockItemID,
				MenuItemID:  g.menuItemID,
				Required:    g.quantity,
				Available:   available,
			})
			if _, err := d.ledger.ReportShortfall(ctx, g.stockItemID, g.quantity, orderID); err != nil {
				d.logger.Warn("failed to report shortfall", zap.String("stock_item_id", g.stockItemID), zap.Error(err))
			}
			if _, err := d.ledger.CheckLowStock(ctx, g.stockItemID); err != nil {
				d.logger.Warn("low stock check failed", zap.String("stock_item_id", g.stockItemID), zap.Error(err))
			}
			continue
		}
		if err != nil {
			return result, fmt.Errorf("failed to deduct %s for order %s: %w", g.stockItemID, orderID, err)
		}
		if entry == nil {
			continue
		}

		result.Entries = append(result.Entries, entry)
		if _, err := d.ledger.CheckLowStock(ctx, g.stockItemID); err != nil {
			d.logger.Warn("low stock check failed", zap.String("stock_item_id", g.stockItemID), zap.Error(err))
		}
	}

	result.Complete = len(result.Shortfalls) == 0
	if result.Complete {
		d.logger.Info("inventory deducted",
			zap.String("order_id", orderID),
			zap.Int("entries", len(result.Entries)))
	} else {
		d.logger.Warn("inventory partially deducted",
			zap.String("order_id", orderID),
			zap.Int("entries", len(result.Entries)),
			zap.Int("shortfalls", len(result.Shortfalls)))
	}
	return result, nil
}

// RetryDeduction re-runs deduction for an order left partially deducted
func (d *DeductionCoordinator) RetryDeduction(ctx context.Context, actor core.Actor, orderID string) (*DeductionResult, error) {
	d.logger.Info("retrying inventory deduction", zap.String("order_id", orderID), zap.String("actor", actor.UserID))
	return d.Deduct(ctx, orderID)
}

// Reverse voids every live usage entry of an order and clears its flag. It backs the
// cancel-after-deduction contract of OrderCancelled; the order state machine itself never
// cancels a deducted order.
func (d *DeductionCoordinator) Reverse(ctx context.Context, orderID string, actor core.Actor, reason string) ([]*core.StockTransaction, error) {
	var reversals []*core.StockTransaction
	err := d.store.Atomic(ctx, func(ctx context.Context) error {
		reversals = nil
		if _, err := d.store.Orders().LockOrder(ctx, orderID); err != nil {
			return err
		}
		entries, err := d.store.Ledger().ListTransactions(ctx, core.TransactionFilter{OrderRef: orderID})
		if err != nil {
			return fmt.Errorf("failed to list order entries: %w", err)
		}
		reversed := reversedIDs(entries)
		for _, e := range entries {
			if e.Type != core.TransactionUsage || reversed[e.ID] {
				continue
			}
			r, err := d.ledger.Void(ctx, e.ID, actor, reason)
			if err != nil {
				return err
			}
			reversals = append(reversals, r)
		}
		return d.markDeducted(ctx, orderID, false)
	})
	if err != nil {
		return nil, err
	}
	if len(reversals) > 0 {
		d.logger.Info("inventory deduction reversed",
			zap.String("order_id", orderID),
			zap.Int("entries", len(reversals)),
			zap.String("actor", actor.UserID))
	}
	return reversals, nil
}

func (d *DeductionCoordinator) markDeducted(ctx context.Context, orderID string, deducted bool) error {
	order, err := d.store.Orders().LockOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.InventoryDeducted == deducted {
		return nil
	}
	order.InventoryDeducted = deducted
	return d.store.Orders().UpdateOrder(ctx, order)
}

// groupsFor sums the adjusted requirement per (stock item, menu item) in a stable order
func (d *DeductionCoordinator) groupsFor(ctx context.Context, order *core.Order) ([]deductionGroup, error) {
	sums := make(map[string]*deductionGroup)
	for _, it := range order.Items {
		ingredients, err := d.resolver.Resolve(ctx, it.MenuItemID, it.Quantity)
		if err != nil {
			return nil, err
		}
		for _, ing := range ingredients {
			key := groupKey(ing.StockItemID, it.MenuItemID)
			g, ok := sums[key]
			if !ok {
				g = &deductionGroup{stockItemID: ing.StockItemID, menuItemID: it.MenuItemID, quantity: decimal.Zero}
				sums[key] = g
			}
			g.quantity = g.quantity.Add(ing.AdjustedQuantity)
		}
	}

	groups := make([]deductionGroup, 0, len(sums))
	for _, g := range sums {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].stockItemID != groups[j].stockItemID {
			return groups[i].stockItemID < groups[j].stockItemID
		}
		return groups[i].menuItemID < groups[j].menuItemID
	})
	return groups, nil
}

func (d *DeductionCoordinator) deductedGroups(ctx context.Context, orderID string) (map[string]bool, error) {
	entries, err := d.store.Ledger().ListTransactions(ctx, core.TransactionFilter{OrderRef: orderID})
	if err != nil {
		return nil, fmt.Errorf("failed to list order entries: %w", err)
	}
	reversed := reversedIDs(entries)
	done := make(map[string]bool)
	for _, e := range entries {
		if e.Type == core.TransactionUsage && !reversed[e.ID] {
			done[groupKey(e.StockItemID, e.MenuItemRef)] = true
		}
	}
	return done, nil
}

func reversedIDs(entries []*core.StockTransaction) map[string]bool {
	out := make(map[string]bool)
	for _, e := range entries {
		if e.ReversalOf != "" {
			out[e.ReversalOf] = true
		}
	}
	return out
}

func groupKey(stockItemID, menuItemID string) string {
	return stockItemID + "|" + menuItemID
}
