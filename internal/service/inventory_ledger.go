package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/dumu-tech/restaurant-ops/internal/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RecordRequest describes a ledger entry to append
type RecordRequest struct {
	StockItemID string
	Type        core.TransactionType
	// Direction is required for adjustments and transfers and ignored otherwise
	Direction core.Direction
	Quantity  decimal.Decimal
	// UnitCost overrides the stock item's cost_per_unit snapshot when set
	UnitCost    *decimal.Decimal
	Reason      string
	Actor       core.Actor
	OrderRef    string
	MenuItemRef string
	ReversalOf  string
}

// InventoryLedger appends stock movements and keeps current quantities in step
type InventoryLedger struct {
	store  core.Store
	bus    *events.EventBus
	logger *zap.Logger
	now    func() time.Time
}

// NewInventoryLedger creates a new inventory ledger
func NewInventoryLedger(store core.Store, bus *events.EventBus, logger *zap.Logger) *InventoryLedger {
	return &InventoryLedger{store: store, bus: bus, logger: logger, now: time.Now}
}

// RecordTransaction locks the stock item, appends the entry and updates the quantity in one unit of work
func (l *InventoryLedger) RecordTransaction(ctx context.Context, req RecordRequest) (*core.StockTransaction, error) {
	if !req.Quantity.IsPositive() {
		return nil, core.Validation("quantity", "quantity must be greater than zero")
	}
	switch req.Type {
	case core.TransactionPurchase, core.TransactionUsage, core.TransactionWaste:
	case core.TransactionAdjustment, core.TransactionTransfer:
		if req.Direction != core.DirectionIn && req.Direction != core.DirectionOut {
			return nil, core.Validation("direction", "adjustments and transfers need a direction")
		}
	default:
		return nil, core.Validation("type", fmt.Sprintf("unsupported transaction type %q", req.Type))
	}
	if req.UnitCost != nil && req.UnitCost.IsNegative() {
		return nil, core.Validation("unit_cost", "unit cost cannot be negative")
	}

	var entry *core.StockTransaction
	err := l.store.Atomic(ctx, func(ctx context.Context) error {
		item, err := l.store.Ledger().LockStockItem(ctx, req.StockItemID)
		if err != nil {
			return err
		}

		direction := core.DirectionOf(req.Type, req.Direction)
		next := item.CurrentQuantity.Add(req.Quantity)
		if direction == core.DirectionOut {
			if req.Quantity.GreaterThan(item.CurrentQuantity) {
				return core.InsufficientStock(item.ID, item.CurrentQuantity.String(), req.Quantity.String())
			}
			next = item.CurrentQuantity.Sub(req.Quantity)
		}

		unitCost := item.CostPerUnit
		if req.UnitCost != nil {
			unitCost = *req.UnitCost
		}

		now := l.now()
		entry = &core.StockTransaction{
			ID:              uuid.New().String(),
			StockItemID:     item.ID,
			RestaurantID:    item.RestaurantID,
			BranchID:        item.BranchID,
			Type:            req.Type,
			Direction:       direction,
			Quantity:        req.Quantity,
			UnitCost:        unitCost,
			TotalCost:       req.Quantity.Mul(unitCost),
			Reason:          req.Reason,
			ActorID:         req.Actor.UserID,
			OrderRef:        req.OrderRef,
			MenuItemRef:     req.MenuItemRef,
			ReversalOf:      req.ReversalOf,
			TransactionDate: now,
		}
		if err := l.store.Ledger().AppendTransaction(ctx, entry); err != nil {
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}
		if err := l.store.Ledger().SetStockQuantity(ctx, item.ID, next, now); err != nil {
			return fmt.Errorf("failed to update stock quantity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Consume records usage and opens a low_stock alert if the item reached its minimum
func (l *InventoryLedger) Consume(ctx context.Context, stockItemID string, quantity decimal.Decimal, reason string, actor core.Actor, orderRef, menuItemRef string) (*core.StockTransaction, error) {
	entry, err := l.RecordTransaction(ctx, RecordRequest{
		StockItemID: stockItemID,
		Type:        core.TransactionUsage,
		Quantity:    quantity,
		Reason:      reason,
		Actor:       actor,
		OrderRef:    orderRef,
		MenuItemRef: menuItemRef,
	})
	if err != nil {
		return nil, err
	}
	if _, err := l.CheckLowStock(ctx, stockItemID); err != nil {
		l.logger.Warn("low stock check failed", zap.String("stock_item_id", stockItemID), zap.Error(err))
	}
	return entry, nil
}

// Receive records a purchase and resolves low_stock alerts once the item is above its minimum
func (l *InventoryLedger) Receive(ctx context.Context, stockItemID string, quantity, unitCost decimal.Decimal, reason string, actor core.Actor) (*core.StockTransaction, error) {
	entry, err := l.RecordTransaction(ctx, RecordRequest{
		StockItemID: stockItemID,
		Type:        core.TransactionPurchase,
		Quantity:    quantity,
		UnitCost:    &unitCost,
		Reason:      reason,
		Actor:       actor,
	})
	if err != nil {
		return nil, err
	}

	item, err := l.store.Catalog().GetStockItem(ctx, stockItemID)
	if err != nil {
		return entry, nil
	}
	if !item.IsLow() {
		if n, err := l.store.Alerts().ResolveInventoryAlerts(ctx, stockItemID, core.AlertLowStock, l.now()); err != nil {
			l.logger.Warn("failed to resolve low stock alerts", zap.String("stock_item_id", stockItemID), zap.Error(err))
		} else if n > 0 {
			l.logger.Info("low stock alerts resolved", zap.String("stock_item_id", stockItemID), zap.Int("count", n))
		}
	}
	return entry, nil
}

// Adjust records a manual correction in either direction
func (l *InventoryLedger) Adjust(ctx context.Context, stockItemID string, quantity decimal.Decimal, direction core.Direction, reason string, actor core.Actor) (*core.StockTransaction, error) {
	if reason == "" {
		return nil, core.Validation("reason", "adjustments need a reason")
	}
	entry, err := l.RecordTransaction(ctx, RecordRequest{
		StockItemID: stockItemID,
		Type:        core.TransactionAdjustment,
		Direction:   direction,
		Quantity:    quantity,
		Reason:      reason,
		Actor:       actor,
	})
	if err != nil {
		return nil, err
	}
	if direction == core.DirectionOut {
		if _, err := l.CheckLowStock(ctx, stockItemID); err != nil {
			l.logger.Warn("low stock check failed", zap.String("stock_item_id", stockItemID), zap.Error(err))
		}
	}
	return entry, nil
}

// Void appends a compensating adjustment in the opposite direction. An entry can be voided once.
func (l *InventoryLedger) Void(ctx context.Context, transactionID string, actor core.Actor, reason string) (*core.StockTransaction, error) {
	var reversal *core.StockTransaction
	err := l.store.Atomic(ctx, func(ctx context.Context) error {
		original, err := l.store.Ledger().GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if original.ReversalOf != "" {
			return core.Validation("transaction_id", "a reversal cannot be voided")
		}
		if _, err := l.store.Ledger().FindReversal(ctx, transactionID); err == nil {
			return core.Conflict("transaction already voided", nil)
		} else if core.KindOf(err) != core.KindNotFound {
			return err
		}

		opposite := core.DirectionIn
		if original.Direction == core.DirectionIn {
			opposite = core.DirectionOut
		}
		unitCost := original.UnitCost
		reversal, err = l.RecordTransaction(ctx, RecordRequest{
			StockItemID: original.StockItemID,
			Type:        core.TransactionAdjustment,
			Direction:   opposite,
			Quantity:    original.Quantity,
			UnitCost:    &unitCost,
			Reason:      "void: " + reason,
			Actor:       actor,
			OrderRef:    original.OrderRef,
			MenuItemRef: original.MenuItemRef,
			ReversalOf:  original.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("ledger entry voided",
		zap.String("transaction_id", transactionID),
		zap.String("reversal_id", reversal.ID),
		zap.String("actor", actor.UserID),
		zap.String("reason", reason))
	return reversal, nil
}

// CheckLowStock opens a low_stock alert when the item is at or below its minimum.
// It returns the alert only when a new one was opened.
func (l *InventoryLedger) CheckLowStock(ctx context.Context, stockItemID string) (*core.InventoryAlert, error) {
	item, err := l.store.Catalog().GetStockItem(ctx, stockItemID)
	if err != nil {
		return nil, err
	}
	if !item.IsLow() {
		return nil, nil
	}

	alert := &core.InventoryAlert{
		ID:               uuid.New().String(),
		RestaurantID:     item.RestaurantID,
		BranchID:         item.BranchID,
		StockItemID:      item.ID,
		Kind:             core.AlertLowStock,
		Message:          fmt.Sprintf("%s is low: %s %s left (minimum %s)", item.Name, item.CurrentQuantity, item.Unit, item.MinimumQuantity),
		CurrentQuantity:  item.CurrentQuantity,
		RequiredQuantity: item.MinimumQuantity,
		CreatedAt:        l.now(),
	}
	created, err := l.store.Alerts().OpenInventoryAlert(ctx, alert)
	if err != nil {
		return nil, fmt.Errorf("failed to open low stock alert: %w", err)
	}
	if !created {
		return nil, nil
	}

	l.logger.Warn("stock item low",
		zap.String("stock_item_id", item.ID),
		zap.String("name", item.Name),
		zap.String("current", item.CurrentQuantity.String()))
	if l.bus != nil {
		_ = l.bus.Publish(ctx, events.Event{
			Type:        events.EventStockLow,
			AggregateID: item.ID,
			Data: events.StockLow{
				StockItemID:     item.ID,
				Name:            item.Name,
				CurrentQuantity: item.CurrentQuantity,
				MinimumQuantity: item.MinimumQuantity,
			},
		})
	}
	return alert, nil
}

// ReportShortfall opens an insufficient alert for a deduction that could not be made
func (l *InventoryLedger) ReportShortfall(ctx context.Context, stockItemID string, required decimal.Decimal, orderRef string) (*core.InventoryAlert, error) {
	item, err := l.store.Catalog().GetStockItem(ctx, stockItemID)
	if err != nil {
		return nil, err
	}
	alert := &core.InventoryAlert{
		ID:               uuid.New().String(),
		RestaurantID:     item.RestaurantID,
		BranchID:         item.BranchID,
		StockItemID:      item.ID,
		Kind:             core.AlertInsufficient,
		Message:          fmt.Sprintf("%s short by %s %s", item.Name, required.Sub(item.CurrentQuantity), item.Unit),
		CurrentQuantity:  item.CurrentQuantity,
		RequiredQuantity: required,
		OrderRef:         orderRef,
		CreatedAt:        l.now(),
	}
	created, err := l.store.Alerts().OpenInventoryAlert(ctx, alert)
	if err != nil {
		return nil, fmt.Errorf("failed to open shortfall alert: %w", err)
	}
	if !created {
		return nil, nil
	}
	return alert, nil
}

// ListTransactions returns ledger entries matching filter
func (l *InventoryLedger) ListTransactions(ctx context.Context, filter core.TransactionFilter) ([]*core.StockTransaction, error) {
	return l.store.Ledger().ListTransactions(ctx, filter)
}

// ListAlerts returns inventory alerts matching filter
func (l *InventoryLedger) ListAlerts(ctx context.Context, filter core.AlertFilter) ([]*core.InventoryAlert, error) {
	return l.store.Alerts().ListInventoryAlerts(ctx, filter)
}
