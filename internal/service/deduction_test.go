package service

import (
	"testing"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/dumu-tech/restaurant-ops/internal/events"
	"github.com/dumu-tech/restaurant-ops/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) usageEntries(t *testing.T, orderID string) map[string]*core.StockTransaction {
	t.Helper()
	entries, err := f.ledger.ListTransactions(f.ctx, core.TransactionFilter{OrderRef: orderID, Type: core.TransactionUsage})
	require.NoError(t, err)
	out := make(map[string]*core.StockTransaction, len(entries))
	for _, e := range entries {
		require.NotContains(t, out, e.StockItemID, "one usage entry per stock item and menu item")
		out[e.StockItemID] = e
	}
	return out
}

func TestCompletedOrderDeductsRecipe(t *testing.T) {
	f := newFixture(t)
	order, _ := f.completeWithCash(t)
	assert.True(t, order.InventoryDeducted)

	entries := f.usageEntries(t, order.ID)
	require.Len(t, entries, 3)
	assertDecimal(t, "0.40", entries[seed.ChickenID].Quantity)
	assertDecimal(t, "0.06", entries[seed.OnionsID].Quantity)
	assertDecimal(t, "0.10", entries[seed.CheeseID].Quantity)
	assertDecimal(t, "9.00", entries[seed.ChickenID].TotalCost)
	assert.Equal(t, core.DirectionOut, entries[seed.ChickenID].Direction)
	assert.Equal(t, seed.DoroWatID, entries[seed.ChickenID].MenuItemRef)
	assert.Equal(t, core.SystemActor.UserID, entries[seed.ChickenID].ActorID)

	assertDecimal(t, "9.6", f.stock(t, seed.ChickenID))
	assertDecimal(t, "4.94", f.stock(t, seed.OnionsID))
	assertDecimal(t, "1.9", f.stock(t, seed.CheeseID))
}

func TestReplayedOrderCompletedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	order, _ := f.completeWithCash(t)
	before := f.daily(t, seed.BranchID)

	err := f.bus.Publish(f.ctx, events.Event{
		Type:        events.EventOrderCompleted,
		AggregateID: order.ID,
		Data: events.OrderCompleted{
			OrderID:      order.ID,
			RestaurantID: order.RestaurantID,
			BranchID:     order.BranchID,
			CompletedAt:  *order.CompletedAt,
		},
	})
	require.NoError(t, err)

	all, err := f.ledger.ListTransactions(f.ctx, core.TransactionFilter{OrderRef: order.ID})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assertDecimal(t, "9.6", f.stock(t, seed.ChickenID))

	after := f.daily(t, seed.BranchID)
	assert.True(t, before.Revenue.Equal(after.Revenue))
	assert.True(t, before.CostOfGoods.Equal(after.CostOfGoods))
	assert.True(t, before.NetProfit.Equal(after.NetProfit))
	assert.Equal(t, before.OrderCount, after.OrderCount)
}

func TestShortfallLeavesOrderRetryable(t *testing.T) {
	f := newFixture(t)
	f.setStock(t, seed.CheeseID, dec("0.05"))

	order, _ := f.completeWithCash(t)
	assert.Equal(t, core.OrderStatusCompleted, order.Status)
	assert.False(t, order.InventoryDeducted)

	entries := f.usageEntries(t, order.ID)
	require.Len(t, entries, 2)
	assert.Contains(t, entries, seed.ChickenID)
	assert.Contains(t, entries, seed.OnionsID)
	assertDecimal(t, "0.05", f.stock(t, seed.CheeseID))

	shortfalls, err := f.ledger.ListAlerts(f.ctx, core.AlertFilter{StockItemID: seed.CheeseID, Kind: core.AlertInsufficient})
	require.NoError(t, err)
	require.Len(t, shortfalls, 1)
	assert.Equal(t, order.ID, shortfalls[0].OrderRef)
	assertDecimal(t, "0.10", shortfalls[0].RequiredQuantity)

	low, err := f.ledger.ListAlerts(f.ctx, core.AlertFilter{StockItemID: seed.CheeseID, Kind: core.AlertLowStock, UnresolvedOnly: true})
	require.NoError(t, err)
	assert.Len(t, low, 1)

	_, err = f.ledger.Receive(f.ctx, seed.CheeseID, dec("1"), dec("40"), "restock", manager)
	require.NoError(t, err)
	low, err = f.ledger.ListAlerts(f.ctx, core.AlertFilter{StockItemID: seed.CheeseID, Kind: core.AlertLowStock, UnresolvedOnly: true})
	require.NoError(t, err)
	assert.Empty(t, low)

	result, err := f.deduction.RetryDeduction(f.ctx, manager, order.ID)
	require.NoError(t, err)
	assert.True(t, result.Complete)
	assert.Len(t, result.Entries, 1)
	assert.Empty(t, result.Shortfalls)

	assert.Len(t, f.usageEntries(t, order.ID), 3)
	assertDecimal(t, "0.95", f.stock(t, seed.CheeseID))
	assertDecimal(t, "9.6", f.stock(t, seed.ChickenID))

	got, err := f.orders.GetOrder(f.ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.InventoryDeducted)

	again, err := f.deduction.RetryDeduction(f.ctx, manager, order.ID)
	require.NoError(t, err)
	assert.True(t, again.Complete)
	assert.Empty(t, again.Entries)
}

func TestDeductRequiresCompletedOrder(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)
	_, err := f.deduction.Deduct(f.ctx, order.ID)
	assert.Equal(t, core.KindPreconditionFailed, core.KindOf(err))
}

func TestReverseRestoresStock(t *testing.T) {
	f := newFixture(t)
	order, _ := f.completeWithCash(t)

	reversals, err := f.deduction.Reverse(f.ctx, order.ID, manager, "voided sale")
	require.NoError(t, err)
	require.Len(t, reversals, 3)
	for _, r := range reversals {
		assert.Equal(t, core.TransactionAdjustment, r.Type)
		assert.Equal(t, core.DirectionIn, r.Direction)
		assert.NotEmpty(t, r.ReversalOf)
	}
	assertDecimal(t, "10", f.stock(t, seed.ChickenID))
	assertDecimal(t, "5", f.stock(t, seed.OnionsID))
	assertDecimal(t, "2", f.stock(t, seed.CheeseID))

	got, err := f.orders.GetOrder(f.ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, got.InventoryDeducted)

	second, err := f.deduction.Reverse(f.ctx, order.ID, manager, "voided sale")
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestWasteFactorInflatesUsage(t *testing.T) {
	f := newFixture(t)
	order, err := f.orders.CreateOrder(f.ctx, waiter, CreateOrderRequest{
		TableID: seed.TableT2ID,
		Type:    core.OrderTypeWaiter,
		Items:   []OrderItemInput{{MenuItemID: seed.TibsID, Quantity: 2}},
	})
	require.NoError(t, err)
	f.serve(t, order.ID)
	_, err = f.payments.CreatePayment(f.ctx, waiter, order.ID, core.PaymentMethodCash, order.TotalAmount)
	require.NoError(t, err)

	entries := f.usageEntries(t, order.ID)
	require.Len(t, entries, 1)
	// 0.25 kg × 1.20 × 2
	assertDecimal(t, "0.6", entries[seed.BeefID].Quantity)
	assertDecimal(t, "7.4", f.stock(t, seed.BeefID))
}

func TestCancelledEventReversesDeductedOrder(t *testing.T) {
	f := newFixture(t)
	order, _ := f.completeWithCash(t)
	require.True(t, order.InventoryDeducted)

	err := f.bus.Publish(f.ctx, events.Event{
		Type:        events.EventOrderCancelled,
		AggregateID: order.ID,
		Data:        events.OrderCancelled{OrderID: order.ID, InventoryDeducted: true, Reason: "comped"},
	})
	require.NoError(t, err)

	assertDecimal(t, "10", f.stock(t, seed.ChickenID))
	assertDecimal(t, "5", f.stock(t, seed.OnionsID))
	assertDecimal(t, "2", f.stock(t, seed.CheeseID))
	got, err := f.orders.GetOrder(f.ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, got.InventoryDeducted)
}

func TestCancelBeforeCompletionLeavesLedgerAlone(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)

	_, err := f.orders.Transition(f.ctx, waiter, order.ID, core.OrderStatusCancelled, TransitionOptions{Reason: "guest left"})
	require.NoError(t, err)

	entries, err := f.ledger.ListTransactions(f.ctx, core.TransactionFilter{OrderRef: order.ID})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assertDecimal(t, "10", f.stock(t, seed.ChickenID))
}
