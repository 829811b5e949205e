package service

import (
	"testing"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/dumu-tech/restaurant-ops/internal/seed"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerKeepsQuantityInStep(t *testing.T) {
	f := newFixture(t)
	initial := f.stock(t, seed.ChickenID)

	received, err := f.ledger.Receive(f.ctx, seed.ChickenID, dec("2"), dec("25"), "market run", manager)
	require.NoError(t, err)
	assertDecimal(t, "25", received.UnitCost)
	assertDecimal(t, "50", received.TotalCost)
	assert.Equal(t, core.DirectionIn, received.Direction)

	used, err := f.ledger.Consume(f.ctx, seed.ChickenID, dec("1.5"), "staff meal", manager, "", "")
	require.NoError(t, err)
	assertDecimal(t, "22.50", used.UnitCost)

	_, err = f.ledger.Adjust(f.ctx, seed.ChickenID, dec("0.5"), core.DirectionOut, "recount", manager)
	require.NoError(t, err)
	_, err = f.ledger.RecordTransaction(f.ctx, RecordRequest{
		StockItemID: seed.ChickenID,
		Type:        core.TransactionTransfer,
		Direction:   core.DirectionOut,
		Quantity:    dec("0.25"),
		Reason:      "to branch 2",
		Actor:       manager,
	})
	require.NoError(t, err)
	_, err = f.ledger.Void(f.ctx, used.ID, manager, "entered twice")
	require.NoError(t, err)

	assertDecimal(t, "11.25", f.stock(t, seed.ChickenID))

	entries, err := f.ledger.ListTransactions(f.ctx, core.TransactionFilter{StockItemID: seed.ChickenID})
	require.NoError(t, err)
	require.Len(t, entries, 5)
	sum := initial
	for _, e := range entries {
		if e.Direction == core.DirectionIn {
			sum = sum.Add(e.Quantity)
		} else {
			sum = sum.Sub(e.Quantity)
		}
	}
	assert.True(t, sum.Equal(f.stock(t, seed.ChickenID)), "ledger sums to %s", sum)
}

func TestRecordTransactionValidation(t *testing.T) {
	f := newFixture(t)
	negative := dec("-1")
	cases := []struct {
		name string
		req  RecordRequest
	}{
		{"zero quantity", RecordRequest{StockItemID: seed.ChickenID, Type: core.TransactionUsage, Quantity: decimal.Zero}},
		{"unknown type", RecordRequest{StockItemID: seed.ChickenID, Type: "gift", Quantity: dec("1")}},
		{"adjustment without direction", RecordRequest{StockItemID: seed.ChickenID, Type: core.TransactionAdjustment, Quantity: dec("1")}},
		{"negative unit cost", RecordRequest{StockItemID: seed.ChickenID, Type: core.TransactionPurchase, Quantity: dec("1"), UnitCost: &negative}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ledger.RecordTransaction(f.ctx, tc.req)
			assert.Equal(t, core.KindValidationFailed, core.KindOf(err))
		})
	}

	_, err := f.ledger.Adjust(f.ctx, seed.ChickenID, dec("1"), core.DirectionIn, "", manager)
	assert.Equal(t, core.KindValidationFailed, core.KindOf(err))

	_, err = f.ledger.Consume(f.ctx, "missing", dec("1"), "x", manager, "", "")
	assert.Equal(t, core.KindNotFound, core.KindOf(err))

	entries, err := f.ledger.ListTransactions(f.ctx, core.TransactionFilter{StockItemID: seed.ChickenID})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestConsumeMoreThanOnHand(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Consume(f.ctx, seed.CheeseID, dec("2.01"), "party", manager, "", "")
	require.Error(t, err)
	assert.Equal(t, core.KindInsufficientStock, core.KindOf(err))
	assertDecimal(t, "2", f.stock(t, seed.CheeseID))

	// taking the last gram is allowed
	_, err = f.ledger.Consume(f.ctx, seed.CheeseID, dec("2"), "party", manager, "", "")
	require.NoError(t, err)
	assertDecimal(t, "0", f.stock(t, seed.CheeseID))

	low, err := f.ledger.ListAlerts(f.ctx, core.AlertFilter{StockItemID: seed.CheeseID, Kind: core.AlertLowStock})
	require.NoError(t, err)
	assert.Len(t, low, 1)
}

func TestVoidOnlyOnce(t *testing.T) {
	f := newFixture(t)
	entry, err := f.ledger.Receive(f.ctx, seed.OnionsID, dec("1"), dec("3"), "delivery", manager)
	require.NoError(t, err)

	reversal, err := f.ledger.Void(f.ctx, entry.ID, manager, "wrong item")
	require.NoError(t, err)
	assert.Equal(t, entry.ID, reversal.ReversalOf)
	assert.Equal(t, core.DirectionOut, reversal.Direction)
	assert.Equal(t, core.TransactionAdjustment, reversal.Type)
	assertDecimal(t, "5", f.stock(t, seed.OnionsID))

	_, err = f.ledger.Void(f.ctx, entry.ID, manager, "again")
	assert.Equal(t, core.KindConflict, core.KindOf(err))

	_, err = f.ledger.Void(f.ctx, reversal.ID, manager, "undo the undo")
	assert.Equal(t, core.KindValidationFailed, core.KindOf(err))

	_, err = f.ledger.Void(f.ctx, "missing", manager, "x")
	assert.Equal(t, core.KindNotFound, core.KindOf(err))
	assertDecimal(t, "5", f.stock(t, seed.OnionsID))
}

func TestLowStockAlertOpensOnce(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Consume(f.ctx, seed.OnionsID, dec("4"), "prep", manager, "", "")
	require.NoError(t, err)
	_, err = f.ledger.Consume(f.ctx, seed.OnionsID, dec("0.5"), "prep", manager, "", "")
	require.NoError(t, err)

	again, err := f.ledger.CheckLowStock(f.ctx, seed.OnionsID)
	require.NoError(t, err)
	assert.Nil(t, again)

	alerts, err := f.ledger.ListAlerts(f.ctx, core.AlertFilter{StockItemID: seed.OnionsID, UnresolvedOnly: true})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, core.AlertLowStock, alerts[0].Kind)
	assertDecimal(t, "1", alerts[0].CurrentQuantity)
}
