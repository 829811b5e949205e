package service

import (
	"testing"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/dumu-tech/restaurant-ops/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) recordWaste(t *testing.T, reasonID, quantity string) *core.WasteRecord {
	t.Helper()
	record, err := f.waste.RecordWaste(f.ctx, waiter, RecordWasteRequest{
		StockItemID: seed.ChickenID,
		Quantity:    dec(quantity),
		ReasonID:    reasonID,
	})
	require.NoError(t, err)
	return record
}

func TestApprovedWasteRecomputesProfit(t *testing.T) {
	f := newFixture(t)
	f.completeWithCash(t)
	before := f.daily(t, seed.BranchID)
	assertDecimal(t, "675", before.Revenue)
	assertDecimal(t, "25.18", before.CostOfGoods)
	assertDecimal(t, "649.82", before.NetProfit)

	record := f.recordWaste(t, seed.SpoilageReasonID, "0.30")
	assert.Equal(t, core.WastePending, record.Status)
	assertDecimal(t, "6.75", record.TotalCost)
	assert.Equal(t, core.PriorityLow, record.Priority)
	assertDecimal(t, "9.3", f.stock(t, seed.ChickenID))

	pending := f.daily(t, seed.BranchID)
	assertDecimal(t, "0", pending.WasteCost)
	assertDecimal(t, "649.82", pending.NetProfit)

	approved, err := f.waste.Approve(f.ctx, manager, record.ID, "confirmed in cold room")
	require.NoError(t, err)
	assert.Equal(t, core.WasteApproved, approved.Status)
	assert.Equal(t, manager.UserID, approved.ReviewedBy)
	assert.NotNil(t, approved.ReviewedAt)

	after := f.daily(t, seed.BranchID)
	assertDecimal(t, "6.75", after.WasteCost)
	assertDecimal(t, "643.07", after.NetProfit)
	assertDecimal(t, "26.81", after.WastePercentage)
	assert.True(t, after.NetProfit.Equal(after.Revenue.Sub(after.CostOfGoods).Sub(after.WasteCost)))

	wide := f.daily(t, "")
	assertDecimal(t, "6.75", wide.WasteCost)
	assertDecimal(t, "643.07", wide.NetProfit)

	alerts, err := f.profit.ListProfitAlerts(f.ctx, seed.RestaurantID, f.today(), f.today())
	require.NoError(t, err)
	kinds := map[core.ProfitAlertKind]bool{}
	for _, a := range alerts {
		kinds[a.Kind] = true
	}
	assert.True(t, kinds[core.ProfitAlertHighWaste])
	assert.False(t, kinds[core.ProfitAlertNegative])
}

func TestWasteWithoutApprovalCountsImmediately(t *testing.T) {
	f := newFixture(t)
	record := f.recordWaste(t, seed.DroppedReasonID, "1")
	assert.Equal(t, core.WasteApproved, record.Status)
	assert.Equal(t, core.SystemActor.UserID, record.ReviewedBy)
	assert.Equal(t, core.PriorityMedium, record.Priority)

	daily := f.daily(t, seed.BranchID)
	assertDecimal(t, "22.5", daily.WasteCost)
	assertDecimal(t, "-22.5", daily.NetProfit)
	assertDecimal(t, "0", daily.ProfitMargin)
	assertDecimal(t, "0", daily.WastePercentage)

	alerts, err := f.profit.ListProfitAlerts(f.ctx, seed.RestaurantID, f.today(), f.today())
	require.NoError(t, err)
	require.NotEmpty(t, alerts)
	assert.Equal(t, core.ProfitAlertNegative, alerts[0].Kind)
}

func TestRejectedWasteReturnsStock(t *testing.T) {
	f := newFixture(t)
	record := f.recordWaste(t, seed.SpoilageReasonID, "0.5")
	assertDecimal(t, "9.5", f.stock(t, seed.ChickenID))

	_, err := f.waste.Reject(f.ctx, manager, record.ID, "  ")
	assert.Equal(t, core.KindValidationFailed, core.KindOf(err))

	rejected, err := f.waste.Reject(f.ctx, manager, record.ID, "found in back fridge")
	require.NoError(t, err)
	assert.Equal(t, core.WasteRejected, rejected.Status)
	assert.Equal(t, "found in back fridge", rejected.ReviewNotes)
	assertDecimal(t, "10", f.stock(t, seed.ChickenID))

	entries, err := f.ledger.ListTransactions(f.ctx, core.TransactionFilter{StockItemID: seed.ChickenID})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	_, err = f.waste.Approve(f.ctx, manager, record.ID, "")
	assert.Equal(t, core.KindInvalidTransition, core.KindOf(err))

	daily := f.daily(t, seed.BranchID)
	assertDecimal(t, "0", daily.WasteCost)
}

func TestInvestigateThenApprove(t *testing.T) {
	f := newFixture(t)
	record := f.recordWaste(t, seed.SpoilageReasonID, "0.2")

	investigating, err := f.waste.Investigate(f.ctx, manager, record.ID, "check fridge logs")
	require.NoError(t, err)
	assert.Equal(t, core.WasteInvestigating, investigating.Status)

	_, err = f.waste.Investigate(f.ctx, manager, record.ID, "again")
	assert.Equal(t, core.KindInvalidTransition, core.KindOf(err))

	approved, err := f.waste.Approve(f.ctx, manager, record.ID, "fridge failed overnight")
	require.NoError(t, err)
	assert.Equal(t, core.WasteApproved, approved.Status)
	assertDecimal(t, "4.5", f.daily(t, seed.BranchID).WasteCost)
}

func TestWasteReasonRequirements(t *testing.T) {
	f := newFixture(t)
	req := RecordWasteRequest{StockItemID: seed.ChickenID, Quantity: dec("0.2"), ReasonID: seed.TheftReasonID, Notes: "no"}
	_, err := f.waste.RecordWaste(f.ctx, waiter, req)
	assert.Equal(t, core.KindValidationFailed, core.KindOf(err))

	req.Notes = "missing after close"
	_, err = f.waste.RecordWaste(f.ctx, waiter, req)
	assert.Equal(t, core.KindValidationFailed, core.KindOf(err))

	req.PhotoURL = "https://cdn.example.com/waste/1.jpg"
	record, err := f.waste.RecordWaste(f.ctx, waiter, req)
	require.NoError(t, err)
	assert.Equal(t, core.WastePending, record.Status)

	_, err = f.waste.RecordWaste(f.ctx, waiter, RecordWasteRequest{StockItemID: seed.ChickenID, Quantity: dec("0"), ReasonID: seed.DroppedReasonID})
	assert.Equal(t, core.KindValidationFailed, core.KindOf(err))

	_, err = f.waste.RecordWaste(f.ctx, waiter, RecordWasteRequest{StockItemID: seed.ChickenID, Quantity: dec("50"), ReasonID: seed.DroppedReasonID})
	assert.Equal(t, core.KindInsufficientStock, core.KindOf(err))
	assertDecimal(t, "9.8", f.stock(t, seed.ChickenID))
}

func TestRecurringWasteRaisesAlert(t *testing.T) {
	f := newFixture(t)
	first := f.recordWaste(t, seed.DroppedReasonID, "0.1")
	assert.False(t, first.IsRecurringIssue)

	f.clock.Advance(24 * time.Hour)
	second := f.recordWaste(t, seed.DroppedReasonID, "0.1")
	assert.True(t, second.IsRecurringIssue)
	require.NotEmpty(t, second.RecurrenceID)

	linked, err := f.waste.GetWasteRecord(f.ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, linked.IsRecurringIssue)
	assert.Equal(t, second.RecurrenceID, linked.RecurrenceID)

	alerts, err := f.waste.ListAlerts(f.ctx, seed.RestaurantID)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	f.clock.Advance(24 * time.Hour)
	third := f.recordWaste(t, seed.DroppedReasonID, "0.1")
	assert.Equal(t, second.RecurrenceID, third.RecurrenceID)

	alerts, err = f.waste.ListAlerts(f.ctx, seed.RestaurantID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, core.WasteAlertRecurringIssue, alerts[0].Kind)
	assert.Equal(t, 3, alerts[0].Occurrences)
	assert.Equal(t, third.RecurrenceID, alerts[0].RecurrenceID)

	// a different reason is a different issue
	other := f.recordWaste(t, seed.SpoilageReasonID, "0.1")
	assert.False(t, other.IsRecurringIssue)
}

func TestWasteAlertDayIsBusinessDay(t *testing.T) {
	f := newFixture(t)
	// 00:30 on 12 March in Addis Ababa is still 11 March in UTC
	f.clock.Set(time.Date(2026, 3, 11, 21, 30, 0, 0, time.UTC))
	for i := 0; i < 3; i++ {
		f.recordWaste(t, seed.DroppedReasonID, "0.1")
		f.clock.Advance(time.Minute)
	}

	alerts, err := f.waste.ListAlerts(f.ctx, seed.RestaurantID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	want := time.Date(2026, 3, 12, 0, 0, 0, 0, eat)
	assert.Truef(t, want.Equal(alerts[0].Day), "want %s, got %s", want, alerts[0].Day)
}

func TestRecurrenceWindowIsSevenDays(t *testing.T) {
	f := newFixture(t)
	f.recordWaste(t, seed.DroppedReasonID, "0.1")
	f.clock.Advance(8 * 24 * time.Hour)
	late := f.recordWaste(t, seed.DroppedReasonID, "0.1")
	assert.False(t, late.IsRecurringIssue)
}

func TestLargeWasteIsCriticalAndLowersStock(t *testing.T) {
	f := newFixture(t)
	record := f.recordWaste(t, seed.DroppedReasonID, "8.5")
	assert.Equal(t, core.PriorityCritical, record.Priority)

	low, err := f.ledger.ListAlerts(f.ctx, core.AlertFilter{StockItemID: seed.ChickenID, Kind: core.AlertLowStock, UnresolvedOnly: true})
	require.NoError(t, err)
	assert.Len(t, low, 1)

	listed, err := f.waste.ListWaste(f.ctx, core.WasteFilter{RestaurantID: seed.RestaurantID, Statuses: []core.WasteStatus{core.WasteApproved}})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, record.ID, listed[0].ID)
}
