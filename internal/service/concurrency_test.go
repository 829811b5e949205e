package service

import (
	"sync"
	"testing"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/dumu-tech/restaurant-ops/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const readLatency = 5 * time.Millisecond

// runConcurrently starts n callers together and returns their errors
func runConcurrently(n int, fn func(i int) error) []error {
	errs := make([]error, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = fn(i)
		}(i)
	}
	close(start)
	wg.Wait()
	return errs
}

func countKinds(errs []error) map[core.ErrorKind]int {
	out := make(map[core.ErrorKind]int)
	for _, err := range errs {
		if err == nil {
			out[""]++
			continue
		}
		out[core.KindOf(err)]++
	}
	return out
}

func TestConcurrentRetriesDeductOnce(t *testing.T) {
	f := newFixtureWithLatency(t, readLatency)
	f.setStock(t, seed.CheeseID, dec("0.05"))

	order, _ := f.completeWithCash(t)
	require.False(t, order.InventoryDeducted)
	_, err := f.ledger.Receive(f.ctx, seed.CheeseID, dec("10"), dec("40"), "restock", manager)
	require.NoError(t, err)

	results := make([]*DeductionResult, 2)
	errs := runConcurrently(2, func(i int) error {
		var err error
		results[i], err = f.deduction.RetryDeduction(f.ctx, manager, order.ID)
		return err
	})
	for _, err := range errs {
		require.NoError(t, err)
	}

	written := 0
	for _, r := range results {
		assert.True(t, r.Complete)
		assert.Empty(t, r.Shortfalls)
		written += len(r.Entries)
	}
	assert.Equal(t, 1, written)

	cheese, err := f.ledger.ListTransactions(f.ctx, core.TransactionFilter{
		StockItemID: seed.CheeseID,
		OrderRef:    order.ID,
		Type:        core.TransactionUsage,
	})
	require.NoError(t, err)
	assert.Len(t, cheese, 1)
	assertDecimal(t, "9.95", f.stock(t, seed.CheeseID))
	assert.Len(t, f.usageEntries(t, order.ID), 3)

	got, err := f.orders.GetOrder(f.ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.InventoryDeducted)
}

func TestConcurrentDeductsOnRecordedOrder(t *testing.T) {
	f := newFixtureWithLatency(t, readLatency)
	order, _ := f.completeWithCash(t)

	// clear the flag so every caller finds the order outstanding
	got, err := f.store.Orders().GetOrder(f.ctx, order.ID)
	require.NoError(t, err)
	got.InventoryDeducted = false
	require.NoError(t, f.store.Orders().UpdateOrder(f.ctx, got))

	errs := runConcurrently(4, func(int) error {
		_, err := f.deduction.Deduct(f.ctx, order.ID)
		return err
	})
	for _, err := range errs {
		require.NoError(t, err)
	}

	assert.Len(t, f.usageEntries(t, order.ID), 3)
	assertDecimal(t, "9.6", f.stock(t, seed.ChickenID))
	assertDecimal(t, "4.94", f.stock(t, seed.OnionsID))
	assertDecimal(t, "1.9", f.stock(t, seed.CheeseID))
}

func TestConcurrentConsumersNeverOverdraw(t *testing.T) {
	f := newFixtureWithLatency(t, readLatency)
	f.setStock(t, seed.ChickenID, dec("1"))

	errs := runConcurrently(10, func(int) error {
		_, err := f.ledger.Consume(f.ctx, seed.ChickenID, dec("0.3"), "staff meal", manager, "", "")
		return err
	})

	kinds := countKinds(errs)
	assert.Equal(t, 3, kinds[""])
	assert.Equal(t, 7, kinds[core.KindInsufficientStock])
	assertDecimal(t, "0.1", f.stock(t, seed.ChickenID))

	entries, err := f.ledger.ListTransactions(f.ctx, core.TransactionFilter{StockItemID: seed.ChickenID, Type: core.TransactionUsage})
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestConcurrentTransitionsApplyOnce(t *testing.T) {
	f := newFixtureWithLatency(t, readLatency)
	order := f.placeOrder(t)

	errs := runConcurrently(6, func(int) error {
		_, err := f.orders.Transition(f.ctx, waiter, order.ID, core.OrderStatusPreparing, TransitionOptions{})
		return err
	})
	kinds := countKinds(errs)
	assert.Equal(t, 1, kinds[""])
	assert.Equal(t, 5, kinds[core.KindInvalidTransition])

	errs = runConcurrently(6, func(int) error {
		_, err := f.orders.Transition(f.ctx, waiter, order.ID, core.OrderStatusCancelled, TransitionOptions{Reason: "kitchen closed"})
		return err
	})
	kinds = countKinds(errs)
	assert.Equal(t, 1, kinds[""])
	assert.Equal(t, 5, kinds[core.KindInvalidTransition])

	got, err := f.orders.GetOrder(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, core.OrderStatusCancelled, got.Status)
	assert.NotNil(t, got.PreparationStartedAt)
	assert.NotNil(t, got.CancelledAt)
}
