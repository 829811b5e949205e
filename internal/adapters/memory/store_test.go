package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/dumu-tech/restaurant-ops/internal/seed"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicRollsBack(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Atomic(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Ledger().SetStockQuantity(ctx, seed.ChickenID, decimal.NewFromInt(1), time.Now()))
		require.NoError(t, s.Ledger().AppendTransaction(ctx, &core.StockTransaction{ID: "t-1", StockItemID: seed.ChickenID}))
		// a nested unit of work joins the outer one
		return s.Atomic(ctx, func(ctx context.Context) error { return boom })
	})
	assert.ErrorIs(t, err, boom)

	item, err := s.Catalog().GetStockItem(ctx, seed.ChickenID)
	require.NoError(t, err)
	assert.Equal(t, "10", item.CurrentQuantity.String())
	_, err = s.Ledger().GetTransaction(ctx, "t-1")
	assert.Equal(t, core.KindNotFound, core.KindOf(err))
}

func TestAtomicCommits(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	err := s.Atomic(ctx, func(ctx context.Context) error {
		return s.Ledger().SetStockQuantity(ctx, seed.ChickenID, decimal.NewFromInt(7), time.Now())
	})
	require.NoError(t, err)
	item, err := s.Catalog().GetStockItem(ctx, seed.ChickenID)
	require.NoError(t, err)
	assert.Equal(t, "7", item.CurrentQuantity.String())
}

func TestInventoryAlertDedup(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	alert := func() *core.InventoryAlert {
		return &core.InventoryAlert{ID: time.Now().String(), RestaurantID: seed.RestaurantID, StockItemID: seed.CheeseID, Kind: core.AlertLowStock}
	}

	created, err := s.Alerts().OpenInventoryAlert(ctx, alert())
	require.NoError(t, err)
	assert.True(t, created)
	created, err = s.Alerts().OpenInventoryAlert(ctx, alert())
	require.NoError(t, err)
	assert.False(t, created)

	n, err := s.Alerts().ResolveInventoryAlerts(ctx, seed.CheeseID, core.AlertLowStock, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	created, err = s.Alerts().OpenInventoryAlert(ctx, alert())
	require.NoError(t, err)
	assert.True(t, created, "a resolved alert does not block a new one")
}

func TestSequencerIsPerDayAndScope(t *testing.T) {
	seq := NewSequencer()
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	seen := make(chan int64, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := seq.Next(ctx, "order", seed.RestaurantID, day)
			assert.NoError(t, err)
			seen <- n
		}()
	}
	wg.Wait()
	close(seen)
	unique := make(map[int64]bool)
	for n := range seen {
		unique[n] = true
	}
	assert.Len(t, unique, 50)

	n, err := seq.Next(ctx, "order", seed.RestaurantID, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = seq.Next(ctx, "receipt", seed.RestaurantID, day)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTableTokensExpire(t *testing.T) {
	tokens := NewTableTokens()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, tokens.SaveTableToken(ctx, "tok", seed.TableT1ID, time.Hour))
	tableID, err := tokens.LookupTableToken(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, seed.TableT1ID, tableID)

	now = now.Add(time.Hour)
	_, err = tokens.LookupTableToken(ctx, "tok")
	assert.Equal(t, core.KindNotFound, core.KindOf(err))
}
