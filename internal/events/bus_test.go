package events

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingFailures struct {
	mu       sync.Mutex
	failures []*core.HandlerFailure
}

func (r *recordingFailures) RecordHandlerFailure(_ context.Context, f *core.HandlerFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, f)
	return nil
}

func newTestBus() (*EventBus, *recordingFailures) {
	failures := &recordingFailures{}
	bus := NewEventBus(zap.NewNop(), failures)
	bus.SetRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond})
	return bus, failures
}

func TestPublishRunsHandlersInRegistrationOrder(t *testing.T) {
	bus, _ := newTestBus()
	var calls []string
	bus.On(EventOrderCompleted, "first", func(context.Context, Event) error {
		calls = append(calls, "first")
		return nil
	})
	bus.On(EventOrderCompleted, "second", func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})
	bus.On(EventWasteApproved, "other", func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := bus.Publish(context.Background(), Event{Type: EventOrderCompleted, AggregateID: "o1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestPublishRetriesConflictsThenSucceeds(t *testing.T) {
	bus, failures := newTestBus()
	attempts := 0
	bus.On(EventPriceChanged, "flaky", func(context.Context, Event) error {
		attempts++
		if attempts < 3 {
			return core.Conflict("row changed underneath", nil)
		}
		return nil
	})

	err := bus.Publish(context.Background(), Event{Type: EventPriceChanged, AggregateID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Empty(t, failures.failures)
}

func TestPublishRecordsExhaustedFailure(t *testing.T) {
	bus, failures := newTestBus()
	attempts := 0
	bus.On(EventWasteApproved, "gateway", func(context.Context, Event) error {
		attempts++
		return core.Gateway("timeout", errors.New("deadline exceeded"))
	})
	var laterRan bool
	bus.On(EventWasteApproved, "later", func(context.Context, Event) error {
		laterRan = true
		return nil
	})

	err := bus.Publish(context.Background(), Event{Type: EventWasteApproved, AggregateID: "w1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrExternalGatewayError)
	assert.Equal(t, 3, attempts)
	assert.True(t, laterRan)

	require.Len(t, failures.failures, 1)
	f := failures.failures[0]
	assert.Equal(t, "gateway", f.Handler)
	assert.Equal(t, "w1", f.AggregateID)
	assert.Equal(t, 3, f.Attempts)
	assert.Equal(t, core.KindExternalGatewayError, f.ErrorKind)
}

func TestPublishDoesNotRetryValidationErrors(t *testing.T) {
	bus, failures := newTestBus()
	attempts := 0
	bus.On(EventRecipeChanged, "strict", func(context.Context, Event) error {
		attempts++
		return core.Validation("menu_item_id", "unknown menu item")
	})

	err := bus.Publish(context.Background(), Event{Type: EventRecipeChanged, AggregateID: "m1"})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	require.Len(t, failures.failures, 1)
}

func TestPublishRecoversPanickingHandler(t *testing.T) {
	bus, failures := newTestBus()
	bus.On(EventOrderCancelled, "boom", func(context.Context, Event) error {
		panic("nil map")
	})

	err := bus.Publish(context.Background(), Event{Type: EventOrderCancelled, AggregateID: "o1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	require.Len(t, failures.failures, 1)
	assert.Equal(t, core.KindInternal, failures.failures[0].ErrorKind)
}

func TestPublishSerialisesSameAggregate(t *testing.T) {
	bus, _ := newTestBus()
	var mu sync.Mutex
	active, maxActive := 0, 0
	bus.On(EventOrderStatusChanged, "slow", func(context.Context, Event) error {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = bus.Publish(context.Background(), Event{Type: EventOrderStatusChanged, AggregateID: "same"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxActive)
}

func TestSubscribeReceivesBroadcast(t *testing.T) {
	bus, _ := newTestBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bus.Subscribe(ctx, "dashboard")
	require.NoError(t, bus.Publish(context.Background(), Event{
		Type:        EventStockLow,
		AggregateID: "s1",
		Data:        StockLow{StockItemID: "s1", Name: "Cheese"},
	}))

	select {
	case evt := <-ch:
		assert.Equal(t, EventStockLow, evt.Type)
		assert.False(t, evt.OccurredAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected broadcast event")
	}
}

func TestFormatSSE(t *testing.T) {
	out, err := FormatSSE(Event{Type: EventOrderCompleted, AggregateID: "o1", Data: OrderCompleted{OrderID: "o1"}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "event: order_completed\ndata: {"))
	assert.True(t, strings.HasSuffix(out, "\n\n"))
	assert.Contains(t, out, `"order_id":"o1"`)
}
