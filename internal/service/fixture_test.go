package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/adapters/memory"
	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/dumu-tech/restaurant-ops/internal/events"
	"github.com/dumu-tech/restaurant-ops/internal/seed"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	eat     = time.FixedZone("EAT", 3*60*60)
	waiter  = core.Actor{UserID: "waiter-1", Name: "Abebe", Role: RoleWaiter}
	manager = core.Actor{UserID: "manager-1", Name: "Hana", Role: RoleManager}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// fakeProcessor answers gateway calls with canned results
type fakeProcessor struct {
	method   core.PaymentMethod
	initiate *core.GatewayResult
	verify   *core.GatewayResult
	refund   *core.GatewayResult
	block    bool
	err      error
}

func (f *fakeProcessor) Method() core.PaymentMethod { return f.method }

func (f *fakeProcessor) answer(ctx context.Context, result *core.GatewayResult) (*core.GatewayResult, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	if result == nil {
		return &core.GatewayResult{Pending: true}, nil
	}
	return result, nil
}

func (f *fakeProcessor) Initiate(ctx context.Context, _ *core.Payment) (*core.GatewayResult, error) {
	return f.answer(ctx, f.initiate)
}

func (f *fakeProcessor) Verify(ctx context.Context, _ *core.Payment) (*core.GatewayResult, error) {
	return f.answer(ctx, f.verify)
}

func (f *fakeProcessor) Refund(ctx context.Context, _ *core.Payment, _ decimal.Decimal) (*core.GatewayResult, error) {
	return f.answer(ctx, f.refund)
}

type fixture struct {
	ctx       context.Context
	store     *memory.Store
	bus       *events.EventBus
	clock     *testClock
	catalog   *CatalogService
	ledger    *InventoryLedger
	resolver  *RecipeResolver
	orders    *OrderService
	payments  *PaymentService
	deduction *DeductionCoordinator
	profit    *ProfitAggregator
	waste     *WasteLedger
	report    *ProfitReportExporter
	telebirr  *fakeProcessor
}

// slowStore adds latency to order and ledger reads so concurrent callers interleave the
// way they do against a database
type slowStore struct {
	*memory.Store
	latency time.Duration
}

func (s *slowStore) Ledger() core.LedgerRepository {
	return &slowLedger{LedgerRepository: s.Store.Ledger(), latency: s.latency}
}

func (s *slowStore) Orders() core.OrderRepository {
	return &slowOrders{OrderRepository: s.Store.Orders(), latency: s.latency}
}

type slowLedger struct {
	core.LedgerRepository
	latency time.Duration
}

func (l *slowLedger) LockStockItem(ctx context.Context, id string) (*core.StockItem, error) {
	time.Sleep(l.latency)
	return l.LedgerRepository.LockStockItem(ctx, id)
}

func (l *slowLedger) ListTransactions(ctx context.Context, f core.TransactionFilter) ([]*core.StockTransaction, error) {
	time.Sleep(l.latency)
	return l.LedgerRepository.ListTransactions(ctx, f)
}

type slowOrders struct {
	core.OrderRepository
	latency time.Duration
}

func (o *slowOrders) GetOrder(ctx context.Context, id string) (*core.Order, error) {
	time.Sleep(o.latency)
	return o.OrderRepository.GetOrder(ctx, id)
}

func (o *slowOrders) LockOrder(ctx context.Context, id string) (*core.Order, error) {
	time.Sleep(o.latency)
	return o.OrderRepository.LockOrder(ctx, id)
}

// newFixture wires every service over the seeded demo restaurant with a fixed clock
// at 2026-03-10 12:00 EAT
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithLatency(t, 0)
}

// newFixtureWithLatency is newFixture with every order and ledger read delayed by latency
func newFixtureWithLatency(t *testing.T, latency time.Duration) *fixture {
	t.Helper()
	logger := zap.NewNop()
	mem := memory.NewSeeded()
	var store core.Store = mem
	if latency > 0 {
		store = &slowStore{Store: mem, latency: latency}
	}
	bus := events.NewEventBus(logger, store.Alerts())
	bus.SetRetryPolicy(events.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond})
	clock := &testClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, eat)}

	resolver := NewRecipeResolver(store.Catalog())
	ledger := NewInventoryLedger(store, bus, logger)
	ledger.now = clock.Now
	catalog := NewCatalogService(store, resolver, bus, logger)
	orders := NewOrderService(store, bus, memory.NewSequencer(), memory.NewTableTokens(),
		core.DefaultPricing, 4*time.Hour, eat, logger)
	orders.now = clock.Now

	telebirr := &fakeProcessor{method: core.PaymentMethodTelebirr}
	payments := NewPaymentService(store, orders, []core.PaymentProcessor{telebirr},
		memory.NewSequencer(), bus, eat, time.Second, 5*time.Minute, logger)
	payments.now = clock.Now

	deduction := NewDeductionCoordinator(store, ledger, resolver, logger)
	profit := NewProfitAggregator(store, resolver, eat, 2, logger)
	profit.now = clock.Now
	waste := NewWasteLedger(store, ledger, bus, core.DefaultWasteTiers, eat, logger)
	waste.now = clock.Now
	report := NewProfitReportExporter(store, profit, eat)
	report.now = clock.Now

	catalog.Register(bus)
	deduction.Register(bus)
	profit.Register(bus)

	return &fixture{
		ctx:       context.Background(),
		store:     mem,
		bus:       bus,
		clock:     clock,
		catalog:   catalog,
		ledger:    ledger,
		resolver:  resolver,
		orders:    orders,
		payments:  payments,
		deduction: deduction,
		profit:    profit,
		waste:     waste,
		report:    report,
		telebirr:  telebirr,
	}
}

func (f *fixture) today() time.Time {
	return core.Day(f.clock.Now(), eat)
}

// placeOrder creates the waiter order Doro Wat ×2 and Coffee ×1 on table T1
func (f *fixture) placeOrder(t *testing.T) *core.Order {
	t.Helper()
	order, err := f.orders.CreateOrder(f.ctx, waiter, CreateOrderRequest{
		TableID: seed.TableT1ID,
		Type:    core.OrderTypeWaiter,
		Items: []OrderItemInput{
			{MenuItemID: seed.DoroWatID, Quantity: 2},
			{MenuItemID: seed.CoffeeID, Quantity: 1},
		},
	})
	require.NoError(t, err)
	return order
}

// serve walks a confirmed order through preparing and ready to served
func (f *fixture) serve(t *testing.T, orderID string) *core.Order {
	t.Helper()
	var order *core.Order
	for _, target := range []core.OrderStatus{core.OrderStatusPreparing, core.OrderStatusReady, core.OrderStatusServed} {
		var err error
		order, err = f.orders.Transition(f.ctx, waiter, orderID, target, TransitionOptions{})
		require.NoError(t, err)
	}
	return order
}

// completeWithCash places, serves and pays the standard order in cash
func (f *fixture) completeWithCash(t *testing.T) (*core.Order, *core.Payment) {
	t.Helper()
	order := f.placeOrder(t)
	f.serve(t, order.ID)
	payment, err := f.payments.CreatePayment(f.ctx, waiter, order.ID, core.PaymentMethodCash, order.TotalAmount)
	require.NoError(t, err)
	completed, err := f.orders.GetOrder(f.ctx, order.ID)
	require.NoError(t, err)
	return completed, payment
}

func (f *fixture) stock(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	item, err := f.store.Catalog().GetStockItem(f.ctx, id)
	require.NoError(t, err)
	return item.CurrentQuantity
}

func (f *fixture) setStock(t *testing.T, id string, quantity decimal.Decimal) {
	t.Helper()
	item, err := f.store.Catalog().GetStockItem(f.ctx, id)
	require.NoError(t, err)
	item.CurrentQuantity = quantity
	f.store.PutStockItem(*item)
}

func (f *fixture) daily(t *testing.T, branchID string) *core.ProfitAggregation {
	t.Helper()
	agg, err := f.profit.GetDailyProfit(f.ctx, seed.RestaurantID, branchID, f.today())
	require.NoError(t, err)
	return agg
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}
