package memory

import (
	"context"
	"sync"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/dumu-tech/restaurant-ops/internal/seed"
)

type txKey struct{}

// Store is an in-memory core.Store. Units of work are serialised and rolled back
// by restoring a snapshot taken when they start.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *state

	catalog  *catalogRepository
	ledger   *ledgerRepository
	orders   *orderRepository
	payments *paymentRepository
	waste    *wasteRepository
	profit   *profitRepository
	alerts   *alertRepository
}

// New creates an empty store
func New() *Store {
	s := &Store{data: newState()}
	s.catalog = &catalogRepository{s}
	s.ledger = &ledgerRepository{s}
	s.orders = &orderRepository{s}
	s.payments = &paymentRepository{s}
	s.waste = &wasteRepository{s}
	s.profit = &profitRepository{s}
	s.alerts = &alertRepository{s}
	return s
}

func (s *Store) Catalog() core.CatalogRepository  { return s.catalog }
func (s *Store) Ledger() core.LedgerRepository    { return s.ledger }
func (s *Store) Orders() core.OrderRepository     { return s.orders }
func (s *Store) Payments() core.PaymentRepository { return s.payments }
func (s *Store) Waste() core.WasteRepository      { return s.waste }
func (s *Store) Profit() core.ProfitRepository    { return s.profit }
func (s *Store) Alerts() core.AlertRepository     { return s.alerts }

// Atomic runs fn as one unit of work. A ctx that already carries a unit of work joins it.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

func (s *Store) read(fn func(st *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.data)
}

// write applies fn inside the caller's unit of work, or in a new one
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	apply := func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(s.data)
	}
	if inTx(ctx) {
		return apply(ctx)
	}
	return s.Atomic(ctx, apply)
}

// PutRestaurant inserts or replaces catalog data. The Put helpers stand in for
// the external CRUD that owns the catalog.
func (s *Store) PutRestaurant(r core.Restaurant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.restaurants[r.ID] = r
}

func (s *Store) PutBranch(b core.Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.branches[b.ID] = b
}

func (s *Store) PutTable(t core.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.tables[t.ID] = t
}

func (s *Store) PutCategory(c core.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.categories[c.ID] = c
}

func (s *Store) PutMenuItem(m core.MenuItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.menuItems[m.ID] = m
}

func (s *Store) PutStockItem(item core.StockItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.stockItems[item.ID] = item
}

func (s *Store) PutRecipe(menuItemID string, lines []core.RecipeLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.recipes[menuItemID] = append([]core.RecipeLine(nil), lines...)
}

func (s *Store) PutWasteCategory(c core.WasteCategory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.wasteCategories[c.ID] = c
}

func (s *Store) PutWasteReason(r core.WasteReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.wasteReasons[r.ID] = r
}

// Load copies a catalog dataset into the store
func (s *Store) Load(ds seed.Dataset) {
	for _, r := range ds.Restaurants {
		s.PutRestaurant(r)
	}
	for _, b := range ds.Branches {
		s.PutBranch(b)
	}
	for _, t := range ds.Tables {
		s.PutTable(t)
	}
	for _, c := range ds.Categories {
		s.PutCategory(c)
	}
	for _, m := range ds.MenuItems {
		s.PutMenuItem(m)
	}
	for _, item := range ds.StockItems {
		s.PutStockItem(item)
	}
	for menuItemID, lines := range ds.Recipes {
		s.PutRecipe(menuItemID, lines)
	}
	for _, c := range ds.WasteCategories {
		s.PutWasteCategory(c)
	}
	for _, r := range ds.WasteReasons {
		s.PutWasteReason(r)
	}
}

// NewSeeded creates a store holding the demo catalog
func NewSeeded() *Store {
	s := New()
	s.Load(seed.Demo())
	return s
}
