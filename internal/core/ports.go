package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store groups the repositories behind one unit-of-work boundary.
// Repository calls made with the ctx passed to an Atomic callback join that unit of work.
type Store interface {
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error
	Catalog() CatalogRepository
	Ledger() LedgerRepository
	Orders() OrderRepository
	Payments() PaymentRepository
	Waste() WasteRepository
	Profit() ProfitRepository
	Alerts() AlertRepository
}

// CatalogRepository reads catalog facts maintained by external CRUD
type CatalogRepository interface {
	GetRestaurant(ctx context.Context, id string) (*Restaurant, error)
	GetBranch(ctx context.Context, id string) (*Branch, error)
	ListBranches(ctx context.Context, restaurantID string) ([]*Branch, error)
	GetTable(ctx context.Context, id string) (*Table, error)
	UpdateTableStatus(ctx context.Context, id string, status TableStatus) error
	GetMenuItem(ctx context.Context, id string) (*MenuItem, error)
	ListCategories(ctx context.Context, restaurantID string) ([]*Category, error)
	ListMenuItems(ctx context.Context, restaurantID string) ([]*MenuItem, error)
	UpdateMenuItemPrice(ctx context.Context, id string, price decimal.Decimal) error
	UpdateMenuItemCost(ctx context.Context, id string, cost decimal.Decimal) error
	IncrementSoldCount(ctx context.Context, id string, quantity int) error
	GetRecipeOf(ctx context.Context, menuItemID string) ([]RecipeLine, error)
	ReplaceRecipe(ctx context.Context, menuItemID string, lines []RecipeLine) error
	GetStockItem(ctx context.Context, id string) (*StockItem, error)
	GetWasteReason(ctx context.Context, id string) (*WasteReason, error)
	GetWasteCategory(ctx context.Context, id string) (*WasteCategory, error)
}

// TransactionFilter narrows ledger queries. Zero values match everything.
type TransactionFilter struct {
	RestaurantID string
	BranchID     string
	StockItemID  string
	OrderRef     string
	Type         TransactionType
	From         time.Time
	To           time.Time
}

// LedgerRepository stores stock items' quantities and their append-only ledger
type LedgerRepository interface {
	// LockStockItem reads the item and holds its row lock until the unit of work ends
	LockStockItem(ctx context.Context, id string) (*StockItem, error)
	SetStockQuantity(ctx context.Context, id string, quantity decimal.Decimal, at time.Time) error
	AppendTransaction(ctx context.Context, tx *StockTransaction) error
	GetTransaction(ctx context.Context, id string) (*StockTransaction, error)
	FindReversal(ctx context.Context, transactionID string) (*StockTransaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*StockTransaction, error)
}

// OrderRepository persists orders and their items
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	// LockOrder reads the order and holds its row lock until the unit of work ends
	LockOrder(ctx context.Context, id string) (*Order, error)
	UpdateOrder(ctx context.Context, order *Order) error
	AddItem(ctx context.Context, item *OrderItem) error
	UpdateItem(ctx context.Context, item *OrderItem) error
	DeleteItem(ctx context.Context, orderID, itemID string) error
	CountOpenOrdersForTable(ctx context.Context, tableID, excludeOrderID string) (int, error)
	// ListCompletedOrders returns paid, completed orders whose completed_at falls in [from, to).
	// An empty branchID spans every branch of the restaurant.
	ListCompletedOrders(ctx context.Context, restaurantID, branchID string, from, to time.Time) ([]*Order, error)
}

// PaymentRepository persists payments
type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *Payment) error
	GetPayment(ctx context.Context, id string) (*Payment, error)
	LockPayment(ctx context.Context, id string) (*Payment, error)
	UpdatePayment(ctx context.Context, payment *Payment) error
	ListPaymentsForOrder(ctx context.Context, orderID string) ([]*Payment, error)
}

// WasteFilter narrows waste record queries. Zero values match everything.
type WasteFilter struct {
	RestaurantID string
	BranchID     string
	StockItemID  string
	ReasonID     string
	Statuses     []WasteStatus
	From         time.Time
	To           time.Time
}

// WasteRepository persists waste records
type WasteRepository interface {
	CreateWasteRecord(ctx context.Context, record *WasteRecord) error
	GetWasteRecord(ctx context.Context, id string) (*WasteRecord, error)
	LockWasteRecord(ctx context.Context, id string) (*WasteRecord, error)
	UpdateWasteRecord(ctx context.Context, record *WasteRecord) error
	ListWasteRecords(ctx context.Context, filter WasteFilter) ([]*WasteRecord, error)
}

// ProfitRepository stores the profit projections. Upserts are idempotent on the row key.
type ProfitRepository interface {
	UpsertAggregation(ctx context.Context, agg *ProfitAggregation) error
	GetAggregation(ctx context.Context, key ProfitKey) (*ProfitAggregation, error)
	// ListAggregations returns rows of one level and scope with date in [from, to]
	ListAggregations(ctx context.Context, level AggregationLevel, restaurantID, branchID string, from, to time.Time) ([]*ProfitAggregation, error)
	UpsertPerformance(ctx context.Context, perf *MenuItemPerformance) error
	GetPerformance(ctx context.Context, key PerformanceKey) (*MenuItemPerformance, error)
	ListPerformance(ctx context.Context, filter PerformanceFilter) ([]*MenuItemPerformance, error)
}

// AlertRepository stores generated alerts and handler failure records.
// Create methods return false when an equivalent alert already exists.
type AlertRepository interface {
	OpenInventoryAlert(ctx context.Context, alert *InventoryAlert) (bool, error)
	ResolveInventoryAlerts(ctx context.Context, stockItemID string, kind InventoryAlertKind, at time.Time) (int, error)
	ListInventoryAlerts(ctx context.Context, filter AlertFilter) ([]*InventoryAlert, error)
	CreateProfitAlert(ctx context.Context, alert *ProfitAlert) (bool, error)
	ListProfitAlerts(ctx context.Context, restaurantID string, from, to time.Time) ([]*ProfitAlert, error)
	CreateWasteAlert(ctx context.Context, alert *WasteAlert) (bool, error)
	ListWasteAlerts(ctx context.Context, restaurantID string) ([]*WasteAlert, error)
	RecordHandlerFailure(ctx context.Context, failure *HandlerFailure) error
	ListHandlerFailures(ctx context.Context, limit int) ([]*HandlerFailure, error)
}

// Sequencer hands out per-(scope, restaurant, day) counters starting at 1
type Sequencer interface {
	Next(ctx context.Context, scope, restaurantID string, day time.Time) (int64, error)
}

// Sequence scopes
const (
	SequenceOrder   = "order"
	SequenceReceipt = "receipt"
)

// TableTokenStore keeps short-lived QR table tokens
type TableTokenStore interface {
	SaveTableToken(ctx context.Context, token, tableID string, ttl time.Duration) error
	LookupTableToken(ctx context.Context, token string) (string, error)
}

// GatewayResult is what a payment processor reports back
type GatewayResult struct {
	Success       bool   `json:"success"`
	Pending       bool   `json:"pending"`
	TransactionID string `json:"transaction_id,omitempty"`
	Response      string `json:"response,omitempty"`
	Message       string `json:"message,omitempty"`
}

// PaymentProcessor is implemented by every payment gateway variant
type PaymentProcessor interface {
	Method() PaymentMethod
	Initiate(ctx context.Context, payment *Payment) (*GatewayResult, error)
	Verify(ctx context.Context, payment *Payment) (*GatewayResult, error)
	Refund(ctx context.Context, payment *Payment, amount decimal.Decimal) (*GatewayResult, error)
}
