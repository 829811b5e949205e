package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Actor identifies the authenticated staff member performing an operation
type Actor struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// SystemActor is used for work triggered by events rather than by a person
var SystemActor = Actor{UserID: "system", Name: "system", Role: "system"}

// Restaurant represents a tenant. Rate overrides are nil when the configured defaults apply.
type Restaurant struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Timezone    string           `json:"timezone"`
	TaxRate     *decimal.Decimal `json:"tax_rate,omitempty"`
	ServiceRate *decimal.Decimal `json:"service_rate,omitempty"`
}

// Branch represents a physical location of a restaurant
type Branch struct {
	ID           string `json:"id"`
	RestaurantID string `json:"restaurant_id"`
	Name         string `json:"name"`
}

// TableStatus represents the occupancy state of a table
type TableStatus string

const (
	TableAvailable    TableStatus = "available"
	TableOccupied     TableStatus = "occupied"
	TableReserved     TableStatus = "reserved"
	TableCleaning     TableStatus = "cleaning"
	TableOutOfService TableStatus = "out_of_service"
)

// Table represents a dining table inside a branch
type Table struct {
	ID           string      `json:"id"`
	RestaurantID string      `json:"restaurant_id"`
	BranchID     string      `json:"branch_id"`
	Number       string      `json:"number"`
	Status       TableStatus `json:"status"`
}

// Category represents a menu section
type Category struct {
	ID           string `json:"id"`
	RestaurantID string `json:"restaurant_id"`
	Name         string `json:"name"`
	OrderIndex   int    `json:"order_index"`
	IsActive     bool   `json:"is_active"`
}

// MenuItem represents a sellable dish or drink
type MenuItem struct {
	ID                 string          `json:"id"`
	RestaurantID       string          `json:"restaurant_id"`
	CategoryID         string          `json:"category_id"`
	Name               string          `json:"name"`
	Price              decimal.Decimal `json:"price"`
	CostPrice          decimal.Decimal `json:"cost_price"`
	IsAvailable        bool            `json:"is_available"`
	PreparationMinutes int             `json:"preparation_minutes"`
	SoldCount          int64           `json:"sold_count"`
}

// MenuSection is a category with its items, as served to menu readers
type MenuSection struct {
	Category Category    `json:"category"`
	Items    []*MenuItem `json:"items"`
}

// Unit is the unit of measure of a stock item
type Unit string

const (
	UnitKilogram   Unit = "kg"
	UnitGram       Unit = "g"
	UnitLitre      Unit = "l"
	UnitMillilitre Unit = "ml"
	UnitPiece      Unit = "unit"
	UnitPack       Unit = "pack"
	UnitDozen      Unit = "dozen"
	UnitBottle     Unit = "bottle"
	UnitCan        Unit = "can"
)

// Valid reports whether u is a supported unit of measure
func (u Unit) Valid() bool {
	switch u {
	case UnitKilogram, UnitGram, UnitLitre, UnitMillilitre, UnitPiece, UnitPack, UnitDozen, UnitBottle, UnitCan:
		return true
	}
	return false
}

// StockItem represents an ingredient tracked by the inventory ledger
type StockItem struct {
	ID              string          `json:"id"`
	RestaurantID    string          `json:"restaurant_id"`
	BranchID        string          `json:"branch_id"`
	Name            string          `json:"name"`
	Unit            Unit            `json:"unit"`
	CurrentQuantity decimal.Decimal `json:"current_quantity"`
	MinimumQuantity decimal.Decimal `json:"minimum_quantity"`
	ReorderQuantity decimal.Decimal `json:"reorder_quantity"`
	CostPerUnit     decimal.Decimal `json:"cost_per_unit"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsLow reports whether the item is at or below its minimum quantity
func (s *StockItem) IsLow() bool {
	return s.CurrentQuantity.LessThanOrEqual(s.MinimumQuantity)
}

// RecipeLine is one ingredient of a menu item
type RecipeLine struct {
	MenuItemID       string          `json:"menu_item_id"`
	StockItemID      string          `json:"stock_item_id"`
	QuantityRequired decimal.Decimal `json:"quantity_required"`
	WasteFactor      decimal.Decimal `json:"waste_factor"`
}

// AdjustedQuantity is the required quantity including the prep-loss waste factor
func (r RecipeLine) AdjustedQuantity() decimal.Decimal {
	return r.QuantityRequired.Mul(decimal.NewFromInt(1).Add(r.WasteFactor.Div(hundred)))
}

// TransactionType is the kind of a stock ledger entry
type TransactionType string

const (
	TransactionPurchase   TransactionType = "purchase"
	TransactionUsage      TransactionType = "usage"
	TransactionWaste      TransactionType = "waste"
	TransactionAdjustment TransactionType = "adjustment"
	TransactionTransfer   TransactionType = "transfer"
)

// Direction tells whether a ledger entry adds to or removes from stock
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// DirectionOf returns the fixed direction for purchase, usage and waste entries.
// Adjustments and transfers carry their own direction.
func DirectionOf(t TransactionType, requested Direction) Direction {
	switch t {
	case TransactionPurchase:
		return DirectionIn
	case TransactionUsage, TransactionWaste:
		return DirectionOut
	}
	return requested
}

// StockTransaction is an immutable ledger entry
type StockTransaction struct {
	ID              string          `json:"id"`
	StockItemID     string          `json:"stock_item_id"`
	RestaurantID    string          `json:"restaurant_id"`
	BranchID        string          `json:"branch_id"`
	Type            TransactionType `json:"type"`
	Direction       Direction       `json:"direction"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	Reason          string          `json:"reason"`
	ActorID         string          `json:"actor_id"`
	OrderRef        string          `json:"order_ref,omitempty"`
	MenuItemRef     string          `json:"menu_item_ref,omitempty"`
	ReversalOf      string          `json:"reversal_of,omitempty"`
	TransactionDate time.Time       `json:"transaction_date"`
}

// SignedQuantity is the quantity with the sign of its effect on current stock
func (t *StockTransaction) SignedQuantity() decimal.Decimal {
	if t.Direction == DirectionOut {
		return t.Quantity.Neg()
	}
	return t.Quantity
}

// OrderType is the channel through which an order was placed
type OrderType string

const (
	OrderTypeQR     OrderType = "qr"
	OrderTypeWaiter OrderType = "waiter"
	OrderTypeOnline OrderType = "online"
)

// Order represents a customer order
type Order struct {
	ID                         string          `json:"id"`
	OrderNumber                string          `json:"order_number"`
	RestaurantID               string          `json:"restaurant_id"`
	BranchID                   string          `json:"branch_id"`
	TableID                    string          `json:"table_id"`
	WaiterID                   string          `json:"waiter_id,omitempty"`
	Type                       OrderType       `json:"type"`
	Status                     OrderStatus     `json:"status"`
	Subtotal                   decimal.Decimal `json:"subtotal"`
	TaxRate                    decimal.Decimal `json:"tax_rate"`
	ServiceRate                decimal.Decimal `json:"service_rate"`
	TaxAmount                  decimal.Decimal `json:"tax_amount"`
	ServiceCharge              decimal.Decimal `json:"service_charge"`
	DiscountAmount             decimal.Decimal `json:"discount_amount"`
	TotalAmount                decimal.Decimal `json:"total_amount"`
	IsPaid                     bool            `json:"is_paid"`
	IsPriority                 bool            `json:"is_priority"`
	RequiresWaiterConfirmation bool            `json:"requires_waiter_confirmation"`
	InventoryDeducted          bool            `json:"inventory_deducted"`
	PlacedAt                   time.Time       `json:"placed_at"`
	ConfirmedAt                *time.Time      `json:"confirmed_at,omitempty"`
	PreparationStartedAt       *time.Time      `json:"preparation_started_at,omitempty"`
	ReadyAt                    *time.Time      `json:"ready_at,omitempty"`
	ServedAt                   *time.Time      `json:"served_at,omitempty"`
	BillPresentedAt            *time.Time      `json:"bill_presented_at,omitempty"`
	CompletedAt                *time.Time      `json:"completed_at,omitempty"`
	CancelledAt                *time.Time      `json:"cancelled_at,omitempty"`
	CancellationReason         string          `json:"cancellation_reason,omitempty"`
	Items                      []OrderItem     `json:"items"`
}

// OrderItem represents an item within an order. UnitPrice is the price at the time of ordering.
type OrderItem struct {
	ID                  string          `json:"id"`
	OrderID             string          `json:"order_id"`
	MenuItemID          string          `json:"menu_item_id"`
	MenuItemName        string          `json:"menu_item_name"`
	Quantity            int             `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
}

// LineTotal returns quantity × unit price at full precision
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Item returns the order item with the given id
func (o *Order) Item(id string) (*OrderItem, bool) {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i], true
		}
	}
	return nil, false
}

// PaymentMethod represents how an order is paid
type PaymentMethod string

const (
	PaymentMethodUnspecified PaymentMethod = "unspecified"
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodCBE         PaymentMethod = "cbe"
	PaymentMethodTelebirr    PaymentMethod = "telebirr"
	PaymentMethodCBEWallet   PaymentMethod = "cbe_wallet"
	PaymentMethodCard        PaymentMethod = "card"
)

// Payable reports whether m can be chosen by a paying customer
func (m PaymentMethod) Payable() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCBE, PaymentMethodTelebirr, PaymentMethodCBEWallet, PaymentMethodCard:
		return true
	}
	return false
}

// PaymentStatus represents the state of a payment
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Payment represents a payment attempt against an order
type Payment struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"order_id"`
	RestaurantID    string          `json:"restaurant_id"`
	Method          PaymentMethod   `json:"method"`
	Amount          decimal.Decimal `json:"amount"`
	Status          PaymentStatus   `json:"status"`
	TransactionID   string          `json:"transaction_id,omitempty"`
	ReceiptNumber   string          `json:"receipt_number,omitempty"`
	GatewayResponse string          `json:"gateway_response,omitempty"`
	ProcessedBy     string          `json:"processed_by,omitempty"`
	RefundedAmount  decimal.Decimal `json:"refunded_amount"`
	RefundReason    string          `json:"refund_reason,omitempty"`
	FailureReason   string          `json:"failure_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	RefundedAt      *time.Time      `json:"refunded_at,omitempty"`
}
