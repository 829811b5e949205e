package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatusChanged is published after every committed order transition
type OrderStatusChanged struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	TableID     string `json:"table_id"`
	From        string `json:"from"`
	To          string `json:"to"`
}

// OrderCompleted triggers inventory deduction and profit recomputation
type OrderCompleted struct {
	OrderID      string    `json:"order_id"`
	RestaurantID string    `json:"restaurant_id"`
	BranchID     string    `json:"branch_id"`
	CompletedAt  time.Time `json:"completed_at"`
}

// OrderCancelled triggers reversal of any usage entries recorded for the order
type OrderCancelled struct {
	OrderID           string `json:"order_id"`
	InventoryDeducted bool   `json:"inventory_deducted"`
	Reason            string `json:"reason,omitempty"`
}

// PaymentCompleted is published when a payment settles
type PaymentCompleted struct {
	PaymentID     string          `json:"payment_id"`
	OrderID       string          `json:"order_id"`
	Method        string          `json:"method"`
	Amount        decimal.Decimal `json:"amount"`
	ReceiptNumber string          `json:"receipt_number"`
}

// PriceChanged is published when a menu item's sale price changes
type PriceChanged struct {
	MenuItemID   string          `json:"menu_item_id"`
	RestaurantID string          `json:"restaurant_id"`
	OldPrice     decimal.Decimal `json:"old_price"`
	NewPrice     decimal.Decimal `json:"new_price"`
}

// RecipeChanged is published when a menu item's recipe composition changes
type RecipeChanged struct {
	MenuItemID   string `json:"menu_item_id"`
	RestaurantID string `json:"restaurant_id"`
}

// WasteEvent carries a waste record through recorded/approved/rejected events
type WasteEvent struct {
	WasteRecordID string          `json:"waste_record_id"`
	RestaurantID  string          `json:"restaurant_id"`
	BranchID      string          `json:"branch_id"`
	StockItemID   string          `json:"stock_item_id"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// StockLow is published when a stock item reaches its minimum quantity
type StockLow struct {
	StockItemID     string          `json:"stock_item_id"`
	Name            string          `json:"name"`
	CurrentQuantity decimal.Decimal `json:"current_quantity"`
	MinimumQuantity decimal.Decimal `json:"minimum_quantity"`
}
