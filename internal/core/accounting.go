package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// WasteStatus represents the review state of a waste record
type WasteStatus string

const (
	WastePending       WasteStatus = "pending"
	WasteApproved      WasteStatus = "approved"
	WasteRejected      WasteStatus = "rejected"
	WasteInvestigating WasteStatus = "investigating"
)

// WastePriority is derived from the cost of the wasted stock
type WastePriority string

const (
	PriorityLow      WastePriority = "low"
	PriorityMedium   WastePriority = "medium"
	PriorityHigh     WastePriority = "high"
	PriorityCritical WastePriority = "critical"
)

// WasteCategory groups waste reasons and decides whether review is needed
type WasteCategory struct {
	ID               string `json:"id"`
	RestaurantID     string `json:"restaurant_id"`
	Name             string `json:"name"`
	RequiresApproval bool   `json:"requires_approval"`
}

// WasteReason is a selectable cause of waste
type WasteReason struct {
	ID                  string `json:"id"`
	RestaurantID        string `json:"restaurant_id"`
	CategoryID          string `json:"category_id"`
	Name                string `json:"name"`
	RequiresExplanation bool   `json:"requires_explanation"`
	RequiresPhoto       bool   `json:"requires_photo"`
	IsActive            bool   `json:"is_active"`
}

// WasteRecord classifies a waste ledger entry and tracks its review
type WasteRecord struct {
	ID               string          `json:"id"`
	TransactionID    string          `json:"transaction_id"`
	StockItemID      string          `json:"stock_item_id"`
	RestaurantID     string          `json:"restaurant_id"`
	BranchID         string          `json:"branch_id"`
	ReasonID         string          `json:"reason_id"`
	CategoryID       string          `json:"category_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	Status           WasteStatus     `json:"status"`
	Priority         WastePriority   `json:"priority"`
	IsRecurringIssue bool            `json:"is_recurring_issue"`
	RecurrenceID     string          `json:"recurrence_id,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	PhotoURL         string          `json:"photo_url,omitempty"`
	RecordedBy       string          `json:"recorded_by"`
	ReviewedBy       string          `json:"reviewed_by,omitempty"`
	ReviewNotes      string          `json:"review_notes,omitempty"`
	ReviewedAt       *time.Time      `json:"reviewed_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// AggregationLevel is the period covered by a profit aggregation row
type AggregationLevel string

const (
	LevelDaily   AggregationLevel = "daily"
	LevelWeekly  AggregationLevel = "weekly"
	LevelMonthly AggregationLevel = "monthly"
)

// ProfitKey identifies a profit aggregation row. An empty BranchID means restaurant-wide.
type ProfitKey struct {
	Level        AggregationLevel `json:"level"`
	Date         time.Time        `json:"date"`
	RestaurantID string           `json:"restaurant_id"`
	BranchID     string           `json:"branch_id,omitempty"`
}

// ProfitAggregation is the profit projection for one period and scope
type ProfitAggregation struct {
	ProfitKey
	Revenue            decimal.Decimal `json:"revenue"`
	CostOfGoods        decimal.Decimal `json:"cost_of_goods"`
	WasteCost          decimal.Decimal `json:"waste_cost"`
	NetProfit          decimal.Decimal `json:"net_profit"`
	ProfitMargin       decimal.Decimal `json:"profit_margin"`
	OrderCount         int             `json:"order_count"`
	AverageOrderValue  decimal.Decimal `json:"average_order_value"`
	WastePercentage    decimal.Decimal `json:"waste_percentage"`
	EstimatedCostItems int             `json:"estimated_cost_items"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Trend labels the day-over-day movement of sales
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
	TrendNew    Trend = "new"
)

// PerformanceKey identifies a menu item performance row
type PerformanceKey struct {
	Date         time.Time `json:"date"`
	MenuItemID   string    `json:"menu_item_id"`
	RestaurantID string    `json:"restaurant_id"`
	BranchID     string    `json:"branch_id,omitempty"`
}

// MenuItemPerformance is the daily profitability projection of one menu item
type MenuItemPerformance struct {
	PerformanceKey
	MenuItemName   string          `json:"menu_item_name"`
	QuantitySold   int             `json:"quantity_sold"`
	Revenue        decimal.Decimal `json:"revenue"`
	IngredientCost decimal.Decimal `json:"ingredient_cost"`
	LaborCostShare decimal.Decimal `json:"labor_cost_share"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	GrossProfit    decimal.Decimal `json:"gross_profit"`
	NetProfit      decimal.Decimal `json:"net_profit"`
	ProfitMargin   decimal.Decimal `json:"profit_margin"`
	Trend          Trend           `json:"trend"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// PerformanceFilter narrows performance queries. An empty BranchID selects restaurant-wide rows
// unless AllBranches is set. Empty MenuItemID and zero dates match everything.
type PerformanceFilter struct {
	RestaurantID string
	BranchID     string
	AllBranches  bool
	MenuItemID   string
	From         time.Time
	To           time.Time
}

// DailyProfitPoint is one day of a profit trend
type DailyProfitPoint struct {
	Date        time.Time       `json:"date"`
	Revenue     decimal.Decimal `json:"revenue"`
	CostOfGoods decimal.Decimal `json:"cost_of_goods"`
	WasteCost   decimal.Decimal `json:"waste_cost"`
	NetProfit   decimal.Decimal `json:"net_profit"`
	OrderCount  int             `json:"order_count"`
}

// ProfitTrend is a zero-filled daily series with a direction summary
type ProfitTrend struct {
	Days            []DailyProfitPoint `json:"days"`
	Direction       Trend              `json:"direction"`
	TrendPercentage decimal.Decimal    `json:"trend_percentage"`
	EarlierProfit   decimal.Decimal    `json:"earlier_profit"`
	LaterProfit     decimal.Decimal    `json:"later_profit"`
}

// ItemProfitIssue describes a menu item flagged by profit analysis
type ItemProfitIssue struct {
	MenuItemID     string          `json:"menu_item_id"`
	MenuItemName   string          `json:"menu_item_name"`
	AverageMargin  decimal.Decimal `json:"average_margin"`
	QuantitySold   int             `json:"quantity_sold"`
	Revenue        decimal.Decimal `json:"revenue"`
	NetProfit      decimal.Decimal `json:"net_profit"`
	RevenueImpact  decimal.Decimal `json:"revenue_impact"`
	CurrentPrice   decimal.Decimal `json:"current_price,omitempty"`
	CostPrice      decimal.Decimal `json:"cost_price,omitempty"`
	SuggestedPrice decimal.Decimal `json:"suggested_price,omitempty"`
}

// ProfitIssues is the derived profit analysis report
type ProfitIssues struct {
	LossMakers       []ItemProfitIssue `json:"loss_makers"`
	LowMarginItems   []ItemProfitIssue `json:"low_margin_items"`
	PriceSuggestions []ItemProfitIssue `json:"price_suggestions"`
}

// InventoryAlertKind distinguishes inventory alerts
type InventoryAlertKind string

const (
	AlertLowStock     InventoryAlertKind = "low_stock"
	AlertInsufficient InventoryAlertKind = "insufficient"
)

// InventoryAlert is raised when stock runs low or a deduction falls short
type InventoryAlert struct {
	ID               string             `json:"id"`
	RestaurantID     string             `json:"restaurant_id"`
	BranchID         string             `json:"branch_id"`
	StockItemID      string             `json:"stock_item_id"`
	Kind             InventoryAlertKind `json:"kind"`
	Message          string             `json:"message"`
	CurrentQuantity  decimal.Decimal    `json:"current_quantity"`
	RequiredQuantity decimal.Decimal    `json:"required_quantity"`
	OrderRef         string             `json:"order_ref,omitempty"`
	Resolved         bool               `json:"resolved"`
	CreatedAt        time.Time          `json:"created_at"`
	ResolvedAt       *time.Time         `json:"resolved_at,omitempty"`
}

// AlertFilter narrows alert queries
type AlertFilter struct {
	RestaurantID   string
	BranchID       string
	StockItemID    string
	Kind           InventoryAlertKind
	UnresolvedOnly bool
}

// ProfitAlertKind distinguishes profit alerts
type ProfitAlertKind string

const (
	ProfitAlertNegative  ProfitAlertKind = "negative_profit"
	ProfitAlertLowMargin ProfitAlertKind = "low_margin"
	ProfitAlertHighWaste ProfitAlertKind = "high_waste"
)

// ProfitAlert is raised by the profit aggregator after a recompute
type ProfitAlert struct {
	ID           string          `json:"id"`
	RestaurantID string          `json:"restaurant_id"`
	BranchID     string          `json:"branch_id,omitempty"`
	Kind         ProfitAlertKind `json:"kind"`
	Subject      string          `json:"subject"`
	Day          time.Time       `json:"day"`
	Message      string          `json:"message"`
	Value        decimal.Decimal `json:"value"`
	CreatedAt    time.Time       `json:"created_at"`
}

// WasteAlert is raised when the same waste keeps recurring
type WasteAlert struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurant_id"`
	BranchID     string    `json:"branch_id"`
	StockItemID  string    `json:"stock_item_id"`
	ReasonID     string    `json:"reason_id"`
	RecurrenceID string    `json:"recurrence_id"`
	Kind         string    `json:"kind"`
	Occurrences  int       `json:"occurrences"`
	Day          time.Time `json:"day"`
	CreatedAt    time.Time `json:"created_at"`
}

// WasteAlertRecurringIssue is the only waste alert kind
const WasteAlertRecurringIssue = "recurring_issue"

// HandlerFailure records an event handler that gave up after retries
type HandlerFailure struct {
	ID          string    `json:"id"`
	EventType   string    `json:"event_type"`
	AggregateID string    `json:"aggregate_id"`
	Handler     string    `json:"handler"`
	Attempts    int       `json:"attempts"`
	ErrorKind   ErrorKind `json:"error_kind"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}
