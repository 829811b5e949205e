package postgres

import (
	"database/sql"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/shopspring/decimal"
)

// Database Models (with GORM tags)

// RestaurantModel represents the restaurants table structure
type RestaurantModel struct {
	ID          string              `gorm:"column:id;type:uuid;primaryKey"`
	Name        string              `gorm:"column:name;type:varchar(255);not null"`
	Timezone    string              `gorm:"column:timezone;type:varchar(64);not null"`
	TaxRate     decimal.NullDecimal `gorm:"column:tax_rate;type:numeric(5,2)"`
	ServiceRate decimal.NullDecimal `gorm:"column:service_rate;type:numeric(5,2)"`
}

func (RestaurantModel) TableName() string { return "restaurants" }

func (m *RestaurantModel) ToDomain() *core.Restaurant {
	r := &core.Restaurant{ID: m.ID, Name: m.Name, Timezone: m.Timezone}
	if m.TaxRate.Valid {
		v := m.TaxRate.Decimal
		r.TaxRate = &v
	}
	if m.ServiceRate.Valid {
		v := m.ServiceRate.Decimal
		r.ServiceRate = &v
	}
	return r
}

func RestaurantModelFromDomain(r *core.Restaurant) *RestaurantModel {
	m := &RestaurantModel{ID: r.ID, Name: r.Name, Timezone: r.Timezone}
	if r.TaxRate != nil {
		m.TaxRate = decimal.NewNullDecimal(*r.TaxRate)
	}
	if r.ServiceRate != nil {
		m.ServiceRate = decimal.NewNullDecimal(*r.ServiceRate)
	}
	return m
}

// BranchModel represents the branches table structure
type BranchModel struct {
	ID           string `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID string `gorm:"column:restaurant_id;type:uuid;not null;index"`
	Name         string `gorm:"column:name;type:varchar(255);not null"`
}

func (BranchModel) TableName() string { return "branches" }

// TableModel represents the restaurant_tables table structure
type TableModel struct {
	ID           string `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID string `gorm:"column:restaurant_id;type:uuid;not null"`
	BranchID     string `gorm:"column:branch_id;type:uuid;not null;index"`
	Number       string `gorm:"column:number;type:varchar(20);not null"`
	Status       string `gorm:"column:status;type:varchar(20);not null;default:'available'"`
}

func (TableModel) TableName() string { return "restaurant_tables" }

// CategoryModel represents the categories table structure
type CategoryModel struct {
	ID           string `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID string `gorm:"column:restaurant_id;type:uuid;not null;index"`
	Name         string `gorm:"column:name;type:varchar(100);not null"`
	OrderIndex   int    `gorm:"column:order_index;type:integer;not null;default:0"`
	IsActive     bool   `gorm:"column:is_active;type:boolean;not null;default:true"`
}

func (CategoryModel) TableName() string { return "categories" }

// MenuItemModel represents the menu_items table structure
type MenuItemModel struct {
	ID                 string          `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID       string          `gorm:"column:restaurant_id;type:uuid;not null;index"`
	CategoryID         string          `gorm:"column:category_id;type:uuid;not null"`
	Name               string          `gorm:"column:name;type:varchar(255);not null"`
	Price              decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	CostPrice          decimal.Decimal `gorm:"column:cost_price;type:numeric(12,2);not null;default:0"`
	IsAvailable        bool            `gorm:"column:is_available;type:boolean;not null;default:true"`
	PreparationMinutes int             `gorm:"column:preparation_minutes;type:integer;not null;default:0"`
	SoldCount          int64           `gorm:"column:sold_count;type:bigint;not null;default:0"`
}

func (MenuItemModel) TableName() string { return "menu_items" }

func (m *MenuItemModel) ToDomain() *core.MenuItem {
	return &core.MenuItem{
		ID:                 m.ID,
		RestaurantID:       m.RestaurantID,
		CategoryID:         m.CategoryID,
		Name:               m.Name,
		Price:              m.Price,
		CostPrice:          m.CostPrice,
		IsAvailable:        m.IsAvailable,
		PreparationMinutes: m.PreparationMinutes,
		SoldCount:          m.SoldCount,
	}
}

// RecipeLineModel represents the recipe_lines table structure
type RecipeLineModel struct {
	MenuItemID       string          `gorm:"column:menu_item_id;type:uuid;primaryKey"`
	StockItemID      string          `gorm:"column:stock_item_id;type:uuid;primaryKey"`
	QuantityRequired decimal.Decimal `gorm:"column:quantity_required;type:numeric(12,4);not null"`
	WasteFactor      decimal.Decimal `gorm:"column:waste_factor;type:numeric(5,2);not null;default:0"`
}

func (RecipeLineModel) TableName() string { return "recipe_lines" }

// StockItemModel represents the stock_items table structure
type StockItemModel struct {
	ID              string          `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID    string          `gorm:"column:restaurant_id;type:uuid;not null;index"`
	BranchID        string          `gorm:"column:branch_id;type:uuid;not null"`
	Name            string          `gorm:"column:name;type:varchar(255);not null"`
	Unit            string          `gorm:"column:unit;type:varchar(10);not null"`
	CurrentQuantity decimal.Decimal `gorm:"column:current_quantity;type:numeric(14,4);not null"`
	MinimumQuantity decimal.Decimal `gorm:"column:minimum_quantity;type:numeric(14,4);not null;default:0"`
	ReorderQuantity decimal.Decimal `gorm:"column:reorder_quantity;type:numeric(14,4);not null;default:0"`
	CostPerUnit     decimal.Decimal `gorm:"column:cost_per_unit;type:numeric(12,4);not null"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (StockItemModel) TableName() string { return "stock_items" }

func (m *StockItemModel) ToDomain() *core.StockItem {
	return &core.StockItem{
		ID:              m.ID,
		RestaurantID:    m.RestaurantID,
		BranchID:        m.BranchID,
		Name:            m.Name,
		Unit:            core.Unit(m.Unit),
		CurrentQuantity: m.CurrentQuantity,
		MinimumQuantity: m.MinimumQuantity,
		ReorderQuantity: m.ReorderQuantity,
		CostPerUnit:     m.CostPerUnit,
		UpdatedAt:       m.UpdatedAt,
	}
}

// StockTransactionModel represents the append-only stock_transactions table
type StockTransactionModel struct {
	ID              string          `gorm:"column:id;type:uuid;primaryKey"`
	StockItemID     string          `gorm:"column:stock_item_id;type:uuid;not null;index"`
	RestaurantID    string          `gorm:"column:restaurant_id;type:uuid;not null"`
	BranchID        string          `gorm:"column:branch_id;type:uuid;not null"`
	Type            string          `gorm:"column:type;type:varchar(20);not null"`
	Direction       string          `gorm:"column:direction;type:varchar(3);not null"`
	Quantity        decimal.Decimal `gorm:"column:quantity;type:numeric(14,4);not null"`
	UnitCost        decimal.Decimal `gorm:"column:unit_cost;type:numeric(12,4);not null"`
	TotalCost       decimal.Decimal `gorm:"column:total_cost;type:numeric(14,4);not null"`
	Reason          string          `gorm:"column:reason;type:text;not null;default:''"`
	ActorID         string          `gorm:"column:actor_id;type:varchar(64);not null"`
	OrderRef        sql.NullString  `gorm:"column:order_ref;type:uuid;index"`
	MenuItemRef     sql.NullString  `gorm:"column:menu_item_ref;type:uuid"`
	ReversalOf      sql.NullString  `gorm:"column:reversal_of;type:uuid;uniqueIndex"`
	TransactionDate time.Time       `gorm:"column:transaction_date;type:timestamptz;not null"`
}

func (StockTransactionModel) TableName() string { return "stock_transactions" }

func StockTransactionModelFromDomain(t *core.StockTransaction) *StockTransactionModel {
	return &StockTransactionModel{
		ID:              t.ID,
		StockItemID:     t.StockItemID,
		RestaurantID:    t.RestaurantID,
		BranchID:        t.BranchID,
		Type:            string(t.Type),
		Direction:       string(t.Direction),
		Quantity:        t.Quantity,
		UnitCost:        t.UnitCost,
		TotalCost:       t.TotalCost,
		Reason:          t.Reason,
		ActorID:         t.ActorID,
		OrderRef:        nullString(t.OrderRef),
		MenuItemRef:     nullString(t.MenuItemRef),
		ReversalOf:      nullString(t.ReversalOf),
		TransactionDate: t.TransactionDate,
	}
}

func (m *StockTransactionModel) ToDomain() *core.StockTransaction {
	return &core.StockTransaction{
		ID:              m.ID,
		StockItemID:     m.StockItemID,
		RestaurantID:    m.RestaurantID,
		BranchID:        m.BranchID,
		Type:            core.TransactionType(m.Type),
		Direction:       core.Direction(m.Direction),
		Quantity:        m.Quantity,
		UnitCost:        m.UnitCost,
		TotalCost:       m.TotalCost,
		Reason:          m.Reason,
		ActorID:         m.ActorID,
		OrderRef:        m.OrderRef.String,
		MenuItemRef:     m.MenuItemRef.String,
		ReversalOf:      m.ReversalOf.String,
		TransactionDate: m.TransactionDate,
	}
}

// OrderModel represents the orders table structure
type OrderModel struct {
	ID                         string          `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber                string          `gorm:"column:order_number;type:varchar(20);not null"`
	RestaurantID               string          `gorm:"column:restaurant_id;type:uuid;not null;index"`
	BranchID                   string          `gorm:"column:branch_id;type:uuid;not null"`
	TableID                    string          `gorm:"column:table_id;type:uuid;not null;index"`
	WaiterID                   sql.NullString  `gorm:"column:waiter_id;type:varchar(64)"`
	Type                       string          `gorm:"column:type;type:varchar(10);not null"`
	Status                     string          `gorm:"column:status;type:varchar(20);not null;index"`
	Subtotal                   decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	TaxRate                    decimal.Decimal `gorm:"column:tax_rate;type:numeric(5,2);not null"`
	ServiceRate                decimal.Decimal `gorm:"column:service_rate;type:numeric(5,2);not null"`
	TaxAmount                  decimal.Decimal `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	ServiceCharge              decimal.Decimal `gorm:"column:service_charge;type:numeric(12,2);not null"`
	DiscountAmount             decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	TotalAmount                decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null"`
	IsPaid                     bool            `gorm:"column:is_paid;type:boolean;not null;default:false"`
	IsPriority                 bool            `gorm:"column:is_priority;type:boolean;not null;default:false"`
	RequiresWaiterConfirmation bool            `gorm:"column:requires_waiter_confirmation;type:boolean;not null;default:false"`
	InventoryDeducted          bool            `gorm:"column:inventory_deducted;type:boolean;not null;default:false"`
	PlacedAt                   time.Time       `gorm:"column:placed_at;type:timestamptz;not null"`
	ConfirmedAt                sql.NullTime    `gorm:"column:confirmed_at;type:timestamptz"`
	PreparationStartedAt       sql.NullTime    `gorm:"column:preparation_started_at;type:timestamptz"`
	ReadyAt                    sql.NullTime    `gorm:"column:ready_at;type:timestamptz"`
	ServedAt                   sql.NullTime    `gorm:"column:served_at;type:timestamptz"`
	BillPresentedAt            sql.NullTime    `gorm:"column:bill_presented_at;type:timestamptz"`
	CompletedAt                sql.NullTime    `gorm:"column:completed_at;type:timestamptz;index"`
	CancelledAt                sql.NullTime    `gorm:"column:cancelled_at;type:timestamptz"`
	CancellationReason         sql.NullString  `gorm:"column:cancellation_reason;type:text"`
}

func (OrderModel) TableName() string { return "orders" }

// OrderModelFromDomain creates OrderModel from core.Order
func OrderModelFromDomain(o *core.Order) *OrderModel {
	return &OrderModel{
		ID:                         o.ID,
		OrderNumber:                o.OrderNumber,
		RestaurantID:               o.RestaurantID,
		BranchID:                   o.BranchID,
		TableID:                    o.TableID,
		WaiterID:                   nullString(o.WaiterID),
		Type:                       string(o.Type),
		Status:                     string(o.Status),
		Subtotal:                   o.Subtotal,
		TaxRate:                    o.TaxRate,
		ServiceRate:                o.ServiceRate,
		TaxAmount:                  o.TaxAmount,
		ServiceCharge:              o.ServiceCharge,
		DiscountAmount:             o.DiscountAmount,
		TotalAmount:                o.TotalAmount,
		IsPaid:                     o.IsPaid,
		IsPriority:                 o.IsPriority,
		RequiresWaiterConfirmation: o.RequiresWaiterConfirmation,
		InventoryDeducted:          o.InventoryDeducted,
		PlacedAt:                   o.PlacedAt,
		ConfirmedAt:                nullTime(o.ConfirmedAt),
		PreparationStartedAt:       nullTime(o.PreparationStartedAt),
		ReadyAt:                    nullTime(o.ReadyAt),
		ServedAt:                   nullTime(o.ServedAt),
		BillPresentedAt:            nullTime(o.BillPresentedAt),
		CompletedAt:                nullTime(o.CompletedAt),
		CancelledAt:                nullTime(o.CancelledAt),
		CancellationReason:         nullString(o.CancellationReason),
	}
}

// ToDomain converts OrderModel to core.Order without items
func (m *OrderModel) ToDomain() *core.Order {
	return &core.Order{
		ID:                         m.ID,
		OrderNumber:                m.OrderNumber,
		RestaurantID:               m.RestaurantID,
		BranchID:                   m.BranchID,
		TableID:                    m.TableID,
		WaiterID:                   m.WaiterID.String,
		Type:                       core.OrderType(m.Type),
		Status:                     core.OrderStatus(m.Status),
		Subtotal:                   m.Subtotal,
		TaxRate:                    m.TaxRate,
		ServiceRate:                m.ServiceRate,
		TaxAmount:                  m.TaxAmount,
		ServiceCharge:              m.ServiceCharge,
		DiscountAmount:             m.DiscountAmount,
		TotalAmount:                m.TotalAmount,
		IsPaid:                     m.IsPaid,
		IsPriority:                 m.IsPriority,
		RequiresWaiterConfirmation: m.RequiresWaiterConfirmation,
		InventoryDeducted:          m.InventoryDeducted,
		PlacedAt:                   m.PlacedAt,
		ConfirmedAt:                timePtr(m.ConfirmedAt),
		PreparationStartedAt:       timePtr(m.PreparationStartedAt),
		ReadyAt:                    timePtr(m.ReadyAt),
		ServedAt:                   timePtr(m.ServedAt),
		BillPresentedAt:            timePtr(m.BillPresentedAt),
		CompletedAt:                timePtr(m.CompletedAt),
		CancelledAt:                timePtr(m.CancelledAt),
		CancellationReason:         m.CancellationReason.String,
		Items:                      []core.OrderItem{},
	}
}

// OrderItemModel represents the order_items table structure
type OrderItemModel struct {
	ID                  string          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID             string          `gorm:"column:order_id;type:uuid;not null;index"`
	MenuItemID          string          `gorm:"column:menu_item_id;type:uuid;not null"`
	MenuItemName        string          `gorm:"column:menu_item_name;type:varchar(255);not null"`
	Quantity            int             `gorm:"column:quantity;type:integer;not null"`
	UnitPrice           decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	SpecialInstructions sql.NullString  `gorm:"column:special_instructions;type:text"`
	Position            int             `gorm:"column:position;type:integer;not null;default:0"`
}

func (OrderItemModel) TableName() string { return "order_items" }

// OrderItemModelFromDomain creates OrderItemModel from core.OrderItem
func OrderItemModelFromDomain(it *core.OrderItem) *OrderItemModel {
	return &OrderItemModel{
		ID:                  it.ID,
		OrderID:             it.OrderID,
		MenuItemID:          it.MenuItemID,
		MenuItemName:        it.MenuItemName,
		Quantity:            it.Quantity,
		UnitPrice:           it.UnitPrice,
		SpecialInstructions: nullString(it.SpecialInstructions),
	}
}

func (m *OrderItemModel) ToDomain() core.OrderItem {
	return core.OrderItem{
		ID:                  m.ID,
		OrderID:             m.OrderID,
		MenuItemID:          m.MenuItemID,
		MenuItemName:        m.MenuItemName,
		Quantity:            m.Quantity,
		UnitPrice:           m.UnitPrice,
		SpecialInstructions: m.SpecialInstructions.String,
	}
}

// PaymentModel represents the payments table structure
type PaymentModel struct {
	ID              string          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         string          `gorm:"column:order_id;type:uuid;not null;index"`
	RestaurantID    string          `gorm:"column:restaurant_id;type:uuid;not null"`
	Method          string          `gorm:"column:method;type:varchar(20);not null"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Status          string          `gorm:"column:status;type:varchar(20);not null"`
	TransactionID   sql.NullString  `gorm:"column:transaction_id;type:varchar(255)"`
	ReceiptNumber   sql.NullString  `gorm:"column:receipt_number;type:varchar(20)"`
	GatewayResponse sql.NullString  `gorm:"column:gateway_response;type:text"`
	ProcessedBy     sql.NullString  `gorm:"column:processed_by;type:varchar(64)"`
	RefundedAmount  decimal.Decimal `gorm:"column:refunded_amount;type:numeric(12,2);not null;default:0"`
	RefundReason    sql.NullString  `gorm:"column:refund_reason;type:text"`
	FailureReason   sql.NullString  `gorm:"column:failure_reason;type:text"`
	CreatedAt       time.Time       `gorm:"column:created_at;type:timestamptz;not null"`
	ProcessedAt     sql.NullTime    `gorm:"column:processed_at;type:timestamptz"`
	RefundedAt      sql.NullTime    `gorm:"column:refunded_at;type:timestamptz"`
}

func (PaymentModel) TableName() string { return "payments" }

func PaymentModelFromDomain(p *core.Payment) *PaymentModel {
	return &PaymentModel{
		ID:              p.ID,
		OrderID:         p.OrderID,
		RestaurantID:    p.RestaurantID,
		Method:          string(p.Method),
		Amount:          p.Amount,
		Status:          string(p.Status),
		TransactionID:   nullString(p.TransactionID),
		ReceiptNumber:   nullString(p.ReceiptNumber),
		GatewayResponse: nullString(p.GatewayResponse),
		ProcessedBy:     nullString(p.ProcessedBy),
		RefundedAmount:  p.RefundedAmount,
		RefundReason:    nullString(p.RefundReason),
		FailureReason:   nullString(p.FailureReason),
		CreatedAt:       p.CreatedAt,
		ProcessedAt:     nullTime(p.ProcessedAt),
		RefundedAt:      nullTime(p.RefundedAt),
	}
}

func (m *PaymentModel) ToDomain() *core.Payment {
	return &core.Payment{
		ID:              m.ID,
		OrderID:         m.OrderID,
		RestaurantID:    m.RestaurantID,
		Method:          core.PaymentMethod(m.Method),
		Amount:          m.Amount,
		Status:          core.PaymentStatus(m.Status),
		TransactionID:   m.TransactionID.String,
		ReceiptNumber:   m.ReceiptNumber.String,
		GatewayResponse: m.GatewayResponse.String,
		ProcessedBy:     m.ProcessedBy.String,
		RefundedAmount:  m.RefundedAmount,
		RefundReason:    m.RefundReason.String,
		FailureReason:   m.FailureReason.String,
		CreatedAt:       m.CreatedAt,
		ProcessedAt:     timePtr(m.ProcessedAt),
		RefundedAt:      timePtr(m.RefundedAt),
	}
}

// WasteCategoryModel represents the waste_categories table structure
type WasteCategoryModel struct {
	ID               string `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID     string `gorm:"column:restaurant_id;type:uuid;not null"`
	Name             string `gorm:"column:name;type:varchar(100);not null"`
	RequiresApproval bool   `gorm:"column:requires_approval;type:boolean;not null;default:false"`
}

func (WasteCategoryModel) TableName() string { return "waste_categories" }

// WasteReasonModel represents the waste_reasons table structure
type WasteReasonModel struct {
	ID                  string `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID        string `gorm:"column:restaurant_id;type:uuid;not null"`
	CategoryID          string `gorm:"column:category_id;type:uuid;not null"`
	Name                string `gorm:"column:name;type:varchar(100);not null"`
	RequiresExplanation bool   `gorm:"column:requires_explanation;type:boolean;not null;default:false"`
	RequiresPhoto       bool   `gorm:"column:requires_photo;type:boolean;not null;default:false"`
	IsActive            bool   `gorm:"column:is_active;type:boolean;not null;default:true"`
}

func (WasteReasonModel) TableName() string { return "waste_reasons" }

// WasteRecordModel represents the waste_records table structure
type WasteRecordModel struct {
	ID               string          `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID    string          `gorm:"column:transaction_id;type:uuid;not null;uniqueIndex"`
	StockItemID      string          `gorm:"column:stock_item_id;type:uuid;not null"`
	RestaurantID     string          `gorm:"column:restaurant_id;type:uuid;not null"`
	BranchID         string          `gorm:"column:branch_id;type:uuid;not null"`
	ReasonID         string          `gorm:"column:reason_id;type:uuid;not null"`
	CategoryID       string          `gorm:"column:category_id;type:uuid;not null"`
	Quantity         decimal.Decimal `gorm:"column:quantity;type:numeric(14,4);not null"`
	TotalCost        decimal.Decimal `gorm:"column:total_cost;type:numeric(14,4);not null"`
	Status           string          `gorm:"column:status;type:varchar(20);not null"`
	Priority         string          `gorm:"column:priority;type:varchar(10);not null"`
	IsRecurringIssue bool            `gorm:"column:is_recurring_issue;type:boolean;not null;default:false"`
	RecurrenceID     sql.NullString  `gorm:"column:recurrence_id;type:uuid"`
	Notes            sql.NullString  `gorm:"column:notes;type:text"`
	PhotoURL         sql.NullString  `gorm:"column:photo_url;type:varchar(500)"`
	RecordedBy       string          `gorm:"column:recorded_by;type:varchar(64);not null"`
	ReviewedBy       sql.NullString  `gorm:"column:reviewed_by;type:varchar(64)"`
	ReviewNotes      sql.NullString  `gorm:"column:review_notes;type:text"`
	ReviewedAt       sql.NullTime    `gorm:"column:reviewed_at;type:timestamptz"`
	CreatedAt        time.Time       `gorm:"column:created_at;type:timestamptz;not null"`
}

func (WasteRecordModel) TableName() string { return "waste_records" }

func WasteRecordModelFromDomain(w *core.WasteRecord) *WasteRecordModel {
	return &WasteRecordModel{
		ID:               w.ID,
		TransactionID:    w.TransactionID,
		StockItemID:      w.StockItemID,
		RestaurantID:     w.RestaurantID,
		BranchID:         w.BranchID,
		ReasonID:         w.ReasonID,
		CategoryID:       w.CategoryID,
		Quantity:         w.Quantity,
		TotalCost:        w.TotalCost,
		Status:           string(w.Status),
		Priority:         string(w.Priority),
		IsRecurringIssue: w.IsRecurringIssue,
		RecurrenceID:     nullString(w.RecurrenceID),
		Notes:            nullString(w.Notes),
		PhotoURL:         nullString(w.PhotoURL),
		RecordedBy:       w.RecordedBy,
		ReviewedBy:       nullString(w.ReviewedBy),
		ReviewNotes:      nullString(w.ReviewNotes),
		ReviewedAt:       nullTime(w.ReviewedAt),
		CreatedAt:        w.CreatedAt,
	}
}

func (m *WasteRecordModel) ToDomain() *core.WasteRecord {
	return &core.WasteRecord{
		ID:               m.ID,
		TransactionID:    m.TransactionID,
		StockItemID:      m.StockItemID,
		RestaurantID:     m.RestaurantID,
		BranchID:         m.BranchID,
		ReasonID:         m.ReasonID,
		CategoryID:       m.CategoryID,
		Quantity:         m.Quantity,
		TotalCost:        m.TotalCost,
		Status:           core.WasteStatus(m.Status),
		Priority:         core.WastePriority(m.Priority),
		IsRecurringIssue: m.IsRecurringIssue,
		RecurrenceID:     m.RecurrenceID.String,
		Notes:            m.Notes.String,
		PhotoURL:         m.PhotoURL.String,
		RecordedBy:       m.RecordedBy,
		ReviewedBy:       m.ReviewedBy.String,
		ReviewNotes:      m.ReviewNotes.String,
		ReviewedAt:       timePtr(m.ReviewedAt),
		CreatedAt:        m.CreatedAt,
	}
}

// ProfitAggregationModel represents the profit_aggregations table. An empty branch_id
// is the restaurant-wide row.
type ProfitAggregationModel struct {
	Level              string          `gorm:"column:level;type:varchar(10);primaryKey"`
	Date               time.Time       `gorm:"column:date;type:date;primaryKey"`
	RestaurantID       string          `gorm:"column:restaurant_id;type:uuid;primaryKey"`
	BranchID           string          `gorm:"column:branch_id;type:varchar(36);primaryKey"`
	Revenue            decimal.Decimal `gorm:"column:revenue;type:numeric(14,2);not null"`
	CostOfGoods        decimal.Decimal `gorm:"column:cost_of_goods;type:numeric(14,2);not null"`
	WasteCost          decimal.Decimal `gorm:"column:waste_cost;type:numeric(14,2);not null"`
	NetProfit          decimal.Decimal `gorm:"column:net_profit;type:numeric(14,2);not null"`
	ProfitMargin       decimal.Decimal `gorm:"column:profit_margin;type:numeric(8,2);not null"`
	OrderCount         int             `gorm:"column:order_count;type:integer;not null"`
	AverageOrderValue  decimal.Decimal `gorm:"column:average_order_value;type:numeric(14,2);not null"`
	WastePercentage    decimal.Decimal `gorm:"column:waste_percentage;type:numeric(8,2);not null"`
	EstimatedCostItems int             `gorm:"column:estimated_cost_items;type:integer;not null;default:0"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;type:timestamptz;not null"`
}

func (ProfitAggregationModel) TableName() string { return "profit_aggregations" }

// MenuItemPerformanceModel represents the menu_item_performance table
type MenuItemPerformanceModel struct {
	Date           time.Time       `gorm:"column:date;type:date;primaryKey"`
	MenuItemID     string          `gorm:"column:menu_item_id;type:uuid;primaryKey"`
	RestaurantID   string          `gorm:"column:restaurant_id;type:uuid;primaryKey"`
	BranchID       string          `gorm:"column:branch_id;type:varchar(36);primaryKey"`
	MenuItemName   string          `gorm:"column:menu_item_name;type:varchar(255);not null"`
	QuantitySold   int             `gorm:"column:quantity_sold;type:integer;not null"`
	Revenue        decimal.Decimal `gorm:"column:revenue;type:numeric(14,2);not null"`
	IngredientCost decimal.Decimal `gorm:"column:ingredient_cost;type:numeric(14,2);not null"`
	LaborCostShare decimal.Decimal `gorm:"column:labor_cost_share;type:numeric(14,2);not null"`
	TotalCost      decimal.Decimal `gorm:"column:total_cost;type:numeric(14,2);not null"`
	GrossProfit    decimal.Decimal `gorm:"column:gross_profit;type:numeric(14,2);not null"`
	NetProfit      decimal.Decimal `gorm:"column:net_profit;type:numeric(14,2);not null"`
	ProfitMargin   decimal.Decimal `gorm:"column:profit_margin;type:numeric(8,2);not null"`
	Trend          string          `gorm:"column:trend;type:varchar(10);not null"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;type:timestamptz;not null"`
}

func (MenuItemPerformanceModel) TableName() string { return "menu_item_performance" }

// InventoryAlertModel represents the inventory_alerts table. A partial unique index on
// (stock_item_id, kind, order_ref) WHERE NOT resolved keeps one open alert per key.
type InventoryAlertModel struct {
	ID               string          `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID     string          `gorm:"column:restaurant_id;type:uuid;not null"`
	BranchID         string          `gorm:"column:branch_id;type:uuid;not null"`
	StockItemID      string          `gorm:"column:stock_item_id;type:uuid;not null"`
	Kind             string          `gorm:"column:kind;type:varchar(20);not null"`
	Message          string          `gorm:"column:message;type:text;not null"`
	CurrentQuantity  decimal.Decimal `gorm:"column:current_quantity;type:numeric(14,4);not null"`
	RequiredQuantity decimal.Decimal `gorm:"column:required_quantity;type:numeric(14,4);not null"`
	OrderRef         string          `gorm:"column:order_ref;type:varchar(36);not null;default:''"`
	Resolved         bool            `gorm:"column:resolved;type:boolean;not null;default:false"`
	CreatedAt        time.Time       `gorm:"column:created_at;type:timestamptz;not null"`
	ResolvedAt       sql.NullTime    `gorm:"column:resolved_at;type:timestamptz"`
}

func (InventoryAlertModel) TableName() string { return "inventory_alerts" }

// ProfitAlertModel represents the profit_alerts table
type ProfitAlertModel struct {
	ID           string          `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID string          `gorm:"column:restaurant_id;type:uuid;not null"`
	BranchID     string          `gorm:"column:branch_id;type:varchar(36);not null;default:''"`
	Kind         string          `gorm:"column:kind;type:varchar(20);not null"`
	Subject      string          `gorm:"column:subject;type:varchar(64);not null"`
	Day          time.Time       `gorm:"column:day;type:date;not null"`
	Message      string          `gorm:"column:message;type:text;not null"`
	Value        decimal.Decimal `gorm:"column:value;type:numeric(14,2);not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;type:timestamptz;not null"`
}

func (ProfitAlertModel) TableName() string { return "profit_alerts" }

// WasteAlertModel represents the waste_alerts table
type WasteAlertModel struct {
	ID           string    `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID string    `gorm:"column:restaurant_id;type:uuid;not null"`
	BranchID     string    `gorm:"column:branch_id;type:uuid;not null"`
	StockItemID  string    `gorm:"column:stock_item_id;type:uuid;not null"`
	ReasonID     string    `gorm:"column:reason_id;type:uuid;not null"`
	RecurrenceID string    `gorm:"column:recurrence_id;type:uuid;not null"`
	Kind         string    `gorm:"column:kind;type:varchar(20);not null"`
	Occurrences  int       `gorm:"column:occurrences;type:integer;not null"`
	Day          time.Time `gorm:"column:day;type:date;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz;not null"`
}

func (WasteAlertModel) TableName() string { return "waste_alerts" }

// HandlerFailureModel represents the handler_failures table
type HandlerFailureModel struct {
	ID          string    `gorm:"column:id;type:uuid;primaryKey"`
	EventType   string    `gorm:"column:event_type;type:varchar(50);not null"`
	AggregateID string    `gorm:"column:aggregate_id;type:varchar(64);not null"`
	Handler     string    `gorm:"column:handler;type:varchar(100);not null"`
	Attempts    int       `gorm:"column:attempts;type:integer;not null"`
	ErrorKind   string    `gorm:"column:error_kind;type:varchar(30);not null"`
	Message     string    `gorm:"column:message;type:text;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz;not null"`
}

func (HandlerFailureModel) TableName() string { return "handler_failures" }
