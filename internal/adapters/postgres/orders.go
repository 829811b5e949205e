package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository implementation

var terminalStatuses = []string{string(core.OrderStatusCompleted), string(core.OrderStatusCancelled)}

// CreateOrder creates a new order with its items
func (r *orderRepository) CreateOrder(ctx context.Context, order *core.Order) error {
	return r.Atomic(ctx, func(ctx context.Context) error {
		tx := r.conn(ctx)
		if err := tx.Create(OrderModelFromDomain(order)).Error; err != nil {
			return translate(err, "order", order.ID)
		}

		for i := range order.Items {
			itemModel := OrderItemModelFromDomain(&order.Items[i])
			itemModel.OrderID = order.ID
			itemModel.Position = i
			if err := tx.Create(itemModel).Error; err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
		}
		return nil
	})
}

// fetchItems loads the items of the given orders keyed by order id
func (r *orderRepository) fetchItems(db *gorm.DB, orderIDs []string) (map[string][]core.OrderItem, error) {
	items := make(map[string][]core.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return items, nil
	}
	var models []OrderItemModel
	if err := db.Where("order_id IN ?", orderIDs).Order("order_id, position").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	for i := range models {
		items[models[i].OrderID] = append(items[models[i].OrderID], models[i].ToDomain())
	}
	return items, nil
}

func (r *orderRepository) load(ctx context.Context, id string, lock bool) (*core.Order, error) {
	db := r.conn(ctx)
	query := db
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var m OrderModel
	if err := query.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err, "order", id)
	}

	items, err := r.fetchItems(db, []string{id})
	if err != nil {
		return nil, err
	}
	order := m.ToDomain()
	if found := items[id]; found != nil {
		order.Items = found
	}
	return order, nil
}

// GetOrder retrieves an order with its items
func (r *orderRepository) GetOrder(ctx context.Context, id string) (*core.Order, error) {
	return r.load(ctx, id, false)
}

func (r *orderRepository) LockOrder(ctx context.Context, id string) (*core.Order, error) {
	return r.load(ctx, id, true)
}

// UpdateOrder writes the order header. Items are managed through the item methods.
func (r *orderRepository) UpdateOrder(ctx context.Context, order *core.Order) error {
	m := OrderModelFromDomain(order)
	result := r.conn(ctx).Model(&OrderModel{}).
		Where("id = ?", order.ID).
		Select("*").
		Omit("id", "order_number", "restaurant_id", "branch_id", "placed_at").
		Updates(m)
	return requireRow(result, "order", order.ID)
}

func (r *orderRepository) AddItem(ctx context.Context, item *core.OrderItem) error {
	db := r.conn(ctx)
	var position int
	if err := db.Model(&OrderItemModel{}).
		Where("order_id = ?", item.OrderID).
		Select("COALESCE(MAX(position) + 1, 0)").
		Scan(&position).Error; err != nil {
		return fmt.Errorf("failed to position order item: %w", err)
	}
	m := OrderItemModelFromDomain(item)
	m.Position = position
	if err := db.Create(m).Error; err != nil {
		return translate(err, "order_item", item.ID)
	}
	return nil
}

func (r *orderRepository) UpdateItem(ctx context.Context, item *core.OrderItem) error {
	result := r.conn(ctx).Model(&OrderItemModel{}).
		Where("id = ? AND order_id = ?", item.ID, item.OrderID).
		Updates(map[string]interface{}{
			"quantity":             item.Quantity,
			"unit_price":           item.UnitPrice,
			"special_instructions": nullString(item.SpecialInstructions),
		})
	return requireRow(result, "order_item", item.ID)
}

func (r *orderRepository) DeleteItem(ctx context.Context, orderID, itemID string) error {
	result := r.conn(ctx).Where("id = ? AND order_id = ?", itemID, orderID).Delete(&OrderItemModel{})
	return requireRow(result, "order_item", itemID)
}

func (r *orderRepository) CountOpenOrdersForTable(ctx context.Context, tableID, excludeOrderID string) (int, error) {
	query := r.conn(ctx).Model(&OrderModel{}).
		Where("table_id = ? AND status NOT IN ?", tableID, terminalStatuses)
	if excludeOrderID != "" {
		query = query.Where("id <> ?", excludeOrderID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count open orders: %w", err)
	}
	return int(count), nil
}

// ListCompletedOrders returns paid, completed orders with completed_at in [from, to)
func (r *orderRepository) ListCompletedOrders(ctx context.Context, restaurantID, branchID string, from, to time.Time) ([]*core.Order, error) {
	db := r.conn(ctx)
	query := db.Where("restaurant_id = ? AND status = ? AND is_paid = ?", restaurantID, string(core.OrderStatusCompleted), true).
		Where("completed_at >= ? AND completed_at < ?", from, to)
	if branchID != "" {
		query = query.Where("branch_id = ?", branchID)
	}

	var models []OrderModel
	if err := query.Order("completed_at").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list completed orders: %w", err)
	}

	ids := make([]string, len(models))
	for i := range models {
		ids[i] = models[i].ID
	}
	items, err := r.fetchItems(db, ids)
	if err != nil {
		return nil, err
	}

	orders := make([]*core.Order, len(models))
	for i := range models {
		orders[i] = models[i].ToDomain()
		if found := items[models[i].ID]; found != nil {
			orders[i].Items = found
		}
	}
	return orders, nil
}

// PaymentRepository implementation

func (r *paymentRepository) CreatePayment(ctx context.Context, p *core.Payment) error {
	if err := r.conn(ctx).Create(PaymentModelFromDomain(p)).Error; err != nil {
		return translate(err, "payment", p.ID)
	}
	return nil
}

func (r *paymentRepository) load(ctx context.Context, id string, lock bool) (*core.Payment, error) {
	query := r.conn(ctx)
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var m PaymentModel
	if err := query.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err, "payment", id)
	}
	return m.ToDomain(), nil
}

func (r *paymentRepository) GetPayment(ctx context.Context, id string) (*core.Payment, error) {
	return r.load(ctx, id, false)
}

func (r *paymentRepository) LockPayment(ctx context.Context, id string) (*core.Payment, error) {
	return r.load(ctx, id, true)
}

func (r *paymentRepository) UpdatePayment(ctx context.Context, p *core.Payment) error {
	result := r.conn(ctx).Model(&PaymentModel{}).
		Where("id = ?", p.ID).
		Select("*").
		Omit("id", "order_id", "restaurant_id", "created_at").
		Updates(PaymentModelFromDomain(p))
	return requireRow(result, "payment", p.ID)
}

func (r *paymentRepository) ListPaymentsForOrder(ctx context.Context, orderID string) ([]*core.Payment, error) {
	var models []PaymentModel
	if err := r.conn(ctx).Where("order_id = ?", orderID).Order("created_at").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	payments := make([]*core.Payment, len(models))
	for i := range models {
		payments[i] = models[i].ToDomain()
	}
	return payments, nil
}
