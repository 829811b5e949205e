package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/dumu-tech/restaurant-ops/internal/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderItemInput is a requested line on an order
type OrderItemInput struct {
	MenuItemID          string `json:"menu_item_id"`
	Quantity            int    `json:"quantity"`
	SpecialInstructions string `json:"special_instructions"`
}

// CreateOrderRequest carries everything needed to place an order
type CreateOrderRequest struct {
	TableID        string           `json:"table_id"`
	Type           core.OrderType   `json:"type"`
	WaiterID       string           `json:"waiter_id"`
	Items          []OrderItemInput `json:"items"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
	IsPriority     bool             `json:"is_priority"`
	// TableToken is the QR token scanned by the customer, if any
	TableToken string `json:"table_token"`
}

// TransitionOptions carries optional data for a transition
type TransitionOptions struct {
	Reason string `json:"reason"`
}

// TableToken is a short-lived QR credential for a table
type TableToken struct {
	Token     string    `json:"token"`
	TableID   string    `json:"table_id"`
	DeepLink  string    `json:"deep_link"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OrderService owns the order lifecycle
type OrderService struct {
	store     core.Store
	bus       *events.EventBus
	sequencer core.Sequencer
	tokens    core.TableTokenStore
	pricing   core.PricingPolicy
	tokenTTL  time.Duration
	loc       *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrderService creates a new order service. tokens may be nil when QR tokens are not used.
func NewOrderService(
	store core.Store,
	bus *events.EventBus,
	sequencer core.Sequencer,
	tokens core.TableTokenStore,
	pricing core.PricingPolicy,
	tokenTTL time.Duration,
	loc *time.Location,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		store:     store,
		bus:       bus,
		sequencer: sequencer,
		tokens:    tokens,
		pricing:   pricing,
		tokenTTL:  tokenTTL,
		loc:       loc,
		logger:    logger,
		now:       time.Now,
	}
}

// GetOrder returns an order with its items
func (s *OrderService) GetOrder(ctx context.Context, id string) (*core.Order, error) {
	return s.store.Orders().GetOrder(ctx, id)
}

// CreateOrder places a new order. Waiter orders start confirmed, others pending.
func (s *OrderService) CreateOrder(ctx context.Context, actor core.Actor, req CreateOrderRequest) (*core.Order, error) {
	if !req.Type.Valid() {
		return nil, core.Validation("type", fmt.Sprintf("unsupported order type %q", req.Type))
	}
	if len(req.Items) == 0 {
		return nil, core.Validation("items", "an order needs at least one item")
	}
	if req.DiscountAmount.IsNegative() {
		return nil, core.Validation("discount_amount", "discount cannot be negative")
	}
	for _, in := range req.Items {
		if in.Quantity < 1 {
			return nil, core.Validation("quantity", "quantity must be at least 1")
		}
	}

	table, err := s.store.Catalog().GetTable(ctx, req.TableID)
	if err != nil {
		return nil, err
	}
	if table.Status == core.TableOutOfService {
		return nil, core.Precondition("table is out of service")
	}
	if req.TableToken != "" {
		if err := s.checkTableToken(ctx, req.TableToken, table); err != nil {
			return nil, err
		}
	}
	restaurant, err := s.store.Catalog().GetRestaurant(ctx, table.RestaurantID)
	if err != nil {
		return nil, err
	}
	pricing := s.pricing.For(restaurant)

	now := s.now()
	order := &core.Order{
		ID:                         uuid.New().String(),
		RestaurantID:               table.RestaurantID,
		BranchID:                   table.BranchID,
		TableID:                    table.ID,
		Type:                       req.Type,
		Status:                     core.InitialStatus(req.Type),
		TaxRate:                    pricing.TaxRate,
		ServiceRate:                pricing.ServiceRate,
		DiscountAmount:             req.DiscountAmount,
		IsPriority:                 req.IsPriority,
		RequiresWaiterConfirmation: req.Type == core.OrderTypeQR,
		PlacedAt:                   now,
	}
	for _, in := range req.Items {
		item, err := s.orderItemFor(ctx, order, in)
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, *item)
	}
	if err := recomputeTotals(order); err != nil {
		return nil, err
	}

	if order.Status == core.OrderStatusConfirmed {
		order.WaiterID = req.WaiterID
		if order.WaiterID == "" {
			order.WaiterID = actor.UserID
		}
		order.ConfirmedAt = &now
	}

	err = s.store.Atomic(ctx, func(ctx context.Context) error {
		day := core.Day(now, s.loc)
		seq, err := s.sequencer.Next(ctx, core.SequenceOrder, order.RestaurantID, day)
		if err != nil {
			return fmt.Errorf("failed to assign order number: %w", err)
		}
		order.OrderNumber = FormatOrderNumber(day, seq)

		if err := s.store.Orders().CreateOrder(ctx, order); err != nil {
			return err
		}
		if order.Status == core.OrderStatusConfirmed {
			if err := s.store.Catalog().UpdateTableStatus(ctx, order.TableID, core.TableOccupied); err != nil {
				return fmt.Errorf("failed to occupy table: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("type", string(order.Type)),
		zap.String("total", order.TotalAmount.String()),
		zap.String("actor", actor.UserID))
	s.publish(ctx, events.Event{Type: events.EventOrderCreated, AggregateID: order.ID, Data: order})
	return order, nil
}

// AddItem appends a line to an editable order
func (s *OrderService) AddItem(ctx context.Context, actor core.Actor, orderID string, in OrderItemInput) (*core.Order, error) {
	if in.Quantity < 1 {
		return nil, core.Validation("quantity", "quantity must be at least 1")
	}
	return s.editItems(ctx, actor, orderID, func(ctx context.Context, order *core.Order) error {
		item, err := s.orderItemFor(ctx, order, in)
		if err != nil {
			return err
		}
		order.Items = append(order.Items, *item)
		if err := recomputeTotals(order); err != nil {
			return err
		}
		return s.store.Orders().AddItem(ctx, item)
	})
}

// UpdateItem changes the quantity and, when instructions is non-nil, the instructions of a line
func (s *OrderService) UpdateItem(ctx context.Context, actor core.Actor, orderID, itemID string, quantity int, instructions *string) (*core.Order, error) {
	if quantity < 1 {
		return nil, core.Validation("quantity", "quantity must be at least 1")
	}
	return s.editItems(ctx, actor, orderID, func(ctx context.Context, order *core.Order) error {
		item, ok := order.Item(itemID)
		if !ok {
			return core.NotFound("order_item", itemID)
		}
		item.Quantity = quantity
		if instructions != nil {
			item.SpecialInstructions = *instructions
		}
		if err := recomputeTotals(order); err != nil {
			return err
		}
		return s.store.Orders().UpdateItem(ctx, item)
	})
}

// RemoveItem deletes a line. The last line of an order cannot be removed.
func (s *OrderService) RemoveItem(ctx context.Context, actor core.Actor, orderID, itemID string) (*core.Order, error) {
	return s.editItems(ctx, actor, orderID, func(ctx context.Context, order *core.Order) error {
		if _, ok := order.Item(itemID); !ok {
			return core.NotFound("order_item", itemID)
		}
		if len(order.Items) == 1 {
			return core.Validation("items", "an order must keep at least one item; cancel it instead")
		}
		kept := order.Items[:0:0]
		for _, it := range order.Items {
			if it.ID != itemID {
				kept = append(kept, it)
			}
		}
		order.Items = kept
		if err := recomputeTotals(order); err != nil {
			return err
		}
		return s.store.Orders().DeleteItem(ctx, orderID, itemID)
	})
}

func (s *OrderService) editItems(ctx context.Context, actor core.Actor, orderID string, edit func(ctx context.Context, order *core.Order) error) (*core.Order, error) {
	var order *core.Order
	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.store.Orders().LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.ItemsEditable() {
			return core.Precondition(fmt.Sprintf("items cannot change once an order is %s", order.Status))
		}
		if err := edit(ctx, order); err != nil {
			return err
		}
		return s.store.Orders().UpdateOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("order items changed",
		zap.String("order_id", order.ID),
		zap.String("total", order.TotalAmount.String()),
		zap.String("actor", actor.UserID))
	return order, nil
}

// Transition moves an order to target under its row lock and publishes the resulting events after commit
func (s *OrderService) Transition(ctx context.Context, actor core.Actor, orderID string, target core.OrderStatus, opts TransitionOptions) (*core.Order, error) {
	if !target.Valid() {
		return nil, core.Validation("status", fmt.Sprintf("unknown status %q", target))
	}

	var (
		order   *core.Order
		pending []events.Event
	)
	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.store.Orders().LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if target == core.OrderStatusCompleted && order.Status.CanTransitionTo(target) {
			if err := s.requireCoveringPayment(ctx, order); err != nil {
				return err
			}
		}
		pending, err = s.applyTransition(ctx, order, target, actor, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, pending...)
	return order, nil
}

func (s *OrderService) requireCoveringPayment(ctx context.Context, order *core.Order) error {
	payments, err := s.store.Payments().ListPaymentsForOrder(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("failed to list payments: %w", err)
	}
	for _, p := range payments {
		if p.Status == core.PaymentCompleted && p.Amount.GreaterThanOrEqual(order.TotalAmount) {
			return nil
		}
	}
	return core.Precondition("order cannot be completed without a completed payment covering the total")
}

// applyTransition validates and applies target to a locked order inside the caller's
// unit of work. It returns the events to publish once that unit of work commits.
func (s *OrderService) applyTransition(ctx context.Context, order *core.Order, target core.OrderStatus, actor core.Actor, opts TransitionOptions) ([]events.Event, error) {
	from := order.Status
	if from == target && target == core.OrderStatusConfirmed {
		return nil, core.Precondition("order is already confirmed")
	}
	if !from.CanTransitionTo(target) {
		return nil, core.InvalidTransition("order", string(from), string(target))
	}

	now := s.now()
	var evts []events.Event
	switch target {
	case core.OrderStatusConfirmed:
		order.ConfirmedAt = &now
		if order.WaiterID == "" {
			order.WaiterID = actor.UserID
		}
		order.RequiresWaiterConfirmation = false
		if err := s.store.Catalog().UpdateTableStatus(ctx, order.TableID, core.TableOccupied); err != nil {
			return nil, fmt.Errorf("failed to occupy table: %w", err)
		}

	case core.OrderStatusPreparing:
		order.PreparationStartedAt = &now

	case core.OrderStatusReady:
		order.ReadyAt = &now

	case core.OrderStatusServed:
		order.ServedAt = &now
		anchor := &core.Payment{
			ID:             uuid.New().String(),
			OrderID:        order.ID,
			RestaurantID:   order.RestaurantID,
			Method:         core.PaymentMethodUnspecified,
			Amount:         order.TotalAmount,
			Status:         core.PaymentPending,
			RefundedAmount: decimal.Zero,
			CreatedAt:      now,
		}
		if err := s.store.Payments().CreatePayment(ctx, anchor); err != nil {
			return nil, fmt.Errorf("failed to anchor bill: %w", err)
		}

	case core.OrderStatusBillPresented:
		order.BillPresentedAt = &now

	case core.OrderStatusCompleted:
		order.CompletedAt = &now
		order.IsPaid = true
		for _, it := range order.Items {
			if err := s.store.Catalog().IncrementSoldCount(ctx, it.MenuItemID, it.Quantity); err != nil {
				return nil, fmt.Errorf("failed to update sold count: %w", err)
			}
		}
		if err := s.store.Catalog().UpdateTableStatus(ctx, order.TableID, core.TableCleaning); err != nil {
			return nil, fmt.Errorf("failed to release table: %w", err)
		}
		if err := s.cancelOpenAnchors(ctx, order.ID); err != nil {
			return nil, err
		}
		evts = append(evts, events.Event{
			Type:        events.EventOrderCompleted,
			AggregateID: order.ID,
			Data: events.OrderCompleted{
				OrderID:      order.ID,
				RestaurantID: order.RestaurantID,
				BranchID:     order.BranchID,
				CompletedAt:  now,
			},
		})

	case core.OrderStatusCancelled:
		order.CancelledAt = &now
		order.CancellationReason = strings.TrimSpace(opts.Reason)
		others, err := s.store.Orders().CountOpenOrdersForTable(ctx, order.TableID, order.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check table: %w", err)
		}
		if others == 0 {
			if err := s.store.Catalog().UpdateTableStatus(ctx, order.TableID, core.TableAvailable); err != nil {
				return nil, fmt.Errorf("failed to release table: %w", err)
			}
		}
		evts = append(evts, events.Event{
			Type:        events.EventOrderCancelled,
			AggregateID: order.ID,
			Data: events.OrderCancelled{
				OrderID:           order.ID,
				InventoryDeducted: order.InventoryDeducted,
				Reason:            order.CancellationReason,
			},
		})
	}

	order.Status = target
	if err := s.store.Orders().UpdateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	s.logger.Info("order transitioned",
		zap.String("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("actor", actor.UserID))

	changed := events.Event{
		Type:        events.EventOrderStatusChanged,
		AggregateID: order.ID,
		Data: events.OrderStatusChanged{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			TableID:     order.TableID,
			From:        string(from),
			To:          string(target),
		},
	}
	return append([]events.Event{changed}, evts...), nil
}

// cancelOpenAnchors closes bill anchors that no payment reused
func (s *OrderService) cancelOpenAnchors(ctx context.Context, orderID string) error {
	payments, err := s.store.Payments().ListPaymentsForOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to list payments: %w", err)
	}
	for _, p := range payments {
		if p.Method == core.PaymentMethodUnspecified && p.Status == core.PaymentPending {
			p.Status = core.PaymentCancelled
			if err := s.store.Payments().UpdatePayment(ctx, p); err != nil {
				return fmt.Errorf("failed to close bill anchor: %w", err)
			}
		}
	}
	return nil
}

func (s *OrderService) orderItemFor(ctx context.Context, order *core.Order, in OrderItemInput) (*core.OrderItem, error) {
	menuItem, err := s.store.Catalog().GetMenuItem(ctx, in.MenuItemID)
	if err != nil {
		return nil, err
	}
	if menuItem.RestaurantID != order.RestaurantID {
		return nil, core.Validation("menu_item_id", "menu item belongs to another restaurant")
	}
	if !menuItem.IsAvailable {
		return nil, core.Validation("menu_item_id", fmt.Sprintf("%s is not available", menuItem.Name))
	}
	return &core.OrderItem{
		ID:                  uuid.New().String(),
		OrderID:             order.ID,
		MenuItemID:          menuItem.ID,
		MenuItemName:        menuItem.Name,
		Quantity:            in.Quantity,
		UnitPrice:           menuItem.Price,
		SpecialInstructions: strings.TrimSpace(in.SpecialInstructions),
	}, nil
}

// recomputeTotals derives every total from the item snapshots and the order's rates.
// Products keep full precision until each stored amount is rounded.
func recomputeTotals(order *core.Order) error {
	subtotal := decimal.Zero
	for _, it := range order.Items {
		subtotal = subtotal.Add(it.LineTotal())
	}
	tax := subtotal.Mul(core.Rate(order.TaxRate))
	service := subtotal.Mul(core.Rate(order.ServiceRate))
	gross := subtotal.Add(tax).Add(service)
	if order.DiscountAmount.GreaterThan(gross) {
		return core.Validation("discount_amount", "discount exceeds the order total")
	}

	order.Subtotal = core.Round2(subtotal)
	order.TaxAmount = core.Round2(tax)
	order.ServiceCharge = core.Round2(service)
	order.TotalAmount = core.Round2(gross.Sub(order.DiscountAmount))
	return nil
}

// FormatOrderNumber renders YYMMDD followed by a 4-digit daily counter
func FormatOrderNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("%s%04d", day.Format("060102"), seq)
}

// FormatReceiptNumber renders R, YYMMDD and a 4-digit daily counter
func FormatReceiptNumber(day time.Time, seq int64) string {
	return "R" + FormatOrderNumber(day, seq)
}

// IssueTableToken creates a QR token for a table
func (s *OrderService) IssueTableToken(ctx context.Context, tableID string) (*TableToken, error) {
	if s.tokens == nil {
		return nil, core.Precondition("table tokens are not configured")
	}
	table, err := s.store.Catalog().GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	token := table.BranchID + ":" + uuid.New().String()
	if err := s.tokens.SaveTableToken(ctx, token, table.ID, s.tokenTTL); err != nil {
		return nil, fmt.Errorf("failed to save table token: %w", err)
	}
	return &TableToken{
		Token:     token,
		TableID:   table.ID,
		DeepLink:  fmt.Sprintf("/%s/%s/", table.RestaurantID, table.ID),
		ExpiresAt: s.now().Add(s.tokenTTL),
	}, nil
}

func (s *OrderService) checkTableToken(ctx context.Context, token string, table *core.Table) error {
	if s.tokens == nil {
		return nil
	}
	branchID, _, ok := strings.Cut(token, ":")
	if !ok || branchID != table.BranchID {
		return core.Validation("table_token", "table token does not belong to this branch")
	}
	tableID, err := s.tokens.LookupTableToken(ctx, token)
	if err != nil {
		if core.KindOf(err) == core.KindNotFound {
			return core.Validation("table_token", "table token is invalid or expired")
		}
		return fmt.Errorf("failed to look up table token: %w", err)
	}
	if tableID != table.ID {
		return core.Validation("table_token", "table token was issued for another table")
	}
	return nil
}

func (s *OrderService) publish(ctx context.Context, evts ...events.Event) {
	publishAll(ctx, s.bus, s.logger, evts)
}

func publishAll(ctx context.Context, bus *events.EventBus, logger *zap.Logger, evts []events.Event) {
	if bus == nil {
		return
	}
	for _, evt := range evts {
		if err := bus.Publish(ctx, evt); err != nil {
			logger.Warn("event handlers reported failures",
				zap.String("event", string(evt.Type)),
				zap.String("aggregate_id", evt.AggregateID),
				zap.Error(err))
		}
	}
}
