package core

// OrderStatus represents the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "pending"
	OrderStatusConfirmed     OrderStatus = "confirmed"
	OrderStatusPreparing     OrderStatus = "preparing"
	OrderStatusReady         OrderStatus = "ready"
	OrderStatusServed        OrderStatus = "served"
	OrderStatusBillPresented OrderStatus = "bill_presented"
	OrderStatusCompleted     OrderStatus = "completed"
	OrderStatusCancelled     OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:       {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:     {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing:     {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:         {OrderStatusServed},
	OrderStatusServed:        {OrderStatusBillPresented, OrderStatusCompleted},
	OrderStatusBillPresented: {OrderStatusCompleted},
}

// Valid reports whether s is a known order status
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing, OrderStatusReady,
		OrderStatusServed, OrderStatusBillPresented, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows s → target
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// IsPayable reports whether payments may be taken in this state
func (s OrderStatus) IsPayable() bool {
	return s == OrderStatusServed || s == OrderStatusBillPresented
}

// ItemsEditable reports whether order items may still change
func (s OrderStatus) ItemsEditable() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed || s == OrderStatusPreparing
}

// InitialStatus returns the state a new order of type t starts in
func InitialStatus(t OrderType) OrderStatus {
	if t == OrderTypeWaiter {
		return OrderStatusConfirmed
	}
	return OrderStatusPending
}

// Valid reports whether t is a known order type
func (t OrderType) Valid() bool {
	return t == OrderTypeQR || t == OrderTypeWaiter || t == OrderTypeOnline
}

// CanReview reports whether a waste record in status s may be approved or rejected
func (s WasteStatus) CanReview() bool {
	return s == WastePending || s == WasteInvestigating
}
