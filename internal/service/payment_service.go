package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/dumu-tech/restaurant-ops/internal/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var maxOverpayment = decimal.RequireFromString("1.5")

// PaymentService validates payments and couples their completion to the order's
type PaymentService struct {
	store      core.Store
	orders     *OrderService
	processors map[core.PaymentMethod]core.PaymentProcessor
	sequencer  core.Sequencer
	bus        *events.EventBus
	logger     *zap.Logger
	loc        *time.Location
	now        func() time.Time
	timeout    time.Duration
	dupWindow  time.Duration
}

// NewPaymentService creates a new payment service. timeout bounds every processor call
// and dupWindow is how far back the duplicate guard looks.
func NewPaymentService(
	store core.Store,
	orders *OrderService,
	processors []core.PaymentProcessor,
	sequencer core.Sequencer,
	bus *events.EventBus,
	loc *time.Location,
	timeout, dupWindow time.Duration,
	logger *zap.Logger,
) *PaymentService {
	byMethod := make(map[core.PaymentMethod]core.PaymentProcessor, len(processors))
	for _, p := range processors {
		byMethod[p.Method()] = p
	}
	return &PaymentService{
		store:      store,
		orders:     orders,
		processors: byMethod,
		sequencer:  sequencer,
		bus:        bus,
		logger:     logger,
		loc:        loc,
		now:        time.Now,
		timeout:    timeout,
		dupWindow:  dupWindow,
	}
}

// GetPayment returns a payment by id
func (s *PaymentService) GetPayment(ctx context.Context, id string) (*core.Payment, error) {
	return s.store.Payments().GetPayment(ctx, id)
}

// ListPayments returns every payment of an order, oldest first
func (s *PaymentService) ListPayments(ctx context.Context, orderID string) ([]*core.Payment, error) {
	if _, err := s.store.Orders().GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.store.Payments().ListPaymentsForOrder(ctx, orderID)
}

// CreatePayment takes a payment for a served order. Cash completes the order in the same
// unit of work; digital methods stay pending until the gateway confirms.
func (s *PaymentService) CreatePayment(ctx context.Context, actor core.Actor, orderID string, method core.PaymentMethod, amount decimal.Decimal) (*core.Payment, error) {
	if !method.Payable() {
		return nil, core.Validation("method", fmt.Sprintf("unsupported payment method %q", method))
	}
	if !amount.IsPositive() {
		return nil, core.Validation("amount", "amount must be greater than zero")
	}

	var (
		payment *core.Payment
		pending []events.Event
	)
	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		order, err := s.store.Orders().LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.IsPaid {
			return core.Precondition("order is already paid")
		}
		if !order.Status.IsPayable() {
			return core.Precondition(fmt.Sprintf("order cannot be paid while %s", order.Status))
		}
		if amount.LessThan(order.TotalAmount) {
			return core.Validation("amount", fmt.Sprintf("amount must cover the order total of %s", order.TotalAmount.StringFixed(2)))
		}
		if amount.GreaterThan(order.TotalAmount.Mul(maxOverpayment)) {
			return core.Validation("amount", "amount exceeds 150% of the order total")
		}

		now := s.now()
		existing, err := s.store.Payments().ListPaymentsForOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to list payments: %w", err)
		}
		var anchor *core.Payment
		for _, p := range existing {
			if p.Method == method && p.Amount.Equal(amount) &&
				(p.Status == core.PaymentPending || p.Status == core.PaymentCompleted) &&
				now.Sub(p.CreatedAt) < s.dupWindow {
				return core.DuplicatePayment(p.ID)
			}
			if anchor == nil && p.Method == core.PaymentMethodUnspecified && p.Status == core.PaymentPending {
				anchor = p
			}
		}

		if anchor != nil {
			payment = anchor
		} else {
			payment = &core.Payment{
				ID:             uuid.New().String(),
				OrderID:        order.ID,
				RestaurantID:   order.RestaurantID,
				RefundedAmount: decimal.Zero,
			}
		}
		payment.Method = method
		payment.Amount = amount
		payment.Status = core.PaymentPending
		payment.ProcessedBy = actor.UserID
		payment.CreatedAt = now

		if anchor != nil {
			err = s.store.Payments().UpdatePayment(ctx, payment)
		} else {
			err = s.store.Payments().CreatePayment(ctx, payment)
		}
		if err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}

		if method == core.PaymentMethodCash {
			pending, err = s.complete(ctx, actor, order, payment, "CASH-"+uuid.New().String(), "")
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment created",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", orderID),
		zap.String("method", string(method)),
		zap.String("amount", amount.String()),
		zap.String("status", string(payment.Status)),
		zap.String("actor", actor.UserID))
	publishAll(ctx, s.bus, s.logger, pending)
	return payment, nil
}

// MarkCompleted records gateway confirmation of a pending payment and completes its order
func (s *PaymentService) MarkCompleted(ctx context.Context, actor core.Actor, paymentID, transactionID, gatewayResponse string) (*core.Payment, error) {
	if transactionID == "" {
		return nil, core.Validation("transaction_id", "transaction id is required")
	}
	current, err := s.store.Payments().GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	var (
		payment *core.Payment
		pending []events.Event
		replay  bool
	)
	err = s.store.Atomic(ctx, func(ctx context.Context) error {
		order, err := s.store.Orders().LockOrder(ctx, current.OrderID)
		if err != nil {
			return err
		}
		payment, err = s.store.Payments().LockPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status == core.PaymentCompleted && payment.TransactionID == transactionID {
			replay = true
			return nil
		}
		if payment.Status != core.PaymentPending {
			return core.InvalidTransition("payment", string(payment.Status), string(core.PaymentCompleted))
		}
		if !payment.Method.Payable() {
			return core.Precondition("a bill anchor cannot be completed; create a payment with a method")
		}
		if order.IsPaid {
			return core.Precondition("order is already paid")
		}
		if !order.Status.IsPayable() {
			return core.Precondition(fmt.Sprintf("order cannot be paid while %s", order.Status))
		}
		pending, err = s.complete(ctx, actor, order, payment, transactionID, gatewayResponse)
		return err
	})
	if err != nil {
		return nil, err
	}
	if replay {
		return payment, nil
	}

	s.logger.Info("payment completed",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", payment.OrderID),
		zap.String("transaction_id", transactionID),
		zap.String("actor", actor.UserID))
	publishAll(ctx, s.bus, s.logger, pending)
	return payment, nil
}

// complete settles payment and moves its order to completed inside the caller's unit of work
func (s *PaymentService) complete(ctx context.Context, actor core.Actor, order *core.Order, payment *core.Payment, transactionID, gatewayResponse string) ([]events.Event, error) {
	now := s.now()
	day := core.Day(now, s.loc)
	seq, err := s.sequencer.Next(ctx, core.SequenceReceipt, order.RestaurantID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to assign receipt number: %w", err)
	}

	payment.Status = core.PaymentCompleted
	payment.TransactionID = transactionID
	payment.GatewayResponse = gatewayResponse
	payment.ReceiptNumber = FormatReceiptNumber(day, seq)
	payment.ProcessedBy = actor.UserID
	payment.ProcessedAt = &now
	if err := s.store.Payments().UpdatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	order.IsPaid = true
	evts, err := s.orders.applyTransition(ctx, order, core.OrderStatusCompleted, actor, TransitionOptions{})
	if err != nil {
		return nil, err
	}

	paid := events.Event{
		Type:        events.EventPaymentCompleted,
		AggregateID: order.ID,
		Data: events.PaymentCompleted{
			PaymentID:     payment.ID,
			OrderID:       order.ID,
			Method:        string(payment.Method),
			Amount:        payment.Amount,
			ReceiptNumber: payment.ReceiptNumber,
		},
	}
	return append([]events.Event{paid}, evts...), nil
}

// MarkFailed records a declined or abandoned payment
func (s *PaymentService) MarkFailed(ctx context.Context, actor core.Actor, paymentID, reason string) (*core.Payment, error) {
	var payment *core.Payment
	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		var err error
		payment, err = s.store.Payments().LockPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status == core.PaymentFailed {
			return nil
		}
		if payment.Status != core.PaymentPending {
			return core.InvalidTransition("payment", string(payment.Status), string(core.PaymentFailed))
		}
		now := s.now()
		payment.Status = core.PaymentFailed
		payment.FailureReason = reason
		payment.ProcessedAt = &now
		return s.store.Payments().UpdatePayment(ctx, payment)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Warn("payment failed",
		zap.String("payment_id", paymentID),
		zap.String("reason", reason),
		zap.String("actor", actor.UserID))
	return payment, nil
}

// Refund returns money through the payment's gateway. The order keeps its status.
func (s *PaymentService) Refund(ctx context.Context, actor core.Actor, paymentID string, amount decimal.Decimal, reason string) (*core.Payment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, core.Validation("reason", "a refund needs a reason")
	}
	if !amount.IsPositive() {
		return nil, core.Validation("amount", "amount must be greater than zero")
	}
	payment, err := s.store.Payments().GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != core.PaymentCompleted {
		return nil, core.InvalidTransition("payment", string(payment.Status), string(core.PaymentRefunded))
	}
	if amount.GreaterThan(payment.Amount) {
		return nil, core.Validation("amount", "refund exceeds the amount paid")
	}
	processor, err := s.processorFor(payment.Method)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	result, err := processor.Refund(cctx, payment, amount)
	cancel()
	if err != nil {
		return nil, s.gatewayError("refund", payment, err)
	}
	if !result.Success {
		return nil, core.Gateway("refund declined: "+result.Message, nil)
	}

	err = s.store.Atomic(ctx, func(ctx context.Context) error {
		payment, err = s.store.Payments().LockPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != core.PaymentCompleted {
			return core.Conflict("payment changed while the refund was processed", nil)
		}
		now := s.now()
		payment.Status = core.PaymentRefunded
		payment.RefundedAmount = amount
		payment.RefundReason = reason
		payment.RefundedAt = &now
		if result.Response != "" {
			payment.GatewayResponse = result.Response
		}
		return s.store.Payments().UpdatePayment(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment refunded",
		zap.String("payment_id", paymentID),
		zap.String("order_id", payment.OrderID),
		zap.String("amount", amount.String()),
		zap.String("reason", reason),
		zap.String("actor", actor.UserID))
	return payment, nil
}

// Process sends a pending digital payment to its gateway. A timeout or transport error
// leaves the payment pending and the order untouched.
func (s *PaymentService) Process(ctx context.Context, actor core.Actor, paymentID string) (*core.Payment, error) {
	payment, err := s.store.Payments().GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != core.PaymentPending {
		return nil, core.Precondition(fmt.Sprintf("payment is %s, not pending", payment.Status))
	}
	processor, err := s.processorFor(payment.Method)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	result, err := processor.Initiate(cctx, payment)
	cancel()
	if err != nil {
		return nil, s.gatewayError("initiate", payment, err)
	}
	return s.settle(ctx, actor, payment, result)
}

// Verify asks the gateway for the outcome of a pending payment
func (s *PaymentService) Verify(ctx context.Context, actor core.Actor, paymentID string) (*core.Payment, error) {
	payment, err := s.store.Payments().GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != core.PaymentPending {
		return payment, nil
	}
	processor, err := s.processorFor(payment.Method)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	result, err := processor.Verify(cctx, payment)
	cancel()
	if err != nil {
		return nil, s.gatewayError("verify", payment, err)
	}
	return s.settle(ctx, actor, payment, result)
}

func (s *PaymentService) settle(ctx context.Context, actor core.Actor, payment *core.Payment, result *core.GatewayResult) (*core.Payment, error) {
	switch {
	case result.Success:
		return s.MarkCompleted(ctx, actor, payment.ID, result.TransactionID, result.Response)
	case result.Pending:
		if result.TransactionID == "" || result.TransactionID == payment.TransactionID {
			return payment, nil
		}
		err := s.store.Atomic(ctx, func(ctx context.Context) error {
			p, err := s.store.Payments().LockPayment(ctx, payment.ID)
			if err != nil {
				return err
			}
			p.TransactionID = result.TransactionID
			p.GatewayResponse = result.Response
			payment = p
			return s.store.Payments().UpdatePayment(ctx, p)
		})
		return payment, err
	}

	failed, err := s.MarkFailed(ctx, actor, payment.ID, result.Message)
	if err != nil {
		return nil, err
	}
	return failed, core.Gateway("payment declined: "+result.Message, nil)
}

func (s *PaymentService) processorFor(method core.PaymentMethod) (core.PaymentProcessor, error) {
	p, ok := s.processors[method]
	if !ok {
		return nil, core.Validation("method", fmt.Sprintf("no gateway configured for %s", method))
	}
	return p, nil
}

func (s *PaymentService) gatewayError(op string, payment *core.Payment, err error) error {
	msg := "payment gateway unavailable"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "payment gateway timed out"
	}
	s.logger.Warn(msg,
		zap.String("op", op),
		zap.String("payment_id", payment.ID),
		zap.String("method", string(payment.Method)),
		zap.Error(err))
	if core.KindOf(err) == core.KindExternalGatewayError {
		return err
	}
	return core.Gateway(msg, err)
}
