package service

import (
	"strings"
	"testing"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/dumu-tech/restaurant-ops/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCashPaymentCompletesOrder(t *testing.T) {
	f := newFixture(t)
	order, payment := f.completeWithCash(t)

	assert.Equal(t, core.PaymentCompleted, payment.Status)
	assert.Equal(t, core.PaymentMethodCash, payment.Method)
	assert.True(t, strings.HasPrefix(payment.TransactionID, "CASH-"))
	assert.Equal(t, "R2603100001", payment.ReceiptNumber)
	assert.NotNil(t, payment.ProcessedAt)

	assert.Equal(t, core.OrderStatusCompleted, order.Status)
	assert.True(t, order.IsPaid)
	assert.NotNil(t, order.CompletedAt)

	table, err := f.store.Catalog().GetTable(f.ctx, seed.TableT1ID)
	require.NoError(t, err)
	assert.Equal(t, core.TableCleaning, table.Status)

	doro, err := f.store.Catalog().GetMenuItem(f.ctx, seed.DoroWatID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), doro.SoldCount)

	daily := f.daily(t, seed.BranchID)
	assertDecimal(t, "675", daily.Revenue)
	assert.Equal(t, 1, daily.OrderCount)

	payments, err := f.payments.ListPayments(f.ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1, "cash payment reuses the bill anchor")
	assert.Equal(t, payment.ID, payments[0].ID)

	_, err = f.payments.CreatePayment(f.ctx, waiter, order.ID, core.PaymentMethodCash, order.TotalAmount)
	assert.Equal(t, core.KindPreconditionFailed, core.KindOf(err))
}

func TestCreatePaymentValidation(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)

	_, err := f.payments.CreatePayment(f.ctx, waiter, order.ID, core.PaymentMethodCash, dec("675"))
	assert.Equal(t, core.KindPreconditionFailed, core.KindOf(err), "not served yet")

	f.serve(t, order.ID)
	cases := []struct {
		name   string
		method core.PaymentMethod
		amount string
	}{
		{"unspecified method", core.PaymentMethodUnspecified, "675"},
		{"zero amount", core.PaymentMethodCash, "0"},
		{"short", core.PaymentMethodCash, "674.99"},
		{"over 150%", core.PaymentMethodCash, "1012.51"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.payments.CreatePayment(f.ctx, waiter, order.ID, tc.method, dec(tc.amount))
			assert.Equal(t, core.KindValidationFailed, core.KindOf(err))
		})
	}

	payment, err := f.payments.CreatePayment(f.ctx, waiter, order.ID, core.PaymentMethodCash, dec("1012.50"))
	require.NoError(t, err)
	assert.Equal(t, core.PaymentCompleted, payment.Status)
}

func TestDuplicatePaymentWithinWindow(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)
	f.serve(t, order.ID)

	first, err := f.payments.CreatePayment(f.ctx, waiter, order.ID, core.PaymentMethodTelebirr, dec("675.00"))
	require.NoError(t, err)
	assert.Equal(t, core.PaymentPending, first.Status)

	f.clock.Advance(120 * time.Second)
	_, err = f.payments.CreatePayment(f.ctx, waiter, order.ID, core.PaymentMethodTelebirr, dec("675.00"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDuplicatePayment)

	stored, err := f.payments.GetPayment(f.ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentPending, stored.Status)

	f.clock.Advance(4 * time.Minute)
	again, err := f.payments.CreatePayment(f.ctx, waiter, order.ID, core.PaymentMethodTelebirr, dec("675.00"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, again.ID)
}

func TestProcessDigitalPaymentSuccess(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)
	f.serve(t, order.ID)
	pending, err := f.payments.CreatePayment(f.ctx, waiter, order.ID, core.PaymentMethodTelebirr, order.TotalAmount)
	require.NoError(t, err)

	f.telebirr.initiate = &core.GatewayResult{Success: true, TransactionID: "TB-1", Response: `{"status":"ok"}`}
	paid, err := f.payments.Process(f.ctx, waiter, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentCompleted, paid.Status)
	assert.Equal(t, "TB-1", paid.TransactionID)
	assert.Equal(t, "R2603100001", paid.ReceiptNumber)

	completed, err := f.orders.GetOrder(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, core.OrderStatusCompleted, completed.Status)
	assert.True(t, completed.InventoryDeducted)

	replay, err := f.payments.MarkCompleted(f.ctx, waiter, pending.ID, "TB-1", "")
	require.NoError(t, err)
	assert.Equal(t, "R2603100001", replay.ReceiptNumber)

	_, err = f.payments.MarkCompleted(f.ctx, waiter, pending.ID, "TB-2", "")
	assert.Equal(t, core.KindInvalidTransition, core.KindOf(err))
}

func TestProcessDeclinedPaymentFails(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)
	f.serve(t, order.ID)
	pending, err := f.payments.CreatePayment(f.ctx, waiter, order.ID, core.PaymentMethodTelebirr, order.TotalAmount)
	require.NoError(t, err)

	f.telebirr.initiate = &core.GatewayResult{Message: "insufficient balance"}
	failed, err := f.payments.Process(f.ctx, waiter, pending.ID)
	assert.Equal(t, core.KindExternalGatewayError, core.KindOf(err))
	require.NotNil(t, failed)
	assert.Equal(t, core.PaymentFailed, failed.Status)
	assert.Equal(t, "insufficient balance", failed.FailureReason)

	after, err := f.orders.GetOrder(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, core.OrderStatusServed, after.Status)
	assert.False(t, after.IsPaid)
}

func TestProcessTimeoutLeavesPaymentPending(t *testing.T) {
	f := newFixture(t)
	f.payments.timeout = 20 * time.Millisecond
	order := f.placeOrder(t)
	f.serve(t, order.ID)
	pending, err := f.payments.CreatePayment(f.ctx, waiter, order.ID, core.PaymentMethodTelebirr, order.TotalAmount)
	require.NoError(t, err)

	f.telebirr.block = true
	_, err = f.payments.Process(f.ctx, waiter, pending.ID)
	require.Error(t, err)
	assert.Equal(t, core.KindExternalGatewayError, core.KindOf(err))
	assert.Contains(t, err.Error(), "timed out")

	stored, err := f.payments.GetPayment(f.ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentPending, stored.Status)
	after, err := f.orders.GetOrder(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, core.OrderStatusServed, after.Status)
}

func TestVerifyAfterPendingInitiate(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)
	f.serve(t, order.ID)
	pending, err := f.payments.CreatePayment(f.ctx, waiter, order.ID, core.PaymentMethodTelebirr, order.TotalAmount)
	require.NoError(t, err)

	f.telebirr.initiate = &core.GatewayResult{Pending: true, TransactionID: "TB-9"}
	stillPending, err := f.payments.Process(f.ctx, waiter, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentPending, stillPending.Status)
	assert.Equal(t, "TB-9", stillPending.TransactionID)

	f.telebirr.verify = &core.GatewayResult{Success: true, TransactionID: "TB-9"}
	paid, err := f.payments.Verify(f.ctx, waiter, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentCompleted, paid.Status)
}

func TestRefund(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)
	f.serve(t, order.ID)
	pending, err := f.payments.CreatePayment(f.ctx, waiter, order.ID, core.PaymentMethodTelebirr, order.TotalAmount)
	require.NoError(t, err)
	f.telebirr.initiate = &core.GatewayResult{Success: true, TransactionID: "TB-1"}
	_, err = f.payments.Process(f.ctx, waiter, pending.ID)
	require.NoError(t, err)

	_, err = f.payments.Refund(f.ctx, manager, pending.ID, dec("100"), " ")
	assert.Equal(t, core.KindValidationFailed, core.KindOf(err))
	_, err = f.payments.Refund(f.ctx, manager, pending.ID, dec("700"), "cold food")
	assert.Equal(t, core.KindValidationFailed, core.KindOf(err))

	f.telebirr.refund = &core.GatewayResult{Success: true, Response: "refunded"}
	refunded, err := f.payments.Refund(f.ctx, manager, pending.ID, dec("100"), "cold food")
	require.NoError(t, err)
	assert.Equal(t, core.PaymentRefunded, refunded.Status)
	assertDecimal(t, "100", refunded.RefundedAmount)
	assert.Equal(t, "cold food", refunded.RefundReason)
	assert.NotNil(t, refunded.RefundedAt)

	after, err := f.orders.GetOrder(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, core.OrderStatusCompleted, after.Status)

	_, err = f.payments.Refund(f.ctx, manager, pending.ID, dec("100"), "again")
	assert.Equal(t, core.KindInvalidTransition, core.KindOf(err))
}

func TestMarkFailedOnlyFromPending(t *testing.T) {
	f := newFixture(t)
	_, payment := f.completeWithCash(t)
	_, err := f.payments.MarkFailed(f.ctx, waiter, payment.ID, "late decline")
	assert.Equal(t, core.KindInvalidTransition, core.KindOf(err))
}
