package payment

import (
	"context"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cash settles at the counter. There is nothing to call, so every operation succeeds.
type Cash struct{}

func (Cash) Method() core.PaymentMethod {
	return core.PaymentMethodCash
}

func (Cash) Initiate(_ context.Context, p *core.Payment) (*core.GatewayResult, error) {
	return &core.GatewayResult{Success: true, TransactionID: cashTransactionID(p)}, nil
}

func (Cash) Verify(_ context.Context, p *core.Payment) (*core.GatewayResult, error) {
	return &core.GatewayResult{Success: true, TransactionID: cashTransactionID(p)}, nil
}

// Refund hands cash back over the counter
func (Cash) Refund(_ context.Context, _ *core.Payment, amount decimal.Decimal) (*core.GatewayResult, error) {
	return &core.GatewayResult{Success: true, Response: "cash refund " + amount.StringFixed(2)}, nil
}

func cashTransactionID(p *core.Payment) string {
	if p.TransactionID != "" {
		return p.TransactionID
	}
	return "CASH-" + uuid.New().String()
}
