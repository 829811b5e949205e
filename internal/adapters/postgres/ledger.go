package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

// LedgerRepository implementation

// LockStockItem selects the stock row FOR UPDATE. Outside a unit of work the lock is
// released as soon as the statement finishes.
func (r *ledgerRepository) LockStockItem(ctx context.Context, id string) (*core.StockItem, error) {
	var m StockItemModel
	if err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&m).Error; err != nil {
		return nil, translate(err, "stock_item", id)
	}
	return m.ToDomain(), nil
}

func (r *ledgerRepository) SetStockQuantity(ctx context.Context, id string, quantity decimal.Decimal, at time.Time) error {
	result := r.conn(ctx).Model(&StockItemModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_quantity": quantity,
			"updated_at":       at,
		})
	return requireRow(result, "stock_item", id)
}

// AppendTransaction inserts a ledger entry. Entries are never updated or deleted.
func (r *ledgerRepository) AppendTransaction(ctx context.Context, tx *core.StockTransaction) error {
	if err := r.conn(ctx).Create(StockTransactionModelFromDomain(tx)).Error; err != nil {
		return translate(err, "stock_transaction", tx.ID)
	}
	return nil
}

func (r *ledgerRepository) GetTransaction(ctx context.Context, id string) (*core.StockTransaction, error) {
	var m StockTransactionModel
	if err := r.conn(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err, "stock_transaction", id)
	}
	return m.ToDomain(), nil
}

func (r *ledgerRepository) FindReversal(ctx context.Context, transactionID string) (*core.StockTransaction, error) {
	var m StockTransactionModel
	if err := r.conn(ctx).Where("reversal_of = ?", transactionID).First(&m).Error; err != nil {
		return nil, translate(err, "stock_transaction_reversal", transactionID)
	}
	return m.ToDomain(), nil
}

// ListTransactions returns ledger entries in the order they were written
func (r *ledgerRepository) ListTransactions(ctx context.Context, f core.TransactionFilter) ([]*core.StockTransaction, error) {
	query := r.conn(ctx).Model(&StockTransactionModel{})
	if f.RestaurantID != "" {
		query = query.Where("restaurant_id = ?", f.RestaurantID)
	}
	if f.BranchID != "" {
		query = query.Where("branch_id = ?", f.BranchID)
	}
	if f.StockItemID != "" {
		query = query.Where("stock_item_id = ?", f.StockItemID)
	}
	if f.OrderRef != "" {
		query = query.Where("order_ref = ?", f.OrderRef)
	}
	if f.Type != "" {
		query = query.Where("type = ?", string(f.Type))
	}
	if !f.From.IsZero() {
		query = query.Where("transaction_date >= ?", f.From)
	}
	if !f.To.IsZero() {
		query = query.Where("transaction_date < ?", f.To)
	}

	var models []StockTransactionModel
	if err := query.Order("transaction_date, id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list stock transactions: %w", err)
	}

	entries := make([]*core.StockTransaction, len(models))
	for i := range models {
		entries[i] = models[i].ToDomain()
	}
	return entries, nil
}
