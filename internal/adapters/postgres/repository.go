package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type txKey struct{}

// Store implements core.Store using GORM with the pgx driver. Business days are stored
// as DATE and read back in loc.
type Store struct {
	db  *gorm.DB
	loc *time.Location

	catalog  *catalogRepository
	ledger   *ledgerRepository
	orders   *orderRepository
	payments *paymentRepository
	waste    *wasteRepository
	profit   *profitRepository
	alerts   *alertRepository
}

type catalogRepository struct{ *Store }
type ledgerRepository struct{ *Store }
type orderRepository struct{ *Store }
type paymentRepository struct{ *Store }
type wasteRepository struct{ *Store }
type profitRepository struct{ *Store }
type alertRepository struct{ *Store }

// NewStore creates a new Postgres store
func NewStore(dbURL string, loc *time.Location) (*Store, error) {
	// GORM with pgx driver (postgres driver uses pgx under the hood)
	db, err := gorm.Open(postgres.Open(dbURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return newStore(db, loc), nil
}

func newStore(db *gorm.DB, loc *time.Location) *Store {
	s := &Store{db: db, loc: loc}
	s.catalog = &catalogRepository{s}
	s.ledger = &ledgerRepository{s}
	s.orders = &orderRepository{s}
	s.payments = &paymentRepository{s}
	s.waste = &wasteRepository{s}
	s.profit = &profitRepository{s}
	s.alerts = &alertRepository{s}
	return s
}

// DB exposes the underlying connection for the seeder
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Catalog() core.CatalogRepository  { return s.catalog }
func (s *Store) Ledger() core.LedgerRepository    { return s.ledger }
func (s *Store) Orders() core.OrderRepository     { return s.orders }
func (s *Store) Payments() core.PaymentRepository { return s.payments }
func (s *Store) Waste() core.WasteRepository      { return s.waste }
func (s *Store) Profit() core.ProfitRepository    { return s.profit }
func (s *Store) Alerts() core.AlertRepository     { return s.alerts }

// Atomic runs fn in a database transaction. A ctx that already carries one joins it.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transaction carried by ctx, or the pool
func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}

// day rehydrates a DATE column as midnight in the business timezone
func (s *Store) day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
}

func dateParam(t time.Time) string {
	return t.Format("2006-01-02")
}

const uniqueViolation = "23505"

// translate maps driver errors onto engine error kinds
func translate(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.NotFound(entity, id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return core.Conflict(fmt.Sprintf("%s already exists", entity), err)
	}
	return fmt.Errorf("%s %s: %w", entity, id, err)
}

// requireRow turns an update that touched nothing into NotFound
func requireRow(result *gorm.DB, entity, id string) error {
	if result.Error != nil {
		return translate(result.Error, entity, id)
	}
	if result.RowsAffected == 0 {
		return core.NotFound(entity, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
