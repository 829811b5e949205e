package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/redis/go-redis/v9"
)

const (
	// SequenceKeyPrefix is the prefix for order and receipt counters
	SequenceKeyPrefix = "seq:"
	// TableTokenKeyPrefix is the prefix for QR table tokens
	TableTokenKeyPrefix = "table_token:"
	// sequenceTTL keeps a day's counter around past midnight in any timezone
	sequenceTTL = 48 * time.Hour
)

// Repository implements core.Sequencer and core.TableTokenStore using Redis
type Repository struct {
	client *redis.Client
}

// NewRepository creates a new Redis repository
func NewRepository(client *redis.Client) *Repository {
	return &Repository{client: client}
}

// Ping checks the connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func sequenceKey(scope, restaurantID string, day time.Time) string {
	return fmt.Sprintf("%s%s:%s:%s", SequenceKeyPrefix, scope, restaurantID, day.Format("20060102"))
}

// Next increments the (scope, restaurant, day) counter. INCR is atomic across server
// instances, so numbers never repeat even when orders race.
func (r *Repository) Next(ctx context.Context, scope, restaurantID string, day time.Time) (int64, error) {
	key := sequenceKey(scope, restaurantID, day)
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, sequenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to advance %s sequence: %w", scope, err)
	}
	return incr.Val(), nil
}

// SaveTableToken stores a QR token with its TTL
func (r *Repository) SaveTableToken(ctx context.Context, token, tableID string, ttl time.Duration) error {
	if err := r.client.Set(ctx, TableTokenKeyPrefix+token, tableID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save table token: %w", err)
	}
	return nil
}

// LookupTableToken returns the table a live token was issued for
func (r *Repository) LookupTableToken(ctx context.Context, token string) (string, error) {
	tableID, err := r.client.Get(ctx, TableTokenKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", core.NotFound("table_token", token)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get table token: %w", err)
	}
	return tableID, nil
}
