package postgres

import (
	"context"
	"fmt"
	"time"
)

// Sequencer is a core.Sequencer backed by the sequence_counters table
type Sequencer struct {
	store *Store
}

// NewSequencer creates a sequencer sharing the store's connection pool
func NewSequencer(store *Store) *Sequencer {
	return &Sequencer{store: store}
}

// Next bumps the (scope, restaurant, day) counter and returns the new value.
// A counter bumped inside a rolled back unit of work leaves a gap.
func (q *Sequencer) Next(ctx context.Context, scope, restaurantID string, day time.Time) (int64, error) {
	var value int64
	err := q.store.db.WithContext(ctx).Raw(`
		INSERT INTO sequence_counters (scope, restaurant_id, day, value)
		VALUES (?, ?, ?, 1)
		ON CONFLICT (scope, restaurant_id, day)
		DO UPDATE SET value = sequence_counters.value + 1
		RETURNING value`,
		scope, restaurantID, dateParam(day),
	).Scan(&value).Error
	if err != nil {
		return 0, fmt.Errorf("failed to advance %s sequence: %w", scope, err)
	}
	return value, nil
}
