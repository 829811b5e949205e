package events

import (
	"context"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
)

// RetryPolicy bounds retries of handler errors that may succeed on a second try
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy makes at most 3 attempts, waiting 50ms then 100ms
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond}

// Retryable reports whether err is worth another attempt
func Retryable(err error) bool {
	switch core.KindOf(err) {
	case core.KindExternalGatewayError, core.KindConflict:
		return true
	}
	return false
}

// Do runs fn until it succeeds, returns a non-retryable error, or attempts run out.
// It returns the number of attempts made.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) (int, error) {
	max := p.MaxAttempts
	if max < 1 {
		max = 1
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || !Retryable(err) || attempt >= max {
			return attempt, err
		}

		delay := p.BaseDelay << (attempt - 1)
		select {
		case <-ctx.Done():
			return attempt, err
		case <-time.After(delay):
		}
	}
}
