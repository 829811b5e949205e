package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
)

// Sequencer is an in-process core.Sequencer
type Sequencer struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewSequencer creates a sequencer with all counters at zero
func NewSequencer() *Sequencer {
	return &Sequencer{counters: make(map[string]int64)}
}

func (s *Sequencer) Next(_ context.Context, scope, restaurantID string, day time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scope + ":" + restaurantID + ":" + dayKey(day)
	s.counters[key]++
	return s.counters[key], nil
}

type tableToken struct {
	tableID   string
	expiresAt time.Time
}

// TableTokens is an in-process core.TableTokenStore
type TableTokens struct {
	mu     sync.Mutex
	tokens map[string]tableToken
	now    func() time.Time
}

// NewTableTokens creates an empty token store
func NewTableTokens() *TableTokens {
	return &TableTokens{tokens: make(map[string]tableToken), now: time.Now}
}

func (t *TableTokens) SaveTableToken(_ context.Context, token, tableID string, ttl time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens[token] = tableToken{tableID: tableID, expiresAt: t.now().Add(ttl)}
	return nil
}

func (t *TableTokens) LookupTableToken(_ context.Context, token string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.tokens[token]
	if !ok || !t.now().Before(v.expiresAt) {
		delete(t.tokens, token)
		return "", core.NotFound("table_token", token)
	}
	return v.tableID, nil
}
