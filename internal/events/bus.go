package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType represents the type of event
type EventType string

const (
	EventOrderCreated       EventType = "order_created"
	EventOrderStatusChanged EventType = "order_status_changed"
	EventOrderCompleted     EventType = "order_completed"
	EventOrderCancelled     EventType = "order_cancelled"
	EventPaymentCompleted   EventType = "payment_completed"
	EventPriceChanged       EventType = "price_changed"
	EventRecipeChanged      EventType = "recipe_changed"
	EventWasteRecorded      EventType = "waste_recorded"
	EventWasteApproved      EventType = "waste_approved"
	EventWasteRejected      EventType = "waste_rejected"
	EventStockLow           EventType = "stock_low"
)

// Event is a domain event. AggregateID orders delivery: events of one aggregate
// reach handlers in the order they were published.
type Event struct {
	Type        EventType   `json:"type"`
	AggregateID string      `json:"aggregate_id"`
	OccurredAt  time.Time   `json:"occurred_at"`
	Data        interface{} `json:"data"`
}

// Handler reacts to an event. Handlers must be idempotent since delivery is at-least-once,
// and must not publish events for the aggregate they are handling.
type Handler func(ctx context.Context, evt Event) error

// FailureRecorder persists handlers that gave up
type FailureRecorder interface {
	RecordHandlerFailure(ctx context.Context, failure *core.HandlerFailure) error
}

type namedHandler struct {
	name string
	fn   Handler
}

// EventBus delivers domain events to registered handlers synchronously after commit
// and fans them out to SSE subscribers.
type EventBus struct {
	subscribers map[string]chan Event
	mu          sync.RWMutex

	handlers map[EventType][]namedHandler
	hmu      sync.RWMutex

	locks    keyedMutex
	retry    RetryPolicy
	failures FailureRecorder
	logger   *zap.Logger
}

// NewEventBus creates a new event bus. failures may be nil.
func NewEventBus(logger *zap.Logger, failures FailureRecorder) *EventBus {
	return &EventBus{
		subscribers: make(map[string]chan Event),
		handlers:    make(map[EventType][]namedHandler),
		locks:       keyedMutex{locks: make(map[string]*keyLock)},
		retry:       DefaultRetryPolicy,
		failures:    failures,
		logger:      logger,
	}
}

// SetRetryPolicy replaces the retry policy used for retryable handler errors
func (eb *EventBus) SetRetryPolicy(p RetryPolicy) {
	eb.retry = p
}

// On registers a handler for an event type. Handlers run in registration order.
func (eb *EventBus) On(eventType EventType, name string, h Handler) {
	eb.hmu.Lock()
	defer eb.hmu.Unlock()
	eb.handlers[eventType] = append(eb.handlers[eventType], namedHandler{name: name, fn: h})
}

// Publish delivers evt to every handler of its type, then broadcasts it to SSE subscribers.
// Handler failures are retried, recorded and returned joined; they never abort the publisher.
func (eb *EventBus) Publish(ctx context.Context, evt Event) error {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now()
	}

	eb.hmu.RLock()
	handlers := append([]namedHandler(nil), eb.handlers[evt.Type]...)
	eb.hmu.RUnlock()

	var errs []error
	if len(handlers) > 0 {
		unlock := eb.locks.Lock(evt.AggregateID)
		for _, h := range handlers {
			if err := eb.deliver(ctx, h, evt); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			}
		}
		unlock()
	}

	eb.broadcast(evt)
	return errors.Join(errs...)
}

func (eb *EventBus) deliver(ctx context.Context, h namedHandler, evt Event) error {
	attempts, err := eb.retry.Do(ctx, func() error {
		return safeCall(ctx, h.fn, evt)
	})
	if err == nil {
		return nil
	}

	eb.logger.Error("event handler failed",
		zap.String("event", string(evt.Type)),
		zap.String("aggregate_id", evt.AggregateID),
		zap.String("handler", h.name),
		zap.Int("attempts", attempts),
		zap.Error(err))

	if eb.failures != nil {
		failure := &core.HandlerFailure{
			ID:          uuid.New().String(),
			EventType:   string(evt.Type),
			AggregateID: evt.AggregateID,
			Handler:     h.name,
			Attempts:    attempts,
			ErrorKind:   core.KindOf(err),
			Message:     err.Error(),
			CreatedAt:   time.Now(),
		}
		if recErr := eb.failures.RecordHandlerFailure(ctx, failure); recErr != nil {
			eb.logger.Error("failed to record handler failure", zap.String("handler", h.name), zap.Error(recErr))
		}
	}
	return err
}

func safeCall(ctx context.Context, h Handler, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, evt)
}

// Subscribe adds a new SSE subscriber and returns a channel for receiving events
func (eb *EventBus) Subscribe(ctx context.Context, id string) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	// Buffered so a slow client never blocks publishers
	ch := make(chan Event, 10)
	eb.subscribers[id] = ch

	go func() {
		<-ctx.Done()
		eb.Unsubscribe(id)
	}()

	return ch
}

// Unsubscribe removes a subscriber
func (eb *EventBus) Unsubscribe(id string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if ch, exists := eb.subscribers[id]; exists {
		close(ch)
		delete(eb.subscribers, id)
	}
}

func (eb *EventBus) broadcast(evt Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, ch := range eb.subscribers {
		select {
		case ch <- evt:
		default:
			// Skip if channel is full
		}
	}
}

// FormatSSE formats an event as Server-Sent Event string
func FormatSSE(event Event) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}

	return "event: " + string(event.Type) + "\ndata: " + string(data) + "\n\n", nil
}

type keyLock struct {
	sync.Mutex
	refs int
}

// keyedMutex serialises work per key without holding a global lock
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
