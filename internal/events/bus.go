package events

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrBusClosed is returned when operating on a closed bus
	ErrBusClosed = errors.New("event bus is closed")

	// ErrUnknownType is returned for a type outside the closed set
	ErrUnknownType = errors.New("unknown event type")

	// ErrPayloadMismatch is returned when the payload does not match the type
	ErrPayloadMismatch = errors.New("payload does not match event type")
)

// Handler receives published events
type Handler func(Event)

// SubscriptionID identifies a subscription for Unsubscribe
type SubscriptionID string

// DefaultHistorySize bounds Bus.History
const DefaultHistorySize = 256

type subscription struct {
	id      SubscriptionID
	types   map[Type]bool // nil means every type
	handler Handler
}

// Bus delivers events synchronously to subscribers in the order they
// subscribed. A handler that panics is logged and skipped; later handlers
// still run.
type Bus struct {
	mu      sync.RWMutex
	subs    []*subscription
	history []Event
	maxHist int
	closed  atomic.Bool
	logger  *slog.Logger
}

// NewBus creates a bus keeping up to historySize recent events
func NewBus(logger *slog.Logger, historySize int) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Bus{
		maxHist: historySize,
		logger:  logger,
	}
}

// Subscribe registers handler for the given types, or for every type when
// none are given
func (b *Bus) Subscribe(handler Handler, types ...Type) (SubscriptionID, error) {
	if b.closed.Load() {
		return "", ErrBusClosed
	}

	var set map[Type]bool
	if len(types) > 0 {
		set = make(map[Type]bool, len(types))
		for _, t := range types {
			if !t.Known() {
				return "", ErrUnknownType
			}
			set[t] = true
		}
	}

	sub := &subscription{
		id:      SubscriptionID(uuid.NewString()),
		types:   set,
		handler: handler,
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return sub.id, nil
}

// Unsubscribe removes a subscription; unknown IDs are ignored
func (b *Bus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish validates and delivers an event. It returns after every matching
// handler has run.
func (b *Bus) Publish(t Type, payload any) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	if err := checkPayload(t, payload); err != nil {
		return err
	}

	event := Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	b.mu.Lock()
	b.history = append(b.history, event)
	if len(b.history) > b.maxHist {
		b.history = b.history[len(b.history)-b.maxHist:]
	}
	subs := make([]*subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	b.logger.Debug("event published", "type", t, "id", event.ID)

	for _, sub := range subs {
		if sub.types != nil && !sub.types[t] {
			continue
		}
		b.deliver(sub, event)
	}
	return nil
}

// Emit publishes and logs failures. It satisfies emitters that have no
// use for the error.
func (b *Bus) Emit(t Type, payload any) {
	if err := b.Publish(t, payload); err != nil {
		b.logger.Error("publish event", "type", t, "error", err)
	}
}

func (b *Bus) deliver(sub *subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panic", "type", event.Type, "panic", r)
		}
	}()
	sub.handler(event)
}

// History returns recent events oldest first, optionally filtered by type
func (b *Bus) History(types ...Type) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(types) == 0 {
		out := make([]Event, len(b.history))
		copy(out, b.history)
		return out
	}

	var out []Event
	for _, e := range b.history {
		for _, t := range types {
			if e.Type == t {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Close stops the bus; further Publish and Subscribe calls fail
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.mu.Lock()
	b.subs = nil
	b.mu.Unlock()
}
