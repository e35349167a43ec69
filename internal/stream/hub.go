// Package stream fans price, signal and trade events out to streaming
// subscribers. Delivery is best-effort: a publisher never blocks on a slow
// consumer.
package stream

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types pushed through the hub.
const (
	EventPrice     = "price_update"
	EventSignal    = "signal"
	EventTrade     = "trade"
	EventHeartbeat = "heartbeat"
)

// Event is the envelope delivered to every subscriber.
type Event struct {
	Type      string      `json:"type"`
	Symbol    string      `json:"symbol,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType, symbol string, data interface{}) Event {
	return Event{Type: eventType, Symbol: symbol, Data: data, Timestamp: time.Now()}
}

// Subscriber is one open streaming connection with a bounded delivery queue.
// It owns no state beyond the queue; a dropped subscriber must resubscribe.
type Subscriber struct {
	id     string
	events chan Event
	once   sync.Once
}

// ID returns the subscriber's unique id.
func (s *Subscriber) ID() string { return s.id }

// Events returns the delivery queue. The channel is closed when the
// subscriber is unsubscribed or dropped on overflow.
func (s *Subscriber) Events() <-chan Event { return s.events }

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.events) })
}

// Hub manages the set of active subscribers.
type Hub struct {
	logger    *zap.Logger
	queueSize int

	mu   sync.RWMutex
	subs map[string]*Subscriber
}

// NewHub creates a hub with the given per-subscriber queue size.
func NewHub(queueSize int, logger *zap.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Hub{
		logger:    logger.Named("hub"),
		queueSize: queueSize,
		subs:      make(map[string]*Subscriber),
	}
}

// Subscribe registers a new subscriber and returns it.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		id:     uuid.NewString(),
		events: make(chan Event, h.queueSize),
	}

	h.mu.Lock()
	h.subs[sub.id] = sub
	count := len(h.subs)
	h.mu.Unlock()

	h.logger.Info("Subscriber connected", zap.String("id", sub.id), zap.Int("total", count))
	return sub
}

// Unsubscribe removes a subscriber and closes its queue. Safe to call more
// than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	_, present := h.subs[sub.id]
	delete(h.subs, sub.id)
	count := len(h.subs)
	h.mu.Unlock()

	sub.close()
	if present {
		h.logger.Info("Subscriber disconnected", zap.String("id", sub.id), zap.Int("total", count))
	}
}

// Publish fans the event out to every subscriber without blocking. A
// subscriber whose queue is full is dropped and must resubscribe.
func (h *Hub) Publish(event Event) {
	var overflowed []*Subscriber

	h.mu.RLock()
	for _, sub := range h.subs {
		select {
		case sub.events <- event:
		default:
			overflowed = append(overflowed, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range overflowed {
		h.logger.Warn("Dropping slow subscriber, queue full",
			zap.String("id", sub.id),
			zap.String("event_type", event.Type),
		)
		h.Unsubscribe(sub)
	}
}

// Count returns the number of active subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
