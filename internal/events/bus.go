package events

import (
	"sync"
	"time"
)

// EventType represents the kinds of events the pipeline emits
type EventType string

const (
	EventDecision      EventType = "DECISION"
	EventTradeExecuted EventType = "TRADE_EXECUTED"
	EventTradeRejected EventType = "TRADE_REJECTED"
	EventBacktestDone  EventType = "BACKTEST_DONE"
)

// Event is one published occurrence
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber handles published events
type Subscriber func(Event)

// Bus is a small in-process pub/sub hub connecting the live engine to the
// websocket stream and any other listeners.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewBus creates an event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe registers a subscriber for one event type
func (b *Bus) Subscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], sub)
}

// SubscribeAll registers a subscriber for every event type
func (b *Bus) SubscribeAll(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allSubs = append(b.allSubs, sub)
}

// Publish delivers the event to matching subscribers. Delivery is
// asynchronous so a slow listener cannot stall the evaluation path.
func (b *Bus) Publish(eventType EventType, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.subscribers[eventType])+len(b.allSubs))
	subs = append(subs, b.subscribers[eventType]...)
	subs = append(subs, b.allSubs...)
	b.mu.RUnlock()

	for _, sub := range subs {
		go sub(event)
	}
}
