package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventAgentUpdate EventType = "agent_update"
	EventAgentTrade  EventType = "agent_trade"
	EventAgentError  EventType = "agent_error"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// Bus manages event publishing and subscriptions. Delivery is
// fire-and-forget: subscribers run on their own goroutines and are
// never awaited or acknowledged.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (b *Bus) Subscribe(eventType EventType, subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (b *Bus) SubscribeAll(subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.allSubs = append(b.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := b.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}

	for _, sub := range b.allSubs {
		go sub(event)
	}
}

// PublishAgentUpdate publishes a state change for an agent (position
// opened/closed, status change, hold decision)
func (b *Bus) PublishAgentUpdate(agentID string, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["agent_id"] = agentID
	b.Publish(Event{Type: EventAgentUpdate, Data: data})
}

// PublishAgentTrade publishes an executed trade
func (b *Bus) PublishAgentTrade(agentID string, action, symbol string, amount, price, pnl float64) {
	b.Publish(Event{
		Type: EventAgentTrade,
		Data: map[string]interface{}{
			"agent_id": agentID,
			"action":   action,
			"symbol":   symbol,
			"amount":   amount,
			"price":    price,
			"pnl":      pnl,
		},
	})
}

// PublishAgentError publishes an agent cycle error
func (b *Bus) PublishAgentError(agentID string, errMsg string) {
	b.Publish(Event{
		Type: EventAgentError,
		Data: map[string]interface{}{
			"agent_id": agentID,
			"error":    errMsg,
		},
	})
}
