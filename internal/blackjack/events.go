package blackjack

import (
	"sync"
	"time"

	"github.com/lox/blackjack/internal/deck"
)

// EventType represents a game event type with type safety
type EventType string

const (
	EventTypeRoundStart  EventType = "round_start"
	EventTypeCardDealt   EventType = "card_dealt"
	EventTypeStateChange EventType = "state_change"
	EventTypeRoundEnd    EventType = "round_end"
)

// String returns the string representation of the event type
func (et EventType) String() string {
	return string(et)
}

// GameEvent is anything the engine publishes. Every event carries the round
// as it stood immediately after the change.
type GameEvent interface {
	EventType() EventType
	Timestamp() time.Time
	Snapshot() Snapshot
}

// Party identifies who received a card
type Party string

const (
	PartyPlayer Party = "player"
	PartyDealer Party = "dealer"
)

type baseEvent struct {
	snapshot  Snapshot
	timestamp time.Time
}

func (e baseEvent) Timestamp() time.Time { return e.timestamp }
func (e baseEvent) Snapshot() Snapshot   { return e.snapshot }

// RoundStartEvent is published once the opening four cards are dealt
type RoundStartEvent struct {
	baseEvent
}

func (e RoundStartEvent) EventType() EventType { return EventTypeRoundStart }

// CardDealtEvent is published for every hit and every dealer draw
type CardDealtEvent struct {
	baseEvent
	Party Party
	Card  deck.Card
}

func (e CardDealtEvent) EventType() EventType { return EventTypeCardDealt }

// StateChangeEvent is published when play passes from the player to the dealer
type StateChangeEvent struct {
	baseEvent
	From State
	To   State
}

func (e StateChangeEvent) EventType() EventType { return EventTypeStateChange }

// RoundEndEvent is published when a round reaches RoundOver
type RoundEndEvent struct {
	baseEvent
	Outcome Outcome
}

func (e RoundEndEvent) EventType() EventType { return EventTypeRoundEnd }

// EventSubscriber receives engine events. OnEvent runs on the goroutine that
// caused the change and must not call back into the Engine; the event's
// Snapshot already holds the round state.
type EventSubscriber interface {
	OnEvent(event GameEvent)
}

// SubscriberFunc adapts a function to EventSubscriber
type SubscriberFunc func(GameEvent)

func (f SubscriberFunc) OnEvent(event GameEvent) { f(event) }

// EventBus fans events out to subscribers
type EventBus interface {
	Subscribe(subscriber EventSubscriber)
	Unsubscribe(subscriber EventSubscriber)
	Publish(event GameEvent)
}

// SimpleEventBus is a basic in-memory event bus implementation
type SimpleEventBus struct {
	mu          sync.RWMutex
	subscribers []EventSubscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *SimpleEventBus {
	return &SimpleEventBus{}
}

// Subscribe adds a subscriber to receive events
func (bus *SimpleEventBus) Subscribe(subscriber EventSubscriber) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.subscribers = append(bus.subscribers, subscriber)
}

// Unsubscribe removes a subscriber from receiving events. Only comparable
// subscribers (pointers) can be removed; passing a SubscriberFunc panics.
func (bus *SimpleEventBus) Unsubscribe(subscriber EventSubscriber) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for i, sub := range bus.subscribers {
		if sub == subscriber {
			bus.subscribers = append(bus.subscribers[:i:i], bus.subscribers[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribers
func (bus *SimpleEventBus) Publish(event GameEvent) {
	bus.mu.RLock()
	subs := make([]EventSubscriber, len(bus.subscribers))
	copy(subs, bus.subscribers)
	bus.mu.RUnlock()

	for _, subscriber := range subs {
		subscriber.OnEvent(event)
	}
}
